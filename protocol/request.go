package protocol

import "os"

// FormData is one multipart/form-data part. Inline parts carry Data; file
// parts spill to disk and carry SpillPath instead -- never both.
type FormData struct {
	Name        string
	ContentType string
	Data        []byte
	IsFile      bool
	Filename    string
	SpillPath   string
}

// Request is owned by the worker and reused across iterations. Clear
// truncates every map and buffer back to empty and unlinks any spill files
// left by a multipart upload, matching the teacher's Session.Reset
// discipline of never letting per-iteration state outlive Clear.
type Request struct {
	Method         Method
	URI            string
	RawQueryString string
	RawHeaders     string
	RawRequestLine string
	HTTPVersion    HTTPVersion

	Host     string
	Worker   int
	User     string
	Password string

	Header map[string]string
	Cookie map[string]string
	Get    map[string]string
	Post   map[string]string
	Form   map[string]*FormData

	Body            []byte
	BodyContentType string

	Route []string

	KeepAlive     bool
	ParsingStatus ParsingStatus
}

// NewRequest allocates a Request with its maps pre-created, ready for reuse.
func NewRequest() *Request {
	r := &Request{}
	r.initMaps()
	return r
}

func (r *Request) initMaps() {
	r.Header = make(map[string]string, 16)
	r.Cookie = make(map[string]string, 4)
	r.Get = make(map[string]string, 8)
	r.Post = make(map[string]string, 8)
	r.Form = make(map[string]*FormData, 4)
}

// Clear resets the Request for the next iteration. Spill files referenced
// by the previous Form are unlinked before the map is emptied, so invariant
// 5 ("after clear(), no spill file from the previous Request survives on
// disk") holds even if the handler never touched the upload.
func (r *Request) Clear() {
	r.unlinkSpillFiles()

	r.Method = MethodUnknown
	r.URI = ""
	r.RawQueryString = ""
	r.RawHeaders = ""
	r.RawRequestLine = ""
	r.HTTPVersion = HTTPVersionUnknown
	r.Host = ""
	r.User = ""
	r.Password = ""
	r.Body = nil
	r.BodyContentType = ""
	r.KeepAlive = false
	r.ParsingStatus = StatusOK

	clearStringMap(r.Header)
	clearStringMap(r.Cookie)
	clearStringMap(r.Get)
	clearStringMap(r.Post)
	for k := range r.Form {
		delete(r.Form, k)
	}
	r.Route = r.Route[:0]
}

func (r *Request) unlinkSpillFiles() {
	for _, fd := range r.Form {
		if fd.IsFile && fd.SpillPath != "" {
			os.Remove(fd.SpillPath)
		}
	}
}

func clearStringMap(m map[string]string) {
	for k := range m {
		delete(m, k)
	}
}

// ObserveRoute appends a handler identifier to the route log; called by the
// dispatcher as each candidate handler is given the request.
func (r *Request) ObserveRoute(id string) {
	r.Route = append(r.Route, id)
}
