package protocol

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/m1dok/serverino/buffer"
)

// reservedHeaders can never be set directly by a handler; the system emits
// them itself during BuildHeaders.
var reservedHeaders = map[string]struct{}{
	"content-length":    {},
	"status":            {},
	"transfer-encoding": {},
}

// headerPair is an ordered (lowercase key, value) entry, kept as a slice
// rather than a map so emission order matches insertion order.
type headerPair struct {
	Key, Value string
}

// Response is the Output described in spec.md 3: it accumulates body
// bytes, status, headers and cookies across a handler chain, then flushes
// status line + headers + body through the worker's frame to the daemon.
// Owned by the worker, reused across iterations via Clear.
type Response struct {
	Status      int
	HTTPVersion HTTPVersion
	KeepAlive   bool

	headers []headerPair
	cookies []Cookie

	SendBody bool
	dirty    bool

	HeadersBuffer *buffer.Buffer
	SendBuffer    *buffer.Buffer

	Timeout time.Duration
}

// NewResponse returns a Response ready for first use.
func NewResponse() *Response {
	r := &Response{
		Status:        200,
		SendBody:      true,
		HeadersBuffer: buffer.New(512),
		SendBuffer:    buffer.New(1024),
	}
	return r
}

// Clear resets the Response for the next iteration; headers/cookies slices
// are truncated to zero length (capacity kept, matching the buffer reuse
// discipline elsewhere in this package).
func (r *Response) Clear() {
	r.Status = 200
	r.HTTPVersion = HTTP11
	r.KeepAlive = false
	r.headers = r.headers[:0]
	r.cookies = r.cookies[:0]
	r.SendBody = true
	r.dirty = false
	r.HeadersBuffer.Clear()
	r.SendBuffer.Clear()
	r.Timeout = 0
}

// Dirty reports whether any user-visible mutation happened this iteration.
func (r *Response) Dirty() bool {
	return r.dirty
}

// Write appends to the body buffer and marks the response dirty.
func (r *Response) Write(p []byte) {
	r.SendBuffer.Append(p)
	r.dirty = true
}

// WriteString is Write for a string body fragment.
func (r *Response) WriteString(s string) {
	r.SendBuffer.AppendString(s)
	r.dirty = true
}

// SetStatus sets the status code and marks the response dirty.
func (r *Response) SetStatus(code int) {
	r.Status = code
	r.dirty = true
}

// AddHeader records a header, lowercasing the key. Reserved keys are
// silently ignored -- spec.md calls this a warn-and-no-op, not a failure.
func (r *Response) AddHeader(key, value string) {
	key = strings.ToLower(key)
	if _, reserved := reservedHeaders[key]; reserved {
		return
	}
	r.headers = append(r.headers, headerPair{Key: key, Value: value})
	r.dirty = true
}

// AddHeaderDuration stores an absolute HTTP-date computed as now+d, used
// for headers like Expires built relative to the current request.
func (r *Response) AddHeaderDuration(key string, d time.Duration) {
	r.AddHeader(key, FormatHTTPDate(time.Now().Add(d)))
}

// SetCookie appends a cookie to the response. The cookie must be Valid;
// otherwise this is the one programmer error spec.md wants surfaced
// explicitly rather than silently dropped.
func (r *Response) SetCookie(c Cookie) error {
	if !c.Valid() {
		return errInvalidCookie
	}
	r.cookies = append(r.cookies, c)
	r.dirty = true
	return nil
}

// DisableBody corresponds to setting sendBody = false (HEAD, CONNECT,
// TRACE, or an error short-circuit).
func (r *Response) DisableBody() {
	r.SendBody = false
}

// ServeFile stats path, guesses its content-type from the static mime
// table, and reads the whole file into the send buffer. A missing or
// non-regular file is a no-op returning false, leaving the buffer
// untouched -- the caller (a handler) decides what to do next.
func (r *Response) ServeFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	r.AddHeader("content-type", ContentTypeFor(path))
	r.SendBuffer.Append(data)
	r.dirty = true
	return true
}

// BuildHeaders assembles the status line and all response headers into
// HeadersBuffer, following the exact order spec.md 4.3 specifies: status
// line, connection, content-length, user headers, default content-type,
// then one set-cookie per cookie. If SendBody is false the send buffer is
// cleared after headers are built, so no body bytes escape.
func (r *Response) BuildHeaders() {
	hb := r.HeadersBuffer
	hb.Clear()

	version := r.HTTPVersion
	if version == HTTPVersionUnknown {
		version = HTTP11
	}
	hb.AppendString(version.String())
	hb.AppendByte(' ')
	hb.AppendString(StatusLine(r.Status))
	hb.AppendString("\r\n")

	if r.KeepAlive {
		hb.AppendString("connection: keep-alive\r\n")
	} else {
		hb.AppendString("connection: close\r\n")
	}

	bodyLen := 0
	if r.SendBody {
		bodyLen = r.SendBuffer.Len()
	}
	hb.AppendString("content-length: ")
	hb.AppendString(strconv.Itoa(bodyLen))
	hb.AppendString("\r\n")

	hasContentType := false
	for _, h := range r.headers {
		if h.Key == "content-length" || h.Key == "transfer-encoding" {
			continue
		}
		if h.Key == "content-type" {
			hasContentType = true
		}
		hb.AppendString(h.Key)
		hb.AppendString(": ")
		hb.AppendString(h.Value)
		hb.AppendString("\r\n")
	}

	if r.SendBody && !hasContentType {
		hb.AppendString("content-type: text/html;charset=utf-8\r\n")
	}

	for _, c := range r.cookies {
		hb.AppendString("set-cookie: ")
		hb.AppendString(c.String())
		hb.AppendString("\r\n")
	}

	hb.AppendString("\r\n")

	if !r.SendBody {
		r.SendBuffer.Clear()
	}
}

var errInvalidCookie = fmt.Errorf("setCookie: cookie is not valid")
