// Package protocol implements the worker's HTTP/1.x parser, response
// builder, cookie model, HTTP-date formatter and static mime table. It is a
// hand-rolled byte scanner -- no net/http, no net/textproto, no
// mime/multipart -- grounded on the teacher's parseRaw/findsep scanning
// style (server/protocol/parser.go, internal/request.go).
package protocol

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

var crlfcrlf = []byte("\r\n\r\n")

// Parse parses one complete request (headers + body, already framed by the
// daemon) into req. It only adds the entries and fields it finds in raw: it
// does not empty req's maps, does not replace a Host already set, and does
// not unlink spill files. Callers Clear the Request before each Parse (the
// worker does so at the top of every iteration).
func Parse(raw []byte, req *Request) {
	req.ParsingStatus = StatusOK
	if req.Header == nil {
		req.initMaps()
	}

	headerEnd := bytes.Index(raw, crlfcrlf)
	if headerEnd == -1 {
		req.ParsingStatus = StatusInvalidRequest
		req.KeepAlive = false
		return
	}
	head := raw[:headerEnd]
	bodyStart := headerEnd + 4

	// a request with no header lines has only the request line before the
	// CRLFCRLF separator
	requestLine, headerBlock := head, []byte(nil)
	if lineEnd := indexByte(head, '\n'); lineEnd != -1 {
		requestLine, headerBlock = head[:lineEnd], head[lineEnd+1:]
	}
	if len(requestLine) > 0 && requestLine[len(requestLine)-1] == '\r' {
		requestLine = requestLine[:len(requestLine)-1]
	}
	req.RawRequestLine = string(requestLine)

	methodTok, rest, ok := cutSpace(requestLine)
	if !ok {
		req.ParsingStatus = StatusInvalidRequest
		req.KeepAlive = false
		return
	}
	req.Method = methodFromBytes(methodTok)
	if req.Method == MethodUnknown {
		req.ParsingStatus = StatusInvalidRequest
		req.KeepAlive = false
		return
	}

	target, versionTok, ok := cutSpace(rest)
	if !ok {
		req.ParsingStatus = StatusInvalidRequest
		req.KeepAlive = false
		return
	}
	req.HTTPVersion = parseVersion(versionTok)

	rawPath, rawQuery := splitPathQueryFragment(target)
	decodedPath, err := decodePathValue(rawPath)
	if err != nil {
		req.ParsingStatus = StatusInvalidRequest
		req.KeepAlive = false
		return
	}
	req.URI = normalizePath(decodedPath)
	req.RawQueryString = string(rawQuery)

	if err := decodeQueryInto(rawQuery, req.Get); err != nil {
		req.ParsingStatus = StatusInvalidRequest
		req.KeepAlive = false
		return
	}

	req.RawHeaders = string(headerBlock)
	contentLength, err := parseHeaders(headerBlock, req)
	if err != nil {
		req.ParsingStatus = StatusInvalidRequest
		req.KeepAlive = false
		return
	}

	req.KeepAlive = decideKeepAlive(req)

	var body []byte
	if contentLength > 0 {
		end := bodyStart + contentLength
		if end > len(raw) {
			end = len(raw)
		}
		body = raw[bodyStart:end]
	}
	req.Body = body
	req.BodyContentType = req.Header["content-type"]

	if req.Host == "" {
		req.Host = req.Header["host"]
	}

	parseCookies(req.Header["cookie"], req.Cookie)
	parseBasicAuth(req.Header["authorization"], req)

	if len(body) > 0 {
		decodeBodyByContentType(body, req)
	}
}

// cutSpace splits on the first run of spaces, like bytes.Cut on ' ' but
// tolerant of the single-space grammar the request line actually uses.
func cutSpace(b []byte) (before, after []byte, ok bool) {
	i := indexByte(b, ' ')
	if i == -1 {
		return b, nil, false
	}
	return b[:i], b[i+1:], true
}

func parseVersion(b []byte) HTTPVersion {
	switch string(b) {
	case "HTTP/1.1":
		return HTTP11
	case "HTTP/1.0":
		return HTTP10
	default:
		return HTTPVersionUnknown
	}
}

// parseHeaders walks header lines CRLF-terminated, lowercasing names and
// recording the first content-length match (spec.md 9's open question:
// first-wins, matching the teacher's linear-scan semantics).
func parseHeaders(block []byte, req *Request) (contentLength int, err error) {
	contentLength = -1
	crs := 0
	for crs < len(block) {
		lf := indexByte(block[crs:], '\n')
		if lf == -1 {
			// the last header line ends where the CRLFCRLF separator begins
			lf = len(block) - crs
		}
		lf += crs
		line := block[crs:lf]
		if len(line) > 0 && line[len(line)-1] == '\r' {
			line = line[:len(line)-1]
		}
		crs = lf + 1
		if len(line) == 0 {
			continue
		}
		colon := indexByte(line, ':')
		if colon == -1 {
			return 0, errInvalid
		}
		name := strings.ToLower(strings.TrimSpace(string(line[:colon])))
		value := strings.TrimSpace(string(line[colon+1:]))
		if name == "" {
			return 0, errInvalid
		}
		req.Header[name] = value

		if name == "content-length" && contentLength == -1 {
			n, perr := strconv.Atoi(value)
			if perr == nil && n >= 0 {
				contentLength = n
			}
		}
	}
	if contentLength == -1 {
		contentLength = 0
	}
	return contentLength, nil
}

func decideKeepAlive(req *Request) bool {
	if req.HTTPVersion == HTTP10 {
		return false
	}
	if v, ok := req.Header["connection"]; ok {
		return strings.EqualFold(strings.TrimSpace(v), "keep-alive")
	}
	return true
}

func parseCookies(header string, dst map[string]string) {
	if header == "" {
		return
	}
	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		eq := strings.IndexByte(part, '=')
		if eq == -1 {
			continue
		}
		name, err1 := decodeFormValue([]byte(part[:eq]))
		value, err2 := decodeFormValue([]byte(part[eq+1:]))
		if err1 != nil || err2 != nil {
			continue
		}
		dst[name] = value
	}
}

func parseBasicAuth(header string, req *Request) {
	const prefix = "basic "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return
	}
	decoded, err := base64.StdEncoding.DecodeString(header[len(prefix):])
	if err != nil {
		return
	}
	colon := bytes.IndexByte(decoded, ':')
	if colon == -1 {
		return
	}
	req.User = string(decoded[:colon])
	req.Password = string(decoded[colon+1:])
}

func decodeBodyByContentType(body []byte, req *Request) {
	ct := firstToken(req.BodyContentType)
	switch strings.ToLower(ct) {
	case "application/x-www-form-urlencoded":
		if err := decodeQueryInto(body, req.Post); err != nil {
			req.ParsingStatus = StatusInvalidBody
		}
	case "multipart/form-data":
		if int64(len(body)) > MaxUploadSize {
			req.ParsingStatus = StatusMaxUploadSizeExceeded
			return
		}
		boundary := boundaryOf(req.BodyContentType)
		if boundary == "" {
			boundary = sniffBoundary(body)
		}
		if boundary == "" {
			req.ParsingStatus = StatusInvalidBody
			return
		}
		if err := parseMultipart(body, boundary, req); err != nil {
			req.ParsingStatus = StatusInvalidBody
			for k, fd := range req.Form {
				if fd.IsFile && fd.SpillPath != "" {
					os.Remove(fd.SpillPath)
				}
				delete(req.Form, k)
			}
		}
	}
}

func firstToken(contentType string) string {
	if i := strings.IndexByte(contentType, ';'); i != -1 {
		return strings.TrimSpace(contentType[:i])
	}
	return strings.TrimSpace(contentType)
}

func boundaryOf(contentType string) string {
	parts := strings.Split(contentType, ";")
	for _, p := range parts[1:] {
		p = strings.TrimSpace(p)
		if strings.HasPrefix(strings.ToLower(p), "boundary=") {
			v := p[len("boundary="):]
			v = strings.Trim(v, `"`)
			return v
		}
	}
	return ""
}

// sniffBoundary falls back to detecting "--<boundary>" on the body's first
// non-empty line when the content-type header omitted it, per spec.md 4.2
// step 8.
func sniffBoundary(body []byte) string {
	trimmed := bytes.TrimLeft(body, "\r\n")
	if !bytes.HasPrefix(trimmed, []byte("--")) {
		return ""
	}
	trimmed = trimmed[2:]
	end := bytes.IndexAny(trimmed, "\r\n")
	if end == -1 {
		return ""
	}
	return string(trimmed[:end])
}

var uploadCounter atomic.Uint64

// parseMultipart splits body on "--<boundary>" delimiters and parses each
// part's local headers, spilling file parts to disk under the upload_*
// naming scheme from spec.md 6.
func parseMultipart(body []byte, boundary string, req *Request) error {
	delim := []byte("--" + boundary)

	start := bytes.Index(body, delim)
	if start == -1 {
		return errNoBoundary
	}
	cursor := start + len(delim)

	for {
		if bytes.HasPrefix(body[cursor:], []byte("--")) {
			break
		}
		if !bytes.HasPrefix(body[cursor:], []byte("\r\n")) {
			return errTruncatedPart
		}
		cursor += 2

		next := bytes.Index(body[cursor:], delim)
		if next == -1 {
			return errTruncatedPart
		}
		chunk := body[cursor : cursor+next]
		chunk = bytes.TrimSuffix(chunk, []byte("\r\n"))

		if err := parseMultipartChunk(chunk, req); err != nil {
			return err
		}

		cursor += next + len(delim)
		if cursor >= len(body) {
			return errTruncatedPart
		}
	}
	return nil
}

func parseMultipartChunk(chunk []byte, req *Request) error {
	headerEnd := bytes.Index(chunk, []byte("\r\n\r\n"))
	var headerBlock, partBody []byte
	if headerEnd == -1 {
		if bytes.HasPrefix(chunk, []byte("\r\n")) {
			headerBlock = nil
			partBody = chunk[2:]
		} else {
			return errTruncatedPart
		}
	} else {
		headerBlock = chunk[:headerEnd]
		partBody = chunk[headerEnd+4:]
	}

	headers := map[string]string{}
	for _, line := range bytes.Split(headerBlock, []byte("\r\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		colon := bytes.IndexByte(line, ':')
		if colon == -1 {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(string(line[:colon])))
		value := strings.TrimSpace(string(line[colon+1:]))
		headers[name] = value
	}

	disposition := headers["content-disposition"]
	name, filename := parseDisposition(disposition)
	if name == "" {
		return nil
	}

	fd := &FormData{
		Name:        name,
		ContentType: headers["content-type"],
	}

	if filename != "" {
		fd.IsFile = true
		fd.Filename = filename
		path, err := spillToTemp(partBody, filename)
		if err != nil {
			return err
		}
		fd.SpillPath = path
	} else {
		fd.Data = append([]byte(nil), partBody...)
	}

	req.Form[name] = fd
	return nil
}

func parseDisposition(header string) (name, filename string) {
	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		if kv := strings.SplitN(part, "=", 2); len(kv) == 2 {
			key := strings.ToLower(strings.TrimSpace(kv[0]))
			val := strings.Trim(strings.TrimSpace(kv[1]), `"`)
			switch key {
			case "name":
				name = val
			case "filename":
				filename = val
			}
		}
	}
	return
}

// spillToTemp writes a multipart file part to the OS temp dir under
// upload_<unixtime>_<pid>_<counter><ext>, per spec.md 6.
func spillToTemp(data []byte, originalFilename string) (string, error) {
	ext := ""
	if dot := strings.LastIndexByte(originalFilename, '.'); dot != -1 {
		ext = originalFilename[dot:]
	}
	counter := uploadCounter.Add(1)
	name := fmt.Sprintf("upload_%d_%d_%05d%s", time.Now().Unix(), os.Getpid(), counter%100000, ext)
	path := os.TempDir() + string(os.PathSeparator) + name

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
