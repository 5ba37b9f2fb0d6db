package protocol

import "errors"

// sentinel parse errors, matching the teacher's errInvalid / errIncomplete
// pair (server/protocol/errors.go) -- extended with the forms this worker's
// request model needs (body decode, percent-decoding, multipart).
var (
	errInvalid       = errors.New("invalid request")
	errIncomplete    = errors.New("incomplete request")
	errInvalidBody   = errors.New("invalid body")
	errBadPercent    = errors.New("bad percent-escape")
	errNoBoundary    = errors.New("multipart: missing boundary")
	errTruncatedPart = errors.New("multipart: truncated part")
)

// MaxUploadSize bounds a multipart/form-data body Parse will spill to
// disk. A host embedding this worker can lower or raise it (worker.Config
// carries a MaxUploadSize field that assigns this at worker startup); a
// body over the limit fails with StatusMaxUploadSizeExceeded rather than
// spilling an unbounded number of bytes to the temp dir.
var MaxUploadSize int64 = 32 << 20

// ParsingStatus records the outcome of Parse on a Request so the caller
// can pick a status code without re-deriving it from the error value.
type ParsingStatus int

const (
	StatusOK ParsingStatus = iota
	StatusMaxUploadSizeExceeded
	StatusInvalidBody
	StatusInvalidRequest
)
