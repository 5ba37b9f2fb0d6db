// Package engine implements the wire framing between a worker and its
// daemon (spec.md 4.7): a length-prefixed request frame inbound, and a
// fixed-header-plus-payload response frame outbound. Byte order is host
// order (little-endian) throughout, since both ends are co-located on the
// same machine -- unlike the WebSocket codec in package ws, which must use
// network byte order per RFC 6455.
package engine

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/m1dok/serverino/buffer"
)

// lengthPrefixSize is the inbound uint32 length prefix.
const lengthPrefixSize = 4

// MaxFrameSize bounds a single inbound request frame; the daemon is
// trusted, but a corrupt length prefix should not make the worker try to
// allocate an unbounded buffer.
const MaxFrameSize = 64 << 20

var ErrFrameTooLarge = errors.New("engine: inbound frame exceeds MaxFrameSize")

// workerPayloadHeaderSize is the outbound fixed header: 1 byte keepAlive
// flag, 7 bytes padding (kept explicit rather than relying on struct
// layout, since this header crosses a process boundary), 8 bytes
// contentLength (little-endian uint64). contentLength is the byte count
// of headers+body that follows -- NOT the HTTP content-length header.
const workerPayloadHeaderSize = 16

// InboundReader accumulates one length-prefixed request frame across
// however many Continue calls it takes. spec.md 4.5 describes "a short
// read returns via timeout and is retried" -- a caller reading on a
// socket with a receive timeout (so the idle watchdog tick can run) may
// see a timeout error partway through the length prefix or the body.
// InboundReader keeps the bytes already consumed so the next Continue
// call resumes exactly where the last one left off, instead of the
// stream's framing getting permanently desynced by discarding progress
// and re-reading a length prefix from what is now a mid-payload offset.
type InboundReader struct {
	lenBuf    [lengthPrefixSize]byte
	lenFilled int
	haveLen   bool

	body       []byte
	bodyFilled int
}

// NewInboundReader returns an InboundReader ready to accumulate its first
// frame.
func NewInboundReader() *InboundReader {
	return &InboundReader{}
}

// Continue attempts to make progress reading one frame from r into dst.
// It returns nil only once dst holds a complete frame, at which point the
// reader is reset and ready for the next one. Any other error (including
// a caller's read-timeout sentinel) is returned as-is with the reader's
// internal progress left intact, so the next Continue call resumes
// mid-length-prefix or mid-body rather than starting over.
func (ir *InboundReader) Continue(r io.Reader, dst *buffer.Buffer) error {
	if !ir.haveLen {
		for ir.lenFilled < lengthPrefixSize {
			n, err := r.Read(ir.lenBuf[ir.lenFilled:])
			ir.lenFilled += n
			if err != nil {
				return err
			}
		}
		length := binary.LittleEndian.Uint32(ir.lenBuf[:])
		if length > MaxFrameSize {
			ir.reset()
			return ErrFrameTooLarge
		}
		ir.haveLen = true
		ir.body = make([]byte, length)
		ir.bodyFilled = 0
	}

	for ir.bodyFilled < len(ir.body) {
		n, err := r.Read(ir.body[ir.bodyFilled:])
		ir.bodyFilled += n
		if err != nil {
			return err
		}
	}

	dst.Clear()
	dst.Reserve(len(ir.body))
	dst.Append(ir.body)
	ir.reset()
	return nil
}

func (ir *InboundReader) reset() {
	ir.lenFilled = 0
	ir.haveLen = false
	ir.body = nil
	ir.bodyFilled = 0
}

// ReadInboundFrame reads one length-prefixed request frame from r into
// dst in a single call, growing dst as needed. It blocks until the full
// frame has arrived or r returns an error; it does not retry across
// timeouts itself -- callers that need the 1-second idle tick (spec.md
// 4.5) should keep their own InboundReader across calls instead (see
// worker.Worker), so a timeout mid-frame resumes rather than restarts.
func ReadInboundFrame(r io.Reader, dst *buffer.Buffer) error {
	return NewInboundReader().Continue(r, dst)
}

// WriteOutboundFrame writes the fixed WorkerPayload header followed by
// headers then body to w, per spec.md 4.7. keepAlive and the combined
// headers+body length are encoded in the header; contentLength there is
// this frame's payload size, not the HTTP Content-Length header inside
// headers.
func WriteOutboundFrame(w io.Writer, keepAlive bool, headers, body []byte) error {
	var header [workerPayloadHeaderSize]byte
	if keepAlive {
		header[0] = 1
	}
	contentLength := uint64(len(headers) + len(body))
	binary.LittleEndian.PutUint64(header[8:], contentLength)

	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	if len(headers) > 0 {
		if _, err := w.Write(headers); err != nil {
			return err
		}
	}
	if len(body) > 0 {
		if _, err := w.Write(body); err != nil {
			return err
		}
	}
	return nil
}

// EncodeInboundFrame is the daemon-side counterpart used by refdaemon (and
// tests) to build a frame the worker's ReadInboundFrame can consume.
func EncodeInboundFrame(payload []byte) []byte {
	out := make([]byte, lengthPrefixSize+len(payload))
	binary.LittleEndian.PutUint32(out, uint32(len(payload)))
	copy(out[lengthPrefixSize:], payload)
	return out
}

// DecodeOutboundFrame is the daemon-side counterpart used by refdaemon to
// read a worker's response frame back off the socket.
func DecodeOutboundFrame(r io.Reader) (keepAlive bool, payload []byte, err error) {
	var header [workerPayloadHeaderSize]byte
	if _, err = io.ReadFull(r, header[:]); err != nil {
		return false, nil, err
	}
	keepAlive = header[0] != 0
	contentLength := binary.LittleEndian.Uint64(header[8:])

	payload = make([]byte, contentLength)
	if contentLength > 0 {
		if _, err = io.ReadFull(r, payload); err != nil {
			return false, nil, err
		}
	}
	return keepAlive, payload, nil
}
