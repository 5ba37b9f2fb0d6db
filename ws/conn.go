package ws

import (
	"io"
	"sync/atomic"
)

// State is the WebSocket connection state machine from spec.md 4.8:
// OPEN -> (CLOSE-sent or CLOSE-received) -> CLOSED.
type State int32

const (
	StateOpen State = iota
	StateClosing
	StateClosed
)

// killFlag and killReason are process-wide: a worker serves exactly one
// socket at a time (spec.md 5), so there is never a cross-worker race to
// guard against, and module-level state mirrors the source's own global
// "kill" flag (spec.md 9) rather than threading a struct field through
// every call site.
var (
	killFlag   atomic.Bool
	killReason atomic.Value // string
)

// Kill marks the process-wide WebSocket state as dying, recording reason
// for diagnostics. Once set it is never cleared -- a worker that dies is
// replaced, not revived.
func Kill(reason string) {
	killReason.Store(reason)
	killFlag.Store(true)
}

// Killed reports whether Kill has been called and, if so, why.
func Killed() (bool, string) {
	if !killFlag.Load() {
		return false, ""
	}
	reason, _ := killReason.Load().(string)
	return true, reason
}

// Conn wraps a socket with the send-side leftover buffer spec.md 4.8 and 5
// require: a partial write on a non-blocking socket retains its unsent
// tail instead of losing it, and the next Send (or an explicit Flush)
// drains it before sending anything new.
type Conn struct {
	w        io.Writer
	leftover []byte
	state    State
}

// NewConn wraps w (typically a non-blocking net.Conn) for framed sends.
func NewConn(w io.Writer) *Conn {
	return &Conn{w: w, state: StateOpen}
}

func (c *Conn) State() State {
	return State(atomic.LoadInt32((*int32)(&c.state)))
}

func (c *Conn) setState(s State) {
	atomic.StoreInt32((*int32)(&c.state), int32(s))
}

// Flush attempts to drain any leftover bytes from a previous partial send.
// It reports the number of leftover bytes still unsent after the attempt.
func (c *Conn) Flush() (remaining int, err error) {
	if len(c.leftover) == 0 {
		return 0, nil
	}
	n, err := c.w.Write(c.leftover)
	if n > 0 {
		c.leftover = c.leftover[n:]
	}
	return len(c.leftover), err
}

// Send writes frame, queuing any unsent tail in the leftover buffer rather
// than blocking or dropping it. partial reports whether the full frame
// was not written in this call (either because leftover bytes from a
// previous Send remained, or because this Send's own write came up
// short).
func (c *Conn) Send(frame []byte) (written int, partial bool, err error) {
	if remaining, ferr := c.Flush(); remaining > 0 || ferr != nil {
		c.leftover = append(c.leftover, frame...)
		return 0, true, ferr
	}

	n, werr := c.w.Write(frame)
	if n < len(frame) {
		c.leftover = append(c.leftover, frame[n:]...)
		return n, true, werr
	}
	return n, false, werr
}

// SendText frames and sends a text message, masked per masked.
func (c *Conn) SendText(payload []byte, masked bool) (int, bool, error) {
	return c.Send(EncodeFrame(true, OpText, payload, masked))
}

// SendBinary frames and sends a binary message.
func (c *Conn) SendBinary(payload []byte, masked bool) (int, bool, error) {
	return c.Send(EncodeFrame(true, OpBinary, payload, masked))
}

// SendPong frames and sends a PONG carrying the same payload as the PING
// it answers, unmasked -- spec.md 8 scenario 6.
func (c *Conn) SendPong(payload []byte) (int, bool, error) {
	return c.Send(EncodeFrame(true, OpPong, payload, false))
}

// SendClose transitions the connection towards StateClosed and sends a
// CLOSE frame with the given payload (typically a 2-byte status code plus
// an optional reason string).
func (c *Conn) SendClose(payload []byte, masked bool) (int, bool, error) {
	c.setState(StateClosing)
	n, partial, err := c.Send(EncodeFrame(true, OpClose, payload, masked))
	if !partial {
		c.setState(StateClosed)
	}
	return n, partial, err
}

// ReceivedClose transitions the connection to StateClosed on an inbound
// CLOSE frame.
func (c *Conn) ReceivedClose() {
	c.setState(StateClosed)
}
