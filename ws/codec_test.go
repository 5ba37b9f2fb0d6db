package ws

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestEncodeDecodeRoundTripRandomPayload(t *testing.T) {
	for trial := 0; trial < 20; trial++ {
		n := rand.Intn(200000)
		payload := make([]byte, n)
		rand.Read(payload)
		masked := trial%2 == 0

		frame := EncodeFrame(true, OpBinary, payload, masked)

		dec := NewDecoder()
		dec.Feed(frame)
		msg, err := dec.Next()
		if err != nil {
			t.Fatalf("trial %d: Next() error = %v", trial, err)
		}
		if msg == nil {
			t.Fatalf("trial %d: expected a message", trial)
		}
		if msg.Opcode != OpBinary {
			t.Errorf("trial %d: Opcode = %v, want OpBinary", trial, msg.Opcode)
		}
		if !bytes.Equal(msg.Payload, payload) {
			t.Errorf("trial %d: payload mismatch (len got %d want %d)", trial, len(msg.Payload), len(payload))
		}
	}
}

func TestDecodeFeedsIncrementally(t *testing.T) {
	payload := []byte("hello websocket")
	frame := EncodeFrame(true, OpText, payload, true)

	dec := NewDecoder()
	dec.Feed(frame[:3])
	if _, err := dec.Next(); err != ErrNeedMoreData {
		t.Fatalf("err = %v, want ErrNeedMoreData", err)
	}
	dec.Feed(frame[3:])
	msg, err := dec.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if string(msg.Payload) != string(payload) {
		t.Errorf("payload = %q, want %q", msg.Payload, payload)
	}
}

func TestFragmentedMessagePreservesFirstOpcode(t *testing.T) {
	part1 := EncodeFrame(false, OpText, []byte("hel"), false)
	part2 := EncodeFrame(true, OpContinuation, []byte("lo"), false)

	dec := NewDecoder()
	dec.Feed(part1)
	msg, err := dec.Next()
	if err != nil {
		t.Fatalf("Next() on first fragment: %v", err)
	}
	if msg != nil {
		t.Fatalf("expected no message before FIN, got %+v", msg)
	}

	dec.Feed(part2)
	msg, err = dec.Next()
	if err != nil {
		t.Fatalf("Next() on final fragment: %v", err)
	}
	if msg == nil {
		t.Fatal("expected a message after FIN")
	}
	if msg.Opcode != OpText {
		t.Errorf("Opcode = %v, want OpText (from the first fragment)", msg.Opcode)
	}
	if string(msg.Payload) != "hello" {
		t.Errorf("Payload = %q, want %q", msg.Payload, "hello")
	}
}

func TestPingAutoAnswersWithPongNotDeliveredToCallback(t *testing.T) {
	pingPayload := []byte{1, 2, 3, 4}
	frame := EncodeFrame(true, OpPing, pingPayload, true)

	var pongPayload []byte
	dec := NewDecoder()
	dec.AutoPong = func(p []byte) {
		pongPayload = append([]byte(nil), p...)
	}
	dec.Feed(frame)

	msg, err := dec.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if msg != nil {
		t.Fatalf("PING should not surface as a user message, got %+v", msg)
	}
	if !bytes.Equal(pongPayload, pingPayload) {
		t.Errorf("AutoPong payload = %v, want %v", pongPayload, pingPayload)
	}
}

func TestEncodeLengthThresholds(t *testing.T) {
	small := EncodeFrame(true, OpBinary, make([]byte, 10), false)
	if small[1] != 10 {
		t.Errorf("small frame length byte = %d, want 10", small[1])
	}

	medium := EncodeFrame(true, OpBinary, make([]byte, 200), false)
	if medium[1] != len16 {
		t.Errorf("medium frame length byte = %d, want %d", medium[1], len16)
	}

	large := EncodeFrame(true, OpBinary, make([]byte, 70000), false)
	if large[1] != len64 {
		t.Errorf("large frame length byte = %d, want %d", large[1], len64)
	}
}

func TestConnPartialSendBuffersLeftover(t *testing.T) {
	fw := &flakyWriter{allow: 5}
	c := NewConn(fw)
	frame := []byte("0123456789")

	n, partial, err := c.Send(frame)
	if err != nil {
		t.Fatalf("Send error = %v", err)
	}
	if !partial || n != 5 {
		t.Fatalf("n=%d partial=%v, want n=5 partial=true", n, partial)
	}

	fw.allow = 100
	remaining, err := c.Flush()
	if err != nil {
		t.Fatalf("Flush error = %v", err)
	}
	if remaining != 0 {
		t.Errorf("remaining = %d, want 0", remaining)
	}
	if fw.written.String() != "0123456789" {
		t.Errorf("written = %q, want full frame eventually written", fw.written.String())
	}
}

// flakyWriter only accepts up to allow bytes per Write call, to exercise
// the leftover-buffering path without needing a real non-blocking socket.
type flakyWriter struct {
	allow   int
	written bytes.Buffer
}

func (f *flakyWriter) Write(p []byte) (int, error) {
	n := len(p)
	if n > f.allow {
		n = f.allow
	}
	f.written.Write(p[:n])
	return n, nil
}
