package ws

// Callback receives one decoded message and returns whether dispatch
// should propagate to the next callback in line.
type Callback func(msg *Message) (propagate bool)

// Handlers holds the per-opcode and generic callbacks a worker registers
// for a WebSocket connection. Dispatch order is specific-opcode callback
// first, then the generic callback; propagation stops at the first
// callback that returns false (spec.md 4.8).
type Handlers struct {
	OnText    Callback
	OnBinary  Callback
	OnClose   Callback
	OnGeneric Callback
}

// Dispatch runs msg through h in the order spec.md 4.8 specifies. PING
// frames never reach here -- the Decoder hands them to its AutoPong hook
// and never produces a Message for them.
func (h *Handlers) Dispatch(msg *Message) {
	specific := h.specificFor(msg.Opcode)
	if specific != nil {
		if !specific(msg) {
			return
		}
	}
	if h.OnGeneric != nil {
		h.OnGeneric(msg)
	}
}

func (h *Handlers) specificFor(op Opcode) Callback {
	switch op {
	case OpText:
		return h.OnText
	case OpBinary:
		return h.OnBinary
	case OpClose:
		return h.OnClose
	default:
		return nil
	}
}
