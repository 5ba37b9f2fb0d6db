package ws

import "testing"

func TestDispatchOrderSpecificThenGeneric(t *testing.T) {
	var order []string
	h := &Handlers{
		OnText: func(msg *Message) bool {
			order = append(order, "specific")
			return true
		},
		OnGeneric: func(msg *Message) bool {
			order = append(order, "generic")
			return true
		},
	}
	h.Dispatch(&Message{Opcode: OpText, Payload: []byte("x")})

	if len(order) != 2 || order[0] != "specific" || order[1] != "generic" {
		t.Errorf("order = %v, want [specific generic]", order)
	}
}

func TestDispatchStopsWhenSpecificReturnsFalse(t *testing.T) {
	genericRan := false
	h := &Handlers{
		OnText: func(msg *Message) bool { return false },
		OnGeneric: func(msg *Message) bool {
			genericRan = true
			return true
		},
	}
	h.Dispatch(&Message{Opcode: OpText})
	if genericRan {
		t.Error("generic callback ran despite specific callback returning false")
	}
}

func TestKillIsProcessWide(t *testing.T) {
	killed, _ := Killed()
	if killed {
		t.Skip("kill flag already set by another test in this process")
	}
	Kill("test reason")
	killed, reason := Killed()
	if !killed || reason != "test reason" {
		t.Errorf("Killed() = (%v, %q), want (true, test reason)", killed, reason)
	}
}
