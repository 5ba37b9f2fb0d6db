package router

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/m1dok/serverino/protocol"
)

func newTestRegistry() *Registry {
	return NewRegistry(zerolog.Nop())
}

func TestDispatchStopsAtFirstDirtyHandler(t *testing.T) {
	reg := newTestRegistry()
	var calls []string

	reg.Register("first", 0, nil, func(req *protocol.Request, resp *protocol.Response) {
		calls = append(calls, "first")
		resp.WriteString("first")
	})
	reg.Register("second", 0, nil, func(req *protocol.Request, resp *protocol.Response) {
		calls = append(calls, "second")
	})

	req := protocol.NewRequest()
	resp := protocol.NewResponse()
	reg.Dispatch(req, resp)

	if len(calls) != 1 || calls[0] != "first" {
		t.Errorf("calls = %v, want [first]", calls)
	}
}

func TestDispatchOrdersByPriorityThenDeclaration(t *testing.T) {
	reg := newTestRegistry()
	var order []string

	reg.Register("low", 0, nil, func(req *protocol.Request, resp *protocol.Response) {
		order = append(order, "low")
	})
	reg.Register("high", 10, nil, func(req *protocol.Request, resp *protocol.Response) {
		order = append(order, "high")
	})
	reg.Register("mid", 5, nil, func(req *protocol.Request, resp *protocol.Response) {
		order = append(order, "mid")
	})
	reg.Register("mid2", 5, nil, func(req *protocol.Request, resp *protocol.Response) {
		order = append(order, "mid2")
	})

	req := protocol.NewRequest()
	resp := protocol.NewResponse()
	reg.Dispatch(req, resp)

	want := []string{"high", "mid", "mid2", "low"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestPredicateOrSemantics(t *testing.T) {
	reg := newTestRegistry()
	ran := false
	reg.Register("conditional", 0, []Predicate{
		func(req *protocol.Request) bool { return false },
		Equals("/match"),
	}, func(req *protocol.Request, resp *protocol.Response) {
		ran = true
		resp.WriteString("ok")
	})

	req := protocol.NewRequest()
	req.URI = "/nomatch"
	resp := protocol.NewResponse()
	reg.Dispatch(req, resp)
	if ran {
		t.Error("handler ran despite all predicates false")
	}

	req.URI = "/match"
	resp2 := protocol.NewResponse()
	reg.Dispatch(req, resp2)
	if !ran {
		t.Error("handler did not run with one predicate true")
	}
}

func TestUntaggedFallbackOnlyWithSingleCandidate(t *testing.T) {
	reg := newTestRegistry()
	ran := false
	reg.RegisterUntagged("fallback", func(req *protocol.Request, resp *protocol.Response) {
		ran = true
	})

	req := protocol.NewRequest()
	resp := protocol.NewResponse()
	reg.Dispatch(req, resp)
	if !ran {
		t.Error("single untagged handler should run as fallback")
	}
}

func TestUntaggedFallbackSkippedWithMultipleCandidates(t *testing.T) {
	reg := newTestRegistry()
	ran := false
	reg.RegisterUntagged("a", func(req *protocol.Request, resp *protocol.Response) { ran = true })
	reg.RegisterUntagged("b", func(req *protocol.Request, resp *protocol.Response) { ran = true })

	req := protocol.NewRequest()
	resp := protocol.NewResponse()
	reg.Dispatch(req, resp)
	if ran {
		t.Error("untagged fallback ran despite multiple untagged candidates")
	}
}

func TestUntaggedFallbackSkippedWhenTaggedExist(t *testing.T) {
	reg := newTestRegistry()
	taggedRan, untaggedRan := false, false
	reg.Register("tagged", 0, nil, func(req *protocol.Request, resp *protocol.Response) {
		taggedRan = true
		resp.WriteString("x")
	})
	reg.RegisterUntagged("fallback", func(req *protocol.Request, resp *protocol.Response) {
		untaggedRan = true
	})

	req := protocol.NewRequest()
	resp := protocol.NewResponse()
	reg.Dispatch(req, resp)
	if !taggedRan || untaggedRan {
		t.Errorf("taggedRan=%v untaggedRan=%v, want true/false", taggedRan, untaggedRan)
	}
}

func TestDispatchRecoversPanicAnd500s(t *testing.T) {
	reg := newTestRegistry()
	reg.Register("boom", 0, nil, func(req *protocol.Request, resp *protocol.Response) {
		panic("boom")
	})

	req := protocol.NewRequest()
	resp := protocol.NewResponse()
	resp.KeepAlive = true
	reg.Dispatch(req, resp)

	if resp.Status != 500 {
		t.Errorf("Status = %d, want 500", resp.Status)
	}
	if resp.SendBody {
		t.Error("SendBody = true, want false after panic")
	}
	if !resp.KeepAlive {
		t.Error("KeepAlive should be retained from before the panic")
	}
}

func TestObservedRouteRecorded(t *testing.T) {
	reg := newTestRegistry()
	reg.Register("seen", 0, nil, func(req *protocol.Request, resp *protocol.Response) {})
	req := protocol.NewRequest()
	resp := protocol.NewResponse()
	reg.Dispatch(req, resp)

	if len(req.Route) != 1 || req.Route[0] != "seen" {
		t.Errorf("Route = %v, want [seen]", req.Route)
	}
}
