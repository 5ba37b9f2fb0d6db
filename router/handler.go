// Package router implements the handler registry and dispatcher described
// in spec.md 4.4: handlers register themselves explicitly (the source
// language used reflection over annotated symbols; this reformulates that
// as an explicit registration step per SPEC_FULL.md 9), the dispatcher
// orders them by priority and walks them until one dirties the response.
package router

import (
	"github.com/m1dok/serverino/protocol"
)

// Predicate is a first-class route guard: (Request) -> bool. Route
// equality is just a predicate closure comparing URI to a literal.
type Predicate func(req *protocol.Request) bool

// Equals returns a Predicate matching an exact URI.
func Equals(uri string) Predicate {
	return func(req *protocol.Request) bool {
		return req.URI == uri
	}
}

// HandlerFunc is the uniform closure type every registered handler is
// adapted to, regardless of which parameter shape the caller registered
// with -- (Request,Response), (Request,) or (Response,) in spec.md 4.4's
// source vocabulary.
type HandlerFunc func(req *protocol.Request, resp *protocol.Response)

// Tagged marks a handler as an explicit endpoint, eligible for ordered
// dispatch. Untagged handlers are the single-fallback-only population
// described in spec.md 4.4.
type Descriptor struct {
	ID         string
	Priority   int
	Predicates []Predicate
	Fn         HandlerFunc
	Tagged     bool

	order int // declaration order, used to break priority ties stably
}

// accepts reports whether d's predicates allow req through. No predicates
// means "always accept". With predicates present, the handler is skipped
// only when every predicate returns false -- spec.md 4.4's "route
// predicates (if any) must all be false to skip".
func (d *Descriptor) accepts(req *protocol.Request) bool {
	if len(d.Predicates) == 0 {
		return true
	}
	for _, p := range d.Predicates {
		if p(req) {
			return true
		}
	}
	return false
}

// FromRequestAndResponse adapts a (Request,Response) handler -- the
// identity adapter, since HandlerFunc already has this shape.
func FromRequestAndResponse(fn func(req *protocol.Request, resp *protocol.Response)) HandlerFunc {
	return fn
}

// FromRequestOnly adapts a handler that only reads the Request.
func FromRequestOnly(fn func(req *protocol.Request)) HandlerFunc {
	return func(req *protocol.Request, resp *protocol.Response) {
		fn(req)
	}
}

// FromResponseOnly adapts a handler that only writes the Response.
func FromResponseOnly(fn func(resp *protocol.Response)) HandlerFunc {
	return func(req *protocol.Request, resp *protocol.Response) {
		fn(resp)
	}
}
