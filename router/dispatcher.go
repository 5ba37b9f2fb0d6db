package router

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/m1dok/serverino/protocol"
)

// Registry holds every handler the host registered plus the startup and
// shutdown lifecycle hooks. It is built once at process start and never
// mutated again once the request loop begins; Dispatch takes the lock only
// inside ensureSorted, to sort the tagged handlers on first use.
type Registry struct {
	mu       sync.Mutex
	tagged   []*Descriptor
	untagged []*Descriptor
	startup  []func()
	shutdown []func()
	sorted   bool

	Logger zerolog.Logger
}

// NewRegistry returns an empty Registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{Logger: logger}
}

// Register adds a tagged endpoint handler. priority 0 is the default;
// higher priority handlers are considered first. Ties resolve by
// declaration order.
func (r *Registry) Register(id string, priority int, predicates []Predicate, fn HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tagged = append(r.tagged, &Descriptor{
		ID:         id,
		Priority:   priority,
		Predicates: predicates,
		Fn:         fn,
		Tagged:     true,
		order:      len(r.tagged) + len(r.untagged),
	})
	r.sorted = false
}

// RegisterUntagged adds a fallback handler. It only ever runs when the
// registry has no tagged handlers and exactly one untagged handler was
// registered -- spec.md 4.4's "allowed only when no tagged handlers
// exist, and only if exactly one untagged candidate is present".
func (r *Registry) RegisterUntagged(id string, fn HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.untagged = append(r.untagged, &Descriptor{
		ID:     id,
		Fn:     fn,
		Tagged: false,
		order:  len(r.tagged) + len(r.untagged),
	})
}

// OnStartup registers a hook run once before the request loop begins.
func (r *Registry) OnStartup(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.startup = append(r.startup, fn)
}

// OnShutdown registers a hook run on any self-terminating exit path, but
// never on a timeout-forced exit from the watchdog (spec.md 4.4).
func (r *Registry) OnShutdown(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shutdown = append(r.shutdown, fn)
}

// RunStartupHooks invokes every startup hook in registration order.
func (r *Registry) RunStartupHooks() {
	for _, fn := range r.startup {
		fn()
	}
}

// RunShutdownHooks invokes every shutdown hook in registration order.
func (r *Registry) RunShutdownHooks() {
	for _, fn := range r.shutdown {
		fn()
	}
}

func (r *Registry) ensureSorted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sorted {
		return
	}
	sort.SliceStable(r.tagged, func(i, j int) bool {
		if r.tagged[i].Priority != r.tagged[j].Priority {
			return r.tagged[i].Priority > r.tagged[j].Priority
		}
		return r.tagged[i].order < r.tagged[j].order
	})
	r.sorted = true
}

// candidates returns the ordered population to dispatch against: tagged
// handlers sorted by priority, or the single untagged fallback.
func (r *Registry) candidates() []*Descriptor {
	r.ensureSorted()
	if len(r.tagged) > 0 {
		return r.tagged
	}
	if len(r.untagged) == 1 {
		return r.untagged
	}
	return nil
}

// Dispatch walks the eligible handler population in order, invoking each
// whose predicates accept req, stopping once a handler dirties resp. A
// handler panic is caught, resp is reset to 500 with the body suppressed,
// dispatch stops, and the pre-error keep-alive decision is kept --
// spec.md 4.4's "error propagation from user handlers".
func (r *Registry) Dispatch(req *protocol.Request, resp *protocol.Response) {
	preErrorKeepAlive := resp.KeepAlive

	for _, d := range r.candidates() {
		if !d.accepts(req) {
			continue
		}
		req.ObserveRoute(d.ID)

		if r.invoke(d, req, resp) {
			resp.SetStatus(500)
			resp.DisableBody()
			resp.KeepAlive = preErrorKeepAlive
			return
		}
		if resp.Dirty() {
			return
		}
	}
}

// invoke calls d.Fn, recovering from any panic and reporting whether one
// occurred.
func (r *Registry) invoke(d *Descriptor, req *protocol.Request, resp *protocol.Response) (panicked bool) {
	defer func() {
		if rec := recover(); rec != nil {
			panicked = true
			r.Logger.Error().
				Str("handler", d.ID).
				Str("uri", req.URI).
				Interface("panic", rec).
				Msg("handler panic")
		}
	}()
	d.Fn(req, resp)
	return false
}
