// Package worker implements the per-worker lifecycle manager described in
// spec.md 4.5: connect to the daemon, authenticate, drop privileges, run
// the single-request-at-a-time loop, and self-terminate on idle/lifetime/
// cooling rules. It is the process that embeds a host's registered
// handlers (package router) and dispatches one HTTP request at a time,
// grounded on the teacher's Session-per-connection reuse discipline
// generalized from "one session per fd" to "one session per worker
// process".
package worker

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/user"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/m1dok/serverino/buffer"
	"github.com/m1dok/serverino/engine"
	"github.com/m1dok/serverino/protocol"
	"github.com/m1dok/serverino/router"
)

// socketConn is the duplex byte channel to the daemon spec.md 1 describes
// in the abstract. *ControlSocket implements it against a real UNIX
// socket; tests substitute an in-memory pipe.
type socketConn interface {
	io.Reader
	io.Writer
	io.Closer
	SetReadTimeout(d time.Duration) error
}

// FatalError wraps a startup failure that must abort the worker before it
// begins serving -- spec.md 7's "fatal errors (user/group resolution
// failure) abort the worker before it begins serving".
type FatalError struct {
	Cause error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("worker: fatal startup error: %v", e.Cause)
}

func (e *FatalError) Unwrap() error {
	return e.Cause
}

// Worker is the per-process lifecycle manager. processedStartedAt and
// justSent are the shared atomics spec.md 5 requires release/acquire
// ordering across: the request loop publishes processedStartedAt on
// entry to dispatch and clears it on exit, both with release semantics;
// the watchdog goroutine reads it with acquire semantics. justSent is the
// compare-and-set guard ensuring at most one response is ever emitted per
// request (invariant 4).
type Worker struct {
	cfg      Config
	registry *router.Registry
	logger   zerolog.Logger

	sock socketConn

	req      *protocol.Request
	resp     *protocol.Response
	readBuf  *buffer.Buffer
	inbound  *engine.InboundReader

	startedAt          time.Time
	lastActivity       atomic.Int64 // unix nanos
	processedStartedAt atomic.Int64 // unix nanos; zero = idle
	justSent           atomic.Bool
}

// New returns a Worker ready for Run. registry must already have every
// handler the host wants registered; Run invokes its startup hooks itself.
func New(cfg Config, registry *router.Registry, logger zerolog.Logger) *Worker {
	if cfg.MaxUploadSize > 0 {
		protocol.MaxUploadSize = cfg.MaxUploadSize
	}
	return &Worker{
		cfg:      cfg,
		registry: registry,
		logger:   logger,
		req:      protocol.NewRequest(),
		resp:     protocol.NewResponse(),
		readBuf:  buffer.New(4096),
		inbound:  engine.NewInboundReader(),
	}
}

// Run executes the full lifecycle from spec.md 4.5: connect, ack, drop
// privileges, redirect stdin, run startup hooks, spawn the watchdog, and
// enter the request loop. It returns nil when the worker has decided to
// self-terminate cleanly; fatal startup errors return a *FatalError, and a
// control-socket read error is returned as-is.
func (w *Worker) Run() error {
	w.startedAt = time.Now()
	w.lastActivity.Store(w.startedAt.UnixNano())

	sock, err := DialControlSocket(w.cfg.SocketAddr)
	if err != nil {
		return &FatalError{Cause: fmt.Errorf("dial control socket: %w", err)}
	}
	w.sock = sock

	if err := w.sock.SetReadTimeout(time.Second); err != nil {
		return &FatalError{Cause: fmt.Errorf("set receive timeout: %w", err)}
	}

	if _, err := w.sock.Write([]byte{1}); err != nil {
		return &FatalError{Cause: fmt.Errorf("send ack: %w", err)}
	}

	if err := w.dropPrivileges(); err != nil {
		return &FatalError{Cause: err}
	}
	w.warnIfRoot()

	if err := redirectStdinToNull(); err != nil {
		w.logger.Warn().Err(err).Msg("could not redirect stdin to null device")
	}

	w.registry.RunStartupHooks()

	watchdog := &Watchdog{worker: w}
	go watchdog.Run()

	return w.requestLoop()
}

// dropPrivileges resolves the configured group then user and changes to
// them, in that order (spec.md 4.5 step 4). Resolution failure is fatal.
func (w *Worker) dropPrivileges() error {
	if w.cfg.Group != "" {
		g, err := user.LookupGroup(w.cfg.Group)
		if err != nil {
			return fmt.Errorf("resolve group %q: %w", w.cfg.Group, err)
		}
		gid, err := strconv.Atoi(g.Gid)
		if err != nil {
			return fmt.Errorf("group %q has non-numeric gid %q: %w", w.cfg.Group, g.Gid, err)
		}
		if err := unix.Setgid(gid); err != nil {
			return fmt.Errorf("setgid(%d): %w", gid, err)
		}
	}
	if w.cfg.User != "" {
		u, err := user.Lookup(w.cfg.User)
		if err != nil {
			return fmt.Errorf("resolve user %q: %w", w.cfg.User, err)
		}
		uid, err := strconv.Atoi(u.Uid)
		if err != nil {
			return fmt.Errorf("user %q has non-numeric uid %q: %w", w.cfg.User, u.Uid, err)
		}
		if err := unix.Setuid(uid); err != nil {
			return fmt.Errorf("setuid(%d): %w", uid, err)
		}
	}
	return nil
}

func (w *Worker) warnIfRoot() {
	if unix.Getuid() == 0 {
		w.logger.Warn().Msg("worker running as root")
	}
}

func redirectStdinToNull() error {
	null, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer null.Close()
	return unix.Dup2(int(null.Fd()), int(os.Stdin.Fd()))
}

// requestLoop is spec.md 4.5's per-iteration algorithm: reset, read a
// framed request (retrying on the 1-second idle tick, checking
// self-termination triggers each time), parse, dispatch, build headers,
// send the framed response, loop.
func (w *Worker) requestLoop() error {
	for {
		w.req.Clear()
		w.resp.Clear()
		w.justSent.Store(false)

		if err := w.readFrame(); err != nil {
			if errors.Is(err, errPeerClosed) {
				w.logger.Info().Msg("daemon closed control socket")
				w.shutdown()
				return nil
			}
			if errors.Is(err, errSelfTerminate) {
				w.shutdown()
				return nil
			}
			w.logger.Error().Err(err).Msg("control socket read failed")
			return err
		}

		w.handleRequest()
		w.lastActivity.Store(time.Now().UnixNano())
	}
}

var (
	errPeerClosed    = errors.New("worker: daemon closed connection")
	errSelfTerminate = errors.New("worker: self-termination trigger fired")
)

// readFrame blocks on the control socket until a full inbound frame has
// arrived, retrying across read timeouts and checking the self-
// termination triggers (spec.md 4.5) on each one. w.inbound carries
// whatever partial length-prefix or body bytes a prior timeout already
// consumed, so a retry resumes the frame instead of resyncing from a
// fresh length prefix against a stream that is now mid-payload.
func (w *Worker) readFrame() error {
	for {
		err := w.inbound.Continue(w.sock, w.readBuf)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrTimeout) {
			if trigger := w.shouldSelfTerminate(); trigger != "" {
				w.logger.Info().Str("trigger", trigger).Msg("self-termination")
				return errSelfTerminate
			}
			continue
		}
		if isPeerClosed(err) {
			return errPeerClosed
		}
		return err
	}
}

// shouldSelfTerminate checks the triggers spec.md 4.5 lists, in order:
// idle time, total lifetime, dynamic-worker idle time, daemon liveness.
// Socket errors are surfaced directly by readFrame instead.
func (w *Worker) shouldSelfTerminate() string {
	now := time.Now()
	idle := now.Sub(time.Unix(0, w.lastActivity.Load()))

	if idle > w.cfg.MaxWorkerIdling {
		return "idle"
	}
	if now.Sub(w.startedAt) > w.cfg.MaxWorkerLifetime {
		return "lifetime"
	}
	if w.cfg.DynamicWorker && idle > w.cfg.MaxDynamicWorkerIdling {
		return "dynamic-idle"
	}
	if !daemonAlive(w.cfg.DaemonPID) {
		return "daemon-gone"
	}
	return ""
}

func daemonAlive(pid int) bool {
	if pid <= 0 {
		return true
	}
	return unix.Kill(pid, 0) == nil
}

func isPeerClosed(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

// handleRequest parses, dispatches and sends the response for one frame
// already read into w.readBuf.
func (w *Worker) handleRequest() {
	protocol.Parse(w.readBuf.Array(), w.req)
	w.resp.HTTPVersion = w.req.HTTPVersion
	w.resp.KeepAlive = w.req.KeepAlive && w.cfg.KeepAlive
	w.applyParsingStatus()

	if w.req.ParsingStatus == protocol.StatusOK {
		w.processedStartedAt.Store(time.Now().UnixNano()) // release: publish before dispatch
		w.registry.Dispatch(w.req, w.resp)
		w.processedStartedAt.Store(0) // release: clear on exit from dispatch
	}

	w.send()
}

// applyParsingStatus maps a parse failure to the status codes spec.md 7
// specifies, short-circuiting dispatch.
func (w *Worker) applyParsingStatus() {
	switch w.req.ParsingStatus {
	case protocol.StatusInvalidRequest:
		w.resp.SetStatus(400)
		w.resp.DisableBody()
	case protocol.StatusInvalidBody:
		w.resp.SetStatus(422)
		w.resp.DisableBody()
	case protocol.StatusMaxUploadSizeExceeded:
		w.resp.SetStatus(413)
		w.resp.DisableBody()
	}

	switch w.req.Method {
	case protocol.MethodHead, protocol.MethodConnect, protocol.MethodTrace:
		w.resp.DisableBody()
	}
}

// send builds headers and writes the framed response, guarded by the
// justSent compare-and-set so a watchdog that fires in the same instant
// can never double-send (invariant 4).
func (w *Worker) send() {
	if !w.justSent.CompareAndSwap(false, true) {
		return
	}
	w.resp.BuildHeaders()
	if err := engine.WriteOutboundFrame(w.sock, w.resp.KeepAlive, w.resp.HeadersBuffer.Array(), w.resp.SendBuffer.Array()); err != nil {
		w.logger.Error().Err(err).Msg("send response frame failed")
	}
}

// shutdown runs on every self-terminating exit path (peer closed, idle,
// lifetime, daemon gone). The request loop only unlinks the previous
// request's spill files at the top of the *next* iteration; there is no
// next iteration once shutdown runs, so the last-served request's spill
// files are unlinked here instead -- otherwise invariant 5 and spec.md
// 3/5's "spill files are deleted at Request reset and at process exit"
// would not hold for the final request of a worker's life.
func (w *Worker) shutdown() {
	w.req.Clear()
	w.registry.RunShutdownHooks()
	w.sock.Close()
}
