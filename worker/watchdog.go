package worker

import (
	"os"
	"time"

	"github.com/m1dok/serverino/engine"
	"github.com/m1dok/serverino/protocol"
)

// exitFunc is os.Exit by default; watchdog_test.go substitutes it so
// fire()'s win path can be exercised without killing the test binary.
var exitFunc = os.Exit

// Watchdog is the low-priority background monitor from spec.md 4.6. It
// observes processedStartedAt and, once a request has run longer than
// maxRequestTime, races the main loop for the right to answer: whichever
// side wins the justSent compare-and-set sends the response, the loser
// does nothing. A win here always means the watchdog sends a synthetic
// 504 and force-exits the process.
type Watchdog struct {
	worker *Worker
}

// Run ticks once a second for the lifetime of the worker process. It
// never returns under normal operation -- either the worker exits on its
// own request-loop path first, or the watchdog fires and exits the
// process itself.
func (wd *Watchdog) Run() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		started := wd.worker.processedStartedAt.Load() // acquire
		if started == 0 {
			continue
		}
		elapsed := time.Since(time.Unix(0, started))
		if elapsed <= wd.worker.cfg.MaxRequestTime {
			continue
		}
		if wd.fire() {
			return
		}
	}
}

// fire attempts to win the race to answer a timed-out request. It
// reports whether it won (and therefore the process is about to exit).
func (wd *Watchdog) fire() bool {
	w := wd.worker
	if !w.justSent.CompareAndSwap(false, true) {
		return false
	}

	w.logger.Warn().Dur("max_request_time", w.cfg.MaxRequestTime).Msg("watchdog fired")

	resp := protocol.NewResponse()
	resp.HTTPVersion = protocol.HTTP11
	resp.KeepAlive = false
	resp.SetStatus(504)
	resp.DisableBody()
	resp.BuildHeaders()

	if err := engine.WriteOutboundFrame(w.sock, false, resp.HeadersBuffer.Array(), resp.SendBuffer.Array()); err != nil {
		w.logger.Error().Err(err).Msg("watchdog failed to send 504")
	}
	w.sock.Close()
	exitFunc(0)
	return true
}
