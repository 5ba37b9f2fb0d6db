// Command worker is the embeddable entrypoint a host program execs once
// per worker process. It wires the ambient stack (zerolog to stderr) and
// the domain stack (router.Registry, worker.Config from env) together and
// hands off to worker.Run. A real embedding host would register its own
// handlers in place of the placeholder route below before calling Run.
package main

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/m1dok/serverino/protocol"
	"github.com/m1dok/serverino/router"
	"github.com/m1dok/serverino/worker"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Logger()

	cfg, err := worker.ConfigFromEnv(worker.DefaultConfig())
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid worker environment")
	}

	registry := router.NewRegistry(logger)
	registry.Register("health", 0, []router.Predicate{router.Equals("/health")}, func(req *protocol.Request, resp *protocol.Response) {
		resp.WriteString("ok")
	})

	w := worker.New(cfg, registry, logger)
	if err := w.Run(); err != nil {
		logger.Fatal().Err(err).Msg("worker exited with error")
	}
}
