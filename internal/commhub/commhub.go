package commhub

import (
	"context"
	"fmt"
	"time"

	"github.com/autopeer-io/commhub/internal/commhub/server"
	"github.com/autopeer-io/commhub/internal/communication"
	"github.com/autopeer-io/commhub/pkg/log"
)

const stopTimeout = 30 * time.Second

type CommHub struct {
	subsystem     *communication.Subsystem
	serverManager *server.Manager
}

// Subsystem exposes the assembled subsystem, mainly for inspection commands.
func (h *CommHub) Subsystem() *communication.Subsystem { return h.subsystem }

// Run starts the subsystem, serves until ctx is done and then stops the
// subsystem in reverse order. Connections opened at start outlive ctx so
// in-flight deliveries can finish during Stop.
func (h *CommHub) Run(ctx context.Context) error {
	runCtx := context.WithoutCancel(ctx)

	log.Info("Starting device communication subsystem")
	if err := h.subsystem.Start(runCtx); err != nil {
		return fmt.Errorf("failed to start device communication: %w", err)
	}
	h.serverManager.SetServing(true)

	serveErr := h.serverManager.Start(ctx)
	if serveErr != nil {
		log.Error(serveErr, "Server manager exited")
	}

	log.Info("Shutdown signal received, stopping device communication...")
	h.serverManager.SetServing(false)

	stopCtx, cancel := context.WithTimeout(runCtx, stopTimeout)
	defer cancel()
	if err := h.subsystem.Stop(stopCtx); err != nil {
		log.Error(err, "Device communication did not stop cleanly")
		if serveErr == nil {
			return err
		}
	}

	log.Info("cpeer-commhub stopped gracefully.")
	return serveErr
}
