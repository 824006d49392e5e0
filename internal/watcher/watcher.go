// Package watcher drives the agent's periodic background synchronization.
package watcher

import (
	"context"
	"log"
	"time"

	"github.com/motium/motium-sync/internal/config"
	"github.com/motium/motium-sync/internal/service"
)

type Watcher struct {
	cfg         *config.Config
	coordinator *service.SyncCoordinator
	logger      *log.Logger
}

func New(cfg *config.Config, coordinator *service.SyncCoordinator, logger *log.Logger) *Watcher {
	if logger == nil {
		logger = log.Default()
	}
	return &Watcher{
		cfg:         cfg,
		coordinator: coordinator,
		logger:      logger,
	}
}

// Start runs an initial pass over every entity type, then keeps syncing on
// the poll interval until the context is canceled. Overlap with other
// triggers is harmless: the coordinator's per-type guard turns concurrent
// passes into no-ops.
func (w *Watcher) Start(ctx context.Context) error {
	w.logger.Println("Starting sync watcher...")

	w.coordinator.SyncAll(ctx)

	ticker := time.NewTicker(time.Duration(w.cfg.PollInterval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Println("Sync watcher shutting down...")
			return ctx.Err()
		case <-ticker.C:
			w.coordinator.SyncAll(ctx)
		}
	}
}
