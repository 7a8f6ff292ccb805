package types

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/chainview-network/chainview/pkg/compute"
	chaindb "github.com/chainview-network/chainview/pkg/db/chain"
	"github.com/chainview-network/chainview/pkg/redis"
	"github.com/chainview-network/chainview/pkg/state"
)

// App wires the query application: the chain event store, the formula
// registry and evaluator, the chain-state tracker and the HTTP server.
type App struct {
	ChainID   string
	ChainDB   *chaindb.DB
	Registry  *compute.Registry
	Evaluator *compute.Evaluator
	Tracker   *state.Tracker
	// RedisClient is optional; when present, block-indexed notifications
	// nudge the tracker between timer ticks.
	RedisClient *redis.Client
	Logger      *zap.Logger
	// Server represents the HTTP server instance used to handle incoming
	// client requests.
	Server *http.Server
}

// Start runs the application until the context is cancelled.
func (a *App) Start(ctx context.Context) {
	a.Tracker.Start()

	if a.RedisClient != nil {
		go a.RedisClient.ListenBlockIndexed(ctx, a.ChainID, func() {
			nudgeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := a.Tracker.Refresh(nudgeCtx); err != nil {
				a.Logger.Debug("tracker nudge failed", zap.Error(err))
			}
		})
	}

	go func() { _ = a.Server.ListenAndServe() }()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a.Tracker.Stop()

	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Logger.Error("Failed to close Redis connection", zap.Error(err))
		}
	}

	if err := a.ChainDB.Close(); err != nil {
		a.Logger.Error("Failed to close database connection", zap.Error(err))
	}

	_ = a.Server.Shutdown(shutdownCtx)
	a.Logger.Info("Query app stopped")
}
