// Package state maintains the process-wide snapshot of the chain State
// singleton. Every request reads the snapshot instead of hitting the store,
// so the visible head advances on a timer rather than per query.
package state

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/chainview-network/chainview/pkg/compute"
	chainmodels "github.com/chainview-network/chainview/pkg/db/models/chain"
)

// refreshSchedule keeps the visible head at most ~1s stale.
const refreshSchedule = "@every 1s"

// Tracker refreshes the chain State snapshot on a timer. A Redis
// block-indexed notification can nudge it between ticks via Refresh.
type Tracker struct {
	store   compute.BlockStore
	logger  *zap.Logger
	cron    *cron.Cron
	current atomic.Pointer[chainmodels.State]
}

// NewTracker loads the initial snapshot and prepares the refresh timer.
// Start must be called to begin ticking.
func NewTracker(ctx context.Context, store compute.BlockStore, logger *zap.Logger) (*Tracker, error) {
	t := &Tracker{
		store:  store,
		logger: logger,
		cron:   cron.New(cron.WithSeconds()),
	}

	if err := t.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("initial state load: %w", err)
	}

	if _, err := t.cron.AddFunc(refreshSchedule, func() {
		refreshCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := t.Refresh(refreshCtx); err != nil {
			t.logger.Warn("state refresh failed", zap.Error(err))
		}
	}); err != nil {
		return nil, fmt.Errorf("schedule state refresh: %w", err)
	}

	return t, nil
}

// Start begins the refresh timer.
func (t *Tracker) Start() {
	t.cron.Start()
}

// Stop halts the refresh timer and waits for an in-flight refresh.
func (t *Tracker) Stop() {
	<-t.cron.Stop().Done()
}

// Refresh reloads the snapshot immediately.
func (t *Tracker) Refresh(ctx context.Context) error {
	state, err := t.store.GetState(ctx)
	if err != nil {
		return err
	}
	if state == nil {
		// The exporter has not written the singleton yet; keep whatever we
		// had.
		return nil
	}
	t.current.Store(state)
	return nil
}

// Current returns the last loaded snapshot. ok is false before the exporter
// first writes state.
func (t *Tracker) Current() (chainmodels.State, bool) {
	state := t.current.Load()
	if state == nil {
		return chainmodels.State{}, false
	}
	return *state, true
}
