package state_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/chainview-network/chainview/pkg/compute/computetest"
	chainmodels "github.com/chainview-network/chainview/pkg/db/models/chain"
	"github.com/chainview-network/chainview/pkg/state"
)

func TestTrackerLoadsInitialState(t *testing.T) {
	store := computetest.NewStore()
	store.State = &chainmodels.State{ChainID: "test-1", LatestBlockHeight: 42, LatestBlockTimeUnixMs: 42_000}

	tracker, err := state.NewTracker(context.Background(), store, zaptest.NewLogger(t))
	require.NoError(t, err)

	current, ok := tracker.Current()
	require.True(t, ok)
	assert.Equal(t, "test-1", current.ChainID)
	assert.Equal(t, uint64(42), current.LatestBlockHeight)
	assert.Equal(t, uint64(42), current.LatestBlock().Height)
}

func TestTrackerRefreshAdvances(t *testing.T) {
	store := computetest.NewStore()
	store.State = &chainmodels.State{ChainID: "test-1", LatestBlockHeight: 42, LatestBlockTimeUnixMs: 42_000}

	tracker, err := state.NewTracker(context.Background(), store, zaptest.NewLogger(t))
	require.NoError(t, err)

	store.State = &chainmodels.State{ChainID: "test-1", LatestBlockHeight: 43, LatestBlockTimeUnixMs: 43_000}
	require.NoError(t, tracker.Refresh(context.Background()))

	current, ok := tracker.Current()
	require.True(t, ok)
	assert.Equal(t, uint64(43), current.LatestBlockHeight)
}

func TestTrackerBeforeFirstExport(t *testing.T) {
	store := computetest.NewStore()

	tracker, err := state.NewTracker(context.Background(), store, zaptest.NewLogger(t))
	require.NoError(t, err)

	_, ok := tracker.Current()
	assert.False(t, ok)

	// A later refresh picks the state up once the exporter writes it.
	store.State = &chainmodels.State{ChainID: "test-1", LatestBlockHeight: 1, LatestBlockTimeUnixMs: 1_000}
	require.NoError(t, tracker.Refresh(context.Background()))
	_, ok = tracker.Current()
	assert.True(t, ok)
}
