package compute_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainview-network/chainview/pkg/compute"
	"github.com/chainview-network/chainview/pkg/compute/computetest"
	chainmodels "github.com/chainview-network/chainview/pkg/db/models/chain"
)

// countingReadK wraps readK with an invocation counter so tests can assert
// whether the formula actually ran.
func countingReadK(invocations *atomic.Int64) *compute.Formula {
	base := readK()
	return &compute.Formula{
		Type: base.Type,
		Name: base.Name,
		Compute: func(ctx context.Context, env *compute.Env) (any, error) {
			invocations.Add(1)
			return base.Compute(ctx, env)
		},
	}
}

func seedStoredRange(t *testing.T, ev *compute.Evaluator, formula *compute.Formula, store *computetest.Store, start, end, head uint64) []compute.Result {
	t.Helper()
	results, err := ev.ComputeRangeWithCache(context.Background(), compute.RangeRequest{
		Formula:           formula,
		TargetAddress:     contractA,
		BlockStart:        blockAt(start),
		BlockEnd:          blockAt(end),
		LatestBlockHeight: head,
	})
	require.NoError(t, err)
	require.NotEmpty(t, store.StoredComputations())
	return results
}

// TestUpdateValidityMonotonic checks that validity only moves forward, and
// only when no dependency changed inside the extension window.
func TestUpdateValidityMonotonic(t *testing.T) {
	store := computetest.NewStore()
	seedRangeScenario(store)
	ev := newEvaluator(t, store, compute.CodeIDConfig{})

	comp := &chainmodels.Computation{
		TargetAddress:          contractA,
		FormulaType:            string(compute.FormulaTypeContract),
		FormulaName:            "readK",
		ArgsHash:               compute.ArgsHash("{}"),
		BlockHeight:            10,
		BlockTimeUnixMs:        10_000,
		Output:                 `"1"`,
		DepEventKeys:           []string{"wasm_state:contractA:" + hexKey("k")},
		DepEventPrefixes:       []uint8{0},
		LatestBlockHeightValid: 15,
	}

	// A dependency row exists at 20, so extension to 25 must fail and leave
	// the record untouched.
	ok, err := ev.UpdateValidity(context.Background(), comp, 25)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, uint64(15), comp.LatestBlockHeightValid)

	// Extension inside the quiet window succeeds.
	ok, err = ev.UpdateValidity(context.Background(), comp, 19)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(19), comp.LatestBlockHeightValid)

	// A lower target never decreases validity.
	ok, err = ev.UpdateValidity(context.Background(), comp, 12)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(19), comp.LatestBlockHeightValid)
}

// TestComputeWithCacheExtends checks that a second request at a
// later block extends the stored record and returns the cached value
// without re-invoking the formula.
func TestComputeWithCacheExtends(t *testing.T) {
	store := computetest.NewStore()
	seedScenario(store)
	for _, h := range []uint64{10, 20, 30, 100, 150} {
		store.Blocks = append(store.Blocks, blockAt(h))
	}
	var invocations atomic.Int64
	formula := countingReadK(&invocations)
	ev := newEvaluator(t, store, compute.CodeIDConfig{})

	// Seed a stored computation anchored at 100 via a range query.
	seedStoredRange(t, ev, formula, store, 100, 100, 100)
	seeded := invocations.Load()
	require.Greater(t, seeded, int64(0))

	// No dependency changed in (100, 150]: the second request reuses and
	// extends the stored record.
	res, cached, err := ev.ComputeWithCache(context.Background(), compute.ComputeRequest{
		Formula:           formula,
		TargetAddress:     contractA,
		Block:             blockAt(150),
		LatestBlockHeight: 150,
	})
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, seeded, invocations.Load(), "formula must not re-run")
	assert.Equal(t, "3", rawValue(t, res.Value))
	assert.GreaterOrEqual(t, res.LatestBlockHeightValid, uint64(150))

	stored := store.StoredComputations()
	require.Len(t, stored, 1)
	assert.GreaterOrEqual(t, stored[0].LatestBlockHeightValid, uint64(150))
}

// TestComputeWithCacheRecomputesAfterChange verifies the fresh result is
// not persisted: single-block persistence stays disabled.
func TestComputeWithCacheRecomputesAfterChange(t *testing.T) {
	store := computetest.NewStore()
	seedScenario(store)
	for _, h := range []uint64{10, 20, 30} {
		store.Blocks = append(store.Blocks, blockAt(h))
	}
	var invocations atomic.Int64
	formula := countingReadK(&invocations)
	ev := newEvaluator(t, store, compute.CodeIDConfig{})

	seedStoredRange(t, ev, formula, store, 10, 10, 10)
	storedBefore := len(store.StoredComputations())
	seeded := invocations.Load()

	// The write at 20 invalidates the stored record for a request at 25.
	res, cached, err := ev.ComputeWithCache(context.Background(), compute.ComputeRequest{
		Formula:           formula,
		TargetAddress:     contractA,
		Block:             blockAt(25),
		LatestBlockHeight: 30,
	})
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Greater(t, invocations.Load(), seeded)
	assert.Equal(t, "2", rawValue(t, res.Value))
	assert.Len(t, store.StoredComputations(), storedBefore, "single-block results are not persisted")
}

// TestRangeReuseContinuousChain verifies a fully covering stored chain is
// served without running the formula again.
func TestRangeReuseContinuousChain(t *testing.T) {
	store := computetest.NewStore()
	seedRangeScenario(store)
	var invocations atomic.Int64
	formula := countingReadK(&invocations)
	ev := newEvaluator(t, store, compute.CodeIDConfig{})

	first := seedStoredRange(t, ev, formula, store, 10, 30, 30)
	require.Len(t, first, 4)
	seeded := invocations.Load()

	second, err := ev.ComputeRangeWithCache(context.Background(), compute.RangeRequest{
		Formula:           formula,
		TargetAddress:     contractA,
		BlockStart:        blockAt(10),
		BlockEnd:          blockAt(30),
		LatestBlockHeight: 30,
	})
	require.NoError(t, err)
	assert.Equal(t, seeded, invocations.Load(), "cached chain must not re-run the formula")
	require.Len(t, second, 4)
	for i := range first {
		assert.Equal(t, first[i].Block.Height, second[i].Block.Height)
		assert.Equal(t, rawValue(t, first[i].Value), rawValue(t, second[i].Value))
	}
}

// TestRangeReuseStartEarlier verifies the first emitted piece may anchor
// before blockStart when a stored computation covers it.
func TestRangeReuseStartEarlier(t *testing.T) {
	store := computetest.NewStore()
	seedRangeScenario(store)
	var invocations atomic.Int64
	formula := countingReadK(&invocations)
	ev := newEvaluator(t, store, compute.CodeIDConfig{})

	seedStoredRange(t, ev, formula, store, 10, 30, 30)
	seeded := invocations.Load()

	results, err := ev.ComputeRangeWithCache(context.Background(), compute.RangeRequest{
		Formula:           formula,
		TargetAddress:     contractA,
		BlockStart:        blockAt(15),
		BlockEnd:          blockAt(30),
		LatestBlockHeight: 30,
	})
	require.NoError(t, err)
	assert.Equal(t, seeded, invocations.Load())
	require.NotEmpty(t, results)
	// The covering piece is anchored at 10, earlier than the requested
	// start; its validity window makes it the correct answer at 15.
	assert.Equal(t, uint64(10), results[0].Block.Height)
	assert.LessOrEqual(t, results[0].Block.Height, uint64(15))
	assert.GreaterOrEqual(t, results[0].LatestBlockHeightValid, uint64(15))
}

// TestRangeReuseExtendsTail verifies the last stored piece is extended in
// place when the requested range outgrows it and nothing changed since.
func TestRangeReuseExtendsTail(t *testing.T) {
	store := computetest.NewStore()
	seedRangeScenario(store)
	var invocations atomic.Int64
	formula := countingReadK(&invocations)
	ev := newEvaluator(t, store, compute.CodeIDConfig{})

	seedStoredRange(t, ev, formula, store, 10, 30, 30)
	seeded := invocations.Load()

	// The head advanced to 40 with no new writes; block 40 exists.
	store.Blocks = append(store.Blocks, blockAt(40))

	results, err := ev.ComputeRangeWithCache(context.Background(), compute.RangeRequest{
		Formula:           formula,
		TargetAddress:     contractA,
		BlockStart:        blockAt(10),
		BlockEnd:          blockAt(40),
		LatestBlockHeight: 40,
	})
	require.NoError(t, err)
	assert.Equal(t, seeded, invocations.Load(), "tail extension must not re-run the formula")
	require.Len(t, results, 4)
	assert.Equal(t, uint64(40), results[3].LatestBlockHeightValid)
}

// TestRangeReuseContinuesAfterTail verifies new pieces are computed from
// the stored tail when a dependency changed beyond it.
func TestRangeReuseContinuesAfterTail(t *testing.T) {
	store := computetest.NewStore()
	seedRangeScenario(store)
	var invocations atomic.Int64
	formula := countingReadK(&invocations)
	ev := newEvaluator(t, store, compute.CodeIDConfig{})

	seedStoredRange(t, ev, formula, store, 10, 30, 30)
	seeded := invocations.Load()

	// A new write at 40 splits the extension.
	store.WasmState = append(store.WasmState, chainmodels.WasmStateEvent{
		ContractAddress: contractA, Key: hexKey("k"), Value: "4", BlockHeight: 40, BlockTimeUnixMs: 40_000,
	})
	store.Blocks = append(store.Blocks, blockAt(40), blockAt(45))

	results, err := ev.ComputeRangeWithCache(context.Background(), compute.RangeRequest{
		Formula:           formula,
		TargetAddress:     contractA,
		BlockStart:        blockAt(10),
		BlockEnd:          blockAt(45),
		LatestBlockHeight: 45,
	})
	require.NoError(t, err)
	assert.Greater(t, invocations.Load(), seeded, "continuation must evaluate new pieces")
	require.Len(t, results, 5)
	assert.Equal(t, uint64(40), results[4].Block.Height)
	assert.Equal(t, "4", rawValue(t, results[4].Value))
	// The tail piece now ends right before the new write.
	assert.Equal(t, uint64(39), results[3].LatestBlockHeightValid)
}

// TestRangeReuseGapRecomputes covers the all-or-nothing rule: a broken
// stored chain forces a full recompute.
func TestRangeReuseGapRecomputes(t *testing.T) {
	store := computetest.NewStore()
	seedRangeScenario(store)
	var invocations atomic.Int64
	formula := countingReadK(&invocations)
	ev := newEvaluator(t, store, compute.CodeIDConfig{})

	canonical, err := compute.CanonicalArgs(nil)
	require.NoError(t, err)
	// Seed a chain with a hole: pieces at 10 and 25, nothing covering
	// 20..24.
	require.NoError(t, store.StoreComputations(context.Background(), []*chainmodels.Computation{
		{
			TargetAddress: contractA, FormulaType: string(compute.FormulaTypeContract), FormulaName: "readK",
			Args: canonical, ArgsHash: compute.ArgsHash(canonical),
			BlockHeight: 10, BlockTimeUnixMs: 10_000, Output: `"1"`,
			DepEventKeys: []string{"wasm_state:contractA:" + hexKey("k")}, DepEventPrefixes: []uint8{0},
			LatestBlockHeightValid: 19,
		},
		{
			TargetAddress: contractA, FormulaType: string(compute.FormulaTypeContract), FormulaName: "readK",
			Args: canonical, ArgsHash: compute.ArgsHash(canonical),
			BlockHeight: 25, BlockTimeUnixMs: 25_000, Output: "",
			DepEventKeys: []string{"wasm_state:contractA:" + hexKey("k")}, DepEventPrefixes: []uint8{0},
			LatestBlockHeightValid: 29,
		},
	}))

	results, err := ev.ComputeRangeWithCache(context.Background(), compute.RangeRequest{
		Formula:           formula,
		TargetAddress:     contractA,
		BlockStart:        blockAt(10),
		BlockEnd:          blockAt(30),
		LatestBlockHeight: 30,
	})
	require.NoError(t, err)
	assert.Greater(t, invocations.Load(), int64(0), "gapped chain must recompute")
	require.Len(t, results, 4)
}
