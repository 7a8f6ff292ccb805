package compute_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/chainview-network/chainview/pkg/compute"
	"github.com/chainview-network/chainview/pkg/compute/computetest"
	chainmodels "github.com/chainview-network/chainview/pkg/db/models/chain"
)

// readK is the canonical test formula: it reads (contractA, k) and returns
// the stored JSON value, or nil when absent.
func readK() *compute.Formula {
	return &compute.Formula{
		Type: compute.FormulaTypeContract,
		Name: "readK",
		Compute: func(ctx context.Context, env *compute.Env) (any, error) {
			value, found, err := env.Get(ctx, env.TargetAddress(), "k")
			if err != nil {
				return nil, err
			}
			if !found {
				return nil, nil
			}
			return value, nil
		},
	}
}

func newEvaluator(t *testing.T, store *computetest.Store, codeIDs compute.CodeIDConfig) *compute.Evaluator {
	t.Helper()
	return compute.NewEvaluator(store, codeIDs, zaptest.NewLogger(t))
}

func blockAt(height uint64) chainmodels.Block {
	return chainmodels.Block{Height: height, TimeUnixMs: height * 1000}
}

func rawValue(t *testing.T, value any) string {
	t.Helper()
	b, err := json.Marshal(value)
	require.NoError(t, err)
	return string(b)
}

func TestComputeValueAndValidity(t *testing.T) {
	store := computetest.NewStore()
	seedScenario(store)
	ev := newEvaluator(t, store, compute.CodeIDConfig{})

	res, err := ev.Compute(context.Background(), compute.ComputeRequest{
		Formula:           readK(),
		ChainID:           "test-1",
		TargetAddress:     contractA,
		Block:             blockAt(25),
		LatestBlockHeight: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, "2", rawValue(t, res.Value))
	assert.Equal(t, uint64(25), res.Block.Height)
	// The next write is at 30, so the result holds through 29.
	assert.Equal(t, uint64(29), res.LatestBlockHeightValid)
	require.Len(t, res.DependentEvents, 1)
	assert.Empty(t, res.DependentTransformations)
}

func TestComputeValidityUnboundedCapsAtHead(t *testing.T) {
	store := computetest.NewStore()
	seedScenario(store)
	ev := newEvaluator(t, store, compute.CodeIDConfig{})

	res, err := ev.Compute(context.Background(), compute.ComputeRequest{
		Formula:           readK(),
		TargetAddress:     contractA,
		Block:             blockAt(30),
		LatestBlockHeight: 120,
	})
	require.NoError(t, err)
	assert.Equal(t, "3", rawValue(t, res.Value))
	assert.Equal(t, uint64(120), res.LatestBlockHeightValid)
}

// TestComputeDeterminism checks that identical inputs yield identical values
// and dependency sets.
func TestComputeDeterminism(t *testing.T) {
	store := computetest.NewStore()
	seedScenario(store)
	ev := newEvaluator(t, store, compute.CodeIDConfig{})

	req := compute.ComputeRequest{
		Formula:           readK(),
		TargetAddress:     contractA,
		Block:             blockAt(25),
		LatestBlockHeight: 100,
	}

	first, err := ev.Compute(context.Background(), req)
	require.NoError(t, err)
	second, err := ev.Compute(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, rawValue(t, first.Value), rawValue(t, second.Value))
	assert.Equal(t, first.DependentEvents, second.DependentEvents)
	assert.Equal(t, first.LatestBlockHeightValid, second.LatestBlockHeightValid)
}

func TestComputeCodeIDFilter(t *testing.T) {
	store := computetest.NewStore()
	store.Contracts["daoA"] = chainmodels.Contract{Address: "daoA", CodeID: 10}
	store.Contracts["other"] = chainmodels.Contract{Address: "other", CodeID: 99}
	codeIDs := compute.CodeIDConfig{Sets: map[string][]uint64{"dao": {10}}}
	ev := newEvaluator(t, store, codeIDs)

	formula := &compute.Formula{
		Type:   compute.FormulaTypeContract,
		Name:   "daoOnly",
		Filter: &compute.CodeIDFilter{CodeIDKeys: []string{"dao"}},
		Compute: func(ctx context.Context, env *compute.Env) (any, error) {
			return "ok", nil
		},
	}

	// Matching contract passes.
	_, err := ev.Compute(context.Background(), compute.ComputeRequest{
		Formula: formula, TargetAddress: "daoA", Block: blockAt(5), LatestBlockHeight: 10,
	})
	require.NoError(t, err)

	// Wrong code id is rejected as not applicable.
	_, err = ev.Compute(context.Background(), compute.ComputeRequest{
		Formula: formula, TargetAddress: "other", Block: blockAt(5), LatestBlockHeight: 10,
	})
	assert.ErrorIs(t, err, compute.ErrNotApplicable)

	// Unknown contract is not found.
	_, err = ev.Compute(context.Background(), compute.ComputeRequest{
		Formula: formula, TargetAddress: "missing", Block: blockAt(5), LatestBlockHeight: 10,
	})
	assert.ErrorIs(t, err, compute.ErrNotFound)
}

func TestComputeValidatorRequiresRegistryRow(t *testing.T) {
	store := computetest.NewStore()
	store.Validators["valoper1"] = chainmodels.Validator{OperatorAddress: "valoper1", BlockHeight: 1, BlockTimeUnixMs: 1000}
	ev := newEvaluator(t, store, compute.CodeIDConfig{})

	formula := &compute.Formula{
		Type: compute.FormulaTypeValidator,
		Name: "slashCount",
		Compute: func(ctx context.Context, env *compute.Env) (any, error) {
			slashes, err := env.GetSlashEvents(ctx, env.TargetAddress())
			if err != nil {
				return nil, err
			}
			return len(slashes), nil
		},
	}

	res, err := ev.Compute(context.Background(), compute.ComputeRequest{
		Formula: formula, TargetAddress: "valoper1", Block: blockAt(5), LatestBlockHeight: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Value)

	_, err = ev.Compute(context.Background(), compute.ComputeRequest{
		Formula: formula, TargetAddress: "valoper2", Block: blockAt(5), LatestBlockHeight: 10,
	})
	assert.ErrorIs(t, err, compute.ErrNotFound)
}

func TestComputeClassifiesFormulaFailure(t *testing.T) {
	store := computetest.NewStore()
	ev := newEvaluator(t, store, compute.CodeIDConfig{})

	boom := errors.New("division by zero in formula")
	formula := &compute.Formula{
		Type: compute.FormulaTypeGeneric,
		Name: "boom",
		Compute: func(ctx context.Context, env *compute.Env) (any, error) {
			return nil, boom
		},
	}

	_, err := ev.Compute(context.Background(), compute.ComputeRequest{
		Formula: formula, Block: blockAt(5), LatestBlockHeight: 10,
	})
	var formulaErr *compute.FormulaError
	require.ErrorAs(t, err, &formulaErr)
	assert.ErrorIs(t, err, boom)
	assert.True(t, compute.IsUserError(err))
}
