package compute

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	chainmodels "github.com/chainview-network/chainview/pkg/db/models/chain"
)

// Evaluator runs formulas against the event store. It is stateless across
// requests: every evaluation owns its Environment, dependency list and memo,
// so evaluations are trivially parallel.
type Evaluator struct {
	store   Store
	codeIDs CodeIDConfig
	logger  *zap.Logger
}

func NewEvaluator(store Store, codeIDs CodeIDConfig, logger *zap.Logger) *Evaluator {
	return &Evaluator{store: store, codeIDs: codeIDs, logger: logger}
}

// ComputeRequest is one formula evaluation at one block.
type ComputeRequest struct {
	Formula       *Formula
	ChainID       string
	TargetAddress string
	Args          map[string]string

	// Block is the evaluation target; every getter filters to it.
	Block chainmodels.Block

	// LatestBlockHeight is the indexer's visible head, used as the validity
	// cap when no dependency ever changes again.
	LatestBlockHeight uint64

	// OnFetch is forwarded to the Environment.
	OnFetch func(rows int)
}

// Result is the outcome of a single evaluation: the value, the dependency
// set that produced it, and the interval of blocks it provably holds for.
type Result struct {
	Block                    chainmodels.Block
	Value                    any
	DependentEvents          []DependentKey
	DependentTransformations []DependentKey
	LatestBlockHeightValid   uint64
}

// Dependencies returns the full dependency set.
func (r *Result) Dependencies() []DependentKey {
	return append(append([]DependentKey{}, r.DependentEvents...), r.DependentTransformations...)
}

// Compute evaluates one formula at one block. The caller decides whether to
// persist the result.
func (ev *Evaluator) Compute(ctx context.Context, req ComputeRequest) (*Result, error) {
	res, _, err := ev.computeOnce(ctx, req)
	return res, err
}

// computeOnce also reports the height of the next dependency change (nil
// when no dependency ever changes again), which the range evaluator uses
// for its skip-ahead cursor.
func (ev *Evaluator) computeOnce(ctx context.Context, req ComputeRequest) (*Result, *uint64, error) {
	if err := ev.checkApplicable(ctx, req); err != nil {
		return nil, nil, err
	}

	rec := NewRecorder()
	env := NewEnv(EnvOptions{
		ChainID:       req.ChainID,
		TargetAddress: req.TargetAddress,
		Block:         req.Block,
		UseBlockDate:  !req.Formula.Dynamic,
		Args:          req.Args,
		Store:         ev.store,
		CodeIDs:       ev.codeIDs,
		Recorder:      rec,
		OnFetch:       req.OnFetch,
	})

	value, err := req.Formula.Compute(ctx, env)
	if err != nil {
		return nil, nil, classifyFormulaErr(req.Formula, err)
	}

	deps := rec.All()
	latestValid := max(req.Block.Height, req.LatestBlockHeight)
	var next *uint64
	if len(deps) > 0 {
		h, ok, err := ev.store.NextDependencyChange(ctx, deps, req.Block.Height)
		if err != nil {
			return nil, nil, transportErr(err)
		}
		if ok {
			next = &h
			latestValid = h - 1
		}
	}

	events, transformations := rec.Snapshot()
	return &Result{
		Block:                    req.Block,
		Value:                    value,
		DependentEvents:          events,
		DependentTransformations: transformations,
		LatestBlockHeightValid:   latestValid,
	}, next, nil
}

// checkApplicable enforces the pre-flight typed-address checks: contract
// formulas with a code-id filter require a matching contract, validator
// formulas require a known operator.
func (ev *Evaluator) checkApplicable(ctx context.Context, req ComputeRequest) error {
	switch req.Formula.Type {
	case FormulaTypeContract:
		if req.Formula.Filter == nil {
			return nil
		}
		contract, err := ev.store.GetContract(ctx, req.TargetAddress)
		if err != nil {
			return transportErr(err)
		}
		if contract == nil {
			return fmt.Errorf("%w: contract %s", ErrNotFound, req.TargetAddress)
		}
		if !ev.codeIDs.Resolve(req.Formula.Filter.CodeIDKeys...)[contract.CodeID] {
			return fmt.Errorf("%w: formula %s does not apply to contract %s", ErrNotApplicable, req.Formula.Name, req.TargetAddress)
		}
	case FormulaTypeValidator:
		validator, err := ev.store.GetValidator(ctx, req.TargetAddress)
		if err != nil {
			return transportErr(err)
		}
		if validator == nil {
			return fmt.Errorf("%w: validator %s", ErrNotFound, req.TargetAddress)
		}
	}
	return nil
}

// classifyFormulaErr separates infrastructure failures from formula
// failures. Transport errors and type-mismatch invariant violations pass
// through; everything else raised inside a formula is a user error carrying
// the formula's message verbatim.
func classifyFormulaErr(f *Formula, err error) error {
	var te *TransportError
	if errors.As(err, &te) || errors.Is(err, ErrTypeMismatch) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &FormulaError{Formula: fmt.Sprintf("%s/%s", f.Type, f.Name), Err: err}
}
