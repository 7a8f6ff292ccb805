package compute

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/chainview-network/chainview/pkg/utils"

	chainmodels "github.com/chainview-network/chainview/pkg/db/models/chain"
)

// UpdateValidity extends a stored computation's validity interval to upto
// when none of its dependencies changed inside (current, upto]. On success
// the record is mutated and re-persisted; on failure it is left untouched.
// Validity never decreases.
func (ev *Evaluator) UpdateValidity(ctx context.Context, comp *chainmodels.Computation, upto uint64) (bool, error) {
	if upto <= comp.LatestBlockHeightValid {
		return true, nil
	}
	changed, err := ev.store.AnyDependencyChange(ctx, computationDeps(comp), comp.LatestBlockHeightValid, upto)
	if err != nil {
		return false, transportErr(err)
	}
	if changed {
		return false, nil
	}
	comp.LatestBlockHeightValid = upto
	if err := ev.store.StoreComputations(ctx, []*chainmodels.Computation{comp}); err != nil {
		return false, transportErr(err)
	}
	return true, nil
}

// ComputeWithCache answers a single-block query, reusing a stored
// computation when its validity interval covers (or can be extended to
// cover) the target block. Fresh single-block results are memoised within
// the evaluation only and never persisted; durable rows come from range
// queries.
func (ev *Evaluator) ComputeWithCache(ctx context.Context, req ComputeRequest) (*Result, bool, error) {
	if req.Formula.Dynamic {
		res, err := ev.Compute(ctx, req)
		return res, false, err
	}

	canonical, err := CanonicalArgs(req.Args)
	if err != nil {
		return nil, false, err
	}
	comp, err := ev.store.LatestComputation(ctx, req.TargetAddress, req.Formula.Type, req.Formula.Name, ArgsHash(canonical), req.Block.Height)
	if err != nil {
		return nil, false, transportErr(err)
	}
	if comp != nil {
		ok, err := ev.UpdateValidity(ctx, comp, req.Block.Height)
		if err != nil {
			return nil, false, err
		}
		if ok {
			res, err := resultFromComputation(comp)
			if err != nil {
				return nil, false, err
			}
			return res, true, nil
		}
	}

	res, err := ev.Compute(ctx, req)
	return res, false, err
}

// ComputeRangeWithCache serves a ranged query from stored computations
// where possible. Reuse is all-or-nothing: a continuous chain of stored
// pieces is extended or continued; anything else recomputes the whole
// range. Newly produced pieces are persisted only after the full range
// succeeded.
func (ev *Evaluator) ComputeRangeWithCache(ctx context.Context, req RangeRequest) ([]Result, error) {
	if err := validateRange(req); err != nil {
		return nil, err
	}

	canonical, err := CanonicalArgs(req.Args)
	if err != nil {
		return nil, err
	}
	argsHash := ArgsHash(canonical)

	existingStart, err := ev.store.LatestComputation(ctx, req.TargetAddress, req.Formula.Type, req.Formula.Name, argsHash, req.BlockStart.Height)
	if err != nil {
		return nil, transportErr(err)
	}
	if existingStart == nil {
		return ev.computeRangeAndPersist(ctx, req, canonical, argsHash)
	}

	rest, err := ev.store.ComputationsInRange(ctx, req.TargetAddress, req.Formula.Type, req.Formula.Name, argsHash, existingStart.BlockHeight, req.BlockEnd.Height)
	if err != nil {
		return nil, transportErr(err)
	}
	stored := append([]chainmodels.Computation{*existingStart}, rest...)

	if !continuousChain(stored) {
		if ev.logger != nil {
			ev.logger.Debug("stored computation chain not continuous, recomputing range",
				zap.String("formula", req.Formula.Name),
				zap.String("target", req.TargetAddress),
				zap.Uint64("blockStart", req.BlockStart.Height),
				zap.Uint64("blockEnd", req.BlockEnd.Height))
		}
		return ev.computeRangeAndPersist(ctx, req, canonical, argsHash)
	}

	last := &stored[len(stored)-1]
	if last.LatestBlockHeightValid < req.BlockEnd.Height {
		ok, err := ev.UpdateValidity(ctx, last, req.BlockEnd.Height)
		if err != nil {
			return nil, err
		}
		if !ok {
			// Continue from the last stored piece. Its recomputation leads
			// the fresh series; by determinism it carries the same value,
			// so it replaces the stored tail with a re-derived validity.
			contReq := req
			contReq.BlockStart = last.Block()
			fresh, err := ev.ComputeRange(ctx, contReq)
			if err != nil {
				return nil, err
			}
			if err := ev.persistResults(ctx, req, canonical, argsHash, fresh); err != nil {
				return nil, err
			}
			results, err := resultsFromComputations(stored[:len(stored)-1])
			if err != nil {
				return nil, err
			}
			return append(results, fresh...), nil
		}
	}

	return resultsFromComputations(stored)
}

func (ev *Evaluator) computeRangeAndPersist(ctx context.Context, req RangeRequest, canonical, argsHash string) ([]Result, error) {
	results, err := ev.ComputeRange(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := ev.persistResults(ctx, req, canonical, argsHash, results); err != nil {
		return nil, err
	}
	return results, nil
}

func (ev *Evaluator) persistResults(ctx context.Context, req RangeRequest, canonical, argsHash string, results []Result) error {
	if len(results) == 0 {
		return nil
	}
	comps := make([]*chainmodels.Computation, 0, len(results))
	for i := range results {
		comp, err := computationFromResult(req.TargetAddress, req.Formula, canonical, argsHash, &results[i])
		if err != nil {
			return err
		}
		comps = append(comps, comp)
	}
	if err := ev.store.StoreComputations(ctx, comps); err != nil {
		return transportErr(err)
	}
	return nil
}

// continuousChain reports whether consecutive stored pieces tile the range
// with no gap: each piece's validity must end exactly one block before the
// next piece begins.
func continuousChain(comps []chainmodels.Computation) bool {
	for i := 0; i+1 < len(comps); i++ {
		if comps[i].LatestBlockHeightValid != comps[i+1].BlockHeight-1 {
			return false
		}
	}
	return true
}

// computationFromResult converts an evaluation result into its persisted
// form.
func computationFromResult(targetAddress string, f *Formula, canonical, argsHash string, res *Result) (*chainmodels.Computation, error) {
	output := ""
	if res.Value != nil {
		b, err := json.Marshal(res.Value)
		if err != nil {
			return nil, fmt.Errorf("encode computation output: %w", err)
		}
		output = string(b)
	}
	comp := &chainmodels.Computation{
		TargetAddress:          targetAddress,
		FormulaType:            string(f.Type),
		FormulaName:            f.Name,
		Args:                   canonical,
		ArgsHash:               argsHash,
		BlockHeight:            res.Block.Height,
		BlockTimeUnixMs:        res.Block.TimeUnixMs,
		Output:                 output,
		LatestBlockHeightValid: res.LatestBlockHeightValid,
	}
	for _, d := range res.DependentEvents {
		comp.DepEventKeys = append(comp.DepEventKeys, d.Key)
		comp.DepEventPrefixes = append(comp.DepEventPrefixes, utils.BoolToUInt8(d.Prefix))
	}
	for _, d := range res.DependentTransformations {
		comp.DepTransformationKeys = append(comp.DepTransformationKeys, d.Key)
		comp.DepTransformationPrefixes = append(comp.DepTransformationPrefixes, utils.BoolToUInt8(d.Prefix))
	}
	return comp, nil
}

// resultFromComputation rehydrates a stored row. The output is surfaced as
// raw JSON; an empty output is the persisted form of "no value".
func resultFromComputation(comp *chainmodels.Computation) (*Result, error) {
	var value any
	if comp.Output != "" {
		value = json.RawMessage(comp.Output)
	}
	res := &Result{
		Block:                  comp.Block(),
		Value:                  value,
		LatestBlockHeightValid: comp.LatestBlockHeightValid,
	}
	var err error
	if res.DependentEvents, err = pairedDeps(comp.DepEventKeys, comp.DepEventPrefixes); err != nil {
		return nil, err
	}
	if res.DependentTransformations, err = pairedDeps(comp.DepTransformationKeys, comp.DepTransformationPrefixes); err != nil {
		return nil, err
	}
	return res, nil
}

func resultsFromComputations(comps []chainmodels.Computation) ([]Result, error) {
	results := make([]Result, 0, len(comps))
	for i := range comps {
		res, err := resultFromComputation(&comps[i])
		if err != nil {
			return nil, err
		}
		results = append(results, *res)
	}
	return results, nil
}

func pairedDeps(keys []string, prefixes []uint8) ([]DependentKey, error) {
	if len(keys) != len(prefixes) {
		return nil, fmt.Errorf("%w: dependency arrays misaligned (%d keys, %d flags)", ErrTypeMismatch, len(keys), len(prefixes))
	}
	deps := make([]DependentKey, 0, len(keys))
	for i := range keys {
		deps = append(deps, DependentKey{Key: keys[i], Prefix: prefixes[i] != 0})
	}
	return deps, nil
}

// computationDeps rebuilds the full dependency set of a stored row.
func computationDeps(comp *chainmodels.Computation) []DependentKey {
	deps, _ := pairedDeps(comp.DepEventKeys, comp.DepEventPrefixes)
	tdeps, _ := pairedDeps(comp.DepTransformationKeys, comp.DepTransformationPrefixes)
	return append(deps, tdeps...)
}
