package compute

import (
	"context"
	"fmt"

	chainmodels "github.com/chainview-network/chainview/pkg/db/models/chain"
)

// RangeRequest asks for a piecewise-constant series over
// [BlockStart, BlockEnd].
type RangeRequest struct {
	Formula       *Formula
	ChainID       string
	TargetAddress string
	Args          map[string]string

	BlockStart chainmodels.Block
	BlockEnd   chainmodels.Block

	LatestBlockHeight uint64
	OnFetch           func(rows int)
}

// ComputeRange evaluates the formula across the range using
// dependency-driven skip-ahead: after each evaluation the cursor jumps
// directly to the next block at which any recorded dependency changed.
// A formula error at any cursor aborts the whole range.
func (ev *Evaluator) ComputeRange(ctx context.Context, req RangeRequest) ([]Result, error) {
	if err := validateRange(req); err != nil {
		return nil, err
	}

	var results []Result
	current := req.BlockStart
	for {
		res, next, err := ev.computeOnce(ctx, ComputeRequest{
			Formula:           req.Formula,
			ChainID:           req.ChainID,
			TargetAddress:     req.TargetAddress,
			Args:              req.Args,
			Block:             current,
			LatestBlockHeight: req.LatestBlockHeight,
			OnFetch:           req.OnFetch,
		})
		if err != nil {
			return nil, err
		}
		results = append(results, *res)

		if next == nil || *next > req.BlockEnd.Height {
			break
		}
		block, err := ev.store.BlockAtOrBefore(ctx, *next)
		if err != nil {
			return nil, transportErr(err)
		}
		if block == nil || block.Height <= current.Height {
			// A dependency changed at a height the blocks table does not
			// cover; the store invariant (every event height has a block)
			// is broken.
			return nil, fmt.Errorf("%w: no block at dependency change height %d", ErrTypeMismatch, *next)
		}
		current = *block
	}
	return results, nil
}

func validateRange(req RangeRequest) error {
	if req.Formula.Dynamic {
		return fmt.Errorf("%w: dynamic formula %s cannot be evaluated over a block range", ErrNotApplicable, req.Formula.Name)
	}
	if req.BlockStart.Height > req.BlockEnd.Height {
		return fmt.Errorf("%w: block range start %d after end %d", ErrBadInput, req.BlockStart.Height, req.BlockEnd.Height)
	}
	return nil
}
