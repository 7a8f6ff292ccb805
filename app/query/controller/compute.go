package controller

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/chainview-network/chainview/pkg/compute"
	chainmodels "github.com/chainview-network/chainview/pkg/db/models/chain"
)

// reservedParams are interpreted by the endpoint itself; every other query
// parameter passes through to the formula as an argument.
var reservedParams = map[string]bool{
	"block":     true,
	"blocks":    true,
	"time":      true,
	"times":     true,
	"blockStep": true,
	"timeStep":  true,
}

// HandleCompute serves GET /{type}/{address}/{formula}: a single-block,
// single-time or ranged formula evaluation.
func (c *Controller) HandleCompute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)

	formulaType := compute.FormulaType(vars["type"])
	if !formulaType.Valid() {
		respondError(w, http.StatusBadRequest, "unknown formula type")
		return
	}
	targetAddress := vars["address"]
	if targetAddress == "_" {
		targetAddress = ""
	}

	formula, err := c.App.Registry.Lookup(formulaType, vars["formula"])
	if err != nil {
		respondComputeError(w, err)
		return
	}

	chainState, ok := c.App.Tracker.Current()
	if !ok {
		respondError(w, http.StatusServiceUnavailable, "indexer state unavailable")
		return
	}

	qs := r.URL.Query()
	args := map[string]string{}
	for key, values := range qs {
		if !reservedParams[key] && len(values) > 0 {
			args[key] = values[0]
		}
	}

	switch {
	case qs.Get("blocks") != "":
		start, end, err := parseRangeParam(qs.Get("blocks"))
		if err != nil {
			respondError(w, http.StatusBadRequest, "bad block range syntax, expected start..end")
			return
		}
		if start >= end {
			respondError(w, http.StatusBadRequest, "block range start must be before end")
			return
		}
		step, ok := parseStepParam(w, qs.Get("blockStep"))
		if !ok {
			return
		}
		startBlock, endBlock, ok := c.resolveBlockRange(w, r, start, end)
		if !ok {
			return
		}
		results, err := c.App.Evaluator.ComputeRangeWithCache(ctx, compute.RangeRequest{
			Formula:           formula,
			ChainID:           chainState.ChainID,
			TargetAddress:     targetAddress,
			Args:              args,
			BlockStart:        *startBlock,
			BlockEnd:          *endBlock,
			LatestBlockHeight: chainState.LatestBlockHeight,
		})
		if err != nil {
			respondComputeError(w, err)
			return
		}
		samples, err := compute.ProcessComputationRange(results, compute.AssembleOptions{
			Blocks:    &[2]chainmodels.Block{{Height: start}, {Height: end}},
			BlockStep: step,
		})
		if err != nil {
			respondComputeError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, samples)

	case qs.Get("times") != "":
		start, end, err := parseRangeParam(qs.Get("times"))
		if err != nil {
			respondError(w, http.StatusBadRequest, "bad time range syntax, expected start..end")
			return
		}
		if start >= end {
			respondError(w, http.StatusBadRequest, "time range start must be before end")
			return
		}
		step, ok := parseStepParam(w, qs.Get("timeStep"))
		if !ok {
			return
		}
		startBlock, endBlock, ok := c.resolveTimeRange(w, r, start, end)
		if !ok {
			return
		}
		results, err := c.App.Evaluator.ComputeRangeWithCache(ctx, compute.RangeRequest{
			Formula:           formula,
			ChainID:           chainState.ChainID,
			TargetAddress:     targetAddress,
			Args:              args,
			BlockStart:        *startBlock,
			BlockEnd:          *endBlock,
			LatestBlockHeight: chainState.LatestBlockHeight,
		})
		if err != nil {
			respondComputeError(w, err)
			return
		}
		samples, err := compute.ProcessComputationRange(results, compute.AssembleOptions{
			Times:    &[2]uint64{start, end},
			TimeStep: step,
		})
		if err != nil {
			respondComputeError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, samples)

	default:
		block, ok := c.resolveSingleBlock(w, r, chainState)
		if !ok {
			return
		}
		result, _, err := c.App.Evaluator.ComputeWithCache(ctx, compute.ComputeRequest{
			Formula:           formula,
			ChainID:           chainState.ChainID,
			TargetAddress:     targetAddress,
			Args:              args,
			Block:             *block,
			LatestBlockHeight: chainState.LatestBlockHeight,
		})
		if err != nil {
			respondComputeError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, result.Value)
	}
}

// resolveSingleBlock picks the evaluation target for a non-range query:
// an explicit block, an explicit time, or the visible head.
func (c *Controller) resolveSingleBlock(w http.ResponseWriter, r *http.Request, chainState chainmodels.State) (*chainmodels.Block, bool) {
	ctx := r.Context()
	qs := r.URL.Query()

	if v := qs.Get("block"); v != "" {
		height, err := parseUintParam(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "bad block height")
			return nil, false
		}
		block, err := c.App.ChainDB.BlockAtOrBefore(ctx, height)
		if err != nil {
			respondComputeError(w, err)
			return nil, false
		}
		if block == nil {
			respondError(w, http.StatusBadRequest, "no block at or before requested height")
			return nil, false
		}
		return block, true
	}

	if v := qs.Get("time"); v != "" {
		timeMs, err := parseUintParam(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "bad time")
			return nil, false
		}
		block, err := c.App.ChainDB.BlockAtOrBeforeTime(ctx, timeMs)
		if err != nil {
			respondComputeError(w, err)
			return nil, false
		}
		if block == nil {
			respondError(w, http.StatusBadRequest, "no block at or before requested time")
			return nil, false
		}
		return block, true
	}

	return &chainmodels.Block{
		Height:     chainState.LatestBlockHeight,
		TimeUnixMs: chainState.LatestBlockTimeUnixMs,
	}, true
}

// resolveBlockRange maps requested heights onto ingested blocks. A start
// before the first ingested block clamps forward to it.
func (c *Controller) resolveBlockRange(w http.ResponseWriter, r *http.Request, start, end uint64) (*chainmodels.Block, *chainmodels.Block, bool) {
	ctx := r.Context()

	startBlock, err := c.App.ChainDB.BlockAtOrBefore(ctx, start)
	if err != nil {
		respondComputeError(w, err)
		return nil, nil, false
	}
	if startBlock == nil {
		startBlock, err = c.App.ChainDB.FirstBlock(ctx)
		if err != nil {
			respondComputeError(w, err)
			return nil, nil, false
		}
	}
	endBlock, err := c.App.ChainDB.BlockAtOrBefore(ctx, end)
	if err != nil {
		respondComputeError(w, err)
		return nil, nil, false
	}
	if startBlock == nil || endBlock == nil || endBlock.Height < startBlock.Height {
		respondError(w, http.StatusBadRequest, "no blocks in requested range")
		return nil, nil, false
	}
	return startBlock, endBlock, true
}

func (c *Controller) resolveTimeRange(w http.ResponseWriter, r *http.Request, start, end uint64) (*chainmodels.Block, *chainmodels.Block, bool) {
	ctx := r.Context()

	startBlock, err := c.App.ChainDB.BlockAtOrBeforeTime(ctx, start)
	if err != nil {
		respondComputeError(w, err)
		return nil, nil, false
	}
	if startBlock == nil {
		startBlock, err = c.App.ChainDB.FirstBlock(ctx)
		if err != nil {
			respondComputeError(w, err)
			return nil, nil, false
		}
	}
	endBlock, err := c.App.ChainDB.BlockAtOrBeforeTime(ctx, end)
	if err != nil {
		respondComputeError(w, err)
		return nil, nil, false
	}
	if startBlock == nil || endBlock == nil || endBlock.Height < startBlock.Height {
		respondError(w, http.StatusBadRequest, "no blocks in requested range")
		return nil, nil, false
	}
	return startBlock, endBlock, true
}
