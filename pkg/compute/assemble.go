package compute

import (
	"fmt"

	chainmodels "github.com/chainview-network/chainview/pkg/db/models/chain"
)

// Sample is one entry of an assembled series. At carries the sampling grid
// coordinate (block height or unix-ms time) and is absent for the raw
// piecewise form.
type Sample struct {
	At    *uint64           `json:"at,omitempty"`
	Block chainmodels.Block `json:"block"`
	Value any               `json:"value"`
}

// AssembleOptions select the projection of a piecewise series. Exactly one
// of BlockStep/TimeStep may be set; zero means unset and yields the raw
// series.
type AssembleOptions struct {
	Blocks    *[2]chainmodels.Block
	Times     *[2]uint64
	BlockStep uint64
	TimeStep  uint64
}

// ProcessComputationRange projects a piecewise-constant series onto a
// sampling grid. Sampling is closed on both ends; a final sample lands on
// the range end even when the step does not divide the range. Grid points
// before the first piece carry no value and are skipped.
func ProcessComputationRange(pieces []Result, opts AssembleOptions) ([]Sample, error) {
	switch {
	case opts.BlockStep > 0:
		if opts.Blocks == nil {
			return nil, fmt.Errorf("%w: blockStep requires a block range", ErrBadInput)
		}
		return sampleByBlock(pieces, opts.Blocks[0].Height, opts.Blocks[1].Height, opts.BlockStep), nil
	case opts.TimeStep > 0:
		if opts.Times == nil {
			return nil, fmt.Errorf("%w: timeStep requires a time range", ErrBadInput)
		}
		return sampleByTime(pieces, opts.Times[0], opts.Times[1], opts.TimeStep), nil
	default:
		samples := make([]Sample, 0, len(pieces))
		for i := range pieces {
			samples = append(samples, Sample{Block: pieces[i].Block, Value: pieces[i].Value})
		}
		return samples, nil
	}
}

func sampleByBlock(pieces []Result, start, end, step uint64) []Sample {
	var samples []Sample
	idx := 0
	emit := func(h uint64) {
		// Ties at a piece boundary resolve by containment: advance while
		// the next piece starts at-or-before the grid point.
		for idx+1 < len(pieces) && pieces[idx+1].Block.Height <= h {
			idx++
		}
		if len(pieces) == 0 || h < pieces[idx].Block.Height || h > pieces[idx].LatestBlockHeightValid {
			return
		}
		at := h
		samples = append(samples, Sample{At: &at, Block: pieces[idx].Block, Value: pieces[idx].Value})
	}
	last := start
	for h := start; h <= end; h += step {
		emit(h)
		last = h
		if end-h < step {
			break
		}
	}
	if last < end {
		emit(end)
	}
	return samples
}

func sampleByTime(pieces []Result, start, end, step uint64) []Sample {
	var samples []Sample
	idx := 0
	emit := func(t uint64) {
		for idx+1 < len(pieces) && pieces[idx+1].Block.TimeUnixMs <= t {
			idx++
		}
		if len(pieces) == 0 || t < pieces[idx].Block.TimeUnixMs {
			return
		}
		at := t
		samples = append(samples, Sample{At: &at, Block: pieces[idx].Block, Value: pieces[idx].Value})
	}
	last := start
	for t := start; t <= end; t += step {
		emit(t)
		last = t
		if end-t < step {
			break
		}
	}
	if last < end {
		emit(end)
	}
	return samples
}
