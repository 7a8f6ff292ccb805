package compute_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/chainview-network/chainview/pkg/compute"
	chainmodels "github.com/chainview-network/chainview/pkg/db/models/chain"
)

// fixturePieces is the piecewise series the range fixture produces: values
// 1/2/absent/3 anchored at 10/20/25/30.
func fixturePieces() []compute.Result {
	return []compute.Result{
		{Block: blockAt(10), Value: 1, LatestBlockHeightValid: 19},
		{Block: blockAt(20), Value: 2, LatestBlockHeightValid: 24},
		{Block: blockAt(25), Value: nil, LatestBlockHeightValid: 29},
		{Block: blockAt(30), Value: 3, LatestBlockHeightValid: 30},
	}
}

// TestSampleByBlockStep checks that blockStep=10 over the fixture pieces
// emits the values at heights 10, 20, 30.
func TestSampleByBlockStep(t *testing.T) {
	samples, err := compute.ProcessComputationRange(fixturePieces(), compute.AssembleOptions{
		Blocks:    &[2]chainmodels.Block{{Height: 10}, {Height: 30}},
		BlockStep: 10,
	})
	require.NoError(t, err)
	require.Len(t, samples, 3)

	values := make([]any, 0, len(samples))
	ats := make([]uint64, 0, len(samples))
	for _, s := range samples {
		values = append(values, s.Value)
		ats = append(ats, *s.At)
	}
	assert.Equal(t, []any{1, 2, 3}, values)
	assert.Equal(t, []uint64{10, 20, 30}, ats)
}

// TestSampleCountUnalignedStep checks that an unaligned step still lands a
// final sample on the range end, giving ceil((end-start)/step)+1 samples.
func TestSampleCountUnalignedStep(t *testing.T) {
	samples, err := compute.ProcessComputationRange(fixturePieces(), compute.AssembleOptions{
		Blocks:    &[2]chainmodels.Block{{Height: 10}, {Height: 30}},
		BlockStep: 8,
	})
	require.NoError(t, err)
	// Grid points 10, 18, 26 plus the closing sample at 30.
	require.Len(t, samples, 4)
	assert.Equal(t, uint64(30), *samples[3].At)
	assert.Equal(t, 3, samples[3].Value)
	assert.Equal(t, nil, samples[2].Value)
}

func TestSampleBoundaryTies(t *testing.T) {
	// A grid point exactly on a piece boundary belongs to the piece whose
	// interval contains it.
	samples, err := compute.ProcessComputationRange(fixturePieces(), compute.AssembleOptions{
		Blocks:    &[2]chainmodels.Block{{Height: 19}, {Height: 20}},
		BlockStep: 1,
	})
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, 1, samples[0].Value)
	assert.Equal(t, 2, samples[1].Value)
}

func TestSampleBeforeFirstPieceSkipped(t *testing.T) {
	samples, err := compute.ProcessComputationRange(fixturePieces(), compute.AssembleOptions{
		Blocks:    &[2]chainmodels.Block{{Height: 5}, {Height: 15}},
		BlockStep: 5,
	})
	require.NoError(t, err)
	// Height 5 precedes the first piece and carries no value.
	require.Len(t, samples, 2)
	assert.Equal(t, uint64(10), *samples[0].At)
	assert.Equal(t, uint64(15), *samples[1].At)
}

func TestRawSeriesPassthrough(t *testing.T) {
	samples, err := compute.ProcessComputationRange(fixturePieces(), compute.AssembleOptions{})
	require.NoError(t, err)
	require.Len(t, samples, 4)
	for i, s := range samples {
		assert.Nil(t, s.At)
		assert.Equal(t, fixturePieces()[i].Block, s.Block)
	}
}

func TestSampleByTimeStep(t *testing.T) {
	samples, err := compute.ProcessComputationRange(fixturePieces(), compute.AssembleOptions{
		Times:    &[2]uint64{10_000, 30_000},
		TimeStep: 10_000,
	})
	require.NoError(t, err)
	require.Len(t, samples, 3)
	assert.Equal(t, 1, samples[0].Value)
	assert.Equal(t, 2, samples[1].Value)
	assert.Equal(t, 3, samples[2].Value)
}

func TestStepRequiresRange(t *testing.T) {
	_, err := compute.ProcessComputationRange(fixturePieces(), compute.AssembleOptions{BlockStep: 5})
	assert.ErrorIs(t, err, compute.ErrBadInput)

	_, err = compute.ProcessComputationRange(fixturePieces(), compute.AssembleOptions{TimeStep: 5})
	assert.ErrorIs(t, err, compute.ErrBadInput)
}

// TestSamplingProperty drives random contiguous piecewise series through
// the assembler and checks every sample against the piece containing its
// grid point.
func TestSamplingProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		start := rapid.Uint64Range(1, 1000).Draw(t, "start")
		pieceCount := rapid.IntRange(1, 8).Draw(t, "pieces")

		pieces := make([]compute.Result, 0, pieceCount)
		cursor := start
		for i := 0; i < pieceCount; i++ {
			width := rapid.Uint64Range(1, 50).Draw(t, "width")
			pieces = append(pieces, compute.Result{
				Block:                  chainmodels.Block{Height: cursor, TimeUnixMs: cursor * 1000},
				Value:                  i,
				LatestBlockHeightValid: cursor + width - 1,
			})
			cursor += width
		}
		end := pieces[len(pieces)-1].LatestBlockHeightValid
		step := rapid.Uint64Range(1, 60).Draw(t, "step")

		samples, err := compute.ProcessComputationRange(pieces, compute.AssembleOptions{
			Blocks:    &[2]chainmodels.Block{{Height: start}, {Height: end}},
			BlockStep: step,
		})
		if err != nil {
			t.Fatalf("assemble: %v", err)
		}

		expectedCount := int((end-start)/step) + 1
		if (end-start)%step != 0 {
			expectedCount++
		}
		if len(samples) != expectedCount {
			t.Fatalf("expected %d samples, got %d", expectedCount, len(samples))
		}

		for _, sample := range samples {
			at := *sample.At
			found := false
			for _, piece := range pieces {
				if piece.Block.Height <= at && at <= piece.LatestBlockHeightValid {
					if sample.Value != piece.Value {
						t.Fatalf("sample at %d carries value %v, piece holds %v", at, sample.Value, piece.Value)
					}
					found = true
					break
				}
			}
			if !found {
				t.Fatalf("sample at %d not covered by any piece", at)
			}
		}
	})
}
