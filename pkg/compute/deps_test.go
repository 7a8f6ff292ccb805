package compute_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chainview-network/chainview/pkg/compute"
)

func TestDependentKeyMatches(t *testing.T) {
	tests := []struct {
		name     string
		dep      compute.DependentKey
		key      string
		expected bool
	}{
		{
			name:     "exact match",
			dep:      compute.WasmStateDep("contractA", "aabb", false),
			key:      "wasm_state:contractA:aabb",
			expected: true,
		},
		{
			name:     "exact does not match longer key",
			dep:      compute.WasmStateDep("contractA", "aabb", false),
			key:      "wasm_state:contractA:aabbcc",
			expected: false,
		},
		{
			name:     "prefix matches longer key",
			dep:      compute.WasmStateDep("contractA", "aabb", true),
			key:      "wasm_state:contractA:aabbcc",
			expected: true,
		},
		{
			name:     "prefix does not match other namespace",
			dep:      compute.WasmStateDep("contractA", "aabb", true),
			key:      "wasm_tx:contractA:aabbcc",
			expected: false,
		},
		{
			name:     "tx dep trailing colon avoids sibling addresses",
			dep:      compute.WasmTxDep("contract1"),
			key:      "wasm_tx:contract10:",
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.dep.Matches(tt.key))
		})
	}
}

func TestDependentKeyNamespace(t *testing.T) {
	dep := compute.TransformationDep("contractA", "proposal:*")
	assert.Equal(t, compute.NamespaceWasmTransformation, dep.Namespace())
	assert.Equal(t, "contractA:proposal:*", dep.Rest())
	assert.True(t, dep.Prefix)

	assert.False(t, compute.TransformationDep("contractA", "config").Prefix)
	assert.Equal(t, "wasm_transformation:*:config", compute.TransformationDep("", "config").Key)
}

func TestFeegrantDepSentinel(t *testing.T) {
	dep := compute.FeegrantDep(compute.FeegrantEitherSide, "grantee1")
	assert.Equal(t, "feegrant:*:grantee1", dep.Key)
	assert.False(t, dep.Prefix)
}

// TestRecorderSnapshot verifies deduplication and the event/transformation
// split.
func TestRecorderSnapshot(t *testing.T) {
	rec := compute.NewRecorder()
	rec.Record(compute.WasmStateDep("contractA", "bb", false))
	rec.Record(compute.WasmStateDep("contractA", "aa", false))
	rec.Record(compute.WasmStateDep("contractA", "aa", false)) // duplicate
	rec.Record(compute.TransformationDep("contractA", "config"))
	rec.Record(compute.WasmStateDep("contractA", "aa", true)) // same key, prefix differs

	events, transformations := rec.Snapshot()
	assert.Equal(t, []compute.DependentKey{
		{Key: "wasm_state:contractA:aa", Prefix: false},
		{Key: "wasm_state:contractA:aa", Prefix: true},
		{Key: "wasm_state:contractA:bb", Prefix: false},
	}, events)
	assert.Equal(t, []compute.DependentKey{
		{Key: "wasm_transformation:contractA:config", Prefix: false},
	}, transformations)

	assert.Equal(t, 5, rec.Len())
	assert.Len(t, rec.All(), 4)
}
