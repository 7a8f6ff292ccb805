package compute_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainview-network/chainview/pkg/compute"
)

func TestCanonicalArgsSortsKeys(t *testing.T) {
	canonical, err := compute.CanonicalArgs(map[string]string{"z": "1", "a": "2", "m": "3"})
	require.NoError(t, err)
	assert.Equal(t, `{"a":"2","m":"3","z":"1"}`, canonical)
}

func TestCanonicalArgsNil(t *testing.T) {
	canonical, err := compute.CanonicalArgs(nil)
	require.NoError(t, err)
	assert.Equal(t, `{}`, canonical)

	empty, err := compute.CanonicalArgs(map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, canonical, empty)
}

func TestArgsHashStable(t *testing.T) {
	a, err := compute.CanonicalArgs(map[string]string{"denom": "ujuno"})
	require.NoError(t, err)
	b, err := compute.CanonicalArgs(map[string]string{"denom": "ujuno"})
	require.NoError(t, err)

	assert.Equal(t, compute.ArgsHash(a), compute.ArgsHash(b))
	assert.NotEqual(t, compute.ArgsHash(a), compute.ArgsHash(`{"denom":"uatom"}`))
	assert.Len(t, compute.ArgsHash(a), 64)
}
