package compute_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainview-network/chainview/pkg/compute"
	"github.com/chainview-network/chainview/pkg/compute/computetest"
	chainmodels "github.com/chainview-network/chainview/pkg/db/models/chain"
)

const contractA = "contractA"

func hexKey(segments ...any) string {
	raw, err := compute.Key(segments...)
	if err != nil {
		panic(err)
	}
	return compute.EncodeKey(raw)
}

func hexPrefix(segments ...any) string {
	raw, err := compute.KeyPrefix(segments...)
	if err != nil {
		panic(err)
	}
	return compute.EncodeKey(raw)
}

// seedScenario populates the store with the canonical three-write history:
// values "1"/"2"/"3" at heights 10/20/30 for (contractA, k).
func seedScenario(store *computetest.Store) {
	key := hexKey("k")
	store.WasmState = append(store.WasmState,
		chainmodels.WasmStateEvent{ContractAddress: contractA, Key: key, Value: "1", BlockHeight: 10, BlockTimeUnixMs: 10_000},
		chainmodels.WasmStateEvent{ContractAddress: contractA, Key: key, Value: "2", BlockHeight: 20, BlockTimeUnixMs: 20_000},
		chainmodels.WasmStateEvent{ContractAddress: contractA, Key: key, Value: "3", BlockHeight: 30, BlockTimeUnixMs: 30_000},
	)
}

func newEnv(store *computetest.Store, height uint64) (*compute.Env, *compute.Recorder) {
	rec := compute.NewRecorder()
	env := compute.NewEnv(compute.EnvOptions{
		ChainID:       "test-1",
		TargetAddress: contractA,
		Block:         chainmodels.Block{Height: height, TimeUnixMs: height * 1000},
		UseBlockDate:  true,
		Store:         store,
		Recorder:      rec,
	})
	return env, rec
}

// TestGetMostRecentSemantics checks that point reads return the row
// with greatest height at-or-below the target.
func TestGetMostRecentSemantics(t *testing.T) {
	store := computetest.NewStore()
	seedScenario(store)
	ctx := context.Background()

	tests := []struct {
		height   uint64
		expected string
		found    bool
	}{
		{height: 25, expected: "2", found: true},
		{height: 30, expected: "3", found: true},
		{height: 9, found: false},
		{height: 10, expected: "1", found: true},
	}

	for _, tt := range tests {
		env, _ := newEnv(store, tt.height)
		value, found, err := env.Get(ctx, contractA, "k")
		require.NoError(t, err)
		assert.Equal(t, tt.found, found, "height %d", tt.height)
		if tt.found {
			assert.Equal(t, tt.expected, string(value), "height %d", tt.height)
		}
	}
}

// TestTombstoneShadowing checks that a delete at height 25 shadows
// the key afterwards, but still counts as the most recent modification.
func TestTombstoneShadowing(t *testing.T) {
	store := computetest.NewStore()
	seedScenario(store)
	store.WasmState = append(store.WasmState, chainmodels.WasmStateEvent{
		ContractAddress: contractA, Key: hexKey("k"), Deleted: true, BlockHeight: 25, BlockTimeUnixMs: 25_000,
	})
	ctx := context.Background()

	env, _ := newEnv(store, 27)
	_, found, err := env.Get(ctx, contractA, "k")
	require.NoError(t, err)
	assert.False(t, found)

	modified, ok, err := env.GetDateKeyModified(ctx, contractA, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(25_000), modified)

	// First set skips the tombstone and reads ascending.
	firstSet, ok, err := env.GetDateKeyFirstSet(ctx, contractA, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(10_000), firstSet)
}

func TestGetRecordsDependencyOnMiss(t *testing.T) {
	store := computetest.NewStore()
	ctx := context.Background()

	env, rec := newEnv(store, 100)
	_, found, err := env.Get(ctx, contractA, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	events, _ := rec.Snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, "wasm_state:contractA:"+hexKey("missing"), events[0].Key)
	assert.False(t, events[0].Prefix)
}

// TestMemoSafety checks that within one evaluation, re-reading the same key
// performs zero additional store reads.
func TestMemoSafety(t *testing.T) {
	store := computetest.NewStore()
	seedScenario(store)
	ctx := context.Background()

	env, _ := newEnv(store, 30)
	_, _, err := env.Get(ctx, contractA, "k")
	require.NoError(t, err)
	queriesAfterFirst := store.Queries()

	for i := 0; i < 5; i++ {
		value, found, err := env.Get(ctx, contractA, "k")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "3", string(value))
	}
	assert.Equal(t, queriesAfterFirst, store.Queries())

	// A fresh Env does not share the memo.
	env2, _ := newEnv(store, 30)
	_, _, err = env2.Get(ctx, contractA, "k")
	require.NoError(t, err)
	assert.Equal(t, queriesAfterFirst+1, store.Queries())
}

func TestGetMapAndMemoCoverage(t *testing.T) {
	store := computetest.NewStore()
	store.WasmState = append(store.WasmState,
		chainmodels.WasmStateEvent{ContractAddress: contractA, Key: hexKey("balance", "addr1"), Value: `"100"`, BlockHeight: 5, BlockTimeUnixMs: 5_000},
		chainmodels.WasmStateEvent{ContractAddress: contractA, Key: hexKey("balance", "addr2"), Value: `"250"`, BlockHeight: 7, BlockTimeUnixMs: 7_000},
		chainmodels.WasmStateEvent{ContractAddress: contractA, Key: hexKey("balance", "addr3"), Value: `"1"`, Deleted: true, BlockHeight: 8, BlockTimeUnixMs: 8_000},
	)
	ctx := context.Background()

	env, rec := newEnv(store, 10)
	balances, err := env.GetMap(ctx, contractA, compute.KeyTypeString, "balance")
	require.NoError(t, err)
	assert.Equal(t, map[string]json.RawMessage{
		"addr1": json.RawMessage(`"100"`),
		"addr2": json.RawMessage(`"250"`),
	}, balances)

	events, _ := rec.Snapshot()
	require.Len(t, events, 1)
	assert.True(t, events[0].Prefix)
	assert.Equal(t, "wasm_state:contractA:"+hexPrefix("balance"), events[0].Key)

	// Point reads inside the fetched prefix resolve from the memo,
	// including misses and tombstones.
	queriesAfterMap := store.Queries()
	value, found, err := env.Get(ctx, contractA, "balance", "addr1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, `"100"`, string(value))

	_, found, err = env.Get(ctx, contractA, "balance", "addr3")
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = env.Get(ctx, contractA, "balance", "addr4")
	require.NoError(t, err)
	assert.False(t, found)

	assert.Equal(t, queriesAfterMap, store.Queries())
}

func TestGetMapNumberKeys(t *testing.T) {
	store := computetest.NewStore()
	store.WasmState = append(store.WasmState,
		chainmodels.WasmStateEvent{ContractAddress: contractA, Key: hexKey("proposals", uint64(1)), Value: `{"id":1}`, BlockHeight: 5, BlockTimeUnixMs: 5_000},
		chainmodels.WasmStateEvent{ContractAddress: contractA, Key: hexKey("proposals", uint64(12)), Value: `{"id":12}`, BlockHeight: 6, BlockTimeUnixMs: 6_000},
	)
	ctx := context.Background()

	env, _ := newEnv(store, 10)
	proposals, err := env.GetMap(ctx, contractA, compute.KeyTypeNumber, "proposals")
	require.NoError(t, err)
	assert.Len(t, proposals, 2)
	assert.JSONEq(t, `{"id":1}`, string(proposals["1"]))
	assert.JSONEq(t, `{"id":12}`, string(proposals["12"]))
}

func TestPrefetchPopulatesMemo(t *testing.T) {
	store := computetest.NewStore()
	seedScenario(store)
	store.WasmState = append(store.WasmState,
		chainmodels.WasmStateEvent{ContractAddress: contractA, Key: hexKey("balance", "addr1"), Value: `"5"`, BlockHeight: 4, BlockTimeUnixMs: 4_000},
	)
	ctx := context.Background()

	env, _ := newEnv(store, 30)
	require.NoError(t, env.Prefetch(ctx, contractA,
		compute.PrefetchKey{Segments: []any{"k"}},
		compute.PrefetchKey{Segments: []any{"balance"}, Prefix: true},
	))

	queriesAfterPrefetch := store.Queries()

	_, _, err := env.Get(ctx, contractA, "k")
	require.NoError(t, err)
	_, err = env.GetMap(ctx, contractA, compute.KeyTypeString, "balance")
	require.NoError(t, err)
	_, _, err = env.Get(ctx, contractA, "balance", "addr1")
	require.NoError(t, err)

	assert.Equal(t, queriesAfterPrefetch, store.Queries())
}

func TestTransformationMatches(t *testing.T) {
	store := computetest.NewStore()
	store.Contracts["daoA"] = chainmodels.Contract{Address: "daoA", CodeID: 10}
	store.Contracts["other"] = chainmodels.Contract{Address: "other", CodeID: 99}
	store.Transformations = append(store.Transformations,
		chainmodels.WasmStateEventTransformation{ContractAddress: "daoA", Name: "proposal:1", Value: `{"id":1}`, BlockHeight: 5, BlockTimeUnixMs: 5_000},
		chainmodels.WasmStateEventTransformation{ContractAddress: "daoA", Name: "proposal:1", Value: `{"id":1,"v":2}`, BlockHeight: 9, BlockTimeUnixMs: 9_000},
		chainmodels.WasmStateEventTransformation{ContractAddress: "daoA", Name: "proposal:2", Value: "", BlockHeight: 7, BlockTimeUnixMs: 7_000},
		chainmodels.WasmStateEventTransformation{ContractAddress: "other", Name: "proposal:9", Value: `{"id":9}`, BlockHeight: 6, BlockTimeUnixMs: 6_000},
	)
	ctx := context.Background()

	rec := compute.NewRecorder()
	env := compute.NewEnv(compute.EnvOptions{
		Block:    chainmodels.Block{Height: 10, TimeUnixMs: 10_000},
		Store:    store,
		Recorder: rec,
		CodeIDs:  compute.CodeIDConfig{Sets: map[string][]uint64{"dao": {10}}},
	})

	// Glob across every contract; the null-valued row is omitted.
	matches, err := env.GetTransformationMatches(ctx, "", "proposal:*", nil)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "daoA", matches[0].ContractAddress)
	assert.JSONEq(t, `{"id":1,"v":2}`, string(matches[0].Value))
	assert.Equal(t, "other", matches[1].ContractAddress)

	// Code-id filtering applies after the query.
	matches, err = env.GetTransformationMatches(ctx, "", "proposal:*", &compute.TransformationMatchesOptions{
		CodeIDKeys: []string{"dao"},
	})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "daoA", matches[0].ContractAddress)

	match, ok, err := env.GetTransformationMatch(ctx, "daoA", "proposal:1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "proposal:1", match.Name)
}

func TestTransformationMap(t *testing.T) {
	store := computetest.NewStore()
	store.Transformations = append(store.Transformations,
		chainmodels.WasmStateEventTransformation{ContractAddress: contractA, Name: "member:addr1", Value: `"10"`, BlockHeight: 3, BlockTimeUnixMs: 3_000},
		chainmodels.WasmStateEventTransformation{ContractAddress: contractA, Name: "member:addr2", Value: "", BlockHeight: 4, BlockTimeUnixMs: 4_000},
		chainmodels.WasmStateEventTransformation{ContractAddress: contractA, Name: "membership", Value: `"x"`, BlockHeight: 5, BlockTimeUnixMs: 5_000},
	)
	ctx := context.Background()

	env, rec := newEnv(store, 10)
	members, err := env.GetTransformationMap(ctx, contractA, "member")
	require.NoError(t, err)
	assert.Equal(t, map[string]json.RawMessage{"addr1": json.RawMessage(`"10"`)}, members)

	_, transformations := rec.Snapshot()
	require.Len(t, transformations, 1)
	assert.True(t, transformations[0].Prefix)
	assert.Equal(t, "wasm_transformation:contractA:member:", transformations[0].Key)
}

func TestBalancePrefersSnapshot(t *testing.T) {
	store := computetest.NewStore()
	store.BankBalances["wallet1"] = chainmodels.BankBalance{
		Address: "wallet1", Balances: map[string]string{"ujuno": "42"}, BlockHeight: 50, BlockTimeUnixMs: 50_000,
	}
	ctx := context.Background()

	rec := compute.NewRecorder()
	env := compute.NewEnv(compute.EnvOptions{
		Block:    chainmodels.Block{Height: 60, TimeUnixMs: 60_000},
		Store:    store,
		Recorder: rec,
	})

	balance, found, err := env.GetBalance(ctx, "wallet1", "ujuno")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "42", balance)

	events, _ := rec.Snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, "bank_balance:wallet1", events[0].Key)
}

// TestBalanceHistoryFallback checks that per-denom history answers
// only for contracts whose code-id key is in the tracked set.
func TestBalanceHistoryFallback(t *testing.T) {
	store := computetest.NewStore()
	store.Contracts["vaultA"] = chainmodels.Contract{Address: "vaultA", CodeID: 7}
	// Snapshot exists but is newer than the target height.
	store.BankBalances["vaultA"] = chainmodels.BankBalance{
		Address: "vaultA", Balances: map[string]string{"ujuno": "999"}, BlockHeight: 100, BlockTimeUnixMs: 100_000,
	}
	store.BankState = append(store.BankState,
		chainmodels.BankStateEvent{Address: "vaultA", Denom: "ujuno", Balance: "10", BlockHeight: 20, BlockTimeUnixMs: 20_000},
		chainmodels.BankStateEvent{Address: "vaultA", Denom: "ujuno", Balance: "30", BlockHeight: 40, BlockTimeUnixMs: 40_000},
	)
	ctx := context.Background()

	codeIDs := compute.CodeIDConfig{
		Sets:                 map[string][]uint64{"vault": {7}},
		TrackBankHistoryKeys: []string{"vault"},
	}

	env := compute.NewEnv(compute.EnvOptions{
		Block:   chainmodels.Block{Height: 45, TimeUnixMs: 45_000},
		Store:   store,
		CodeIDs: codeIDs,
	})
	balance, found, err := env.GetBalance(ctx, "vaultA", "ujuno")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "30", balance)

	// An untracked address gets no fallback.
	env2 := compute.NewEnv(compute.EnvOptions{
		Block: chainmodels.Block{Height: 45, TimeUnixMs: 45_000},
		Store: store,
	})
	_, found, err = env2.GetBalance(ctx, "vaultA", "ujuno")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestFeegrantSides(t *testing.T) {
	store := computetest.NewStore()
	store.Feegrants = append(store.Feegrants,
		chainmodels.FeegrantAllowance{Granter: "g1", Grantee: "w1", Active: true, BlockHeight: 5, BlockTimeUnixMs: 5_000},
		chainmodels.FeegrantAllowance{Granter: "g1", Grantee: "w2", Active: true, BlockHeight: 6, BlockTimeUnixMs: 6_000},
		chainmodels.FeegrantAllowance{Granter: "g1", Grantee: "w2", Active: false, BlockHeight: 8, BlockTimeUnixMs: 8_000},
	)
	ctx := context.Background()

	rec := compute.NewRecorder()
	env := compute.NewEnv(compute.EnvOptions{
		Block:    chainmodels.Block{Height: 10, TimeUnixMs: 10_000},
		Store:    store,
		Recorder: rec,
	})

	granted, err := env.GetFeegrantAllowances(ctx, "g1", compute.GrantSideGranted)
	require.NoError(t, err)
	require.Len(t, granted, 1)
	assert.Equal(t, "w1", granted[0].Grantee)

	has, err := env.HasFeegrantAllowance(ctx, "g1", "w2")
	require.NoError(t, err)
	assert.False(t, has)

	has, err = env.HasFeegrantAllowance(ctx, "g1", "w1")
	require.NoError(t, err)
	assert.True(t, has)

	events, _ := rec.Snapshot()
	keys := make([]string, 0, len(events))
	for _, dep := range events {
		keys = append(keys, dep.Key)
	}
	assert.Contains(t, keys, "feegrant:g1:*")
	assert.Contains(t, keys, "feegrant:g1:w1")
	assert.Contains(t, keys, "feegrant:g1:w2")
}

func TestTxEventsAlwaysPrefixDependency(t *testing.T) {
	store := computetest.NewStore()
	store.Txs = append(store.Txs,
		chainmodels.WasmTxEvent{ContractAddress: contractA, Action: "execute", Sender: "w1", BlockHeight: 5, TxIndex: 0, BlockTimeUnixMs: 5_000},
		chainmodels.WasmTxEvent{ContractAddress: contractA, Action: "instantiate", Sender: "w2", BlockHeight: 3, TxIndex: 1, BlockTimeUnixMs: 3_000},
	)
	ctx := context.Background()

	env, rec := newEnv(store, 10)
	txs, err := env.GetTxEvents(ctx, contractA, &compute.TxEventFilter{Action: "execute"})
	require.NoError(t, err)
	require.Len(t, txs, 1)

	events, _ := rec.Snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, "wasm_tx:contractA:", events[0].Key)
	assert.True(t, events[0].Prefix)
}

func TestQueryRejectsWrites(t *testing.T) {
	store := computetest.NewStore()
	env, _ := newEnv(store, 10)

	_, err := env.Query(context.Background(), "INSERT INTO x VALUES (1)")
	assert.Error(t, err)

	_, err = env.Query(context.Background(), "SELECT 1")
	assert.NoError(t, err)
}

func TestEnvRejectsMalformedAddress(t *testing.T) {
	store := computetest.NewStore()
	env, _ := newEnv(store, 10)

	_, _, err := env.Get(context.Background(), "bad:address", "k")
	assert.ErrorContains(t, err, "namespace collision")
}

func TestOnFetchHook(t *testing.T) {
	store := computetest.NewStore()
	seedScenario(store)

	fetched := 0
	env := compute.NewEnv(compute.EnvOptions{
		Block:   chainmodels.Block{Height: 30, TimeUnixMs: 30_000},
		Store:   store,
		OnFetch: func(rows int) { fetched += rows },
	})

	_, _, err := env.Get(context.Background(), contractA, "k")
	require.NoError(t, err)
	assert.Equal(t, 1, fetched)

	// Memo hits do not re-invoke the hook.
	_, _, err = env.Get(context.Background(), contractA, "k")
	require.NoError(t, err)
	assert.Equal(t, 1, fetched)
}
