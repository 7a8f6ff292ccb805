package formulas_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/chainview-network/chainview/pkg/compute"
	"github.com/chainview-network/chainview/pkg/compute/computetest"
	chainmodels "github.com/chainview-network/chainview/pkg/db/models/chain"
	"github.com/chainview-network/chainview/pkg/formulas"
)

func hexKey(segments ...any) string {
	raw, err := compute.Key(segments...)
	if err != nil {
		panic(err)
	}
	return compute.EncodeKey(raw)
}

func TestCatalogueRegisters(t *testing.T) {
	reg := formulas.NewRegistry()

	for _, entry := range []struct {
		formulaType compute.FormulaType
		name        string
	}{
		{compute.FormulaTypeContract, "info"},
		{compute.FormulaTypeContract, "cw20/balance"},
		{compute.FormulaTypeContract, "dao/config"},
		{compute.FormulaTypeAccount, "bank/balances"},
		{compute.FormulaTypeValidator, "staking/slashes"},
		{compute.FormulaTypeGeneric, "gov/proposalCount"},
		{compute.FormulaTypeGeneric, "chain/communityPool"},
	} {
		_, err := reg.Lookup(entry.formulaType, entry.name)
		assert.NoError(t, err, "%s/%s", entry.formulaType, entry.name)
	}

	f, err := reg.Lookup(compute.FormulaTypeGeneric, "chain/date")
	require.NoError(t, err)
	assert.True(t, f.Dynamic)
}

func evalFormula(t *testing.T, store *computetest.Store, codeIDs compute.CodeIDConfig, formulaType compute.FormulaType, name, target string, args map[string]string) any {
	t.Helper()
	reg := formulas.NewRegistry()
	formula, err := reg.Lookup(formulaType, name)
	require.NoError(t, err)

	ev := compute.NewEvaluator(store, codeIDs, zaptest.NewLogger(t))
	res, err := ev.Compute(context.Background(), compute.ComputeRequest{
		Formula:           formula,
		ChainID:           "test-1",
		TargetAddress:     target,
		Args:              args,
		Block:             chainmodels.Block{Height: 100, TimeUnixMs: 100_000},
		LatestBlockHeight: 100,
	})
	require.NoError(t, err)
	return res.Value
}

func TestCw20BalanceFormula(t *testing.T) {
	store := computetest.NewStore()
	store.Contracts["cw20A"] = chainmodels.Contract{Address: "cw20A", CodeID: 42}
	store.WasmState = append(store.WasmState,
		chainmodels.WasmStateEvent{ContractAddress: "cw20A", Key: hexKey("balance", "holder1"), Value: `"500"`, BlockHeight: 10, BlockTimeUnixMs: 10_000},
	)
	codeIDs := compute.CodeIDConfig{Sets: map[string][]uint64{"cw20": {42}}}

	value := evalFormula(t, store, codeIDs, compute.FormulaTypeContract, "cw20/balance", "cw20A", map[string]string{"address": "holder1"})
	assert.Equal(t, `"500"`, string(value.(json.RawMessage)))

	// Unknown holders default to zero.
	value = evalFormula(t, store, codeIDs, compute.FormulaTypeContract, "cw20/balance", "cw20A", map[string]string{"address": "nobody"})
	assert.Equal(t, `"0"`, string(value.(json.RawMessage)))
}

func TestCw20AllAccountsFormula(t *testing.T) {
	store := computetest.NewStore()
	store.Contracts["cw20A"] = chainmodels.Contract{Address: "cw20A", CodeID: 42}
	store.WasmState = append(store.WasmState,
		chainmodels.WasmStateEvent{ContractAddress: "cw20A", Key: hexKey("balance", "b"), Value: `"1"`, BlockHeight: 10, BlockTimeUnixMs: 10_000},
		chainmodels.WasmStateEvent{ContractAddress: "cw20A", Key: hexKey("balance", "a"), Value: `"2"`, BlockHeight: 11, BlockTimeUnixMs: 11_000},
	)
	codeIDs := compute.CodeIDConfig{Sets: map[string][]uint64{"cw20": {42}}}

	value := evalFormula(t, store, codeIDs, compute.FormulaTypeContract, "cw20/allAccounts", "cw20A", nil)
	assert.Equal(t, []string{"a", "b"}, value)
}

func TestDaoConfigFallsBackToState(t *testing.T) {
	store := computetest.NewStore()
	store.Contracts["daoA"] = chainmodels.Contract{Address: "daoA", CodeID: 7}
	store.WasmState = append(store.WasmState,
		chainmodels.WasmStateEvent{ContractAddress: "daoA", Key: hexKey("config_v2"), Value: `{"name":"DAO"}`, BlockHeight: 5, BlockTimeUnixMs: 5_000},
	)
	codeIDs := compute.CodeIDConfig{Sets: map[string][]uint64{"dao": {7}}}

	value := evalFormula(t, store, codeIDs, compute.FormulaTypeContract, "dao/config", "daoA", nil)
	assert.JSONEq(t, `{"name":"DAO"}`, string(value.(json.RawMessage)))
}

func TestBankBalancesFormula(t *testing.T) {
	store := computetest.NewStore()
	store.BankBalances["wallet1"] = chainmodels.BankBalance{
		Address: "wallet1", Balances: map[string]string{"ujuno": "42", "uatom": "7"}, BlockHeight: 50, BlockTimeUnixMs: 50_000,
	}

	value := evalFormula(t, store, compute.CodeIDConfig{}, compute.FormulaTypeAccount, "bank/balances", "wallet1", nil)
	assert.Equal(t, map[string]string{"ujuno": "42", "uatom": "7"}, value)
}

func TestGovProposalCountFormula(t *testing.T) {
	store := computetest.NewStore()
	store.Proposals = append(store.Proposals,
		chainmodels.GovProposal{ProposalID: "1", Data: `{}`, BlockHeight: 5, BlockTimeUnixMs: 5_000},
		chainmodels.GovProposal{ProposalID: "1", Data: `{}`, BlockHeight: 8, BlockTimeUnixMs: 8_000},
		chainmodels.GovProposal{ProposalID: "2", Data: `{}`, BlockHeight: 9, BlockTimeUnixMs: 9_000},
	)

	value := evalFormula(t, store, compute.CodeIDConfig{}, compute.FormulaTypeGeneric, "gov/proposalCount", "", nil)
	assert.Equal(t, uint64(2), value)
}

func TestStakingSlashesFormula(t *testing.T) {
	store := computetest.NewStore()
	store.Validators["valoper1"] = chainmodels.Validator{OperatorAddress: "valoper1", BlockHeight: 1, BlockTimeUnixMs: 1_000}
	store.Slashes = append(store.Slashes,
		chainmodels.StakingSlashEvent{ValidatorOperatorAddress: "valoper1", RegisteredBlockHeight: 30, RegisteredBlockTimeUnixMs: 30_000, InfractionBlockHeight: 25, SlashFactor: "0.01", AmountSlashed: "100", EffectiveFraction: "0.01", StakedTokensBurned: "100"},
		chainmodels.StakingSlashEvent{ValidatorOperatorAddress: "valoper1", RegisteredBlockHeight: 60, RegisteredBlockTimeUnixMs: 60_000, InfractionBlockHeight: 55, SlashFactor: "0.05", AmountSlashed: "500", EffectiveFraction: "0.05", StakedTokensBurned: "500"},
	)

	value := evalFormula(t, store, compute.CodeIDConfig{}, compute.FormulaTypeValidator, "staking/slashCount", "valoper1", nil)
	assert.Equal(t, 2, value)

	slashes := evalFormula(t, store, compute.CodeIDConfig{}, compute.FormulaTypeValidator, "staking/slashes", "valoper1", nil)
	events, ok := slashes.([]chainmodels.StakingSlashEvent)
	require.True(t, ok)
	require.Len(t, events, 2)
	assert.Equal(t, uint64(60), events[0].RegisteredBlockHeight)
}

func TestMissingRequiredArg(t *testing.T) {
	store := computetest.NewStore()
	store.Contracts["cw20A"] = chainmodels.Contract{Address: "cw20A", CodeID: 42}
	codeIDs := compute.CodeIDConfig{Sets: map[string][]uint64{"cw20": {42}}}

	reg := formulas.NewRegistry()
	formula, err := reg.Lookup(compute.FormulaTypeContract, "cw20/balance")
	require.NoError(t, err)

	ev := compute.NewEvaluator(store, codeIDs, zaptest.NewLogger(t))
	_, err = ev.Compute(context.Background(), compute.ComputeRequest{
		Formula:           formula,
		TargetAddress:     "cw20A",
		Block:             chainmodels.Block{Height: 100, TimeUnixMs: 100_000},
		LatestBlockHeight: 100,
	})
	var formulaErr *compute.FormulaError
	require.ErrorAs(t, err, &formulaErr)
	assert.Contains(t, err.Error(), "address")
}
