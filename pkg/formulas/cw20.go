package formulas

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/chainview-network/chainview/pkg/compute"
)

func registerCw20(reg *compute.Registry) {
	reg.MustRegister(&compute.Formula{
		Type:   compute.FormulaTypeContract,
		Name:   "cw20/balance",
		Filter: &compute.CodeIDFilter{CodeIDKeys: []string{"cw20"}},
		Compute: func(ctx context.Context, env *compute.Env) (any, error) {
			address, err := env.RequireArg("address")
			if err != nil {
				return nil, err
			}
			value, ok, err := env.Get(ctx, env.TargetAddress(), "balance", address)
			if err != nil {
				return nil, err
			}
			if !ok {
				return json.RawMessage(`"0"`), nil
			}
			return value, nil
		},
	})

	reg.MustRegister(&compute.Formula{
		Type:   compute.FormulaTypeContract,
		Name:   "cw20/tokenInfo",
		Filter: &compute.CodeIDFilter{CodeIDKeys: []string{"cw20"}},
		Compute: func(ctx context.Context, env *compute.Env) (any, error) {
			value, ok, err := env.Get(ctx, env.TargetAddress(), "token_info")
			if err != nil || !ok {
				return nil, err
			}
			return value, nil
		},
	})

	reg.MustRegister(&compute.Formula{
		Type:   compute.FormulaTypeContract,
		Name:   "cw20/totalSupply",
		Filter: &compute.CodeIDFilter{CodeIDKeys: []string{"cw20"}},
		Compute: func(ctx context.Context, env *compute.Env) (any, error) {
			value, ok, err := env.Get(ctx, env.TargetAddress(), "token_info")
			if err != nil || !ok {
				return nil, err
			}
			var info struct {
				TotalSupply json.RawMessage `json:"total_supply"`
			}
			if err := json.Unmarshal(value, &info); err != nil {
				return nil, err
			}
			return info.TotalSupply, nil
		},
	})

	reg.MustRegister(&compute.Formula{
		Type:   compute.FormulaTypeContract,
		Name:   "cw20/allAccounts",
		Filter: &compute.CodeIDFilter{CodeIDKeys: []string{"cw20"}},
		Compute: func(ctx context.Context, env *compute.Env) (any, error) {
			balances, err := env.GetMap(ctx, env.TargetAddress(), compute.KeyTypeString, "balance")
			if err != nil {
				return nil, err
			}
			accounts := make([]string, 0, len(balances))
			for account := range balances {
				accounts = append(accounts, account)
			}
			sort.Strings(accounts)
			return accounts, nil
		},
	})
}
