package formulas

import (
	"context"
	"encoding/json"

	"github.com/chainview-network/chainview/pkg/compute"
)

func registerAccount(reg *compute.Registry) {
	reg.MustRegister(&compute.Formula{
		Type: compute.FormulaTypeAccount,
		Name: "bank/balance",
		Compute: func(ctx context.Context, env *compute.Env) (any, error) {
			denom, err := env.RequireArg("denom")
			if err != nil {
				return nil, err
			}
			balance, ok, err := env.GetBalance(ctx, env.TargetAddress(), denom)
			if err != nil {
				return nil, err
			}
			if !ok {
				return json.RawMessage(`"0"`), nil
			}
			return balance, nil
		},
	})

	reg.MustRegister(&compute.Formula{
		Type: compute.FormulaTypeAccount,
		Name: "bank/balances",
		Compute: func(ctx context.Context, env *compute.Env) (any, error) {
			return env.GetBalances(ctx, env.TargetAddress())
		},
	})

	reg.MustRegister(&compute.Formula{
		Type: compute.FormulaTypeAccount,
		Name: "feegrant/granted",
		Compute: func(ctx context.Context, env *compute.Env) (any, error) {
			return env.GetFeegrantAllowances(ctx, env.TargetAddress(), compute.GrantSideGranted)
		},
	})

	reg.MustRegister(&compute.Formula{
		Type: compute.FormulaTypeAccount,
		Name: "feegrant/received",
		Compute: func(ctx context.Context, env *compute.Env) (any, error) {
			return env.GetFeegrantAllowances(ctx, env.TargetAddress(), compute.GrantSideReceived)
		},
	})

	reg.MustRegister(&compute.Formula{
		Type: compute.FormulaTypeAccount,
		Name: "feegrant/hasAllowance",
		Compute: func(ctx context.Context, env *compute.Env) (any, error) {
			granter, err := env.RequireArg("granter")
			if err != nil {
				return nil, err
			}
			return env.HasFeegrantAllowance(ctx, granter, env.TargetAddress())
		},
	})
}
