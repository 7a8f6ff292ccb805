package formulas

import (
	"context"
	"fmt"

	"github.com/chainview-network/chainview/pkg/compute"
)

func registerContract(reg *compute.Registry) {
	reg.MustRegister(&compute.Formula{
		Type: compute.FormulaTypeContract,
		Name: "info",
		Compute: func(ctx context.Context, env *compute.Env) (any, error) {
			value, ok, err := env.Get(ctx, env.TargetAddress(), "contract_info")
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, fmt.Errorf("no contract info found for %s", env.TargetAddress())
			}
			return value, nil
		},
	})

	// item reads an arbitrary single storage key, the generic escape valve
	// cw-storage-plus Item state maps onto.
	reg.MustRegister(&compute.Formula{
		Type: compute.FormulaTypeContract,
		Name: "item",
		Compute: func(ctx context.Context, env *compute.Env) (any, error) {
			key, err := env.RequireArg("key")
			if err != nil {
				return nil, err
			}
			value, ok, err := env.Get(ctx, env.TargetAddress(), key)
			if err != nil || !ok {
				return nil, err
			}
			return value, nil
		},
	})

	reg.MustRegister(&compute.Formula{
		Type: compute.FormulaTypeContract,
		Name: "instantiatedAt",
		Compute: func(ctx context.Context, env *compute.Env) (any, error) {
			contract, ok, err := env.GetContract(ctx, env.TargetAddress())
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, fmt.Errorf("contract %s not found", env.TargetAddress())
			}
			return contract.InstantiatedAtBlockTimeUnixMs, nil
		},
	})

	reg.MustRegister(&compute.Formula{
		Type: compute.FormulaTypeContract,
		Name: "codeIdKey",
		Compute: func(ctx context.Context, env *compute.Env) (any, error) {
			key, ok, err := env.GetCodeIDKeyForContract(ctx, env.TargetAddress())
			if err != nil || !ok {
				return nil, err
			}
			return key, nil
		},
	})

	reg.MustRegister(&compute.Formula{
		Type: compute.FormulaTypeContract,
		Name: "txs",
		Compute: func(ctx context.Context, env *compute.Env) (any, error) {
			limit, err := uintArg(env, "limit", 0)
			if err != nil {
				return nil, err
			}
			offset, err := uintArg(env, "offset", 0)
			if err != nil {
				return nil, err
			}
			action, _ := env.Arg("action")
			sender, _ := env.Arg("sender")
			return env.GetTxEvents(ctx, env.TargetAddress(), &compute.TxEventFilter{
				Action: action,
				Sender: sender,
				Limit:  limit,
				Offset: offset,
			})
		},
	})

	reg.MustRegister(&compute.Formula{
		Type: compute.FormulaTypeContract,
		Name: "txCount",
		Compute: func(ctx context.Context, env *compute.Env) (any, error) {
			txs, err := env.GetTxEvents(ctx, env.TargetAddress(), nil)
			if err != nil {
				return nil, err
			}
			return len(txs), nil
		},
	})

	reg.MustRegister(&compute.Formula{
		Type: compute.FormulaTypeContract,
		Name: "extraction",
		Compute: func(ctx context.Context, env *compute.Env) (any, error) {
			name, err := env.RequireArg("name")
			if err != nil {
				return nil, err
			}
			row, ok, err := env.GetExtraction(ctx, env.TargetAddress(), name)
			if err != nil || !ok {
				return nil, err
			}
			return row, nil
		},
	})
}
