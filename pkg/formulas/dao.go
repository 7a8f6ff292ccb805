package formulas

import (
	"context"
	"encoding/json"

	"github.com/chainview-network/chainview/pkg/compute"
)

func registerDao(reg *compute.Registry) {
	// config prefers the transformer's view and falls back to raw state for
	// contracts indexed before the transformer existed.
	reg.MustRegister(&compute.Formula{
		Type:   compute.FormulaTypeContract,
		Name:   "dao/config",
		Filter: &compute.CodeIDFilter{CodeIDKeys: []string{"dao"}},
		Compute: func(ctx context.Context, env *compute.Env) (any, error) {
			match, ok, err := env.GetTransformationMatch(ctx, env.TargetAddress(), "config")
			if err != nil {
				return nil, err
			}
			if ok {
				return match.Value, nil
			}
			for _, key := range []string{"config_v2", "config"} {
				value, ok, err := env.Get(ctx, env.TargetAddress(), key)
				if err != nil {
					return nil, err
				}
				if ok {
					return value, nil
				}
			}
			return nil, nil
		},
	})

	reg.MustRegister(&compute.Formula{
		Type:   compute.FormulaTypeContract,
		Name:   "dao/proposalCount",
		Filter: &compute.CodeIDFilter{CodeIDKeys: []string{"dao"}},
		Compute: func(ctx context.Context, env *compute.Env) (any, error) {
			match, ok, err := env.GetTransformationMatch(ctx, env.TargetAddress(), "proposalCount")
			if err != nil {
				return nil, err
			}
			if !ok {
				return json.RawMessage("0"), nil
			}
			return match.Value, nil
		},
	})

	// proposalModules maps module key to its registration, via the
	// transformer's proposalModule:<key> family.
	reg.MustRegister(&compute.Formula{
		Type:   compute.FormulaTypeContract,
		Name:   "dao/proposalModules",
		Filter: &compute.CodeIDFilter{CodeIDKeys: []string{"dao"}},
		Compute: func(ctx context.Context, env *compute.Env) (any, error) {
			return env.GetTransformationMap(ctx, env.TargetAddress(), "proposalModule")
		},
	})

	reg.MustRegister(&compute.Formula{
		Type:   compute.FormulaTypeContract,
		Name:   "dao/createdAt",
		Filter: &compute.CodeIDFilter{CodeIDKeys: []string{"dao"}},
		Compute: func(ctx context.Context, env *compute.Env) (any, error) {
			if at, ok, err := env.GetDateFirstTransformed(ctx, env.TargetAddress(), "config"); err != nil || ok {
				if err != nil {
					return nil, err
				}
				return at, nil
			}
			at, ok, err := env.GetDateKeyFirstSet(ctx, env.TargetAddress(), "contract_info")
			if err != nil || !ok {
				return nil, err
			}
			return at, nil
		},
	})
}
