package formulas

import (
	"context"

	"github.com/chainview-network/chainview/pkg/compute"
)

func registerValidator(reg *compute.Registry) {
	reg.MustRegister(&compute.Formula{
		Type: compute.FormulaTypeValidator,
		Name: "staking/slashes",
		Compute: func(ctx context.Context, env *compute.Env) (any, error) {
			return env.GetSlashEvents(ctx, env.TargetAddress())
		},
	})

	reg.MustRegister(&compute.Formula{
		Type: compute.FormulaTypeValidator,
		Name: "staking/slashCount",
		Compute: func(ctx context.Context, env *compute.Env) (any, error) {
			slashes, err := env.GetSlashEvents(ctx, env.TargetAddress())
			if err != nil {
				return nil, err
			}
			return len(slashes), nil
		},
	})
}
