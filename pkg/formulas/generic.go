package formulas

import (
	"context"

	"github.com/chainview-network/chainview/pkg/compute"
)

func registerGeneric(reg *compute.Registry) {
	reg.MustRegister(&compute.Formula{
		Type: compute.FormulaTypeGeneric,
		Name: "chain/communityPool",
		Compute: func(ctx context.Context, env *compute.Env) (any, error) {
			balances, ok, err := env.GetCommunityPoolBalances(ctx)
			if err != nil {
				return nil, err
			}
			if !ok {
				return map[string]string{}, nil
			}
			return balances, nil
		},
	})

	reg.MustRegister(&compute.Formula{
		Type: compute.FormulaTypeGeneric,
		Name: "gov/proposal",
		Compute: func(ctx context.Context, env *compute.Env) (any, error) {
			id, err := env.RequireArg("id")
			if err != nil {
				return nil, err
			}
			proposal, ok, err := env.GetProposal(ctx, id)
			if err != nil || !ok {
				return nil, err
			}
			return proposal, nil
		},
	})

	reg.MustRegister(&compute.Formula{
		Type: compute.FormulaTypeGeneric,
		Name: "gov/proposals",
		Compute: func(ctx context.Context, env *compute.Env) (any, error) {
			ascending, err := boolArg(env, "ascending", false)
			if err != nil {
				return nil, err
			}
			limit, err := uintArg(env, "limit", 0)
			if err != nil {
				return nil, err
			}
			offset, err := uintArg(env, "offset", 0)
			if err != nil {
				return nil, err
			}
			return env.GetProposals(ctx, ascending, limit, offset)
		},
	})

	reg.MustRegister(&compute.Formula{
		Type: compute.FormulaTypeGeneric,
		Name: "gov/proposalCount",
		Compute: func(ctx context.Context, env *compute.Env) (any, error) {
			return env.GetProposalCount(ctx)
		},
	})

	reg.MustRegister(&compute.Formula{
		Type: compute.FormulaTypeGeneric,
		Name: "gov/proposalVote",
		Compute: func(ctx context.Context, env *compute.Env) (any, error) {
			id, err := env.RequireArg("id")
			if err != nil {
				return nil, err
			}
			voter, err := env.RequireArg("voter")
			if err != nil {
				return nil, err
			}
			vote, ok, err := env.GetProposalVote(ctx, id, voter)
			if err != nil || !ok {
				return nil, err
			}
			return vote, nil
		},
	})

	reg.MustRegister(&compute.Formula{
		Type: compute.FormulaTypeGeneric,
		Name: "gov/proposalVotes",
		Compute: func(ctx context.Context, env *compute.Env) (any, error) {
			id, err := env.RequireArg("id")
			if err != nil {
				return nil, err
			}
			ascending, err := boolArg(env, "ascending", false)
			if err != nil {
				return nil, err
			}
			limit, err := uintArg(env, "limit", 0)
			if err != nil {
				return nil, err
			}
			offset, err := uintArg(env, "offset", 0)
			if err != nil {
				return nil, err
			}
			return env.GetProposalVotes(ctx, id, ascending, limit, offset)
		},
	})

	reg.MustRegister(&compute.Formula{
		Type: compute.FormulaTypeGeneric,
		Name: "gov/proposalVoteCount",
		Compute: func(ctx context.Context, env *compute.Env) (any, error) {
			id, err := env.RequireArg("id")
			if err != nil {
				return nil, err
			}
			return env.GetProposalVoteCount(ctx, id)
		},
	})

	// chain/date depends on the wall clock, so it is dynamic: never cached,
	// never ranged.
	reg.MustRegister(&compute.Formula{
		Type:    compute.FormulaTypeGeneric,
		Name:    "chain/date",
		Dynamic: true,
		Compute: func(ctx context.Context, env *compute.Env) (any, error) {
			return env.Date().UnixMilli(), nil
		},
	})
}
