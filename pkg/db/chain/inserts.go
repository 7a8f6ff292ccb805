package chain

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	chainmodels "github.com/chainview-network/chainview/pkg/db/models/chain"
)

// Batch insert helpers. The exporter owns these tables in production; the
// query side keeps insert paths for fixtures and integration tests, and
// they double as the schema's executable documentation.

func (db *DB) batchInsert(ctx context.Context, table, cols string, appendRows func(driver.Batch) error) error {
	query := fmt.Sprintf(`INSERT INTO "%s"."%s" (%s) VALUES`, db.Name, table, cols)
	batch, err := db.PrepareBatch(ctx, query)
	if err != nil {
		return err
	}
	defer func(batch driver.Batch) {
		_ = batch.Abort()
	}(batch)

	if err := appendRows(batch); err != nil {
		return err
	}
	return batch.Send()
}

// InsertBlocks inserts block rows.
func (db *DB) InsertBlocks(ctx context.Context, blocks []*chainmodels.Block) error {
	if len(blocks) == 0 {
		return nil
	}
	return db.batchInsert(ctx, chainmodels.BlocksTableName, "height, time_unix_ms", func(batch driver.Batch) error {
		for _, b := range blocks {
			if err := batch.Append(b.Height, b.TimeUnixMs); err != nil {
				return err
			}
		}
		return nil
	})
}

// SetState writes the chain state singleton.
func (db *DB) SetState(ctx context.Context, state *chainmodels.State) error {
	return db.batchInsert(ctx, chainmodels.StateTableName, "id, chain_id, latest_block_height, latest_block_time_unix_ms", func(batch driver.Batch) error {
		return batch.Append(uint8(1), state.ChainID, state.LatestBlockHeight, state.LatestBlockTimeUnixMs)
	})
}

// InsertWasmStateEvents inserts wasm state event rows.
func (db *DB) InsertWasmStateEvents(ctx context.Context, events []*chainmodels.WasmStateEvent) error {
	if len(events) == 0 {
		return nil
	}
	return db.batchInsert(ctx, chainmodels.WasmStateEventsTableName, wasmStateEventCols, func(batch driver.Batch) error {
		for _, e := range events {
			if err := batch.Append(e.ContractAddress, e.Key, e.Value, e.Deleted, e.BlockHeight, e.BlockTimeUnixMs); err != nil {
				return err
			}
		}
		return nil
	})
}

// InsertTransformations inserts transformation rows.
func (db *DB) InsertTransformations(ctx context.Context, rows []*chainmodels.WasmStateEventTransformation) error {
	if len(rows) == 0 {
		return nil
	}
	return db.batchInsert(ctx, chainmodels.WasmStateEventTransformationsTableName, transformationCols, func(batch driver.Batch) error {
		for _, t := range rows {
			if err := batch.Append(t.ContractAddress, t.Name, t.Value, t.BlockHeight, t.BlockTimeUnixMs); err != nil {
				return err
			}
		}
		return nil
	})
}

// InsertWasmTxEvents inserts transaction rows.
func (db *DB) InsertWasmTxEvents(ctx context.Context, rows []*chainmodels.WasmTxEvent) error {
	if len(rows) == 0 {
		return nil
	}
	return db.batchInsert(ctx, chainmodels.WasmTxEventsTableName, wasmTxEventCols, func(batch driver.Batch) error {
		for _, t := range rows {
			if err := batch.Append(t.ContractAddress, t.Action, t.Sender, t.Msg, t.Reply, t.Funds,
				t.Response, t.GasUsed, t.TxIndex, t.BlockHeight, t.BlockTimeUnixMs); err != nil {
				return err
			}
		}
		return nil
	})
}

// InsertBankStateEvents inserts per-denom balance history rows.
func (db *DB) InsertBankStateEvents(ctx context.Context, rows []*chainmodels.BankStateEvent) error {
	if len(rows) == 0 {
		return nil
	}
	return db.batchInsert(ctx, chainmodels.BankStateEventsTableName, "address, denom, balance, block_height, block_time_unix_ms", func(batch driver.Batch) error {
		for _, b := range rows {
			if err := batch.Append(b.Address, b.Denom, b.Balance, b.BlockHeight, b.BlockTimeUnixMs); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpsertBankBalances rewrites latest aggregate balance rows.
func (db *DB) UpsertBankBalances(ctx context.Context, rows []*chainmodels.BankBalance) error {
	if len(rows) == 0 {
		return nil
	}
	return db.batchInsert(ctx, chainmodels.BankBalancesTableName, "address, balances, block_height, block_time_unix_ms", func(batch driver.Batch) error {
		for _, b := range rows {
			if err := batch.Append(b.Address, b.Balances, b.BlockHeight, b.BlockTimeUnixMs); err != nil {
				return err
			}
		}
		return nil
	})
}

// InsertStakingSlashEvents inserts slash rows.
func (db *DB) InsertStakingSlashEvents(ctx context.Context, rows []*chainmodels.StakingSlashEvent) error {
	if len(rows) == 0 {
		return nil
	}
	cols := "validator_operator_address, registered_block_height, registered_block_time_unix_ms, infraction_block_height, slash_factor, amount_slashed, effective_fraction, staked_tokens_burned"
	return db.batchInsert(ctx, chainmodels.StakingSlashEventsTableName, cols, func(batch driver.Batch) error {
		for _, s := range rows {
			if err := batch.Append(s.ValidatorOperatorAddress, s.RegisteredBlockHeight, s.RegisteredBlockTimeUnixMs,
				s.InfractionBlockHeight, s.SlashFactor, s.AmountSlashed, s.EffectiveFraction, s.StakedTokensBurned); err != nil {
				return err
			}
		}
		return nil
	})
}

// InsertGovProposals inserts proposal snapshot rows.
func (db *DB) InsertGovProposals(ctx context.Context, rows []*chainmodels.GovProposal) error {
	if len(rows) == 0 {
		return nil
	}
	return db.batchInsert(ctx, chainmodels.GovProposalsTableName, govProposalCols, func(batch driver.Batch) error {
		for _, p := range rows {
			if err := batch.Append(p.ProposalID, p.Data, p.BlockHeight, p.BlockTimeUnixMs); err != nil {
				return err
			}
		}
		return nil
	})
}

// InsertGovProposalVotes inserts vote rows.
func (db *DB) InsertGovProposalVotes(ctx context.Context, rows []*chainmodels.GovProposalVote) error {
	if len(rows) == 0 {
		return nil
	}
	return db.batchInsert(ctx, chainmodels.GovProposalVotesTableName, govVoteCols, func(batch driver.Batch) error {
		for _, v := range rows {
			if err := batch.Append(v.ProposalID, v.VoterAddress, v.Data, v.BlockHeight, v.BlockTimeUnixMs); err != nil {
				return err
			}
		}
		return nil
	})
}

// InsertCommunityPoolStateEvents inserts community pool snapshot rows.
func (db *DB) InsertCommunityPoolStateEvents(ctx context.Context, rows []*chainmodels.CommunityPoolStateEvent) error {
	if len(rows) == 0 {
		return nil
	}
	return db.batchInsert(ctx, chainmodels.CommunityPoolStateEventsTableName, "balances, block_height, block_time_unix_ms", func(batch driver.Batch) error {
		for _, c := range rows {
			if err := batch.Append(c.Balances, c.BlockHeight, c.BlockTimeUnixMs); err != nil {
				return err
			}
		}
		return nil
	})
}

// InsertExtractions inserts extraction rows.
func (db *DB) InsertExtractions(ctx context.Context, rows []*chainmodels.Extraction) error {
	if len(rows) == 0 {
		return nil
	}
	return db.batchInsert(ctx, chainmodels.ExtractionsTableName, "address, name, data, block_height, block_time_unix_ms", func(batch driver.Batch) error {
		for _, e := range rows {
			if err := batch.Append(e.Address, e.Name, e.Data, e.BlockHeight, e.BlockTimeUnixMs); err != nil {
				return err
			}
		}
		return nil
	})
}

// InsertFeegrantAllowances inserts allowance rows.
func (db *DB) InsertFeegrantAllowances(ctx context.Context, rows []*chainmodels.FeegrantAllowance) error {
	if len(rows) == 0 {
		return nil
	}
	return db.batchInsert(ctx, chainmodels.FeegrantAllowancesTableName, feegrantCols, func(batch driver.Batch) error {
		for _, f := range rows {
			if err := batch.Append(f.Granter, f.Grantee, f.Data, f.Active, f.BlockHeight, f.BlockTimeUnixMs); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpsertContracts writes contract registry rows.
func (db *DB) UpsertContracts(ctx context.Context, rows []*chainmodels.Contract) error {
	if len(rows) == 0 {
		return nil
	}
	cols := "address, code_id, admin, creator, label, instantiated_at_block_height, instantiated_at_block_time_unix_ms"
	return db.batchInsert(ctx, chainmodels.ContractsTableName, cols, func(batch driver.Batch) error {
		for _, c := range rows {
			if err := batch.Append(c.Address, c.CodeID, c.Admin, c.Creator, c.Label,
				c.InstantiatedAtBlockHeight, c.InstantiatedAtBlockTimeUnixMs); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpsertValidators writes validator registry rows.
func (db *DB) UpsertValidators(ctx context.Context, rows []*chainmodels.Validator) error {
	if len(rows) == 0 {
		return nil
	}
	return db.batchInsert(ctx, chainmodels.ValidatorsTableName, "operator_address, block_height, block_time_unix_ms", func(batch driver.Batch) error {
		for _, v := range rows {
			if err := batch.Append(v.OperatorAddress, v.BlockHeight, v.BlockTimeUnixMs); err != nil {
				return err
			}
		}
		return nil
	})
}
