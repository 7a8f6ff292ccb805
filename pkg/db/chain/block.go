package chain

import (
	"context"
	"fmt"

	"github.com/chainview-network/chainview/pkg/db/clickhouse"
	chainmodels "github.com/chainview-network/chainview/pkg/db/models/chain"
)

// BlockAtOrBefore returns the block with the greatest height at-or-below
// the given height. Exact hits come from the in-process cache; blocks are
// immutable so cached rows never go stale.
func (db *DB) BlockAtOrBefore(ctx context.Context, height uint64) (*chainmodels.Block, error) {
	if block, ok := db.blockCache.Get(height); ok {
		return &block, nil
	}

	query := fmt.Sprintf(`
		SELECT height, time_unix_ms
		FROM "%s"."%s"
		WHERE height <= ?
		ORDER BY height DESC
		LIMIT 1
	`, db.Name, chainmodels.BlocksTableName)

	var block chainmodels.Block
	err := db.QueryRow(ctx, query, height).Scan(&block.Height, &block.TimeUnixMs)
	if err != nil {
		if clickhouse.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("query block at or before %d: %w", height, err)
	}
	db.blockCache.Add(block.Height, block)
	return &block, nil
}

// BlockAtOrAfterTime returns the earliest block at or after the wall-clock
// instant.
func (db *DB) BlockAtOrAfterTime(ctx context.Context, timeUnixMs uint64) (*chainmodels.Block, error) {
	query := fmt.Sprintf(`
		SELECT height, time_unix_ms
		FROM "%s"."%s"
		WHERE time_unix_ms >= ?
		ORDER BY time_unix_ms ASC
		LIMIT 1
	`, db.Name, chainmodels.BlocksTableName)

	var block chainmodels.Block
	err := db.QueryRow(ctx, query, timeUnixMs).Scan(&block.Height, &block.TimeUnixMs)
	if err != nil {
		if clickhouse.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("query block at or after time %d: %w", timeUnixMs, err)
	}
	db.blockCache.Add(block.Height, block)
	return &block, nil
}

// BlockAtOrBeforeTime returns the latest block at or before the wall-clock
// instant.
func (db *DB) BlockAtOrBeforeTime(ctx context.Context, timeUnixMs uint64) (*chainmodels.Block, error) {
	query := fmt.Sprintf(`
		SELECT height, time_unix_ms
		FROM "%s"."%s"
		WHERE time_unix_ms <= ?
		ORDER BY time_unix_ms DESC
		LIMIT 1
	`, db.Name, chainmodels.BlocksTableName)

	var block chainmodels.Block
	err := db.QueryRow(ctx, query, timeUnixMs).Scan(&block.Height, &block.TimeUnixMs)
	if err != nil {
		if clickhouse.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("query block at or before time %d: %w", timeUnixMs, err)
	}
	db.blockCache.Add(block.Height, block)
	return &block, nil
}

// FirstBlock returns the earliest ingested block.
func (db *DB) FirstBlock(ctx context.Context) (*chainmodels.Block, error) {
	query := fmt.Sprintf(`
		SELECT height, time_unix_ms
		FROM "%s"."%s"
		ORDER BY height ASC
		LIMIT 1
	`, db.Name, chainmodels.BlocksTableName)

	var block chainmodels.Block
	err := db.QueryRow(ctx, query).Scan(&block.Height, &block.TimeUnixMs)
	if err != nil {
		if clickhouse.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("query first block: %w", err)
	}
	return &block, nil
}

// GetState returns the exporter-maintained chain state singleton.
func (db *DB) GetState(ctx context.Context) (*chainmodels.State, error) {
	query := fmt.Sprintf(`
		SELECT chain_id, latest_block_height, latest_block_time_unix_ms
		FROM "%s"."%s" FINAL
		WHERE id = 1
		LIMIT 1
	`, db.Name, chainmodels.StateTableName)

	var state chainmodels.State
	err := db.QueryRow(ctx, query).Scan(&state.ChainID, &state.LatestBlockHeight, &state.LatestBlockTimeUnixMs)
	if err != nil {
		if clickhouse.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("query state: %w", err)
	}
	return &state, nil
}
