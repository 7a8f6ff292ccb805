package chain

import (
	"context"
	"fmt"

	"github.com/chainview-network/chainview/pkg/db/clickhouse"
	chainmodels "github.com/chainview-network/chainview/pkg/db/models/chain"
)

const wasmStateEventCols = "contract_address, key, value, deleted, block_height, block_time_unix_ms"

// WasmStateLatest returns the most recent write (or tombstone) of the key
// at-or-below the target height, or nil when none exists.
func (db *DB) WasmStateLatest(ctx context.Context, contractAddress, hexKey string, height uint64) (*chainmodels.WasmStateEvent, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM "%s"."%s"
		WHERE contract_address = ? AND key = ? AND block_height <= ?
		ORDER BY block_height DESC
		LIMIT 1
	`, wasmStateEventCols, db.Name, chainmodels.WasmStateEventsTableName)

	var row chainmodels.WasmStateEvent
	err := db.QueryRow(ctx, query, contractAddress, hexKey, height).Scan(
		&row.ContractAddress, &row.Key, &row.Value, &row.Deleted, &row.BlockHeight, &row.BlockTimeUnixMs)
	if err != nil {
		if clickhouse.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("query wasm state at height %d: %w", height, err)
	}
	return &row, nil
}

// WasmStateLatestByPrefix returns the most recent row per key under the
// byte prefix, tombstones included, ordered by key.
func (db *DB) WasmStateLatestByPrefix(ctx context.Context, contractAddress, hexKeyPrefix string, height uint64) ([]chainmodels.WasmStateEvent, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM "%s"."%s"
		WHERE contract_address = ? AND startsWith(key, ?) AND block_height <= ?
		ORDER BY key ASC, block_height DESC
		LIMIT 1 BY key
	`, wasmStateEventCols, db.Name, chainmodels.WasmStateEventsTableName)

	rows, err := db.Query(ctx, query, contractAddress, hexKeyPrefix, height)
	if err != nil {
		return nil, fmt.Errorf("query wasm state by prefix at height %d: %w", height, err)
	}
	defer func() { _ = rows.Close() }()

	events := make([]chainmodels.WasmStateEvent, 0)
	for rows.Next() {
		var row chainmodels.WasmStateEvent
		if err := rows.Scan(&row.ContractAddress, &row.Key, &row.Value, &row.Deleted, &row.BlockHeight, &row.BlockTimeUnixMs); err != nil {
			return nil, fmt.Errorf("scan wasm state row: %w", err)
		}
		events = append(events, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wasm state rows: %w", err)
	}
	return events, nil
}

// WasmStateFirstSet returns the earliest non-deleted write of the key
// at-or-below the target height, optionally restricted to the given value
// encodings. The first row is not what the most-recent memo caches, so
// callers go straight to the store.
func (db *DB) WasmStateFirstSet(ctx context.Context, contractAddress, hexKey string, height uint64, valueFilters []string) (*chainmodels.WasmStateEvent, error) {
	valueClause := ""
	args := []any{contractAddress, hexKey, height}
	if len(valueFilters) > 0 {
		valueClause = "AND value IN ("
		for i, v := range valueFilters {
			if i > 0 {
				valueClause += ", "
			}
			valueClause += "?"
			args = append(args, v)
		}
		valueClause += ")"
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM "%s"."%s"
		WHERE contract_address = ? AND key = ? AND block_height <= ? AND deleted = false %s
		ORDER BY block_height ASC
		LIMIT 1
	`, wasmStateEventCols, db.Name, chainmodels.WasmStateEventsTableName, valueClause)

	var row chainmodels.WasmStateEvent
	err := db.QueryRow(ctx, query, args...).Scan(
		&row.ContractAddress, &row.Key, &row.Value, &row.Deleted, &row.BlockHeight, &row.BlockTimeUnixMs)
	if err != nil {
		if clickhouse.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("query wasm state first set: %w", err)
	}
	return &row, nil
}
