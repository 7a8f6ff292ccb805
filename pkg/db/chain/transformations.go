package chain

import (
	"context"
	"fmt"

	"github.com/chainview-network/chainview/pkg/db/clickhouse"
	chainmodels "github.com/chainview-network/chainview/pkg/db/models/chain"
)

const transformationCols = "contract_address, name, value, block_height, block_time_unix_ms"

// TransformationLatest returns the most recent transformation row for the
// exact name at-or-below the target height.
func (db *DB) TransformationLatest(ctx context.Context, contractAddress, name string, height uint64) (*chainmodels.WasmStateEventTransformation, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM "%s"."%s"
		WHERE contract_address = ? AND name = ? AND block_height <= ?
		ORDER BY block_height DESC
		LIMIT 1
	`, transformationCols, db.Name, chainmodels.WasmStateEventTransformationsTableName)

	var row chainmodels.WasmStateEventTransformation
	err := db.QueryRow(ctx, query, contractAddress, name, height).Scan(
		&row.ContractAddress, &row.Name, &row.Value, &row.BlockHeight, &row.BlockTimeUnixMs)
	if err != nil {
		if clickhouse.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("query transformation at height %d: %w", height, err)
	}
	return &row, nil
}

// TransformationsLatestByName returns the most recent transformation per
// (contract, name) whose name matches the LIKE pattern. An empty address
// list spans every contract; limit 0 means all.
func (db *DB) TransformationsLatestByName(ctx context.Context, contractAddresses []string, namePattern string, height uint64, limit uint64) ([]chainmodels.WasmStateEventTransformation, error) {
	addrClause := ""
	args := []any{namePattern, height}
	if len(contractAddresses) > 0 {
		addrClause = "AND contract_address IN ("
		for i, addr := range contractAddresses {
			if i > 0 {
				addrClause += ", "
			}
			addrClause += "?"
			args = append(args, addr)
		}
		addrClause += ")"
	}
	limitClause := ""
	if limit > 0 {
		limitClause = "LIMIT ?"
		args = append(args, limit)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM "%s"."%s"
		WHERE name LIKE ? AND block_height <= ? %s
		ORDER BY contract_address ASC, name ASC, block_height DESC
		LIMIT 1 BY contract_address, name
		%s
	`, transformationCols, db.Name, chainmodels.WasmStateEventTransformationsTableName, addrClause, limitClause)

	return db.scanTransformations(ctx, query, args...)
}

// TransformationsLatestByPrefix returns the most recent transformation per
// name starting with the prefix for one contract.
func (db *DB) TransformationsLatestByPrefix(ctx context.Context, contractAddress, namePrefix string, height uint64) ([]chainmodels.WasmStateEventTransformation, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM "%s"."%s"
		WHERE contract_address = ? AND startsWith(name, ?) AND block_height <= ?
		ORDER BY name ASC, block_height DESC
		LIMIT 1 BY name
	`, transformationCols, db.Name, chainmodels.WasmStateEventTransformationsTableName)

	return db.scanTransformations(ctx, query, contractAddress, namePrefix, height)
}

// TransformationFirst returns the earliest transformation matching the
// pattern at-or-below the target height. Ascending order; memo bypassed by
// callers.
func (db *DB) TransformationFirst(ctx context.Context, contractAddress, namePattern string, height uint64) (*chainmodels.WasmStateEventTransformation, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM "%s"."%s"
		WHERE contract_address = ? AND name LIKE ? AND block_height <= ?
		ORDER BY block_height ASC
		LIMIT 1
	`, transformationCols, db.Name, chainmodels.WasmStateEventTransformationsTableName)

	var row chainmodels.WasmStateEventTransformation
	err := db.QueryRow(ctx, query, contractAddress, namePattern, height).Scan(
		&row.ContractAddress, &row.Name, &row.Value, &row.BlockHeight, &row.BlockTimeUnixMs)
	if err != nil {
		if clickhouse.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("query first transformation: %w", err)
	}
	return &row, nil
}

func (db *DB) scanTransformations(ctx context.Context, query string, args ...any) ([]chainmodels.WasmStateEventTransformation, error) {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transformations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]chainmodels.WasmStateEventTransformation, 0)
	for rows.Next() {
		var row chainmodels.WasmStateEventTransformation
		if err := rows.Scan(&row.ContractAddress, &row.Name, &row.Value, &row.BlockHeight, &row.BlockTimeUnixMs); err != nil {
			return nil, fmt.Errorf("scan transformation row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transformation rows: %w", err)
	}
	return out, nil
}
