package chain

import (
	"context"
	"fmt"

	"github.com/chainview-network/chainview/pkg/compute"
	"github.com/chainview-network/chainview/pkg/db/clickhouse"
	chainmodels "github.com/chainview-network/chainview/pkg/db/models/chain"
)

// CommunityPoolLatest returns the most recent community pool snapshot
// at-or-below the target height.
func (db *DB) CommunityPoolLatest(ctx context.Context, height uint64) (*chainmodels.CommunityPoolStateEvent, error) {
	query := fmt.Sprintf(`
		SELECT balances, block_height, block_time_unix_ms
		FROM "%s"."%s"
		WHERE block_height <= ?
		ORDER BY block_height DESC
		LIMIT 1
	`, db.Name, chainmodels.CommunityPoolStateEventsTableName)

	var row chainmodels.CommunityPoolStateEvent
	err := db.QueryRow(ctx, query, height).Scan(&row.Balances, &row.BlockHeight, &row.BlockTimeUnixMs)
	if err != nil {
		if clickhouse.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("query community pool: %w", err)
	}
	return &row, nil
}

// ExtractionLatest returns the latest extracted datum by name at-or-below
// the target height.
func (db *DB) ExtractionLatest(ctx context.Context, address, name string, height uint64) (*chainmodels.Extraction, error) {
	query := fmt.Sprintf(`
		SELECT address, name, data, block_height, block_time_unix_ms
		FROM "%s"."%s"
		WHERE address = ? AND name = ? AND block_height <= ?
		ORDER BY block_height DESC
		LIMIT 1
	`, db.Name, chainmodels.ExtractionsTableName)

	var row chainmodels.Extraction
	err := db.QueryRow(ctx, query, address, name, height).Scan(
		&row.Address, &row.Name, &row.Data, &row.BlockHeight, &row.BlockTimeUnixMs)
	if err != nil {
		if clickhouse.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("query extraction: %w", err)
	}
	return &row, nil
}

const feegrantCols = "granter, grantee, data, active, block_height, block_time_unix_ms"

// FeegrantAllowanceLatest returns the latest allowance state between
// granter and grantee, revoked rows included.
func (db *DB) FeegrantAllowanceLatest(ctx context.Context, granter, grantee string, height uint64) (*chainmodels.FeegrantAllowance, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM "%s"."%s"
		WHERE granter = ? AND grantee = ? AND block_height <= ?
		ORDER BY block_height DESC
		LIMIT 1
	`, feegrantCols, db.Name, chainmodels.FeegrantAllowancesTableName)

	var row chainmodels.FeegrantAllowance
	err := db.QueryRow(ctx, query, granter, grantee, height).Scan(
		&row.Granter, &row.Grantee, &row.Data, &row.Active, &row.BlockHeight, &row.BlockTimeUnixMs)
	if err != nil {
		if clickhouse.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("query feegrant allowance: %w", err)
	}
	return &row, nil
}

// FeegrantAllowancesLatest returns the latest state per (granter, grantee)
// pair on one side of an address.
func (db *DB) FeegrantAllowancesLatest(ctx context.Context, address string, side compute.GrantSide, height uint64) ([]chainmodels.FeegrantAllowance, error) {
	sideCol := "granter"
	if side == compute.GrantSideReceived {
		sideCol = "grantee"
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM "%s"."%s"
		WHERE %s = ? AND block_height <= ?
		ORDER BY granter ASC, grantee ASC, block_height DESC
		LIMIT 1 BY granter, grantee
	`, feegrantCols, db.Name, chainmodels.FeegrantAllowancesTableName, sideCol)

	rows, err := db.Query(ctx, query, address, height)
	if err != nil {
		return nil, fmt.Errorf("query feegrant allowances: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]chainmodels.FeegrantAllowance, 0)
	for rows.Next() {
		var row chainmodels.FeegrantAllowance
		if err := rows.Scan(&row.Granter, &row.Grantee, &row.Data, &row.Active, &row.BlockHeight, &row.BlockTimeUnixMs); err != nil {
			return nil, fmt.Errorf("scan feegrant row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feegrant rows: %w", err)
	}
	return out, nil
}

// GetContract returns the contract registry row, or nil when unknown.
func (db *DB) GetContract(ctx context.Context, address string) (*chainmodels.Contract, error) {
	query := fmt.Sprintf(`
		SELECT address, code_id, admin, creator, label, instantiated_at_block_height, instantiated_at_block_time_unix_ms
		FROM "%s"."%s" FINAL
		WHERE address = ?
		LIMIT 1
	`, db.Name, chainmodels.ContractsTableName)

	var row chainmodels.Contract
	err := db.QueryRow(ctx, query, address).Scan(
		&row.Address, &row.CodeID, &row.Admin, &row.Creator, &row.Label,
		&row.InstantiatedAtBlockHeight, &row.InstantiatedAtBlockTimeUnixMs)
	if err != nil {
		if clickhouse.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("query contract: %w", err)
	}
	return &row, nil
}

// RawQuery is the read-only escape hatch. Column names and driver types
// pass through untouched.
func (db *DB) RawQuery(ctx context.Context, query string, binds ...any) ([]map[string]any, error) {
	rows, err := db.Query(ctx, query, binds...)
	if err != nil {
		return nil, fmt.Errorf("raw query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columnNames := rows.Columns()
	var results []map[string]any
	for rows.Next() {
		values := make([]any, len(columnNames))
		valuePtrs := make([]any, len(columnNames))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("scan raw row: %w", err)
		}
		rowMap := make(map[string]any, len(columnNames))
		for i, colName := range columnNames {
			rowMap[colName] = values[i]
		}
		results = append(results, rowMap)
	}
	return results, rows.Err()
}
