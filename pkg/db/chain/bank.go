package chain

import (
	"context"
	"fmt"

	"github.com/chainview-network/chainview/pkg/db/clickhouse"
	chainmodels "github.com/chainview-network/chainview/pkg/db/models/chain"
)

// BankBalanceSnapshot returns the address's aggregate balance row when its
// height is at-or-below the target, nil otherwise. The table holds only the
// latest aggregate, so a newer snapshot cannot answer a historical query.
func (db *DB) BankBalanceSnapshot(ctx context.Context, address string, height uint64) (*chainmodels.BankBalance, error) {
	query := fmt.Sprintf(`
		SELECT address, balances, block_height, block_time_unix_ms
		FROM "%s"."%s" FINAL
		WHERE address = ? AND block_height <= ?
		LIMIT 1
	`, db.Name, chainmodels.BankBalancesTableName)

	var row chainmodels.BankBalance
	err := db.QueryRow(ctx, query, address, height).Scan(
		&row.Address, &row.Balances, &row.BlockHeight, &row.BlockTimeUnixMs)
	if err != nil {
		if clickhouse.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("query bank balance snapshot: %w", err)
	}
	return &row, nil
}

// BankStateLatest returns the most recent per-denom balance write
// at-or-below the target height.
func (db *DB) BankStateLatest(ctx context.Context, address, denom string, height uint64) (*chainmodels.BankStateEvent, error) {
	query := fmt.Sprintf(`
		SELECT address, denom, balance, block_height, block_time_unix_ms
		FROM "%s"."%s"
		WHERE address = ? AND denom = ? AND block_height <= ?
		ORDER BY block_height DESC
		LIMIT 1
	`, db.Name, chainmodels.BankStateEventsTableName)

	var row chainmodels.BankStateEvent
	err := db.QueryRow(ctx, query, address, denom, height).Scan(
		&row.Address, &row.Denom, &row.Balance, &row.BlockHeight, &row.BlockTimeUnixMs)
	if err != nil {
		if clickhouse.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("query bank state: %w", err)
	}
	return &row, nil
}

// BankStateLatestAll returns the most recent balance write per denom for
// the address.
func (db *DB) BankStateLatestAll(ctx context.Context, address string, height uint64) ([]chainmodels.BankStateEvent, error) {
	query := fmt.Sprintf(`
		SELECT address, denom, balance, block_height, block_time_unix_ms
		FROM "%s"."%s"
		WHERE address = ? AND block_height <= ?
		ORDER BY denom ASC, block_height DESC
		LIMIT 1 BY denom
	`, db.Name, chainmodels.BankStateEventsTableName)

	rows, err := db.Query(ctx, query, address, height)
	if err != nil {
		return nil, fmt.Errorf("query bank state all denoms: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]chainmodels.BankStateEvent, 0)
	for rows.Next() {
		var row chainmodels.BankStateEvent
		if err := rows.Scan(&row.Address, &row.Denom, &row.Balance, &row.BlockHeight, &row.BlockTimeUnixMs); err != nil {
			return nil, fmt.Errorf("scan bank state row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bank state rows: %w", err)
	}
	return out, nil
}
