package chain

import (
	"context"
	"fmt"

	"github.com/chainview-network/chainview/pkg/compute"
	chainmodels "github.com/chainview-network/chainview/pkg/db/models/chain"
)

const wasmTxEventCols = "contract_address, action, sender, msg, reply, funds, response, gas_used, tx_index, block_height, block_time_unix_ms"

// WasmTxEvents returns the contract's transactions at-or-below the target
// height, newest first.
func (db *DB) WasmTxEvents(ctx context.Context, contractAddress string, height uint64, filter *compute.TxEventFilter) ([]chainmodels.WasmTxEvent, error) {
	where := "contract_address = ? AND block_height <= ?"
	args := []any{contractAddress, height}
	limitClause := ""
	if filter != nil {
		if filter.Action != "" {
			where += " AND action = ?"
			args = append(args, filter.Action)
		}
		if filter.Sender != "" {
			where += " AND sender = ?"
			args = append(args, filter.Sender)
		}
		if filter.Limit > 0 {
			limitClause = "LIMIT ? OFFSET ?"
			args = append(args, filter.Limit, filter.Offset)
		}
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM "%s"."%s"
		WHERE %s
		ORDER BY block_height DESC, tx_index DESC
		%s
	`, wasmTxEventCols, db.Name, chainmodels.WasmTxEventsTableName, where, limitClause)

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query wasm tx events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]chainmodels.WasmTxEvent, 0)
	for rows.Next() {
		var row chainmodels.WasmTxEvent
		if err := rows.Scan(&row.ContractAddress, &row.Action, &row.Sender, &row.Msg, &row.Reply,
			&row.Funds, &row.Response, &row.GasUsed, &row.TxIndex, &row.BlockHeight, &row.BlockTimeUnixMs); err != nil {
			return nil, fmt.Errorf("scan wasm tx row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wasm tx rows: %w", err)
	}
	return out, nil
}
