package chain

import (
	"context"
	"fmt"

	"github.com/chainview-network/chainview/pkg/db/clickhouse"
	chainmodels "github.com/chainview-network/chainview/pkg/db/models/chain"
)

// SlashEvents returns the validator's slashes registered at-or-below the
// target height, most recently registered first.
func (db *DB) SlashEvents(ctx context.Context, operatorAddress string, height uint64) ([]chainmodels.StakingSlashEvent, error) {
	query := fmt.Sprintf(`
		SELECT validator_operator_address, registered_block_height, registered_block_time_unix_ms,
			infraction_block_height, slash_factor, amount_slashed, effective_fraction, staked_tokens_burned
		FROM "%s"."%s"
		WHERE validator_operator_address = ? AND registered_block_height <= ?
		ORDER BY registered_block_height DESC
	`, db.Name, chainmodels.StakingSlashEventsTableName)

	rows, err := db.Query(ctx, query, operatorAddress, height)
	if err != nil {
		return nil, fmt.Errorf("query slash events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]chainmodels.StakingSlashEvent, 0)
	for rows.Next() {
		var row chainmodels.StakingSlashEvent
		if err := rows.Scan(&row.ValidatorOperatorAddress, &row.RegisteredBlockHeight, &row.RegisteredBlockTimeUnixMs,
			&row.InfractionBlockHeight, &row.SlashFactor, &row.AmountSlashed, &row.EffectiveFraction, &row.StakedTokensBurned); err != nil {
			return nil, fmt.Errorf("scan slash event row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate slash event rows: %w", err)
	}
	return out, nil
}

// GetValidator returns the validator registry row, or nil when unknown.
func (db *DB) GetValidator(ctx context.Context, operatorAddress string) (*chainmodels.Validator, error) {
	query := fmt.Sprintf(`
		SELECT operator_address, block_height, block_time_unix_ms
		FROM "%s"."%s" FINAL
		WHERE operator_address = ?
		LIMIT 1
	`, db.Name, chainmodels.ValidatorsTableName)

	var row chainmodels.Validator
	err := db.QueryRow(ctx, query, operatorAddress).Scan(&row.OperatorAddress, &row.BlockHeight, &row.BlockTimeUnixMs)
	if err != nil {
		if clickhouse.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("query validator: %w", err)
	}
	return &row, nil
}
