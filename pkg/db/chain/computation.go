package chain

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/chainview-network/chainview/pkg/compute"
	"github.com/chainview-network/chainview/pkg/db/clickhouse"
	chainmodels "github.com/chainview-network/chainview/pkg/db/models/chain"
)

const computationCols = `target_address, formula_type, formula_name, args, args_hash,
			block_height, block_time_unix_ms, output,
			dep_event_keys, dep_event_prefixes, dep_transformation_keys, dep_transformation_prefixes,
			latest_block_height_valid`

// LatestComputation returns the most recent stored computation for the
// identity at-or-below the target height.
func (db *DB) LatestComputation(ctx context.Context, targetAddress string, formulaType compute.FormulaType, formulaName, argsHash string, uptoHeight uint64) (*chainmodels.Computation, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM "%s"."%s" FINAL
		WHERE target_address = ? AND formula_type = ? AND formula_name = ? AND args_hash = ? AND block_height <= ?
		ORDER BY block_height DESC
		LIMIT 1
	`, computationCols, db.Name, chainmodels.ComputationsTableName)

	var comp chainmodels.Computation
	err := db.QueryRow(ctx, query, targetAddress, string(formulaType), formulaName, argsHash, uptoHeight).Scan(
		&comp.TargetAddress, &comp.FormulaType, &comp.FormulaName, &comp.Args, &comp.ArgsHash,
		&comp.BlockHeight, &comp.BlockTimeUnixMs, &comp.Output,
		&comp.DepEventKeys, &comp.DepEventPrefixes, &comp.DepTransformationKeys, &comp.DepTransformationPrefixes,
		&comp.LatestBlockHeightValid)
	if err != nil {
		if clickhouse.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("query latest computation: %w", err)
	}
	return &comp, nil
}

// ComputationsInRange returns the stored computations with afterHeight <
// block_height <= uptoHeight, ascending.
func (db *DB) ComputationsInRange(ctx context.Context, targetAddress string, formulaType compute.FormulaType, formulaName, argsHash string, afterHeight, uptoHeight uint64) ([]chainmodels.Computation, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM "%s"."%s" FINAL
		WHERE target_address = ? AND formula_type = ? AND formula_name = ? AND args_hash = ?
			AND block_height > ? AND block_height <= ?
		ORDER BY block_height ASC
	`, computationCols, db.Name, chainmodels.ComputationsTableName)

	rows, err := db.Query(ctx, query, targetAddress, string(formulaType), formulaName, argsHash, afterHeight, uptoHeight)
	if err != nil {
		return nil, fmt.Errorf("query computations in range: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]chainmodels.Computation, 0)
	for rows.Next() {
		var comp chainmodels.Computation
		if err := rows.Scan(
			&comp.TargetAddress, &comp.FormulaType, &comp.FormulaName, &comp.Args, &comp.ArgsHash,
			&comp.BlockHeight, &comp.BlockTimeUnixMs, &comp.Output,
			&comp.DepEventKeys, &comp.DepEventPrefixes, &comp.DepTransformationKeys, &comp.DepTransformationPrefixes,
			&comp.LatestBlockHeightValid); err != nil {
			return nil, fmt.Errorf("scan computation row: %w", err)
		}
		out = append(out, comp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate computation rows: %w", err)
	}
	return out, nil
}

// StoreComputations upserts computation rows. The natural key plus the
// validity version column make the write idempotent: re-inserting with a
// larger latest_block_height_valid extends the record in place.
func (db *DB) StoreComputations(ctx context.Context, computations []*chainmodels.Computation) error {
	if len(computations) == 0 {
		return nil
	}

	query := fmt.Sprintf(`INSERT INTO "%s"."%s" (%s) VALUES`, db.Name, chainmodels.ComputationsTableName, computationCols)
	batch, err := db.PrepareBatch(ctx, query)
	if err != nil {
		return err
	}
	defer func(batch driver.Batch) {
		_ = batch.Abort()
	}(batch)

	for _, comp := range computations {
		err = batch.Append(
			comp.TargetAddress,
			comp.FormulaType,
			comp.FormulaName,
			comp.Args,
			comp.ArgsHash,
			comp.BlockHeight,
			comp.BlockTimeUnixMs,
			comp.Output,
			comp.DepEventKeys,
			comp.DepEventPrefixes,
			comp.DepTransformationKeys,
			comp.DepTransformationPrefixes,
			comp.LatestBlockHeightValid,
		)
		if err != nil {
			return err
		}
	}

	return batch.Send()
}
