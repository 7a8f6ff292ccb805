package chain

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/chainview-network/chainview/pkg/compute"
	"github.com/chainview-network/chainview/pkg/db/clickhouse"
	chainmodels "github.com/chainview-network/chainview/pkg/db/models/chain"
)

// blockCacheSize bounds the process-wide cache of immutable block rows the
// range evaluator's cursor jumps hit repeatedly.
const blockCacheSize = 4096

// DB is the per-chain event store: typed, history-aware reads over the
// versioned event tables, plus the computation table. It implements
// compute.Store.
type DB struct {
	clickhouse.Client
	Name    string
	ChainID string

	blockCache *lru.Cache[uint64, chainmodels.Block]
}

var _ compute.Store = (*DB)(nil)

// New creates and initializes the chain database.
func New(ctx context.Context, logger *zap.Logger, chainID string, poolConfig ...*clickhouse.PoolConfig) (*DB, error) {
	dbName := clickhouse.SanitizeName(fmt.Sprintf("chainview_%s", chainID))

	client, err := clickhouse.New(ctx, logger.With(
		zap.String("db", dbName),
		zap.String("chainID", chainID),
	), dbName, poolConfig...)
	if err != nil {
		return nil, err
	}

	blockCache, err := lru.New[uint64, chainmodels.Block](blockCacheSize)
	if err != nil {
		return nil, err
	}

	db := &DB{
		Client:     client,
		Name:       dbName,
		ChainID:    chainID,
		blockCache: blockCache,
	}

	if err := db.InitializeDB(ctx); err != nil {
		return nil, err
	}

	return db, nil
}

// Close terminates the underlying ClickHouse connection.
func (db *DB) Close() error {
	return db.Client.Close()
}

// InitializeDB ensures the database and every table exists. Table creation
// is issued in parallel; the statements are all IF NOT EXISTS so start-up
// races between components are harmless.
func (db *DB) InitializeDB(ctx context.Context) error {
	initStart := time.Now()

	if err := db.CreateDbIfNotExists(ctx, db.Name); err != nil {
		return fmt.Errorf("failed to create database %s: %w", db.Name, err)
	}

	initOps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"blocks", db.initBlocks},
		{"state", db.initState},
		{"wasm_state_events", db.initWasmStateEvents},
		{"wasm_state_event_transformations", db.initTransformations},
		{"wasm_tx_events", db.initWasmTxEvents},
		{"bank_state_events", db.initBankStateEvents},
		{"bank_balances", db.initBankBalances},
		{"staking_slash_events", db.initStakingSlashEvents},
		{"gov_proposals", db.initGovProposals},
		{"gov_proposal_votes", db.initGovProposalVotes},
		{"community_pool_state_events", db.initCommunityPoolStateEvents},
		{"extractions", db.initExtractions},
		{"feegrant_allowances", db.initFeegrantAllowances},
		{"contracts", db.initContracts},
		{"validators", db.initValidators},
		{"computations", db.initComputations},
	}

	var wg sync.WaitGroup
	errChan := make(chan error, len(initOps))

	for _, op := range initOps {
		wg.Add(1)
		go func(name string, fn func(context.Context) error) {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				errChan <- fmt.Errorf("init %s: %w", name, err)
			}
		}(op.name, op.fn)
	}

	wg.Wait()
	close(errChan)

	for err := range errChan {
		return err
	}

	db.Logger.Info("Chain database initialization complete",
		zap.String("database", db.Name),
		zap.Duration("duration", time.Since(initStart)))

	return nil
}

// createTable renders and executes one CREATE TABLE statement.
func (db *DB) createTable(ctx context.Context, table string, columns []chainmodels.ColumnDef, engine, orderBy string) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."%s" (
			%s
		) ENGINE = %s
		ORDER BY %s
	`, db.Name, table, chainmodels.ColumnsToSchemaSQL(columns), engine, orderBy)
	if err := db.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", table, err)
	}
	return nil
}

func (db *DB) initBlocks(ctx context.Context) error {
	return db.createTable(ctx, chainmodels.BlocksTableName, chainmodels.BlockColumns,
		clickhouse.Engine(clickhouse.ReplacingMergeTree, ""), "(height)")
}

func (db *DB) initState(ctx context.Context) error {
	return db.createTable(ctx, chainmodels.StateTableName, chainmodels.StateColumns,
		clickhouse.Engine(clickhouse.ReplacingMergeTree, "latest_block_height"), "(id)")
}

func (db *DB) initWasmStateEvents(ctx context.Context) error {
	return db.createTable(ctx, chainmodels.WasmStateEventsTableName, chainmodels.WasmStateEventColumns,
		clickhouse.MergeTree, "(contract_address, key, block_height)")
}

func (db *DB) initTransformations(ctx context.Context) error {
	return db.createTable(ctx, chainmodels.WasmStateEventTransformationsTableName, chainmodels.WasmStateEventTransformationColumns,
		clickhouse.MergeTree, "(contract_address, name, block_height)")
}

func (db *DB) initWasmTxEvents(ctx context.Context) error {
	return db.createTable(ctx, chainmodels.WasmTxEventsTableName, chainmodels.WasmTxEventColumns,
		clickhouse.MergeTree, "(contract_address, block_height, tx_index)")
}

func (db *DB) initBankStateEvents(ctx context.Context) error {
	return db.createTable(ctx, chainmodels.BankStateEventsTableName, chainmodels.BankStateEventColumns,
		clickhouse.MergeTree, "(address, denom, block_height)")
}

func (db *DB) initBankBalances(ctx context.Context) error {
	return db.createTable(ctx, chainmodels.BankBalancesTableName, chainmodels.BankBalanceColumns,
		clickhouse.Engine(clickhouse.ReplacingMergeTree, "block_height"), "(address)")
}

func (db *DB) initStakingSlashEvents(ctx context.Context) error {
	return db.createTable(ctx, chainmodels.StakingSlashEventsTableName, chainmodels.StakingSlashEventColumns,
		clickhouse.MergeTree, "(validator_operator_address, registered_block_height)")
}

func (db *DB) initGovProposals(ctx context.Context) error {
	return db.createTable(ctx, chainmodels.GovProposalsTableName, chainmodels.GovProposalColumns,
		clickhouse.MergeTree, "(proposal_id, block_height)")
}

func (db *DB) initGovProposalVotes(ctx context.Context) error {
	return db.createTable(ctx, chainmodels.GovProposalVotesTableName, chainmodels.GovProposalVoteColumns,
		clickhouse.MergeTree, "(proposal_id, voter_address, block_height)")
}

func (db *DB) initCommunityPoolStateEvents(ctx context.Context) error {
	return db.createTable(ctx, chainmodels.CommunityPoolStateEventsTableName, chainmodels.CommunityPoolStateEventColumns,
		clickhouse.MergeTree, "(block_height)")
}

func (db *DB) initExtractions(ctx context.Context) error {
	return db.createTable(ctx, chainmodels.ExtractionsTableName, chainmodels.ExtractionColumns,
		clickhouse.MergeTree, "(address, name, block_height)")
}

func (db *DB) initFeegrantAllowances(ctx context.Context) error {
	return db.createTable(ctx, chainmodels.FeegrantAllowancesTableName, chainmodels.FeegrantAllowanceColumns,
		clickhouse.MergeTree, "(granter, grantee, block_height)")
}

func (db *DB) initContracts(ctx context.Context) error {
	return db.createTable(ctx, chainmodels.ContractsTableName, chainmodels.ContractColumns,
		clickhouse.Engine(clickhouse.ReplacingMergeTree, "instantiated_at_block_height"), "(address)")
}

func (db *DB) initValidators(ctx context.Context) error {
	return db.createTable(ctx, chainmodels.ValidatorsTableName, chainmodels.ValidatorColumns,
		clickhouse.Engine(clickhouse.ReplacingMergeTree, "block_height"), "(operator_address)")
}

func (db *DB) initComputations(ctx context.Context) error {
	return db.createTable(ctx, chainmodels.ComputationsTableName, chainmodels.ComputationColumns,
		clickhouse.Engine(clickhouse.ReplacingMergeTree, "latest_block_height_valid"),
		"(target_address, formula_type, formula_name, args_hash, block_height)")
}
