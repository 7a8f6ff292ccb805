package query

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/chainview-network/chainview/app/query/types"
	"github.com/chainview-network/chainview/pkg/compute"
	chaindb "github.com/chainview-network/chainview/pkg/db/chain"
	"github.com/chainview-network/chainview/pkg/db/clickhouse"
	"github.com/chainview-network/chainview/pkg/formulas"
	"github.com/chainview-network/chainview/pkg/logging"
	"github.com/chainview-network/chainview/pkg/redis"
	"github.com/chainview-network/chainview/pkg/state"
	"github.com/chainview-network/chainview/pkg/utils"
)

// Initialize initializes the application.
func Initialize(ctx context.Context) *types.App {
	logger, err := logging.New()
	if err != nil {
		// nothing else to do here, we'll just log to stderr
		panic(err)
	}

	chainID := utils.Env("CHAIN_ID", "juno-1")

	db, err := chaindb.New(ctx, logger, chainID, &clickhouse.PoolConfig{
		MaxOpenConns: utils.EnvInt("CLICKHOUSE_MAX_OPEN_CONNS", 50),
		MaxIdleConns: utils.EnvInt("CLICKHOUSE_MAX_IDLE_CONNS", 50),
		Component:    "query",
	})
	if err != nil {
		logger.Fatal("Unable to initialize chain database", zap.Error(err))
	}

	codeIDs, err := loadCodeIDConfig()
	if err != nil {
		logger.Fatal("Unable to parse code-id configuration", zap.Error(err))
	}

	tracker, err := state.NewTracker(ctx, db, logger)
	if err != nil {
		logger.Fatal("Unable to load chain state", zap.Error(err))
	}

	// Redis is optional: without it the head snapshot still refreshes on
	// the tracker's timer.
	var redisClient *redis.Client
	if utils.EnvBool("REDIS_ENABLED", false) {
		redisClient, err = redis.NewClient(ctx, logger)
		if err != nil {
			logger.Warn("Failed to initialize Redis client - head nudges disabled", zap.Error(err))
			redisClient = nil
		}
	}

	return &types.App{
		ChainID:     chainID,
		ChainDB:     db,
		Registry:    formulas.NewRegistry(),
		Evaluator:   compute.NewEvaluator(db, codeIDs, logger),
		Tracker:     tracker,
		RedisClient: redisClient,
		Logger:      logger,
	}
}

// loadCodeIDConfig reads the chain's code-id key sets from CODE_ID_SETS
// (JSON object mapping key to code-id list) and the bank-history fallback
// keys from TRACK_BANK_HISTORY_KEYS (comma-separated).
func loadCodeIDConfig() (compute.CodeIDConfig, error) {
	cfg := compute.CodeIDConfig{Sets: map[string][]uint64{}}

	if raw := utils.Env("CODE_ID_SETS", ""); raw != "" {
		if err := json.Unmarshal([]byte(raw), &cfg.Sets); err != nil {
			return compute.CodeIDConfig{}, err
		}
	}

	if raw := utils.Env("TRACK_BANK_HISTORY_KEYS", ""); raw != "" {
		for _, key := range strings.Split(raw, ",") {
			if key = strings.TrimSpace(key); key != "" {
				cfg.TrackBankHistoryKeys = append(cfg.TrackBankHistoryKeys, key)
			}
		}
	}

	return cfg, nil
}
