// Package logging builds the process logger. Level and encoding come from
// the environment so deployments switch between json and console output
// without a rebuild.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/chainview-network/chainview/pkg/utils"
)

func New() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(utils.Env("LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("parse LOG_LEVEL: %w", err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.Encoding = utils.Env("LOG_ENCODING", "json")
	cfg.Development = level == zapcore.DebugLevel
	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
