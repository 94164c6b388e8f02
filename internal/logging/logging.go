// Package logging wires go-logr to a zap backend for the reference
// CLI. Library packages never call into this package directly; they
// accept a logr.Logger (defaulting to logr.Discard()) the way the
// teacher threads a logr.Logger through Unpack/reconcilers instead of
// reaching for a process-wide logger.
package logging

import (
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a logr.Logger backed by zap. verbose selects a
// development encoder config (human-readable, caller info) over the
// production JSON encoder.
func New(verbose bool) (logr.Logger, func(), error) {
	var cfg zap.Config
	if verbose {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		cfg = zap.NewProductionConfig()
	}

	zl, err := cfg.Build()
	if err != nil {
		return logr.Discard(), func() {}, err
	}

	sync := func() { _ = zl.Sync() }
	return zapr.NewLogger(zl), sync, nil
}
