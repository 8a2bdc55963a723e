package visioncore

import "go.uber.org/zap"

// NewProductionLogger builds the process-wide structured logger used by
// the supervisor and its subsystems. Call sites stay sparse — only the
// warn/error paths for genuinely actionable conditions actually log.
func NewProductionLogger() (*zap.SugaredLogger, error) {
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

// NewNopLogger returns a logger that discards everything, used as the
// default when callers don't supply one (tests, library embedding).
func NewNopLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
