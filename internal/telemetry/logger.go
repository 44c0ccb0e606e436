// Package telemetry builds the process-wide zap logger, OpenTelemetry
// tracer, and Prometheus registry shared by both binaries.
package telemetry

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds a zap.Logger suited for production (json encoding,
// ISO8601 timestamps) or development (console encoding, stack traces on
// warn+) use.
func NewLogger(production bool) (*zap.Logger, error) {
	if !production {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		return cfg.Build()
	}
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

// WithCase returns a child logger carrying the case id and tenant id every
// log line for a case's lifecycle should include, so operators can grep a
// single case's activity out of the worker's combined log stream.
func WithCase(logger *zap.Logger, caseID, tenantID string) *zap.Logger {
	return logger.With(zap.String("case_id", caseID), zap.String("tenant_id", tenantID))
}
