package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-comments/pkg/consistency"
	"github.com/noah-isme/sma-adp-comments/pkg/logger"
)

// StoreEvents reports entity store events to the log and to Prometheus.
type StoreEvents struct {
	logger  *zap.Logger
	metrics *MetricsService
}

// NewStoreEvents constructs the entity store event sink.
func NewStoreEvents(log *zap.Logger, metrics *MetricsService) *StoreEvents {
	if log == nil {
		log = zap.NewNop()
	}
	return &StoreEvents{logger: log, metrics: metrics}
}

// EntityAlreadyExists logs a rejected duplicate create.
func (e *StoreEvents) EntityAlreadyExists(ctx context.Context, entityType, identification string) {
	logger.WithContext(ctx, e.logger).Info("entity already exists",
		zap.String("entity_type", entityType),
		zap.String("identification", identification),
	)
}

// ConsistencyConfirmed records a write that became visible in time.
func (e *StoreEvents) ConsistencyConfirmed(ctx context.Context, operation, entityType string, res consistency.Result) {
	e.metrics.ObserveConsistencyWait(operation, entityType, true, res.Waited)
	logger.WithContext(ctx, e.logger).Debug("write visible",
		zap.String("operation", operation),
		zap.String("entity_type", entityType),
		zap.Int("attempts", res.Attempts),
		zap.Duration("waited", res.Waited),
	)
}

// ConsistencyTimeout records a write whose effect was not observed before the
// wait ended. The write itself is assumed to have been submitted.
func (e *StoreEvents) ConsistencyTimeout(ctx context.Context, operation, entityType, identification string, res consistency.Result) {
	e.metrics.ObserveConsistencyWait(operation, entityType, false, res.Waited)
	fields := []zap.Field{
		zap.String("operation", operation),
		zap.String("entity_type", entityType),
		zap.String("identification", identification),
		zap.Int("attempts", res.Attempts),
		zap.Duration("waited", res.Waited),
	}
	if res.LastErr != nil {
		fields = append(fields, zap.NamedError("last_error", res.LastErr))
	}
	logger.WithContext(ctx, e.logger).Error("write not visible before timeout", fields...)
}
