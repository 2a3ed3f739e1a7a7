// Package logging attaches a zap logger to the event bus.
package logging

import (
	"context"

	"go.uber.org/zap"

	eventbus "github.com/hanpama/viewlink/internal/eventbus"
	events "github.com/hanpama/viewlink/internal/events"
	opid "github.com/hanpama/viewlink/internal/opid"
)

// Attach subscribes logger to all link events on the global bus and
// returns a detach function.
func Attach(logger *zap.Logger) (detach func()) {
	unsubs := []func(){
		eventbus.Subscribe(func(ctx context.Context, e events.OperationStart) {
			logger.Debug("operation start",
				withOp(ctx,
					zap.String("operationName", e.OperationName),
					zap.String("operationType", e.OperationType),
				)...)
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.OperationFinish) {
			fields := withOp(ctx,
				zap.String("operationName", e.OperationName),
				zap.String("operationType", e.OperationType),
				zap.Duration("duration", e.Duration),
			)
			if e.Err != nil {
				logger.Error("operation failed", append(fields, zap.Error(e.Err))...)
				return
			}
			logger.Debug("operation finish", fields...)
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.OperationRejected) {
			logger.Error("unsupported operation type", zap.String("operationType", e.OperationType))
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.ViewCallStart) {
			logger.Debug("view call",
				withOp(ctx, zap.String("view", e.View), zap.String("method", e.Method))...)
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.ViewCallFinish) {
			if e.Err != nil {
				logger.Warn("view call failed",
					withOp(ctx, zap.String("view", e.View), zap.String("method", e.Method), zap.Error(e.Err))...)
			}
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.SubscriptionBound) {
			logger.Debug("subscription bound",
				zap.String("id", e.ID), zap.String("view", e.View),
				zap.String("event", e.Event), zap.String("field", e.Field))
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.SubscriptionUnbound) {
			logger.Debug("subscription unbound", zap.String("id", e.ID))
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.SubscriptionUnresolved) {
			logger.Warn("no subscription resolver; stream stays silent",
				zap.String("field", e.Field))
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func withOp(ctx context.Context, fields ...zap.Field) []zap.Field {
	if id, ok := opid.FromContext(ctx); ok {
		return append(fields, zap.Int64("opid", id))
	}
	return fields
}
