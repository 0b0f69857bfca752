package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/arcflow/pkg/domain"
)

// LoggingHooks logs every lifecycle event at Info, rejections at Warn.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTransition: func(ctx context.Context, e *domain.TransitionEvent) {
			logger.InfoContext(ctx, "transition",
				"request_id", e.RequestID,
				"from", e.From,
				"to", e.To,
				"actor", e.Actor.ID,
				"role", e.Actor.Role,
			)
		},
		OnRejected: func(ctx context.Context, e *domain.TransitionEvent) {
			logger.WarnContext(ctx, "rejected",
				"request_id", e.RequestID,
				"from", e.From,
				"to", e.To,
				"actor", e.Actor.ID,
				"reason", Reason(e.Err),
				"err", e.Err,
			)
		},
		OnSubrecord: func(ctx context.Context, e *domain.TransitionEvent) {
			logger.InfoContext(ctx, "subrecord",
				"request_id", e.RequestID,
				"status", e.From,
				"actor", e.Actor.ID,
			)
		},
	}
}

// Chain merges hook sets. Each callback runs in the order given.
func Chain(sets ...domain.LifecycleHooks) domain.LifecycleHooks {
	var onTransition, onRejected, onSubrecord []func(context.Context, *domain.TransitionEvent)
	for _, h := range sets {
		if h.OnTransition != nil {
			onTransition = append(onTransition, h.OnTransition)
		}
		if h.OnRejected != nil {
			onRejected = append(onRejected, h.OnRejected)
		}
		if h.OnSubrecord != nil {
			onSubrecord = append(onSubrecord, h.OnSubrecord)
		}
	}
	return domain.LifecycleHooks{
		OnTransition: fanout(onTransition),
		OnRejected:   fanout(onRejected),
		OnSubrecord:  fanout(onSubrecord),
	}
}

func fanout(fns []func(context.Context, *domain.TransitionEvent)) func(context.Context, *domain.TransitionEvent) {
	if len(fns) == 0 {
		return nil
	}
	return func(ctx context.Context, e *domain.TransitionEvent) {
		for _, fn := range fns {
			fn(ctx, e)
		}
	}
}
