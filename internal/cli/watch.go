package cli

import (
	"context"
	"log/slog"

	"github.com/aretw0/arcflow/internal/validator"
	"github.com/aretw0/arcflow/pkg/ports"
)

// Watcher is a template loader that reports changed documents.
type Watcher interface {
	ports.TemplateLoader
	Watch(ctx context.Context) (<-chan string, error)
}

// WatchTemplates revalidates the template set whenever a document changes.
// The loader reads documents on demand, so a valid edit is live as soon as
// it is saved. It returns when ctx is done or the watcher closes.
func WatchTemplates(ctx context.Context, w Watcher, logger *slog.Logger, onResult func(changed string, err error)) error {
	events, err := w.Watch(ctx)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case changed, ok := <-events:
			if !ok {
				return nil
			}
			err := validator.ValidateLoader(ctx, w)
			if err != nil {
				logger.Warn("template set invalid after change", "document", changed, "err", err)
			} else {
				logger.Info("templates reloaded", "document", changed)
			}
			if onResult != nil {
				onResult(changed, err)
			}
		}
	}
}
