package ports

import (
	"context"

	"github.com/aretw0/arcflow/pkg/domain"
)

// TemplateLoader defines how the progress calculator retrieves workflow
// templates. Storage (Loam, FS, Memory) stays decoupled from the engine.
type TemplateLoader interface {
	// Template returns the template for a classification.
	// Implementations fall back to their default template when the
	// classification has no dedicated one.
	Template(ctx context.Context, classification string) (domain.WorkflowTemplate, error)

	// Classifications lists the classifications with a dedicated template.
	Classifications(ctx context.Context) ([]string, error)
}
