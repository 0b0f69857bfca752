package memory

import (
	"context"
	"sort"

	"github.com/aretw0/arcflow/pkg/domain"
)

// TemplateLoader implements ports.TemplateLoader using an in-memory map.
type TemplateLoader struct {
	fallback  domain.WorkflowTemplate
	templates map[string]domain.WorkflowTemplate
}

// NewTemplateLoader creates a loader that answers with fallback for any
// classification that has no dedicated template.
func NewTemplateLoader(fallback domain.WorkflowTemplate, templates ...domain.WorkflowTemplate) *TemplateLoader {
	m := make(map[string]domain.WorkflowTemplate, len(templates))
	for _, t := range templates {
		m[t.Classification] = t
	}
	return &TemplateLoader{fallback: fallback, templates: m}
}

// Template returns the template registered for the classification.
func (l *TemplateLoader) Template(ctx context.Context, classification string) (domain.WorkflowTemplate, error) {
	if t, ok := l.templates[classification]; ok {
		return t, nil
	}
	return l.fallback, nil
}

// Classifications returns the registered classifications in lexical order.
func (l *TemplateLoader) Classifications(ctx context.Context) ([]string, error) {
	keys := make([]string, 0, len(l.templates))
	for k := range l.templates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
