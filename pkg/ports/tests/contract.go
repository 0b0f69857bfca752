package tests

import (
	"context"
	"fmt"
	"testing"

	"github.com/aretw0/arcflow/pkg/domain"
	"github.com/aretw0/arcflow/pkg/ports"
)

// TemplateLoaderContractTest is a reusable test suite that verifies if an
// adapter complies with ports.TemplateLoader. Every classification in want
// must resolve to a template with the given number of steps.
func TemplateLoaderContractTest(t *testing.T, loader ports.TemplateLoader, want map[string]int) {
	t.Helper()
	ctx := context.Background()

	t.Run("Template_Success", func(t *testing.T) {
		for class, steps := range want {
			tpl, err := loader.Template(ctx, class)
			if err != nil {
				t.Fatalf("unexpected error loading template %s: %v", class, err)
			}
			if len(tpl.Steps) != steps {
				t.Errorf("step count mismatch for %s. got %d, want %d", class, len(tpl.Steps), steps)
			}
			if err := validateOrder(tpl); err != nil {
				t.Errorf("template %s: %v", class, err)
			}
		}
	})

	t.Run("Template_Fallback", func(t *testing.T) {
		tpl, err := loader.Template(ctx, "no-such-classification")
		if err != nil {
			t.Fatalf("expected fallback template, got error: %v", err)
		}
		if len(tpl.Steps) == 0 {
			t.Error("fallback template has no steps")
		}
	})

	t.Run("Classifications", func(t *testing.T) {
		classes, err := loader.Classifications(ctx)
		if err != nil {
			t.Fatalf("unexpected error listing classifications: %v", err)
		}
		found := make(map[string]bool)
		for _, c := range classes {
			found[c] = true
		}
		for class := range want {
			if !found[class] {
				t.Errorf("classification %s not listed", class)
			}
		}
	})
}

func validateOrder(tpl domain.WorkflowTemplate) error {
	for i, s := range tpl.Steps {
		if s.Order != i+1 {
			return fmt.Errorf("step %d has order %d, want %d", i, s.Order, i+1)
		}
	}
	return nil
}
