// Package validator checks workflow templates for structural problems
// before they are served to the progress calculator.
package validator

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/arcflow/pkg/domain"
	"github.com/aretw0/arcflow/pkg/ports"
)

// ValidateTemplate checks a single template. Problems are collected rather
// than returned one at a time.
func ValidateTemplate(tpl domain.WorkflowTemplate) error {
	var errs []string
	if len(tpl.Steps) == 0 {
		errs = append(errs, "template has no steps")
	}

	owner := make(map[domain.Status]string)
	for i, s := range tpl.Steps {
		label := fmt.Sprintf("step %d (%s)", i+1, s.Title)
		if s.Order != i+1 {
			errs = append(errs, fmt.Sprintf("%s: order %d, want %d", label, s.Order, i+1))
		}
		if strings.TrimSpace(s.Title) == "" {
			errs = append(errs, fmt.Sprintf("%s: missing title", label))
		}
		if len(s.Stages) == 0 {
			errs = append(errs, fmt.Sprintf("%s: no stages", label))
		}
		if s.Weight < 0 {
			errs = append(errs, fmt.Sprintf("%s: negative weight", label))
		}
		if s.Duration < 0 {
			errs = append(errs, fmt.Sprintf("%s: negative duration", label))
		}
		for _, st := range s.Stages {
			if !st.IsValid() {
				errs = append(errs, fmt.Sprintf("%s: unknown stage '%s'", label, st))
				continue
			}
			if prev, ok := owner[st]; ok {
				errs = append(errs, fmt.Sprintf("%s: stage '%s' already covered by %s", label, st, prev))
				continue
			}
			owner[st] = label
		}
	}

	if len(tpl.Steps) > 0 {
		if !tpl.Steps[0].Matches(domain.StatusSubmitted) {
			errs = append(errs, "first step must cover 'submitted'")
		}
		if !tpl.Steps[len(tpl.Steps)-1].Matches(domain.StatusCompleted) {
			errs = append(errs, "last step must cover 'completed'")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("found %d errors:\n- %s", len(errs), strings.Join(errs, "\n- "))
	}
	return nil
}

// ValidateLoader validates every classification the loader knows, plus the
// fallback answered for unknown classifications.
func ValidateLoader(ctx context.Context, loader ports.TemplateLoader) error {
	classes, err := loader.Classifications(ctx)
	if err != nil {
		return fmt.Errorf("failed to list classifications: %w", err)
	}

	var errs []string
	check := func(class string) {
		tpl, err := loader.Template(ctx, class)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", class, err))
			return
		}
		if err := ValidateTemplate(tpl); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", class, err))
		}
	}
	for _, c := range classes {
		check(c)
	}
	check("")

	if len(errs) > 0 {
		return fmt.Errorf("invalid templates:\n%s", strings.Join(errs, "\n"))
	}
	return nil
}
