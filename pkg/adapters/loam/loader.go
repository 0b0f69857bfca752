// Package loam loads workflow templates from a Loam document repository.
// Each document describes one classification; its frontmatter lists the
// steps and its body is the template description.
package loam

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/arcflow/pkg/domain"
	"github.com/aretw0/loam"
	"github.com/go-playground/validator/v10"
)

// Loader implements ports.TemplateLoader on top of a typed Loam repository.
type Loader struct {
	Repo     *loam.TypedRepository[TemplateMetadata]
	fallback domain.WorkflowTemplate
	validate *validator.Validate
}

// New creates a Loam-backed loader. fallback answers unknown classifications
// unless a document marks itself as the fallback.
func New(repo *loam.TypedRepository[TemplateMetadata], fallback domain.WorkflowTemplate) *Loader {
	return &Loader{
		Repo:     repo,
		fallback: fallback,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Open initializes a read-only Loam repository at path and wraps it.
func Open(path string, fallback domain.WorkflowTemplate) (*Loader, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(loam.NewTypedRepository[TemplateMetadata](repo), fallback), nil
}

// Template returns the template for the classification, or the fallback.
func (l *Loader) Template(ctx context.Context, classification string) (domain.WorkflowTemplate, error) {
	all, err := l.load(ctx)
	if err != nil {
		return domain.WorkflowTemplate{}, err
	}
	if tpl, ok := all.byClass[classification]; ok {
		return tpl, nil
	}
	if all.fallback != nil {
		return *all.fallback, nil
	}
	return l.fallback, nil
}

// Classifications lists every classification defined in the repository.
func (l *Loader) Classifications(ctx context.Context) ([]string, error) {
	all, err := l.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(all.byClass))
	for k := range all.byClass {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

type catalog struct {
	byClass  map[string]domain.WorkflowTemplate
	fallback *domain.WorkflowTemplate
}

func (l *Loader) load(ctx context.Context) (*catalog, error) {
	docs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	c := &catalog{byClass: make(map[string]domain.WorkflowTemplate)}
	seen := make(map[string]string)
	for _, doc := range docs {
		class := doc.Data.Classification
		if class == "" {
			class = trimExtension(doc.ID)
		}
		if existing, ok := seen[class]; ok {
			return nil, fmt.Errorf("collision detected: classification '%s' is defined in both '%s' and '%s'", class, existing, doc.ID)
		}
		seen[class] = doc.ID

		tpl, err := l.convert(class, doc.Data)
		if err != nil {
			return nil, fmt.Errorf("template %s: %w", doc.ID, err)
		}
		c.byClass[class] = tpl
		if doc.Data.Fallback {
			if c.fallback != nil {
				return nil, fmt.Errorf("template %s: more than one fallback template", doc.ID)
			}
			fb := tpl
			c.fallback = &fb
		}
	}
	return c, nil
}

func (l *Loader) convert(class string, meta TemplateMetadata) (domain.WorkflowTemplate, error) {
	tpl := domain.WorkflowTemplate{Classification: class, Steps: make([]domain.StepTemplate, 0, len(meta.Steps))}
	for i, s := range meta.Steps {
		if err := l.validate.Struct(s); err != nil {
			return tpl, fmt.Errorf("step %d: %w", i+1, err)
		}
		weight, err := toInt(s.Weight)
		if err != nil {
			return tpl, fmt.Errorf("step %d weight: %w", i+1, err)
		}
		dur, err := ParseDuration(s.Duration)
		if err != nil {
			return tpl, fmt.Errorf("step %d duration: %w", i+1, err)
		}
		stages := make([]domain.Status, len(s.Stages))
		for j, st := range s.Stages {
			stages[j] = domain.Status(st)
		}
		tpl.Steps = append(tpl.Steps, domain.StepTemplate{
			Order:       i + 1,
			Title:       s.Title,
			Description: s.Description,
			Stages:      stages,
			Responsible: s.Responsible,
			Weight:      weight,
			Duration:    dur,
		})
	}
	return tpl, nil
}

// ParseDuration accepts Go durations ("36h") plus a day suffix ("5d").
// Bare numbers are days. nil and "" are zero.
func ParseDuration(v any) (time.Duration, error) {
	switch d := v.(type) {
	case nil:
		return 0, nil
	case string:
		d = strings.TrimSpace(d)
		if d == "" {
			return 0, nil
		}
		if strings.HasSuffix(d, "d") {
			n, err := strconv.ParseFloat(strings.TrimSuffix(d, "d"), 64)
			if err != nil {
				return 0, fmt.Errorf("invalid day count %q", d)
			}
			return days(n)
		}
		parsed, err := time.ParseDuration(d)
		if err != nil {
			return 0, err
		}
		if parsed < 0 {
			return 0, fmt.Errorf("negative duration %q", d)
		}
		return parsed, nil
	default:
		n, err := toFloat(v)
		if err != nil {
			return 0, err
		}
		return days(n)
	}
}

func days(n float64) (time.Duration, error) {
	if n < 0 {
		return 0, fmt.Errorf("negative duration %v", n)
	}
	return time.Duration(n * float64(24*time.Hour)), nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case float64:
		return n, nil
	case json.Number:
		return n.Float64()
	case string:
		return strconv.ParseFloat(n, 64)
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
}

func toInt(v any) (int, error) {
	if v == nil {
		return 0, nil
	}
	f, err := toFloat(v)
	if err != nil {
		return 0, err
	}
	if f < 0 || f != float64(int(f)) {
		return 0, fmt.Errorf("expected non-negative integer, got %v", v)
	}
	return int(f), nil
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}

// Watch reports the classification document that changed. The loader reads
// the repository on every call, so consumers only need the signal.
func (l *Loader) Watch(ctx context.Context) (<-chan string, error) {
	events, err := l.Repo.Watch(ctx, "**/*.{md,json,yaml,yml}")
	if err != nil {
		return nil, fmt.Errorf("failed to start loam watcher: %w", err)
	}

	ch := make(chan string, 1)
	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				select {
				case ch <- trimExtension(evt.ID):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch, nil
}
