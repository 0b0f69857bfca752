// Package progress derives progress, step views and completion estimates
// from a request's stage history. Nothing here is cached or persisted.
package progress

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/arcflow/pkg/domain"
	"github.com/aretw0/arcflow/pkg/ports"
)

// EstimateMode selects how remaining step durations are projected.
type EstimateMode string

const (
	// EstimateFixed uses the template's per-step durations.
	EstimateFixed EstimateMode = "fixed"
	// EstimateObserved uses the average duration of the request's completed
	// steps, falling back to fixed durations without data.
	EstimateObserved EstimateMode = "observed"
)

// Calculator computes derived views for requests.
type Calculator struct {
	loader ports.TemplateLoader
	mode   EstimateMode
}

// Option configures the Calculator.
type Option func(*Calculator)

// WithTemplateLoader sets the template source.
func WithTemplateLoader(l ports.TemplateLoader) Option {
	return func(c *Calculator) { c.loader = l }
}

// WithEstimateMode sets the ETA projection mode.
func WithEstimateMode(m EstimateMode) Option {
	return func(c *Calculator) {
		if m != "" {
			c.mode = m
		}
	}
}

// New creates a Calculator. Without a loader every request uses DefaultTemplate.
func New(opts ...Option) *Calculator {
	c := &Calculator{mode: EstimateFixed}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Calculator) template(ctx context.Context, req *domain.Request) (domain.WorkflowTemplate, error) {
	if c.loader == nil {
		return DefaultTemplate(), nil
	}
	tpl, err := c.loader.Template(ctx, req.Classification)
	if err != nil {
		return domain.WorkflowTemplate{}, fmt.Errorf("failed to load template for %q: %w", req.Classification, err)
	}
	if len(tpl.Steps) == 0 {
		return DefaultTemplate(), nil
	}
	return tpl, nil
}

// completion returns, per step, whether it is complete. A step is complete
// when one of its stages is in the history, or when a later step is
// (the step was bypassed).
func completion(tpl domain.WorkflowTemplate, req *domain.Request) []bool {
	done := make([]bool, len(tpl.Steps))
	reached := false
	for i := len(tpl.Steps) - 1; i >= 0; i-- {
		if !reached {
			for _, st := range tpl.Steps[i].Stages {
				if req.HasStage(st) {
					reached = true
					break
				}
			}
		}
		done[i] = reached
	}
	return done
}

// Progress returns the floored weighted share of completed steps, 0 to 100.
func (c *Calculator) Progress(ctx context.Context, req *domain.Request) (int, error) {
	tpl, err := c.template(ctx, req)
	if err != nil {
		return 0, err
	}
	done := completion(tpl, req)

	var total, completed int
	for i, s := range tpl.Steps {
		w := s.Weight
		if w <= 0 {
			w = 1
		}
		total += w
		if done[i] {
			completed += w
		}
	}
	if total == 0 {
		return 0, nil
	}
	return completed * 100 / total, nil
}

// Steps returns the step views for the request in template order.
func (c *Calculator) Steps(ctx context.Context, req *domain.Request) ([]domain.WorkflowStepView, error) {
	tpl, err := c.template(ctx, req)
	if err != nil {
		return nil, err
	}
	done := completion(tpl, req)

	views := make([]domain.WorkflowStepView, len(tpl.Steps))
	active := false
	for i, s := range tpl.Steps {
		v := domain.WorkflowStepView{
			Order:       s.Order,
			Title:       s.Title,
			Description: s.Description,
			IsCompleted: done[i],
			Responsible: s.Responsible,
		}
		if len(s.Stages) > 0 {
			v.Stage = s.Stages[0]
		}
		if entry, ok := firstEntry(req, s); ok {
			at := entry.EnteredAt
			v.Stage = entry.Stage
			v.CompletedAt = &at
			v.CompletedBy = entry.Actor
		}
		if !done[i] && !active && !req.Status.IsTerminal() {
			v.IsActive = true
			active = true
		}
		views[i] = v
	}
	return views, nil
}

// firstEntry returns the earliest history entry matching any of the step's stages.
func firstEntry(req *domain.Request, s domain.StepTemplate) (domain.StageEntry, bool) {
	for _, e := range req.History {
		if s.Matches(e.Stage) {
			return e, true
		}
	}
	return domain.StageEntry{}, false
}

// EstimatedCompletion projects when the request will complete. It returns
// nil for terminal requests and when no steps remain.
func (c *Calculator) EstimatedCompletion(ctx context.Context, req *domain.Request) (*time.Time, error) {
	if req.Status.IsTerminal() {
		return nil, nil
	}
	last, ok := req.LastStage()
	if !ok {
		return nil, nil
	}
	tpl, err := c.template(ctx, req)
	if err != nil {
		return nil, err
	}
	done := completion(tpl, req)

	var remaining []domain.StepTemplate
	for i, s := range tpl.Steps {
		if !done[i] {
			remaining = append(remaining, s)
		}
	}
	if len(remaining) == 0 {
		return nil, nil
	}

	var total time.Duration
	if avg, ok := observedAverage(req); c.mode == EstimateObserved && ok {
		total = avg * time.Duration(len(remaining))
	} else {
		for _, s := range remaining {
			total += s.Duration
		}
	}

	eta := last.EnteredAt.Add(total)
	return &eta, nil
}

// observedAverage is the mean time between consecutive history entries.
func observedAverage(req *domain.Request) (time.Duration, bool) {
	if len(req.History) < 2 {
		return 0, false
	}
	first := req.History[0].EnteredAt
	last := req.History[len(req.History)-1].EnteredAt
	span := last.Sub(first)
	if span <= 0 {
		return 0, false
	}
	return span / time.Duration(len(req.History)-1), true
}
