package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aretw0/arcflow/pkg/domain"
	"github.com/aretw0/arcflow/pkg/ports"
)

// Mask replaces redacted text.
const Mask = "***"

type redactionMiddleware struct {
	next     ports.RequestStore
	patterns []*regexp.Regexp
}

// NewRedactionMiddleware masks text matching any pattern in the free-text
// fields of a request (comments, notes, appeal reasons) before it is
// persisted. Redaction is one-way.
func NewRedactionMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		patterns[i] = re
	}
	return func(next ports.RequestStore) ports.RequestStore {
		return &redactionMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *redactionMiddleware) Save(ctx context.Context, req *domain.Request) error {
	// Work on a copy; the engine keeps using the caller's value.
	cloned := req.Clone()
	for _, f := range freeText(cloned) {
		*f = m.mask(*f)
	}
	return m.next.Save(ctx, cloned)
}

func (m *redactionMiddleware) Load(ctx context.Context, id string) (*domain.Request, error) {
	return m.next.Load(ctx, id)
}

func (m *redactionMiddleware) Delete(ctx context.Context, id string) error {
	return m.next.Delete(ctx, id)
}

func (m *redactionMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func (m *redactionMiddleware) mask(s string) string {
	for _, p := range m.patterns {
		s = p.ReplaceAllString(s, Mask)
	}
	return s
}

func freeText(r *domain.Request) []*string {
	out := []*string{&r.Description}
	for i := range r.History {
		out = append(out, &r.History[i].Notes)
	}
	for i := range r.Messages {
		out = append(out, &r.Messages[i].Body)
	}
	for i := range r.Signoffs {
		out = append(out, &r.Signoffs[i].Comment)
	}
	for i := range r.Votes {
		out = append(out, &r.Votes[i].Comment)
	}
	for i := range r.Appeals {
		out = append(out, &r.Appeals[i].Reason)
	}
	for i := range r.Inspections {
		out = append(out, &r.Inspections[i].Notes)
	}
	return out
}
