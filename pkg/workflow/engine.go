// Package workflow implements the ARC request transition engine.
//
// Every mutating command runs under the per-request in-flight guard, is
// validated against the transition table and the permission oracle, and is
// committed as a single replace of the request snapshot.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/arcflow/internal/logging"
	"github.com/aretw0/arcflow/pkg/domain"
	"github.com/aretw0/arcflow/pkg/inflight"
	"github.com/aretw0/arcflow/pkg/ports"
	"github.com/aretw0/arcflow/pkg/requests"
)

// Notifier turns committed transitions into notifications.
// Compose runs before the commit so the request can reference the
// notification by ID; Deliver runs after it.
type Notifier interface {
	Compose(req *domain.Request, ev *domain.TransitionEvent) *domain.Notification
	Deliver(ctx context.Context, n *domain.Notification) error
}

// Engine validates and executes commands against requests.
type Engine struct {
	store    *requests.Store
	authz    ports.Authorizer
	guard    *inflight.Guard
	policy   Policy
	notifier Notifier
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
}

// Option configures the Engine.
type Option func(*Engine)

// WithPolicy sets the workflow policy.
func WithPolicy(p Policy) Option {
	return func(e *Engine) {
		if p.TransitionTimeout <= 0 {
			p.TransitionTimeout = DefaultTransitionTimeout
		}
		e.policy = p
	}
}

// WithGuard shares an in-flight guard with the caller.
func WithGuard(g *inflight.Guard) Option {
	return func(e *Engine) { e.guard = g }
}

// WithNotifier sets the notification sink for committed transitions.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithLifecycleHooks registers observability callbacks.
func WithLifecycleHooks(h domain.LifecycleHooks) Option {
	return func(e *Engine) { e.hooks = h }
}

// WithLogger configures a logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an Engine over the request store and permission oracle.
func New(store *requests.Store, authz ports.Authorizer, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		authz:  authz,
		policy: DefaultPolicy(),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.guard == nil {
		e.guard = inflight.New(inflight.WithLogger(e.logger), inflight.WithLockTTL(e.policy.LockTTL))
	}
	return e
}

// Policy returns the active policy.
func (e *Engine) Policy() Policy { return e.policy }

// Guard returns the in-flight guard.
func (e *Engine) Guard() *inflight.Guard { return e.guard }

// Transition moves the request to target on behalf of the caller in ctx.
func (e *Engine) Transition(ctx context.Context, requestID string, target domain.Status, notes string) (*domain.TransitionResult, error) {
	return e.command(ctx, requestID, target, func(next *domain.Request, actor domain.Actor) ([]change, error) {
		if err := e.checkEdge(ctx, next, target, notes, true); err != nil {
			return nil, err
		}
		return []change{{to: target, actor: actor, notes: notes}}, nil
	})
}

// AvailableTransitions lists the targets the caller could move the request
// to right now. Edges that only need a reason are included.
func (e *Engine) AvailableTransitions(ctx context.Context, requestID string) ([]domain.Status, error) {
	req, err := e.store.Get(requestID)
	if err != nil {
		return nil, err
	}
	out := []domain.Status{}
	for _, edge := range Outgoing(req.Status) {
		if e.checkEdge(ctx, req, edge.To, "", false) == nil {
			out = append(out, edge.To)
		}
	}
	return out, nil
}

// CanPerformAction reports whether the caller holds the capability for the
// request, independently of any transition.
func (e *Engine) CanPerformAction(ctx context.Context, requestID string, capability domain.Capability) (bool, error) {
	if _, err := e.store.Get(requestID); err != nil {
		return false, err
	}
	return e.authz.HasPermission(ctx, capability), nil
}

func (e *Engine) checkEdge(ctx context.Context, req *domain.Request, target domain.Status, notes string, withNotes bool) error {
	if req.Status.IsTerminal() {
		return domain.Rejection(domain.ErrInvalidTransition, req, target, fmt.Sprintf("request is %s", req.Status))
	}
	edge, ok := EdgeFor(req.Status, target)
	if !ok {
		return domain.Rejection(domain.ErrInvalidTransition, req, target, "no such edge")
	}
	if !e.holdsAny(ctx, edge.AnyOf) {
		return domain.Rejection(domain.ErrPermissionDenied, req, target, fmt.Sprintf("requires one of %s", joinCaps(edge.AnyOf)))
	}
	if withNotes && edge.RequiresNotes && strings.TrimSpace(notes) == "" {
		return domain.Rejection(domain.ErrValidationFailed, req, target, "a reason is required")
	}
	ec := &edgeContext{
		req:      req,
		policy:   e.policy,
		override: e.authz.HasPermission(ctx, domain.CapOverride),
	}
	for _, g := range edge.Guards {
		if err := g(ec); err != nil {
			return domain.Rejection(domain.ErrValidationFailed, req, target, err.Error())
		}
	}
	return nil
}

func (e *Engine) holdsAny(ctx context.Context, anyOf []domain.Capability) bool {
	for _, c := range anyOf {
		if e.authz.HasPermission(ctx, c) {
			return true
		}
	}
	return false
}

func joinCaps(cs []domain.Capability) string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = string(c)
	}
	return strings.Join(parts, ", ")
}

// change is a stage append produced by a command.
type change struct {
	to    domain.Status
	actor domain.Actor
	notes string
}

// mutation edits next in place and returns the stage appends to record.
type mutation func(next *domain.Request, actor domain.Actor) ([]change, error)

// command runs apply under the in-flight guard and commits the result as a
// single replace. On any error the stored request is left untouched.
func (e *Engine) command(ctx context.Context, requestID string, target domain.Status, apply mutation) (*domain.TransitionResult, error) {
	start := time.Now()
	actor := e.authz.CurrentActor(ctx)

	release, err := e.guard.TryAcquire(ctx, requestID)
	if err != nil {
		if errors.Is(err, domain.ErrConcurrentModification) {
			err = &domain.TransitionError{
				Kind:      domain.ErrConcurrentModification,
				RequestID: requestID,
				To:        target,
				Reason:    "another command is in flight",
			}
		}
		e.rejected(ctx, requestID, "", target, actor, err, start)
		return nil, err
	}
	defer release()

	current, err := e.current(ctx, requestID)
	if err != nil {
		e.rejected(ctx, requestID, "", target, actor, err, start)
		return nil, err
	}

	next := current.Clone()
	changes, err := apply(next, actor)
	if err != nil {
		e.rejected(ctx, requestID, current.Status, target, actor, err, start)
		return nil, err
	}

	now := e.store.Now()
	next.UpdatedAt = now
	events := make([]*domain.TransitionEvent, 0, len(changes))
	var pending []*domain.Notification
	for _, c := range changes {
		ev := &domain.TransitionEvent{
			Type:      domain.EventTransition,
			Timestamp: now,
			RequestID: requestID,
			From:      next.Status,
			To:        c.to,
			Actor:     c.actor,
			Notes:     c.notes,
		}
		next.AppendStage(domain.StageEntry{Stage: c.to, EnteredAt: now, Actor: c.actor.ID, Notes: c.notes})
		events = append(events, ev)
		if e.notifier != nil {
			n := e.notifier.Compose(next, ev)
			next.NotificationIDs = append(next.NotificationIDs, n.ID)
			pending = append(pending, n)
		}
	}

	commitCtx, cancel := context.WithTimeout(ctx, e.policy.TransitionTimeout)
	defer cancel()
	if err := e.store.Commit(commitCtx, next); err != nil {
		e.rejected(ctx, requestID, current.Status, target, actor, err, start)
		return nil, err
	}

	for _, n := range pending {
		if err := e.notifier.Deliver(ctx, n); err != nil {
			e.logger.Warn("notification delivery failed",
				"request_id", requestID,
				"notification_id", n.ID,
				"err", err,
			)
		}
	}

	result := &domain.TransitionResult{
		Request: next.Clone(),
		From:    current.Status,
		To:      next.Status,
	}
	if len(pending) > 0 {
		result.Notification = pending[0]
	}
	for _, c := range changes {
		if c.actor.ID == domain.SystemActorID {
			result.AutoAdvanced = append(result.AutoAdvanced, c.to)
		}
	}

	elapsed := time.Since(start)
	for _, ev := range events {
		ev.Duration = elapsed
		e.logger.Debug("request transitioned",
			"request_id", requestID,
			"from", ev.From,
			"to", ev.To,
			"actor", ev.Actor.ID,
		)
		if e.hooks.OnTransition != nil {
			e.hooks.OnTransition(ctx, ev)
		}
	}
	if len(changes) == 0 && e.hooks.OnSubrecord != nil {
		e.hooks.OnSubrecord(ctx, &domain.TransitionEvent{
			Type:      domain.EventSubrecord,
			Timestamp: now,
			RequestID: requestID,
			From:      current.Status,
			To:        next.Status,
			Actor:     actor,
			Duration:  elapsed,
		})
	}
	return result, nil
}

// current returns the request a command starts from. With a distributed
// guard other replicas may have committed since the last load, so the
// request is re-read from the durable store under the lock.
func (e *Engine) current(ctx context.Context, requestID string) (*domain.Request, error) {
	if e.guard.Distributed() {
		return e.store.Refresh(ctx, requestID)
	}
	return e.store.Get(requestID)
}

func (e *Engine) rejected(ctx context.Context, requestID string, from, to domain.Status, actor domain.Actor, err error, start time.Time) {
	e.logger.Warn("command rejected",
		"request_id", requestID,
		"from", from,
		"to", to,
		"actor", actor.ID,
		"err", err,
	)
	if e.hooks.OnRejected != nil {
		e.hooks.OnRejected(ctx, &domain.TransitionEvent{
			Type:      domain.EventRejected,
			Timestamp: time.Now(),
			RequestID: requestID,
			From:      from,
			To:        to,
			Actor:     actor,
			Err:       err,
			Duration:  time.Since(start),
		})
	}
}
