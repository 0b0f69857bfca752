// Package authz answers permission questions for the workflow engine using a
// Casbin RBAC model. Roles map to capabilities; roles may inherit roles.
package authz

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"sync"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"
	stringadapter "github.com/casbin/casbin/v2/persist/string-adapter"

	"github.com/aretw0/arcflow/internal/logging"
	"github.com/aretw0/arcflow/pkg/domain"
)

// Object is the Casbin object every ARC capability is granted on.
const Object = "arc-request"

// ActorPrefix namespaces per-actor subjects so an actor ID can never be
// read as a role name.
const ActorPrefix = "user:"

// ActorSubject returns the Casbin subject for grants made to one actor.
func ActorSubject(id string) string { return ActorPrefix + id }

//go:embed model.conf
var modelText string

//go:embed policy.csv
var defaultPolicy string

type actorKey struct{}

// WithActor returns a context carrying the caller.
func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the caller carried by ctx, or the zero Actor.
func ActorFrom(ctx context.Context) (domain.Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(domain.Actor)
	return a, ok
}

// Oracle implements ports.Authorizer on top of a Casbin enforcer.
type Oracle struct {
	mu         sync.RWMutex
	enforcer   *casbin.Enforcer
	policyPath string
	logger     *slog.Logger
}

// Option configures the Oracle.
type Option func(*Oracle)

// WithPolicyFile loads policies from a CSV file instead of the built-in set.
func WithPolicyFile(path string) Option {
	return func(o *Oracle) { o.policyPath = path }
}

// WithLogger configures a logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Oracle) { o.logger = l }
}

// New builds an Oracle with the embedded RBAC model.
func New(opts ...Option) (*Oracle, error) {
	o := &Oracle{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(o)
	}

	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("authz: invalid model: %w", err)
	}

	var enf *casbin.Enforcer
	if o.policyPath != "" {
		enf, err = casbin.NewEnforcer(m, fileadapter.NewAdapter(o.policyPath))
	} else {
		enf, err = casbin.NewEnforcer(m, stringadapter.NewAdapter(defaultPolicy))
	}
	if err != nil {
		return nil, fmt.Errorf("authz: failed to initialize enforcer: %w", err)
	}
	o.enforcer = enf
	return o, nil
}

// CurrentActor returns the caller carried by ctx.
func (o *Oracle) CurrentActor(ctx context.Context) domain.Actor {
	a, _ := ActorFrom(ctx)
	return a
}

// HasPermission reports whether the caller's role, or the caller itself,
// is granted the capability.
func (o *Oracle) HasPermission(ctx context.Context, capability domain.Capability) bool {
	actor, ok := ActorFrom(ctx)
	if !ok {
		return false
	}
	subjects := []string{actor.Role}
	if actor.ID != "" {
		subjects = append(subjects, ActorSubject(actor.ID))
	}
	for _, sub := range subjects {
		if sub == "" {
			continue
		}
		allowed, err := o.check(sub, capability)
		if err != nil {
			o.logger.Warn("authz: enforce failed", "subject", sub, "capability", capability, "err", err)
			return false
		}
		if allowed {
			return true
		}
	}
	return false
}

func (o *Oracle) check(sub string, capability domain.Capability) (bool, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.enforcer.Enforce(sub, Object, string(capability))
}

// Capabilities lists every capability held by the role.
func (o *Oracle) Capabilities(role string) []domain.Capability {
	var out []domain.Capability
	for _, c := range domain.Capabilities {
		if ok, err := o.check(role, c); err == nil && ok {
			out = append(out, c)
		}
	}
	return out
}

// GrantActor adds a capability to a single actor at runtime.
func (o *Oracle) GrantActor(actorID string, capability domain.Capability) error {
	return o.Grant(ActorSubject(actorID), capability)
}

// Grant adds a capability to a Casbin subject (a role, or an ActorSubject)
// at runtime.
func (o *Oracle) Grant(subject string, capability domain.Capability) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, err := o.enforcer.AddPolicy(subject, Object, string(capability)); err != nil {
		return fmt.Errorf("authz: grant failed: %w", err)
	}
	return nil
}

// Inherit makes child inherit every capability of parent.
func (o *Oracle) Inherit(child, parent string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, err := o.enforcer.AddGroupingPolicy(child, parent); err != nil {
		return fmt.Errorf("authz: inherit failed: %w", err)
	}
	return nil
}

// ReloadPolicy reloads policy data from the configured source.
func (o *Oracle) ReloadPolicy(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.enforcer.LoadPolicy(); err != nil {
		return fmt.Errorf("authz: reload policy failed: %w", err)
	}
	o.logger.Info("authz policy reloaded")
	return nil
}
