package arcflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/arcflow/internal/logging"
	"github.com/aretw0/arcflow/pkg/actions"
	"github.com/aretw0/arcflow/pkg/adapters/memory"
	"github.com/aretw0/arcflow/pkg/authz"
	"github.com/aretw0/arcflow/pkg/domain"
	"github.com/aretw0/arcflow/pkg/inflight"
	"github.com/aretw0/arcflow/pkg/notify"
	"github.com/aretw0/arcflow/pkg/ports"
	"github.com/aretw0/arcflow/pkg/progress"
	"github.com/aretw0/arcflow/pkg/requests"
	"github.com/aretw0/arcflow/pkg/workflow"
)

// Engine is the single entry point for UI and transport adapters.
// It composes the request store, transition engine, progress calculator,
// required-actions resolver and notification dispatcher.
//
// The caller of every method is resolved from ctx by the Authorizer.
type Engine struct {
	requests *requests.Store
	workflow *workflow.Engine
	progress *progress.Calculator
	notify   *notify.Dispatcher
	streams  *notify.StreamManager
	guard    *inflight.Guard
	authz    ports.Authorizer

	requestStore      ports.RequestStore
	notificationStore ports.NotificationStore
	loader            ports.TemplateLoader
	locker            ports.DistributedLocker
	policy            *workflow.Policy
	hooks             domain.LifecycleHooks
	now               func() time.Time
	newID             func() string
	logger            *slog.Logger
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithRequestStore sets the durable request backend (default: in memory).
func WithRequestStore(s ports.RequestStore) Option {
	return func(e *Engine) {
		e.requestStore = s
	}
}

// WithNotificationStore sets the notification backend (default: in memory).
func WithNotificationStore(s ports.NotificationStore) Option {
	return func(e *Engine) {
		e.notificationStore = s
	}
}

// WithAuthorizer sets the permission oracle (default: built-in RBAC roles).
func WithAuthorizer(a ports.Authorizer) Option {
	return func(e *Engine) {
		e.authz = a
	}
}

// WithTemplateLoader sets the workflow template source.
func WithTemplateLoader(l ports.TemplateLoader) Option {
	return func(e *Engine) {
		e.loader = l
	}
}

// WithPolicy sets the workflow policy.
func WithPolicy(p workflow.Policy) Option {
	return func(e *Engine) {
		e.policy = &p
	}
}

// WithLocker enables cross-replica in-flight locking.
func WithLocker(l ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = l
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithClock overrides the time source for history entries and notifications.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithIDGenerator overrides identifier generation for requests and notifications.
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) {
		e.newID = gen
	}
}

// New initializes an Engine. Without options it runs fully in memory with
// the built-in role policy and default workflow template.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = logging.NewNop()
	}
	if e.requestStore == nil {
		e.requestStore = memory.NewStore()
	}
	if e.notificationStore == nil {
		e.notificationStore = memory.NewNotificationStore()
	}
	if e.loader == nil {
		e.loader = memory.NewTemplateLoader(progress.DefaultTemplate())
	}
	if e.authz == nil {
		oracle, err := authz.New(authz.WithLogger(e.logger))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize authorizer: %w", err)
		}
		e.authz = oracle
	}
	policy := workflow.DefaultPolicy()
	if e.policy != nil {
		policy = *e.policy
	}
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid policy: %w", err)
	}

	var reqOpts []requests.Option
	var notifyOpts []notify.Option
	guardOpts := []inflight.Option{inflight.WithLogger(e.logger), inflight.WithLockTTL(policy.LockTTL)}
	if e.now != nil {
		reqOpts = append(reqOpts, requests.WithClock(e.now))
		notifyOpts = append(notifyOpts, notify.WithClock(e.now))
		guardOpts = append(guardOpts, inflight.WithClock(e.now))
	}
	if e.newID != nil {
		reqOpts = append(reqOpts, requests.WithIDGenerator(e.newID))
		notifyOpts = append(notifyOpts, notify.WithIDGenerator(e.newID))
	}
	if e.locker != nil {
		guardOpts = append(guardOpts, inflight.WithLocker(e.locker))
	}

	e.streams = notify.NewStreamManager(e.logger)
	e.requests = requests.New(e.requestStore, append(reqOpts, requests.WithLogger(e.logger))...)
	e.notify = notify.New(e.notificationStore,
		append(notifyOpts, notify.WithSink(e.streams), notify.WithLogger(e.logger))...)
	e.guard = inflight.New(guardOpts...)
	e.workflow = workflow.New(e.requests, e.authz,
		workflow.WithPolicy(policy),
		workflow.WithGuard(e.guard),
		workflow.WithNotifier(e.notify),
		workflow.WithLifecycleHooks(e.hooks),
		workflow.WithLogger(e.logger),
	)
	e.progress = progress.New(
		progress.WithTemplateLoader(e.loader),
		progress.WithEstimateMode(progress.EstimateMode(policy.EstimateMode)),
	)
	return e, nil
}

// State is a point-in-time snapshot of everything the engine holds.
type State struct {
	Requests      []*domain.Request      `json:"requests"`
	Notifications []*domain.Notification `json:"notifications"`
	InFlight      []string               `json:"in_flight"`
}

// State returns the current requests, notifications and in-flight set.
func (e *Engine) State(ctx context.Context) (*State, error) {
	notes, err := e.notify.List(ctx, "")
	if err != nil {
		return nil, err
	}
	return &State{
		Requests:      e.requests.List(),
		Notifications: notes,
		InFlight:      e.guard.InFlight(),
	}, nil
}

// Policy returns the active workflow policy.
func (e *Engine) Policy() workflow.Policy { return e.workflow.Policy() }

// Streams exposes the notification and diff stream hub.
func (e *Engine) Streams() *notify.StreamManager { return e.streams }

// Subscribe streams notifications and diffs for one request, or for all
// requests when requestID is empty.
func (e *Engine) Subscribe(requestID string) (<-chan string, func()) {
	if requestID == "" {
		requestID = notify.AllTopic
	}
	return e.streams.Subscribe(requestID)
}

// LoadRequests rebuilds the in-process collection from the request store.
func (e *Engine) LoadRequests(ctx context.Context) ([]*domain.Request, error) {
	return e.requests.Load(ctx)
}

// CreateRequest files a new request on behalf of the caller.
func (e *Engine) CreateRequest(ctx context.Context, draft domain.Draft) (*domain.Request, error) {
	if !e.authz.HasPermission(ctx, domain.CapCreate) {
		return nil, &domain.TransitionError{Kind: domain.ErrPermissionDenied, Reason: "requires " + string(domain.CapCreate)}
	}
	req, err := e.requests.Create(ctx, draft, e.authz.CurrentActor(ctx))
	if err != nil {
		return nil, err
	}
	e.streams.PublishDiff(domain.Diff(nil, req))
	return req, nil
}

// GetRequest returns a copy of one request.
func (e *Engine) GetRequest(ctx context.Context, id string) (*domain.Request, error) {
	return e.requests.Get(id)
}

// ListRequests returns copies of every request, oldest first.
func (e *Engine) ListRequests(ctx context.Context) []*domain.Request {
	return e.requests.List()
}

// TransitionRequest moves a request to target.
func (e *Engine) TransitionRequest(ctx context.Context, id string, target domain.Status, notes string) (*domain.TransitionResult, error) {
	before, _ := e.requests.Get(id)
	res, err := e.workflow.Transition(ctx, id, target, notes)
	if err != nil {
		return nil, err
	}
	e.streams.PublishDiff(domain.Diff(before, res.Request))
	return res, nil
}

// GetAvailableTransitions lists targets the caller may move the request to.
func (e *Engine) GetAvailableTransitions(ctx context.Context, id string) ([]domain.Status, error) {
	return e.workflow.AvailableTransitions(ctx, id)
}

// CanPerformAction reports whether the caller holds capability on the request.
func (e *Engine) CanPerformAction(ctx context.Context, id string, capability domain.Capability) (bool, error) {
	return e.workflow.CanPerformAction(ctx, id, capability)
}

// GetRequiredActions lists what the caller should do next on the request.
func (e *Engine) GetRequiredActions(ctx context.Context, id string) ([]string, error) {
	req, err := e.requests.Get(id)
	if err != nil {
		return nil, err
	}
	caller := actions.NewCaller(e.authz.CurrentActor(ctx), func(c domain.Capability) bool {
		return e.authz.HasPermission(ctx, c)
	})
	return actions.Resolve(req, caller, e.workflow.Policy().BoardMembers), nil
}

// GetWorkflowSteps returns the derived step views for the request.
func (e *Engine) GetWorkflowSteps(ctx context.Context, id string) ([]domain.WorkflowStepView, error) {
	req, err := e.requests.Get(id)
	if err != nil {
		return nil, err
	}
	return e.progress.Steps(ctx, req)
}

// CalculateProgress returns the request's completion percentage.
func (e *Engine) CalculateProgress(ctx context.Context, id string) (int, error) {
	req, err := e.requests.Get(id)
	if err != nil {
		return 0, err
	}
	return e.progress.Progress(ctx, req)
}

// GetEstimatedCompletion projects the completion date, or nil when the
// request is terminal or has nothing left.
func (e *Engine) GetEstimatedCompletion(ctx context.Context, id string) (*time.Time, error) {
	req, err := e.requests.Get(id)
	if err != nil {
		return nil, err
	}
	return e.progress.EstimatedCompletion(ctx, req)
}

// RecordSignoff records a neighbor's sign-off position.
func (e *Engine) RecordSignoff(ctx context.Context, id, neighborID string, status domain.SignoffStatus, comment string) (*domain.TransitionResult, error) {
	before, _ := e.requests.Get(id)
	res, err := e.workflow.RecordSignoff(ctx, id, neighborID, status, comment)
	if err != nil {
		return nil, err
	}
	e.streams.PublishDiff(domain.Diff(before, res.Request))
	return res, nil
}

// CastVote records the caller's board vote.
func (e *Engine) CastVote(ctx context.Context, id string, decision domain.VoteDecision, comment string) (*domain.Request, error) {
	return e.afterCommand(id, func() (*domain.Request, error) {
		return e.workflow.CastVote(ctx, id, decision, comment)
	})
}

// RecordInspection records an inspection outcome.
func (e *Engine) RecordInspection(ctx context.Context, id string, passed bool, notes string) (*domain.Request, error) {
	return e.afterCommand(id, func() (*domain.Request, error) {
		return e.workflow.RecordInspection(ctx, id, passed, notes)
	})
}

// AddComment appends to the request's conversation thread.
func (e *Engine) AddComment(ctx context.Context, id, body string) (*domain.Request, error) {
	return e.afterCommand(id, func() (*domain.Request, error) {
		return e.workflow.AddComment(ctx, id, body)
	})
}

func (e *Engine) afterCommand(id string, run func() (*domain.Request, error)) (*domain.Request, error) {
	before, _ := e.requests.Get(id)
	req, err := run()
	if err != nil {
		return nil, err
	}
	e.streams.PublishDiff(domain.Diff(before, req))
	return req, nil
}

// GetUnreadNotifications returns unread notifications, optionally scoped to a request.
func (e *Engine) GetUnreadNotifications(ctx context.Context, requestID string) ([]*domain.Notification, error) {
	return e.notify.Unread(ctx, requestID)
}

// ListNotifications returns notifications, optionally scoped to a request.
func (e *Engine) ListNotifications(ctx context.Context, requestID string) ([]*domain.Notification, error) {
	return e.notify.List(ctx, requestID)
}

// MarkNotificationRead flags a notification as read. It is idempotent.
func (e *Engine) MarkNotificationRead(ctx context.Context, id string) error {
	return e.notify.MarkRead(ctx, id)
}

// ClearNotifications removes notifications, optionally scoped to a request,
// and returns how many were removed.
func (e *Engine) ClearNotifications(ctx context.Context, requestID string) (int, error) {
	return e.notify.Clear(ctx, requestID)
}

// WithActor returns a context carrying the caller for the built-in authorizer.
func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return authz.WithActor(ctx, actor)
}
