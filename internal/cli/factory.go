// Package cli wires configuration into a running engine for the arcflow
// command and its transports.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/aretw0/arcflow"
	"github.com/aretw0/arcflow/internal/adapters/file"
	"github.com/aretw0/arcflow/internal/config"
	"github.com/aretw0/arcflow/pkg/adapters/loam"
	"github.com/aretw0/arcflow/pkg/adapters/memory"
	"github.com/aretw0/arcflow/pkg/adapters/redis"
	"github.com/aretw0/arcflow/pkg/authz"
	"github.com/aretw0/arcflow/pkg/domain"
	"github.com/aretw0/arcflow/pkg/observability"
	"github.com/aretw0/arcflow/pkg/persistence/middleware"
	"github.com/aretw0/arcflow/pkg/ports"
	"github.com/aretw0/arcflow/pkg/progress"
	"github.com/aretw0/arcflow/pkg/workflow"
	"github.com/cenkalti/backoff/v4"
)

// loadMaxElapsed bounds how long startup waits for the store.
const loadMaxElapsed = 30 * time.Second

// Runtime is an engine plus the collaborators transports need.
type Runtime struct {
	Engine  *arcflow.Engine
	Metrics *observability.Metrics
	Loader  ports.TemplateLoader
	Config  *config.Configuration
	Logger  *slog.Logger

	closers []func() error
}

// BootstrapOption tweaks Bootstrap, mostly for tests.
type BootstrapOption func(*bootstrap)

type bootstrap struct {
	newBackOff   func() backoff.BackOff
	requestStore ports.RequestStore
	engineOpts   []arcflow.Option
}

// WithBackOff overrides the retry schedule for the initial load.
func WithBackOff(fn func() backoff.BackOff) BootstrapOption {
	return func(b *bootstrap) { b.newBackOff = fn }
}

// WithRequestStoreOverride replaces the configured request store.
func WithRequestStoreOverride(s ports.RequestStore) BootstrapOption {
	return func(b *bootstrap) { b.requestStore = s }
}

// WithEngineOptions appends engine options after the configured ones.
func WithEngineOptions(opts ...arcflow.Option) BootstrapOption {
	return func(b *bootstrap) { b.engineOpts = append(b.engineOpts, opts...) }
}

func defaultBackOff() backoff.BackOff {
	// BackOff implementations are stateful; always return a fresh instance.
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = loadMaxElapsed
	return bo
}

// Bootstrap builds the engine described by cfg and loads persisted requests.
func Bootstrap(ctx context.Context, cfg *config.Configuration, logger *slog.Logger, opts ...BootstrapOption) (*Runtime, error) {
	b := &bootstrap{newBackOff: defaultBackOff}
	for _, opt := range opts {
		opt(b)
	}

	rt := &Runtime{Config: cfg, Logger: logger}
	engineOpts := []arcflow.Option{arcflow.WithLogger(logger)}

	var requestStore ports.RequestStore
	switch cfg.Store {
	case config.StoreMemory:
		requestStore = memory.NewStore()
		engineOpts = append(engineOpts, arcflow.WithNotificationStore(memory.NewNotificationStore()))
	case config.StoreFile:
		requestStore = file.New(filepath.Join(cfg.DataDir, "requests"))
		engineOpts = append(engineOpts,
			arcflow.WithNotificationStore(file.NewNotificationStore(filepath.Join(cfg.DataDir, "notifications.json"))))
	case config.StoreRedis:
		client := redis.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		rt.closers = append(rt.closers, client.Close)
		prefix := redis.WithPrefix(cfg.Redis.Prefix)
		requestStore = redis.NewStore(client, prefix)
		engineOpts = append(engineOpts,
			arcflow.WithNotificationStore(redis.NewNotificationStore(client, prefix)),
			arcflow.WithLocker(redis.NewLocker(client, prefix)))
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
	if b.requestStore != nil {
		requestStore = b.requestStore
	}
	mws, err := storeMiddleware(cfg)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	engineOpts = append(engineOpts, arcflow.WithRequestStore(middleware.Chain(requestStore, mws...)))

	if cfg.PolicyFile != "" {
		policy, err := workflow.LoadPolicy(cfg.PolicyFile)
		if err != nil {
			return nil, err
		}
		engineOpts = append(engineOpts, arcflow.WithPolicy(policy))
	}

	if cfg.TemplatesDir != "" {
		loader, err := loam.Open(cfg.TemplatesDir, progress.DefaultTemplate())
		if err != nil {
			return nil, err
		}
		rt.Loader = loader
	} else {
		rt.Loader = memory.NewTemplateLoader(progress.DefaultTemplate())
	}
	engineOpts = append(engineOpts, arcflow.WithTemplateLoader(rt.Loader))

	oracleOpts := []authz.Option{authz.WithLogger(logger)}
	if cfg.AuthzPolicy != "" {
		oracleOpts = append(oracleOpts, authz.WithPolicyFile(cfg.AuthzPolicy))
	}
	oracle, err := authz.New(oracleOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize authorizer: %w", err)
	}
	engineOpts = append(engineOpts, arcflow.WithAuthorizer(oracle))

	hooks := []domain.LifecycleHooks{observability.LoggingHooks(logger)}
	if cfg.Metrics {
		rt.Metrics = observability.NewMetrics()
		hooks = append(hooks, rt.Metrics.Hooks())
	}
	engineOpts = append(engineOpts, arcflow.WithLifecycleHooks(observability.Chain(hooks...)))

	eng, err := arcflow.New(append(engineOpts, b.engineOpts...)...)
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	rt.Engine = eng

	if err := loadWithRetry(ctx, eng, b.newBackOff(), logger); err != nil {
		_ = rt.Close()
		return nil, err
	}
	return rt, nil
}

// storeMiddleware builds the at-rest transforms the configuration asks for.
// Redaction runs before encryption.
func storeMiddleware(cfg *config.Configuration) ([]middleware.Middleware, error) {
	var mws []middleware.Middleware
	if len(cfg.RedactPatterns) > 0 {
		mw, err := middleware.NewRedactionMiddleware(cfg.RedactPatterns)
		if err != nil {
			return nil, err
		}
		mws = append(mws, mw)
	}
	if cfg.EncryptionKey != "" {
		enc := middleware.EncryptionConfig{}
		var err error
		if enc.ActiveKey, err = middleware.ParseKey(cfg.EncryptionKey); err != nil {
			return nil, fmt.Errorf("ARC_ENCRYPTION_KEY: %w", err)
		}
		for _, k := range cfg.EncryptionFallbackKeys {
			key, err := middleware.ParseKey(k)
			if err != nil {
				return nil, fmt.Errorf("ARC_ENCRYPTION_FALLBACK_KEYS: %w", err)
			}
			enc.FallbackKeys = append(enc.FallbackKeys, key)
		}
		mw, err := middleware.NewEncryptionMiddleware(enc)
		if err != nil {
			return nil, err
		}
		mws = append(mws, mw)
	}
	return mws, nil
}

// loadWithRetry retries transient store failures. Corrupt data stops at once.
func loadWithRetry(ctx context.Context, eng *arcflow.Engine, bo backoff.BackOff, logger *slog.Logger) error {
	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		reqs, err := eng.LoadRequests(ctx)
		if err == nil {
			logger.Debug("requests loaded", "count", len(reqs), "attempts", attempt)
			return nil
		}
		if !isRetryable(err) {
			return backoff.Permanent(err)
		}
		logger.Warn("loading requests failed, retrying", "attempt", attempt, "err", err)
		return err
	}, backoff.WithContext(bo, ctx))
}

func isRetryable(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		return false
	case errors.Is(err, domain.ErrValidationFailed):
		return false
	case errors.Is(err, context.Canceled):
		return false
	default:
		return true
	}
}

// Close releases backend connections.
func (r *Runtime) Close() error {
	var errs []error
	for _, c := range r.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}
