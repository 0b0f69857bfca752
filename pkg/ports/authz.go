package ports

import (
	"context"

	"github.com/aretw0/arcflow/pkg/domain"
)

// Authorizer is the external permission oracle consulted by the engine.
type Authorizer interface {
	// CurrentActor returns the caller carried by ctx.
	CurrentActor(ctx context.Context) domain.Actor

	// HasPermission reports whether the caller holds the capability.
	HasPermission(ctx context.Context, capability domain.Capability) bool
}
