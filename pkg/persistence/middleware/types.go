// Package middleware wraps request stores to transform what is persisted
// without touching the engine's in-memory view.
package middleware

import "github.com/aretw0/arcflow/pkg/ports"

// Middleware allows wrapping a RequestStore to add behavior.
type Middleware func(ports.RequestStore) ports.RequestStore

// Chain applies the middlewares so the first one sees calls first.
func Chain(store ports.RequestStore, mws ...Middleware) ports.RequestStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
