/*
Package inflight implements the per-request concurrency guard.

The guard keeps the set of request IDs with a mutating command in flight.
Acquisition never waits: a second command against the same request fails
immediately with domain.ErrConcurrentModification, while commands against
different requests proceed independently. An optional distributed locker
extends the guard across replicas.
*/
package inflight
