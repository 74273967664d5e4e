// Package store implements the storage adapter contract: save/load/delete/
// list over a JSON-compatible, atomic-per-id persistence layer. It stays
// generic over the state type so it never needs to import the workflow
// package that instantiates it.
package store

import (
	"context"
	"errors"
)

// ErrNotFound names the "no state persisted under id" condition. None of
// the adapters in this package return it: Load reports absence with
// found=false and a nil error.
var ErrNotFound = errors.New("store: not found")

// Store is the storage adapter contract. Implementations must make Save
// atomic with respect to concurrent Load calls on the same id.
type Store[S any] interface {
	// Save atomically replaces the persisted state for id.
	Save(ctx context.Context, id string, state S) error

	// Load returns the persisted state for id, or found=false if absent.
	Load(ctx context.Context, id string) (state S, found bool, err error)

	// Delete removes the persisted state for id. Idempotent: deleting an
	// absent id is not an error.
	Delete(ctx context.Context, id string) error

	// List returns every persisted workflow id.
	List(ctx context.Context) ([]string, error)
}
