// Package syncengine reconciles the local offline-first store with its
// remote counterpart. Correlation is by provider-assigned remote id; the
// conflict policy is local-wins.
package syncengine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Entity is the minimal surface the engine needs from a syncable record.
type Entity interface {
	GetRemoteID() string
	SetRemoteID(string)
	GetUpdatedAt() time.Time
}

// LocalStore is the engine's view of the local collection.
type LocalStore[T Entity] interface {
	List(ctx context.Context) ([]T, error)
	// Insert stores a copy under a fresh local key and returns it.
	Insert(ctx context.Context, entity T) (T, error)
	// SetRemoteID records the provider-assigned key after a push.
	SetRemoteID(ctx context.Context, entity T, remoteID string) error
	Delete(ctx context.Context, entity T) error
}

// RemoteStore is the engine's view of the remote collection.
type RemoteStore[T Entity] interface {
	List(ctx context.Context) ([]T, error)
	// Create uploads a new record and returns the provider-assigned id.
	Create(ctx context.Context, entity T) (string, error)
	// Update overwrites the remote record correlated with the entity.
	Update(ctx context.Context, entity T) error
	Delete(ctx context.Context, remoteID string) error
}

// Result aggregates what one engine run did. Skipped counts per-entity
// failures that were logged and stepped over; they never abort the batch.
type Result struct {
	Pulled  int
	Created int
	Updated int
	Skipped int
}

// Engine reconciles one entity kind.
type Engine[T Entity] struct {
	kind   string
	local  LocalStore[T]
	remote RemoteStore[T]
	log    *zap.Logger

	mirrors sync.WaitGroup
}

// NewEngine builds an engine for one entity kind. kind is only used in logs.
func NewEngine[T Entity](kind string, local LocalStore[T], remote RemoteStore[T], log *zap.Logger) *Engine[T] {
	return &Engine[T]{kind: kind, local: local, remote: remote, log: log}
}

// Pull inserts local copies of remote records that have no local correlate
// yet. It never overwrites or deletes existing local entities. Returns the
// number of records inserted.
func (e *Engine[T]) Pull(ctx context.Context) (Result, error) {
	var result Result

	remoteEntities, err := e.remote.List(ctx)
	if err != nil {
		return result, err
	}
	localEntities, err := e.local.List(ctx)
	if err != nil {
		return result, err
	}

	known := make(map[string]bool, len(localEntities))
	for _, entity := range localEntities {
		if remoteID := entity.GetRemoteID(); remoteID != "" {
			known[remoteID] = true
		}
	}

	for _, entity := range remoteEntities {
		remoteID := entity.GetRemoteID()
		if remoteID == "" || known[remoteID] {
			continue
		}
		if _, err := e.local.Insert(ctx, entity); err != nil {
			e.log.Warn("pull insert failed, skipping entity",
				zap.String("kind", e.kind), zap.String("remote_id", remoteID), zap.Error(err))
			result.Skipped++
			continue
		}
		result.Pulled++
	}
	return result, nil
}

// PushAll uploads every local-only entity (acquiring its remote id) and
// overwrites every remote record whose local correlate has diverged. Local
// wins unconditionally; remote-only records are left untouched.
func (e *Engine[T]) PushAll(ctx context.Context) (Result, error) {
	var result Result

	localEntities, err := e.local.List(ctx)
	if err != nil {
		return result, err
	}
	remoteEntities, err := e.remote.List(ctx)
	if err != nil {
		return result, err
	}

	remoteByID := make(map[string]T, len(remoteEntities))
	for _, entity := range remoteEntities {
		if remoteID := entity.GetRemoteID(); remoteID != "" {
			remoteByID[remoteID] = entity
		}
	}

	for _, entity := range localEntities {
		remoteID := entity.GetRemoteID()
		if remoteID == "" {
			assignedID, err := e.remote.Create(ctx, entity)
			if err != nil {
				e.log.Warn("push create failed, skipping entity",
					zap.String("kind", e.kind), zap.Error(err))
				result.Skipped++
				continue
			}
			entity.SetRemoteID(assignedID)
			if err := e.local.SetRemoteID(ctx, entity, assignedID); err != nil {
				// The remote record exists but the correlation is lost
				// locally; the next push will create a duplicate, so this is
				// worth an error-level entry.
				e.log.Error("remote id write-back failed",
					zap.String("kind", e.kind), zap.String("remote_id", assignedID), zap.Error(err))
				result.Skipped++
				continue
			}
			result.Created++
			continue
		}

		counterpart, exists := remoteByID[remoteID]
		if !exists || !e.diverged(entity, counterpart) {
			continue
		}
		if err := e.remote.Update(ctx, entity); err != nil {
			e.log.Warn("push update failed, skipping entity",
				zap.String("kind", e.kind), zap.String("remote_id", remoteID), zap.Error(err))
			result.Skipped++
			continue
		}
		result.Updated++
	}
	return result, nil
}

// diverged reports whether the local entity should overwrite its remote
// counterpart. Divergence is a differing updated-at stamp; local stores bump
// it on every edit.
func (e *Engine[T]) diverged(local, remote T) bool {
	return !local.GetUpdatedAt().Equal(remote.GetUpdatedAt())
}

// Delete removes the entity locally and, when it has a remote correlate,
// deletes the remote record too. The local delete is authoritative: a remote
// failure is logged, not retried, and does not roll anything back.
func (e *Engine[T]) Delete(ctx context.Context, entity T) error {
	if err := e.local.Delete(ctx, entity); err != nil {
		return err
	}
	if remoteID := entity.GetRemoteID(); remoteID != "" {
		if err := e.remote.Delete(ctx, remoteID); err != nil {
			e.log.Warn("remote delete failed, local delete stands",
				zap.String("kind", e.kind), zap.String("remote_id", remoteID), zap.Error(err))
		}
	}
	return nil
}

// Sync is pull followed by push-all, the on-demand full reconciliation.
func (e *Engine[T]) Sync(ctx context.Context) (Result, error) {
	pulled, err := e.Pull(ctx)
	if err != nil {
		return pulled, err
	}
	pushed, err := e.PushAll(ctx)
	pushed.Pulled = pulled.Pulled
	pushed.Skipped += pulled.Skipped
	return pushed, err
}
