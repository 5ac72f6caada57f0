package syncengine

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// mirrorTimeout bounds one background mirror round-trip.
const mirrorTimeout = 30 * time.Second

// MirrorUpsert mirrors a local write to the remote store without blocking the
// caller. Failure is logged only; the next full sync repairs the drift.
func (e *Engine[T]) MirrorUpsert(entity T) {
	e.mirrors.Add(1)
	go func() {
		defer e.mirrors.Done()
		defer func() {
			if r := recover(); r != nil {
				e.log.Error("mirror upsert panicked", zap.String("kind", e.kind), zap.Any("panic", r))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
		defer cancel()

		if remoteID := entity.GetRemoteID(); remoteID == "" {
			assignedID, err := e.remote.Create(ctx, entity)
			if err != nil {
				e.log.Warn("mirror create failed", zap.String("kind", e.kind), zap.Error(err))
				return
			}
			entity.SetRemoteID(assignedID)
			if err := e.local.SetRemoteID(ctx, entity, assignedID); err != nil {
				e.log.Error("mirror remote id write-back failed",
					zap.String("kind", e.kind), zap.String("remote_id", assignedID), zap.Error(err))
			}
		} else {
			if err := e.remote.Update(ctx, entity); err != nil {
				e.log.Warn("mirror update failed",
					zap.String("kind", e.kind), zap.String("remote_id", remoteID), zap.Error(err))
			}
		}
	}()
}

// WaitMirrors blocks until in-flight mirror writes finish or ctx expires.
// Short-lived callers drain before exiting so mirrors are not lost.
func (e *Engine[T]) WaitMirrors(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.mirrors.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
