// Package registry is the concurrency-safe directory of all live
// sessions. Registry access is independent of any single session's engine
// lock: listing and deletion are safe while other engines are advancing.
package registry

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/yesahmedyes/lecture-assistant/internal/pkg/logger"
	"github.com/yesahmedyes/lecture-assistant/pkg/broadcast"
	"github.com/yesahmedyes/lecture-assistant/pkg/pipeline"
)

// Entry bundles everything owned by one session.
type Entry struct {
	Session     *pipeline.Session
	Engine      *pipeline.Engine
	Broadcaster *broadcast.Broadcaster
	cancel      context.CancelFunc
}

type Registry struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*Entry
	order   []uuid.UUID // insertion order
	store   Store
	logger  logger.ILogger
}

func New(store Store, log logger.ILogger) *Registry {
	return &Registry{
		entries: make(map[uuid.UUID]*Entry),
		store:   store,
		logger:  log,
	}
}

// Add registers a session and persists its initial record. cancel is the
// engine's cooperative cancellation hook, invoked on Delete.
func (r *Registry) Add(ctx context.Context, entry *Entry, cancel context.CancelFunc) error {
	entry.cancel = cancel
	id := entry.Session.ID

	r.mu.Lock()
	r.entries[id] = entry
	r.order = append(r.order, id)
	r.mu.Unlock()

	if err := r.store.SaveSession(ctx, SessionRecord{
		ID:        id,
		Topic:     entry.Session.Params.Topic,
		Status:    pipeline.StatusCreated,
		CreatedAt: entry.Session.CreatedAt,
	}); err != nil {
		r.logger.Warn("Registry", "Failed to persist session", map[string]interface{}{
			"session_id": id,
			"error":      err.Error(),
		})
	}
	return nil
}

// Get looks a session up by id.
func (r *Registry) Get(id uuid.UUID) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[id]
	if !ok {
		return nil, pipeline.ErrSessionNotFound
	}
	return entry, nil
}

// List returns all live entries, newest first.
func (r *Registry) List() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Entry, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		if entry, ok := r.entries[r.order[i]]; ok {
			out = append(out, entry)
		}
	}
	return out
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Delete removes a session: the engine is cancelled cooperatively (an
// in-flight stage may finish but no further stages run), all subscribers
// are disconnected, and the durable records are dropped.
func (r *Registry) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	entry, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return pipeline.ErrSessionNotFound
	}
	delete(r.entries, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	if entry.cancel != nil {
		entry.cancel()
	}
	if entry.Broadcaster != nil {
		entry.Broadcaster.Close()
	}
	if err := r.store.DeleteSession(ctx, id); err != nil {
		r.logger.Warn("Registry", "Failed to delete persisted session", map[string]interface{}{
			"session_id": id,
			"error":      err.Error(),
		})
	}
	r.logger.Info("Registry", "Session deleted", map[string]interface{}{"session_id": id})
	return nil
}

// PersistStatus writes the session's current lifecycle to the store.
func (r *Registry) PersistStatus(ctx context.Context, id uuid.UUID) {
	entry, err := r.Get(id)
	if err != nil {
		return
	}
	snap := entry.Engine.Snapshot()
	if err := r.store.SaveSession(ctx, SessionRecord{
		ID:          id,
		Topic:       entry.Session.Params.Topic,
		Status:      snap.Status,
		CreatedAt:   entry.Session.CreatedAt,
		CompletedAt: entry.Session.CompletedAt,
	}); err != nil {
		r.logger.Warn("Registry", "Failed to persist session status", map[string]interface{}{
			"session_id": id,
			"error":      err.Error(),
		})
	}
}
