// Package replay reconstructs a session's current table by folding its
// active steps, in order, over the immutable snapshot.
package replay

import (
	"context"
	"sync"

	"github.com/mvaldesr/tabletalk/internal/app/history"
	"github.com/mvaldesr/tabletalk/internal/domain"
	"github.com/mvaldesr/tabletalk/internal/observability"
	"github.com/mvaldesr/tabletalk/internal/sandbox"
)

type Engine struct {
	snapshots domain.SnapshotStore
	decoder   domain.DatasetDecoder
	log       *history.Log
	sandbox   *sandbox.Engine

	// Result cache keyed by (session id, highest active step id). A pure
	// optimization: replay is deterministic, so a hit is always exact.
	// Invalidate must be called on every log change.
	mu    sync.Mutex
	cache map[domain.SessionID]cacheEntry
}

type cacheEntry struct {
	topStep domain.StepID
	table   *domain.Table
}

func NewEngine(snapshots domain.SnapshotStore, decoder domain.DatasetDecoder, log *history.Log, sb *sandbox.Engine) *Engine {
	return &Engine{
		snapshots: snapshots,
		decoder:   decoder,
		log:       log,
		sandbox:   sb,
		cache:     make(map[domain.SessionID]cacheEntry),
	}
}

// Replay returns the session's current table: a fresh decode of the
// snapshot with every active mutation step applied in ascending id order.
// The returned table is the caller's to keep; it aliases nothing.
func (e *Engine) Replay(ctx context.Context, session *domain.Session) (*domain.Table, error) {
	steps, err := e.log.Active(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	var topStep domain.StepID
	if len(steps) > 0 {
		topStep = steps[len(steps)-1].ID
	}

	e.mu.Lock()
	if entry, ok := e.cache[session.ID]; ok && entry.topStep == topStep {
		cached := entry.table.Clone()
		e.mu.Unlock()
		return cached, nil
	}
	e.mu.Unlock()

	raw, err := e.snapshots.GetSnapshot(ctx, session.SnapshotRef)
	if err != nil {
		return nil, domain.Wrap(domain.KindPersistence, err, "loading snapshot")
	}
	current, err := e.decoder.Decode(raw, session.Format)
	if err != nil {
		return nil, domain.Wrap(domain.KindDecode, err, "decoding snapshot")
	}

	for _, step := range steps {
		if step.Script == "" {
			// Chart-only steps record conversation history; they carry no
			// transformation.
			continue
		}
		next, err := e.sandbox.RunMutation(ctx, step.Script, current)
		if err != nil {
			observability.LoggerFromContext(ctx).Error("replay step failed",
				"session_id", session.ID,
				"step_id", step.ID,
				"error", err,
			)
			return nil, err
		}
		current = next
	}

	e.mu.Lock()
	e.cache[session.ID] = cacheEntry{topStep: topStep, table: current.Clone()}
	e.mu.Unlock()

	return current, nil
}

// Invalidate drops the cached result for a session. Callers invoke it after
// every command-log change.
func (e *Engine) Invalidate(session domain.SessionID) {
	e.mu.Lock()
	delete(e.cache, session)
	e.mu.Unlock()
}
