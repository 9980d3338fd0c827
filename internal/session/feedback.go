package session

import (
	"context"
	"log/slog"

	"github.com/fixlore/fixlore/internal/store"
)

// TelemetryStore is the slice of store behavior feedback needs.
// Nil-able: without a store all tracking degrades to local bookkeeping.
type TelemetryStore interface {
	IncrementTelemetry(ctx context.Context, ids []string, field store.TelemetryField) error
}

// Tracker owns the telemetry lifecycle for one session: which entries were
// surfaced, which fixes persisted or resolved across turns, and the
// optional end-of-session success credit. Not safe for concurrent use;
// one Tracker per session.
type Tracker struct {
	store           TelemetryStore
	creditOnSuccess bool
	usedIDs         map[string]struct{}
	logger          *slog.Logger
}

// NewTracker creates a Tracker. ts may be nil (heuristic-only mode);
// creditOnSuccess enables the bulk success credit at Finalize, disabled by
// default upstream to avoid double counting against per-turn feedback.
func NewTracker(ts TelemetryStore, creditOnSuccess bool, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		store:           ts,
		creditOnSuccess: creditOnSuccess,
		usedIDs:         make(map[string]struct{}),
		logger:          logger,
	}
}

// RecordSelection marks ids as offered to the agent: hits+1 synchronously
// and membership in the session-used set. Telemetry failures are logged and
// swallowed, accounting never fails a turn.
func (t *Tracker) RecordSelection(ctx context.Context, ids []string) {
	if len(ids) == 0 {
		return
	}
	for _, id := range ids {
		t.usedIDs[id] = struct{}{}
	}
	if t.store == nil {
		return
	}
	if err := t.store.IncrementTelemetry(ctx, ids, store.FieldHits); err != nil {
		t.logger.Warn("hit telemetry update failed", "ids", len(ids), "error", err)
	}
}

// Update attributes outcomes by comparing the previous turn's selected ids
// with the current turn's:
//
//   - ids in both turns: the issue persisted, failures+1
//   - ids only in the previous turn: the issue resolved, successes+1
//
// An empty previous set changes nothing.
func (t *Tracker) Update(ctx context.Context, previousIDs, currentIDs []string) {
	if t.store == nil || len(previousIDs) == 0 {
		return
	}

	current := make(map[string]struct{}, len(currentIDs))
	for _, id := range currentIDs {
		current[id] = struct{}{}
	}

	var persisted, resolved []string
	seen := make(map[string]struct{}, len(previousIDs))
	for _, id := range previousIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := current[id]; ok {
			persisted = append(persisted, id)
		} else {
			resolved = append(resolved, id)
		}
	}

	if len(persisted) > 0 {
		if err := t.store.IncrementTelemetry(ctx, persisted, store.FieldFailures); err != nil {
			t.logger.Warn("failure telemetry update failed", "ids", len(persisted), "error", err)
		} else {
			t.logger.Info("feedback: issue persisted", "entries", len(persisted))
		}
	}
	if len(resolved) > 0 {
		if err := t.store.IncrementTelemetry(ctx, resolved, store.FieldSuccesses); err != nil {
			t.logger.Warn("success telemetry update failed", "ids", len(resolved), "error", err)
		} else {
			t.logger.Info("feedback: issue resolved", "entries", len(resolved))
		}
	}
}

// UsedIDs returns the ids surfaced at any point during the session.
func (t *Tracker) UsedIDs() []string {
	ids := make([]string, 0, len(t.usedIDs))
	for id := range t.usedIDs {
		ids = append(ids, id)
	}
	return ids
}

// Finalize settles the session. When the bulk-credit policy is enabled and
// the overall task succeeded, every session-used entry gets one extra
// success increment. The used set is cleared either way.
func (t *Tracker) Finalize(ctx context.Context, taskSucceeded bool) {
	defer func() {
		t.usedIDs = make(map[string]struct{})
	}()

	if t.store == nil || len(t.usedIDs) == 0 {
		return
	}
	if !t.creditOnSuccess || !taskSucceeded {
		return
	}

	ids := t.UsedIDs()
	if err := t.store.IncrementTelemetry(ctx, ids, store.FieldSuccesses); err != nil {
		t.logger.Warn("final success credit failed", "ids", len(ids), "error", err)
		return
	}
	t.logger.Info("session finalized with success credit", "entries", len(ids))
}
