// Package history owns the ordered, soft-deletable record of steps applied
// to a session: the command log.
//
// The log is linear with destructive rebranching. Undo deactivates the most
// recent active step; the next append physically purges every inactive step
// before inserting, so an abandoned branch is unreachable the moment a new
// one is taken. There is no redo.
package history

import (
	"context"
	"time"

	"github.com/mvaldesr/tabletalk/internal/domain"
	"github.com/mvaldesr/tabletalk/internal/observability"
)

type Log struct {
	steps domain.StepStore
	now   func() time.Time
}

func NewLog(steps domain.StepStore) *Log {
	return &Log{steps: steps, now: time.Now}
}

// Append purges the session's inactive steps and records a new active one,
// atomically via the store. Either script may be empty: a chart-only step
// carries no mutation script and is skipped by replay.
func (l *Log) Append(ctx context.Context, session domain.SessionID, prompt, script, explanation, chartScript string) (domain.StepID, error) {
	step := &domain.Step{
		SessionID:   session,
		CreatedAt:   l.now(),
		Prompt:      prompt,
		Script:      script,
		ChartScript: chartScript,
		Explanation: explanation,
		Active:      true,
	}
	id, err := l.steps.AppendStep(ctx, step)
	if err != nil {
		return 0, domain.Wrap(domain.KindPersistence, err, "appending step")
	}

	observability.LoggerFromContext(ctx).Info("step appended",
		"session_id", session,
		"step_id", id,
		"has_chart", chartScript != "",
	)
	return id, nil
}

// DeactivateLast marks the highest-id active step inactive. A session with
// no active steps is a no-op, not an error.
func (l *Log) DeactivateLast(ctx context.Context, session domain.SessionID) error {
	if err := l.steps.DeactivateLastStep(ctx, session); err != nil {
		return domain.Wrap(domain.KindPersistence, err, "deactivating last step")
	}
	return nil
}

// DeactivateAll marks every step inactive. Rows stay around until the next
// append purges them.
func (l *Log) DeactivateAll(ctx context.Context, session domain.SessionID) error {
	if err := l.steps.DeactivateAllSteps(ctx, session); err != nil {
		return domain.Wrap(domain.KindPersistence, err, "deactivating steps")
	}
	return nil
}

// Active returns the active steps ascending by id.
func (l *Log) Active(ctx context.Context, session domain.SessionID) ([]*domain.Step, error) {
	steps, err := l.steps.ListActiveSteps(ctx, session)
	if err != nil {
		return nil, domain.Wrap(domain.KindPersistence, err, "listing steps")
	}
	return steps, nil
}

// ChartScript returns the currently attached chart script: the one on the
// highest-id active step carrying chart metadata, or "" when no chart is
// attached. Deriving it from the log means undo and reset revert charts the
// same way they revert data.
func (l *Log) ChartScript(ctx context.Context, session domain.SessionID) (string, error) {
	steps, err := l.Active(ctx, session)
	if err != nil {
		return "", err
	}
	for i := len(steps) - 1; i >= 0; i-- {
		if steps[i].ChartScript != "" {
			return steps[i].ChartScript, nil
		}
	}
	return "", nil
}
