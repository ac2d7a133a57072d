package history_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvaldesr/tabletalk/internal/adapters/storage/memory"
	"github.com/mvaldesr/tabletalk/internal/app/history"
	"github.com/mvaldesr/tabletalk/internal/domain"
)

const sid = domain.SessionID("s1")

func newLog() *history.Log {
	return history.NewLog(memory.NewStepStore())
}

func TestAppendAssignsAscendingIDs(t *testing.T) {
	ctx := context.Background()
	log := newLog()

	id1, err := log.Append(ctx, sid, "p1", "output = input", "", "")
	require.NoError(t, err)
	id2, err := log.Append(ctx, sid, "p2", "output = input", "", "")
	require.NoError(t, err)
	assert.Greater(t, id2, id1)

	steps, err := log.Active(ctx, sid)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, id1, steps[0].ID)
	assert.Equal(t, id2, steps[1].ID)
}

func TestAppendPurgesUndoneSteps(t *testing.T) {
	ctx := context.Background()
	log := newLog()

	_, err := log.Append(ctx, sid, "p1", "s1", "", "")
	require.NoError(t, err)
	id2, err := log.Append(ctx, sid, "p2", "s2", "", "")
	require.NoError(t, err)

	require.NoError(t, log.DeactivateLast(ctx, sid))

	id3, err := log.Append(ctx, sid, "p3", "s3", "", "")
	require.NoError(t, err)

	steps, err := log.Active(ctx, sid)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	for _, st := range steps {
		assert.NotEqual(t, id2, st.ID, "purged id must never resurface")
	}
	assert.Equal(t, id3, steps[1].ID)
}

func TestDeactivateLastIsNoOpWhenEmpty(t *testing.T) {
	ctx := context.Background()
	log := newLog()

	require.NoError(t, log.DeactivateLast(ctx, sid))

	steps, err := log.Active(ctx, sid)
	require.NoError(t, err)
	assert.Empty(t, steps)
}

func TestDeactivateAll(t *testing.T) {
	ctx := context.Background()
	log := newLog()

	_, err := log.Append(ctx, sid, "p1", "s1", "", "")
	require.NoError(t, err)
	_, err = log.Append(ctx, sid, "p2", "s2", "", "")
	require.NoError(t, err)

	require.NoError(t, log.DeactivateAll(ctx, sid))

	steps, err := log.Active(ctx, sid)
	require.NoError(t, err)
	assert.Empty(t, steps)

	// Idempotent.
	require.NoError(t, log.DeactivateAll(ctx, sid))
	steps, err = log.Active(ctx, sid)
	require.NoError(t, err)
	assert.Empty(t, steps)
}

func TestChartScriptFollowsTheLog(t *testing.T) {
	ctx := context.Background()
	log := newLog()

	script, err := log.ChartScript(ctx, sid)
	require.NoError(t, err)
	assert.Empty(t, script, "nothing attached yet")

	_, err = log.Append(ctx, sid, "filter", "output = input", "", "")
	require.NoError(t, err)
	_, err = log.Append(ctx, sid, "chart it", "", "", `output = bar(input, "A", "B")`)
	require.NoError(t, err)
	_, err = log.Append(ctx, sid, "another filter", "output = input", "", "")
	require.NoError(t, err)

	script, err = log.ChartScript(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, `output = bar(input, "A", "B")`, script,
		"a later mutation step does not clear the attached chart")

	// Undo the mutation, then the chart step: chart detaches.
	require.NoError(t, log.DeactivateLast(ctx, sid))
	require.NoError(t, log.DeactivateLast(ctx, sid))

	script, err = log.ChartScript(ctx, sid)
	require.NoError(t, err)
	assert.Empty(t, script)
}

func TestSessionsAreIndependent(t *testing.T) {
	ctx := context.Background()
	log := newLog()

	other := domain.SessionID("s2")
	_, err := log.Append(ctx, sid, "p1", "s1", "", "")
	require.NoError(t, err)
	_, err = log.Append(ctx, other, "p2", "s2", "", "")
	require.NoError(t, err)

	require.NoError(t, log.DeactivateAll(ctx, sid))

	steps, err := log.Active(ctx, other)
	require.NoError(t, err)
	assert.Len(t, steps, 1)
}
