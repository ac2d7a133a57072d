package workbook_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvaldesr/tabletalk/internal/adapters/dataset"
	"github.com/mvaldesr/tabletalk/internal/adapters/storage/memory"
	"github.com/mvaldesr/tabletalk/internal/app/history"
	"github.com/mvaldesr/tabletalk/internal/app/replay"
	"github.com/mvaldesr/tabletalk/internal/app/workbook"
	"github.com/mvaldesr/tabletalk/internal/domain"
	"github.com/mvaldesr/tabletalk/internal/sandbox"
)

const csvData = "Category,Value\nA,10\nB,20\nA,30\nB,40\n"

// stubGenerator returns queued generations in order; the real oracle is an
// external boundary and never runs in tests.
type stubGenerator struct {
	queue []*domain.Generation
	err   error
}

func (g *stubGenerator) GenerateScript(_ context.Context, _ string, _ []string, _ map[string]any) (*domain.Generation, error) {
	if g.err != nil {
		return nil, g.err
	}
	if len(g.queue) == 0 {
		return nil, errors.New("stub exhausted")
	}
	gen := g.queue[0]
	g.queue = g.queue[1:]
	return gen, nil
}

func (g *stubGenerator) push(gen *domain.Generation) { g.queue = append(g.queue, gen) }

type fixture struct {
	svc *workbook.Service
	gen *stubGenerator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	gen := &stubGenerator{}
	sb := sandbox.New(time.Second)
	log := history.NewLog(memory.NewStepStore())
	snapshots := memory.NewSnapshotStore()
	decoder := dataset.NewDecoder()
	replayer := replay.NewEngine(snapshots, decoder, log, sb)

	svc := workbook.NewService(
		memory.NewSessionStore(), snapshots, decoder, gen,
		log, replayer, sb, workbook.Options{},
	)
	return &fixture{svc: svc, gen: gen}
}

func (f *fixture) upload(t *testing.T, owner domain.OwnerID) *domain.Session {
	t.Helper()
	out, err := f.svc.Upload(context.Background(), workbook.UploadInput{
		Owner:    owner,
		Filename: "data.csv",
		Format:   "csv",
		Data:     []byte(csvData),
	})
	require.NoError(t, err)
	return out.Session
}

func TestUploadReturnsPreview(t *testing.T) {
	f := newFixture(t)

	out, err := f.svc.Upload(context.Background(), workbook.UploadInput{
		Owner:    "u1",
		Filename: "data.csv",
		Format:   "csv",
		Data:     []byte(csvData),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Category", "Value"}, out.Preview.Columns)
	assert.Len(t, out.Preview.Rows, 4)
	assert.Equal(t, "data.csv", out.Session.Filename)
	assert.True(t, out.Session.Active)
}

func TestUploadQuota(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s1 := f.upload(t, "u1")
	f.upload(t, "u1")

	_, err := f.svc.Upload(ctx, workbook.UploadInput{
		Owner: "u1", Filename: "third.csv", Format: "csv", Data: []byte(csvData),
	})
	require.Error(t, err)
	assert.Equal(t, domain.KindQuotaExceeded, domain.KindOf(err))

	// Another owner is unaffected.
	f.upload(t, "u2")

	// Deleting one frees the slot.
	require.NoError(t, f.svc.DeleteSession(ctx, s1.ID, "u1"))
	f.upload(t, "u1")
}

func TestUploadRejectsBadFile(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Upload(context.Background(), workbook.UploadInput{
		Owner: "u1", Filename: "x.csv", Format: "csv", Data: []byte(""),
	})
	require.Error(t, err)
	assert.Equal(t, domain.KindDecode, domain.KindOf(err))
}

// Scenario A from the product brief: filter Value > 15, one step recorded.
func TestApplyPromptMutation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.upload(t, "u1")

	f.gen.push(&domain.Generation{
		Intent:      domain.IntentDataMutation,
		Script:      "output = input[input.Value > 15]",
		Explanation: "kept rows with Value above 15",
	})

	out, err := f.svc.ApplyPrompt(ctx, workbook.TransformInput{
		SessionID: session.ID, Owner: "u1", Prompt: "keep Value > 15",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.IntentDataMutation, out.Intent)
	require.Len(t, out.Grid.Rows, 3)
	assert.Equal(t, "B", out.Grid.Rows[0]["Category"])
	assert.Equal(t, float64(20), out.Grid.Rows[0]["Value"])
	assert.Equal(t, float64(30), out.Grid.Rows[1]["Value"])
	assert.Equal(t, float64(40), out.Grid.Rows[2]["Value"])
	assert.False(t, out.HasChart)

	state, err := f.svc.SessionState(ctx, session.ID, "u1")
	require.NoError(t, err)
	require.Len(t, state.Messages, 1)
	assert.Equal(t, "keep Value > 15", state.Messages[0].Prompt)
}

// Scenario B: attach a chart, then mutate; the chart re-renders reactively
// against the new data.
func TestApplyPromptChartReactivity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.upload(t, "u1")

	f.gen.push(&domain.Generation{
		Intent: domain.IntentDataMutation,
		Script: "output = input[input.Value > 15]",
	})
	_, err := f.svc.ApplyPrompt(ctx, workbook.TransformInput{
		SessionID: session.ID, Owner: "u1", Prompt: "keep Value > 15",
	})
	require.NoError(t, err)

	f.gen.push(&domain.Generation{
		Intent: domain.IntentVisualUpdate,
		Script: `output = bar(input, "Category", "Value")`,
	})
	out, err := f.svc.ApplyPrompt(ctx, workbook.TransformInput{
		SessionID: session.ID, Owner: "u1", Prompt: "chart value by category",
	})
	require.NoError(t, err)
	require.True(t, out.HasChart)
	assert.Equal(t, "bar", out.Chart.Kind)
	assert.Equal(t, []string{"B", "A"}, out.Chart.Labels)
	assert.Equal(t, []float64{60, 30}, out.Chart.Series[0].Values)

	// The chart step transforms nothing.
	state, err := f.svc.SessionState(ctx, session.ID, "u1")
	require.NoError(t, err)
	assert.Len(t, state.Grid.Rows, 3)
	assert.Len(t, state.Messages, 2)

	// A further mutation re-renders the attached chart automatically.
	f.gen.push(&domain.Generation{
		Intent: domain.IntentDataMutation,
		Script: `output = input[input.Category == "B"]`,
	})
	out, err = f.svc.ApplyPrompt(ctx, workbook.TransformInput{
		SessionID: session.ID, Owner: "u1", Prompt: "only category B",
	})
	require.NoError(t, err)
	require.True(t, out.HasChart)
	assert.Equal(t, []string{"B"}, out.Chart.Labels)
	assert.Equal(t, []float64{60}, out.Chart.Series[0].Values)
}

func TestFailedMutationNeverAppends(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.upload(t, "u1")

	f.gen.push(&domain.Generation{
		Intent: domain.IntentDataMutation,
		Script: "output = input[input.Nope > 15]",
	})
	_, err := f.svc.ApplyPrompt(ctx, workbook.TransformInput{
		SessionID: session.ID, Owner: "u1", Prompt: "bad column",
	})
	require.Error(t, err)
	assert.Equal(t, domain.KindScriptRuntime, domain.KindOf(err))

	state, err := f.svc.SessionState(ctx, session.ID, "u1")
	require.NoError(t, err)
	assert.Empty(t, state.Messages, "failed mutation left no step")
	assert.Len(t, state.Grid.Rows, 4)
}

func TestGenerationFailureSurfaces(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.upload(t, "u1")

	f.gen.err = errors.New("model unavailable")
	_, err := f.svc.ApplyPrompt(ctx, workbook.TransformInput{
		SessionID: session.ID, Owner: "u1", Prompt: "anything",
	})
	require.Error(t, err)
	assert.Equal(t, domain.KindGeneration, domain.KindOf(err))
}

func TestUndoRestoresSnapshotView(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.upload(t, "u1")

	f.gen.push(&domain.Generation{
		Intent: domain.IntentDataMutation,
		Script: "output = input[input.Value > 15]",
	})
	_, err := f.svc.ApplyPrompt(ctx, workbook.TransformInput{
		SessionID: session.ID, Owner: "u1", Prompt: "keep Value > 15",
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.Undo(ctx, session.ID, "u1"))

	state, err := f.svc.SessionState(ctx, session.ID, "u1")
	require.NoError(t, err)
	assert.Len(t, state.Grid.Rows, 4, "undo reverted to the original snapshot")
	assert.Empty(t, state.Messages)

	// Undo with nothing left is a no-op.
	require.NoError(t, f.svc.Undo(ctx, session.ID, "u1"))
}

func TestBranchAfterUndoPurgesOldSteps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.upload(t, "u1")

	f.gen.push(&domain.Generation{Intent: domain.IntentDataMutation, Script: "output = input[input.Value > 15]"})
	_, err := f.svc.ApplyPrompt(ctx, workbook.TransformInput{SessionID: session.ID, Owner: "u1", Prompt: "p1"})
	require.NoError(t, err)

	require.NoError(t, f.svc.Undo(ctx, session.ID, "u1"))

	f.gen.push(&domain.Generation{Intent: domain.IntentDataMutation, Script: "output = input[input.Value > 25]"})
	_, err = f.svc.ApplyPrompt(ctx, workbook.TransformInput{SessionID: session.ID, Owner: "u1", Prompt: "p2"})
	require.NoError(t, err)

	state, err := f.svc.SessionState(ctx, session.ID, "u1")
	require.NoError(t, err)
	require.Len(t, state.Messages, 1)
	assert.Equal(t, "p2", state.Messages[0].Prompt)
	assert.Len(t, state.Grid.Rows, 2)
}

func TestResetIsIdempotentAndClearsChart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.upload(t, "u1")

	f.gen.push(&domain.Generation{Intent: domain.IntentDataMutation, Script: "output = input[input.Value > 15]"})
	_, err := f.svc.ApplyPrompt(ctx, workbook.TransformInput{SessionID: session.ID, Owner: "u1", Prompt: "filter"})
	require.NoError(t, err)

	f.gen.push(&domain.Generation{Intent: domain.IntentVisualUpdate, Script: `output = bar(input, "Category", "Value")`})
	_, err = f.svc.ApplyPrompt(ctx, workbook.TransformInput{SessionID: session.ID, Owner: "u1", Prompt: "chart"})
	require.NoError(t, err)

	for range 2 {
		require.NoError(t, f.svc.Reset(ctx, session.ID, "u1"))

		state, err := f.svc.SessionState(ctx, session.ID, "u1")
		require.NoError(t, err)
		assert.Len(t, state.Grid.Rows, 4)
		assert.Empty(t, state.Messages)
		assert.False(t, state.HasChart, "reset detaches the chart")
	}
}

func TestOwnershipChecks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.upload(t, "u1")

	_, err := f.svc.ApplyPrompt(ctx, workbook.TransformInput{
		SessionID: session.ID, Owner: "intruder", Prompt: "p",
	})
	assert.Equal(t, domain.KindAccessDenied, domain.KindOf(err))

	assert.Equal(t, domain.KindAccessDenied, domain.KindOf(f.svc.Undo(ctx, session.ID, "intruder")))
	assert.Equal(t, domain.KindAccessDenied, domain.KindOf(f.svc.Reset(ctx, session.ID, "intruder")))
	assert.Equal(t, domain.KindAccessDenied, domain.KindOf(f.svc.DeleteSession(ctx, session.ID, "intruder")))

	_, err = f.svc.SessionState(ctx, "missing", "u1")
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestDeletedSessionBehavesAsMissing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.upload(t, "u1")

	require.NoError(t, f.svc.DeleteSession(ctx, session.ID, "u1"))

	_, err := f.svc.SessionState(ctx, session.ID, "u1")
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))

	sessions, err := f.svc.ListSessions(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestListSessionsNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.upload(t, "u1")
	time.Sleep(2 * time.Millisecond)
	second := f.upload(t, "u1")

	sessions, err := f.svc.ListSessions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, second.ID, sessions[0].ID)
	assert.Equal(t, first.ID, sessions[1].ID)
}

func TestChartRenderFailureDegradesGracefully(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.upload(t, "u1")

	// Attach a chart over the Value column, then drop that column: the
	// reactive re-render fails, but the mutation itself succeeds.
	f.gen.push(&domain.Generation{Intent: domain.IntentVisualUpdate, Script: `output = bar(input, "Category", "Value")`})
	_, err := f.svc.ApplyPrompt(ctx, workbook.TransformInput{SessionID: session.ID, Owner: "u1", Prompt: "chart"})
	require.NoError(t, err)

	f.gen.push(&domain.Generation{Intent: domain.IntentDataMutation, Script: `output = drop(input, "Value")`})
	out, err := f.svc.ApplyPrompt(ctx, workbook.TransformInput{SessionID: session.ID, Owner: "u1", Prompt: "drop value"})
	require.NoError(t, err)

	assert.False(t, out.HasChart, "broken chart surfaces as no chart, not as failure")
	assert.Equal(t, []string{"Category"}, out.Grid.Columns)

	// The stale chart also fails (visibly, not silently) in the state view.
	state, err := f.svc.SessionState(ctx, session.ID, "u1")
	require.NoError(t, err)
	assert.False(t, state.HasChart)
}
