// Package workbook orchestrates sessions: upload, prompt application,
// undo, reset, listing and deletion. It owns the control flow between the
// replay engine, the code-generation oracle, the script sandbox and the
// command log.
package workbook

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mvaldesr/tabletalk/internal/app/history"
	"github.com/mvaldesr/tabletalk/internal/app/replay"
	"github.com/mvaldesr/tabletalk/internal/domain"
	"github.com/mvaldesr/tabletalk/internal/observability"
	"github.com/mvaldesr/tabletalk/internal/sandbox"
)

type Service struct {
	sessions  domain.SessionStore
	snapshots domain.SnapshotStore
	decoder   domain.DatasetDecoder
	generator domain.CodeGenerator
	log       *history.Log
	replayer  *replay.Engine
	sandbox   *sandbox.Engine

	sessionLocks *keyedLocks
	ownerLocks   *keyedLocks

	now   func() time.Time
	newID func() string

	previewRows int
	maxGridRows int
}

// Options tune response payload sizes.
type Options struct {
	// PreviewRows caps the grid returned by Upload.
	PreviewRows int
	// MaxGridRows caps every other grid payload. Replay always works on the
	// full data; only the wire payload truncates.
	MaxGridRows int
}

func NewService(
	sessions domain.SessionStore,
	snapshots domain.SnapshotStore,
	decoder domain.DatasetDecoder,
	generator domain.CodeGenerator,
	log *history.Log,
	replayer *replay.Engine,
	sb *sandbox.Engine,
	opts Options,
) *Service {
	if opts.PreviewRows <= 0 {
		opts.PreviewRows = 10
	}
	if opts.MaxGridRows <= 0 {
		opts.MaxGridRows = 15
	}
	return &Service{
		sessions:     sessions,
		snapshots:    snapshots,
		decoder:      decoder,
		generator:    generator,
		log:          log,
		replayer:     replayer,
		sandbox:      sb,
		sessionLocks: newKeyedLocks(),
		ownerLocks:   newKeyedLocks(),
		now:          time.Now,
		newID:        uuid.NewString,
		previewRows:  opts.PreviewRows,
		maxGridRows:  opts.MaxGridRows,
	}
}

// Grid is the wire shape of tabular data: column order plus column→cell
// row mappings.
type Grid struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

func gridOf(t *domain.Table, maxRows int) Grid {
	capped := t.Head(maxRows)
	return Grid{Columns: capped.Columns, Rows: capped.RowMaps()}
}

// Message is one entry of a session's conversation transcript.
type Message struct {
	StepID      domain.StepID    `json:"step_id"`
	Prompt      string           `json:"prompt"`
	Explanation string           `json:"explanation,omitempty"`
	Script      string           `json:"script,omitempty"`
	ChartScript string           `json:"chart_script,omitempty"`
	CreatedAt   domain.Timestamp `json:"created_at"`
}

type UploadInput struct {
	Owner    domain.OwnerID
	Filename string
	Format   string
	Data     []byte
}

type UploadOutput struct {
	Session *domain.Session
	Preview Grid
}

// Upload creates a session from a raw file: quota check, decode, snapshot,
// record. The decoded preview is capped; the snapshot keeps every row.
func (s *Service) Upload(ctx context.Context, in UploadInput) (*UploadOutput, error) {
	log := observability.LoggerFromContext(ctx).With(
		"owner_id", in.Owner,
		"filename", in.Filename,
	)

	if in.Owner == "" {
		return nil, domain.E(domain.KindAccessDenied, "owner is required")
	}

	// Serialize per owner so two concurrent uploads cannot both squeeze
	// under the cap.
	unlock := s.ownerLocks.acquire(string(in.Owner))
	defer unlock()

	count, err := s.sessions.CountActiveByOwner(ctx, in.Owner)
	if err != nil {
		return nil, domain.Wrap(domain.KindPersistence, err, "counting sessions")
	}
	if count >= domain.MaxActiveSessions {
		return nil, domain.E(domain.KindQuotaExceeded,
			"limit of %d active sessions reached, delete one first", domain.MaxActiveSessions)
	}

	table, err := s.decoder.Decode(in.Data, in.Format)
	if err != nil {
		log.Error("upload decode failed", "error", err)
		if domain.KindOf(err) != "" {
			return nil, err
		}
		return nil, domain.Wrap(domain.KindDecode, err, "decoding upload")
	}

	session := &domain.Session{
		ID:          domain.SessionID(s.newID()),
		OwnerID:     in.Owner,
		CreatedAt:   s.now(),
		SnapshotRef: s.newID(),
		Filename:    in.Filename,
		Format:      in.Format,
		Active:      true,
	}

	if err := s.snapshots.PutSnapshot(ctx, session.SnapshotRef, in.Data); err != nil {
		log.Error("failed to store snapshot", "error", err)
		return nil, domain.Wrap(domain.KindPersistence, err, "storing snapshot")
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		log.Error("failed to create session", "error", err)
		return nil, domain.Wrap(domain.KindPersistence, err, "creating session")
	}

	log.Info("session created", "session_id", session.ID, "rows", table.NumRows())

	return &UploadOutput{
		Session: session,
		Preview: gridOf(table, s.previewRows),
	}, nil
}

type TransformInput struct {
	SessionID domain.SessionID
	Owner     domain.OwnerID
	Prompt    string
}

type TransformOutput struct {
	Intent      domain.Intent
	Grid        Grid
	Chart       *domain.ChartSpec
	HasChart    bool
	Script      string
	Explanation string
}

// ApplyPrompt runs one conversational turn: replay current state, ask the
// oracle, execute the generated script, and either record a mutation step
// or attach a chart. A failed script never touches the command log.
func (s *Service) ApplyPrompt(ctx context.Context, in TransformInput) (*TransformOutput, error) {
	ctx = observability.WithSessionID(ctx, string(in.SessionID))
	log := observability.LoggerFromContext(ctx)

	if strings.TrimSpace(in.Prompt) == "" {
		return nil, domain.E(domain.KindGeneration, "prompt is required")
	}

	unlock := s.sessionLocks.acquire(string(in.SessionID))
	defer unlock()

	session, err := s.ownedSession(ctx, in.SessionID, in.Owner)
	if err != nil {
		return nil, err
	}

	current, err := s.replayer.Replay(ctx, session)
	if err != nil {
		log.Error("replay failed", "error", err)
		return nil, err
	}

	gen, err := s.generator.GenerateScript(ctx, in.Prompt, current.Columns, current.SampleRow())
	if err != nil {
		log.Error("generation failed", "error", err)
		if domain.KindOf(err) != "" {
			return nil, err
		}
		return nil, domain.Wrap(domain.KindGeneration, err, "generating script")
	}
	if strings.TrimSpace(gen.Script) == "" {
		return nil, domain.E(domain.KindGeneration, "oracle returned no script")
	}
	if gen.Intent == "" {
		gen.Intent = domain.IntentDataMutation
	}

	switch gen.Intent {
	case domain.IntentVisualUpdate:
		return s.applyChart(ctx, session, current, in.Prompt, gen)
	default:
		return s.applyMutation(ctx, session, current, in.Prompt, gen)
	}
}

func (s *Service) applyMutation(ctx context.Context, session *domain.Session, current *domain.Table, prompt string, gen *domain.Generation) (*TransformOutput, error) {
	log := observability.LoggerFromContext(ctx)

	next, err := s.sandbox.RunMutation(ctx, gen.Script, current)
	if err != nil {
		log.Error("mutation script failed", "error", err)
		return nil, err
	}

	if _, err := s.log.Append(ctx, session.ID, prompt, gen.Script, gen.Explanation, ""); err != nil {
		return nil, err
	}
	s.replayer.Invalidate(session.ID)

	out := &TransformOutput{
		Intent:      domain.IntentDataMutation,
		Grid:        gridOf(next, s.maxGridRows),
		Script:      gen.Script,
		Explanation: gen.Explanation,
	}

	// Reactivity: if a chart is attached, re-render it against the new
	// data. Best effort only: a failed re-render degrades to "no chart"
	// instead of failing the mutation.
	chartScript, err := s.log.ChartScript(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	if chartScript != "" {
		spec, cerr := s.sandbox.RunChart(ctx, chartScript, next)
		if cerr != nil {
			log.Warn("reactive chart re-render failed", "error", cerr)
		} else {
			out.Chart = spec
			out.HasChart = true
		}
	}

	log.Info("mutation applied", "rows", next.NumRows(), "has_chart", out.HasChart)
	return out, nil
}

func (s *Service) applyChart(ctx context.Context, session *domain.Session, current *domain.Table, prompt string, gen *domain.Generation) (*TransformOutput, error) {
	log := observability.LoggerFromContext(ctx)

	spec, err := s.sandbox.RunChart(ctx, gen.Script, current)
	if err != nil {
		log.Error("chart script failed", "error", err)
		return nil, err
	}

	// The chart occupies a step of its own so the transcript stays linear;
	// the step carries no mutation script and is skipped by replay.
	if _, err := s.log.Append(ctx, session.ID, prompt, "", gen.Explanation, gen.Script); err != nil {
		return nil, err
	}
	s.replayer.Invalidate(session.ID)

	log.Info("chart attached", "kind", spec.Kind)
	return &TransformOutput{
		Intent:      domain.IntentVisualUpdate,
		Grid:        gridOf(current, s.maxGridRows),
		Chart:       spec,
		HasChart:    true,
		Script:      gen.Script,
		Explanation: gen.Explanation,
	}, nil
}

// Undo deactivates the most recent active step. Callers fetch the reverted
// view with SessionState.
func (s *Service) Undo(ctx context.Context, id domain.SessionID, owner domain.OwnerID) error {
	unlock := s.sessionLocks.acquire(string(id))
	defer unlock()

	if _, err := s.ownedSession(ctx, id, owner); err != nil {
		return err
	}
	if err := s.log.DeactivateLast(ctx, id); err != nil {
		return err
	}
	s.replayer.Invalidate(id)

	observability.LoggerFromContext(ctx).Info("undo applied", "session_id", id)
	return nil
}

// Reset deactivates every step: the current view becomes the snapshot and
// any attached chart detaches with its step.
func (s *Service) Reset(ctx context.Context, id domain.SessionID, owner domain.OwnerID) error {
	unlock := s.sessionLocks.acquire(string(id))
	defer unlock()

	if _, err := s.ownedSession(ctx, id, owner); err != nil {
		return err
	}
	if err := s.log.DeactivateAll(ctx, id); err != nil {
		return err
	}
	s.replayer.Invalidate(id)

	observability.LoggerFromContext(ctx).Info("session reset", "session_id", id)
	return nil
}

// ListSessions returns the owner's active sessions, newest first.
func (s *Service) ListSessions(ctx context.Context, owner domain.OwnerID) ([]*domain.Session, error) {
	sessions, err := s.sessions.ListSessionsByOwner(ctx, owner)
	if err != nil {
		return nil, domain.Wrap(domain.KindPersistence, err, "listing sessions")
	}
	return sessions, nil
}

// DeleteSession soft-deletes: the record stays, the active flag drops, the
// owner's quota frees up.
func (s *Service) DeleteSession(ctx context.Context, id domain.SessionID, owner domain.OwnerID) error {
	unlock := s.sessionLocks.acquire(string(id))
	defer unlock()

	session, err := s.ownedSession(ctx, id, owner)
	if err != nil {
		return err
	}

	session.Active = false
	if err := s.sessions.UpdateSession(ctx, session); err != nil {
		return domain.Wrap(domain.KindPersistence, err, "deleting session")
	}
	s.replayer.Invalidate(id)

	observability.LoggerFromContext(ctx).Info("session deleted", "session_id", id)
	return nil
}

type StateOutput struct {
	Session  *domain.Session
	Grid     Grid
	Chart    *domain.ChartSpec
	HasChart bool
	Messages []Message
}

// SessionState returns the current view: replayed grid, re-rendered chart
// (if one is attached and still renders) and the conversation transcript.
func (s *Service) SessionState(ctx context.Context, id domain.SessionID, owner domain.OwnerID) (*StateOutput, error) {
	ctx = observability.WithSessionID(ctx, string(id))

	session, err := s.ownedSession(ctx, id, owner)
	if err != nil {
		return nil, err
	}

	current, err := s.replayer.Replay(ctx, session)
	if err != nil {
		return nil, err
	}

	steps, err := s.log.Active(ctx, id)
	if err != nil {
		return nil, err
	}

	out := &StateOutput{
		Session:  session,
		Grid:     gridOf(current, s.maxGridRows),
		Messages: make([]Message, 0, len(steps)),
	}
	for _, st := range steps {
		out.Messages = append(out.Messages, Message{
			StepID:      st.ID,
			Prompt:      st.Prompt,
			Explanation: st.Explanation,
			Script:      st.Script,
			ChartScript: st.ChartScript,
			CreatedAt:   st.CreatedAt,
		})
	}

	chartScript, err := s.log.ChartScript(ctx, id)
	if err != nil {
		return nil, err
	}
	if chartScript != "" {
		spec, cerr := s.sandbox.RunChart(ctx, chartScript, current)
		if cerr != nil {
			observability.LoggerFromContext(ctx).Warn("chart re-render failed", "error", cerr)
		} else {
			out.Chart = spec
			out.HasChart = true
		}
	}

	return out, nil
}

// ownedSession loads a session and enforces ownership. A soft-deleted
// session is indistinguishable from a missing one.
func (s *Service) ownedSession(ctx context.Context, id domain.SessionID, owner domain.OwnerID) (*domain.Session, error) {
	session, err := s.sessions.GetSession(ctx, id)
	if err != nil {
		return nil, domain.Wrap(domain.KindNotFound, err, "session %s", id)
	}
	if !session.Active {
		return nil, domain.E(domain.KindNotFound, "session %s", id)
	}
	if session.OwnerID != owner {
		return nil, domain.E(domain.KindAccessDenied, "session %s does not belong to this owner", id)
	}
	return session, nil
}
