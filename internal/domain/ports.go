package domain

import "context"

// CodeGenerator is the natural-language-to-script oracle. It is unreliable
// by contract: it may fail outright or return malformed script text, and the
// core never retries it.
type CodeGenerator interface {
	GenerateScript(ctx context.Context, prompt string, columns []string, sample map[string]any) (*Generation, error)
}

// DatasetDecoder turns uploaded bytes into a Table. Column identifiers are
// coerced to strings by the implementation.
type DatasetDecoder interface {
	Decode(data []byte, format string) (*Table, error)
}

// SessionStore defines session record persistence.
type SessionStore interface {
	CreateSession(ctx context.Context, session *Session) error
	UpdateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, id SessionID) (*Session, error)
	ListSessionsByOwner(ctx context.Context, owner OwnerID) ([]*Session, error)
	CountActiveByOwner(ctx context.Context, owner OwnerID) (int, error)
}

// StepStore defines step record persistence.
//
// AppendStep is atomic per call: it purges every inactive step of the
// session and inserts the new step, assigning the next monotonic id, or
// does neither.
type StepStore interface {
	AppendStep(ctx context.Context, step *Step) (StepID, error)
	DeactivateLastStep(ctx context.Context, session SessionID) error
	DeactivateAllSteps(ctx context.Context, session SessionID) error
	ListActiveSteps(ctx context.Context, session SessionID) ([]*Step, error)
}

// SnapshotStore holds the raw uploaded bytes a session replays from.
// Snapshots are written once and never mutated.
type SnapshotStore interface {
	PutSnapshot(ctx context.Context, ref string, data []byte) error
	GetSnapshot(ctx context.Context, ref string) ([]byte, error)
}
