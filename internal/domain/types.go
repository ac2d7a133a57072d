package domain

import "time"

type SessionID string
type OwnerID string

// StepID is monotonic within a session: a later step always has a higher id.
type StepID int64

// Intent is the classifier's verdict on what a prompt asks for.
type Intent string

const (
	IntentDataMutation Intent = "DATA_MUTATION"
	IntentVisualUpdate Intent = "VISUAL_UPDATE"
)

// MaxActiveSessions caps how many simultaneously active sessions one owner may hold.
const MaxActiveSessions = 2

type Timestamp = time.Time
