package postgres

import (
	"time"

	"github.com/mvaldesr/tabletalk/internal/domain"
)

// sessionRecord is the sessions row. Soft delete is the active flag, never
// a hard delete.
type sessionRecord struct {
	ID          string    `gorm:"column:id;primaryKey;type:varchar(36)"`
	OwnerID     string    `gorm:"column:owner_id;type:varchar(64);index;not null"`
	SnapshotRef string    `gorm:"column:snapshot_ref;type:varchar(36);not null"`
	Filename    string    `gorm:"column:filename;type:varchar(255);not null"`
	Format      string    `gorm:"column:format;type:varchar(16)"`
	Active      bool      `gorm:"column:active;index;not null;default:true"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (sessionRecord) TableName() string { return "sessions" }

// stepRecord is the steps row. The auto-increment primary key doubles as
// the per-session monotonic step id.
type stepRecord struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement"`
	SessionID   string    `gorm:"column:session_id;type:varchar(36);index;not null"`
	Prompt      string    `gorm:"column:prompt;type:text;not null"`
	Script      string    `gorm:"column:script;type:text"`
	ChartScript string    `gorm:"column:chart_script;type:text"`
	Explanation string    `gorm:"column:explanation;type:text"`
	Active      bool      `gorm:"column:active;index;not null;default:true"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (stepRecord) TableName() string { return "steps" }

func toSessionRecord(s *domain.Session) *sessionRecord {
	return &sessionRecord{
		ID:          string(s.ID),
		OwnerID:     string(s.OwnerID),
		SnapshotRef: s.SnapshotRef,
		Filename:    s.Filename,
		Format:      s.Format,
		Active:      s.Active,
		CreatedAt:   s.CreatedAt,
	}
}

func toDomainSession(r *sessionRecord) *domain.Session {
	return &domain.Session{
		ID:          domain.SessionID(r.ID),
		OwnerID:     domain.OwnerID(r.OwnerID),
		SnapshotRef: r.SnapshotRef,
		Filename:    r.Filename,
		Format:      r.Format,
		Active:      r.Active,
		CreatedAt:   r.CreatedAt,
	}
}

func toDomainStep(r *stepRecord) *domain.Step {
	return &domain.Step{
		ID:          domain.StepID(r.ID),
		SessionID:   domain.SessionID(r.SessionID),
		Prompt:      r.Prompt,
		Script:      r.Script,
		ChartScript: r.ChartScript,
		Explanation: r.Explanation,
		Active:      r.Active,
		CreatedAt:   r.CreatedAt,
	}
}
