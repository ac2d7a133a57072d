// Package postgres persists sessions and steps in PostgreSQL through GORM.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mvaldesr/tabletalk/internal/domain"
)

// Store implements domain.SessionStore and domain.StepStore on a single
// database handle.
type Store struct {
	db *gorm.DB
}

// Open connects to the database and migrates the schema.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := db.AutoMigrate(&sessionRecord{}, &stepRecord{}); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) CreateSession(ctx context.Context, sess *domain.Session) error {
	return s.db.WithContext(ctx).Create(toSessionRecord(sess)).Error
}

func (s *Store) UpdateSession(ctx context.Context, sess *domain.Session) error {
	res := s.db.WithContext(ctx).
		Model(&sessionRecord{}).
		Where("id = ?", string(sess.ID)).
		Updates(map[string]any{
			"snapshot_ref": sess.SnapshotRef,
			"filename":     sess.Filename,
			"format":       sess.Format,
			"active":       sess.Active,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("session %s not found", sess.ID)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	var rec sessionRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", string(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("session %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return toDomainSession(&rec), nil
}

func (s *Store) ListSessionsByOwner(ctx context.Context, owner domain.OwnerID) ([]*domain.Session, error) {
	var recs []sessionRecord
	err := s.db.WithContext(ctx).
		Where("owner_id = ? AND active = ?", string(owner), true).
		Order("created_at DESC").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Session, 0, len(recs))
	for i := range recs {
		out = append(out, toDomainSession(&recs[i]))
	}
	return out, nil
}

func (s *Store) CountActiveByOwner(ctx context.Context, owner domain.OwnerID) (int, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&sessionRecord{}).
		Where("owner_id = ? AND active = ?", string(owner), true).
		Count(&n).Error
	return int(n), err
}

// AppendStep purges the session's inactive steps and inserts the new one in
// a single transaction, so a crash can never leave a half-rebranched log.
func (s *Store) AppendStep(ctx context.Context, step *domain.Step) (domain.StepID, error) {
	rec := &stepRecord{
		SessionID:   string(step.SessionID),
		Prompt:      step.Prompt,
		Script:      step.Script,
		ChartScript: step.ChartScript,
		Explanation: step.Explanation,
		Active:      true,
		CreatedAt:   step.CreatedAt,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("session_id = ? AND active = ?", string(step.SessionID), false).
			Delete(&stepRecord{}).Error; err != nil {
			return err
		}
		return tx.Create(rec).Error
	})
	if err != nil {
		return 0, err
	}
	return domain.StepID(rec.ID), nil
}

func (s *Store) DeactivateLastStep(ctx context.Context, id domain.SessionID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec stepRecord
		err := tx.
			Where("session_id = ? AND active = ?", string(id), true).
			Order("id DESC").
			First(&rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return tx.Model(&rec).Update("active", false).Error
	})
}

func (s *Store) DeactivateAllSteps(ctx context.Context, id domain.SessionID) error {
	return s.db.WithContext(ctx).
		Model(&stepRecord{}).
		Where("session_id = ? AND active = ?", string(id), true).
		Update("active", false).Error
}

func (s *Store) ListActiveSteps(ctx context.Context, id domain.SessionID) ([]*domain.Step, error) {
	var recs []stepRecord
	err := s.db.WithContext(ctx).
		Where("session_id = ? AND active = ?", string(id), true).
		Order("id ASC").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Step, 0, len(recs))
	for i := range recs {
		out = append(out, toDomainStep(&recs[i]))
	}
	return out, nil
}
