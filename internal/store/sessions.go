package store

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"firewall-policy-auditor/internal/model"
)

// CreateSession records a new import session.
func (s *Store) CreateSession(sess *model.ImportSession) error {
	if err := s.db.Create(sess).Error; err != nil {
		return fmt.Errorf("create import session: %w", err)
	}
	return nil
}

// UpdateSession persists a session's final counts and stats.
func (s *Store) UpdateSession(sess *model.ImportSession) error {
	if err := s.db.Save(sess).Error; err != nil {
		return fmt.Errorf("update import session %s: %w", sess.ID, err)
	}
	return nil
}

// SessionByID fetches one import session.
func (s *Store) SessionByID(id string) (*model.ImportSession, error) {
	var sess model.ImportSession
	err := s.db.First(&sess, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("import session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get import session %s: %w", id, err)
	}
	return &sess, nil
}

// ListSessions returns a device's import sessions, newest first.
func (s *Store) ListSessions(deviceID string) ([]model.ImportSession, error) {
	var sessions []model.ImportSession
	err := s.db.Where("device_id = ?", deviceID).
		Order("created_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("list import sessions: %w", err)
	}
	return sessions, nil
}
