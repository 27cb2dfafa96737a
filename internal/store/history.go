package store

import (
	"fmt"

	"firewall-policy-auditor/internal/model"
)

// AppendHistory records one policy change. History is append-only; there
// is deliberately no update or delete path.
func (s *Store) AppendHistory(h *model.PolicyHistory) error {
	if err := s.db.Create(h).Error; err != nil {
		return fmt.Errorf("append history for policy %s: %w", h.PolicyID, err)
	}
	return nil
}

// HistoryForPolicy returns a policy's change log, newest first.
func (s *Store) HistoryForPolicy(policyUID string) ([]model.PolicyHistory, error) {
	var rows []model.PolicyHistory
	err := s.db.Where("policy_uid = ?", policyUID).
		Order("change_date DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("history for policy %s: %w", policyUID, err)
	}
	return rows, nil
}

// HistoryForDevice returns a device's most recent policy changes.
func (s *Store) HistoryForDevice(deviceID string, limit int) ([]model.PolicyHistory, error) {
	q := s.db.Where("device_id = ?", deviceID).Order("change_date DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []model.PolicyHistory
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("history for device %s: %w", deviceID, err)
	}
	return rows, nil
}
