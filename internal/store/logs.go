package store

import (
	"fmt"
	"time"

	"firewall-policy-auditor/internal/model"
)

// logBatchSize keeps insert statements under the MySQL packet limit.
const logBatchSize = 500

// InsertLogEntries writes a parsed batch in chunks.
func (s *Store) InsertLogEntries(entries []model.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := s.db.CreateInBatches(entries, logBatchSize).Error; err != nil {
		return fmt.Errorf("insert %d log entries: %w", len(entries), err)
	}
	return nil
}

// CountLogs counts a device's log entries since the cutoff.
func (s *Store) CountLogs(deviceID string, since time.Time) (int64, error) {
	var n int64
	err := s.db.Model(&model.LogEntry{}).
		Where("device_id = ? AND timestamp >= ?", deviceID, since).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count logs: %w", err)
	}
	return n, nil
}

// ActivePolicyIDs returns the distinct policy ids that appear in traffic
// logs since the cutoff. Policies absent from this set saw no traffic.
func (s *Store) ActivePolicyIDs(deviceID string, since time.Time) (map[int64]int64, error) {
	var rows []struct {
		PolicyID int64
		N        int64
	}
	err := s.db.Model(&model.LogEntry{}).
		Select("policy_id, COUNT(*) AS n").
		Where("device_id = ? AND timestamp >= ? AND policy_id IS NOT NULL", deviceID, since).
		Group("policy_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("aggregate active policies: %w", err)
	}
	out := make(map[int64]int64, len(rows))
	for _, r := range rows {
		out[r.PolicyID] = r.N
	}
	return out, nil
}

// TopDeniedFlows groups denied traffic by (src, dst, port, service) and
// returns the groups seen more than minCount times, busiest first.
func (s *Store) TopDeniedFlows(deviceID string, since time.Time, minCount int64, limit int) ([]model.FlowAggregate, error) {
	var rows []model.FlowAggregate
	err := s.db.Model(&model.LogEntry{}).
		Select("src_ip, dst_ip, service, protocol, dst_port, COUNT(*) AS count, SUM(sent_bytes + rcvd_bytes) AS bytes").
		Where("device_id = ? AND timestamp >= ? AND action IN ?", deviceID, since, []string{"deny", "blocked", "dropped"}).
		Group("src_ip, dst_ip, service, protocol, dst_port").
		Having("COUNT(*) > ?", minCount).
		Order("count DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("aggregate denied flows: %w", err)
	}
	return rows, nil
}

// PolicyFlows groups a policy's observed traffic into distinct flows,
// busiest first, for least-privilege synthesis.
func (s *Store) PolicyFlows(deviceID string, policyID int64, since time.Time, limit int) ([]model.FlowAggregate, error) {
	var rows []model.FlowAggregate
	err := s.db.Model(&model.LogEntry{}).
		Select("src_ip, dst_ip, service, protocol, dst_port, COUNT(*) AS count, SUM(sent_bytes + rcvd_bytes) AS bytes").
		Where("device_id = ? AND policy_id = ? AND timestamp >= ?", deviceID, policyID, since).
		Group("src_ip, dst_ip, service, protocol, dst_port").
		Order("count DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("aggregate policy %d flows: %w", policyID, err)
	}
	return rows, nil
}

// LogDateRange returns the earliest and latest timestamps of a batch.
func (s *Store) LogDateRange(sessionID string) (start, end *time.Time, err error) {
	var row struct {
		StartTS *time.Time `gorm:"column:start_ts"`
		EndTS   *time.Time `gorm:"column:end_ts"`
	}
	err = s.db.Model(&model.LogEntry{}).
		Select("MIN(timestamp) AS start_ts, MAX(timestamp) AS end_ts").
		Where("import_session_id = ?", sessionID).
		Scan(&row).Error
	if err != nil {
		return nil, nil, fmt.Errorf("log date range: %w", err)
	}
	return row.StartTS, row.EndTS, nil
}

// CountLogsByAction buckets a session's entries by firewall action.
func (s *Store) CountLogsByAction(sessionID string) (map[string]int64, error) {
	var rows []struct {
		Action string
		N      int64
	}
	err := s.db.Model(&model.LogEntry{}).
		Select("action, COUNT(*) AS n").
		Where("import_session_id = ?", sessionID).
		Group("action").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count logs by action: %w", err)
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Action] = r.N
	}
	return out, nil
}
