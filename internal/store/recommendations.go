package store

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"firewall-policy-auditor/internal/model"
)

// UpsertOutcome says what UpsertRecommendation did with a finding.
type UpsertOutcome int

const (
	// Inserted means no open duplicate existed and a new row was created.
	Inserted UpsertOutcome = iota
	// Refreshed means an open duplicate existed; its affected count was
	// updated and no row was created.
	Refreshed
)

// UpsertRecommendation writes a finding unless an open row with the same
// natural key already exists. The key is (device, category, related policy
// id, title) when the finding targets a policy — one policy can carry
// several distinct findings in the same category — otherwise (device,
// category, title). Least-privilege findings drop the title from the key:
// there the finding for a policy may be retitled between runs as traffic
// appears, and it must refresh the existing row rather than pile up.
// Acknowledged, resolved and ignored rows never match, so a re-emerged
// finding after resolution creates a fresh open row.
func (s *Store) UpsertRecommendation(rec *model.Recommendation) (UpsertOutcome, error) {
	q := s.db.Where("device_id = ? AND category = ? AND status = ?",
		rec.DeviceID, rec.Category, model.StatusOpen)
	switch {
	case rec.RelatedPolicyID == "":
		q = q.Where("title = ?", rec.Title)
	case rec.Category == model.CategoryOptimizePolicy:
		q = q.Where("related_policy_id = ?", rec.RelatedPolicyID)
	default:
		q = q.Where("related_policy_id = ? AND title = ?", rec.RelatedPolicyID, rec.Title)
	}

	var existing model.Recommendation
	err := q.First(&existing).Error
	switch {
	case err == nil:
		if existing.AffectedCount != rec.AffectedCount {
			update := s.db.Model(&existing).Update("affected_count", rec.AffectedCount)
			if update.Error != nil {
				return Refreshed, fmt.Errorf("refresh recommendation %s: %w", existing.ID, update.Error)
			}
		}
		return Refreshed, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := s.db.Create(rec).Error; err != nil {
			return Inserted, fmt.Errorf("create recommendation %q: %w", rec.Title, err)
		}
		return Inserted, nil
	default:
		return Inserted, fmt.Errorf("lookup open recommendation: %w", err)
	}
}

// RecommendationFilter narrows listings; empty fields do not filter.
type RecommendationFilter struct {
	Category string
	Severity string
	Status   string
	VDOM     string
}

// severityRank orders listings critical-first.
const severityRank = `CASE severity
	WHEN 'critical' THEN 0
	WHEN 'high' THEN 1
	WHEN 'medium' THEN 2
	WHEN 'low' THEN 3
	ELSE 4 END`

// ListRecommendations returns a device's findings, most severe first.
func (s *Store) ListRecommendations(deviceID string, f RecommendationFilter) ([]model.Recommendation, error) {
	q := s.db.Where("device_id = ?", deviceID)
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.Severity != "" {
		q = q.Where("severity = ?", f.Severity)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.VDOM != "" {
		q = q.Where("related_vdom = ?", f.VDOM)
	}

	var recs []model.Recommendation
	if err := q.Order(severityRank + ", created_at DESC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list recommendations: %w", err)
	}
	return recs, nil
}

// SetRecommendationStatus transitions one finding. Moving to resolved
// stamps the resolution time and actor.
func (s *Store) SetRecommendationStatus(id, status, actor string) error {
	updates := map[string]any{"status": status}
	if status == model.StatusResolved {
		now := time.Now().UTC()
		updates["resolved_at"] = &now
		updates["resolved_by"] = actor
	}
	res := s.db.Model(&model.Recommendation{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update recommendation %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("recommendation %s: %w", id, ErrNotFound)
	}
	return nil
}
