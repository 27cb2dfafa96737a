package store

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"firewall-policy-auditor/internal/model"
)

// PolicyFilter narrows policy listings. String fields are substring
// matches against the stored lists; empty fields do not filter. Every
// supported criterion is a named field, so the full filter surface is
// visible here rather than spread over call sites.
type PolicyFilter struct {
	VDOM     string
	PolicyID string
	Action   string // exact, case-insensitive
	NAT      string // exact
	SrcIntf  string
	DstIntf  string
	SrcAddr  string
	DstAddr  string
	Service  string
	MinBytes int64
	Limit    int
}

// ListPolicies returns a device's policies matching the filter, ordered
// by VDOM then numeric-ish policy id.
func (s *Store) ListPolicies(deviceID string, f PolicyFilter) ([]model.Policy, error) {
	q := s.db.Where("device_id = ?", deviceID)
	if f.VDOM != "" {
		q = q.Where("vdom = ?", f.VDOM)
	}
	if f.PolicyID != "" {
		q = q.Where("policy_id = ?", f.PolicyID)
	}
	if f.Action != "" {
		q = q.Where("LOWER(action) = LOWER(?)", f.Action)
	}
	if f.NAT != "" {
		q = q.Where("nat = ?", f.NAT)
	}
	if f.SrcIntf != "" {
		q = q.Where("src_intf LIKE ?", "%"+f.SrcIntf+"%")
	}
	if f.DstIntf != "" {
		q = q.Where("dst_intf LIKE ?", "%"+f.DstIntf+"%")
	}
	if f.SrcAddr != "" {
		q = q.Where("src_addr LIKE ?", "%"+f.SrcAddr+"%")
	}
	if f.DstAddr != "" {
		q = q.Where("dst_addr LIKE ?", "%"+f.DstAddr+"%")
	}
	if f.Service != "" {
		q = q.Where("service LIKE ?", "%"+f.Service+"%")
	}
	if f.MinBytes > 0 {
		q = q.Where("bytes_total >= ?", f.MinBytes)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var policies []model.Policy
	if err := q.Order("vdom, LENGTH(policy_id), policy_id").Find(&policies).Error; err != nil {
		return nil, fmt.Errorf("list policies: %w", err)
	}
	return policies, nil
}

// PolicyByIdentity fetches one policy by its natural key.
func (s *Store) PolicyByIdentity(deviceID, vdom, policyID string) (*model.Policy, error) {
	var p model.Policy
	err := s.db.First(&p, "device_id = ? AND vdom = ? AND policy_id = ?", deviceID, vdom, policyID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("policy %s/%s/%s: %w", deviceID, vdom, policyID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get policy %s: %w", policyID, err)
	}
	return &p, nil
}

// PolicyVDOMMap maps policy id to VDOM name for one device, used to
// resolve the scope of findings that only carry a policy id.
func (s *Store) PolicyVDOMMap(deviceID string) (map[string]string, error) {
	var rows []struct {
		PolicyID string
		VDOM     string
	}
	err := s.db.Model(&model.Policy{}).
		Select("policy_id, vdom").
		Where("device_id = ?", deviceID).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("map policy vdoms: %w", err)
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.PolicyID] = r.VDOM
	}
	return out, nil
}
