// Package diff reconciles an imported policy set against the stored one
// for a (device, VDOM) scope, recording every change as append-only
// history. Reconciliation is transactional and idempotent: re-importing
// the same input is a no-op that writes no history.
package diff

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"firewall-policy-auditor/internal/model"
	"firewall-policy-auditor/internal/parser"
	"firewall-policy-auditor/internal/store"
)

// ConflictError reports a duplicate policy identity inside one import
// batch. The batch is rejected whole; nothing is written.
type ConflictError struct {
	DeviceID string
	VDOM     string
	PolicyID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("duplicate policy id %q for device %s vdom %q in import batch",
		e.PolicyID, e.DeviceID, e.VDOM)
}

// Change is one added, modified or deleted policy in a report.
type Change struct {
	PolicyID string
	Name     string
	// UUID is the vendor-assigned policy UUID, set for deletions so the
	// removed rule stays traceable to the device's own identifier.
	UUID string
	// Changes holds one line per differing field for modifications.
	Changes []string
}

// Report summarizes one reconciliation run.
type Report struct {
	Added          []Change
	Modified       []Change
	Deleted        []Change
	UnchangedCount int
}

// Reconciler applies imported policy sets to the store.
type Reconciler struct {
	st  *store.Store
	log zerolog.Logger
}

func New(st *store.Store, log zerolog.Logger) *Reconciler {
	return &Reconciler{st: st, log: log.With().Str("component", "diff").Logger()}
}

// The diffed field set. Counters and cosmetic attributes are refreshed
// silently; only these fields constitute a configuration change.
var diffFields = []struct {
	label string
	get   func(*normalized) string
}{
	{"Src Intf", func(n *normalized) string { return n.srcIntf }},
	{"Dst Intf", func(n *normalized) string { return n.dstIntf }},
	{"Src Addr", func(n *normalized) string { return n.srcAddr }},
	{"Dst Addr", func(n *normalized) string { return n.dstAddr }},
	{"Service", func(n *normalized) string { return n.service }},
	{"Action", func(n *normalized) string { return n.action }},
	{"NAT", func(n *normalized) string { return n.nat }},
}

type normalized struct {
	srcIntf, dstIntf, srcAddr, dstAddr, service, action, nat string
}

func normalizePolicy(p *model.Policy) *normalized {
	return &normalized{
		srcIntf: normalizeList(p.SrcIntf),
		dstIntf: normalizeList(p.DstIntf),
		srcAddr: normalizeList(p.SrcAddr),
		dstAddr: normalizeList(p.DstAddr),
		service: normalizeList(p.Services),
		action:  p.Action,
		nat:     p.NAT,
	}
}

func normalizeIncoming(in *parser.PolicyConfig) *normalized {
	return &normalized{
		srcIntf: normalizeList(in.SrcIntf),
		dstIntf: normalizeList(in.DstIntf),
		srcAddr: normalizeList(in.SrcAddr),
		dstAddr: normalizeList(in.DstAddr),
		service: normalizeList(in.Services),
		action:  in.Action,
		nat:     in.NAT,
	}
}

// normalizeList makes list comparison order-insensitive.
func normalizeList(items []string) string {
	sorted := make([]string, len(items))
	copy(sorted, items)
	sort.Strings(sorted)
	return strings.Join(sorted, ", ")
}

// Reconcile applies one imported policy set to the (device, vdom) scope.
// The sessionID ties the resulting history rows to their import.
func (r *Reconciler) Reconcile(deviceID, vdom, sessionID string, incoming []parser.PolicyConfig) (*Report, error) {
	seen := make(map[string]bool, len(incoming))
	for i := range incoming {
		if seen[incoming[i].ID] {
			return nil, &ConflictError{DeviceID: deviceID, VDOM: vdom, PolicyID: incoming[i].ID}
		}
		seen[incoming[i].ID] = true
	}

	report := &Report{}
	err := r.st.Transaction(func(tx *gorm.DB) error {
		var existing []model.Policy
		if err := tx.Where("device_id = ? AND vdom = ?", deviceID, vdom).Find(&existing).Error; err != nil {
			return fmt.Errorf("load existing policies: %w", err)
		}
		existingMap := make(map[string]*model.Policy, len(existing))
		for i := range existing {
			existingMap[existing[i].PolicyID] = &existing[i]
		}

		processed := make(map[string]bool, len(incoming))
		for i := range incoming {
			in := &incoming[i]
			processed[in.ID] = true

			current, exists := existingMap[in.ID]
			if !exists {
				if err := r.createPolicy(tx, deviceID, vdom, sessionID, in, report); err != nil {
					return err
				}
				continue
			}
			if err := r.updatePolicy(tx, sessionID, current, in, report); err != nil {
				return err
			}
		}

		for pid, current := range existingMap {
			if processed[pid] {
				continue
			}
			if err := r.deletePolicy(tx, sessionID, current, report); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.log.Info().
		Str("device_id", deviceID).
		Str("vdom", vdom).
		Int("added", len(report.Added)).
		Int("modified", len(report.Modified)).
		Int("deleted", len(report.Deleted)).
		Int("unchanged", report.UnchangedCount).
		Msg("policies reconciled")
	return report, nil
}

func (r *Reconciler) createPolicy(tx *gorm.DB, deviceID, vdom, sessionID string, in *parser.PolicyConfig, report *Report) error {
	p := &model.Policy{
		DeviceID:   deviceID,
		VDOM:       vdom,
		PolicyID:   in.ID,
		Name:       in.Name,
		VendorUUID: in.UUID,
		Action:     in.Action,
		Status:     in.Status,
		NAT:        in.NAT,
		SrcIntf:    in.SrcIntf,
		DstIntf:    in.DstIntf,
		SrcAddr:    in.SrcAddr,
		DstAddr:    in.DstAddr,
		Services:   in.Services,
		BytesTotal: in.BytesTotal,
		HitCount:   in.HitCount,
		RawAttrs:   in.Raw,
	}
	if err := tx.Create(p).Error; err != nil {
		return fmt.Errorf("create policy %s: %w", in.ID, err)
	}

	history := &model.PolicyHistory{
		PolicyUID:       p.UID,
		DeviceID:        deviceID,
		VDOM:            vdom,
		PolicyID:        p.PolicyID,
		ImportSessionID: sessionID,
		ChangeType:      model.ChangeCreate,
		Snapshot:        snapshot(p),
	}
	if err := tx.Create(history).Error; err != nil {
		return fmt.Errorf("record create history for policy %s: %w", in.ID, err)
	}

	report.Added = append(report.Added, Change{PolicyID: in.ID, Name: in.Name})
	return nil
}

func (r *Reconciler) updatePolicy(tx *gorm.DB, sessionID string, current *model.Policy, in *parser.PolicyConfig, report *Report) error {
	oldState := normalizePolicy(current)
	newState := normalizeIncoming(in)
	previous := snapshot(current)

	var changes []string
	for _, f := range diffFields {
		oldVal, newVal := f.get(oldState), f.get(newState)
		if oldVal != newVal {
			changes = append(changes, fmt.Sprintf("%s: '%s' -> '%s'", f.label, oldVal, newVal))
		}
	}

	current.Name = in.Name
	current.Action = in.Action
	current.Status = in.Status
	current.NAT = in.NAT
	current.SrcIntf = in.SrcIntf
	current.DstIntf = in.DstIntf
	current.SrcAddr = in.SrcAddr
	current.DstAddr = in.DstAddr
	current.Services = in.Services
	current.BytesTotal = in.BytesTotal
	current.HitCount = in.HitCount
	if in.UUID != "" {
		current.VendorUUID = in.UUID
	}
	if len(in.Raw) > 0 {
		current.RawAttrs = in.Raw
	}
	if err := tx.Save(current).Error; err != nil {
		return fmt.Errorf("update policy %s: %w", current.PolicyID, err)
	}

	if len(changes) == 0 {
		report.UnchangedCount++
		return nil
	}

	history := &model.PolicyHistory{
		PolicyUID:       current.UID,
		DeviceID:        current.DeviceID,
		VDOM:            current.VDOM,
		PolicyID:        current.PolicyID,
		ImportSessionID: sessionID,
		ChangeType:      model.ChangeModify,
		Delta:           model.JSONMap{"changes": changes, "previous": previous},
		Snapshot:        snapshot(current),
	}
	if err := tx.Create(history).Error; err != nil {
		return fmt.Errorf("record modify history for policy %s: %w", current.PolicyID, err)
	}

	report.Modified = append(report.Modified, Change{
		PolicyID: current.PolicyID,
		Name:     in.Name,
		Changes:  changes,
	})
	return nil
}

func (r *Reconciler) deletePolicy(tx *gorm.DB, sessionID string, current *model.Policy, report *Report) error {
	history := &model.PolicyHistory{
		PolicyUID:       current.UID,
		DeviceID:        current.DeviceID,
		VDOM:            current.VDOM,
		PolicyID:        current.PolicyID,
		ImportSessionID: sessionID,
		ChangeType:      model.ChangeDelete,
		Delta:           model.JSONMap{"reason": "missing_in_import"},
		Snapshot:        snapshot(current),
	}
	if err := tx.Create(history).Error; err != nil {
		return fmt.Errorf("record delete history for policy %s: %w", current.PolicyID, err)
	}
	if err := tx.Delete(&model.Policy{}, "uid = ?", current.UID).Error; err != nil {
		return fmt.Errorf("delete policy %s: %w", current.PolicyID, err)
	}

	report.Deleted = append(report.Deleted, Change{
		PolicyID: current.PolicyID,
		Name:     current.Name,
		UUID:     current.VendorUUID,
	})
	return nil
}

// snapshot captures the full policy state after a change, so history rows
// stay readable after the policy itself is gone.
func snapshot(p *model.Policy) model.JSONMap {
	return model.JSONMap{
		"policy_id": p.PolicyID,
		"name":      p.Name,
		"vdom":      p.VDOM,
		"src_intf":  []string(p.SrcIntf),
		"dst_intf":  []string(p.DstIntf),
		"src_addr":  []string(p.SrcAddr),
		"dst_addr":  []string(p.DstAddr),
		"service":   []string(p.Services),
		"action":    p.Action,
		"status":    p.Status,
		"nat":       p.NAT,
		"bytes":     p.BytesTotal,
		"hit_count": p.HitCount,
	}
}
