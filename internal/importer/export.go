package importer

import (
	"fmt"

	"firewall-policy-auditor/internal/diff"
	"firewall-policy-auditor/internal/model"
	"firewall-policy-auditor/internal/parser"
)

// ImportPolicyExport reconciles a JSON policy export against the stored
// policy set of one (device, VDOM) scope.
func (im *Importer) ImportPolicyExport(deviceID, vdom, filename string, data []byte) (*diff.Report, error) {
	device, err := im.st.DeviceByID(deviceID)
	if err != nil {
		return nil, fmt.Errorf("resolve device: %w", err)
	}
	vdom = vdomOrDefault(vdom)

	policies, err := parser.ParsePolicyExport(data, vdom)
	if err != nil {
		return nil, fmt.Errorf("parse policy export: %w", err)
	}

	session := &model.ImportSession{DeviceID: device.ID, Kind: "policies", Filename: filename}
	if err := im.st.CreateSession(session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	report, err := im.rec.Reconcile(device.ID, vdom, session.ID, policies)
	if err != nil {
		return nil, err
	}

	session.Count = len(policies)
	session.Stats = model.JSONMap{
		"added":     len(report.Added),
		"modified":  len(report.Modified),
		"deleted":   len(report.Deleted),
		"unchanged": report.UnchangedCount,
	}
	if err := im.st.UpdateSession(session); err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}

	im.log.Info().
		Str("device", device.Name).
		Str("vdom", vdom).
		Int("added", len(report.Added)).
		Int("modified", len(report.Modified)).
		Int("deleted", len(report.Deleted)).
		Msg("policy export imported")
	return report, nil
}
