package importer

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"firewall-policy-auditor/internal/model"
	"firewall-policy-auditor/internal/parser"
	"firewall-policy-auditor/internal/store"
)

// LogResult reports one log import.
type LogResult struct {
	Device   *model.Device
	Session  *model.ImportSession
	Imported int
	Rejected int
}

// ImportLogs parses a FortiAnalyzer export, resolves the device from the
// devid field and stores the normalized entries under a fresh session.
// An export whose device cannot be resolved is rejected whole.
func (im *Importer) ImportLogs(filename, content string) (*LogResult, error) {
	raws := parser.ParseLogText(content)
	rejected := countNonBlankLines(content) - len(raws)
	if len(raws) == 0 {
		return nil, fmt.Errorf("no parseable log lines in %s", filename)
	}

	devid := parser.DetectDevID(raws)
	if devid == "" {
		return nil, fmt.Errorf("%w: no devid field in the first entries of %s", ErrDeviceNotResolved, filename)
	}
	device, err := im.st.DeviceByDevID(devid)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: devid %q is not a registered device", ErrDeviceNotResolved, devid)
		}
		return nil, fmt.Errorf("resolve device: %w", err)
	}

	session := &model.ImportSession{DeviceID: device.ID, Kind: "logs", Filename: filename}
	if err := im.st.CreateSession(session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	entries := make([]model.LogEntry, 0, len(raws))
	for _, raw := range raws {
		entry := parser.NormalizeEntry(raw)
		entry.DeviceID = device.ID
		entry.ImportSessionID = session.ID
		entries = append(entries, entry)
	}
	if err := im.st.InsertLogEntries(entries); err != nil {
		return nil, fmt.Errorf("insert log entries: %w", err)
	}

	start, end, err := im.st.LogDateRange(session.ID)
	if err != nil {
		return nil, fmt.Errorf("session date range: %w", err)
	}
	byAction, err := im.st.CountLogsByAction(session.ID)
	if err != nil {
		return nil, fmt.Errorf("session action counts: %w", err)
	}

	session.Count = len(entries)
	session.StartDate = start
	session.EndDate = end
	actions := make(map[string]any, len(byAction))
	for action, n := range byAction {
		actions[action] = n
	}
	stats := batchStats(entries)
	stats["by_action"] = actions
	stats["rejected"] = rejected
	session.Stats = stats
	if err := im.st.UpdateSession(session); err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}

	im.log.Info().
		Str("device", device.Name).
		Int("imported", len(entries)).
		Int("rejected", rejected).
		Msg("logs imported")

	return &LogResult{Device: device, Session: session, Imported: len(entries), Rejected: rejected}, nil
}

// batchStats summarizes the batch being imported. It works on the slice
// already in hand, so it adds no queries over the log table.
func batchStats(entries []model.LogEntry) model.JSONMap {
	byType := make(map[string]any)
	byVDOM := make(map[string]any)
	policyHits := make(map[int64]int64)
	for _, e := range entries {
		if e.LogType != "" {
			byType[e.LogType] = toCount(byType[e.LogType]) + 1
		}
		if e.VDOM != "" {
			byVDOM[e.VDOM] = toCount(byVDOM[e.VDOM]) + 1
		}
		if e.PolicyID != nil {
			policyHits[*e.PolicyID]++
		}
	}

	type policyCount struct {
		PolicyID int64 `json:"policy_id"`
		Count    int64 `json:"count"`
	}
	top := make([]policyCount, 0, len(policyHits))
	for pid, n := range policyHits {
		top = append(top, policyCount{PolicyID: pid, Count: n})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Count != top[j].Count {
			return top[i].Count > top[j].Count
		}
		return top[i].PolicyID < top[j].PolicyID
	})
	if len(top) > 10 {
		top = top[:10]
	}
	topAny := make([]any, 0, len(top))
	for _, t := range top {
		topAny = append(topAny, map[string]any{"policy_id": t.PolicyID, "count": t.Count})
	}

	return model.JSONMap{
		"by_type":      byType,
		"by_vdom":      byVDOM,
		"top_policies": topAny,
	}
}

func toCount(v any) int64 {
	n, _ := v.(int64)
	return n
}

func countNonBlankLines(content string) int {
	n := 0
	for _, line := range strings.Split(strings.TrimSpace(content), "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}
