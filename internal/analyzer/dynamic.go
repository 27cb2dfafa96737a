package analyzer

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"firewall-policy-auditor/internal/model"
	"firewall-policy-auditor/internal/netutil"
	"firewall-policy-auditor/internal/parser"
	"firewall-policy-auditor/internal/store"
	"firewall-policy-auditor/pkg/wellknown"
)

// Thresholds tunes the dynamic analysis. Zero values are replaced by the
// defaults below.
type Thresholds struct {
	LookbackDays         int
	MinDenyOccurrences   int64
	TopDeniedFlows       int
	PolicyFlowLimit      int
	MaxDetailedFindings  int
	MaxReplacementRules  int
	ZombieSummarizeAfter int
	ZombieBatchLimit     int
}

// DefaultThresholds returns the production defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		LookbackDays:         30,
		MinDenyOccurrences:   100,
		TopDeniedFlows:       10,
		PolicyFlowLimit:      20,
		MaxDetailedFindings:  20,
		MaxReplacementRules:  5,
		ZombieSummarizeAfter: 10,
		ZombieBatchLimit:     50,
	}
}

func (t Thresholds) withDefaults() Thresholds {
	d := DefaultThresholds()
	if t.LookbackDays <= 0 {
		t.LookbackDays = d.LookbackDays
	}
	if t.MinDenyOccurrences <= 0 {
		t.MinDenyOccurrences = d.MinDenyOccurrences
	}
	if t.TopDeniedFlows <= 0 {
		t.TopDeniedFlows = d.TopDeniedFlows
	}
	if t.PolicyFlowLimit <= 0 {
		t.PolicyFlowLimit = d.PolicyFlowLimit
	}
	if t.MaxDetailedFindings <= 0 {
		t.MaxDetailedFindings = d.MaxDetailedFindings
	}
	if t.MaxReplacementRules <= 0 {
		t.MaxReplacementRules = d.MaxReplacementRules
	}
	if t.ZombieSummarizeAfter <= 0 {
		t.ZombieSummarizeAfter = d.ZombieSummarizeAfter
	}
	if t.ZombieBatchLimit <= 0 {
		t.ZombieBatchLimit = d.ZombieBatchLimit
	}
	return t
}

// LogAggregator is the slice of the store the dynamic analyzer reads
// traffic through. Aggregation happens in the database; log rows are
// never materialized here.
type LogAggregator interface {
	ActivePolicyIDs(deviceID string, since time.Time) (map[int64]int64, error)
	TopDeniedFlows(deviceID string, since time.Time, minCount int64, limit int) ([]model.FlowAggregate, error)
	PolicyFlows(deviceID string, policyID int64, since time.Time, limit int) ([]model.FlowAggregate, error)
}

var _ LogAggregator = (*store.Store)(nil)

// DynamicAnalysis correlates policies with observed traffic: unused
// policies, permissive policies whose real traffic is narrow, and
// persistent denied flows.
func DynamicAnalysis(deviceID string, policies []model.Policy, logs LogAggregator, t Thresholds) ([]model.Recommendation, error) {
	t = t.withDefaults()
	since := time.Now().UTC().AddDate(0, 0, -t.LookbackDays)

	var findings []model.Recommendation

	zombies, err := detectZombies(deviceID, policies, logs, since, t)
	if err != nil {
		return nil, err
	}
	findings = append(findings, zombies...)

	leastPriv, err := leastPrivilege(deviceID, policies, logs, since, t)
	if err != nil {
		return nil, err
	}
	findings = append(findings, leastPriv...)

	noisy, err := noisyDenies(deviceID, logs, since, t)
	if err != nil {
		return nil, err
	}
	findings = append(findings, noisy...)

	return findings, nil
}

// detectZombies flags enabled policies with zero traffic in the lookback
// window. Small sets get one finding per policy; large sets collapse into
// a single summary with a batch disable script.
func detectZombies(deviceID string, policies []model.Policy, logs LogAggregator, since time.Time, t Thresholds) ([]model.Recommendation, error) {
	active, err := logs.ActivePolicyIDs(deviceID, since)
	if err != nil {
		return nil, fmt.Errorf("zombie detection: %w", err)
	}

	var zombies []model.Policy
	for _, p := range policies {
		if !p.Enabled() {
			continue
		}
		pid, err := strconv.ParseInt(p.PolicyID, 10, 64)
		if err != nil {
			continue // non-numeric ids never appear in logs
		}
		if _, seen := active[pid]; !seen {
			zombies = append(zombies, p)
		}
	}
	if len(zombies) == 0 {
		return nil, nil
	}

	if len(zombies) <= t.ZombieSummarizeAfter {
		findings := make([]model.Recommendation, 0, len(zombies))
		for _, p := range zombies {
			findings = append(findings, model.Recommendation{
				DeviceID:        deviceID,
				Category:        model.CategoryOptimization,
				Severity:        model.SeverityLow,
				Title:           fmt.Sprintf("Zombie policy detected: %s", p.PolicyID),
				Description:     fmt.Sprintf("Policy %s (%q) matched no traffic in the last %d days.", p.PolicyID, p.Name, t.LookbackDays),
				Recommendation:  "Disable or remove the policy if it is no longer needed.",
				RelatedPolicyID: p.PolicyID,
				RelatedVDOM:     p.VDOM,
				CLIRemediation:  zombieDisableCLI([]model.Policy{p}, t.LookbackDays),
			})
		}
		return findings, nil
	}

	batch := zombies
	if len(batch) > t.ZombieBatchLimit {
		batch = batch[:t.ZombieBatchLimit]
	}
	ids := make([]string, 0, len(zombies))
	for _, p := range zombies {
		ids = append(ids, p.PolicyID)
	}
	description := fmt.Sprintf("%d enabled policies matched no traffic in the last %d days.", len(zombies), t.LookbackDays)
	if len(zombies) > len(batch) {
		description += fmt.Sprintf(" The remediation script covers the first %d; %d more need manual review.", len(batch), len(zombies)-len(batch))
	}
	return []model.Recommendation{{
		DeviceID:       deviceID,
		Category:       model.CategoryOptimization,
		Severity:       model.SeverityLow,
		Title:          fmt.Sprintf("Zombie policies detected: %d unused", len(zombies)),
		Description:    description,
		Recommendation: "Review the listed policies and disable the ones that are truly unused.",
		AffectedCount:  len(zombies),
		Evidence:       model.JSONMap{"policy_ids": ids},
		CLIRemediation: zombieDisableCLI(batch, t.LookbackDays),
	}}, nil
}

func zombieDisableCLI(policies []model.Policy, lookbackDays int) string {
	var b strings.Builder
	b.WriteString("config firewall policy\n")
	for _, p := range policies {
		fmt.Fprintf(&b, "    edit %s\n    set status disable\n    set comments \"DISABLED - Unused for %d days\"\n    next\n", p.PolicyID, lookbackDays)
	}
	b.WriteString("end")
	return b.String()
}

// leastPrivilege audits permissive accept policies against what they
// actually carried, suggesting narrow replacements.
func leastPrivilege(deviceID string, policies []model.Policy, logs LogAggregator, since time.Time, t Thresholds) ([]model.Recommendation, error) {
	var open []model.Policy
	for _, p := range policies {
		if !p.Enabled() || !p.Accepts() {
			continue
		}
		if HasWildcardService(p.Services) || HasWildcard(p.DisplayDstAddr()) {
			open = append(open, p)
		}
	}

	var findings []model.Recommendation
	var overflow []string
	detailed := 0

	for _, p := range open {
		pid, err := strconv.ParseInt(p.PolicyID, 10, 64)
		if err != nil {
			continue
		}
		flows, err := logs.PolicyFlows(deviceID, pid, since, t.PolicyFlowLimit)
		if err != nil {
			return nil, fmt.Errorf("least privilege for policy %s: %w", p.PolicyID, err)
		}

		if len(flows) == 0 {
			findings = append(findings, model.Recommendation{
				DeviceID:        deviceID,
				Category:        model.CategoryOptimizePolicy,
				Severity:        model.SeverityLow,
				Title:           fmt.Sprintf("Open policy without traffic: %s", p.PolicyID),
				Description:     fmt.Sprintf("Policy %s (%q) allows broad traffic but matched no logs in the lookback window.", p.PolicyID, p.Name),
				Recommendation:  "Disable or remove the policy if it is no longer needed.",
				RelatedPolicyID: p.PolicyID,
				RelatedVDOM:     p.VDOM,
				CLIRemediation:  zombieDisableCLI([]model.Policy{p}, t.LookbackDays),
			})
			continue
		}

		if detailed >= t.MaxDetailedFindings {
			overflow = append(overflow, p.PolicyID)
			continue
		}
		detailed++
		findings = append(findings, leastPrivilegeFinding(deviceID, p, flows, t))
	}

	if len(overflow) > 0 {
		findings = append(findings, model.Recommendation{
			DeviceID:       deviceID,
			Category:       model.CategoryOptimizePolicy,
			Severity:       model.SeverityCritical,
			Title:          fmt.Sprintf("%d more open policies carry live traffic", len(overflow)),
			Description:    fmt.Sprintf("Detailed analysis was capped at %d policies this run. Also permissive with observed traffic: %s.", t.MaxDetailedFindings, strings.Join(overflow, ", ")),
			Recommendation: "Re-run the analysis after remediating the detailed findings, or review the listed policies manually.",
			AffectedCount:  len(overflow),
			Evidence:       model.JSONMap{"policy_ids": overflow},
		})
	}
	return findings, nil
}

func leastPrivilegeFinding(deviceID string, p model.Policy, flows []model.FlowAggregate, t Thresholds) model.Recommendation {
	summary := make([]string, 0, len(flows))
	var rules strings.Builder
	for i, f := range flows {
		label := flowServiceLabel(f)
		summary = append(summary, fmt.Sprintf("%s -> %s (%s)", f.SrcIP, f.DstIP, label))

		if i < t.MaxReplacementRules {
			fmt.Fprintf(&rules, `
    edit 0
        set name "ZT_%s_Rule%d"
        set srcintf %s
        set dstintf %s
        set srcaddr "%s"
        set dstaddr "%s"
        set service "%s"
        set schedule "always"
        set action accept
        set comments "Extracted from Policy %s"
    next`,
				p.PolicyID, i+1,
				quoteList(p.SrcIntf), quoteList(p.DstIntf),
				netutil.HostCIDR(f.SrcIP), netutil.HostCIDR(f.DstIP),
				label, p.PolicyID)
		}
	}

	cli := fmt.Sprintf("config firewall policy%s\n    edit %s\n        set status disable\n        set comments \"Disabled: Replaced by specific ZT rules\"\n    next\nend",
		rules.String(), p.PolicyID)

	top := flows[0]
	topLabel := flowServiceLabel(top)

	preview := summary
	if len(preview) > 3 {
		preview = preview[:3]
	}
	return model.Recommendation{
		DeviceID:        deviceID,
		Category:        model.CategoryOptimizePolicy,
		Severity:        model.SeverityHigh,
		Title:           fmt.Sprintf("Restrict open policy: %s", p.PolicyID),
		Description:     fmt.Sprintf("Policy %s (%q) is overly permissive; %d distinct flows observed.", p.PolicyID, p.Name, len(flows)),
		Recommendation:  fmt.Sprintf("Replace policy %s with %d specific rules. Main flows: %s.", p.PolicyID, len(flows), strings.Join(preview, ", ")),
		RelatedPolicyID: p.PolicyID,
		RelatedVDOM:     p.VDOM,
		AffectedCount:   len(flows),
		CLIRemediation:  cli,
		SuggestedPolicy: &model.SuggestedPolicy{
			SrcAddr: top.SrcIP,
			DstAddr: top.DstIP,
			SrcIntf: strings.Join(p.SrcIntf, " "),
			DstIntf: strings.Join(p.DstIntf, " "),
			Service: topLabel,
			Action:  "ACCEPT",
		},
		Evidence: model.JSONMap{"flows": summary},
	}
}

// noisyDenies surfaces denied flow groups above the occurrence threshold.
// Advisory only: the operator decides whether the flow is a missing
// policy or an attack.
func noisyDenies(deviceID string, logs LogAggregator, since time.Time, t Thresholds) ([]model.Recommendation, error) {
	flows, err := logs.TopDeniedFlows(deviceID, since, t.MinDenyOccurrences, t.TopDeniedFlows)
	if err != nil {
		return nil, fmt.Errorf("noisy deny detection: %w", err)
	}

	findings := make([]model.Recommendation, 0, len(flows))
	for _, f := range flows {
		label := flowServiceLabel(f)

		rec := model.Recommendation{
			DeviceID:       deviceID,
			Category:       model.CategoryTraffic,
			Severity:       model.SeverityLow,
			Title:          fmt.Sprintf("Frequent blocked traffic: %s -> %s (%s)", f.SrcIP, f.DstIP, label),
			Description:    fmt.Sprintf("%d blocks from %s to %s on %s.", f.Count, f.SrcIP, f.DstIP, label),
			Recommendation: "Verify whether this flow is legitimate and needs an access policy, or is an unauthorized access attempt.",
			AffectedCount:  int(f.Count),
			Evidence: model.JSONMap{
				"src_ip":  f.SrcIP,
				"dst_ip":  f.DstIP,
				"service": label,
				"count":   f.Count,
			},
		}

		// Internal-to-internal flows get a ready-made least-privilege
		// policy; anything crossing the perimeter stays manual.
		if netutil.IsPrivate(f.SrcIP) && netutil.IsPrivate(f.DstIP) {
			rec.SuggestedPolicy = &model.SuggestedPolicy{
				SrcAddr: f.SrcIP,
				DstAddr: f.DstIP,
				Service: label,
				Action:  "ACCEPT",
			}
			rec.CLIRemediation = fmt.Sprintf(`config firewall policy
    edit 0
        set name "ZT_Allow_%s"
        set srcaddr "%s"
        set dstaddr "%s"
        set service "%s"
        set action accept
        set schedule "always"
        set logtraffic all
        set comments "Zero Trust: %d blocks detected"
    next
end`, label, netutil.HostCIDR(f.SrcIP), netutil.HostCIDR(f.DstIP), label, f.Count)
		}
		findings = append(findings, rec)
	}
	return findings, nil
}

// flowServiceLabel names a flow for display: the logged service when
// present, otherwise the well-known name of its protocol and port.
// Flows without a protocol column are assumed TCP.
func flowServiceLabel(f model.FlowAggregate) string {
	if f.Service != "" && !strings.EqualFold(f.Service, "unknown") {
		return f.Service
	}
	proto := "tcp"
	if f.Protocol != 0 {
		proto = parser.ProtocolName(f.Protocol)
	}
	return wellknown.FlowLabel(proto, f.DstPort)
}

func quoteList(items []string) string {
	if len(items) == 0 {
		return `"any"`
	}
	quoted := make([]string, 0, len(items))
	for _, item := range items {
		quoted = append(quoted, `"`+item+`"`)
	}
	return strings.Join(quoted, " ")
}
