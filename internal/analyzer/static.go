package analyzer

import (
	"fmt"
	"strings"

	"firewall-policy-auditor/internal/model"
)

// StaticAnalysis audits policy definitions against best practices.
// It needs no traffic data: everything it flags is visible in the
// configuration alone. Disabled policies are skipped.
func StaticAnalysis(deviceID string, policies []model.Policy) []model.Recommendation {
	var findings []model.Recommendation

	var enabled []model.Policy
	for _, p := range policies {
		if p.Enabled() {
			enabled = append(enabled, p)
		}
	}

	for _, p := range enabled {
		anySrc := HasWildcard(p.SrcAddr)
		anyDst := HasWildcard(p.DisplayDstAddr())
		anySvc := HasWildcardService(p.Services)
		anySrcIntf := HasWildcard(p.SrcIntf)

		if !p.Accepts() {
			continue
		}

		switch {
		case anySrc && anyDst && anySvc:
			findings = append(findings, model.Recommendation{
				DeviceID:        deviceID,
				Category:        model.CategorySecurityAudit,
				Severity:        model.SeverityCritical,
				Title:           fmt.Sprintf("Policy %s fully open (Any/Any/ALL)", p.PolicyID),
				Description:     fmt.Sprintf("Policy %s accepts all traffic: source all, destination all, service ALL.", p.PolicyID),
				Recommendation:  "Restrict source, destination and services.",
				RelatedPolicyID: p.PolicyID,
				RelatedVDOM:     p.VDOM,
				CLIRemediation:  permissiveRemediationCLI(p.PolicyID),
			})
		case anySrc && anySvc:
			findings = append(findings, model.Recommendation{
				DeviceID:        deviceID,
				Category:        model.CategorySecurityAudit,
				Severity:        model.SeverityHigh,
				Title:           fmt.Sprintf("Policy %s exposed (source ALL + service ALL)", p.PolicyID),
				Description:     "Accepts traffic from any source address over any service.",
				Recommendation:  "Restrict at least the allowed services.",
				RelatedPolicyID: p.PolicyID,
				RelatedVDOM:     p.VDOM,
				CLIRemediation:  permissiveRemediationCLI(p.PolicyID),
			})
		}

		if anySrcIntf {
			findings = append(findings, model.Recommendation{
				DeviceID:        deviceID,
				Category:        model.CategorySecurityAudit,
				Severity:        model.SeverityMedium,
				Title:           fmt.Sprintf("Policy %s uses interface \"any\" on source", p.PolicyID),
				Description:     "Wildcard interfaces bypass zone segmentation and reduce visibility.",
				Recommendation:  "Bind the policy to specific interfaces or zones.",
				RelatedPolicyID: p.PolicyID,
				RelatedVDOM:     p.VDOM,
			})
		}
	}

	findings = append(findings, duplicateFindings(deviceID, enabled)...)
	findings = append(findings, uninspectedFindings(deviceID, enabled)...)
	return findings
}

// uninspectedFindings summarizes accept policies carrying no IPS, AV or
// SSL inspection profile. One informational finding for the whole set;
// per-policy findings would drown the queue on appliances that never
// licensed UTM.
func uninspectedFindings(deviceID string, enabled []model.Policy) []model.Recommendation {
	var ids []string
	for _, p := range enabled {
		if p.Accepts() && !p.RawAttrs.HasSecurityProfiles() {
			ids = append(ids, p.PolicyID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	return []model.Recommendation{{
		DeviceID:       deviceID,
		Category:       model.CategorySecurityAudit,
		Severity:       model.SeverityInfo,
		Title:          fmt.Sprintf("%d accept policies without inspection profiles", len(ids)),
		Description:    fmt.Sprintf("Policies %s accept traffic with no IPS, antivirus or SSL inspection profile assigned.", strings.Join(ids, ", ")),
		Recommendation: "Assign security profiles to accept policies carrying untrusted traffic.",
		AffectedCount:  len(ids),
		Evidence:       model.JSONMap{"policy_ids": ids},
	}}
}

// duplicateFindings flags same-VDOM policies with identical rule
// signatures. Cross-VDOM duplicates are the VDOM analyzer's concern.
func duplicateFindings(deviceID string, enabled []model.Policy) []model.Recommendation {
	var findings []model.Recommendation
	for _, g := range GroupBySignature(enabled, GroupOptions{IncludeNAT: true}) {
		ids := g.PolicyIDs()
		findings = append(findings, model.Recommendation{
			DeviceID:       deviceID,
			Category:       model.CategoryOptimization,
			Severity:       model.SeverityMedium,
			Title:          fmt.Sprintf("Duplicate policies in VDOM %s: %s", g.Signature.VDOM, strings.Join(ids, ", ")),
			Description:    fmt.Sprintf("%d policies share the rule (%s -> %s, Svc: %s, Action: %s).", len(ids), g.Signature.SrcAddr, g.Signature.DstAddr, g.Signature.Service, g.Signature.Action),
			Recommendation: "Consolidate into a single policy; the shadowed duplicates never match traffic.",
			RelatedVDOM:    g.Signature.VDOM,
			AffectedCount:  len(ids),
			Evidence: model.JSONMap{
				"policy_ids": ids,
				"signature": model.JSONMap{
					"src_addr": g.Signature.SrcAddr,
					"dst_addr": g.Signature.DstAddr,
					"service":  g.Signature.Service,
					"action":   g.Signature.Action,
				},
			},
		})
	}
	return findings
}

func permissiveRemediationCLI(policyID string) string {
	return fmt.Sprintf(`config firewall policy
    edit %s
    set comments "AUDIT: Detected as overly permissive"
    # Suggestion:
    # set srcaddr "specific-group"
    # set service "HTTP" "HTTPS"
    next
end`, policyID)
}
