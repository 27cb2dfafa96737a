package analyzer

import (
	"fmt"
	"sort"
	"strings"

	"firewall-policy-auditor/internal/model"
)

// Interfaces that legitimately carry no policies. Flagging these would
// only add noise.
var orphanAllowlist = map[string]struct{}{
	"loopback": {},
	"mgmt":     {},
	"ha":       {},
	"ssl.root": {},
	"any":      {},
}

const orphanSummarizeAfter = 5

// VDOMAnalysis correlates policies and interfaces across VDOMs: shadow
// policies duplicated between VDOMs, interfaces no policy references,
// and unguarded inter-VDOM links.
func VDOMAnalysis(deviceID string, policies []model.Policy, interfaces []model.Interface, vdoms []model.VDOM) []model.Recommendation {
	var enabled []model.Policy
	for _, p := range policies {
		if p.Enabled() {
			enabled = append(enabled, p)
		}
	}

	var findings []model.Recommendation
	findings = append(findings, shadowPolicyFindings(deviceID, enabled)...)
	findings = append(findings, orphanInterfaceFindings(deviceID, enabled, interfaces)...)
	findings = append(findings, vdomLeakFindings(deviceID, enabled, interfaces, vdoms)...)
	return findings
}

// shadowPolicyFindings flags rule signatures that repeat across VDOMs.
// Duplicated rules usually mean a copy-paste migration that should have
// become a shared object or a consolidated policy.
func shadowPolicyFindings(deviceID string, enabled []model.Policy) []model.Recommendation {
	var findings []model.Recommendation
	for _, g := range GroupBySignature(enabled, GroupOptions{IgnoreScope: true}) {
		vdoms := g.VDOMs()
		if len(vdoms) < 2 {
			continue
		}
		ids := g.PolicyIDs()
		findings = append(findings, model.Recommendation{
			DeviceID:       deviceID,
			Category:       model.CategoryVDOMAudit,
			Severity:       model.SeverityHigh,
			Title:          fmt.Sprintf("Shadow policy across VDOMs: %s", strings.Join(vdoms, ", ")),
			Description:    fmt.Sprintf("%d policies (%s) share the rule (%s -> %s, Svc: %s) in separate VDOMs.", len(ids), strings.Join(ids, ", "), g.Signature.SrcAddr, g.Signature.DstAddr, g.Signature.Service),
			Recommendation: "Decide which VDOM owns this traffic and remove the duplicates, or document why each VDOM needs its own copy.",
			AffectedCount:  len(ids),
			Evidence: model.JSONMap{
				"policy_ids": ids,
				"vdoms":      vdoms,
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

// orphanInterfaceFindings flags interfaces no enabled policy references.
// A handful gets individual findings; larger sets collapse into one
// summary so a freshly imported device does not flood the queue.
func orphanInterfaceFindings(deviceID string, enabled []model.Policy, interfaces []model.Interface) []model.Recommendation {
	referenced := referencedInterfaces(enabled)

	var orphans []model.Interface
	for _, iface := range interfaces {
		name := strings.ToLower(iface.Name)
		if _, ok := orphanAllowlist[name]; ok {
			continue
		}
		if _, ok := referenced[name]; ok {
			continue
		}
		orphans = append(orphans, iface)
	}
	if len(orphans) == 0 {
		return nil
	}

	if len(orphans) > orphanSummarizeAfter {
		names := make([]string, 0, len(orphans))
		for _, iface := range orphans {
			names = append(names, iface.Name)
		}
		sort.Strings(names)
		return []model.Recommendation{{
			DeviceID:       deviceID,
			Category:       model.CategoryVDOMAudit,
			Severity:       model.SeverityMedium,
			Title:          fmt.Sprintf("%d interfaces without policies", len(orphans)),
			Description:    fmt.Sprintf("No enabled policy references these interfaces: %s.", strings.Join(names, ", ")),
			Recommendation: "Shut down unused interfaces or assign explicit policies to the ones in service.",
			AffectedCount:  len(orphans),
			Evidence:       model.JSONMap{"interfaces": names},
		}}
	}

	findings := make([]model.Recommendation, 0, len(orphans))
	for _, iface := range orphans {
		findings = append(findings, model.Recommendation{
			DeviceID:       deviceID,
			Category:       model.CategoryVDOMAudit,
			Severity:       model.SeverityLow,
			Title:          fmt.Sprintf("Interface %q has no policies", iface.Name),
			Description:    fmt.Sprintf("Interface %s (type %s, VDOM %s) is not referenced by any enabled policy.", iface.Name, iface.Type, iface.VDOM),
			Recommendation: "Shut the interface down if unused; traffic on an unpoliced interface is invisible to the ruleset.",
			RelatedVDOM:    iface.VDOM,
		})
	}
	return findings
}

// vdomLeakFindings audits inter-VDOM link interfaces. A link with no
// policies at all is an unfiltered bridge between security domains; a
// link carrying a wildcard policy is barely better.
func vdomLeakFindings(deviceID string, enabled []model.Policy, interfaces []model.Interface, vdoms []model.VDOM) []model.Recommendation {
	if len(vdoms) < 2 {
		return nil
	}

	var findings []model.Recommendation
	for _, iface := range interfaces {
		if !isVDOMLink(iface) {
			continue
		}
		name := strings.ToLower(iface.Name)

		var crossing []model.Policy
		for _, p := range enabled {
			if listContainsFold(p.SrcIntf, name) || listContainsFold(p.DstIntf, name) {
				crossing = append(crossing, p)
			}
		}

		if len(crossing) == 0 {
			findings = append(findings, model.Recommendation{
				DeviceID:       deviceID,
				Category:       model.CategoryVDOMAudit,
				Severity:       model.SeverityCritical,
				Title:          fmt.Sprintf("Unfiltered inter-VDOM link: %s", iface.Name),
				Description:    fmt.Sprintf("Link interface %s connects VDOMs but no policy inspects its traffic.", iface.Name),
				Recommendation: "Add explicit policies on the link, or remove it if the VDOMs must stay isolated.",
				RelatedVDOM:    iface.VDOM,
			})
			continue
		}

		for _, p := range crossing {
			if HasWildcard(p.SrcAddr) && HasWildcard(p.DisplayDstAddr()) && p.Accepts() {
				findings = append(findings, model.Recommendation{
					DeviceID:        deviceID,
					Category:        model.CategoryVDOMAudit,
					Severity:        model.SeverityHigh,
					Title:           fmt.Sprintf("Wide-open inter-VDOM policy %s on %s", p.PolicyID, iface.Name),
					Description:     fmt.Sprintf("Policy %s allows any source to any destination across link %s, collapsing the isolation between VDOMs.", p.PolicyID, iface.Name),
					Recommendation:  "Restrict the source and destination addresses on the inter-VDOM policy.",
					RelatedPolicyID: p.PolicyID,
					RelatedVDOM:     p.VDOM,
					CLIRemediation:  permissiveRemediationCLI(p.PolicyID),
				})
			}
		}
	}
	return findings
}

func isVDOMLink(iface model.Interface) bool {
	if strings.EqualFold(iface.Type, "vdom-link") {
		return true
	}
	name := strings.ToLower(iface.Name)
	return strings.Contains(name, "vdom") || strings.Contains(name, "npu") || strings.Contains(name, "vlink")
}

func referencedInterfaces(policies []model.Policy) map[string]struct{} {
	refs := make(map[string]struct{})
	for _, p := range policies {
		for _, name := range p.SrcIntf {
			refs[strings.ToLower(strings.TrimSpace(name))] = struct{}{}
		}
		for _, name := range p.DstIntf {
			refs[strings.ToLower(strings.TrimSpace(name))] = struct{}{}
		}
	}
	return refs
}

func listContainsFold(items []string, target string) bool {
	for _, item := range items {
		if strings.EqualFold(strings.TrimSpace(item), target) {
			return true
		}
	}
	return false
}
