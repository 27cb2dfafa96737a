package analyzer

import (
	"sort"
	"strings"

	"firewall-policy-auditor/internal/model"
)

// GroupOptions controls how policy signatures are built.
type GroupOptions struct {
	// IgnoreScope drops the VDOM and the interface pair from the
	// signature so identical rules in different VDOMs land in the same
	// group (shadow-policy detection). Interface names are scoped to
	// their VDOM, so they only discriminate for same-VDOM grouping.
	IgnoreScope bool
	// IncludeNAT adds the NAT flag to the signature, splitting otherwise
	// identical rules that differ only in NAT.
	IncludeNAT bool
}

// Signature is the matching key of a policy group.
type Signature struct {
	VDOM    string // empty when scope is ignored
	SrcIntf string // empty when scope is ignored
	DstIntf string // empty when scope is ignored
	SrcAddr string
	DstAddr string
	Service string
	Action  string
	NAT     string // empty unless IncludeNAT
}

// PolicyGroup is a set of policies sharing one signature.
type PolicyGroup struct {
	Signature Signature
	Policies  []model.Policy
}

// VDOMs returns the distinct VDOM names in the group, sorted.
func (g *PolicyGroup) VDOMs() []string {
	seen := make(map[string]bool)
	for _, p := range g.Policies {
		seen[p.VDOM] = true
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PolicyIDs returns the policy ids in the group, in input order.
func (g *PolicyGroup) PolicyIDs() []string {
	ids := make([]string, 0, len(g.Policies))
	for _, p := range g.Policies {
		ids = append(ids, p.PolicyID)
	}
	return ids
}

// GroupBySignature buckets policies by their normalized rule signature
// and returns only groups holding two or more, in deterministic order.
// The destination side prefers the export's display list when present,
// matching what an operator comparing rules in the UI would see.
func GroupBySignature(policies []model.Policy, opts GroupOptions) []PolicyGroup {
	groups := make(map[Signature]*PolicyGroup)
	var order []Signature

	for _, p := range policies {
		sig := Signature{
			SrcAddr: signatureList(p.SrcAddr),
			DstAddr: signatureList(p.DisplayDstAddr()),
			Service: signatureList(p.Services),
			Action:  strings.ToLower(strings.TrimSpace(p.Action)),
		}
		if !opts.IgnoreScope {
			sig.VDOM = p.VDOM
			sig.SrcIntf = signatureList(p.SrcIntf)
			sig.DstIntf = signatureList(p.DstIntf)
		}
		if opts.IncludeNAT {
			sig.NAT = p.NAT
		}

		g, ok := groups[sig]
		if !ok {
			g = &PolicyGroup{Signature: sig}
			groups[sig] = g
			order = append(order, sig)
		}
		g.Policies = append(g.Policies, p)
	}

	var out []PolicyGroup
	for _, sig := range order {
		if g := groups[sig]; len(g.Policies) >= 2 {
			out = append(out, *g)
		}
	}
	return out
}

func signatureList(items []string) string {
	normalized := make([]string, 0, len(items))
	for _, item := range items {
		normalized = append(normalized, strings.ToLower(strings.TrimSpace(item)))
	}
	sort.Strings(normalized)
	return strings.Join(normalized, ", ")
}
