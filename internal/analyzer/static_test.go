package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firewall-policy-auditor/internal/model"
)

func policy(vdom, id, action string, src, dst, svc []string) model.Policy {
	return model.Policy{
		DeviceID: "dev-1",
		VDOM:     vdom,
		PolicyID: id,
		Action:   action,
		SrcIntf:  model.StringList{"port1"},
		DstIntf:  model.StringList{"port2"},
		SrcAddr:  src,
		DstAddr:  dst,
		Services: svc,
	}
}

func TestStaticAnalysisSeverities(t *testing.T) {
	tests := []struct {
		name     string
		policy   model.Policy
		severity string
	}{
		{
			name:     "fully open",
			policy:   policy("root", "1", "accept", []string{"all"}, []string{"all"}, []string{"ALL"}),
			severity: model.SeverityCritical,
		},
		{
			name:     "open source and service",
			policy:   policy("root", "2", "accept", []string{"all"}, []string{"web-servers"}, []string{"ALL"}),
			severity: model.SeverityHigh,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			findings := StaticAnalysis("dev-1", []model.Policy{tt.policy})
			// The permissive finding plus the no-inspection summary.
			require.Len(t, findings, 2)
			assert.Equal(t, tt.severity, findings[0].Severity)
			assert.Equal(t, model.CategorySecurityAudit, findings[0].Category)
			assert.Equal(t, tt.policy.PolicyID, findings[0].RelatedPolicyID)
		})
	}
}

func TestStaticAnalysisWildcardInterfaceIsIndependent(t *testing.T) {
	p := policy("root", "5", "accept", []string{"all"}, []string{"all"}, []string{"ALL"})
	p.SrcIntf = model.StringList{"any"}

	findings := StaticAnalysis("dev-1", []model.Policy{p})
	require.Len(t, findings, 3)
	assert.Equal(t, model.SeverityCritical, findings[0].Severity)
	assert.Equal(t, model.SeverityMedium, findings[1].Severity)
	assert.Equal(t, model.SeverityInfo, findings[2].Severity)
}

func TestStaticAnalysisSkipsDisabledAndDenies(t *testing.T) {
	disabled := policy("root", "1", "accept", []string{"all"}, []string{"all"}, []string{"ALL"})
	disabled.Status = "disable"
	deny := policy("root", "2", "deny", []string{"all"}, []string{"all"}, []string{"ALL"})

	assert.Empty(t, StaticAnalysis("dev-1", []model.Policy{disabled, deny}))
}

func TestStaticAnalysisDuplicates(t *testing.T) {
	a := policy("root", "10", "accept", []string{"lan-net"}, []string{"web-servers"}, []string{"HTTPS"})
	b := policy("root", "11", "accept", []string{"lan-net"}, []string{"web-servers"}, []string{"HTTPS"})
	// Same rule in another VDOM must not join the group.
	c := policy("dmz", "12", "accept", []string{"lan-net"}, []string{"web-servers"}, []string{"HTTPS"})

	findings := StaticAnalysis("dev-1", []model.Policy{a, b, c})
	require.Len(t, findings, 2)
	assert.Equal(t, model.CategoryOptimization, findings[0].Category)
	assert.Equal(t, 2, findings[0].AffectedCount)
	assert.Equal(t, "root", findings[0].RelatedVDOM)
}

func TestUninspectedAcceptPolicies(t *testing.T) {
	plain := policy("root", "1", "accept", []string{"lan-net"}, []string{"web-servers"}, []string{"HTTPS"})
	protected := policy("root", "2", "accept", []string{"lan-net"}, []string{"web-servers"}, []string{"HTTPS"})
	protected.RawAttrs = model.RawAttrs{model.AttrIPSSensor: "default"}
	deny := policy("root", "3", "deny", []string{"all"}, []string{"all"}, []string{"ALL"})

	findings := uninspectedFindings("dev-1", []model.Policy{plain, protected, deny})
	require.Len(t, findings, 1)
	assert.Equal(t, model.SeverityInfo, findings[0].Severity)
	assert.Equal(t, 1, findings[0].AffectedCount)
	assert.Equal(t, []string{"1"}, findings[0].Evidence["policy_ids"])
}

func TestHasWildcard(t *testing.T) {
	tests := []struct {
		values []string
		want   bool
	}{
		{[]string{"all"}, true},
		{[]string{"Any"}, true},
		{[]string{"0.0.0.0/0"}, true},
		{[]string{"lan-net", " ALL "}, true},
		{[]string{"lan-net", "web-servers"}, false},
		{nil, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HasWildcard(tt.values), "values %v", tt.values)
	}
}

func TestHasWildcardServiceAcceptsAlways(t *testing.T) {
	assert.True(t, HasWildcardService([]string{"always"}))
	assert.False(t, HasWildcard([]string{"always"}))
}

func TestGroupBySignatureIgnoresListOrder(t *testing.T) {
	a := policy("root", "1", "accept", []string{"net-a", "net-b"}, []string{"all"}, []string{"HTTP", "HTTPS"})
	b := policy("root", "2", "ACCEPT", []string{"net-b", "net-a"}, []string{"all"}, []string{"https", "http"})

	groups := GroupBySignature([]model.Policy{a, b}, GroupOptions{})
	require.Len(t, groups, 1)
	assert.Equal(t, []string{"1", "2"}, groups[0].PolicyIDs())
}

func TestGroupBySignatureNATSplit(t *testing.T) {
	a := policy("root", "1", "accept", []string{"lan"}, []string{"all"}, []string{"ALL"})
	a.NAT = "Enabled"
	b := policy("root", "2", "accept", []string{"lan"}, []string{"all"}, []string{"ALL"})
	b.NAT = "Disabled"

	assert.Len(t, GroupBySignature([]model.Policy{a, b}, GroupOptions{}), 1)
	assert.Empty(t, GroupBySignature([]model.Policy{a, b}, GroupOptions{IncludeNAT: true}))
}

func TestGroupBySignatureSplitsOnInterfacePair(t *testing.T) {
	a := policy("root", "1", "accept", []string{"lan"}, []string{"all"}, []string{"ALL"})
	b := policy("root", "2", "accept", []string{"lan"}, []string{"all"}, []string{"ALL"})
	b.SrcIntf = model.StringList{"port3"}
	b.DstIntf = model.StringList{"port4"}

	// Same rule on a disjoint interface pair is not a duplicate.
	assert.Empty(t, GroupBySignature([]model.Policy{a, b}, GroupOptions{}))

	// Shadow detection compares rule content only.
	assert.Len(t, GroupBySignature([]model.Policy{a, b}, GroupOptions{IgnoreScope: true}), 1)
}

func TestGroupBySignatureScope(t *testing.T) {
	a := policy("root", "1", "accept", []string{"lan"}, []string{"all"}, []string{"ALL"})
	b := policy("dmz", "2", "accept", []string{"lan"}, []string{"all"}, []string{"ALL"})

	assert.Empty(t, GroupBySignature([]model.Policy{a, b}, GroupOptions{}))

	groups := GroupBySignature([]model.Policy{a, b}, GroupOptions{IgnoreScope: true})
	require.Len(t, groups, 1)
	assert.Equal(t, []string{"dmz", "root"}, groups[0].VDOMs())
}
