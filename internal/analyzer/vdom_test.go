package analyzer

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firewall-policy-auditor/internal/model"
)

func iface(name, vdom, ifType string) model.Interface {
	return model.Interface{DeviceID: "dev-1", Name: name, VDOM: vdom, Type: ifType, Status: "up"}
}

func twoVDOMs() []model.VDOM {
	return []model.VDOM{
		{DeviceID: "dev-1", Name: "root"},
		{DeviceID: "dev-1", Name: "dmz"},
	}
}

func TestShadowPolicyAcrossVDOMs(t *testing.T) {
	a := policy("root", "1", "accept", []string{"lan-net"}, []string{"web-servers"}, []string{"HTTPS"})
	b := policy("dmz", "2", "accept", []string{"lan-net"}, []string{"web-servers"}, []string{"HTTPS"})

	findings := shadowPolicyFindings("dev-1", []model.Policy{a, b})
	require.Len(t, findings, 1)
	assert.Equal(t, model.CategoryVDOMAudit, findings[0].Category)
	assert.Equal(t, model.SeverityHigh, findings[0].Severity)
	assert.Equal(t, []string{"dmz", "root"}, findings[0].Evidence["vdoms"])
}

func TestShadowPolicyIgnoresSameVDOMDuplicates(t *testing.T) {
	a := policy("root", "1", "accept", []string{"lan-net"}, []string{"web-servers"}, []string{"HTTPS"})
	b := policy("root", "2", "accept", []string{"lan-net"}, []string{"web-servers"}, []string{"HTTPS"})
	assert.Empty(t, shadowPolicyFindings("dev-1", []model.Policy{a, b}))
}

func TestOrphanInterfacesIndividual(t *testing.T) {
	p := policy("root", "1", "accept", []string{"port1"}, []string{"all"}, []string{"ALL"})
	p.DstIntf = model.StringList{"port2"}
	interfaces := []model.Interface{
		iface("port1", "root", "physical"),
		iface("port2", "root", "physical"),
		iface("port3", "root", "physical"),
		iface("mgmt", "root", "physical"), // allowlisted
	}

	findings := orphanInterfaceFindings("dev-1", []model.Policy{p}, interfaces)
	require.Len(t, findings, 1)
	assert.Equal(t, model.SeverityLow, findings[0].Severity)
	assert.Contains(t, findings[0].Title, "port3")
	assert.Equal(t, "root", findings[0].RelatedVDOM)
}

func TestOrphanInterfacesSummarized(t *testing.T) {
	var interfaces []model.Interface
	for i := 1; i <= 7; i++ {
		interfaces = append(interfaces, iface(fmt.Sprintf("port%d", i), "root", "physical"))
	}

	findings := orphanInterfaceFindings("dev-1", nil, interfaces)
	require.Len(t, findings, 1)
	assert.Equal(t, model.SeverityMedium, findings[0].Severity)
	assert.Equal(t, 7, findings[0].AffectedCount)
	assert.Contains(t, findings[0].Description, "port1")
}

func TestVDOMLeakUnfilteredLink(t *testing.T) {
	interfaces := []model.Interface{iface("vdom-link0", "root", "vdom-link")}

	findings := vdomLeakFindings("dev-1", nil, interfaces, twoVDOMs())
	require.Len(t, findings, 1)
	assert.Equal(t, model.SeverityCritical, findings[0].Severity)
	assert.Contains(t, findings[0].Title, "vdom-link0")
}

func TestVDOMLeakWildcardPolicyOnLink(t *testing.T) {
	p := policy("root", "9", "accept", []string{"all"}, []string{"all"}, []string{"ALL"})
	p.SrcIntf = model.StringList{"npu0_vlink0"}
	interfaces := []model.Interface{iface("npu0_vlink0", "root", "physical")}

	findings := vdomLeakFindings("dev-1", []model.Policy{p}, interfaces, twoVDOMs())
	require.Len(t, findings, 1)
	assert.Equal(t, model.SeverityHigh, findings[0].Severity)
	assert.Equal(t, "9", findings[0].RelatedPolicyID)
}

func TestVDOMLeakGuardedLinkIsClean(t *testing.T) {
	p := policy("root", "9", "accept", []string{"lan-net"}, []string{"web-servers"}, []string{"HTTPS"})
	p.SrcIntf = model.StringList{"vdom-link0"}
	interfaces := []model.Interface{iface("vdom-link0", "root", "vdom-link")}

	assert.Empty(t, vdomLeakFindings("dev-1", []model.Policy{p}, interfaces, twoVDOMs()))
}

func TestVDOMLeakNeedsMultipleVDOMs(t *testing.T) {
	interfaces := []model.Interface{iface("vdom-link0", "root", "vdom-link")}
	vdoms := []model.VDOM{{DeviceID: "dev-1", Name: "root"}}
	assert.Empty(t, vdomLeakFindings("dev-1", nil, interfaces, vdoms))
}
