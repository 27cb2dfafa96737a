package parser

import (
	"testing"
)

const sampleConfig = `#config-version=FG200F-7.4.8-FW-build2795-250523:opmode=0:vdom=1
#global_vdom=0:vd_name=root/root
config system global
    set hostname "FW-EDGE-01"
    set timezone "US/Eastern"
    set admintimeout 30
end
config system ha
    set mode a-p
    set group-name "edge-cluster"
    set group-id 12
    set hbdev "ha1" 50
    set override enable
    set serial "FG200FT921904710"
end
config vdom
edit root
next
edit dmz
next
end
config system interface
    edit "port1"
        set vdom "root"
        set ip 192.0.2.1 255.255.255.0
        set allowaccess ping https ssh
        set alias "uplink"
        set role wan
    next
    edit "vlan100"
        set vdom "dmz"
        set vlanid 100
    next
    edit "npu0_vlink0"
        set vdom "root"
    next
end
config firewall address
    edit "all"
        set subnet 0.0.0.0 0.0.0.0
    next
    edit "web-servers"
        set type iprange
        set start-ip 10.0.1.10
        set end-ip 10.0.1.20
        set comment "DMZ web tier"
    next
end
config firewall addrgrp
    edit "server-group"
        set member "web-servers" "all"
    next
end
config firewall service custom
    edit "WEB-8443"
        set tcp-portrange 8443
    next
end
config firewall service group
    edit "web-services"
        set member "WEB-8443" "HTTPS"
    next
end
config firewall policy
    edit 1
        set name "allow web"
        set uuid 8e7c47aa-1f2d-51ee-9d00-ffa0e1a8b5c2
        set srcintf "port1"
        set dstintf "vlan100"
        set srcaddr "all"
        set dstaddr "web-servers"
        set service "HTTPS" "WEB-8443"
        set action accept
        set nat enable
        set schedule "always"
    next
    edit 2
        set srcintf "port1"
        set dstintf "vlan100"
        set action deny
        set status disable
    next
end
`

func TestParseConfigHeader(t *testing.T) {
	doc := ParseConfig(sampleConfig)

	if doc.Firmware != "FG200F-7.4.8-FW-build2795-250523:opmode=0:vdom=1" {
		t.Errorf("firmware = %q", doc.Firmware)
	}
	if doc.Hostname != "FW-EDGE-01" {
		t.Errorf("hostname = %q", doc.Hostname)
	}
	if doc.Serial == nil || *doc.Serial != "FG200FT921904710" {
		t.Errorf("serial = %v, want HA serial fallback", doc.Serial)
	}
	if doc.System["timezone"] != "US/Eastern" {
		t.Errorf("timezone = %q", doc.System["timezone"])
	}
	if !doc.HA.Enabled || doc.HA.Mode != "a-p" || doc.HA.GroupID != 12 {
		t.Errorf("ha = %+v", doc.HA)
	}
	if doc.HA.HeartbeatDevice != "ha1" {
		t.Errorf("hbdev = %q", doc.HA.HeartbeatDevice)
	}
}

func TestParseConfigSerialAbsent(t *testing.T) {
	doc := ParseConfig("config system global\n    set hostname \"fw\"\nend\n")
	if doc.Serial != nil {
		t.Errorf("serial = %q, want nil when the dump has none", *doc.Serial)
	}
}

func TestParseConfigVDOMs(t *testing.T) {
	doc := ParseConfig(sampleConfig)

	want := map[string]bool{"root": true, "dmz": true}
	for _, v := range doc.VDOMs {
		if !want[v] {
			t.Errorf("unexpected vdom %q", v)
		}
		delete(want, v)
	}
	for v := range want {
		t.Errorf("missing vdom %q", v)
	}
}

func TestParseConfigNoVDOMBlockDefaultsToRoot(t *testing.T) {
	doc := ParseConfig("config firewall policy\n    edit 1\n        set action accept\n    next\nend\n")
	if len(doc.VDOMs) != 1 || doc.VDOMs[0] != "root" {
		t.Fatalf("vdoms = %v, want [root]", doc.VDOMs)
	}
	if len(doc.Policies) != 1 || doc.Policies[0].VDOM != "root" {
		t.Fatalf("policies = %+v", doc.Policies)
	}
}

func TestParseConfigInterfaces(t *testing.T) {
	doc := ParseConfig(sampleConfig)
	if len(doc.Interfaces) != 3 {
		t.Fatalf("got %d interfaces, want 3", len(doc.Interfaces))
	}

	byName := make(map[string]InterfaceConfig)
	for _, in := range doc.Interfaces {
		byName[in.Name] = in
	}

	port1 := byName["port1"]
	if port1.IP != "192.0.2.1 255.255.255.0" {
		t.Errorf("port1 ip = %q", port1.IP)
	}
	if port1.Type != "physical" {
		t.Errorf("port1 type = %q, want physical", port1.Type)
	}
	if len(port1.AllowAccess) != 3 || port1.AllowAccess[0] != "ping" {
		t.Errorf("port1 allowaccess = %v", port1.AllowAccess)
	}

	if typ := byName["vlan100"].Type; typ != "vlan" {
		t.Errorf("vlan100 type = %q, want vlan", typ)
	}
	if typ := byName["npu0_vlink0"].Type; typ != "vdom-link" {
		t.Errorf("npu0_vlink0 type = %q, want vdom-link", typ)
	}
}

func TestParseConfigObjects(t *testing.T) {
	doc := ParseConfig(sampleConfig)

	if len(doc.Addresses) != 3 {
		t.Fatalf("got %d addresses, want 3", len(doc.Addresses))
	}
	var grp *AddressConfig
	for i := range doc.Addresses {
		if doc.Addresses[i].Name == "server-group" {
			grp = &doc.Addresses[i]
		}
	}
	if grp == nil || grp.Type != "group" || len(grp.Members) != 2 {
		t.Fatalf("server-group = %+v", grp)
	}

	if len(doc.Services) != 2 {
		t.Fatalf("got %d services, want 2", len(doc.Services))
	}
	for _, svc := range doc.Services {
		switch svc.Name {
		case "WEB-8443":
			if svc.TCPPortRange != "8443" || svc.IsGroup {
				t.Errorf("WEB-8443 = %+v", svc)
			}
		case "web-services":
			if !svc.IsGroup || len(svc.Members) != 2 {
				t.Errorf("web-services = %+v", svc)
			}
		}
	}
}

func TestParseConfigPolicies(t *testing.T) {
	doc := ParseConfig(sampleConfig)
	if len(doc.Policies) != 2 {
		t.Fatalf("got %d policies, want 2", len(doc.Policies))
	}

	p1 := doc.Policies[0]
	if p1.ID != "1" || p1.Name != "allow web" || p1.Action != "accept" {
		t.Errorf("policy 1 = %+v", p1)
	}
	if p1.NAT != "Enabled" {
		t.Errorf("policy 1 nat = %q", p1.NAT)
	}
	if len(p1.Services) != 2 || p1.Services[0] != "HTTPS" {
		t.Errorf("policy 1 services = %v", p1.Services)
	}
	if p1.Raw["schedule"] != "always" {
		t.Errorf("policy 1 schedule = %v", p1.Raw["schedule"])
	}

	p2 := doc.Policies[1]
	if p2.Status != "disable" {
		t.Errorf("policy 2 status = %q", p2.Status)
	}
	// Omitted address/service directives default to the wildcard object.
	if len(p2.SrcAddr) != 1 || p2.SrcAddr[0] != "all" {
		t.Errorf("policy 2 srcaddr = %v", p2.SrcAddr)
	}
	if len(p2.Services) != 1 || p2.Services[0] != "ALL" {
		t.Errorf("policy 2 services = %v", p2.Services)
	}
	if p2.NAT != "Disabled" {
		t.Errorf("policy 2 nat = %q", p2.NAT)
	}
}

func TestSplitQuoted(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{`"a b" c "d"`, []string{"a b", "c", "d"}},
		{`single`, []string{"single"}},
		{``, nil},
		{`"DMZ servers" "all"`, []string{"DMZ servers", "all"}},
	}
	for _, tt := range tests {
		got := splitQuoted(tt.in)
		if len(got) != len(tt.want) {
			t.Errorf("splitQuoted(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("splitQuoted(%q)[%d] = %q, want %q", tt.in, i, got[i], tt.want[i])
			}
		}
	}
}
