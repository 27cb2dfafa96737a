// Package parser turns FortiGate configuration dumps, FortiAnalyzer log
// exports and GUI policy-table exports into normalized structures. Parsing
// is best-effort: malformed entries are skipped or defaulted, never fatal.
package parser

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"

	"firewall-policy-auditor/internal/model"
)

// HAConfig is the high-availability block of a device config.
type HAConfig struct {
	Mode            string // standalone, a-p, a-a
	Enabled         bool
	GroupName       string
	GroupID         int
	HeartbeatDevice string
	Serial          string // peer serial when the HA block carries one
}

// InterfaceConfig is one parsed "config system interface" entry.
type InterfaceConfig struct {
	Name        string
	VDOM        string
	IP          string // "addr mask" as written, or "0.0.0.0 0.0.0.0"
	Status      string
	Type        string
	Alias       string
	Role        string
	Zone        string
	VLANID      int
	AllowAccess []string
}

// AddressConfig is one parsed address object or address group.
type AddressConfig struct {
	Name     string
	VDOM     string
	Type     string // ipmask, iprange, fqdn, geography, group
	Subnet   string // "addr mask" as written
	StartIP  string
	EndIP    string
	FQDN     string
	Country  string
	Comments string
	Members  []string
}

// ServiceConfig is one parsed service object or service group.
type ServiceConfig struct {
	Name         string
	VDOM         string
	Protocol     string
	TCPPortRange string
	UDPPortRange string
	Category     string
	Comments     string
	IsGroup      bool
	Members      []string
}

// PolicyConfig is one parsed firewall policy, shared by the config parser
// and the policy-export importer so both feed the same reconciliation path.
type PolicyConfig struct {
	ID         string
	Name       string
	UUID       string
	VDOM       string
	SrcIntf    []string
	DstIntf    []string
	SrcAddr    []string
	DstAddr    []string
	Services   []string
	Action     string
	Status     string
	NAT        string // Enabled, Disabled
	BytesTotal int64
	HitCount   int64
	Raw        map[string]any
}

// DeviceConfig is the result of parsing one configuration dump.
type DeviceConfig struct {
	Hostname string
	// Serial is nil when the dump carries no serial at all (FortiOS omits
	// it from exports by default); empty string means present but empty.
	Serial   *string
	Firmware string
	// VDOMName is the scope named in a per-VDOM export header, if any.
	VDOMName   string
	VDOMs      []string
	HA         HAConfig
	System     map[string]string
	Interfaces []InterfaceConfig
	Addresses  []AddressConfig
	Services   []ServiceConfig
	Policies   []PolicyConfig
}

var (
	firmwareRe       = regexp.MustCompile(`#config-version=(\S+)`)
	vdomHeaderRe     = regexp.MustCompile(`vd_name=([^/]+)/(\S+)`)
	hostnameQuotedRe = regexp.MustCompile(`set hostname "([^"]+)"`)
	hostnamePlainRe  = regexp.MustCompile(`set hostname (\S+)`)
	serialNumberRe   = regexp.MustCompile(`(?i)set serial[- ]number\s+"?([A-Za-z0-9]+)"?`)
	haSerialRe       = regexp.MustCompile(`(?is)set override\s+enable.*?set serial\s+"?([A-Za-z0-9]+)"?`)
)

// ParseConfig parses a full or per-VDOM FortiGate configuration dump. It
// never fails on malformed sections; the zero DeviceConfig with defaults
// comes back for empty input.
func ParseConfig(content string) *DeviceConfig {
	doc := &DeviceConfig{
		System: make(map[string]string),
		HA:     HAConfig{Mode: "standalone"},
	}

	if m := firmwareRe.FindStringSubmatch(content); m != nil {
		doc.Firmware = m[1]
	}
	if m := vdomHeaderRe.FindStringSubmatch(content); m != nil {
		doc.VDOMName = m[1]
	}
	if m := hostnameQuotedRe.FindStringSubmatch(content); m != nil {
		doc.Hostname = m[1]
	} else if m := hostnamePlainRe.FindStringSubmatch(content); m != nil {
		doc.Hostname = m[1]
	}
	if doc.Hostname == "" {
		doc.Hostname = "Unknown-Device"
	}
	if m := serialNumberRe.FindStringSubmatch(content); m != nil {
		s := m[1]
		doc.Serial = &s
	} else if m := haSerialRe.FindStringSubmatch(content); m != nil {
		s := m[1]
		doc.Serial = &s
	}

	scope := doc.VDOMName
	if scope == "" {
		scope = model.DefaultVDOM
	}

	sc := bufio.NewScanner(strings.NewReader(content))
	sc.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	inVDOMSection := false
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "config vdom":
			inVDOMSection = true
		case inVDOMSection && strings.HasPrefix(line, "edit "):
			scope = unquote(strings.TrimSpace(strings.TrimPrefix(line, "edit")))
			doc.addVDOM(scope)
		case inVDOMSection && line == "next":
			// vdom declaration list; scope set again by the next edit
		case inVDOMSection && line == "end":
			inVDOMSection = false
		case strings.HasPrefix(line, "config system global"):
			parseGlobalBlock(sc, doc)
		case strings.HasPrefix(line, "config system ha"):
			parseHABlock(sc, doc)
		case strings.HasPrefix(line, "config system interface"):
			parseInterfaceBlock(sc, doc, scope)
		case strings.HasPrefix(line, "config firewall address6"),
			strings.HasPrefix(line, "config firewall addrgrp6"),
			strings.HasPrefix(line, "config firewall policy6"),
			strings.HasPrefix(line, "config firewall policy46"),
			strings.HasPrefix(line, "config firewall policy64"):
			skipBlock(sc)
		case strings.HasPrefix(line, "config firewall address"):
			parseAddressBlock(sc, doc, scope)
		case strings.HasPrefix(line, "config firewall addrgrp"):
			parseAddrGrpBlock(sc, doc, scope)
		case strings.HasPrefix(line, "config firewall service custom"):
			parseServiceBlock(sc, doc, scope)
		case strings.HasPrefix(line, "config firewall service group"):
			parseServiceGroupBlock(sc, doc, scope)
		case strings.HasPrefix(line, "config firewall policy"):
			parsePolicyBlock(sc, doc, scope)
		}
	}

	if len(doc.VDOMs) == 0 {
		doc.addVDOM(scope)
	}
	return doc
}

func (d *DeviceConfig) addVDOM(name string) {
	if name == "" {
		return
	}
	for _, v := range d.VDOMs {
		if v == name {
			return
		}
	}
	d.VDOMs = append(d.VDOMs, name)
}

// blockLines iterates the body of a config block, tracking nested
// "config ... end" sub-blocks so an inner end never terminates the outer
// one. Nested sub-block bodies are skipped.
func blockLines(sc *bufio.Scanner, fn func(line string)) {
	depth := 0
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "config ") {
			depth++
			continue
		}
		if line == "end" {
			if depth == 0 {
				return
			}
			depth--
			continue
		}
		if depth > 0 {
			continue
		}
		fn(line)
	}
}

func skipBlock(sc *bufio.Scanner) {
	blockLines(sc, func(string) {})
}

func parseGlobalBlock(sc *bufio.Scanner, doc *DeviceConfig) {
	blockLines(sc, func(line string) {
		key, rest, ok := setDirective(line)
		if !ok {
			return
		}
		switch key {
		case "hostname":
			doc.Hostname = unquote(rest)
		case "timezone", "admintimeout", "alias":
			doc.System[key] = unquote(rest)
		}
	})
}

func parseHABlock(sc *bufio.Scanner, doc *DeviceConfig) {
	blockLines(sc, func(line string) {
		key, rest, ok := setDirective(line)
		if !ok {
			return
		}
		switch key {
		case "mode":
			doc.HA.Mode = unquote(rest)
		case "group-name":
			doc.HA.GroupName = unquote(rest)
		case "group-id":
			doc.HA.GroupID, _ = strconv.Atoi(rest)
		case "hbdev":
			doc.HA.HeartbeatDevice = unquote(firstToken(rest))
		case "serial":
			doc.HA.Serial = unquote(rest)
		}
	})
	doc.HA.Enabled = doc.HA.Mode != "" && doc.HA.Mode != "standalone"
}

func parseInterfaceBlock(sc *bufio.Scanner, doc *DeviceConfig, scope string) {
	var cur *InterfaceConfig
	explicitType := false
	blockLines(sc, func(line string) {
		switch {
		case strings.HasPrefix(line, "edit "):
			doc.flushInterface(cur, explicitType)
			cur = &InterfaceConfig{
				Name:   unquote(strings.TrimSpace(strings.TrimPrefix(line, "edit"))),
				VDOM:   scope,
				IP:     "0.0.0.0 0.0.0.0",
				Status: "up",
				Role:   "undefined",
			}
			explicitType = false
		case line == "next":
			doc.flushInterface(cur, explicitType)
			cur = nil
		default:
			key, rest, ok := setDirective(line)
			if !ok || cur == nil {
				return
			}
			switch key {
			case "ip":
				cur.IP = rest
			case "vdom":
				cur.VDOM = unquote(rest)
			case "status":
				cur.Status = rest
			case "type":
				cur.Type = rest
				explicitType = true
			case "alias":
				cur.Alias = unquote(rest)
			case "role":
				cur.Role = rest
			case "vlanid":
				cur.VLANID, _ = strconv.Atoi(rest)
			case "allowaccess":
				cur.AllowAccess = splitQuoted(rest)
			}
		}
	})
	doc.flushInterface(cur, explicitType)
}

func (d *DeviceConfig) flushInterface(cur *InterfaceConfig, explicitType bool) {
	if cur == nil {
		return
	}
	if !explicitType {
		cur.Type = inferInterfaceType(cur)
	}
	d.addVDOM(cur.VDOM)
	d.Interfaces = append(d.Interfaces, *cur)
}

// inferInterfaceType guesses the interface kind when the config omits the
// type directive, which FortiOS does for physical ports.
func inferInterfaceType(in *InterfaceConfig) string {
	if in.VLANID > 0 {
		return "vlan"
	}
	lower := strings.ToLower(in.Name)
	for _, marker := range []string{"vdom", "vlink", "npu"} {
		if strings.Contains(lower, marker) {
			return "vdom-link"
		}
	}
	return "physical"
}

func parseAddressBlock(sc *bufio.Scanner, doc *DeviceConfig, scope string) {
	var cur *AddressConfig
	blockLines(sc, func(line string) {
		switch {
		case strings.HasPrefix(line, "edit "):
			cur = &AddressConfig{
				Name: unquote(strings.TrimSpace(strings.TrimPrefix(line, "edit"))),
				VDOM: scope,
				Type: "ipmask",
			}
		case line == "next":
			if cur != nil {
				doc.Addresses = append(doc.Addresses, *cur)
			}
			cur = nil
		default:
			key, rest, ok := setDirective(line)
			if !ok || cur == nil {
				return
			}
			switch key {
			case "type":
				cur.Type = rest
			case "subnet":
				cur.Subnet = rest
			case "start-ip":
				cur.StartIP = rest
			case "end-ip":
				cur.EndIP = rest
			case "fqdn":
				cur.FQDN = unquote(rest)
			case "country":
				cur.Country = unquote(rest)
			case "comment":
				cur.Comments = unquote(rest)
			}
		}
	})
	if cur != nil {
		doc.Addresses = append(doc.Addresses, *cur)
	}
}

func parseAddrGrpBlock(sc *bufio.Scanner, doc *DeviceConfig, scope string) {
	var cur *AddressConfig
	blockLines(sc, func(line string) {
		switch {
		case strings.HasPrefix(line, "edit "):
			cur = &AddressConfig{
				Name: unquote(strings.TrimSpace(strings.TrimPrefix(line, "edit"))),
				VDOM: scope,
				Type: "group",
			}
		case line == "next":
			if cur != nil {
				doc.Addresses = append(doc.Addresses, *cur)
			}
			cur = nil
		default:
			key, rest, ok := setDirective(line)
			if !ok || cur == nil {
				return
			}
			switch key {
			case "member":
				cur.Members = splitQuoted(rest)
			case "comment":
				cur.Comments = unquote(rest)
			}
		}
	})
	if cur != nil {
		doc.Addresses = append(doc.Addresses, *cur)
	}
}

func parseServiceBlock(sc *bufio.Scanner, doc *DeviceConfig, scope string) {
	var cur *ServiceConfig
	blockLines(sc, func(line string) {
		switch {
		case strings.HasPrefix(line, "edit "):
			cur = &ServiceConfig{
				Name: unquote(strings.TrimSpace(strings.TrimPrefix(line, "edit"))),
				VDOM: scope,
			}
		case line == "next":
			if cur != nil {
				doc.Services = append(doc.Services, *cur)
			}
			cur = nil
		default:
			key, rest, ok := setDirective(line)
			if !ok || cur == nil {
				return
			}
			// Some exports write "set tcp-portrange=8001-8004".
			rest = strings.TrimPrefix(rest, "=")
			switch key {
			case "protocol":
				cur.Protocol = rest
			case "tcp-portrange":
				cur.TCPPortRange = rest
			case "udp-portrange":
				cur.UDPPortRange = rest
			case "category":
				cur.Category = unquote(rest)
			case "comment":
				cur.Comments = unquote(rest)
			}
		}
	})
	if cur != nil {
		doc.Services = append(doc.Services, *cur)
	}
}

func parseServiceGroupBlock(sc *bufio.Scanner, doc *DeviceConfig, scope string) {
	var cur *ServiceConfig
	blockLines(sc, func(line string) {
		switch {
		case strings.HasPrefix(line, "edit "):
			cur = &ServiceConfig{
				Name:    unquote(strings.TrimSpace(strings.TrimPrefix(line, "edit"))),
				VDOM:    scope,
				IsGroup: true,
			}
		case line == "next":
			if cur != nil {
				doc.Services = append(doc.Services, *cur)
			}
			cur = nil
		default:
			key, rest, ok := setDirective(line)
			if !ok || cur == nil {
				return
			}
			switch key {
			case "member":
				cur.Members = splitQuoted(rest)
			case "comment":
				cur.Comments = unquote(rest)
			}
		}
	})
	if cur != nil {
		doc.Services = append(doc.Services, *cur)
	}
}

func parsePolicyBlock(sc *bufio.Scanner, doc *DeviceConfig, scope string) {
	var cur *PolicyConfig
	flush := func() {
		if cur == nil {
			return
		}
		if len(cur.SrcAddr) == 0 {
			cur.SrcAddr = []string{"all"}
		}
		if len(cur.DstAddr) == 0 {
			cur.DstAddr = []string{"all"}
		}
		if len(cur.Services) == 0 {
			cur.Services = []string{"ALL"}
		}
		if cur.NAT == "" {
			cur.NAT = "Disabled"
		}
		doc.Policies = append(doc.Policies, *cur)
		cur = nil
	}
	blockLines(sc, func(line string) {
		switch {
		case strings.HasPrefix(line, "edit "):
			flush()
			cur = &PolicyConfig{
				ID:   unquote(strings.TrimSpace(strings.TrimPrefix(line, "edit"))),
				VDOM: scope,
				Raw:  make(map[string]any),
			}
		case line == "next":
			flush()
		default:
			key, rest, ok := setDirective(line)
			if !ok || cur == nil {
				return
			}
			switch key {
			case "name":
				cur.Name = unquote(rest)
			case "uuid":
				cur.UUID = unquote(rest)
			case "srcintf":
				cur.SrcIntf = append(cur.SrcIntf, splitQuoted(rest)...)
			case "dstintf":
				cur.DstIntf = append(cur.DstIntf, splitQuoted(rest)...)
			case "srcaddr":
				cur.SrcAddr = append(cur.SrcAddr, splitQuoted(rest)...)
			case "dstaddr":
				cur.DstAddr = append(cur.DstAddr, splitQuoted(rest)...)
			case "service":
				cur.Services = append(cur.Services, splitQuoted(rest)...)
			case "action":
				cur.Action = rest
			case "status":
				cur.Status = rest
			case "nat":
				if rest == "enable" {
					cur.NAT = "Enabled"
				} else {
					cur.NAT = "Disabled"
				}
			case "schedule":
				cur.Raw[model.AttrSchedule] = unquote(rest)
			case "comments":
				cur.Raw[model.AttrComments] = unquote(rest)
			case "ips-sensor":
				cur.Raw[model.AttrIPSSensor] = unquote(rest)
			case "av-profile":
				cur.Raw[model.AttrAVProfile] = unquote(rest)
			case "ssl-ssh-profile":
				cur.Raw[model.AttrSSLSSHProfile] = unquote(rest)
			case "utm-status":
				cur.Raw[model.AttrUTMStatus] = rest
			}
		}
	})
	flush()
}

// setDirective splits a "set <key> <rest>" line.
func setDirective(line string) (key, rest string, ok bool) {
	if !strings.HasPrefix(line, "set ") {
		return "", "", false
	}
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 {
		return "", "", false
	}
	key = parts[1]
	if len(parts) == 3 {
		rest = strings.TrimSpace(parts[2])
	}
	return key, rest, true
}

// splitQuoted splits a run of tokens where quoted tokens may contain
// spaces: `"a b" c "d"` becomes ["a b", "c", "d"].
func splitQuoted(s string) []string {
	var out []string
	var b strings.Builder
	inQuote := false
	for _, r := range s {
		switch {
		case r == '"':
			inQuote = !inQuote
		case r == ' ' && !inQuote:
			if b.Len() > 0 {
				out = append(out, b.String())
				b.Reset()
			}
		default:
			b.WriteRune(r)
		}
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}

func firstToken(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func unquote(s string) string {
	return strings.Trim(s, `"`)
}
