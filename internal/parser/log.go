package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"firewall-policy-auditor/internal/model"
)

// FortiAnalyzer CSV exports wrap every field in double quotes. String
// values double the inner quotes: "srcip=""10.0.0.1""". Numeric values
// are bare: "itime=1767622897". The escaped form is matched first and
// wins on key collision.
var (
	logFieldEscapedRe = regexp.MustCompile(`"([^"=]+)=""([^"]*)"""`)
	logFieldSimpleRe  = regexp.MustCompile(`"([^"=]+)=([^",]+)"`)
)

// Protocol numbers seen in FortiGate traffic logs.
var protocolNames = map[int]string{
	1:   "ICMP",
	6:   "TCP",
	17:  "UDP",
	47:  "GRE",
	50:  "ESP",
	51:  "AH",
	58:  "ICMPv6",
	89:  "OSPF",
	132: "SCTP",
}

// ProtocolName resolves a protocol number to its name, falling back to a
// PROTO-<n> placeholder.
func ProtocolName(proto int) string {
	if name, ok := protocolNames[proto]; ok {
		return name
	}
	return fmt.Sprintf("PROTO-%d", proto)
}

// ParseLogLine tokenizes one FortiAnalyzer export line into its key=value
// fields. Returns nil for blank or unparseable lines.
func ParseLogLine(line string) map[string]string {
	if strings.TrimSpace(line) == "" {
		return nil
	}
	result := make(map[string]string)
	for _, m := range logFieldEscapedRe.FindAllStringSubmatch(line, -1) {
		field, value := m[1], strings.TrimSpace(m[2])
		if field != "" && value != "" {
			result[field] = value
		}
	}
	for _, m := range logFieldSimpleRe.FindAllStringSubmatch(line, -1) {
		field := m[1]
		if field == "" {
			continue
		}
		if _, seen := result[field]; seen {
			continue
		}
		value := strings.Trim(strings.TrimSpace(m[2]), `"`)
		if value != "" {
			result[field] = value
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

// ParseLogText tokenizes a whole export, one entry per parseable line.
func ParseLogText(content string) []map[string]string {
	var entries []map[string]string
	for _, line := range strings.Split(strings.TrimSpace(content), "\n") {
		if entry := ParseLogLine(line); entry != nil {
			entries = append(entries, entry)
		}
	}
	return entries
}

// NormalizeEntry maps a raw tokenized entry onto the canonical log schema.
// Missing fields stay at their zero values; numeric coercion is soft.
func NormalizeEntry(raw map[string]string) model.LogEntry {
	entry := model.LogEntry{
		LogID:   raw["logid"],
		LogType: raw["type"],
		Subtype: raw["subtype"],
		Level:   raw["level"],

		DevID:   raw["devid"],
		DevName: raw["devname"],

		SrcIntf:     raw["srcintf"],
		SrcIntfRole: raw["srcintfrole"],
		SrcIP:       raw["srcip"],
		SrcCountry:  raw["srccountry"],

		DstIntf:     raw["dstintf"],
		DstIntfRole: raw["dstintfrole"],
		DstIP:       raw["dstip"],
		DstCountry:  raw["dstcountry"],

		PolicyUUID: raw["poluuid"],

		Action:  raw["action"],
		Service: raw["service"],
		App:     raw["app"],
		AppCat:  raw["appcat"],

		NATType: raw["trandisp"],
	}

	entry.VDOM = raw["vd"]
	if entry.VDOM == "" {
		entry.VDOM = raw["vdom"]
	}
	entry.SrcMAC = raw["srcmac"]
	if entry.SrcMAC == "" {
		entry.SrcMAC = raw["mastersrcmac"]
	}

	if date, timeStr := raw["date"], raw["time"]; date != "" && timeStr != "" {
		if ts, err := time.Parse("2006-01-02 15:04:05", date+" "+timeStr); err == nil {
			entry.Timestamp = &ts
		}
	}
	entry.ITime = toInt64(raw["itime"])
	entry.EventTime = toInt64(raw["eventtime"])

	entry.SrcPort = int(toInt64(raw["srcport"]))
	entry.DstPort = int(toInt64(raw["dstport"]))
	entry.Protocol = int(toInt64(raw["proto"]))

	if pid, ok := raw["policyid"]; ok {
		if v, err := strconv.ParseInt(pid, 10, 64); err == nil {
			entry.PolicyID = &v
		}
	}

	entry.SentBytes = toInt64(raw["sentbyte"])
	entry.RcvdBytes = toInt64(raw["rcvdbyte"])
	entry.SentPkts = toInt64(raw["sentpkt"])
	entry.RcvdPkts = toInt64(raw["rcvdpkt"])
	entry.Duration = toInt64(raw["duration"])
	entry.SessionID = toInt64(raw["sessionid"])

	entry.RawData = make(model.JSONMap, len(raw))
	for k, v := range raw {
		entry.RawData[k] = v
	}
	return entry
}

// deviceDetectWindow bounds how many entries DetectDevID inspects. Exports
// carry the same devid on every line, so a short prefix is enough.
const deviceDetectWindow = 10

// DetectDevID returns the first devid found within the detection window,
// or "" when none of the inspected entries carries one.
func DetectDevID(entries []map[string]string) string {
	limit := len(entries)
	if limit > deviceDetectWindow {
		limit = deviceDetectWindow
	}
	for _, entry := range entries[:limit] {
		if devid := entry["devid"]; devid != "" {
			return devid
		}
	}
	return ""
}

func toInt64(s string) int64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return v
}
