package parser

import (
	"encoding/json"
	"fmt"
	"strings"

	"firewall-policy-auditor/internal/model"
)

// ParsePolicyExport normalizes a GUI policy-table JSON export (a single
// object or an array of them) into PolicyConfig values. Field names vary
// across firmware releases, so extraction works through fallback chains;
// the full record is preserved in Raw.
func ParsePolicyExport(data []byte, vdom string) ([]PolicyConfig, error) {
	var records []map[string]any
	if err := json.Unmarshal(data, &records); err != nil {
		var single map[string]any
		if err2 := json.Unmarshal(data, &single); err2 != nil {
			return nil, fmt.Errorf("decode policy export: %w", err)
		}
		records = []map[string]any{single}
	}

	policies := make([]PolicyConfig, 0, len(records))
	for _, r := range records {
		policies = append(policies, normalizeExportRecord(r, vdom))
	}
	return policies, nil
}

func normalizeExportRecord(r map[string]any, vdom string) PolicyConfig {
	srcIntf := firstList(r, "From", "srcintf")
	dstIntf := firstList(r, "To", "dstintf")

	// Some exports carry only a combined "Interface Pair" column. When it
	// is the only source, split it and write From/To back into the record
	// so the stored raw data is self-describing.
	if len(srcIntf) == 0 && len(dstIntf) == 0 {
		if pair := asString(r[model.AttrInterfacePair]); strings.Contains(pair, ",") {
			parts := strings.SplitN(pair, ",", 2)
			srcIntf = []string{strings.TrimSpace(parts[0])}
			dstIntf = []string{strings.TrimSpace(parts[1])}
			r["From"] = srcIntf
			r["To"] = dstIntf
		}
	}

	name := asString(r["Name"])
	if name == "" {
		name = asString(r["Policy"])
	}
	action := asString(r["Action"])
	if action == "" {
		action = "DENY"
	}

	return PolicyConfig{
		ID:         asString(r["ID"]),
		Name:       name,
		VDOM:       vdom,
		SrcIntf:    srcIntf,
		DstIntf:    dstIntf,
		SrcAddr:    firstList(r, "Source Address", model.AttrDisplaySource),
		DstAddr:    firstList(r, "Destination Address", model.AttrDisplayDestination),
		Services:   firstList(r, "Service"),
		Action:     action,
		NAT:        natStatus(r["NAT"]),
		BytesTotal: ParseByteCount(asString(r[model.AttrDisplayBytes])),
		HitCount:   ParseHitCount(asString(r[model.AttrDisplayHitCount])),
		Raw:        r,
	}
}

// natStatus folds the many NAT spellings exports use into Enabled/Disabled.
func natStatus(v any) string {
	switch val := v.(type) {
	case bool:
		if val {
			return "Enabled"
		}
	case float64:
		if val == 1 {
			return "Enabled"
		}
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "enabled", "enable", "snat", "dnat", "nat":
			return "Enabled"
		}
	}
	return "Disabled"
}

func firstList(r map[string]any, keys ...string) []string {
	for _, key := range keys {
		if list := asStringList(r[key]); len(list) > 0 {
			return list
		}
	}
	return nil
}

func asStringList(v any) []string {
	switch val := v.(type) {
	case []string:
		return val
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s := asString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if strings.TrimSpace(val) == "" {
			return nil
		}
		return []string{val}
	default:
		return nil
	}
}

func asString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	case bool:
		return fmt.Sprintf("%t", val)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", val)
	}
}
