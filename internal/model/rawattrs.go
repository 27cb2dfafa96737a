package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// Accessor keys for RawAttrs. Vendor exports are not stable across firmware
// releases; every attribute an analyzer reads must be named here so a key
// change is a one-line fix instead of a grep across the codebase.
const (
	// v1 display fields carried over from GUI policy exports.
	AttrDisplaySource      = "Source"
	AttrDisplayDestination = "Destination"
	AttrDisplayBytes       = "Bytes"
	AttrDisplayHitCount    = "Hit Count"
	AttrInterfacePair      = "Interface Pair"

	// v1 security-profile references from config exports.
	AttrIPSSensor     = "ips-sensor"
	AttrAVProfile     = "av-profile"
	AttrSSLSSHProfile = "ssl-ssh-profile"
	AttrUTMStatus     = "utm-status"
	AttrSchedule      = "schedule"
	AttrComments      = "comments"
)

// RawAttrs holds the optional policy attributes that are not normalized
// into their own columns. Readers go through the typed accessors; the only
// place raw keys appear is the constant block above.
type RawAttrs map[string]any

func (a RawAttrs) Value() (driver.Value, error) {
	if a == nil {
		return "{}", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal raw attrs: %w", err)
	}
	return string(b), nil
}

func (a *RawAttrs) Scan(value any) error {
	if value == nil {
		*a = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported raw attrs column type %T", value)
	}
	if len(data) == 0 {
		*a = nil
		return nil
	}
	return json.Unmarshal(data, a)
}

// String returns the attribute as a string, or "" when absent or not a
// string-like value.
func (a RawAttrs) String(key string) string {
	if a == nil {
		return ""
	}
	switch v := a[key].(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return ""
	}
}

// StringList returns the attribute as a list of strings. Scalar strings
// come back as a single-element list.
func (a RawAttrs) StringList(key string) []string {
	if a == nil {
		return nil
	}
	switch v := a[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	default:
		return nil
	}
}

// DisplayDestination returns the destination list as shown by the vendor
// UI when the export carried one, falling back to the stored addresses.
func (a RawAttrs) DisplayDestination(fallback []string) []string {
	if list := a.StringList(AttrDisplayDestination); len(list) > 0 {
		return list
	}
	return fallback
}

// HasSecurityProfiles reports whether any UTM profile reference is set.
func (a RawAttrs) HasSecurityProfiles() bool {
	for _, key := range []string{AttrIPSSensor, AttrAVProfile, AttrSSLSSHProfile} {
		if strings.TrimSpace(a.String(key)) != "" {
			return true
		}
	}
	return false
}
