// Package model defines the persisted entities of the audit pipeline:
// devices, their parsed configuration objects, traffic logs, policy change
// history, and the security recommendations derived from them.
package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Severity levels for recommendations.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
	SeverityInfo     = "info"
)

// Recommendation lifecycle states. Analyzers only ever create rows in the
// open state; transitions are operator actions.
const (
	StatusOpen         = "open"
	StatusAcknowledged = "acknowledged"
	StatusResolved     = "resolved"
	StatusIgnored      = "ignored"
)

// Policy change types recorded in history.
const (
	ChangeCreate = "create"
	ChangeModify = "modify"
	ChangeDelete = "delete"
)

// Recommendation categories.
const (
	CategorySecurityAudit  = "security_audit"
	CategoryOptimization   = "optimization"
	CategoryTraffic        = "traffic"
	CategoryVDOMAudit      = "vdom_audit"
	CategoryOptimizePolicy = "optimize_policy"
)

// DefaultVDOM is the implicit scope when a device has no VDOM config.
const DefaultVDOM = "root"

// Device is one registered firewall.
type Device struct {
	ID           string `gorm:"primaryKey;size:36"`
	Name         string `gorm:"size:100;not null"`
	Hostname     string `gorm:"size:100"`
	Serial       string `gorm:"size:100;uniqueIndex;not null"`
	SecondSerial string `gorm:"size:100"` // HA peer serial
	HAEnabled    bool
	HAMode       string `gorm:"size:20"`
	Firmware     string `gorm:"size:100"`
	RawConfig    string `gorm:"type:text"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (Device) TableName() string { return "devices" }

func (d *Device) BeforeCreate(*gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}

// MatchesDevID reports whether a log devid field identifies this device,
// either by its own serial or by the HA peer's.
func (d *Device) MatchesDevID(devid string) bool {
	if devid == "" {
		return false
	}
	return devid == d.Serial || (d.SecondSerial != "" && devid == d.SecondSerial)
}

// VDOM is a virtual-firewall scoping boundary on a device.
type VDOM struct {
	ID        string `gorm:"primaryKey;size:36"`
	DeviceID  string `gorm:"size:36;not null;uniqueIndex:uq_vdom_device_name"`
	Name      string `gorm:"size:100;not null;uniqueIndex:uq_vdom_device_name"`
	Comments  string `gorm:"size:255"`
	CreatedAt time.Time
}

func (VDOM) TableName() string { return "vdoms" }

func (v *VDOM) BeforeCreate(*gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	return nil
}

// Interface is a network interface on a device. Policies reference
// interfaces by name only; a dangling reference is a finding for the
// analyzers, not a load error.
type Interface struct {
	ID          string `gorm:"primaryKey;size:36"`
	DeviceID    string `gorm:"size:36;not null;uniqueIndex:uq_intf_device_name"`
	Name        string `gorm:"size:100;not null;uniqueIndex:uq_intf_device_name"`
	VDOM        string `gorm:"size:100;not null;default:root"`
	Alias       string `gorm:"size:100"`
	Type        string `gorm:"size:50"` // physical, vlan, vdom-link, tunnel, loopback
	Status      string `gorm:"size:20"`
	IP          string `gorm:"size:50"`
	Role        string `gorm:"size:50"`
	Zone        string `gorm:"size:100"`
	VLANID      int    `gorm:"column:vlan_id"`
	AllowAccess StringList `gorm:"type:text"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (Interface) TableName() string { return "interfaces" }

func (i *Interface) BeforeCreate(*gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

// AddressObject is a named address definition scoped to a VDOM.
type AddressObject struct {
	ID        string     `gorm:"primaryKey;size:36"`
	DeviceID  string     `gorm:"size:36;not null;uniqueIndex:uq_addr_identity"`
	VDOM      string     `gorm:"size:100;not null;default:root;uniqueIndex:uq_addr_identity"`
	Name      string     `gorm:"size:200;not null;uniqueIndex:uq_addr_identity"`
	Type      string     `gorm:"size:50"` // ipmask, iprange, fqdn, geography, group
	Subnet    string     `gorm:"size:100"`
	StartIP   string     `gorm:"size:50"`
	EndIP     string     `gorm:"size:50"`
	FQDN      string     `gorm:"size:255"`
	Country   string     `gorm:"size:10"`
	Members   StringList `gorm:"type:text"`
	Comments  string     `gorm:"size:255"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (AddressObject) TableName() string { return "address_objects" }

func (a *AddressObject) BeforeCreate(*gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// ServiceObject is a named service definition scoped to a VDOM.
type ServiceObject struct {
	ID           string     `gorm:"primaryKey;size:36"`
	DeviceID     string     `gorm:"size:36;not null;uniqueIndex:uq_svc_identity"`
	VDOM         string     `gorm:"size:100;not null;default:root;uniqueIndex:uq_svc_identity"`
	Name         string     `gorm:"size:200;not null;uniqueIndex:uq_svc_identity"`
	Protocol     string     `gorm:"size:20"` // TCP/UDP/SCTP, ICMP, IP
	TCPPortRange string     `gorm:"size:100"`
	UDPPortRange string     `gorm:"size:100"`
	Category     string     `gorm:"size:100"`
	IsGroup      bool
	Members      StringList `gorm:"type:text"`
	Comments     string     `gorm:"size:255"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (ServiceObject) TableName() string { return "service_objects" }

func (s *ServiceObject) BeforeCreate(*gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// Policy is one firewall rule. Identity is (device, vdom, policy id).
// Rows are mutated only by the reconciler; analyzers read.
type Policy struct {
	UID        string     `gorm:"primaryKey;size:36"`
	DeviceID   string     `gorm:"size:36;not null;uniqueIndex:uq_policy_identity"`
	VDOM       string     `gorm:"size:100;not null;default:root;uniqueIndex:uq_policy_identity"`
	PolicyID   string     `gorm:"size:50;not null;uniqueIndex:uq_policy_identity;index"`
	Name       string     `gorm:"size:255"`
	VendorUUID string     `gorm:"size:64"`
	Action     string     `gorm:"size:50;index"` // accept, deny
	Status     string     `gorm:"size:20"`       // enable, disable
	NAT        string     `gorm:"size:20"`       // Enabled, Disabled
	SrcIntf    StringList `gorm:"type:text"`
	DstIntf    StringList `gorm:"type:text"`
	SrcAddr    StringList `gorm:"type:text"`
	DstAddr    StringList `gorm:"type:text"`
	Services   StringList `gorm:"column:service;type:text"`
	BytesTotal int64      `gorm:"index"`
	HitCount   int64
	RawAttrs   RawAttrs   `gorm:"type:text"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (Policy) TableName() string { return "policies" }

func (p *Policy) BeforeCreate(*gorm.DB) error {
	if p.UID == "" {
		p.UID = uuid.NewString()
	}
	return nil
}

// Enabled reports whether the policy is active. FortiGate omits the status
// directive for enabled policies, so anything but an explicit disable
// counts as enabled.
func (p *Policy) Enabled() bool {
	return !strings.EqualFold(strings.TrimSpace(p.Status), "disable")
}

// Accepts reports whether the policy allows matching traffic.
func (p *Policy) Accepts() bool {
	return strings.Contains(strings.ToLower(p.Action), "accept")
}

// DisplayDstAddr prefers the export's display destination over the stored
// address list, mirroring what operators see in the vendor UI.
func (p *Policy) DisplayDstAddr() []string {
	return p.RawAttrs.DisplayDestination(p.DstAddr)
}

// PolicyHistory is an append-only audit row for one policy change. The
// policy UID is deliberately not a foreign key so history outlives
// deleted policies.
type PolicyHistory struct {
	ID              string  `gorm:"primaryKey;size:36"`
	PolicyUID       string  `gorm:"size:36;not null;index"`
	DeviceID        string  `gorm:"size:36;not null;index"`
	VDOM            string  `gorm:"size:100;not null"`
	PolicyID        string  `gorm:"size:50;not null;index"`
	ImportSessionID string  `gorm:"size:36;index"`
	ChangeDate      time.Time
	ChangeType      string  `gorm:"size:20;not null"` // create, modify, delete
	Delta           JSONMap `gorm:"type:text"`
	Snapshot        JSONMap `gorm:"type:text"` // full field state after the change
}

func (PolicyHistory) TableName() string { return "policy_history" }

func (h *PolicyHistory) BeforeCreate(*gorm.DB) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	if h.ChangeDate.IsZero() {
		h.ChangeDate = time.Now().UTC()
	}
	return nil
}

// LogEntry is one observed traffic event. Immutable once written and large
// in volume; analysis goes through the grouped aggregation surface, never
// full table scans into memory.
type LogEntry struct {
	ID              string `gorm:"primaryKey;size:36"`
	DeviceID        string `gorm:"size:36;not null;index"`
	ImportSessionID string `gorm:"size:36;index"`

	LogID   string `gorm:"size:50"`
	LogType string `gorm:"size:50;index"`
	Subtype string `gorm:"size:50"`
	Level   string `gorm:"size:20"`

	Timestamp *time.Time `gorm:"index"`
	ITime     int64
	EventTime int64

	DevID   string `gorm:"size:50;index"`
	DevName string `gorm:"size:100"`
	VDOM    string `gorm:"size:100;index"`

	SrcIntf     string `gorm:"size:100"`
	SrcIntfRole string `gorm:"size:50"`
	SrcIP       string `gorm:"size:50;index"`
	SrcPort     int
	SrcCountry  string `gorm:"size:100"`
	SrcMAC      string `gorm:"size:20"`

	DstIntf     string `gorm:"size:100"`
	DstIntfRole string `gorm:"size:50"`
	DstIP       string `gorm:"size:50;index"`
	DstPort     int
	DstCountry  string `gorm:"size:100"`

	PolicyID   *int64 `gorm:"index"` // loose reference, may not resolve
	PolicyUUID string `gorm:"size:64"`

	Action   string `gorm:"size:50;index"`
	Protocol int
	Service  string `gorm:"size:100"`
	App      string `gorm:"size:100"`
	AppCat   string `gorm:"size:100"`

	SentBytes int64
	RcvdBytes int64
	SentPkts  int64
	RcvdPkts  int64
	Duration  int64
	SessionID int64
	NATType   string `gorm:"size:50"`

	RawData   JSONMap `gorm:"type:text"`
	CreatedAt time.Time
}

func (LogEntry) TableName() string { return "log_entries" }

func (l *LogEntry) BeforeCreate(*gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}

// ImportSession groups the records produced by one ingestion call.
type ImportSession struct {
	ID        string `gorm:"primaryKey;size:36"`
	DeviceID  string `gorm:"size:36;index"`
	Kind      string `gorm:"size:20"` // logs, policies, config
	Filename  string `gorm:"size:255"`
	Count     int
	StartDate *time.Time
	EndDate   *time.Time
	Stats     JSONMap `gorm:"type:text"`
	CreatedAt time.Time
}

func (ImportSession) TableName() string { return "import_sessions" }

func (s *ImportSession) BeforeCreate(*gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// SuggestedPolicy is the structured replacement rule attached to
// least-privilege findings.
type SuggestedPolicy struct {
	SrcAddr string `json:"src_addr"`
	DstAddr string `json:"dst_addr"`
	SrcIntf string `json:"src_intf"`
	DstIntf string `json:"dst_intf"`
	Service string `json:"service"`
	Action  string `json:"action"`
}

func (s SuggestedPolicy) Value() (driver.Value, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal suggested policy: %w", err)
	}
	return string(b), nil
}

func (s *SuggestedPolicy) Scan(value any) error {
	if value == nil {
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported suggested policy column type %T", value)
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, s)
}

// Recommendation is one security finding. At most one open row may exist
// per (device, category, related policy id or title).
type Recommendation struct {
	ID       string `gorm:"primaryKey;size:36"`
	DeviceID string `gorm:"size:36;not null;index"`

	Category       string `gorm:"size:50;index"`
	Severity       string `gorm:"size:20;index"`
	Title          string `gorm:"size:255"`
	Description    string `gorm:"type:text"`
	Recommendation string `gorm:"type:text"`

	RelatedPolicyID string `gorm:"size:50;index"`
	RelatedVDOM     string `gorm:"size:100"`

	CLIRemediation  string           `gorm:"type:text"`
	SuggestedPolicy *SuggestedPolicy `gorm:"type:text"`

	Evidence      JSONMap `gorm:"type:text"`
	AffectedCount int

	Status     string `gorm:"size:20;default:open;index"`
	CreatedAt  time.Time
	ResolvedAt *time.Time
	ResolvedBy string `gorm:"size:100"`
}

func (Recommendation) TableName() string { return "security_recommendations" }

func (r *Recommendation) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = StatusOpen
	}
	return nil
}

// FlowAggregate is one grouped row from the log aggregation surface.
type FlowAggregate struct {
	SrcIP    string
	DstIP    string
	Service  string
	Protocol int
	DstPort  int
	Count    int64
	Bytes    int64
}

// All returns every persisted entity, in migration order.
func All() []any {
	return []any{
		&Device{},
		&VDOM{},
		&Interface{},
		&AddressObject{},
		&ServiceObject{},
		&Policy{},
		&PolicyHistory{},
		&LogEntry{},
		&ImportSession{},
		&Recommendation{},
	}
}
