package importer

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"firewall-policy-auditor/internal/diff"
	"firewall-policy-auditor/internal/model"
	"firewall-policy-auditor/internal/netutil"
	"firewall-policy-auditor/internal/parser"
	"firewall-policy-auditor/internal/store"
)

// ConfigResult reports one configuration import.
type ConfigResult struct {
	Device        *model.Device
	Session       *model.ImportSession
	DeviceCreated bool
	// Reports holds one reconciliation report per VDOM that carried
	// policies in the dump.
	Reports map[string]*diff.Report
}

// ImportConfig parses a configuration dump, registers or updates the
// device it belongs to, syncs its object inventory and reconciles its
// policies per VDOM.
func (im *Importer) ImportConfig(filename, content string) (*ConfigResult, error) {
	doc := parser.ParseConfig(content)

	device, created, err := im.resolveConfigDevice(doc)
	if err != nil {
		return nil, err
	}

	device.Hostname = doc.Hostname
	if device.Name == "" {
		device.Name = doc.Hostname
	}
	device.Firmware = doc.Firmware
	device.HAEnabled = doc.HA.Enabled
	device.HAMode = doc.HA.Mode
	if doc.HA.Serial != "" {
		device.SecondSerial = doc.HA.Serial
	}
	device.RawConfig = content
	if err := im.st.UpdateDevice(device); err != nil {
		return nil, fmt.Errorf("update device: %w", err)
	}

	session := &model.ImportSession{DeviceID: device.ID, Kind: "config", Filename: filename}
	if err := im.st.CreateSession(session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	if err := im.syncInventory(device.ID, doc); err != nil {
		return nil, err
	}

	reports, err := im.reconcilePolicies(device.ID, session.ID, doc)
	if err != nil {
		return nil, err
	}

	var added, modified, deleted, unchanged int
	for _, r := range reports {
		added += len(r.Added)
		modified += len(r.Modified)
		deleted += len(r.Deleted)
		unchanged += r.UnchangedCount
	}
	session.Count = len(doc.Policies)
	session.Stats = model.JSONMap{
		"interfaces": len(doc.Interfaces),
		"addresses":  len(doc.Addresses),
		"services":   len(doc.Services),
		"added":      added,
		"modified":   modified,
		"deleted":    deleted,
		"unchanged":  unchanged,
	}
	if err := im.st.UpdateSession(session); err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}

	im.log.Info().
		Str("device", device.Name).
		Bool("created", created).
		Int("policies", len(doc.Policies)).
		Int("added", added).
		Int("modified", modified).
		Int("deleted", deleted).
		Msg("config imported")

	return &ConfigResult{
		Device:        device,
		Session:       session,
		DeviceCreated: created,
		Reports:       reports,
	}, nil
}

// resolveConfigDevice finds the device a dump belongs to, preferring the
// serial, then the hostname. Dumps with neither get a fresh device with a
// synthetic serial so the identity stays unique.
func (im *Importer) resolveConfigDevice(doc *parser.DeviceConfig) (*model.Device, bool, error) {
	if doc.Serial != nil && *doc.Serial != "" {
		device, err := im.st.DeviceByDevID(*doc.Serial)
		if err == nil {
			return device, false, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, false, fmt.Errorf("resolve device by serial: %w", err)
		}
		device = &model.Device{Name: doc.Hostname, Serial: *doc.Serial}
		if err := im.st.CreateDevice(device); err != nil {
			return nil, false, fmt.Errorf("create device: %w", err)
		}
		return device, true, nil
	}

	if doc.Hostname != "" {
		devices, err := im.st.ListDevices()
		if err != nil {
			return nil, false, fmt.Errorf("list devices: %w", err)
		}
		for i := range devices {
			if strings.EqualFold(devices[i].Hostname, doc.Hostname) {
				return &devices[i], false, nil
			}
		}
	}

	device := &model.Device{Name: doc.Hostname, Serial: "TEMP-" + uuid.NewString()}
	if err := im.st.CreateDevice(device); err != nil {
		return nil, false, fmt.Errorf("create device: %w", err)
	}
	return device, true, nil
}

func (im *Importer) syncInventory(deviceID string, doc *parser.DeviceConfig) error {
	if err := im.st.SyncVDOMs(deviceID, doc.VDOMs); err != nil {
		return fmt.Errorf("sync vdoms: %w", err)
	}

	interfaces := make([]model.Interface, 0, len(doc.Interfaces))
	for _, in := range doc.Interfaces {
		interfaces = append(interfaces, model.Interface{
			DeviceID:    deviceID,
			Name:        in.Name,
			VDOM:        vdomOrDefault(in.VDOM),
			Alias:       in.Alias,
			Type:        in.Type,
			Status:      in.Status,
			IP:          cidrNotation(in.IP),
			Role:        in.Role,
			Zone:        in.Zone,
			VLANID:      in.VLANID,
			AllowAccess: in.AllowAccess,
		})
	}
	if err := im.st.SyncInterfaces(interfaces); err != nil {
		return fmt.Errorf("sync interfaces: %w", err)
	}

	addresses := make([]model.AddressObject, 0, len(doc.Addresses))
	for _, a := range doc.Addresses {
		addresses = append(addresses, model.AddressObject{
			DeviceID: deviceID,
			VDOM:     vdomOrDefault(a.VDOM),
			Name:     a.Name,
			Type:     a.Type,
			Subnet:   a.Subnet,
			StartIP:  a.StartIP,
			EndIP:    a.EndIP,
			FQDN:     a.FQDN,
			Country:  a.Country,
			Members:  a.Members,
			Comments: a.Comments,
		})
	}
	if err := im.st.SyncAddressObjects(addresses); err != nil {
		return fmt.Errorf("sync address objects: %w", err)
	}

	services := make([]model.ServiceObject, 0, len(doc.Services))
	for _, svc := range doc.Services {
		services = append(services, model.ServiceObject{
			DeviceID:     deviceID,
			VDOM:         vdomOrDefault(svc.VDOM),
			Name:         svc.Name,
			Protocol:     svc.Protocol,
			TCPPortRange: svc.TCPPortRange,
			UDPPortRange: svc.UDPPortRange,
			Category:     svc.Category,
			IsGroup:      svc.IsGroup,
			Members:      svc.Members,
			Comments:     svc.Comments,
		})
	}
	if err := im.st.SyncServiceObjects(services); err != nil {
		return fmt.Errorf("sync service objects: %w", err)
	}
	return nil
}

// reconcilePolicies runs one reconciliation per VDOM present in the dump.
// VDOMs absent from the dump keep their stored policies untouched.
func (im *Importer) reconcilePolicies(deviceID, sessionID string, doc *parser.DeviceConfig) (map[string]*diff.Report, error) {
	byVDOM := make(map[string][]parser.PolicyConfig)
	for _, p := range doc.Policies {
		vdom := p.VDOM
		if vdom == "" {
			vdom = doc.VDOMName
		}
		vdom = vdomOrDefault(vdom)
		byVDOM[vdom] = append(byVDOM[vdom], p)
	}

	reports := make(map[string]*diff.Report, len(byVDOM))
	for vdom, policies := range byVDOM {
		report, err := im.rec.Reconcile(deviceID, vdom, sessionID, policies)
		if err != nil {
			return nil, fmt.Errorf("reconcile vdom %q: %w", vdom, err)
		}
		reports[vdom] = report
	}
	return reports, nil
}

// cidrNotation rewrites the config's "addr mask" interface notation as
// CIDR for storage. Anything else passes through unchanged.
func cidrNotation(ipMask string) string {
	fields := strings.Fields(ipMask)
	if len(fields) != 2 {
		return ipMask
	}
	if n := netutil.MaskToPrefixLen(fields[1]); n >= 0 {
		return fields[0] + "/" + strconv.Itoa(n)
	}
	return ipMask
}

func vdomOrDefault(vdom string) string {
	if vdom == "" {
		return model.DefaultVDOM
	}
	return vdom
}
