package store

import (
	"fmt"

	"gorm.io/gorm/clause"

	"firewall-policy-auditor/internal/model"
)

// Config object sync is update-or-create on the natural key: re-imports
// refresh mutable fields in place so foreign rows (history, findings)
// never dangle.

// SyncVDOMs ensures the named VDOMs exist for a device.
func (s *Store) SyncVDOMs(deviceID string, names []string) error {
	if len(names) == 0 {
		names = []string{model.DefaultVDOM}
	}
	for _, name := range names {
		v := model.VDOM{DeviceID: deviceID, Name: name}
		err := s.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "device_id"}, {Name: "name"}},
			DoNothing: true,
		}).Create(&v).Error
		if err != nil {
			return fmt.Errorf("sync vdom %q: %w", name, err)
		}
	}
	return nil
}

// SyncInterfaces upserts interfaces keyed by (device, name). Interface
// names are unique per device regardless of VDOM.
func (s *Store) SyncInterfaces(interfaces []model.Interface) error {
	for i := range interfaces {
		in := &interfaces[i]
		err := s.db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "device_id"}, {Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"vdom", "alias", "type", "status", "ip", "role", "zone",
				"vlan_id", "allow_access", "updated_at",
			}),
		}).Create(in).Error
		if err != nil {
			return fmt.Errorf("sync interface %q: %w", in.Name, err)
		}
	}
	return nil
}

// SyncAddressObjects upserts address objects keyed by (device, vdom, name).
func (s *Store) SyncAddressObjects(objects []model.AddressObject) error {
	for i := range objects {
		obj := &objects[i]
		err := s.db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "device_id"}, {Name: "vdom"}, {Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"type", "subnet", "start_ip", "end_ip", "fqdn", "country",
				"members", "comments", "updated_at",
			}),
		}).Create(obj).Error
		if err != nil {
			return fmt.Errorf("sync address object %q: %w", obj.Name, err)
		}
	}
	return nil
}

// SyncServiceObjects upserts service objects keyed by (device, vdom, name).
func (s *Store) SyncServiceObjects(objects []model.ServiceObject) error {
	for i := range objects {
		obj := &objects[i]
		err := s.db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "device_id"}, {Name: "vdom"}, {Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"protocol", "tcp_port_range", "udp_port_range", "category",
				"is_group", "members", "comments", "updated_at",
			}),
		}).Create(obj).Error
		if err != nil {
			return fmt.Errorf("sync service object %q: %w", obj.Name, err)
		}
	}
	return nil
}

// InterfacesByDevice returns every interface of a device.
func (s *Store) InterfacesByDevice(deviceID string) ([]model.Interface, error) {
	var interfaces []model.Interface
	if err := s.db.Where("device_id = ?", deviceID).Order("name").Find(&interfaces).Error; err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}
	return interfaces, nil
}

// VDOMsByDevice returns the VDOM names of a device.
func (s *Store) VDOMsByDevice(deviceID string) ([]model.VDOM, error) {
	var vdoms []model.VDOM
	if err := s.db.Where("device_id = ?", deviceID).Order("name").Find(&vdoms).Error; err != nil {
		return nil, fmt.Errorf("list vdoms: %w", err)
	}
	return vdoms, nil
}
