package store

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"firewall-policy-auditor/internal/model"
)

// ErrNotFound is returned by lookups that matched no row.
var ErrNotFound = errors.New("not found")

// CreateDevice registers a firewall. The serial must be unique.
func (s *Store) CreateDevice(d *model.Device) error {
	if err := s.db.Create(d).Error; err != nil {
		return fmt.Errorf("create device %q: %w", d.Name, err)
	}
	return nil
}

// UpdateDevice persists changed device fields.
func (s *Store) UpdateDevice(d *model.Device) error {
	if err := s.db.Save(d).Error; err != nil {
		return fmt.Errorf("update device %s: %w", d.ID, err)
	}
	return nil
}

// DeviceByID fetches one device, ErrNotFound when absent.
func (s *Store) DeviceByID(id string) (*model.Device, error) {
	var d model.Device
	err := s.db.First(&d, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("device %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get device %s: %w", id, err)
	}
	return &d, nil
}

// DeviceByDevID resolves a log devid against registered serials, checking
// the primary serial first and the HA peer serial second.
func (s *Store) DeviceByDevID(devid string) (*model.Device, error) {
	if devid == "" {
		return nil, fmt.Errorf("empty devid: %w", ErrNotFound)
	}
	var d model.Device
	err := s.db.First(&d, "serial = ?", devid).Error
	if err == nil {
		return &d, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("lookup devid %q: %w", devid, err)
	}
	err = s.db.First(&d, "second_serial = ?", devid).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("devid %q: %w", devid, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup devid %q: %w", devid, err)
	}
	return &d, nil
}

// ListDevices returns all registered devices ordered by name.
func (s *Store) ListDevices() ([]model.Device, error) {
	var devices []model.Device
	if err := s.db.Order("name").Find(&devices).Error; err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	return devices, nil
}
