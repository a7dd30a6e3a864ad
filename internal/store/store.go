package store

import (
	"errors"

	"zigbee-lumi/internal/health"
	"zigbee-lumi/internal/lumi"
)

// ErrNotFound is returned when a requested entity does not exist in the store.
var ErrNotFound = errors.New("not found")

// Store defines the persistence interface.
type Store interface {
	// Device operations
	SaveDevice(dev *Device) error
	GetDevice(ieee string) (*Device, error)
	// DeleteDevice removes the device with its health record and regions.
	DeleteDevice(ieee string) error
	ListDevices() ([]*Device, error)

	// UpdateDevice atomically reads, modifies, and saves a device in a single
	// transaction. Returns ErrNotFound if the device does not exist.
	UpdateDevice(ieee string, fn func(dev *Device) error) error

	// Health records, written on every state change.
	SaveHealth(rec health.Record) error
	GetHealth(ieee string) (health.Record, error)

	// Detection regions configured on presence sensors.
	SaveRegion(ieee string, r lumi.Region) error
	DeleteRegion(ieee string, id int) error
	ListRegions(ieee string) ([]lumi.Region, error)

	// Close the store
	Close() error
}
