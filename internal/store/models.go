package store

import "time"

// Device is an installed device.
type Device struct {
	IEEEAddress  string         `json:"ieee_address"`
	Manufacturer string         `json:"manufacturer,omitempty"`
	Model        string         `json:"model,omitempty"`
	FriendlyName string         `json:"friendly_name,omitempty"`
	Driver       string         `json:"driver"`
	Profile      string         `json:"profile,omitempty"`
	Endpoint     uint8          `json:"endpoint,omitempty"`
	InstalledAt  time.Time      `json:"installed_at"`
	Properties   map[string]any `json:"properties,omitempty"`
}

// Name returns the friendly name, falling back to the model and then the
// IEEE address.
func (d *Device) Name() string {
	switch {
	case d.FriendlyName != "":
		return d.FriendlyName
	case d.Model != "":
		return d.Model
	}
	return d.IEEEAddress
}
