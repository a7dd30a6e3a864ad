package coordinator

import (
	"zigbee-lumi/internal/driver"
	"zigbee-lumi/internal/store"
)

// OnProperties implements driver.Listener: persists the changed properties
// in one transaction and emits a single property_update event.
func (dm *DeviceManager) OnProperties(ieee string, changed map[string]interface{}) {
	props := driver.NormalizeProperties(changed)
	name := dm.name(ieee)

	for k, v := range props {
		dm.logger.Info("property update", "ieee", ieee, "name", name, "property", k, "value", v)
	}

	if err := dm.coord.Store().UpdateDevice(ieee, func(d *store.Device) error {
		if d.Properties == nil {
			d.Properties = make(map[string]any)
		}
		for k, v := range props {
			d.Properties[k] = v
		}
		return nil
	}); err != nil {
		dm.logger.Error("save device properties", "err", err, "ieee", ieee)
	}

	dm.coord.Events().Emit(Event{
		Type: EventPropertyUpdate,
		Data: PropertyData{IEEE: ieee, Name: name, Properties: props},
	})
}
