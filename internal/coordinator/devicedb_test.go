package coordinator

import (
	"os"
	"path/filepath"
	"testing"

	"zigbee-lumi/internal/zcl"
)

func TestDeviceDBAddLookup(t *testing.T) {
	db := NewDeviceDB()

	db.Add(DeviceDefinition{
		Manufacturer: "LUMI",
		Model:        "lumi.curtain.hagl04",
		FriendlyName: "Aqara Curtain B1",
		Driver:       "curtain",
	})
	db.Add(DeviceDefinition{Model: "lumi.motion.ac01", Driver: "presence", Profile: "fp1"})

	if db.Len() != 2 {
		t.Fatalf("len = %d, want 2", db.Len())
	}

	def := db.Lookup("LUMI", "lumi.curtain.hagl04")
	if def == nil {
		t.Fatal("lookup returned nil")
	}
	if def.FriendlyName != "Aqara Curtain B1" || def.Driver != "curtain" {
		t.Errorf("def = %+v", def)
	}

	// Definitions without manufacturer match any manufacturer.
	if def := db.Lookup("Aqara", "lumi.motion.ac01"); def == nil || def.Profile != "fp1" {
		t.Errorf("wildcard lookup = %+v", def)
	}

	// Not found
	if db.Lookup("LUMI", "unknown") != nil {
		t.Error("expected nil for unknown model")
	}
}

func TestLoadDeviceDir(t *testing.T) {
	logger := newTestLogger()
	registry := zcl.NewRegistry(logger)

	dir := t.TempDir()

	os.WriteFile(filepath.Join(dir, "lumi.json"), []byte(`{
		"clusters": [
			{
				"id": 64704,
				"name": "Lumi",
				"manufacturer_code": 4447,
				"attributes": [
					{"id": 327, "name": "PresenceEvent", "type": 32, "access": 5}
				]
			}
		],
		"manufacturers": [
			{
				"name": "LUMI",
				"models": [
					{"model": "lumi.curtain.hagl04", "driver": "curtain", "profile": "curtain"},
					{"model": "lumi.motion.ac01", "driver": "presence", "profile": "fp1-alt", "friendly_name": "FP1"}
				]
			}
		]
	}`), 0644)

	os.WriteFile(filepath.Join(dir, "generic.json"), []byte(`{
		"devices": [
			{"manufacturer": "LUMI", "model": "lumi.plug.maeu01", "driver": "generic"}
		]
	}`), 0644)

	db, err := LoadDeviceDir(dir, registry, logger)
	if err != nil {
		t.Fatal(err)
	}

	c := registry.Get(0xFCC0)
	if c == nil {
		t.Fatal("Lumi cluster not found in registry")
	}
	if c.ManufacturerCode != 0x115F {
		t.Errorf("manufacturer code = 0x%04X", c.ManufacturerCode)
	}

	if db.Len() != 3 {
		t.Fatalf("device count = %d, want 3", db.Len())
	}
	fp1 := db.Lookup("LUMI", "lumi.motion.ac01")
	if fp1 == nil {
		t.Fatal("FP1 not found")
	}
	if fp1.Driver != "presence" || fp1.Profile != "fp1-alt" || fp1.FriendlyName != "FP1" {
		t.Errorf("fp1 = %+v", fp1)
	}
}

func TestLoadDeviceDirRejectsUnknownDriver(t *testing.T) {
	logger := newTestLogger()
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "bad.json"), []byte(`{
		"devices": [{"model": "lumi.airrtc.agl001", "driver": "thermostat"}]
	}`), 0644)

	if _, err := LoadDeviceDir(dir, zcl.NewRegistry(logger), logger); err == nil {
		t.Fatal("expected error for unknown driver")
	}

	os.WriteFile(filepath.Join(dir, "bad.json"), []byte(`{
		"devices": [{"model": "lumi.motion.ac01", "driver": "presence", "profile": "fp2"}]
	}`), 0644)
	if _, err := LoadDeviceDir(dir, zcl.NewRegistry(logger), logger); err == nil {
		t.Fatal("expected error for unknown profile")
	}
}

func TestLoadDeviceDirMissing(t *testing.T) {
	logger := newTestLogger()
	registry := zcl.NewRegistry(logger)

	// Non-existent directory should return empty DB, no error.
	db, err := LoadDeviceDir("/nonexistent/dir", registry, logger)
	if err != nil {
		t.Fatal(err)
	}
	if db.Len() != 0 {
		t.Errorf("len = %d, want 0", db.Len())
	}
}
