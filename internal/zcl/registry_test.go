package zcl

import (
	"io"
	"log/slog"
	"testing"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry(newTestLogger(), ClusterDef{
		ID:   0x0102,
		Name: "Window Covering",
		Attributes: []AttributeDef{
			{ID: 0x0008, Name: "CurrentPositionLiftPercentage", Type: TypeUint8, Access: AccessRead | AccessReport},
		},
	})

	got := r.Get(0x0102)
	if got == nil {
		t.Fatal("cluster not found")
	}
	if got.Name != "Window Covering" {
		t.Errorf("name = %q, want %q", got.Name, "Window Covering")
	}
	got.Attributes[0].Name = "mutated"
	if a, _ := r.Attribute(0x0102, 0x0008); a.Name != "CurrentPositionLiftPercentage" {
		t.Errorf("registry shared storage with caller: %q", a.Name)
	}
}

func TestRegistryMerge(t *testing.T) {
	r := NewRegistry(newTestLogger())
	r.Register(ClusterDef{
		ID:   0xFCC0,
		Name: "Lumi",
		Attributes: []AttributeDef{
			{ID: 0x010C, Name: "Sensitivity", Type: TypeUint8, Access: AccessRead | AccessWrite},
		},
	})
	r.Register(ClusterDef{
		ID:               0xFCC0,
		ManufacturerCode: 0x115F,
		Attributes: []AttributeDef{
			{ID: 0x010C, Name: "Duplicate", Type: TypeUint16},
			{ID: 0x0146, Name: "TriggerDistance", Type: TypeUint8, Access: AccessRead | AccessWrite},
		},
	})

	got := r.Get(0xFCC0)
	if len(got.Attributes) != 2 {
		t.Fatalf("after merge: attrs = %d, want 2", len(got.Attributes))
	}
	if got.ManufacturerCode != 0x115F {
		t.Errorf("manufacturer code = 0x%04X, want 0x115F", got.ManufacturerCode)
	}
	if a := got.FindAttribute(0x010C); a.Name != "Sensitivity" {
		t.Errorf("existing attribute overwritten: %q", a.Name)
	}
}

func TestRegistryNames(t *testing.T) {
	r := NewRegistry(newTestLogger(), ClusterDef{
		ID: 0x0001, Name: "Power Configuration",
		Attributes: []AttributeDef{{ID: 0x0021, Name: "BatteryPercentageRemaining", Type: TypeUint8}},
	})

	tests := []struct {
		cluster, attr uint16
		want          string
	}{
		{0x0001, 0x0021, "Power Configuration.BatteryPercentageRemaining"},
		{0x0001, 0x0099, "Power Configuration.0x0099"},
		{0x0B04, 0x0505, "0x0B04.0x0505"},
	}
	for _, tt := range tests {
		if got := r.AttributeName(tt.cluster, tt.attr); got != tt.want {
			t.Errorf("AttributeName(0x%04X, 0x%04X) = %q, want %q", tt.cluster, tt.attr, got, tt.want)
		}
	}
}

func TestRegistryAllSorted(t *testing.T) {
	r := NewRegistry(newTestLogger(),
		ClusterDef{ID: 3, Name: "C"},
		ClusterDef{ID: 1, Name: "A"},
		ClusterDef{ID: 2, Name: "B"},
	)
	all := r.All()
	if len(all) != 3 {
		t.Fatalf("got %d clusters, want 3", len(all))
	}
	for i, c := range all {
		if c.ID != uint16(i+1) {
			t.Errorf("all[%d].ID = %d, want %d", i, c.ID, i+1)
		}
	}
}
