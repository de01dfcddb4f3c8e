package radio

import (
	"strings"
	"testing"

	pb "github.com/meshtastic/go/generated"
)

func TestSetField_Scalars(t *testing.T) {
	t.Parallel()

	cfg := &pb.Config_DeviceConfig{}
	m := cfg.ProtoReflect()

	if err := setField(m, "serial_enabled", true); err != nil {
		t.Fatalf("setField(serial_enabled) error = %v", err)
	}
	if !cfg.SerialEnabled {
		t.Error("serial_enabled not set")
	}

	// YAML decodes integers as int; node_info_broadcast_secs is uint32.
	if err := setField(m, "node_info_broadcast_secs", 3600); err != nil {
		t.Fatalf("setField(node_info_broadcast_secs) error = %v", err)
	}
	if cfg.NodeInfoBroadcastSecs != 3600 {
		t.Errorf("node_info_broadcast_secs = %d, want 3600", cfg.NodeInfoBroadcastSecs)
	}
}

func TestSetField_EnumByName(t *testing.T) {
	t.Parallel()

	cfg := &pb.Config_DeviceConfig{}
	if err := setField(cfg.ProtoReflect(), "role", "ROUTER"); err != nil {
		t.Fatalf("setField(role) error = %v", err)
	}
	if cfg.Role != pb.Config_DeviceConfig_ROUTER {
		t.Errorf("role = %v, want ROUTER", cfg.Role)
	}
}

func TestSetField_EnumByNumber(t *testing.T) {
	t.Parallel()

	cfg := &pb.Config_DeviceConfig{}
	if err := setField(cfg.ProtoReflect(), "role", int(pb.Config_DeviceConfig_ROUTER)); err != nil {
		t.Fatalf("setField(role) error = %v", err)
	}
	if cfg.Role != pb.Config_DeviceConfig_ROUTER {
		t.Errorf("role = %v, want ROUTER", cfg.Role)
	}
}

func TestSetField_BadEnumListsChoices(t *testing.T) {
	t.Parallel()

	cfg := &pb.Config_DeviceConfig{}
	err := setField(cfg.ProtoReflect(), "role", "SUPERNODE")
	if err == nil {
		t.Fatal("setField() accepted an unknown enum value")
	}
	if !strings.Contains(err.Error(), "ROUTER") {
		t.Errorf("error does not list valid choices: %v", err)
	}
}

func TestSetField_CamelCaseName(t *testing.T) {
	t.Parallel()

	cfg := &pb.Config_DeviceConfig{}
	if err := setField(cfg.ProtoReflect(), "serialEnabled", true); err != nil {
		t.Fatalf("setField(serialEnabled) error = %v", err)
	}
	if !cfg.SerialEnabled {
		t.Error("serialEnabled not set via camelCase name")
	}
}

func TestSetField_NestedMessage(t *testing.T) {
	t.Parallel()

	cfg := &pb.Config{}
	err := setField(cfg.ProtoReflect(), "lora", map[string]any{
		"region":    "EU_868",
		"hop_limit": 5,
	})
	if err != nil {
		t.Fatalf("setField(lora) error = %v", err)
	}

	lora := cfg.GetLora()
	if lora == nil {
		t.Fatal("lora section not populated")
	}
	if lora.Region != pb.Config_LoRaConfig_EU_868 {
		t.Errorf("region = %v, want EU_868", lora.Region)
	}
	if lora.HopLimit != 5 {
		t.Errorf("hop_limit = %d, want 5", lora.HopLimit)
	}
}

func TestSetField_UnknownField(t *testing.T) {
	t.Parallel()

	cfg := &pb.Config_DeviceConfig{}
	if err := setField(cfg.ProtoReflect(), "warp_drive", true); err == nil {
		t.Fatal("setField() accepted an unknown field")
	}
}

func TestCamelToSnake(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"serialEnabled", "serial_enabled"},
		{"serial_enabled", "serial_enabled"},
		{"role", "role"},
		{"nodeInfoBroadcastSecs", "node_info_broadcast_secs"},
	}

	for _, tt := range tests {
		if got := camelToSnake(tt.in); got != tt.want {
			t.Errorf("camelToSnake(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
