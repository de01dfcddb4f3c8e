package mcp

import (
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

func TestToolDefinitions(t *testing.T) {
	t.Parallel()

	tools := ToolDefinitions()

	if len(tools) == 0 {
		t.Fatal("ToolDefinitions() returned empty slice")
	}

	// Expected tool names
	expectedTools := []string{
		"mesh_connect",
		"mesh_status",
		"mesh_scan_ports",
		"mesh_device_info",
		"mesh_nodes",
		"mesh_set_owner",
		"mesh_channels",
		"mesh_export_config",
		"mesh_configure",
		"mesh_version",
		"mesh_reboot",
		"mesh_shutdown",
		"mesh_factory_reset",
		"mesh_position",
		"mesh_set_position",
		"mesh_send_position",
		"mesh_send_text",
		"mesh_send_alert",
		"mesh_send_heartbeat",
		"mesh_send_telemetry",
		"mesh_traceroute",
		"mesh_send_waypoint",
		"mesh_delete_waypoint",
		"mesh_waypoints",
	}

	if len(tools) != len(expectedTools) {
		t.Errorf("ToolDefinitions() returned %d tools, want %d", len(tools), len(expectedTools))
	}

	// Create map of returned tools
	toolMap := make(map[string]mcplib.Tool)
	for _, tool := range tools {
		toolMap[tool.Name] = tool
	}

	// Check each expected tool exists
	for _, name := range expectedTools {
		if _, ok := toolMap[name]; !ok {
			t.Errorf("missing expected tool: %s", name)
		}
	}
}

func TestToolDefinitions_ToolProperties(t *testing.T) {
	t.Parallel()

	tools := ToolDefinitions()
	toolMap := make(map[string]mcplib.Tool)
	for _, tool := range tools {
		toolMap[tool.Name] = tool
	}

	tests := []struct {
		name           string
		requiredParams []string
		optionalParams []string
	}{
		{
			name:           "mesh_connect",
			requiredParams: []string{"address"},
			optionalParams: []string{"transport"},
		},
		{
			name: "mesh_status",
		},
		{
			name: "mesh_scan_ports",
		},
		{
			name: "mesh_device_info",
		},
		{
			name:           "mesh_nodes",
			optionalParams: []string{"limit", "include_self"},
		},
		{
			name:           "mesh_set_owner",
			optionalParams: []string{"long", "short"},
		},
		{
			name: "mesh_channels",
		},
		{
			name: "mesh_export_config",
		},
		{
			name:           "mesh_configure",
			requiredParams: []string{"yml"},
		},
		{
			name: "mesh_version",
		},
		{
			name:           "mesh_reboot",
			optionalParams: []string{"seconds"},
		},
		{
			name:           "mesh_shutdown",
			optionalParams: []string{"seconds"},
		},
		{
			name:           "mesh_factory_reset",
			requiredParams: []string{"confirm"},
		},
		{
			name: "mesh_position",
		},
		{
			name:           "mesh_set_position",
			requiredParams: []string{"lat", "lon"},
			optionalParams: []string{"alt"},
		},
		{
			name:           "mesh_send_position",
			requiredParams: []string{"lat", "lon"},
			optionalParams: []string{"alt", "destination", "channel", "want_ack"},
		},
		{
			name:           "mesh_send_text",
			requiredParams: []string{"text"},
			optionalParams: []string{"destination", "channel", "want_ack"},
		},
		{
			name:           "mesh_send_alert",
			requiredParams: []string{"text"},
			optionalParams: []string{"destination", "channel"},
		},
		{
			name: "mesh_send_heartbeat",
		},
		{
			name:           "mesh_send_telemetry",
			optionalParams: []string{"destination", "channel"},
		},
		{
			name:           "mesh_traceroute",
			requiredParams: []string{"destination"},
			optionalParams: []string{"hop_limit", "channel"},
		},
		{
			name:           "mesh_send_waypoint",
			requiredParams: []string{"lat", "lon"},
			optionalParams: []string{"name", "description", "expire", "id"},
		},
		{
			name:           "mesh_delete_waypoint",
			requiredParams: []string{"id"},
		},
		{
			name: "mesh_waypoints",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tool, ok := toolMap[tt.name]
			if !ok {
				t.Fatalf("tool %s not found", tt.name)
			}

			if tool.Description == "" {
				t.Errorf("tool %s missing description", tt.name)
			}

			if tool.InputSchema.Type != "object" {
				t.Errorf("tool %s has unexpected input schema type: %s", tt.name, tool.InputSchema.Type)
			}

			requiredSet := make(map[string]bool)
			for _, req := range tool.InputSchema.Required {
				requiredSet[req] = true
			}

			for _, param := range tt.requiredParams {
				if !requiredSet[param] {
					t.Errorf("tool %s: expected required param %q not found in required list", tt.name, param)
				}
			}

			// Check all expected params exist in properties
			if tool.InputSchema.Properties != nil {
				for _, param := range append(tt.requiredParams, tt.optionalParams...) {
					if _, ok := tool.InputSchema.Properties[param]; !ok {
						t.Errorf("tool %s: expected param %q not found in properties", tt.name, param)
					}
				}
			} else if len(tt.requiredParams) > 0 || len(tt.optionalParams) > 0 {
				t.Errorf("tool %s: expected properties but got nil", tt.name)
			}

			// Optional params must not appear in the required list
			for _, param := range tt.optionalParams {
				if requiredSet[param] {
					t.Errorf("tool %s: param %q should not be required", tt.name, param)
				}
			}
		})
	}
}

func TestToolConnect(t *testing.T) {
	t.Parallel()

	tool := toolConnect()

	if tool.Name != "mesh_connect" {
		t.Errorf("tool.Name = %q, want %q", tool.Name, "mesh_connect")
	}

	if tool.InputSchema.Properties == nil {
		t.Fatal("tool.InputSchema.Properties is nil")
	}

	// transport is an enum of the supported transports
	prop, ok := tool.InputSchema.Properties["transport"]
	if !ok {
		t.Fatal("transport property not found")
	}

	m, ok := prop.(map[string]any)
	if !ok {
		t.Fatalf("transport property has unexpected type %T", prop)
	}

	enum, ok := m["enum"]
	if !ok {
		t.Fatal("transport property has no enum")
	}

	values, ok := enum.([]string)
	if !ok {
		t.Fatalf("transport enum has unexpected type %T", enum)
	}

	want := map[string]bool{"tcp": false, "serial": false}
	for _, v := range values {
		want[v] = true
	}
	for v, seen := range want {
		if !seen {
			t.Errorf("transport enum missing value %q", v)
		}
	}
}

func TestToolTraceroute(t *testing.T) {
	t.Parallel()

	tool := toolTraceroute()

	if tool.Name != "mesh_traceroute" {
		t.Errorf("tool.Name = %q, want %q", tool.Name, "mesh_traceroute")
	}

	// destination is required, unlike the send tools where it defaults
	// to broadcast
	hasDest := false
	for _, req := range tool.InputSchema.Required {
		if req == "destination" {
			hasDest = true
			break
		}
	}
	if !hasDest {
		t.Error("destination should be required")
	}
}
