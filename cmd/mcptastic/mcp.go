package main

import (
	"github.com/ramarlina/mcptastic/pkg/config"
	"github.com/ramarlina/mcptastic/pkg/geoip"
	"github.com/ramarlina/mcptastic/pkg/mcp"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(mcpCmd)
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run MCP (Model Context Protocol) server",
	Long: `Run an MCP server that exposes the connected Meshtastic device
to AI assistants.

The server communicates over stdio using the Model Context Protocol,
allowing AI tools like Claude to read the mesh and send packets
programmatically.

Available tools:
  Connection:
    mesh_connect        - Connect to a device over TCP or serial
    mesh_status         - Check the current device connection
    mesh_scan_ports     - List serial ports and likely devices

  Device:
    mesh_device_info    - Owner, firmware, and the full node list
    mesh_nodes          - Nodes in the mesh, with optional filtering
    mesh_set_owner      - Set the device owner names
    mesh_channels       - Channel table and share URL
    mesh_export_config  - Export device configuration as YAML
    mesh_configure      - Apply a YAML configuration document
    mesh_version        - Report the server version

  Administration:
    mesh_reboot         - Reboot the device after a delay
    mesh_shutdown       - Power off the device after a delay
    mesh_factory_reset  - Wipe the device back to factory defaults

  Location:
    mesh_position       - Device position, with IP geolocation fallback
    mesh_set_position   - Pin the device to fixed coordinates
    mesh_send_position  - Broadcast a position packet

  Messaging:
    mesh_send_text      - Send a text message
    mesh_send_alert     - Send a high-priority alert
    mesh_send_heartbeat - Keep the device link alive
    mesh_send_telemetry - Request or broadcast telemetry
    mesh_traceroute     - Trace the route to a node

  Waypoints:
    mesh_send_waypoint   - Create or update a waypoint
    mesh_delete_waypoint - Expire a waypoint across the mesh
    mesh_waypoints       - List recorded waypoints

Environment variables:
  MCPTASTIC_ADDR          - Device address (default: meshtastic.local)
  MCPTASTIC_TRANSPORT     - tcp or serial (default: tcp)
  MCPTASTIC_DB            - Node database path
  MCPTASTIC_GEO_URL       - IP geolocation endpoint
  MCPTASTIC_ELEVATION_URL - Elevation lookup endpoint
  MCPTASTIC_CONFIG_DIR    - Custom config directory

Example MCP configuration (claude_desktop_config.json):
  {
    "mcpServers": {
      "mcptastic": {
        "command": "mcptastic",
        "args": ["mcp"],
        "env": {
          "MCPTASTIC_ADDR": "meshtastic.local"
        }
      }
    }
  }`,
	RunE: func(cmd *cobra.Command, args []string) error {
		address, transport := deviceAddress()
		srv := mcp.NewServer(&mcp.HandlerConfig{
			Address:   address,
			Transport: transport,
			DBPath:    dbPath(),
			Geo: geoip.New(
				geoip.WithGeoURL(config.GetGeoURL()),
				geoip.WithElevationURL(config.GetElevationURL()),
			),
		})
		return srv.Serve()
	},
}
