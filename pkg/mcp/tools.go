package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// ToolDefinitions returns all tool definitions for the MCPtastic server.
func ToolDefinitions() []mcp.Tool {
	return []mcp.Tool{
		// Connection tools
		toolConnect(),
		toolStatus(),
		toolScanPorts(),

		// Device tools
		toolDeviceInfo(),
		toolNodes(),
		toolSetOwner(),
		toolChannels(),
		toolExportConfig(),
		toolConfigure(),
		toolVersion(),

		// Administration tools
		toolReboot(),
		toolShutdown(),
		toolFactoryReset(),

		// Location tools
		toolPosition(),
		toolSetPosition(),
		toolSendPosition(),

		// Messaging tools
		toolSendText(),
		toolSendAlert(),
		toolSendHeartbeat(),
		toolSendTelemetry(),
		toolTraceroute(),

		// Waypoint tools
		toolSendWaypoint(),
		toolDeleteWaypoint(),
		toolWaypoints(),
	}
}

// === Connection Tools ===

func toolConnect() mcp.Tool {
	return mcp.NewTool("mesh_connect",
		mcp.WithDescription("Connect to a Meshtastic device. Replaces any existing connection. Other tools connect to the default device automatically, so this is only needed to reach a non-default address."),
		mcp.WithString("address",
			mcp.Description("Device address: a hostname/IP for tcp (default meshtastic.local) or a serial port path like /dev/ttyUSB0"),
			mcp.Required(),
		),
		mcp.WithString("transport",
			mcp.Description("Connection transport (default: tcp)"),
			mcp.Enum("tcp", "serial"),
		),
	)
}

func toolStatus() mcp.Tool {
	return mcp.NewTool("mesh_status",
		mcp.WithDescription("Check the device connection and show the connected node: node ID, owner names, hardware model, firmware version."),
	)
}

func toolScanPorts() mcp.Tool {
	return mcp.NewTool("mesh_scan_ports",
		mcp.WithDescription("Scan serial ports for attached Meshtastic devices. Ports whose USB vendor ID matches a supported board family are flagged."),
	)
}

// === Device Tools ===

func toolDeviceInfo() mcp.Tool {
	return mcp.NewTool("mesh_device_info",
		mcp.WithDescription("Get full device information: owner, my-info, metadata, and every node the device knows about. The snapshot is also saved to the local node database."),
	)
}

func toolNodes() mcp.Tool {
	return mcp.NewTool("mesh_nodes",
		mcp.WithDescription("List the nodes in the mesh as seen by the connected device"),
		mcp.WithNumber("limit",
			mcp.Description("Maximum nodes to return (default 50)"),
		),
		mcp.WithBoolean("include_self",
			mcp.Description("Include the local node in the output (default: true)"),
		),
	)
}

func toolSetOwner() mcp.Tool {
	return mcp.NewTool("mesh_set_owner",
		mcp.WithDescription("Set the device owner (device name). At least one of long/short is required."),
		mcp.WithString("long",
			mcp.Description("Long owner name (shown in node lists)"),
		),
		mcp.WithString("short",
			mcp.Description("Short owner name (up to 4 characters, shown on small screens)"),
		),
	)
}

func toolChannels() mcp.Tool {
	return mcp.NewTool("mesh_channels",
		mcp.WithDescription("Show the channel table of the connected device, including the shareable channel URL"),
	)
}

func toolExportConfig() mcp.Tool {
	return mcp.NewTool("mesh_export_config",
		mcp.WithDescription("Export the device configuration as YAML. The output can be edited and fed back to mesh_configure."),
	)
}

func toolConfigure() mcp.Tool {
	return mcp.NewTool("mesh_configure",
		mcp.WithDescription(`Apply a YAML configuration document to the device.

Recognized top-level keys: owner, owner_short, channel_url, location
(lat/lon/alt), config (device settings by section), module_config.
Unknown preference keys are skipped and reported.`),
		mcp.WithString("yml",
			mcp.Description("YAML configuration document"),
			mcp.Required(),
		),
	)
}

func toolVersion() mcp.Tool {
	return mcp.NewTool("mesh_version",
		mcp.WithDescription("Show the MCPtastic version and, when connected, the device firmware version"),
	)
}

// === Administration Tools ===

func toolReboot() mcp.Tool {
	return mcp.NewTool("mesh_reboot",
		mcp.WithDescription("Reboot the connected device after a short delay. The connection drops when the device goes down."),
		mcp.WithNumber("seconds",
			mcp.Description("Delay before rebooting (default 10)"),
		),
	)
}

func toolShutdown() mcp.Tool {
	return mcp.NewTool("mesh_shutdown",
		mcp.WithDescription("Power off the connected device after a short delay. The device must be restarted by hand."),
		mcp.WithNumber("seconds",
			mcp.Description("Delay before shutting down (default 10)"),
		),
	)
}

func toolFactoryReset() mcp.Tool {
	return mcp.NewTool("mesh_factory_reset",
		mcp.WithDescription("Factory-reset the connected device. All settings, channels, and the owner name are wiped; the device reboots with defaults. This cannot be undone."),
		mcp.WithBoolean("confirm",
			mcp.Description("Must be true; guards against accidental resets"),
			mcp.Required(),
		),
	)
}

// === Location Tools ===

func toolPosition() mcp.Tool {
	return mcp.NewTool("mesh_position",
		mcp.WithDescription("Get the device position. If the device has no GPS fix, falls back to IP geolocation (with elevation lookup) and says so. Use mesh_set_position to pin the device to a location."),
	)
}

func toolSetPosition() mcp.Tool {
	return mcp.NewTool("mesh_set_position",
		mcp.WithDescription("Pin the device to a fixed position"),
		mcp.WithNumber("lat",
			mcp.Description("Latitude in degrees"),
			mcp.Required(),
		),
		mcp.WithNumber("lon",
			mcp.Description("Longitude in degrees"),
			mcp.Required(),
		),
		mcp.WithNumber("alt",
			mcp.Description("Altitude in meters (default 0)"),
		),
	)
}

func toolSendPosition() mcp.Tool {
	return mcp.NewTool("mesh_send_position",
		mcp.WithDescription("Broadcast a position packet to the mesh"),
		mcp.WithNumber("lat",
			mcp.Description("Latitude in degrees"),
			mcp.Required(),
		),
		mcp.WithNumber("lon",
			mcp.Description("Longitude in degrees"),
			mcp.Required(),
		),
		mcp.WithNumber("alt",
			mcp.Description("Altitude in meters (default 0)"),
		),
		mcp.WithString("destination",
			mcp.Description("Destination node: '!hex' ID, decimal number, or '^all' (default: broadcast)"),
		),
		mcp.WithNumber("channel",
			mcp.Description("Channel index (default 0)"),
		),
		mcp.WithBoolean("want_ack",
			mcp.Description("Request reliable delivery with acknowledgement (default: false)"),
		),
	)
}

// === Messaging Tools ===

func toolSendText() mcp.Tool {
	return mcp.NewTool("mesh_send_text",
		mcp.WithDescription("Send a text message over the mesh"),
		mcp.WithString("text",
			mcp.Description("Message text (keep under 200 bytes; LoRa frames are small)"),
			mcp.Required(),
		),
		mcp.WithString("destination",
			mcp.Description("Destination node: '!hex' ID, decimal number, or '^all' (default: broadcast)"),
		),
		mcp.WithNumber("channel",
			mcp.Description("Channel index (default 0)"),
		),
		mcp.WithBoolean("want_ack",
			mcp.Description("Request reliable delivery with acknowledgement (default: false)"),
		),
	)
}

func toolSendAlert() mcp.Tool {
	return mcp.NewTool("mesh_send_alert",
		mcp.WithDescription("Send an alert text. Like a text message but carries a higher priority and can raise special notifications on receiving clients."),
		mcp.WithString("text",
			mcp.Description("Alert text"),
			mcp.Required(),
		),
		mcp.WithString("destination",
			mcp.Description("Destination node: '!hex' ID, decimal number, or '^all' (default: broadcast)"),
		),
		mcp.WithNumber("channel",
			mcp.Description("Channel index (default 0)"),
		),
	)
}

func toolSendHeartbeat() mcp.Tool {
	return mcp.NewTool("mesh_send_heartbeat",
		mcp.WithDescription("Send a heartbeat to keep the device link alive"),
	)
}

func toolSendTelemetry() mcp.Tool {
	return mcp.NewTool("mesh_send_telemetry",
		mcp.WithDescription("Send device-metrics telemetry to the mesh"),
		mcp.WithString("destination",
			mcp.Description("Destination node: '!hex' ID, decimal number, or '^all' (default: broadcast)"),
		),
		mcp.WithNumber("channel",
			mcp.Description("Channel index (default 0)"),
		),
	)
}

func toolTraceroute() mcp.Tool {
	return mcp.NewTool("mesh_traceroute",
		mcp.WithDescription("Send a traceroute request towards a node. Intermediate nodes record themselves in the reply, which arrives on the device asynchronously."),
		mcp.WithString("destination",
			mcp.Description("Destination node: '!hex' ID or decimal number"),
			mcp.Required(),
		),
		mcp.WithNumber("hop_limit",
			mcp.Description("Maximum hops to probe (default: device setting)"),
		),
		mcp.WithNumber("channel",
			mcp.Description("Channel index (default 0)"),
		),
	)
}

// === Waypoint Tools ===

func toolSendWaypoint() mcp.Tool {
	return mcp.NewTool("mesh_send_waypoint",
		mcp.WithDescription("Create a waypoint and broadcast it over the mesh. The waypoint is also recorded in the local node database."),
		mcp.WithNumber("lat",
			mcp.Description("Latitude of the waypoint"),
			mcp.Required(),
		),
		mcp.WithNumber("lon",
			mcp.Description("Longitude of the waypoint"),
			mcp.Required(),
		),
		mcp.WithString("name",
			mcp.Description("Waypoint name"),
		),
		mcp.WithString("description",
			mcp.Description("Waypoint description"),
		),
		mcp.WithString("expire",
			mcp.Description("Expiry time, RFC 3339 (default: 24h from now)"),
		),
		mcp.WithNumber("id",
			mcp.Description("Waypoint ID. Reusing an ID updates that waypoint; 0 assigns a random ID."),
		),
	)
}

func toolDeleteWaypoint() mcp.Tool {
	return mcp.NewTool("mesh_delete_waypoint",
		mcp.WithDescription("Delete a waypoint: broadcasts an expiry so peers drop it, and removes the local record"),
		mcp.WithNumber("id",
			mcp.Description("ID of the waypoint to delete"),
			mcp.Required(),
		),
	)
}

func toolWaypoints() mcp.Tool {
	return mcp.NewTool("mesh_waypoints",
		mcp.WithDescription("List the waypoints recorded in the local node database"),
	)
}
