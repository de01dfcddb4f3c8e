package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	pb "github.com/meshtastic/go/generated"
	"github.com/ramarlina/mcptastic/pkg/geoip"
	"github.com/ramarlina/mcptastic/pkg/nodedb"
	"github.com/ramarlina/mcptastic/pkg/radio"
)

// defaultWaypointTTL is how long a waypoint lives when no expiry is
// given.
const defaultWaypointTTL = 24 * time.Hour

// HandlerConfig carries the handler defaults: which device to reach
// when no connection is open, where the node database lives, and the
// geolocation client for the GPS fallback.
type HandlerConfig struct {
	Address   string
	Transport radio.Transport
	DBPath    string
	Geo       *geoip.Client
}

// Handlers contains all tool handlers for the MCPtastic server.
type Handlers struct {
	manager *radio.Manager
	cfg     *HandlerConfig
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(manager *radio.Manager, cfg *HandlerConfig) *Handlers {
	return &Handlers{manager: manager, cfg: cfg}
}

// getRadio returns the live connection, dialing the default device if
// none is open yet.
func (h *Handlers) getRadio() (*radio.Radio, error) {
	if r, err := h.manager.Radio(); err == nil {
		return r, nil
	}
	return h.manager.Connect(h.cfg.Address, h.cfg.Transport)
}

// openDB opens the node database for the duration of one call.
func (h *Handlers) openDB() (*nodedb.DB, error) {
	return nodedb.Open(h.cfg.DBPath)
}

// === Connection Handlers ===

// HandleConnect handles the mesh_connect tool.
func (h *Handlers) HandleConnect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	address, err := req.RequireString("address")
	if err != nil {
		return mcp.NewToolResultError("address is required"), nil
	}

	transport := radio.Transport(req.GetString("transport", string(radio.TransportTCP)))
	if transport != radio.TransportTCP && transport != radio.TransportSerial {
		return mcp.NewToolResultError(fmt.Sprintf("unsupported transport %q", transport)), nil
	}

	r, err := h.manager.Connect(address, transport)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("Failed to connect", err), nil
	}

	return mcp.NewToolResultText(FormatConnected(r, address, transport)), nil
}

// HandleStatus handles the mesh_status tool.
func (h *Handlers) HandleStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	address, transport, connected := h.manager.Address()
	if !connected {
		return mcp.NewToolResultText(fmt.Sprintf(
			"Not connected. Tools will connect to %s (%s) on first use; use mesh_connect for a different device.",
			h.cfg.Address, h.cfg.Transport)), nil
	}

	r, err := h.manager.Radio()
	if err != nil {
		return mcp.NewToolResultErrorFromErr("Connection lost", err), nil
	}

	return mcp.NewToolResultText(FormatConnected(r, address, transport)), nil
}

// HandleScanPorts handles the mesh_scan_ports tool.
func (h *Handlers) HandleScanPorts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ports, err := radio.ScanPorts()
	if err != nil {
		return mcp.NewToolResultErrorFromErr("Failed to scan serial ports", err), nil
	}

	return mcp.NewToolResultText(FormatPorts(ports)), nil
}

// === Device Handlers ===

// HandleDeviceInfo handles the mesh_device_info tool.
func (h *Handlers) HandleDeviceInfo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := h.getRadio()
	if err != nil {
		return mcp.NewToolResultErrorFromErr("Failed to reach device", err), nil
	}

	text := FormatDeviceInfo(r)

	// Persist the snapshot; a broken database should not hide the
	// device info we already have.
	db, err := h.openDB()
	if err != nil {
		return mcp.NewToolResultText(text + "\n\n(warning: node database unavailable: " + err.Error() + ")"), nil
	}
	defer db.Close()

	long, _ := r.Owner()
	if err := db.SaveSnapshot(long, r.MyInfo(), r.Metadata(), r.Nodes()); err != nil {
		return mcp.NewToolResultText(text + "\n\n(warning: failed to save snapshot: " + err.Error() + ")"), nil
	}

	return mcp.NewToolResultText(text + fmt.Sprintf("\n\nSnapshot of %d nodes saved to the node database.", len(r.Nodes()))), nil
}

// HandleNodes handles the mesh_nodes tool.
func (h *Handlers) HandleNodes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 50)
	if limit < 1 {
		limit = 50
	}
	includeSelf := req.GetBool("include_self", true)

	r, err := h.getRadio()
	if err != nil {
		return mcp.NewToolResultErrorFromErr("Failed to reach device", err), nil
	}

	nodes := r.Nodes()
	if !includeSelf {
		filtered := nodes[:0]
		for _, n := range nodes {
			if n.Num != r.NodeNum() {
				filtered = append(filtered, n)
			}
		}
		nodes = filtered
	}
	if len(nodes) > limit {
		nodes = nodes[:limit]
	}

	return mcp.NewToolResultText(FormatNodes(nodes, r.NodeNum())), nil
}

// HandleSetOwner handles the mesh_set_owner tool.
func (h *Handlers) HandleSetOwner(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	long := req.GetString("long", "")
	short := req.GetString("short", "")
	if long == "" && short == "" {
		return mcp.NewToolResultError("at least one of long/short is required"), nil
	}
	if len(short) > 4 {
		return mcp.NewToolResultError("short name must be at most 4 characters"), nil
	}

	r, err := h.getRadio()
	if err != nil {
		return mcp.NewToolResultErrorFromErr("Failed to reach device", err), nil
	}

	if err := r.SetOwner(long, short); err != nil {
		return mcp.NewToolResultErrorFromErr("Failed to set owner", err), nil
	}

	newLong, newShort := r.Owner()
	return mcp.NewToolResultText(fmt.Sprintf("Owner set to %q (%q)", newLong, newShort)), nil
}

// HandleChannels handles the mesh_channels tool.
func (h *Handlers) HandleChannels(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := h.getRadio()
	if err != nil {
		return mcp.NewToolResultErrorFromErr("Failed to reach device", err), nil
	}

	return mcp.NewToolResultText(FormatChannels(r)), nil
}

// HandleExportConfig handles the mesh_export_config tool.
func (h *Handlers) HandleExportConfig(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := h.getRadio()
	if err != nil {
		return mcp.NewToolResultErrorFromErr("Failed to reach device", err), nil
	}

	yml, err := r.ExportConfigYAML()
	if err != nil {
		return mcp.NewToolResultErrorFromErr("Failed to export configuration", err), nil
	}

	return mcp.NewToolResultText(yml), nil
}

// HandleConfigure handles the mesh_configure tool.
func (h *Handlers) HandleConfigure(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	yml, err := req.RequireString("yml")
	if err != nil {
		return mcp.NewToolResultError("yml is required"), nil
	}

	r, err := h.getRadio()
	if err != nil {
		return mcp.NewToolResultErrorFromErr("Failed to reach device", err), nil
	}

	lines, err := r.ApplyConfigYAML(yml)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("Failed to apply configuration", err), nil
	}

	return mcp.NewToolResultText(FormatConfigureResult(lines)), nil
}

// HandleVersion handles the mesh_version tool.
func (h *Handlers) HandleVersion(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := fmt.Sprintf("%s %s", ServerName, ServerVersion)

	// Only report firmware when a connection is already open; a
	// version check should not dial the radio.
	if r, err := h.manager.Radio(); err == nil {
		if fw := r.FirmwareVersion(); fw != "" {
			text += fmt.Sprintf("\nDevice firmware: %s", fw)
		}
	}

	return mcp.NewToolResultText(text), nil
}

// === Administration Handlers ===

// HandleReboot handles the mesh_reboot tool.
func (h *Handlers) HandleReboot(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	secs := req.GetInt("seconds", 10)
	if secs < 0 {
		return mcp.NewToolResultError("seconds must not be negative"), nil
	}

	r, err := h.getRadio()
	if err != nil {
		return mcp.NewToolResultErrorFromErr("Failed to reach device", err), nil
	}

	if err := r.Reboot(int32(secs)); err != nil {
		return mcp.NewToolResultErrorFromErr("Failed to reboot device", err), nil
	}

	// The link dies when the device goes down; drop it now so the
	// next tool call redials instead of hitting a dead socket.
	h.manager.Close()

	return mcp.NewToolResultText(fmt.Sprintf("Device reboots in %d seconds. Reconnect once it is back up.", secs)), nil
}

// HandleShutdown handles the mesh_shutdown tool.
func (h *Handlers) HandleShutdown(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	secs := req.GetInt("seconds", 10)
	if secs < 0 {
		return mcp.NewToolResultError("seconds must not be negative"), nil
	}

	r, err := h.getRadio()
	if err != nil {
		return mcp.NewToolResultErrorFromErr("Failed to reach device", err), nil
	}

	if err := r.Shutdown(int32(secs)); err != nil {
		return mcp.NewToolResultErrorFromErr("Failed to shut down device", err), nil
	}

	h.manager.Close()

	return mcp.NewToolResultText(fmt.Sprintf("Device powers off in %d seconds. It must be restarted by hand.", secs)), nil
}

// HandleFactoryReset handles the mesh_factory_reset tool.
func (h *Handlers) HandleFactoryReset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	confirm, err := req.RequireBool("confirm")
	if err != nil || !confirm {
		return mcp.NewToolResultError("factory reset wipes all device settings; pass confirm=true to proceed"), nil
	}

	r, err := h.getRadio()
	if err != nil {
		return mcp.NewToolResultErrorFromErr("Failed to reach device", err), nil
	}

	if err := r.FactoryReset(); err != nil {
		return mcp.NewToolResultErrorFromErr("Failed to factory-reset device", err), nil
	}

	h.manager.Close()

	return mcp.NewToolResultText("Factory reset sent. The device wipes its settings and reboots with defaults."), nil
}

// === Location Handlers ===

// HandlePosition handles the mesh_position tool.
func (h *Handlers) HandlePosition(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := h.getRadio()
	if err != nil {
		return mcp.NewToolResultErrorFromErr("Failed to reach device", err), nil
	}

	if pos := r.Position(); pos != nil && (pos.LatitudeI != 0 || pos.LongitudeI != 0) {
		return mcp.NewToolResultText(FormatPosition(pos, "device")), nil
	}

	// No GPS fix; fall back to IP geolocation.
	loc, err := h.cfg.Geo.Locate(ctx)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("Device has no position and IP geolocation failed", err), nil
	}

	return mcp.NewToolResultText(FormatIPLocation(loc)), nil
}

// HandleSetPosition handles the mesh_set_position tool.
func (h *Handlers) HandleSetPosition(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	lat, err := req.RequireFloat("lat")
	if err != nil {
		return mcp.NewToolResultError("lat is required"), nil
	}
	lon, err := req.RequireFloat("lon")
	if err != nil {
		return mcp.NewToolResultError("lon is required"), nil
	}
	if err := validateCoords(lat, lon); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	alt := int32(req.GetFloat("alt", 0))

	r, err := h.getRadio()
	if err != nil {
		return mcp.NewToolResultErrorFromErr("Failed to reach device", err), nil
	}

	if err := r.SetFixedPosition(lat, lon, alt); err != nil {
		return mcp.NewToolResultErrorFromErr("Failed to set fixed position", err), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Fixed position set to %.5f, %.5f (alt %dm)", lat, lon, alt)), nil
}

// HandleSendPosition handles the mesh_send_position tool.
func (h *Handlers) HandleSendPosition(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	lat, err := req.RequireFloat("lat")
	if err != nil {
		return mcp.NewToolResultError("lat is required"), nil
	}
	lon, err := req.RequireFloat("lon")
	if err != nil {
		return mcp.NewToolResultError("lon is required"), nil
	}
	if err := validateCoords(lat, lon); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	alt := int32(req.GetFloat("alt", 0))

	dest, err := radio.ParseDestination(req.GetString("destination", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	channel := uint32(req.GetInt("channel", 0))
	wantAck := req.GetBool("want_ack", false)

	r, err := h.getRadio()
	if err != nil {
		return mcp.NewToolResultErrorFromErr("Failed to reach device", err), nil
	}

	p, err := r.SendPosition(lat, lon, alt, dest, channel, wantAck)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("Failed to send position", err), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Position sent.\n%s", FormatPacket(p))), nil
}

// === Messaging Handlers ===

// HandleSendText handles the mesh_send_text tool.
func (h *Handlers) HandleSendText(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError("text is required"), nil
	}
	if len(text) > 228 {
		// LoRa payload budget after headers.
		return mcp.NewToolResultError("text is too long (max 228 bytes)"), nil
	}

	dest, err := radio.ParseDestination(req.GetString("destination", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	channel := uint32(req.GetInt("channel", 0))
	wantAck := req.GetBool("want_ack", false)

	r, err := h.getRadio()
	if err != nil {
		return mcp.NewToolResultErrorFromErr("Failed to reach device", err), nil
	}

	p, err := r.SendText(text, dest, channel, wantAck)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("Failed to send text", err), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Message sent.\n%s", FormatPacket(p))), nil
}

// HandleSendAlert handles the mesh_send_alert tool.
func (h *Handlers) HandleSendAlert(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError("text is required"), nil
	}

	dest, err := radio.ParseDestination(req.GetString("destination", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	channel := uint32(req.GetInt("channel", 0))

	r, err := h.getRadio()
	if err != nil {
		return mcp.NewToolResultErrorFromErr("Failed to reach device", err), nil
	}

	p, err := r.SendAlert(text, dest, channel)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("Failed to send alert", err), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Alert sent.\n%s", FormatPacket(p))), nil
}

// HandleSendHeartbeat handles the mesh_send_heartbeat tool.
func (h *Handlers) HandleSendHeartbeat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := h.getRadio()
	if err != nil {
		return mcp.NewToolResultErrorFromErr("Failed to reach device", err), nil
	}

	if err := r.SendHeartbeat(); err != nil {
		return mcp.NewToolResultErrorFromErr("Failed to send heartbeat", err), nil
	}

	return mcp.NewToolResultText("Heartbeat sent."), nil
}

// HandleSendTelemetry handles the mesh_send_telemetry tool.
func (h *Handlers) HandleSendTelemetry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dest, err := radio.ParseDestination(req.GetString("destination", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	channel := uint32(req.GetInt("channel", 0))

	r, err := h.getRadio()
	if err != nil {
		return mcp.NewToolResultErrorFromErr("Failed to reach device", err), nil
	}

	p, err := r.SendTelemetry(dest, channel)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("Failed to send telemetry", err), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Telemetry sent.\n%s", FormatPacket(p))), nil
}

// HandleTraceroute handles the mesh_traceroute tool.
func (h *Handlers) HandleTraceroute(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	destArg, err := req.RequireString("destination")
	if err != nil {
		return mcp.NewToolResultError("destination is required"), nil
	}
	dest, err := radio.ParseDestination(destArg)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if dest == radio.BroadcastAddr {
		return mcp.NewToolResultError("traceroute needs a specific destination node"), nil
	}

	hopLimit := uint32(req.GetInt("hop_limit", 0))
	channel := uint32(req.GetInt("channel", 0))

	r, err := h.getRadio()
	if err != nil {
		return mcp.NewToolResultErrorFromErr("Failed to reach device", err), nil
	}

	p, err := r.SendTraceroute(dest, hopLimit, channel)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("Failed to send traceroute", err), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Traceroute to %s sent. The route reply arrives on the device asynchronously.\n%s",
		radio.NodeID(dest), FormatPacket(p))), nil
}

// === Waypoint Handlers ===

// HandleSendWaypoint handles the mesh_send_waypoint tool.
func (h *Handlers) HandleSendWaypoint(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	lat, err := req.RequireFloat("lat")
	if err != nil {
		return mcp.NewToolResultError("lat is required"), nil
	}
	lon, err := req.RequireFloat("lon")
	if err != nil {
		return mcp.NewToolResultError("lon is required"), nil
	}
	if err := validateCoords(lat, lon); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	expire := time.Now().Add(defaultWaypointTTL)
	if arg := req.GetString("expire", ""); arg != "" {
		expire, err = parseExpiry(arg)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}

	wp := &pb.Waypoint{
		Id:          uint32(req.GetInt("id", 0)),
		LatitudeI:   int32(lat * 1e7),
		LongitudeI:  int32(lon * 1e7),
		Name:        req.GetString("name", ""),
		Description: req.GetString("description", ""),
		Expire:      uint32(expire.Unix()),
	}

	r, err := h.getRadio()
	if err != nil {
		return mcp.NewToolResultErrorFromErr("Failed to reach device", err), nil
	}

	if _, err := r.SendWaypoint(wp, radio.BroadcastAddr, 0); err != nil {
		return mcp.NewToolResultErrorFromErr("Failed to send waypoint", err), nil
	}

	text := fmt.Sprintf("Waypoint broadcast.\n%s", FormatWaypoint(wp))

	// Record locally so mesh_waypoints can report it later. The
	// broadcast went out either way, so a database failure is only a
	// warning.
	db, err := h.openDB()
	if err != nil {
		return mcp.NewToolResultText(text + "\n(warning: node database unavailable: " + err.Error() + ")"), nil
	}
	defer db.Close()
	if err := db.SaveWaypoint(wp); err != nil {
		return mcp.NewToolResultText(text + "\n(warning: failed to record waypoint locally: " + err.Error() + ")"), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleDeleteWaypoint handles the mesh_delete_waypoint tool.
func (h *Handlers) HandleDeleteWaypoint(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("id")
	if err != nil || id <= 0 {
		return mcp.NewToolResultError("a positive waypoint id is required"), nil
	}

	r, err := h.getRadio()
	if err != nil {
		return mcp.NewToolResultErrorFromErr("Failed to reach device", err), nil
	}

	if _, err := r.DeleteWaypoint(uint32(id), radio.BroadcastAddr, 0); err != nil {
		return mcp.NewToolResultErrorFromErr("Failed to delete waypoint", err), nil
	}

	text := fmt.Sprintf("Waypoint %d deleted.", id)

	db, err := h.openDB()
	if err != nil {
		return mcp.NewToolResultText(text + "\n(warning: node database unavailable: " + err.Error() + ")"), nil
	}
	defer db.Close()
	if err := db.DeleteWaypoint(uint32(id)); err != nil {
		return mcp.NewToolResultText(text + "\n(warning: failed to drop local record: " + err.Error() + ")"), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleWaypoints handles the mesh_waypoints tool.
func (h *Handlers) HandleWaypoints(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	db, err := h.openDB()
	if err != nil {
		return mcp.NewToolResultErrorFromErr("Failed to open node database", err), nil
	}
	defer db.Close()

	wps, err := db.Waypoints()
	if err != nil {
		return mcp.NewToolResultErrorFromErr("Failed to list waypoints", err), nil
	}

	return mcp.NewToolResultText(FormatWaypointList(wps)), nil
}

// === Helpers ===

func validateCoords(lat, lon float64) error {
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude %.5f out of range [-90, 90]", lat)
	}
	if lon < -180 || lon > 180 {
		return fmt.Errorf("longitude %.5f out of range [-180, 180]", lon)
	}
	return nil
}

// parseExpiry accepts RFC 3339 or a bare local timestamp.
func parseExpiry(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04:05", s, time.Local); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid expire %q (want RFC 3339, e.g. 2026-09-01T12:00:00Z)", s)
}
