package mcp

import (
	"fmt"
	"strings"
	"time"

	pb "github.com/meshtastic/go/generated"
	"github.com/ramarlina/mcptastic/pkg/geoip"
	"github.com/ramarlina/mcptastic/pkg/nodedb"
	"github.com/ramarlina/mcptastic/pkg/radio"
)

// FormatConnected formats the connection summary shown by
// mesh_connect and mesh_status.
func FormatConnected(r *radio.Radio, address string, transport radio.Transport) string {
	var lines []string

	lines = append(lines, fmt.Sprintf("Connected to %s (%s)", address, transport))
	lines = append(lines, fmt.Sprintf("Node: %s", radio.NodeID(r.NodeNum())))

	long, short := r.Owner()
	if long != "" || short != "" {
		lines = append(lines, fmt.Sprintf("Owner: %s (%s)", long, short))
	}
	if hw := r.HardwareModel(); hw != "" {
		lines = append(lines, fmt.Sprintf("Hardware: %s", hw))
	}
	if fw := r.FirmwareVersion(); fw != "" {
		lines = append(lines, fmt.Sprintf("Firmware: %s", fw))
	}
	lines = append(lines, fmt.Sprintf("Nodes known: %d", len(r.Nodes())))

	return strings.Join(lines, "\n")
}

// FormatPorts formats a serial port scan.
func FormatPorts(ports []radio.PortInfo) string {
	if len(ports) == 0 {
		return "No serial ports found."
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("=== Serial Ports (%d) ===", len(ports)))

	for _, p := range ports {
		line := p.Name
		if p.VendorID != "" {
			line += fmt.Sprintf(" [%s:%s]", p.VendorID, p.ProductID)
		}
		if p.Supported {
			line += fmt.Sprintf(" | %s (likely Meshtastic device)", p.Vendor)
		}
		lines = append(lines, line)
	}

	return strings.Join(lines, "\n")
}

// FormatDeviceInfo formats the full device snapshot.
func FormatDeviceInfo(r *radio.Radio) string {
	var lines []string

	lines = append(lines, "=== Device ===")
	long, short := r.Owner()
	lines = append(lines, fmt.Sprintf("Owner: %s (%s)", long, short))
	lines = append(lines, fmt.Sprintf("Node: %s", radio.NodeID(r.NodeNum())))

	if mi := r.MyInfo(); mi != nil {
		lines = append(lines, fmt.Sprintf("Reboots: %d", mi.RebootCount))
	}
	if md := r.Metadata(); md != nil {
		lines = append(lines, fmt.Sprintf("Firmware: %s", md.FirmwareVersion))
		lines = append(lines, fmt.Sprintf("Hardware: %s", md.HwModel))
	}
	if key := r.PublicKey(); len(key) > 0 {
		lines = append(lines, fmt.Sprintf("Public key: %x", key))
	}

	lines = append(lines, "")
	lines = append(lines, FormatNodes(r.Nodes(), r.NodeNum()))

	return strings.Join(lines, "\n")
}

// FormatNode formats one mesh node.
func FormatNode(n *pb.NodeInfo, selfNum uint32) string {
	if n == nil {
		return "[Node not found]"
	}

	var lines []string

	name := radio.NodeID(n.Num)
	if n.User != nil && n.User.LongName != "" {
		name = fmt.Sprintf("%s (%s)", n.User.LongName, radio.NodeID(n.Num))
	}
	if n.Num == selfNum {
		name += " [self]"
	}
	lines = append(lines, name)

	if n.User != nil {
		lines = append(lines, fmt.Sprintf("Hardware: %s | Role: %s", n.User.HwModel, n.User.Role))
	}
	if n.Position != nil && (n.Position.LatitudeI != 0 || n.Position.LongitudeI != 0) {
		lines = append(lines, fmt.Sprintf("Position: %.5f, %.5f (alt %dm)",
			float64(n.Position.LatitudeI)/1e7,
			float64(n.Position.LongitudeI)/1e7,
			n.Position.Altitude))
	}
	if n.DeviceMetrics != nil {
		lines = append(lines, fmt.Sprintf("Battery: %d%% | ChUtil: %.1f%% | AirUtilTX: %.1f%%",
			n.DeviceMetrics.BatteryLevel,
			n.DeviceMetrics.ChannelUtilization,
			n.DeviceMetrics.AirUtilTx))
	}

	link := fmt.Sprintf("SNR: %.2f | Hops: %d", n.Snr, n.HopsAway)
	if n.LastHeard > 0 {
		link += fmt.Sprintf(" | Heard: %s", time.Unix(int64(n.LastHeard), 0).UTC().Format(time.RFC3339))
	}
	lines = append(lines, link)

	return strings.Join(lines, "\n")
}

// FormatNodes formats a list of mesh nodes.
func FormatNodes(nodes []*pb.NodeInfo, selfNum uint32) string {
	if len(nodes) == 0 {
		return "No nodes found."
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("=== Nodes in Mesh (%d) ===", len(nodes)))

	for i, n := range nodes {
		lines = append(lines, "")
		lines = append(lines, fmt.Sprintf("--- Node %d ---", i+1))
		lines = append(lines, FormatNode(n, selfNum))
	}

	return strings.Join(lines, "\n")
}

// FormatChannels formats the device channel table.
func FormatChannels(r *radio.Radio) string {
	channels := r.Channels()
	if len(channels) == 0 {
		return "No channels reported by the device."
	}

	var lines []string
	lines = append(lines, "=== Channels ===")

	for _, ch := range channels {
		if ch.Role == pb.Channel_DISABLED {
			continue
		}
		name := "(default)"
		if ch.Settings != nil && ch.Settings.Name != "" {
			name = ch.Settings.Name
		}
		psk := "none"
		if ch.Settings != nil && len(ch.Settings.Psk) > 0 {
			psk = fmt.Sprintf("%d bytes", len(ch.Settings.Psk))
		}
		lines = append(lines, fmt.Sprintf("%d. %s | role %s, psk %s", ch.Index, name, ch.Role, psk))
	}

	if url, err := r.ChannelURL(); err == nil {
		lines = append(lines, "")
		lines = append(lines, fmt.Sprintf("Share URL: %s", url))
	}

	return strings.Join(lines, "\n")
}

// FormatConfigureResult formats the change log of mesh_configure.
func FormatConfigureResult(lines []string) string {
	if len(lines) == 0 {
		return "Nothing to configure; the document had no recognized keys."
	}
	return "Configuration applied:\n" + strings.Join(lines, "\n")
}

// FormatPosition formats a device position.
func FormatPosition(pos *pb.Position, source string) string {
	if pos == nil {
		return "[No position]"
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("Latitude: %.5f", float64(pos.LatitudeI)/1e7))
	lines = append(lines, fmt.Sprintf("Longitude: %.5f", float64(pos.LongitudeI)/1e7))
	lines = append(lines, fmt.Sprintf("Altitude: %dm", pos.Altitude))
	if pos.Time > 0 {
		lines = append(lines, fmt.Sprintf("Fix time: %s", time.Unix(int64(pos.Time), 0).UTC().Format(time.RFC3339)))
	}
	lines = append(lines, fmt.Sprintf("Source: %s", source))

	return strings.Join(lines, "\n")
}

// FormatIPLocation formats the IP geolocation fallback.
func FormatIPLocation(loc *geoip.Location) string {
	if loc == nil {
		return "[No location]"
	}

	var lines []string
	lines = append(lines, "Device has no GPS fix; approximate position from IP geolocation:")
	lines = append(lines, fmt.Sprintf("Latitude: %.5f", loc.Lat))
	lines = append(lines, fmt.Sprintf("Longitude: %.5f", loc.Lon))
	if loc.Altitude != 0 {
		lines = append(lines, fmt.Sprintf("Altitude: %dm", loc.Altitude))
	}

	var place []string
	for _, part := range []string{loc.City, loc.Region, loc.Country} {
		if part != "" {
			place = append(place, part)
		}
	}
	if len(place) > 0 {
		lines = append(lines, fmt.Sprintf("Near: %s", strings.Join(place, ", ")))
	}
	lines = append(lines, "Source: ip geolocation")
	lines = append(lines, "Use mesh_set_position to pin the device to these coordinates.")

	return strings.Join(lines, "\n")
}

// FormatPacket formats a sent packet receipt.
func FormatPacket(p *pb.MeshPacket) string {
	if p == nil {
		return "[No packet]"
	}

	to := "broadcast"
	if p.To != radio.BroadcastAddr {
		to = radio.NodeID(p.To)
	}

	line := fmt.Sprintf("Packet %d to %s (channel %d", p.Id, to, p.Channel)
	if p.WantAck {
		line += ", ack requested"
	}
	return line + ")"
}

// FormatWaypoint formats a waypoint.
func FormatWaypoint(wp *pb.Waypoint) string {
	if wp == nil {
		return "[Waypoint not found]"
	}

	var lines []string

	name := wp.Name
	if name == "" {
		name = "(unnamed)"
	}
	lines = append(lines, fmt.Sprintf("Waypoint %d: %s", wp.Id, name))
	if wp.Description != "" {
		lines = append(lines, wp.Description)
	}
	lines = append(lines, fmt.Sprintf("Position: %.5f, %.5f",
		float64(wp.LatitudeI)/1e7, float64(wp.LongitudeI)/1e7))
	if wp.Expire > 1 {
		lines = append(lines, fmt.Sprintf("Expires: %s",
			time.Unix(int64(wp.Expire), 0).UTC().Format(time.RFC3339)))
	}

	return strings.Join(lines, "\n")
}

// FormatWaypointList formats the stored waypoints.
func FormatWaypointList(wps []nodedb.WaypointRecord) string {
	if len(wps) == 0 {
		return "No waypoints recorded. Use mesh_send_waypoint to create one."
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("=== Waypoints (%d) ===", len(wps)))

	for _, w := range wps {
		lines = append(lines, "")
		name := w.Name
		if name == "" {
			name = "(unnamed)"
		}
		lines = append(lines, fmt.Sprintf("Waypoint %d: %s", w.ID, name))
		if w.Description != "" {
			lines = append(lines, w.Description)
		}
		lines = append(lines, fmt.Sprintf("Position: %.5f, %.5f", w.Latitude, w.Longitude))
		if w.Expire != "" {
			lines = append(lines, fmt.Sprintf("Expires: %s", w.Expire))
		}
	}

	return strings.Join(lines, "\n")
}
