package mcp

import (
	"strings"
	"testing"
	"time"

	pb "github.com/meshtastic/go/generated"
	"github.com/ramarlina/mcptastic/pkg/geoip"
	"github.com/ramarlina/mcptastic/pkg/nodedb"
	"github.com/ramarlina/mcptastic/pkg/radio"
)

func TestFormatNode(t *testing.T) {
	t.Parallel()

	n := &pb.NodeInfo{
		Num: 0x11223344,
		User: &pb.User{
			LongName:  "Base Station",
			ShortName: "BASE",
			HwModel:   pb.HardwareModel_TBEAM,
		},
		Position: &pb.Position{
			LatitudeI:  468523000,
			LongitudeI: -1217603000,
			Altitude:   4392,
		},
		DeviceMetrics: &pb.DeviceMetrics{
			BatteryLevel:       87,
			ChannelUtilization: 12.5,
			AirUtilTx:          3.1,
		},
		Snr:       9.25,
		LastHeard: uint32(time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC).Unix()),
	}

	out := FormatNode(n, 0x11223344)

	for _, want := range []string{
		"Base Station (!11223344)",
		"[self]",
		"Position: 46.85230, -121.76030 (alt 4392m)",
		"Battery: 87%",
		"SNR: 9.25",
		"Heard: 2026-08-30T12:00:00Z",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("FormatNode() missing %q:\n%s", want, out)
		}
	}
}

func TestFormatNode_Minimal(t *testing.T) {
	t.Parallel()

	out := FormatNode(&pb.NodeInfo{Num: 7}, 1)

	if !strings.Contains(out, "!00000007") {
		t.Errorf("expected node ID for unnamed node:\n%s", out)
	}
	if strings.Contains(out, "Position:") {
		t.Errorf("no position should be printed without coordinates:\n%s", out)
	}
	if strings.Contains(out, "[self]") {
		t.Errorf("foreign node marked as self:\n%s", out)
	}
}

func TestFormatNode_Nil(t *testing.T) {
	t.Parallel()

	if out := FormatNode(nil, 0); !strings.Contains(out, "not found") {
		t.Errorf("FormatNode(nil) = %q", out)
	}
}

func TestFormatNodes(t *testing.T) {
	t.Parallel()

	nodes := []*pb.NodeInfo{
		{Num: 1, User: &pb.User{LongName: "One"}},
		{Num: 2, User: &pb.User{LongName: "Two"}},
	}

	out := FormatNodes(nodes, 1)
	if !strings.Contains(out, "=== Nodes in Mesh (2) ===") {
		t.Errorf("missing header:\n%s", out)
	}
	if !strings.Contains(out, "--- Node 1 ---") || !strings.Contains(out, "--- Node 2 ---") {
		t.Errorf("missing node separators:\n%s", out)
	}
}

func TestFormatNodes_Empty(t *testing.T) {
	t.Parallel()

	if out := FormatNodes(nil, 0); out != "No nodes found." {
		t.Errorf("FormatNodes(nil) = %q", out)
	}
}

func TestFormatPorts(t *testing.T) {
	t.Parallel()

	if out := FormatPorts(nil); out != "No serial ports found." {
		t.Errorf("FormatPorts(nil) = %q", out)
	}

	ports := []radio.PortInfo{
		{Name: "/dev/ttyUSB0", VendorID: "10C4", ProductID: "EA60", Vendor: "Silicon Labs CP210x", Supported: true},
		{Name: "/dev/ttyS0"},
	}
	out := FormatPorts(ports)
	if !strings.Contains(out, "=== Serial Ports (2) ===") {
		t.Errorf("missing header:\n%s", out)
	}
	if !strings.Contains(out, "/dev/ttyUSB0 [10C4:EA60]") {
		t.Errorf("missing USB IDs:\n%s", out)
	}
	if !strings.Contains(out, "| Silicon Labs CP210x (likely Meshtastic device)") {
		t.Errorf("missing supported marker:\n%s", out)
	}
}

func TestFormatPosition(t *testing.T) {
	t.Parallel()

	pos := &pb.Position{
		LatitudeI:  468523000,
		LongitudeI: -1217603000,
		Altitude:   4392,
		Time:       uint32(time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC).Unix()),
	}

	out := FormatPosition(pos, "device")
	for _, want := range []string{
		"Latitude: 46.85230",
		"Longitude: -121.76030",
		"Altitude: 4392m",
		"Fix time: 2026-08-30T12:00:00Z",
		"Source: device",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("FormatPosition() missing %q:\n%s", want, out)
		}
	}
}

func TestFormatIPLocation(t *testing.T) {
	t.Parallel()

	loc := &geoip.Location{
		Lat:      46.8523,
		Lon:      -121.7603,
		City:     "Ashford",
		Region:   "Washington",
		Country:  "United States",
		Altitude: 4392,
	}

	out := FormatIPLocation(loc)
	for _, want := range []string{
		"no GPS fix",
		"Latitude: 46.85230",
		"Near: Ashford, Washington, United States",
		"Source: ip geolocation",
		"mesh_set_position",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("FormatIPLocation() missing %q:\n%s", want, out)
		}
	}
}

func TestFormatPacket(t *testing.T) {
	t.Parallel()

	t.Run("broadcast", func(t *testing.T) {
		out := FormatPacket(&pb.MeshPacket{Id: 42, To: radio.BroadcastAddr})
		if !strings.Contains(out, "Packet 42 to broadcast") {
			t.Errorf("FormatPacket() = %q", out)
		}
	})

	t.Run("direct with ack", func(t *testing.T) {
		out := FormatPacket(&pb.MeshPacket{Id: 42, To: 0x55667788, Channel: 1, WantAck: true})
		if !strings.Contains(out, "!55667788") {
			t.Errorf("missing destination: %q", out)
		}
		if !strings.Contains(out, "channel 1") {
			t.Errorf("missing channel: %q", out)
		}
		if !strings.Contains(out, "ack requested") {
			t.Errorf("missing ack note: %q", out)
		}
	})
}

func TestFormatWaypoint(t *testing.T) {
	t.Parallel()

	wp := &pb.Waypoint{
		Id:          7,
		Name:        "Trailhead",
		Description: "Parking",
		LatitudeI:   468523000,
		LongitudeI:  -1217603000,
		Expire:      uint32(time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC).Unix()),
	}

	out := FormatWaypoint(wp)
	for _, want := range []string{
		"Waypoint 7: Trailhead",
		"Parking",
		"Position: 46.85230, -121.76030",
		"Expires: 2026-08-31T12:00:00Z",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("FormatWaypoint() missing %q:\n%s", want, out)
		}
	}

	// The expiry sentinel is not a real timestamp.
	if out := FormatWaypoint(&pb.Waypoint{Id: 8, Expire: 1}); strings.Contains(out, "Expires:") {
		t.Errorf("sentinel expire should not be printed:\n%s", out)
	}
}

func TestFormatWaypointList(t *testing.T) {
	t.Parallel()

	if out := FormatWaypointList(nil); !strings.Contains(out, "No waypoints recorded") {
		t.Errorf("FormatWaypointList(nil) = %q", out)
	}

	wps := []nodedb.WaypointRecord{
		{ID: 7, Name: "Trailhead", Latitude: 46.8523, Longitude: -121.7603, Expire: "2026-08-31T12:00:00Z"},
		{ID: 9, Description: "Water cache", Latitude: 46.9, Longitude: -121.8},
	}

	out := FormatWaypointList(wps)
	if !strings.Contains(out, "=== Waypoints (2) ===") {
		t.Errorf("missing header:\n%s", out)
	}
	if !strings.Contains(out, "Waypoint 7: Trailhead") {
		t.Errorf("missing named waypoint:\n%s", out)
	}
	if !strings.Contains(out, "Waypoint 9: (unnamed)") {
		t.Errorf("missing unnamed placeholder:\n%s", out)
	}
}

func TestFormatConfigureResult(t *testing.T) {
	t.Parallel()

	if out := FormatConfigureResult(nil); !strings.Contains(out, "Nothing to configure") {
		t.Errorf("FormatConfigureResult(nil) = %q", out)
	}

	out := FormatConfigureResult([]string{"Set device.role to ROUTER"})
	if !strings.HasPrefix(out, "Configuration applied:\n") {
		t.Errorf("missing header: %q", out)
	}
	if !strings.Contains(out, "Set device.role to ROUTER") {
		t.Errorf("missing change line: %q", out)
	}
}
