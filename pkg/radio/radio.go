package radio

import (
	"fmt"
	"math/rand/v2"
	"net"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	pb "github.com/meshtastic/go/generated"
	"github.com/rs/zerolog"
	"go.bug.st/serial"
	"google.golang.org/protobuf/proto"
)

// Transport selects how the device is reached.
type Transport string

const (
	TransportTCP    Transport = "tcp"
	TransportSerial Transport = "serial"
)

const (
	// BroadcastAddr addresses every node on the mesh.
	BroadcastAddr uint32 = 0xffffffff

	// DefaultTCPPort is the port the device's network API listens on.
	DefaultTCPPort = 4403

	serialBaudRate = 115200

	dialTimeout = 10 * time.Second
)

var handshakeTimeout = 30 * time.Second

// Radio is a live connection to a Meshtastic device. It holds the
// state the device reports during the initial config handshake (node
// list, channels, configuration) and issues typed sends on request.
// Radio is not safe for concurrent use; Manager serializes access.
type Radio struct {
	conn      *frameConn
	address   string
	transport Transport
	log       zerolog.Logger

	myInfo       *pb.MyNodeInfo
	metadata     *pb.DeviceMetadata
	nodes        map[uint32]*pb.NodeInfo
	channels     []*pb.Channel
	localConfig  *pb.LocalConfig
	moduleConfig *pb.LocalModuleConfig
}

// Dial connects to a device and runs the config handshake.
func Dial(address string, transport Transport) (*Radio, error) {
	log := zerolog.New(os.Stderr).With().
		Timestamp().
		Str("component", "radio").
		Str("address", address).
		Logger()

	var link interface {
		Read([]byte) (int, error)
		Write([]byte) (int, error)
		Close() error
	}

	switch transport {
	case TransportTCP:
		addr := address
		if !strings.Contains(addr, ":") {
			addr = net.JoinHostPort(addr, strconv.Itoa(DefaultTCPPort))
		}
		conn, err := net.DialTimeout("tcp", addr, dialTimeout)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", addr, err)
		}
		link = conn
	case TransportSerial:
		port, err := serial.Open(address, &serial.Mode{BaudRate: serialBaudRate})
		if err != nil {
			return nil, fmt.Errorf("open serial port %s: %w", address, err)
		}
		link = port
	default:
		return nil, fmt.Errorf("unsupported transport: %s", transport)
	}

	r := &Radio{
		conn:      newFrameConn(link),
		address:   address,
		transport: transport,
		log:       log,
		nodes:     make(map[uint32]*pb.NodeInfo),
	}

	if err := r.handshake(); err != nil {
		r.conn.Close()
		return nil, err
	}

	log.Debug().
		Uint32("node", r.NodeNum()).
		Int("nodes", len(r.nodes)).
		Msg("connected")

	return r, nil
}

// handshake requests the device configuration and consumes FromRadio
// frames until the device echoes our nonce back.
func (r *Radio) handshake() error {
	nonce := rand.Uint32()
	if nonce == 0 {
		nonce = 1
	}

	err := r.conn.WriteMessage(&pb.ToRadio{
		PayloadVariant: &pb.ToRadio_WantConfigId{WantConfigId: nonce},
	})
	if err != nil {
		return fmt.Errorf("request config: %w", err)
	}

	// Arm a link-level read deadline: the loop guard below only runs
	// between frames, and a device that never writes would otherwise
	// block the first read forever.
	deadline := time.Now().Add(handshakeTimeout)
	r.conn.setReadDeadline(deadline)
	defer r.conn.setReadDeadline(time.Time{})

	for time.Now().Before(deadline) {
		msg, err := r.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("config handshake: %w", err)
		}

		switch v := msg.PayloadVariant.(type) {
		case *pb.FromRadio_MyInfo:
			r.myInfo = v.MyInfo
		case *pb.FromRadio_Metadata:
			r.metadata = v.Metadata
		case *pb.FromRadio_NodeInfo:
			r.nodes[v.NodeInfo.Num] = v.NodeInfo
		case *pb.FromRadio_Channel:
			r.channels = append(r.channels, v.Channel)
		case *pb.FromRadio_Config:
			r.mergeConfig(v.Config)
		case *pb.FromRadio_ModuleConfig:
			r.mergeModuleConfig(v.ModuleConfig)
		case *pb.FromRadio_ConfigCompleteId:
			if v.ConfigCompleteId == nonce {
				return nil
			}
		default:
			// Stray packets can arrive mid-handshake; ignore them.
		}
	}
	return fmt.Errorf("config handshake: timed out after %s", handshakeTimeout)
}

// mergeConfig folds a Config fragment into the local config view.
func (r *Radio) mergeConfig(cfg *pb.Config) {
	if r.localConfig == nil {
		r.localConfig = &pb.LocalConfig{}
	}
	switch v := cfg.PayloadVariant.(type) {
	case *pb.Config_Device:
		r.localConfig.Device = v.Device
	case *pb.Config_Position:
		r.localConfig.Position = v.Position
	case *pb.Config_Power:
		r.localConfig.Power = v.Power
	case *pb.Config_Network:
		r.localConfig.Network = v.Network
	case *pb.Config_Display:
		r.localConfig.Display = v.Display
	case *pb.Config_Lora:
		r.localConfig.Lora = v.Lora
	case *pb.Config_Bluetooth:
		r.localConfig.Bluetooth = v.Bluetooth
	}
}

// mergeModuleConfig folds a ModuleConfig fragment into the local view.
func (r *Radio) mergeModuleConfig(cfg *pb.ModuleConfig) {
	if r.moduleConfig == nil {
		r.moduleConfig = &pb.LocalModuleConfig{}
	}
	switch v := cfg.PayloadVariant.(type) {
	case *pb.ModuleConfig_Mqtt:
		r.moduleConfig.Mqtt = v.Mqtt
	case *pb.ModuleConfig_Serial:
		r.moduleConfig.Serial = v.Serial
	case *pb.ModuleConfig_ExternalNotification:
		r.moduleConfig.ExternalNotification = v.ExternalNotification
	case *pb.ModuleConfig_StoreForward:
		r.moduleConfig.StoreForward = v.StoreForward
	case *pb.ModuleConfig_RangeTest:
		r.moduleConfig.RangeTest = v.RangeTest
	case *pb.ModuleConfig_Telemetry:
		r.moduleConfig.Telemetry = v.Telemetry
	case *pb.ModuleConfig_CannedMessage:
		r.moduleConfig.CannedMessage = v.CannedMessage
	case *pb.ModuleConfig_Audio:
		r.moduleConfig.Audio = v.Audio
	case *pb.ModuleConfig_RemoteHardware:
		r.moduleConfig.RemoteHardware = v.RemoteHardware
	}
}

// Close tells the device we are leaving and closes the link.
func (r *Radio) Close() error {
	// Best effort; the device drops the session either way.
	r.conn.WriteMessage(&pb.ToRadio{
		PayloadVariant: &pb.ToRadio_Disconnect{Disconnect: true},
	})
	return r.conn.Close()
}

// === State accessors ===

// NodeNum returns the device's own node number.
func (r *Radio) NodeNum() uint32 {
	if r.myInfo == nil {
		return 0
	}
	return r.myInfo.MyNodeNum
}

// MyInfo returns the device's MyNodeInfo record.
func (r *Radio) MyInfo() *pb.MyNodeInfo { return r.myInfo }

// Metadata returns the device metadata (firmware version and so on).
func (r *Radio) Metadata() *pb.DeviceMetadata { return r.metadata }

// SelfNode returns the NodeInfo for the device itself, if reported.
func (r *Radio) SelfNode() *pb.NodeInfo {
	return r.nodes[r.NodeNum()]
}

// Node returns the NodeInfo for a node number, or nil.
func (r *Radio) Node(num uint32) *pb.NodeInfo { return r.nodes[num] }

// Nodes returns the known mesh nodes, the local node first and the
// rest ordered by node number.
func (r *Radio) Nodes() []*pb.NodeInfo {
	out := make([]*pb.NodeInfo, 0, len(r.nodes))
	for _, n := range r.nodes {
		out = append(out, n)
	}
	self := r.NodeNum()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Num == self {
			return true
		}
		if out[j].Num == self {
			return false
		}
		return out[i].Num < out[j].Num
	})
	return out
}

// FilterNodes keeps nodes heard within the last sinceSecs seconds.
// With activeOnly set, nodes with no last-heard time are dropped even
// when sinceSecs is zero.
func FilterNodes(nodes []*pb.NodeInfo, sinceSecs int, activeOnly bool) []*pb.NodeInfo {
	cutoff := time.Now().Unix() - int64(sinceSecs)
	out := make([]*pb.NodeInfo, 0, len(nodes))
	for _, n := range nodes {
		if activeOnly && n.LastHeard == 0 {
			continue
		}
		if sinceSecs > 0 && int64(n.LastHeard) < cutoff {
			continue
		}
		out = append(out, n)
	}
	return out
}

// Channels returns the channel table reported by the device.
func (r *Radio) Channels() []*pb.Channel { return r.channels }

// LocalConfig returns the device configuration collected at handshake.
func (r *Radio) LocalConfig() *pb.LocalConfig { return r.localConfig }

// ModuleConfig returns the module configuration collected at handshake.
func (r *Radio) ModuleConfig() *pb.LocalModuleConfig { return r.moduleConfig }

// Owner returns the device's long and short owner names.
func (r *Radio) Owner() (long, short string) {
	if n := r.SelfNode(); n != nil && n.User != nil {
		return n.User.LongName, n.User.ShortName
	}
	return "", ""
}

// HardwareModel returns the device's hardware model name.
func (r *Radio) HardwareModel() string {
	if n := r.SelfNode(); n != nil && n.User != nil {
		return n.User.HwModel.String()
	}
	return ""
}

// FirmwareVersion returns the firmware version from device metadata.
func (r *Radio) FirmwareVersion() string {
	if r.metadata == nil {
		return ""
	}
	return r.metadata.FirmwareVersion
}

// PublicKey returns the device's public key, if it has one.
func (r *Radio) PublicKey() []byte {
	if n := r.SelfNode(); n != nil && n.User != nil {
		return n.User.PublicKey
	}
	return nil
}

// Position returns the device's own reported position, or nil.
func (r *Radio) Position() *pb.Position {
	if n := r.SelfNode(); n != nil {
		return n.Position
	}
	return nil
}

// === Sends ===

// newPacket builds a MeshPacket around a Data payload.
func (r *Radio) newPacket(to, channel uint32, wantAck bool, data *pb.Data) *pb.MeshPacket {
	return &pb.MeshPacket{
		From:    r.NodeNum(),
		To:      to,
		Id:      rand.Uint32(),
		Channel: channel,
		WantAck: wantAck,
		PayloadVariant: &pb.MeshPacket_Decoded{
			Decoded: data,
		},
	}
}

// sendPacket hands a packet to the device for transmission.
func (r *Radio) sendPacket(p *pb.MeshPacket) error {
	err := r.conn.WriteMessage(&pb.ToRadio{
		PayloadVariant: &pb.ToRadio_Packet{Packet: p},
	})
	if err != nil {
		return err
	}
	r.log.Debug().
		Uint32("id", p.Id).
		Uint32("to", p.To).
		Msg("packet sent")
	return nil
}

// SendText sends a text message over the mesh.
func (r *Radio) SendText(text string, to, channel uint32, wantAck bool) (*pb.MeshPacket, error) {
	p := r.newPacket(to, channel, wantAck, &pb.Data{
		Portnum: pb.PortNum_TEXT_MESSAGE_APP,
		Payload: []byte(text),
	})
	if err := r.sendPacket(p); err != nil {
		return nil, fmt.Errorf("send text: %w", err)
	}
	return p, nil
}

// SendAlert sends a high-priority alert text. Receiving clients may
// raise special notifications for it.
func (r *Radio) SendAlert(text string, to, channel uint32) (*pb.MeshPacket, error) {
	p := r.newPacket(to, channel, false, &pb.Data{
		Portnum: pb.PortNum_ALERT_APP,
		Payload: []byte(text),
	})
	p.Priority = pb.MeshPacket_ALERT
	if err := r.sendPacket(p); err != nil {
		return nil, fmt.Errorf("send alert: %w", err)
	}
	return p, nil
}

// SendPosition broadcasts a position packet.
func (r *Radio) SendPosition(lat, lon float64, alt int32, to, channel uint32, wantAck bool) (*pb.MeshPacket, error) {
	pos := &pb.Position{
		LatitudeI:  int32(lat * 1e7),
		LongitudeI: int32(lon * 1e7),
		Altitude:   alt,
		Time:       uint32(time.Now().Unix()),
	}
	body, err := proto.Marshal(pos)
	if err != nil {
		return nil, fmt.Errorf("marshal position: %w", err)
	}
	p := r.newPacket(to, channel, wantAck, &pb.Data{
		Portnum: pb.PortNum_POSITION_APP,
		Payload: body,
	})
	if err := r.sendPacket(p); err != nil {
		return nil, fmt.Errorf("send position: %w", err)
	}
	return p, nil
}

// SendTelemetry sends the device-metrics telemetry of the local node.
func (r *Radio) SendTelemetry(to, channel uint32) (*pb.MeshPacket, error) {
	metrics := &pb.DeviceMetrics{}
	if n := r.SelfNode(); n != nil && n.DeviceMetrics != nil {
		metrics = n.DeviceMetrics
	}
	body, err := proto.Marshal(&pb.Telemetry{
		Time: uint32(time.Now().Unix()),
		Variant: &pb.Telemetry_DeviceMetrics{
			DeviceMetrics: metrics,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal telemetry: %w", err)
	}
	p := r.newPacket(to, channel, false, &pb.Data{
		Portnum:      pb.PortNum_TELEMETRY_APP,
		Payload:      body,
		WantResponse: to != BroadcastAddr,
	})
	if err := r.sendPacket(p); err != nil {
		return nil, fmt.Errorf("send telemetry: %w", err)
	}
	return p, nil
}

// SendHeartbeat keeps the device link alive.
func (r *Radio) SendHeartbeat() error {
	err := r.conn.WriteMessage(&pb.ToRadio{
		PayloadVariant: &pb.ToRadio_Heartbeat{Heartbeat: &pb.Heartbeat{}},
	})
	if err != nil {
		return fmt.Errorf("send heartbeat: %w", err)
	}
	return nil
}

// SendTraceroute asks the mesh to discover the route to a node.
func (r *Radio) SendTraceroute(dest uint32, hopLimit, channel uint32) (*pb.MeshPacket, error) {
	body, err := proto.Marshal(&pb.RouteDiscovery{})
	if err != nil {
		return nil, fmt.Errorf("marshal route discovery: %w", err)
	}
	p := r.newPacket(dest, channel, false, &pb.Data{
		Portnum:      pb.PortNum_TRACEROUTE_APP,
		Payload:      body,
		WantResponse: true,
	})
	if hopLimit > 0 {
		p.HopLimit = hopLimit
	}
	if err := r.sendPacket(p); err != nil {
		return nil, fmt.Errorf("send traceroute: %w", err)
	}
	return p, nil
}

// SendWaypoint broadcasts a waypoint marker.
func (r *Radio) SendWaypoint(wp *pb.Waypoint, to, channel uint32) (*pb.MeshPacket, error) {
	if wp.Id == 0 {
		wp.Id = rand.Uint32()
	}
	body, err := proto.Marshal(wp)
	if err != nil {
		return nil, fmt.Errorf("marshal waypoint: %w", err)
	}
	p := r.newPacket(to, channel, true, &pb.Data{
		Portnum: pb.PortNum_WAYPOINT_APP,
		Payload: body,
	})
	if err := r.sendPacket(p); err != nil {
		return nil, fmt.Errorf("send waypoint: %w", err)
	}
	return p, nil
}

// DeleteWaypoint expires a waypoint on the mesh. Peers drop a waypoint
// whose expire time is in the past.
func (r *Radio) DeleteWaypoint(id uint32, to, channel uint32) (*pb.MeshPacket, error) {
	return r.SendWaypoint(&pb.Waypoint{Id: id, Expire: 1}, to, channel)
}

// ParseDestination converts a tool-level destination argument into a
// node number. Accepts "" or "^all" for broadcast, "!hex" node IDs,
// and plain decimal numbers.
func ParseDestination(s string) (uint32, error) {
	switch {
	case s == "" || s == "^all":
		return BroadcastAddr, nil
	case strings.HasPrefix(s, "!"):
		n, err := strconv.ParseUint(strings.TrimPrefix(s, "!"), 16, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid node ID %q: %w", s, err)
		}
		return uint32(n), nil
	default:
		n, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid destination %q: %w", s, err)
		}
		return uint32(n), nil
	}
}

// NodeID formats a node number in the canonical "!hex" form.
func NodeID(num uint32) string {
	return fmt.Sprintf("!%08x", num)
}
