package radio

import (
	"encoding/binary"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	pb "github.com/meshtastic/go/generated"
	"google.golang.org/protobuf/proto"
)

// mockDevice is a fake Meshtastic device behind a TCP listener. It
// answers the config handshake with a canned node list and records
// every packet the client sends afterwards.
type mockDevice struct {
	t  *testing.T
	ln net.Listener

	myNodeNum uint32
	metadata  *pb.DeviceMetadata
	nodes     []*pb.NodeInfo
	channels  []*pb.Channel

	mu      sync.Mutex
	toRadio []*pb.ToRadio
}

func newMockDevice(t *testing.T) *mockDevice {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	d := &mockDevice{
		t:         t,
		ln:        ln,
		myNodeNum: 0x11223344,
		metadata: &pb.DeviceMetadata{
			FirmwareVersion: "2.5.1.abcdef",
			HwModel:         pb.HardwareModel_TBEAM,
		},
		nodes: []*pb.NodeInfo{
			{
				Num: 0x11223344,
				User: &pb.User{
					Id:        "!11223344",
					LongName:  "Base Station",
					ShortName: "BASE",
					HwModel:   pb.HardwareModel_TBEAM,
				},
			},
			{
				Num: 0x55667788,
				User: &pb.User{
					Id:        "!55667788",
					LongName:  "Trail Node",
					ShortName: "TRL",
				},
				LastHeard: uint32(time.Now().Unix()),
			},
		},
		channels: []*pb.Channel{
			{
				Index:    0,
				Role:     pb.Channel_PRIMARY,
				Settings: &pb.ChannelSettings{Name: "LongFast"},
			},
		},
	}

	go d.acceptLoop()
	t.Cleanup(func() { ln.Close() })
	return d
}

func (d *mockDevice) Addr() string { return d.ln.Addr().String() }

func (d *mockDevice) acceptLoop() {
	for {
		conn, err := d.ln.Accept()
		if err != nil {
			return
		}
		go d.serve(conn)
	}
}

func (d *mockDevice) serve(conn net.Conn) {
	defer conn.Close()

	for {
		msg, err := readToRadio(conn)
		if err != nil {
			return
		}

		if nonce, ok := msg.PayloadVariant.(*pb.ToRadio_WantConfigId); ok {
			d.sendConfig(conn, nonce.WantConfigId)
			continue
		}

		d.mu.Lock()
		d.toRadio = append(d.toRadio, msg)
		d.mu.Unlock()
	}
}

// readToRadio decodes one framed ToRadio message, the device side of
// what frameConn speaks. The client writes clean frames, so no header
// scan is needed.
func readToRadio(r io.Reader) (*pb.ToRadio, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	body := make([]byte, binary.BigEndian.Uint16(header[2:4]))
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	msg := &pb.ToRadio{}
	if err := proto.Unmarshal(body, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func writeFromRadio(w io.Writer, msg *pb.FromRadio) error {
	body, err := proto.Marshal(msg)
	if err != nil {
		return err
	}
	buf := make([]byte, 4+len(body))
	buf[0] = start1
	buf[1] = start2
	binary.BigEndian.PutUint16(buf[2:4], uint16(len(body)))
	copy(buf[4:], body)
	_, err = w.Write(buf)
	return err
}

func (d *mockDevice) sendConfig(conn net.Conn, nonce uint32) {
	frames := []*pb.FromRadio{
		{PayloadVariant: &pb.FromRadio_MyInfo{MyInfo: &pb.MyNodeInfo{MyNodeNum: d.myNodeNum}}},
		{PayloadVariant: &pb.FromRadio_Metadata{Metadata: d.metadata}},
	}
	for _, n := range d.nodes {
		frames = append(frames, &pb.FromRadio{PayloadVariant: &pb.FromRadio_NodeInfo{NodeInfo: n}})
	}
	for _, ch := range d.channels {
		frames = append(frames, &pb.FromRadio{PayloadVariant: &pb.FromRadio_Channel{Channel: ch}})
	}
	frames = append(frames,
		&pb.FromRadio{PayloadVariant: &pb.FromRadio_Config{Config: &pb.Config{
			PayloadVariant: &pb.Config_Lora{Lora: &pb.Config_LoRaConfig{
				UsePreset:   true,
				ModemPreset: pb.Config_LoRaConfig_LONG_FAST,
				Region:      pb.Config_LoRaConfig_US,
				HopLimit:    3,
				TxEnabled:   true,
			}}},
		}},
		&pb.FromRadio{PayloadVariant: &pb.FromRadio_ConfigCompleteId{ConfigCompleteId: nonce}},
	)

	for _, f := range frames {
		if err := writeFromRadio(conn, f); err != nil {
			return
		}
	}
}

// packets returns what the client sent after the handshake, waiting
// briefly for in-flight frames.
func (d *mockDevice) packets(want int) []*pb.ToRadio {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		d.mu.Lock()
		n := len(d.toRadio)
		d.mu.Unlock()
		if n >= want {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*pb.ToRadio, len(d.toRadio))
	copy(out, d.toRadio)
	return out
}

func dialMock(t *testing.T, d *mockDevice) *Radio {
	t.Helper()
	r, err := Dial(d.Addr(), TransportTCP)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestDial_Handshake(t *testing.T) {
	t.Parallel()

	d := newMockDevice(t)
	r := dialMock(t, d)

	if got := r.NodeNum(); got != d.myNodeNum {
		t.Errorf("NodeNum() = %#x, want %#x", got, d.myNodeNum)
	}

	long, short := r.Owner()
	if long != "Base Station" || short != "BASE" {
		t.Errorf("Owner() = %q, %q", long, short)
	}

	if got := r.FirmwareVersion(); got != "2.5.1.abcdef" {
		t.Errorf("FirmwareVersion() = %q", got)
	}

	if got := len(r.Nodes()); got != 2 {
		t.Errorf("len(Nodes()) = %d, want 2", got)
	}

	if got := len(r.Channels()); got != 1 {
		t.Errorf("len(Channels()) = %d, want 1", got)
	}

	cfg := r.LocalConfig()
	if cfg == nil || cfg.Lora == nil {
		t.Fatal("LocalConfig().Lora not populated from handshake")
	}
	if cfg.Lora.Region != pb.Config_LoRaConfig_US {
		t.Errorf("Lora.Region = %v, want US", cfg.Lora.Region)
	}
}

func TestDial_UnsupportedTransport(t *testing.T) {
	t.Parallel()

	if _, err := Dial("nowhere", Transport("carrier-pigeon")); err == nil {
		t.Fatal("Dial() succeeded with unsupported transport")
	}
}

// Not parallel: shrinks the package handshake timeout.
func TestDial_SilentDeviceTimesOut(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	// Accept connections and read forever without ever replying.
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go io.Copy(io.Discard, conn)
		}
	}()

	old := handshakeTimeout
	handshakeTimeout = 200 * time.Millisecond
	defer func() { handshakeTimeout = old }()

	start := time.Now()
	_, err = Dial(ln.Addr().String(), TransportTCP)
	if err == nil {
		t.Fatal("Dial() succeeded against a device that never replies")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("Dial() took %s to fail, the read deadline did not fire", elapsed)
	}
}

func TestRadio_NodesSelfFirst(t *testing.T) {
	t.Parallel()

	d := newMockDevice(t)
	r := dialMock(t, d)

	nodes := r.Nodes()
	if len(nodes) == 0 || nodes[0].Num != d.myNodeNum {
		t.Errorf("Nodes()[0].Num = %#x, want self %#x", nodes[0].Num, d.myNodeNum)
	}
}

func TestRadio_SendText(t *testing.T) {
	t.Parallel()

	d := newMockDevice(t)
	r := dialMock(t, d)

	p, err := r.SendText("hello mesh", BroadcastAddr, 0, true)
	if err != nil {
		t.Fatalf("SendText() error = %v", err)
	}
	if p.To != BroadcastAddr {
		t.Errorf("packet To = %#x, want broadcast", p.To)
	}
	if !p.WantAck {
		t.Error("packet WantAck not set")
	}

	sent := d.packets(1)
	if len(sent) != 1 {
		t.Fatalf("device saw %d packets, want 1", len(sent))
	}

	mp := sent[0].GetPacket()
	if mp == nil {
		t.Fatal("device did not receive a MeshPacket")
	}
	data := mp.GetDecoded()
	if data == nil || data.Portnum != pb.PortNum_TEXT_MESSAGE_APP {
		t.Fatalf("unexpected payload: %v", mp)
	}
	if got := string(data.Payload); got != "hello mesh" {
		t.Errorf("payload = %q, want %q", got, "hello mesh")
	}
}

func TestRadio_SetOwner(t *testing.T) {
	t.Parallel()

	d := newMockDevice(t)
	r := dialMock(t, d)

	// Leaving short empty keeps the device's current short name.
	if err := r.SetOwner("Summit Relay", ""); err != nil {
		t.Fatalf("SetOwner() error = %v", err)
	}

	long, short := r.Owner()
	if long != "Summit Relay" {
		t.Errorf("Owner() long = %q, want %q", long, "Summit Relay")
	}
	if short != "BASE" {
		t.Errorf("Owner() short = %q, want preserved %q", short, "BASE")
	}

	sent := d.packets(1)
	if len(sent) != 1 {
		t.Fatalf("device saw %d packets, want 1", len(sent))
	}
	mp := sent[0].GetPacket()
	if mp == nil || mp.GetDecoded() == nil {
		t.Fatal("device did not receive a decoded MeshPacket")
	}
	if mp.GetDecoded().Portnum != pb.PortNum_ADMIN_APP {
		t.Errorf("portnum = %v, want ADMIN_APP", mp.GetDecoded().Portnum)
	}
	if mp.To != d.myNodeNum {
		t.Errorf("admin packet To = %#x, want own node %#x", mp.To, d.myNodeNum)
	}
}

func TestRadio_SetOwnerEmpty(t *testing.T) {
	t.Parallel()

	d := newMockDevice(t)
	r := dialMock(t, d)

	if err := r.SetOwner("", ""); err == nil {
		t.Fatal("SetOwner() succeeded with no names")
	}
}

func TestRadio_DeleteWaypoint(t *testing.T) {
	t.Parallel()

	d := newMockDevice(t)
	r := dialMock(t, d)

	if _, err := r.DeleteWaypoint(99, BroadcastAddr, 0); err != nil {
		t.Fatalf("DeleteWaypoint() error = %v", err)
	}

	sent := d.packets(1)
	if len(sent) != 1 {
		t.Fatalf("device saw %d packets, want 1", len(sent))
	}
	data := sent[0].GetPacket().GetDecoded()
	if data == nil || data.Portnum != pb.PortNum_WAYPOINT_APP {
		t.Fatalf("unexpected payload: %v", sent[0])
	}
}

func TestRadio_RebootShutdownFactoryReset(t *testing.T) {
	t.Parallel()

	d := newMockDevice(t)
	r := dialMock(t, d)

	if err := r.Reboot(5); err != nil {
		t.Fatalf("Reboot() error = %v", err)
	}
	if err := r.Shutdown(20); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if err := r.FactoryReset(); err != nil {
		t.Fatalf("FactoryReset() error = %v", err)
	}

	sent := d.packets(3)
	if len(sent) != 3 {
		t.Fatalf("device saw %d packets, want 3", len(sent))
	}

	admins := make([]*pb.AdminMessage, len(sent))
	for i, msg := range sent {
		data := msg.GetPacket().GetDecoded()
		if data == nil || data.Portnum != pb.PortNum_ADMIN_APP {
			t.Fatalf("packet %d is not an admin packet: %v", i, msg)
		}
		admins[i] = &pb.AdminMessage{}
		if err := proto.Unmarshal(data.Payload, admins[i]); err != nil {
			t.Fatalf("decode admin message %d: %v", i, err)
		}
	}

	if admins[0].GetRebootSeconds() != 5 {
		t.Errorf("reboot_seconds = %d, want 5", admins[0].GetRebootSeconds())
	}
	if admins[1].GetShutdownSeconds() != 20 {
		t.Errorf("shutdown_seconds = %d, want 20", admins[1].GetShutdownSeconds())
	}
	if admins[2].GetFactoryReset() == 0 {
		t.Error("expected a factory_reset admin message")
	}
}

func TestParseDestination(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    uint32
		wantErr bool
	}{
		{in: "", want: BroadcastAddr},
		{in: "^all", want: BroadcastAddr},
		{in: "!11223344", want: 0x11223344},
		{in: "287454020", want: 287454020},
		{in: "!zzzz", wantErr: true},
		{in: "not-a-node", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDestination(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseDestination(%q) succeeded, want error", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDestination(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseDestination(%q) = %#x, want %#x", tt.in, got, tt.want)
			}
		})
	}
}

func TestNodeID(t *testing.T) {
	t.Parallel()

	if got := NodeID(0x11223344); got != "!11223344" {
		t.Errorf("NodeID() = %q, want %q", got, "!11223344")
	}
	if got := NodeID(7); got != "!00000007" {
		t.Errorf("NodeID() = %q, want zero-padded %q", got, "!00000007")
	}
}

func TestFilterNodes(t *testing.T) {
	t.Parallel()

	now := uint32(time.Now().Unix())
	nodes := []*pb.NodeInfo{
		{Num: 1, LastHeard: now},
		{Num: 2, LastHeard: now - 3600},
		{Num: 3},
	}

	if got := FilterNodes(nodes, 0, true); len(got) != 2 {
		t.Errorf("activeOnly kept %d nodes, want 2", len(got))
	}
	if got := FilterNodes(nodes, 600, false); len(got) != 1 {
		t.Errorf("since filter kept %d nodes, want 1", len(got))
	}
	if got := FilterNodes(nodes, 600, true); len(got) != 1 || got[0].Num != 1 {
		t.Errorf("combined filter kept %v", got)
	}
}
