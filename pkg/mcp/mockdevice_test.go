package mcp

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
// answers the config handshake with a canned mesh and records every
// packet sent afterwards, so handlers can run against a real
// connection without hardware.
type mockDevice struct {
	ln net.Listener

	myNodeNum uint32

	mu      sync.Mutex
	toRadio []*pb.ToRadio
}

func newMockDevice(t *testing.T) *mockDevice {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	d := &mockDevice{ln: ln, myNodeNum: 0x11223344}
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
		msg, err := readFramed(conn)
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

func (d *mockDevice) sendConfig(conn net.Conn, nonce uint32) {
	frames := []*pb.FromRadio{
		{PayloadVariant: &pb.FromRadio_MyInfo{MyInfo: &pb.MyNodeInfo{MyNodeNum: d.myNodeNum}}},
		{PayloadVariant: &pb.FromRadio_Metadata{Metadata: &pb.DeviceMetadata{
			FirmwareVersion: "2.5.1.abcdef",
			HwModel:         pb.HardwareModel_TBEAM,
		}}},
		{PayloadVariant: &pb.FromRadio_NodeInfo{NodeInfo: &pb.NodeInfo{
			Num: d.myNodeNum,
			User: &pb.User{
				Id:        "!11223344",
				LongName:  "Base Station",
				ShortName: "BASE",
				HwModel:   pb.HardwareModel_TBEAM,
			},
		}}},
		{PayloadVariant: &pb.FromRadio_NodeInfo{NodeInfo: &pb.NodeInfo{
			Num:       0x55667788,
			User:      &pb.User{Id: "!55667788", LongName: "Trail Node", ShortName: "TRL"},
			LastHeard: uint32(time.Now().Unix()),
		}}},
		{PayloadVariant: &pb.FromRadio_Channel{Channel: &pb.Channel{
			Index:    0,
			Role:     pb.Channel_PRIMARY,
			Settings: &pb.ChannelSettings{Name: "LongFast"},
		}}},
		{PayloadVariant: &pb.FromRadio_ConfigCompleteId{ConfigCompleteId: nonce}},
	}

	for _, f := range frames {
		if err := writeFramed(conn, f); err != nil {
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

// readFramed decodes one framed ToRadio message.
func readFramed(r io.Reader) (*pb.ToRadio, error) {
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

// writeFramed writes one framed FromRadio message.
func writeFramed(w io.Writer, msg *pb.FromRadio) error {
	body, err := proto.Marshal(msg)
	if err != nil {
		return err
	}
	buf := make([]byte, 4+len(body))
	buf[0] = 0x94
	buf[1] = 0xC3
	binary.BigEndian.PutUint16(buf[2:4], uint16(len(body)))
	copy(buf[4:], body)
	_, err = w.Write(buf)
	return err
}
