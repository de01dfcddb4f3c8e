// Package radio speaks to a Meshtastic device over its client stream
// protocol. All message types come from the generated Meshtastic
// protobufs; this package only adds the framing header and a small set
// of typed operations on top of it.
package radio

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"

	pb "github.com/meshtastic/go/generated"
	"go.bug.st/serial"
	"google.golang.org/protobuf/proto"
)

const (
	// Stream framing magic bytes, sent before every protobuf frame.
	start1 = 0x94
	start2 = 0xC3

	// maxFrameSize is the largest protobuf payload a device will emit.
	maxFrameSize = 512
)

// frameConn wraps a raw link (TCP socket or serial port) with the
// Meshtastic stream framing: two magic bytes, a big-endian 16-bit
// length, then a serialized protobuf.
type frameConn struct {
	rw io.ReadWriteCloser
}

func newFrameConn(rw io.ReadWriteCloser) *frameConn {
	return &frameConn{rw: rw}
}

// setReadDeadline arms a read deadline on links that support one, so a
// device that accepts the connection but never writes cannot block a
// read forever. A zero time clears the deadline.
func (c *frameConn) setReadDeadline(t time.Time) error {
	switch link := c.rw.(type) {
	case interface{ SetReadDeadline(time.Time) error }:
		return link.SetReadDeadline(t)
	case interface{ SetReadTimeout(time.Duration) error }:
		if t.IsZero() {
			return link.SetReadTimeout(serial.NoTimeout)
		}
		return link.SetReadTimeout(time.Until(t))
	}
	return nil
}

// readFull fills buf from the link. Serial ports report an expired
// read timeout as a zero-byte read with a nil error; map that to the
// deadline error TCP sockets return.
func (c *frameConn) readFull(buf []byte) error {
	n := 0
	for n < len(buf) {
		m, err := c.rw.Read(buf[n:])
		if err != nil {
			return err
		}
		if m == 0 {
			return os.ErrDeadlineExceeded
		}
		n += m
	}
	return nil
}

// WriteMessage frames and writes a single ToRadio message.
func (c *frameConn) WriteMessage(msg *pb.ToRadio) error {
	body, err := proto.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal ToRadio: %w", err)
	}
	if len(body) > maxFrameSize {
		return fmt.Errorf("frame too large: %d bytes", len(body))
	}

	buf := make([]byte, 4+len(body))
	buf[0] = start1
	buf[1] = start2
	binary.BigEndian.PutUint16(buf[2:4], uint16(len(body)))
	copy(buf[4:], body)

	if _, err := c.rw.Write(buf); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// ReadMessage reads the next framed FromRadio message. Bytes that
// arrive outside a frame (serial devices echo boot logs on the same
// line) are skipped until a valid header is found.
func (c *frameConn) ReadMessage() (*pb.FromRadio, error) {
	if err := c.syncToFrame(); err != nil {
		return nil, err
	}

	var lenBuf [2]byte
	if err := c.readFull(lenBuf[:]); err != nil {
		return nil, fmt.Errorf("read frame length: %w", err)
	}
	size := int(binary.BigEndian.Uint16(lenBuf[:]))
	if size > maxFrameSize {
		return nil, fmt.Errorf("frame length %d exceeds maximum %d", size, maxFrameSize)
	}

	body := make([]byte, size)
	if err := c.readFull(body); err != nil {
		return nil, fmt.Errorf("read frame body: %w", err)
	}

	msg := &pb.FromRadio{}
	if err := proto.Unmarshal(body, msg); err != nil {
		return nil, fmt.Errorf("unmarshal FromRadio: %w", err)
	}
	return msg, nil
}

// syncToFrame consumes bytes until the start1+start2 header is seen.
func (c *frameConn) syncToFrame() error {
	var b [1]byte
	sawStart1 := false
	for {
		if err := c.readFull(b[:]); err != nil {
			return fmt.Errorf("read frame header: %w", err)
		}
		switch {
		case sawStart1 && b[0] == start2:
			return nil
		case b[0] == start1:
			sawStart1 = true
		default:
			sawStart1 = false
		}
	}
}

func (c *frameConn) Close() error {
	return c.rw.Close()
}
