package pair

import (
	"encoding/binary"
	"fmt"
	"math"
)

// WorkerStatus is the fixed-size record a worker transmits: raw button
// bits plus an opaque application data block. Wire layout matches the
// firmware struct byte-for-byte.
type WorkerStatus struct {
	Buttons [16]byte
	Data    [64]byte
}

// WorkerStatusSize is the exact wire size of WorkerStatus.
const WorkerStatusSize = 80

// Encode returns the wire bytes of the record.
func (s *WorkerStatus) Encode() []byte {
	b := make([]byte, WorkerStatusSize)
	copy(b[0:16], s.Buttons[:])
	copy(b[16:], s.Data[:])
	return b
}

// Decode fills the record from wire bytes.
func (s *WorkerStatus) Decode(b []byte) error {
	if len(b) != WorkerStatusSize {
		return fmt.Errorf("worker status: want %d bytes, got %d", WorkerStatusSize, len(b))
	}
	copy(s.Buttons[:], b[0:16])
	copy(s.Data[:], b[16:])
	return nil
}

// Equal compares records byte-for-byte.
func (s *WorkerStatus) Equal(o *WorkerStatus) bool {
	return *s == *o
}

// Zero clears the record.
func (s *WorkerStatus) Zero() {
	*s = WorkerStatus{}
}

// CmdKind enumerates command kinds carried in Command.MainID space.
type CmdKind uint8

// Command kinds.
const (
	CmdSet CmdKind = iota
	CmdGet
)

// Command is the fixed-size record the coordinator transmits.
// Wire layout is packed little-endian, matching the firmware struct.
type Command struct {
	MainID   uint8
	SubID    uint8
	Index1   uint8
	Index2   uint8
	Value    float32
	ValueInt int32
}

// CommandSize is the exact wire size of Command.
const CommandSize = 12

// Encode returns the wire bytes of the record.
func (c *Command) Encode() []byte {
	b := make([]byte, CommandSize)
	b[0], b[1], b[2], b[3] = c.MainID, c.SubID, c.Index1, c.Index2
	binary.LittleEndian.PutUint32(b[4:8], math.Float32bits(c.Value))
	binary.LittleEndian.PutUint32(b[8:12], uint32(c.ValueInt))
	return b
}

// Decode fills the record from wire bytes.
func (c *Command) Decode(b []byte) error {
	if len(b) != CommandSize {
		return fmt.Errorf("command: want %d bytes, got %d", CommandSize, len(b))
	}
	c.MainID, c.SubID, c.Index1, c.Index2 = b[0], b[1], b[2], b[3]
	c.Value = math.Float32frombits(binary.LittleEndian.Uint32(b[4:8]))
	c.ValueInt = int32(binary.LittleEndian.Uint32(b[8:12]))
	return nil
}

// Equal compares records byte-for-byte. Value is compared by bit
// pattern so NaN and signed-zero payloads behave like the wire bytes.
func (c *Command) Equal(o *Command) bool {
	return c.MainID == o.MainID && c.SubID == o.SubID &&
		c.Index1 == o.Index1 && c.Index2 == o.Index2 &&
		math.Float32bits(c.Value) == math.Float32bits(o.Value) &&
		c.ValueInt == o.ValueInt
}

// Zero clears the record.
func (c *Command) Zero() {
	*c = Command{}
}
