package protocol

import (
	"encoding/binary"
	"math"
)

// PacketBuilder appends little-endian fields to a growing buffer. Methods
// chain so a packet reads in wire order:
//
//	NewPacketBuilder().WriteUint32(uint32(GamePacket)).WriteBytes(tank).Build()
type PacketBuilder struct {
	buf []byte
}

// NewPacketBuilder returns an empty builder.
func NewPacketBuilder() *PacketBuilder {
	return &PacketBuilder{buf: make([]byte, 0, 64)}
}

// WithCapacity returns an empty builder whose buffer can hold n bytes
// without growing.
func WithCapacity(n int) *PacketBuilder {
	return &PacketBuilder{buf: make([]byte, 0, n)}
}

func (b *PacketBuilder) WriteByte(v byte) *PacketBuilder {
	b.buf = append(b.buf, v)
	return b
}

func (b *PacketBuilder) WriteUint16(v uint16) *PacketBuilder {
	b.buf = binary.LittleEndian.AppendUint16(b.buf, v)
	return b
}

func (b *PacketBuilder) WriteUint32(v uint32) *PacketBuilder {
	b.buf = binary.LittleEndian.AppendUint32(b.buf, v)
	return b
}

func (b *PacketBuilder) WriteInt32(v int32) *PacketBuilder {
	return b.WriteUint32(uint32(v))
}

func (b *PacketBuilder) WriteFloat32(v float32) *PacketBuilder {
	return b.WriteUint32(math.Float32bits(v))
}

// WriteString writes s behind a u32 byte length.
func (b *PacketBuilder) WriteString(s string) *PacketBuilder {
	b.WriteUint32(uint32(len(s)))
	b.buf = append(b.buf, s...)
	return b
}

// WriteNullString writes s followed by a zero byte.
func (b *PacketBuilder) WriteNullString(s string) *PacketBuilder {
	b.buf = append(b.buf, s...)
	b.buf = append(b.buf, 0)
	return b
}

func (b *PacketBuilder) WriteBytes(data []byte) *PacketBuilder {
	b.buf = append(b.buf, data...)
	return b
}

// Build returns the bytes written so far. The builder must not be written
// to afterwards if the result is retained.
func (b *PacketBuilder) Build() []byte {
	return b.buf
}

// Len is the number of bytes written.
func (b *PacketBuilder) Len() int {
	return len(b.buf)
}
