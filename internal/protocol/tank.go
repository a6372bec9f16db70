package protocol

import "fmt"

// TankPacket is the fixed 56-byte header of a game packet. Field order
// matches the wire layout; the unnamed fields are reserved by the server.
type TankPacket struct {
	Type               TankPacketType // @0
	Unk1               uint8          // @1
	Unk2               uint8          // @2
	Unk3               uint8          // @3
	NetID              uint32         // @4
	Unk4               uint32         // @8
	Flags              uint32         // @12
	Unk6               uint32         // @16
	Value              uint32         // @20
	VectorX            float32        // @24
	VectorY            float32        // @28
	VectorX2           float32        // @32
	VectorY2           float32        // @36
	Unk12              float32        // @40
	IntX               int32          // @44
	IntY               int32          // @48
	ExtendedDataLength uint32         // @52
}

func (p TankPacket) String() string {
	return fmt.Sprintf("TankPacket{type=%s net_id=%d value=%d ext=%d}",
		p.Type, p.NetID, p.Value, p.ExtendedDataLength)
}

// DecodeTankHeader reads the 56-byte header from the start of data. Bytes past
// the header are ignored.
func DecodeTankHeader(data []byte) (TankPacket, error) {
	if len(data) < TankHeaderSize {
		return TankPacket{}, &DecodeError{Op: "tank header", Need: TankHeaderSize, Have: len(data)}
	}

	// The length check above makes every read below infallible.
	r := NewReader("tank header", data[:TankHeaderSize])
	var p TankPacket
	t, _ := r.ReadByte()
	p.Type = TankPacketType(t)
	p.Unk1, _ = r.ReadByte()
	p.Unk2, _ = r.ReadByte()
	p.Unk3, _ = r.ReadByte()
	p.NetID, _ = r.ReadUint32()
	p.Unk4, _ = r.ReadUint32()
	p.Flags, _ = r.ReadUint32()
	p.Unk6, _ = r.ReadUint32()
	p.Value, _ = r.ReadUint32()
	p.VectorX, _ = r.ReadFloat32()
	p.VectorY, _ = r.ReadFloat32()
	p.VectorX2, _ = r.ReadFloat32()
	p.VectorY2, _ = r.ReadFloat32()
	p.Unk12, _ = r.ReadFloat32()
	p.IntX, _ = r.ReadInt32()
	p.IntY, _ = r.ReadInt32()
	p.ExtendedDataLength, _ = r.ReadUint32()
	return p, nil
}

// DecodeTankPacket decodes the header and returns the extended payload that
// follows it. The declared extended length must match the bytes remaining.
func DecodeTankPacket(data []byte) (TankPacket, []byte, error) {
	p, err := DecodeTankHeader(data)
	if err != nil {
		return TankPacket{}, nil, err
	}
	payload := data[TankHeaderSize:]
	if uint64(p.ExtendedDataLength) != uint64(len(payload)) {
		return TankPacket{}, nil, &DecodeError{
			Op:     "tank packet",
			Offset: TankHeaderSize,
			Need:   int(p.ExtendedDataLength),
			Have:   len(payload),
		}
	}
	return p, payload, nil
}

// EncodeTankPacket writes the header followed by payload. ExtendedDataLength
// is written as given; callers set it to len(payload) themselves.
func EncodeTankPacket(p TankPacket, payload []byte) []byte {
	b := WithCapacity(TankHeaderSize + len(payload))
	writeTankPacket(b, p, payload)
	return b.Build()
}

// BuildGamePacket wraps an encoded tank packet in a game packet message.
func BuildGamePacket(p TankPacket, payload []byte) []byte {
	b := WithCapacity(4 + TankHeaderSize + len(payload))
	b.WriteUint32(uint32(MsgGamePacket))
	writeTankPacket(b, p, payload)
	return b.Build()
}

func writeTankPacket(b *PacketBuilder, p TankPacket, payload []byte) {
	b.WriteByte(byte(p.Type)).
		WriteByte(p.Unk1).
		WriteByte(p.Unk2).
		WriteByte(p.Unk3).
		WriteUint32(p.NetID).
		WriteUint32(p.Unk4).
		WriteUint32(p.Flags).
		WriteUint32(p.Unk6).
		WriteUint32(p.Value).
		WriteFloat32(p.VectorX).
		WriteFloat32(p.VectorY).
		WriteFloat32(p.VectorX2).
		WriteFloat32(p.VectorY2).
		WriteFloat32(p.Unk12).
		WriteInt32(p.IntX).
		WriteInt32(p.IntY).
		WriteUint32(p.ExtendedDataLength).
		WriteBytes(payload)
}
