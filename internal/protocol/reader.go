package protocol

import (
	"encoding/binary"
	"math"
)

// Reader is a bounds-checked little-endian cursor over a byte slice.
// Every read that would run past the end returns a *DecodeError and leaves
// the cursor where it was.
type Reader struct {
	op   string
	data []byte
	pos  int
}

// NewReader creates a Reader. op names the structure being decoded and is
// carried into any DecodeError.
func NewReader(op string, data []byte) *Reader {
	return &Reader{op: op, data: data}
}

func (r *Reader) need(n int) error {
	if n < 0 || r.pos+n > len(r.data) {
		return &DecodeError{Op: r.op, Offset: r.pos, Need: n, Have: len(r.data) - r.pos}
	}
	return nil
}

// ReadByte reads 1 byte.
func (r *Reader) ReadByte() (byte, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

// ReadUint16 reads a uint16.
func (r *Reader) ReadUint16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

// ReadUint32 reads a uint32.
func (r *Reader) ReadUint32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

// ReadInt32 reads an int32.
func (r *Reader) ReadInt32() (int32, error) {
	v, err := r.ReadUint32()
	return int32(v), err
}

// ReadFloat32 reads an IEEE-754 float32.
func (r *Reader) ReadFloat32() (float32, error) {
	v, err := r.ReadUint32()
	return math.Float32frombits(v), err
}

// ReadBytes reads n bytes. The returned slice aliases the source.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// ReadString reads a string with a 4-byte length prefix.
func (r *Reader) ReadString() (string, error) {
	start := r.pos
	n, err := r.ReadUint32()
	if err != nil {
		return "", err
	}
	if uint64(n) > uint64(r.Remaining()) {
		r.pos = start
		return "", &DecodeError{Op: r.op, Offset: start, Need: int(n) + 4, Have: len(r.data) - start}
	}
	b, _ := r.ReadBytes(int(n))
	return string(b), nil
}

// ReadShortString reads a string with a 2-byte length prefix.
func (r *Reader) ReadShortString() (string, error) {
	start := r.pos
	n, err := r.ReadUint16()
	if err != nil {
		return "", err
	}
	b, err := r.ReadBytes(int(n))
	if err != nil {
		r.pos = start
		return "", err
	}
	return string(b), nil
}

// Skip advances the cursor by n bytes.
func (r *Reader) Skip(n int) error {
	if err := r.need(n); err != nil {
		return err
	}
	r.pos += n
	return nil
}

// Position returns the current offset.
func (r *Reader) Position() int {
	return r.pos
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.pos
}

// Rest returns the unread bytes without advancing.
func (r *Reader) Rest() []byte {
	return r.data[r.pos:]
}
