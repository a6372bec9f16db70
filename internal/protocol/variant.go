package protocol

import (
	"fmt"
	"strings"
)

// VariantType is the type tag of a single variant argument.
type VariantType uint8

// Variant type tags as they appear on the wire.
const (
	VariantUnknown VariantType = 0
	VariantFloat   VariantType = 1
	VariantString  VariantType = 2
	VariantVec2    VariantType = 3
	VariantVec3    VariantType = 4
	VariantUint32  VariantType = 5
	VariantInt32   VariantType = 9
)

func (t VariantType) String() string {
	switch t {
	case VariantFloat:
		return "float"
	case VariantString:
		return "string"
	case VariantVec2:
		return "vec2"
	case VariantVec3:
		return "vec3"
	case VariantUint32:
		return "uint32"
	case VariantInt32:
		return "int32"
	default:
		return fmt.Sprintf("variant_type(%d)", uint8(t))
	}
}

// Variant is one typed argument of a call. Only the field matching Type is set.
type Variant struct {
	Type  VariantType
	Float float32
	Str   string
	Vec   [3]float32
	Uint  uint32
	Int   int32
}

// Variant constructors.
func FloatVariant(v float32) Variant   { return Variant{Type: VariantFloat, Float: v} }
func StringVariant(v string) Variant   { return Variant{Type: VariantString, Str: v} }
func Vec2Variant(x, y float32) Variant { return Variant{Type: VariantVec2, Vec: [3]float32{x, y}} }
func Vec3Variant(x, y, z float32) Variant {
	return Variant{Type: VariantVec3, Vec: [3]float32{x, y, z}}
}
func Uint32Variant(v uint32) Variant { return Variant{Type: VariantUint32, Uint: v} }
func Int32Variant(v int32) Variant   { return Variant{Type: VariantInt32, Int: v} }

func (v Variant) typeError(want VariantType) error {
	return fmt.Errorf("%w: want %s, have %s", ErrVariantType, want, v.Type)
}

// AsString returns the value of a string variant.
func (v Variant) AsString() (string, error) {
	if v.Type != VariantString {
		return "", v.typeError(VariantString)
	}
	return v.Str, nil
}

// AsInt32 returns the value of an int32 variant.
func (v Variant) AsInt32() (int32, error) {
	if v.Type != VariantInt32 {
		return 0, v.typeError(VariantInt32)
	}
	return v.Int, nil
}

// AsUint32 returns the value of a uint32 variant.
func (v Variant) AsUint32() (uint32, error) {
	if v.Type != VariantUint32 {
		return 0, v.typeError(VariantUint32)
	}
	return v.Uint, nil
}

// AsFloat returns the value of a float variant.
func (v Variant) AsFloat() (float32, error) {
	if v.Type != VariantFloat {
		return 0, v.typeError(VariantFloat)
	}
	return v.Float, nil
}

// AsVec2 returns the value of a vec2 variant.
func (v Variant) AsVec2() ([2]float32, error) {
	if v.Type != VariantVec2 {
		return [2]float32{}, v.typeError(VariantVec2)
	}
	return [2]float32{v.Vec[0], v.Vec[1]}, nil
}

// AsVec3 returns the value of a vec3 variant.
func (v Variant) AsVec3() ([3]float32, error) {
	if v.Type != VariantVec3 {
		return [3]float32{}, v.typeError(VariantVec3)
	}
	return v.Vec, nil
}

func (v Variant) String() string {
	switch v.Type {
	case VariantFloat:
		return fmt.Sprintf("%g", v.Float)
	case VariantString:
		return fmt.Sprintf("%q", v.Str)
	case VariantVec2:
		return fmt.Sprintf("(%g, %g)", v.Vec[0], v.Vec[1])
	case VariantVec3:
		return fmt.Sprintf("(%g, %g, %g)", v.Vec[0], v.Vec[1], v.Vec[2])
	case VariantUint32:
		return fmt.Sprintf("%du", v.Uint)
	case VariantInt32:
		return fmt.Sprintf("%d", v.Int)
	default:
		return "<unknown>"
	}
}

// MaxVariantArgs is the most arguments a list can carry; count and indices
// are single bytes on the wire.
const MaxVariantArgs = 255

// VariantList is the positional argument vector of a server call.
// Argument 0 is the call name.
type VariantList struct {
	args []Variant
}

// NewVariantList creates a list from args in order.
func NewVariantList(args ...Variant) *VariantList {
	return &VariantList{args: args}
}

// DeserializeVariantList parses a variant payload.
// Format: [count:1] then count records of [index:1][type:1][value].
// Records are stored at their declared index; bytes after the last record
// are ignored.
func DeserializeVariantList(data []byte) (*VariantList, error) {
	r := NewReader("variant list", data)
	count, err := r.ReadByte()
	if err != nil {
		return nil, err
	}

	args := make([]Variant, count)
	seen := make([]bool, count)
	for i := 0; i < int(count); i++ {
		start := r.Position()
		index, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		tag, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if int(index) >= int(count) || seen[index] {
			return nil, &DecodeError{Op: "variant list", Offset: start,
				Reason: fmt.Sprintf("bad argument index %d for %d arguments", index, count)}
		}

		v, err := readVariant(r, VariantType(tag))
		if err != nil {
			return nil, err
		}
		args[index] = v
		seen[index] = true
	}

	return &VariantList{args: args}, nil
}

func readVariant(r *Reader, t VariantType) (Variant, error) {
	switch t {
	case VariantFloat:
		f, err := r.ReadFloat32()
		return FloatVariant(f), err
	case VariantString:
		s, err := r.ReadString()
		return StringVariant(s), err
	case VariantVec2:
		if err := r.need(8); err != nil {
			return Variant{}, err
		}
		x, _ := r.ReadFloat32()
		y, _ := r.ReadFloat32()
		return Vec2Variant(x, y), nil
	case VariantVec3:
		if err := r.need(12); err != nil {
			return Variant{}, err
		}
		x, _ := r.ReadFloat32()
		y, _ := r.ReadFloat32()
		z, _ := r.ReadFloat32()
		return Vec3Variant(x, y, z), nil
	case VariantUint32:
		u, err := r.ReadUint32()
		return Uint32Variant(u), err
	case VariantInt32:
		i, err := r.ReadInt32()
		return Int32Variant(i), err
	default:
		return Variant{}, &DecodeError{Op: "variant list", Offset: r.Position() - 1,
			Reason: fmt.Sprintf("unknown variant type %d", uint8(t))}
	}
}

// Serialize encodes the list in wire format. Lists longer than
// MaxVariantArgs fail with ErrVariantCount.
func (l *VariantList) Serialize() ([]byte, error) {
	if len(l.args) > MaxVariantArgs {
		return nil, fmt.Errorf("%w: %d of at most %d", ErrVariantCount, len(l.args), MaxVariantArgs)
	}
	b := NewPacketBuilder()
	b.WriteByte(byte(len(l.args)))
	for i, v := range l.args {
		b.WriteByte(byte(i))
		b.WriteByte(byte(v.Type))
		switch v.Type {
		case VariantFloat:
			b.WriteFloat32(v.Float)
		case VariantString:
			b.WriteString(v.Str)
		case VariantVec2:
			b.WriteFloat32(v.Vec[0]).WriteFloat32(v.Vec[1])
		case VariantVec3:
			b.WriteFloat32(v.Vec[0]).WriteFloat32(v.Vec[1]).WriteFloat32(v.Vec[2])
		case VariantUint32:
			b.WriteUint32(v.Uint)
		case VariantInt32:
			b.WriteInt32(v.Int)
		}
	}
	return b.Build(), nil
}

// Len returns the number of arguments.
func (l *VariantList) Len() int {
	return len(l.args)
}

// Get returns the argument at index i.
func (l *VariantList) Get(i int) (Variant, bool) {
	if i < 0 || i >= len(l.args) {
		return Variant{}, false
	}
	return l.args[i], true
}

func (l *VariantList) at(i int) (Variant, error) {
	v, ok := l.Get(i)
	if !ok {
		return Variant{}, fmt.Errorf("%w: %d of %d", ErrVariantIndex, i, len(l.args))
	}
	return v, nil
}

// String returns argument i as a string.
func (l *VariantList) String(i int) (string, error) {
	v, err := l.at(i)
	if err != nil {
		return "", err
	}
	s, err := v.AsString()
	if err != nil {
		return "", fmt.Errorf("argument %d: %w", i, err)
	}
	return s, nil
}

// Int32 returns argument i as an int32.
func (l *VariantList) Int32(i int) (int32, error) {
	v, err := l.at(i)
	if err != nil {
		return 0, err
	}
	n, err := v.AsInt32()
	if err != nil {
		return 0, fmt.Errorf("argument %d: %w", i, err)
	}
	return n, nil
}

// Uint32 returns argument i as a uint32.
func (l *VariantList) Uint32(i int) (uint32, error) {
	v, err := l.at(i)
	if err != nil {
		return 0, err
	}
	n, err := v.AsUint32()
	if err != nil {
		return 0, fmt.Errorf("argument %d: %w", i, err)
	}
	return n, nil
}

// Float returns argument i as a float32.
func (l *VariantList) Float(i int) (float32, error) {
	v, err := l.at(i)
	if err != nil {
		return 0, err
	}
	f, err := v.AsFloat()
	if err != nil {
		return 0, fmt.Errorf("argument %d: %w", i, err)
	}
	return f, nil
}

// Vec2 returns argument i as a 2-D vector.
func (l *VariantList) Vec2(i int) ([2]float32, error) {
	v, err := l.at(i)
	if err != nil {
		return [2]float32{}, err
	}
	vec, err := v.AsVec2()
	if err != nil {
		return [2]float32{}, fmt.Errorf("argument %d: %w", i, err)
	}
	return vec, nil
}

// Vec3 returns argument i as a 3-D vector.
func (l *VariantList) Vec3(i int) ([3]float32, error) {
	v, err := l.at(i)
	if err != nil {
		return [3]float32{}, err
	}
	vec, err := v.AsVec3()
	if err != nil {
		return [3]float32{}, fmt.Errorf("argument %d: %w", i, err)
	}
	return vec, nil
}

// FunctionName returns the call name held in argument 0.
func (l *VariantList) FunctionName() (string, error) {
	return l.String(0)
}

// Describe renders the list for logging, e.g. OnConsoleMessage("hi").
func (l *VariantList) Describe() string {
	if len(l.args) == 0 {
		return "()"
	}
	parts := make([]string, 0, len(l.args)-1)
	for _, v := range l.args[1:] {
		parts = append(parts, v.String())
	}
	name := l.args[0].Str
	if l.args[0].Type != VariantString {
		name = l.args[0].String()
	}
	return name + "(" + strings.Join(parts, ", ") + ")"
}
