package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sendToServerList() *VariantList {
	return NewVariantList(
		StringVariant("OnSendToServer"),
		Int32Variant(17091),
		Int32Variant(123),
		Int32Variant(456),
		StringVariant("1.2.3.4|77|uuid-abc"),
		Int32Variant(0),
		StringVariant("alice"),
	)
}

func serialize(t *testing.T, list *VariantList) []byte {
	t.Helper()
	data, err := list.Serialize()
	require.NoError(t, err)
	return data
}

func TestVariantListRoundTrip(t *testing.T) {
	list := NewVariantList(
		StringVariant("OnSetPos"),
		FloatVariant(3.5),
		Vec2Variant(10, 20),
		Vec3Variant(1, 2, 3),
		Uint32Variant(7),
		Int32Variant(-1),
	)

	decoded, err := DeserializeVariantList(serialize(t, list))
	require.NoError(t, err)
	require.Equal(t, list.Len(), decoded.Len())

	for i := 0; i < list.Len(); i++ {
		want, _ := list.Get(i)
		got, ok := decoded.Get(i)
		require.True(t, ok)
		assert.Equal(t, want, got, "argument %d", i)
	}
	assert.Equal(t, serialize(t, list), serialize(t, decoded))
}

func TestVariantListAccessors(t *testing.T) {
	list, err := DeserializeVariantList(serialize(t, sendToServerList()))
	require.NoError(t, err)

	name, err := list.FunctionName()
	require.NoError(t, err)
	assert.Equal(t, "OnSendToServer", name)

	port, err := list.Int32(1)
	require.NoError(t, err)
	assert.Equal(t, int32(17091), port)

	blob, err := list.String(4)
	require.NoError(t, err)
	assert.Equal(t, "1.2.3.4|77|uuid-abc", blob)

	_, err = list.String(1)
	assert.ErrorIs(t, err, ErrVariantType)

	_, err = list.Float(6)
	assert.ErrorIs(t, err, ErrVariantType)

	_, err = list.Int32(7)
	assert.ErrorIs(t, err, ErrVariantIndex)

	_, ok := list.Get(-1)
	assert.False(t, ok)
}

func TestVariantListOutOfOrderIndices(t *testing.T) {
	b := NewPacketBuilder()
	b.WriteByte(2)
	b.WriteByte(1).WriteByte(byte(VariantUint32)).WriteUint32(99)
	b.WriteByte(0).WriteByte(byte(VariantString)).WriteString("OnTest")

	list, err := DeserializeVariantList(b.Build())
	require.NoError(t, err)

	name, err := list.FunctionName()
	require.NoError(t, err)
	assert.Equal(t, "OnTest", name)

	v, err := list.Uint32(1)
	require.NoError(t, err)
	assert.Equal(t, uint32(99), v)
}

func TestDeserializeVariantListErrors(t *testing.T) {
	valid := serialize(t, sendToServerList())

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"count only", []byte{1}},
		{"missing value", []byte{1, 0, byte(VariantInt32), 1, 2}},
		{"unknown type", []byte{1, 0, 7, 0, 0, 0, 0}},
		{"string length past end", []byte{1, 0, byte(VariantString), 0xFF, 0xFF, 0, 0, 'a'}},
		{"index out of range", []byte{1, 3, byte(VariantUint32), 0, 0, 0, 0}},
		{"duplicate index", []byte{2, 0, byte(VariantUint32), 0, 0, 0, 0, 0, byte(VariantUint32), 0, 0, 0, 0}},
		{"truncated call", valid[:len(valid)-3]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			assert.NotPanics(t, func() {
				_, err = DeserializeVariantList(tt.data)
			})
			require.Error(t, err)
			assert.True(t, IsDecodeError(err))
		})
	}
}

func TestDeserializeVariantListTrailingBytes(t *testing.T) {
	data := append(serialize(t, NewVariantList(StringVariant("OnTest"))), 0, 0, 0)
	list, err := DeserializeVariantList(data)
	require.NoError(t, err)
	assert.Equal(t, 1, list.Len())
}

func TestVariantListSerializeArgumentLimit(t *testing.T) {
	args := make([]Variant, MaxVariantArgs)
	args[0] = StringVariant("OnTest")
	for i := 1; i < len(args); i++ {
		args[i] = Uint32Variant(uint32(i))
	}

	data := serialize(t, NewVariantList(args...))
	assert.Equal(t, byte(MaxVariantArgs), data[0])
	list, err := DeserializeVariantList(data)
	require.NoError(t, err)
	last, err := list.Uint32(MaxVariantArgs - 1)
	require.NoError(t, err)
	assert.Equal(t, uint32(MaxVariantArgs-1), last)

	_, err = NewVariantList(append(args, Int32Variant(0))...).Serialize()
	assert.ErrorIs(t, err, ErrVariantCount)
}

func TestVariantListDescribe(t *testing.T) {
	list := NewVariantList(StringVariant("OnConsoleMessage"), StringVariant("hi"), Int32Variant(3))
	assert.Equal(t, `OnConsoleMessage("hi", 3)`, list.Describe())
}
