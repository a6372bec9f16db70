package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/growbot-project/growbot/internal/protocol"
)

func inventoryData(size uint32, items ...Item) []byte {
	b := protocol.NewPacketBuilder()
	b.WriteByte(1).WriteUint32(size).WriteUint16(uint16(len(items)))
	for _, it := range items {
		b.WriteUint16(it.ID).WriteByte(it.Amount).WriteByte(it.Flags)
	}
	return b.Build()
}

func TestApplyInventoryData(t *testing.T) {
	inv := New()
	assert.False(t, inv.Loaded())

	data := inventoryData(16, Item{ID: 18, Amount: 1}, Item{ID: 2, Amount: 200, Flags: 1})
	require.NoError(t, inv.ApplyInventoryData(data))

	assert.True(t, inv.Loaded())
	assert.Equal(t, uint32(16), inv.Size())
	assert.Equal(t, 200, inv.Amount(2))
	assert.Equal(t, 0, inv.Amount(99))
	assert.Equal(t, []Item{{ID: 2, Amount: 200, Flags: 1}, {ID: 18, Amount: 1}}, inv.Items())
}

func TestApplyInventoryDataTruncated(t *testing.T) {
	inv := New()
	require.NoError(t, inv.ApplyInventoryData(inventoryData(16, Item{ID: 18, Amount: 1})))

	data := inventoryData(20, Item{ID: 2, Amount: 5}, Item{ID: 3, Amount: 5})
	for _, n := range []int{0, 3, 6, len(data) - 1} {
		err := inv.ApplyInventoryData(data[:n])
		require.Error(t, err, "length %d", n)
		assert.True(t, protocol.IsDecodeError(err))
	}

	assert.Equal(t, uint32(16), inv.Size())
	assert.Equal(t, 1, inv.Amount(18))
}
