package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/growbot-project/growbot/internal/protocol"
	"github.com/growbot-project/growbot/internal/session"
)

func mapData(name string, width, height uint32) []byte {
	b := protocol.NewPacketBuilder()
	b.WriteUint16(0x14)
	b.WriteUint32(0x40)
	b.WriteUint16(uint16(len(name))).WriteBytes([]byte(name))
	b.WriteUint32(width).WriteUint32(height).WriteUint32(width * height)
	b.WriteBytes([]byte{0, 0, 0, 0}) // first tile, ignored
	return b.Build()
}

func TestApplyMapData(t *testing.T) {
	w := New()
	_, ok := w.Header()
	assert.False(t, ok)

	require.NoError(t, w.ApplyMapData(mapData("START", 100, 60)))
	h, ok := w.Header()
	require.True(t, ok)
	assert.Equal(t, "START", h.Name)
	assert.Equal(t, uint32(100), h.Width)
	assert.Equal(t, uint32(60), h.Height)
	assert.Equal(t, uint32(6000), h.TileCount)
	assert.Equal(t, 1, w.Updates())
}

func TestApplyMapDataKeepsPreviousOnError(t *testing.T) {
	w := New()
	require.NoError(t, w.ApplyMapData(mapData("START", 10, 10)))

	data := mapData("OTHER", 10, 10)
	err := w.ApplyMapData(data[:9])
	require.Error(t, err)
	assert.True(t, protocol.IsDecodeError(err))

	err = w.ApplyMapData(mapData("HUGE", 100000, 100000))
	require.Error(t, err)

	h, _ := w.Header()
	assert.Equal(t, "START", h.Name)
}

func TestNavigatorFollowsMapLoads(t *testing.T) {
	w := New()
	n := NewNavigator(w)
	s := session.New("tok", protocol.DefaultLoginInfo())

	require.NoError(t, w.ApplyMapData(mapData("START", 100, 60)))
	n.Update(s)
	width, height := n.Size()
	assert.Equal(t, 100, width)
	assert.Equal(t, 60, height)

	require.NoError(t, w.ApplyMapData(mapData("TINY", 3, 2)))
	n.Update(s)
	width, height = n.Size()
	assert.Equal(t, 3, width)
	assert.Equal(t, 2, height)
}

func TestNavigatorWithoutWorld(t *testing.T) {
	n := NewNavigator(New())
	n.Update(session.New("tok", protocol.DefaultLoginInfo()))
	width, height := n.Size()
	assert.Zero(t, width)
	assert.Zero(t, height)
}
