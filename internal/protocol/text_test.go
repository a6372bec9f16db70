package protocol

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitTokens(t *testing.T) {
	assert.Equal(t, []string{"1.2.3.4", "77", "uuid-abc"}, SplitTokens("1.2.3.4|77|uuid-abc"))
	assert.Equal(t, []string{"host"}, SplitTokens("host"))
	assert.Equal(t, []string{"a", "", "c"}, SplitTokens("a||c\x00"))
}

func TestTextPacket(t *testing.T) {
	pkt := ParseTextPacket("action|log\nmsg|hello|world\n\nflag\x00")

	v, ok := pkt.Get("msg")
	assert.True(t, ok)
	assert.Equal(t, "hello|world", v)

	v, ok = pkt.Get("flag")
	assert.True(t, ok)
	assert.Empty(t, v)

	_, ok = pkt.Get("missing")
	assert.False(t, ok)

	assert.Equal(t, "action|log\nmsg|hello|world\nflag|\n", pkt.String())
}

func TestInitialLoginLine(t *testing.T) {
	assert.Equal(t, "protocol|209\nltoken|abc\nplatformID|0,1,1\n", InitialLoginLine("abc"))
}

func TestRedirectLoginLine(t *testing.T) {
	info := DefaultLoginInfo()
	info.UUID = "uuid-abc"
	info.Token = "123"
	info.User = "456"
	info.DoorID = "77"

	line := RedirectLoginLine(info)
	assert.True(t, strings.HasSuffix(line, "\n"))

	keys := []string{
		"UUIDToken", "protocol", "fhash", "mac", "requestedName", "hash2", "fz", "f",
		"player_age", "game_version", "lmode", "cbits", "rid", "GDPR", "hash",
		"category", "token", "total_playtime", "door_id", "klv", "meta",
		"platformID", "deviceVersion", "zf", "country", "user", "wk",
	}
	fields := ParseTextPacket(line).Fields()
	if assert.Len(t, fields, len(keys)) {
		for i, key := range keys {
			assert.Equal(t, key, fields[i].Key)
		}
	}

	assert.True(t, strings.HasPrefix(line, "UUIDToken|uuid-abc\nprotocol|209\n"))
	assert.Contains(t, line, "\ntoken|123\n")
	assert.Contains(t, line, "\ndoor_id|77\n")
	assert.Contains(t, line, "\nuser|456\n")
	assert.Contains(t, line, "\ngame_version|4.62\n")
}
