package protocol

import "fmt"

// ProtocolVersion is the client protocol number announced at login.
const ProtocolVersion = 209

// DefaultPlatformID identifies a Windows client.
const DefaultPlatformID = "0,1,1"

// LoginInfo holds every field of the login line sent after a redirect.
// Values are sent verbatim; the server compares them against the ones it
// issued, so nothing here is reformatted.
type LoginInfo struct {
	UUID          string `json:"uuid"`
	Protocol      string `json:"protocol"`
	FHash         string `json:"fhash"`
	Mac           string `json:"mac"`
	RequestedName string `json:"requested_name"`
	Hash2         string `json:"hash2"`
	FZ            string `json:"fz"`
	F             string `json:"f"`
	PlayerAge     string `json:"player_age"`
	GameVersion   string `json:"game_version"`
	LMode         string `json:"lmode"`
	CBits         string `json:"cbits"`
	RID           string `json:"rid"`
	GDPR          string `json:"gdpr"`
	Hash          string `json:"hash"`
	Category      string `json:"category"`
	Token         string `json:"token"`
	TotalPlaytime string `json:"total_playtime"`
	DoorID        string `json:"door_id"`
	KLV           string `json:"klv"`
	Meta          string `json:"meta"`
	PlatformID    string `json:"platform_id"`
	DeviceVersion string `json:"device_version"`
	ZF            string `json:"zf"`
	Country       string `json:"country"`
	User          string `json:"user"`
	WK            string `json:"wk"`
}

// DefaultLoginInfo returns the constant fields a stock client sends.
// Device identifiers (rid, mac, wk) are left at the stock values and are
// normally replaced per bot.
func DefaultLoginInfo() LoginInfo {
	return LoginInfo{
		Protocol:      fmt.Sprint(ProtocolVersion),
		FHash:         "-716928004",
		Mac:           "b4:8c:9d:90:79:cf",
		Hash2:         "841545814",
		FZ:            "46297624",
		F:             "1",
		PlayerAge:     "25",
		GameVersion:   "4.62",
		LMode:         "0",
		CBits:         "1024",
		RID:           "020F3BE731F0CF30002CA0AB1843B2A1",
		GDPR:          "1",
		Hash:          "-1829975549",
		Category:      "_-5100",
		TotalPlaytime: "0",
		KLV:           "461a6affd0aac154c25c9e867c789ef8c7b5017bbe723d1f86a578ff325b97fe",
		Meta:          "+NlguMhpl2JQ1iP7kyp2Z8W8n9OKDNn57/xI5jJp7/g=",
		PlatformID:    DefaultPlatformID,
		DeviceVersion: "0",
		ZF:            "1390211647",
		Country:       "us",
		WK:            "66A6ABCD9753A066E39975DED77852A8",
	}
}

// InitialLoginLine is sent in reply to the first server hello.
func InitialLoginLine(token string) string {
	return NewTextPacketFrom(
		Field{"protocol", fmt.Sprint(ProtocolVersion)},
		Field{"ltoken", token},
		Field{"platformID", DefaultPlatformID},
	).String()
}

// RedirectLoginLine is sent in reply to the server hello of a redirect
// target. Field order is fixed.
func RedirectLoginLine(info LoginInfo) string {
	return NewTextPacketFrom(
		Field{"UUIDToken", info.UUID},
		Field{"protocol", info.Protocol},
		Field{"fhash", info.FHash},
		Field{"mac", info.Mac},
		Field{"requestedName", info.RequestedName},
		Field{"hash2", info.Hash2},
		Field{"fz", info.FZ},
		Field{"f", info.F},
		Field{"player_age", info.PlayerAge},
		Field{"game_version", info.GameVersion},
		Field{"lmode", info.LMode},
		Field{"cbits", info.CBits},
		Field{"rid", info.RID},
		Field{"GDPR", info.GDPR},
		Field{"hash", info.Hash},
		Field{"category", info.Category},
		Field{"token", info.Token},
		Field{"total_playtime", info.TotalPlaytime},
		Field{"door_id", info.DoorID},
		Field{"klv", info.KLV},
		Field{"meta", info.Meta},
		Field{"platformID", info.PlatformID},
		Field{"deviceVersion", info.DeviceVersion},
		Field{"zf", info.ZF},
		Field{"country", info.Country},
		Field{"user", info.User},
		Field{"wk", info.WK},
	).String()
}

// NewTextPacketFrom builds a text packet from fields in order.
func NewTextPacketFrom(fields ...Field) *TextPacket {
	return &TextPacket{fields: fields}
}
