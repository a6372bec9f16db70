package login

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/growbot-project/growbot/internal/protocol"
)

// Identity is the device fingerprint a bot presents. It is derived from a
// seed so the same account always looks like the same device.
type Identity struct {
	RID string
	Mac string
	WK  string
}

// NewIdentity derives an identity from seed. An empty seed gives a random one.
func NewIdentity(seed string) Identity {
	var id uuid.UUID
	if seed == "" {
		id = uuid.New()
	} else {
		id = uuid.NewSHA1(uuid.NameSpaceOID, []byte("growbot:"+seed))
	}

	macSrc := uuid.NewSHA1(id, []byte("mac"))
	mac := make([]string, 6)
	for i := range mac {
		b := macSrc[i]
		if i == 0 {
			// locally administered, unicast
			b = (b | 0x02) &^ 0x01
		}
		mac[i] = fmt.Sprintf("%02x", b)
	}

	wk := uuid.NewSHA1(id, []byte("wk"))
	return Identity{
		RID: strings.ToUpper(hex.EncodeToString(id[:])),
		Mac: strings.Join(mac, ":"),
		WK:  strings.ToUpper(hex.EncodeToString(wk[:])),
	}
}

// NewLoginInfo returns the stock login fields with the device identity of
// seed and the given country.
func NewLoginInfo(seed, country string) protocol.LoginInfo {
	info := protocol.DefaultLoginInfo()
	ident := NewIdentity(seed)
	info.RID = ident.RID
	info.Mac = ident.Mac
	info.WK = ident.WK
	if country != "" {
		info.Country = strings.ToLower(country)
	}
	return info
}
