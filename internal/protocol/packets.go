// Package protocol implements the binary codecs spoken between a growbot
// client and a game server: the outer message envelope, the fixed-layout
// tank packet, variant call payloads and the key|value text lines used
// during login. All integers and floats are little-endian.
package protocol

import "fmt"

// MessageType is the 4-byte tag that prefixes every message on the wire.
type MessageType uint32

// Outer message types.
const (
	MsgUnknown           MessageType = 0
	MsgServerHello       MessageType = 1 // Server is ready for the login line
	MsgGenericText       MessageType = 2 // key|value text
	MsgGameMessage       MessageType = 3 // action|... text, carries logon_fail / ban notices
	MsgGamePacket        MessageType = 4 // Tank packet
	MsgError             MessageType = 5
	MsgTrack             MessageType = 6 // Analytics tracking text
	MsgClientLogRequest  MessageType = 7
	MsgClientLogResponse MessageType = 8
	MsgMax               MessageType = 9
)

var messageTypeNames = map[MessageType]string{
	MsgUnknown:           "unknown",
	MsgServerHello:       "server_hello",
	MsgGenericText:       "generic_text",
	MsgGameMessage:       "game_message",
	MsgGamePacket:        "game_packet",
	MsgError:             "error",
	MsgTrack:             "track",
	MsgClientLogRequest:  "client_log_request",
	MsgClientLogResponse: "client_log_response",
	MsgMax:               "max",
}

func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("message_type(%d)", uint32(t))
}

// TankPacketType is the first byte of a tank packet header.
type TankPacketType uint8

// Tank packet types.
const (
	PktState                      TankPacketType = 0
	PktCallFunction               TankPacketType = 1 // Variant call payload
	PktUpdateStatus               TankPacketType = 2
	PktTileChangeRequest          TankPacketType = 3
	PktSendMapData                TankPacketType = 4
	PktSendTileUpdateData         TankPacketType = 5
	PktSendTileUpdateDataMultiple TankPacketType = 6
	PktTileActivateRequest        TankPacketType = 7
	PktTileApplyDamage            TankPacketType = 8
	PktSendInventoryState         TankPacketType = 9
	PktItemActivateRequest        TankPacketType = 10
	PktItemActivateObjectRequest  TankPacketType = 11
	PktSendTileTreeState          TankPacketType = 12
	PktModifyItemInventory        TankPacketType = 13
	PktItemChangeObject           TankPacketType = 14
	PktSendLock                   TankPacketType = 15
	PktSendItemDatabaseData       TankPacketType = 16
	PktSendParticleEffect         TankPacketType = 17
	PktSetIconState               TankPacketType = 18
	PktItemEffect                 TankPacketType = 19
	PktSetCharacterState          TankPacketType = 20
	PktPingReply                  TankPacketType = 21
	PktPingRequest                TankPacketType = 22
	PktGotPunched                 TankPacketType = 23
	PktAppCheckResponse           TankPacketType = 24
	PktAppIntegrityFail           TankPacketType = 25
	PktDisconnect                 TankPacketType = 26
	PktBattleJoin                 TankPacketType = 27
	PktBattleEvent                TankPacketType = 28
	PktUseDoor                    TankPacketType = 29
	PktSendParental               TankPacketType = 30
	PktGoneFishin                 TankPacketType = 31
	PktSteam                      TankPacketType = 32
	PktPetBattle                  TankPacketType = 33
	PktNpc                        TankPacketType = 34
	PktSpecial                    TankPacketType = 35
	PktSendParticleEffectV2       TankPacketType = 36
	PktActivateArrowToItem        TankPacketType = 37
	PktSelectTileIndex            TankPacketType = 38
	PktSendPlayerTributeData      TankPacketType = 39
)

var tankPacketTypeNames = [...]string{
	"state", "call_function", "update_status", "tile_change_request",
	"send_map_data", "send_tile_update_data", "send_tile_update_data_multiple",
	"tile_activate_request", "tile_apply_damage", "send_inventory_state",
	"item_activate_request", "item_activate_object_request", "send_tile_tree_state",
	"modify_item_inventory", "item_change_object", "send_lock",
	"send_item_database_data", "send_particle_effect", "set_icon_state",
	"item_effect", "set_character_state", "ping_reply", "ping_request",
	"got_punched", "app_check_response", "app_integrity_fail", "disconnect",
	"battle_join", "battle_event", "use_door", "send_parental", "gone_fishin",
	"steam", "pet_battle", "npc", "special", "send_particle_effect_v2",
	"activate_arrow_to_item", "select_tile_index", "send_player_tribute_data",
}

func (t TankPacketType) String() string {
	if int(t) < len(tankPacketTypeNames) {
		return tankPacketTypeNames[t]
	}
	return fmt.Sprintf("tank_packet_type(%d)", uint8(t))
}

// Size constants.
const (
	MessageTypeSize = 4
	TankHeaderSize  = 56

	// MaxPacketSize caps any single message accepted from a peer.
	MaxPacketSize = 1 << 20
)
