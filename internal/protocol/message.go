package protocol

import (
	"bytes"
	"encoding/binary"
)

// ParseMessage splits a raw transport message into its outer type and body.
// The body aliases data.
func ParseMessage(data []byte) (MessageType, []byte, error) {
	if len(data) < MessageTypeSize {
		return MsgUnknown, nil, &DecodeError{Op: "message", Need: MessageTypeSize, Have: len(data)}
	}
	if len(data) > MaxPacketSize {
		return MsgUnknown, nil, &DecodeError{Op: "message", Reason: "message exceeds maximum size"}
	}
	return MessageType(binary.LittleEndian.Uint32(data)), data[MessageTypeSize:], nil
}

// BuildMessage prefixes body with the outer message type.
func BuildMessage(t MessageType, body []byte) []byte {
	return WithCapacity(4 + len(body)).WriteUint32(uint32(t)).WriteBytes(body).Build()
}

// BuildTextMessage builds a text message. The server expects a trailing NUL.
func BuildTextMessage(t MessageType, text string) []byte {
	return WithCapacity(5 + len(text)).WriteUint32(uint32(t)).WriteNullString(text).Build()
}

// MessageText returns a text body with trailing NUL padding removed.
func MessageText(body []byte) string {
	return string(bytes.TrimRight(body, "\x00"))
}
