package sequencer

import (
	"github.com/rigsofrods/relay-sequencer/internal/relay"
	"github.com/rigsofrods/relay-sequencer/internal/wire"
)

// userInfoPayload encodes the {slot, color, nickname, authFlags} tuple
// carried by USER_JOIN and USER_INFO frames.
func userInfoPayload(c *client) []byte {
	buf := make([]byte, 4+4+wire.NicknameFieldSize+1)
	wire.PutUint32LE(buf[0:4], uint32(c.slot))
	wire.PutUint32LE(buf[4:8], uint32(c.color))
	wire.PutFixedString(buf[8:8+wire.NicknameFieldSize], c.nickname)
	buf[8+wire.NicknameFieldSize] = byte(c.authFlags)
	return buf
}

// streamRegisterPayload encodes a stream registration record for
// replay during the vehicle-announce burst.
func streamRegisterPayload(reg relay.StreamRegistration) []byte {
	buf := make([]byte, 1+relay.MaxStreamName+4)
	buf[0] = byte(reg.Type)
	wire.PutFixedString(buf[1:1+relay.MaxStreamName], reg.Name)
	wire.PutUint32LE(buf[1+relay.MaxStreamName:], reg.Status)
	return buf
}

// parseStreamRegister decodes an inbound STREAM_REGISTER payload.
func parseStreamRegister(payload []byte) (relay.StreamRegistration, bool) {
	if len(payload) < 1+relay.MaxStreamName+4 {
		return relay.StreamRegistration{}, false
	}
	return relay.StreamRegistration{
		Type:   relay.StreamType(payload[0]),
		Name:   relay.SanitizeName(wire.FixedString(payload[1 : 1+relay.MaxStreamName])),
		Status: wire.Uint32LE(payload[1+relay.MaxStreamName:]),
	}, true
}

// serverChatPayload encodes a server-origin CHAT frame's payload: a
// one-byte type selector (0 = "SERVER: " prefix, 1 = unprefixed, used
// for MOTD lines) followed by the literal text.
func serverChatPayload(chatType byte, text string) []byte {
	buf := make([]byte, 1+len(text))
	buf[0] = chatType
	copy(buf[1:], text)
	return buf
}

// oobPrefixSize is the size of the out-of-band header VEHICLE_DATA
// payloads carry before the position floats. The shared protocol
// header that defines this struct was not part of the retrieved
// reference material; 8 bytes (a timestamp-sized field) is assumed.
const oobPrefixSize = 8

// parseVehiclePosition extracts the sender's position from a
// VEHICLE_DATA payload, if long enough to hold the prefix and three
// floats.
func parseVehiclePosition(payload []byte) ([3]float32, bool) {
	const need = oobPrefixSize + 12
	if len(payload) < need {
		return [3]float32{}, false
	}
	var pos [3]float32
	pos[0] = wire.Float32LE(payload[oobPrefixSize:])
	pos[1] = wire.Float32LE(payload[oobPrefixSize+4:])
	pos[2] = wire.Float32LE(payload[oobPrefixSize+8:])
	return pos, true
}
