// internal/mqtt/packet.go
package mqtt

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// PacketType is the MQTT 3.1.1 control packet type.
type PacketType uint8

const (
	Connect     PacketType = 1
	Connack     PacketType = 2
	Publish     PacketType = 3
	Puback      PacketType = 4
	Pubrec      PacketType = 5
	Pubrel      PacketType = 6
	Pubcomp     PacketType = 7
	Subscribe   PacketType = 8
	Suback      PacketType = 9
	Unsubscribe PacketType = 10
	Unsuback    PacketType = 11
	Pingreq     PacketType = 12
	Pingresp    PacketType = 13
	Disconnect  PacketType = 14
)

var packetNames = map[PacketType]string{
	Connect:     "CONNECT",
	Connack:     "CONNACK",
	Publish:     "PUBLISH",
	Puback:      "PUBACK",
	Pubrec:      "PUBREC",
	Pubrel:      "PUBREL",
	Pubcomp:     "PUBCOMP",
	Subscribe:   "SUBSCRIBE",
	Suback:      "SUBACK",
	Unsubscribe: "UNSUBSCRIBE",
	Unsuback:    "UNSUBACK",
	Pingreq:     "PINGREQ",
	Pingresp:    "PINGRESP",
	Disconnect:  "DISCONNECT",
}

func (t PacketType) String() string {
	if s, ok := packetNames[t]; ok {
		return s
	}
	return fmt.Sprintf("RESERVED(%d)", uint8(t))
}

// MaxRemaining is the largest remaining length this codec handles.
// Only the single-byte form of the variable length is supported.
const MaxRemaining = 127

// Codec errors.
var (
	ErrRemainingLength = errors.New("mqtt: remaining length exceeds single byte")
	ErrIncomplete      = errors.New("mqtt: incomplete packet")
	ErrMalformed       = errors.New("mqtt: malformed packet")
)

// DefaultKeepAlive is the keepalive advertised in CONNECT, in seconds.
const DefaultKeepAlive uint16 = 60

// Packet is a decoded inbound packet. Only the fields of its type are set.
type Packet struct {
	Type  PacketType
	Flags byte

	// CONNACK
	SessionPresent bool
	ReturnCode     byte

	// PUBLISH
	QoS     byte
	Retain  bool
	Topic   string
	Payload []byte

	// PUBLISH (QoS > 0), PUBACK.., SUBACK, UNSUBACK
	PacketID uint16

	// SUBACK
	Granted []byte
}

// ---- encoders ----

// EncodeConnect builds a clean-session CONNECT:
//
//	10 rl 00 04 'M' 'Q' 'T' 'T' 04 02 ka ka idlen idlen id...
func EncodeConnect(clientID string, keepAlive uint16) ([]byte, error) {
	rem := 10 + 2 + len(clientID)
	b, err := header(Connect, 0, rem)
	if err != nil {
		return nil, err
	}
	b = appendString(b, "MQTT")
	b = append(b, 0x04, 0x02) // level 4, clean session
	b = binary.BigEndian.AppendUint16(b, keepAlive)
	b = appendString(b, clientID)
	return b, nil
}

// EncodePublish builds a QoS 0 PUBLISH.
func EncodePublish(topic string, payload []byte) ([]byte, error) {
	rem := 2 + len(topic) + len(payload)
	b, err := header(Publish, 0, rem)
	if err != nil {
		return nil, err
	}
	b = appendString(b, topic)
	b = append(b, payload...)
	return b, nil
}

// EncodeSubscribe builds a SUBSCRIBE for one topic at QoS 0.
func EncodeSubscribe(id uint16, topic string) ([]byte, error) {
	rem := 2 + 2 + len(topic) + 1
	b, err := header(Subscribe, 0x02, rem)
	if err != nil {
		return nil, err
	}
	b = binary.BigEndian.AppendUint16(b, id)
	b = appendString(b, topic)
	b = append(b, 0x00)
	return b, nil
}

// EncodeUnsubscribe builds an UNSUBSCRIBE for one topic.
func EncodeUnsubscribe(id uint16, topic string) ([]byte, error) {
	rem := 2 + 2 + len(topic)
	b, err := header(Unsubscribe, 0x02, rem)
	if err != nil {
		return nil, err
	}
	b = binary.BigEndian.AppendUint16(b, id)
	b = appendString(b, topic)
	return b, nil
}

func EncodePingreq() []byte    { return []byte{byte(Pingreq) << 4, 0x00} }
func EncodeDisconnect() []byte { return []byte{byte(Disconnect) << 4, 0x00} }

func header(t PacketType, flags byte, rem int) ([]byte, error) {
	if rem > MaxRemaining {
		return nil, fmt.Errorf("%w: %s needs %d bytes", ErrRemainingLength, t, rem)
	}
	b := make([]byte, 0, 2+rem)
	return append(b, byte(t)<<4|flags&0x0F, byte(rem)), nil
}

func appendString(b []byte, s string) []byte {
	b = binary.BigEndian.AppendUint16(b, uint16(len(s)))
	return append(b, s...)
}

// ---- decoder ----

// Decode reads one packet from the front of buf and returns it with
// the number of bytes it occupies.
//
// ErrIncomplete: wait for more bytes, nothing consumed.
// ErrRemainingLength: the stream cannot be framed any further.
// ErrMalformed: the packet is skipped (consumed is still valid).
func Decode(buf []byte) (Packet, int, error) {
	if len(buf) < 2 {
		return Packet{}, 0, ErrIncomplete
	}
	if buf[1]&0x80 != 0 {
		return Packet{}, 0, ErrRemainingLength
	}

	rem := int(buf[1])
	total := 2 + rem
	if len(buf) < total {
		return Packet{}, 0, ErrIncomplete
	}

	p := Packet{
		Type:  PacketType(buf[0] >> 4),
		Flags: buf[0] & 0x0F,
	}
	body := buf[2:total]

	switch p.Type {
	case Connack:
		if rem != 2 {
			return p, total, fmt.Errorf("%w: CONNACK length %d", ErrMalformed, rem)
		}
		p.SessionPresent = body[0]&0x01 != 0
		p.ReturnCode = body[1]

	case Publish:
		p.QoS = (p.Flags >> 1) & 0x03
		p.Retain = p.Flags&0x01 != 0
		if rem < 2 {
			return p, total, fmt.Errorf("%w: PUBLISH too short", ErrMalformed)
		}
		tl := int(binary.BigEndian.Uint16(body[0:2]))
		off := 2 + tl
		if off > rem {
			return p, total, fmt.Errorf("%w: PUBLISH topic length %d", ErrMalformed, tl)
		}
		p.Topic = string(body[2:off])
		if p.QoS > 0 {
			if off+2 > rem {
				return p, total, fmt.Errorf("%w: PUBLISH packet id", ErrMalformed)
			}
			p.PacketID = binary.BigEndian.Uint16(body[off : off+2])
			off += 2
		}
		p.Payload = append([]byte(nil), body[off:]...)

	case Puback, Pubrec, Pubrel, Pubcomp, Unsuback:
		if rem < 2 {
			return p, total, fmt.Errorf("%w: %s length %d", ErrMalformed, p.Type, rem)
		}
		p.PacketID = binary.BigEndian.Uint16(body[0:2])

	case Suback:
		if rem < 3 {
			return p, total, fmt.Errorf("%w: SUBACK length %d", ErrMalformed, rem)
		}
		p.PacketID = binary.BigEndian.Uint16(body[0:2])
		p.Granted = append([]byte(nil), body[2:]...)

	case Connect, Subscribe, Unsubscribe, Pingreq, Pingresp, Disconnect:
		// nothing a client needs from the body

	default:
		return p, total, fmt.Errorf("%w: type %d", ErrMalformed, uint8(p.Type))
	}

	return p, total, nil
}
