// internal/mqtt/packet_test.go
package mqtt

import (
	"bytes"
	"strings"
	"testing"

	"github.com/mochi-mqtt/server/v2/packets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// decodeWithMochi parses b with an independent MQTT implementation.
func decodeWithMochi(t *testing.T, b []byte) packets.Packet {
	t.Helper()
	require.GreaterOrEqual(t, len(b), 2)

	var fh packets.FixedHeader
	require.NoError(t, fh.Decode(b[0]))
	fh.Remaining = int(b[1])
	require.Equal(t, len(b)-2, fh.Remaining)

	pk := packets.Packet{FixedHeader: fh, ProtocolVersion: 4}
	body := b[2:]

	var err error
	switch fh.Type {
	case packets.Connect:
		err = pk.ConnectDecode(body)
	case packets.Publish:
		err = pk.PublishDecode(body)
	case packets.Subscribe:
		err = pk.SubscribeDecode(body)
	case packets.Unsubscribe:
		err = pk.UnsubscribeDecode(body)
	}
	require.NoError(t, err)
	return pk
}

func TestPacketType_String(t *testing.T) {
	assert.Equal(t, "CONNECT", Connect.String())
	assert.Equal(t, "DISCONNECT", Disconnect.String())
	assert.Equal(t, "RESERVED(15)", PacketType(15).String())
}

func TestEncodeConnect_Template(t *testing.T) {
	b, err := EncodeConnect("", DefaultKeepAlive)
	require.NoError(t, err)
	assert.Equal(t, []byte{
		0x10, 0x0C, 0x00, 0x04, 'M', 'Q', 'T', 'T', 0x04, 0x02, 0x00, 0x3C, 0x00, 0x00,
	}, b)
}

func TestEncodeConnect_ClientID(t *testing.T) {
	b, err := EncodeConnect("meter-1", 30)
	require.NoError(t, err)
	assert.Equal(t, byte(12+7), b[1])

	pk := decodeWithMochi(t, b)
	assert.Equal(t, packets.Connect, pk.FixedHeader.Type)
	assert.Equal(t, byte(4), pk.ProtocolVersion)
	assert.Equal(t, "meter-1", pk.Connect.ClientIdentifier)
	assert.Equal(t, uint16(30), pk.Connect.Keepalive)
	assert.True(t, pk.Connect.Clean)
}

func TestEncodeConnect_RemainingLimit(t *testing.T) {
	_, err := EncodeConnect(strings.Repeat("x", MaxRemaining-12), DefaultKeepAlive)
	assert.NoError(t, err)

	_, err = EncodeConnect(strings.Repeat("x", MaxRemaining-11), DefaultKeepAlive)
	assert.ErrorIs(t, err, ErrRemainingLength)
}

func TestEncodePublish(t *testing.T) {
	payload := []byte(`{"DDSU666H":{"v":"232.20","c":"1.50","ap":"345.00","rp":"0.00"}}`)
	b, err := EncodePublish("modbus2mqtt/set", payload)
	require.NoError(t, err)

	assert.Equal(t, byte(0x30), b[0])
	assert.Equal(t, byte(2+15+len(payload)), b[1])
	assert.Equal(t, []byte{0x00, 0x0F}, b[2:4])

	pk := decodeWithMochi(t, b)
	assert.Equal(t, "modbus2mqtt/set", pk.TopicName)
	assert.Equal(t, payload, pk.Payload)
	assert.Equal(t, byte(0), pk.FixedHeader.Qos)
}

func TestEncodePublish_RemainingLimit(t *testing.T) {
	topic := "t"
	fits := bytes.Repeat([]byte{'a'}, MaxRemaining-2-len(topic))

	b, err := EncodePublish(topic, fits)
	require.NoError(t, err)
	assert.Equal(t, byte(MaxRemaining), b[1])

	_, err = EncodePublish(topic, append(fits, 'a'))
	assert.ErrorIs(t, err, ErrRemainingLength)
}

func TestEncodeSubscribe(t *testing.T) {
	b, err := EncodeSubscribe(1, "a/b")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x82, 0x08, 0x00, 0x01, 0x00, 0x03, 'a', '/', 'b', 0x00}, b)

	pk := decodeWithMochi(t, b)
	assert.Equal(t, uint16(1), pk.PacketID)
	require.Len(t, pk.Filters, 1)
	assert.Equal(t, "a/b", pk.Filters[0].Filter)
	assert.Equal(t, byte(0), pk.Filters[0].Qos)
}

func TestEncodeUnsubscribe(t *testing.T) {
	b, err := EncodeUnsubscribe(2, "a/b")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xA2, 0x07, 0x00, 0x02, 0x00, 0x03, 'a', '/', 'b'}, b)

	pk := decodeWithMochi(t, b)
	assert.Equal(t, uint16(2), pk.PacketID)
	require.Len(t, pk.Filters, 1)
	assert.Equal(t, "a/b", pk.Filters[0].Filter)
}

func TestEncodeFixedPackets(t *testing.T) {
	assert.Equal(t, []byte{0xC0, 0x00}, EncodePingreq())
	assert.Equal(t, []byte{0xE0, 0x00}, EncodeDisconnect())
}

func TestDecode_Connack(t *testing.T) {
	p, n, err := Decode([]byte{0x20, 0x02, 0x00, 0x00})
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, Connack, p.Type)
	assert.False(t, p.SessionPresent)
	assert.Equal(t, byte(0), p.ReturnCode)

	p, _, err = Decode([]byte{0x20, 0x02, 0x01, 0x05})
	require.NoError(t, err)
	assert.True(t, p.SessionPresent)
	assert.Equal(t, byte(5), p.ReturnCode)
}

func TestDecode_MochiEncoded(t *testing.T) {
	var buf bytes.Buffer

	connack := packets.Packet{
		FixedHeader:     packets.FixedHeader{Type: packets.Connack},
		ProtocolVersion: 4,
		ReasonCode:      packets.CodeSuccess.Code,
	}
	require.NoError(t, connack.ConnackEncode(&buf))

	suback := packets.Packet{
		FixedHeader:     packets.FixedHeader{Type: packets.Suback},
		ProtocolVersion: 4,
		PacketID:        1,
		ReasonCodes:     []byte{0x00},
	}
	require.NoError(t, suback.SubackEncode(&buf))

	pingresp := packets.Packet{FixedHeader: packets.FixedHeader{Type: packets.Pingresp}}
	require.NoError(t, pingresp.PingrespEncode(&buf))

	publish := packets.Packet{
		FixedHeader:     packets.FixedHeader{Type: packets.Publish},
		ProtocolVersion: 4,
		TopicName:       "modbus2mqtt/set",
		Payload:         []byte("hello"),
	}
	require.NoError(t, publish.PublishEncode(&buf))

	stream := buf.Bytes()
	var got []Packet
	for len(stream) > 0 {
		p, n, err := Decode(stream)
		require.NoError(t, err)
		got = append(got, p)
		stream = stream[n:]
	}

	require.Len(t, got, 4)
	assert.Equal(t, Connack, got[0].Type)
	assert.Equal(t, byte(0), got[0].ReturnCode)
	assert.Equal(t, Suback, got[1].Type)
	assert.Equal(t, uint16(1), got[1].PacketID)
	assert.Equal(t, []byte{0x00}, got[1].Granted)
	assert.Equal(t, Pingresp, got[2].Type)
	assert.Equal(t, Publish, got[3].Type)
	assert.Equal(t, "modbus2mqtt/set", got[3].Topic)
	assert.Equal(t, []byte("hello"), got[3].Payload)
}

func TestDecode_PublishQoS1(t *testing.T) {
	p, n, err := Decode([]byte{0x32, 0x09, 0x00, 0x03, 'a', '/', 'b', 0x00, 0x07, 'h', 'i'})
	require.NoError(t, err)
	assert.Equal(t, 11, n)
	assert.Equal(t, byte(1), p.QoS)
	assert.Equal(t, "a/b", p.Topic)
	assert.Equal(t, uint16(7), p.PacketID)
	assert.Equal(t, []byte("hi"), p.Payload)
}

func TestDecode_Incomplete(t *testing.T) {
	for _, b := range [][]byte{
		{},
		{0x20},
		{0x20, 0x02, 0x00},
	} {
		_, n, err := Decode(b)
		assert.ErrorIs(t, err, ErrIncomplete)
		assert.Equal(t, 0, n)
	}
}

func TestDecode_MultiByteLengthRejected(t *testing.T) {
	_, n, err := Decode([]byte{0x30, 0x80, 0x01})
	assert.ErrorIs(t, err, ErrRemainingLength)
	assert.Equal(t, 0, n)
}

func TestDecode_MalformedSkipped(t *testing.T) {
	_, n, err := Decode([]byte{0x00, 0x00, 0xD0, 0x00})
	assert.ErrorIs(t, err, ErrMalformed)
	assert.Equal(t, 2, n)

	_, n, err = Decode([]byte{0x20, 0x01, 0x00})
	assert.ErrorIs(t, err, ErrMalformed)
	assert.Equal(t, 3, n)

	// topic longer than the packet
	_, _, err = Decode([]byte{0x30, 0x03, 0x00, 0x09, 'a'})
	assert.ErrorIs(t, err, ErrMalformed)
}
