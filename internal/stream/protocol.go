// Package stream publishes live engine state to a single viewer over a
// WebSocket connection.
//
// Every message is a binary WebSocket frame holding a fixed 12-byte header
// followed by a JSON payload. The header carries a magic, a protocol
// revision, and the message kind so producers and consumers stay
// interoperable across versions.
package stream

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
)

// HeaderMagic prefixes every framed message.
var HeaderMagic = [4]byte{'G', 'R', 'I', 'M'}

// ProtocolVersion is the protocol revision understood by this package.
const ProtocolVersion uint16 = 0x0001

// HeaderLen is the length of the binary header in bytes.
const HeaderLen = 4 + 2 + 2 + 4

// MessageKind identifies the payload type of a framed message.
type MessageKind uint16

const (
	KindHello        MessageKind = 0x0001
	KindStreamConfig MessageKind = 0x0002
	KindFrame        MessageKind = 0x0003
	KindTelemetry    MessageKind = 0x0004
	KindStateUpdate  MessageKind = 0x0005
	KindTimelineMark MessageKind = 0x0006
	KindControl      MessageKind = 0x0007
	KindHeartbeat    MessageKind = 0x0008
	KindMovieStart   MessageKind = 0x0009
	KindMovieControl MessageKind = 0x000A
)

var (
	// ErrTruncatedHeader reports a header shorter than HeaderLen bytes.
	ErrTruncatedHeader = errors.New("header truncated")
	// ErrBadMagic reports a header that does not start with HeaderMagic.
	ErrBadMagic = errors.New("header magic mismatch")
)

// UnknownKindError reports a message kind this revision does not know.
type UnknownKindError uint16

func (e UnknownKindError) Error() string {
	return fmt.Sprintf("message kind %#06x is unknown", uint16(e))
}

// LengthMismatchError reports a payload whose size disagrees with its header.
type LengthMismatchError struct {
	Expected uint32
	Actual   int
}

func (e LengthMismatchError) Error() string {
	return fmt.Sprintf("payload length mismatch: header declared %d bytes but read %d", e.Expected, e.Actual)
}

func knownKind(raw uint16) bool {
	return raw >= uint16(KindHello) && raw <= uint16(KindMovieControl)
}

// MessageHeader is the envelope describing the upcoming payload.
type MessageHeader struct {
	Version uint16
	Kind    MessageKind
	Length  uint32
}

// Encode renders the header as big-endian bytes.
func (h MessageHeader) Encode() [HeaderLen]byte {
	var out [HeaderLen]byte
	copy(out[:4], HeaderMagic[:])
	binary.BigEndian.PutUint16(out[4:6], h.Version)
	binary.BigEndian.PutUint16(out[6:8], uint16(h.Kind))
	binary.BigEndian.PutUint32(out[8:12], h.Length)
	return out
}

// DecodeHeader parses a header from raw bytes.
func DecodeHeader(input []byte) (MessageHeader, error) {
	if len(input) < HeaderLen {
		return MessageHeader{}, ErrTruncatedHeader
	}
	if [4]byte(input[:4]) != HeaderMagic {
		return MessageHeader{}, ErrBadMagic
	}
	raw := binary.BigEndian.Uint16(input[6:8])
	if !knownKind(raw) {
		return MessageHeader{}, UnknownKindError(raw)
	}
	return MessageHeader{
		Version: binary.BigEndian.Uint16(input[4:6]),
		Kind:    MessageKind(raw),
		Length:  binary.BigEndian.Uint32(input[8:12]),
	}, nil
}

// EncodeMessage wraps a payload with framing suitable for the wire.
func EncodeMessage(kind MessageKind, payload any) ([]byte, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %#06x payload: %w", uint16(kind), err)
	}
	header := MessageHeader{
		Version: ProtocolVersion,
		Kind:    kind,
		Length:  uint32(len(payloadBytes)),
	}
	out := make([]byte, 0, HeaderLen+len(payloadBytes))
	headerBytes := header.Encode()
	out = append(out, headerBytes[:]...)
	out = append(out, payloadBytes...)
	return out, nil
}

// DecodeEnvelope splits a framed message into header and payload bytes.
func DecodeEnvelope(message []byte) (MessageHeader, []byte, error) {
	header, err := DecodeHeader(message)
	if err != nil {
		return MessageHeader{}, nil, err
	}
	payload := message[HeaderLen:]
	if len(payload) != int(header.Length) {
		return MessageHeader{}, nil, LengthMismatchError{Expected: header.Length, Actual: len(payload)}
	}
	return header, payload, nil
}

// DecodePayload parses a payload straight into the requested type.
func DecodePayload(payload []byte, out any) error {
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
