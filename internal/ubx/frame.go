// Package ubx implements the u-blox UBX binary receiver protocol: frame
// encode/decode, the message identity catalog, and configuration polls.
//
// A frame is:
//
//	0xB5 0x62 | class | id | length (LE uint16) | payload | ckA ckB
//
// with the two checksum bytes computed over class..payload using the
// 8-bit Fletcher algorithm from the u-blox interface description.
//
// The decoder returns raw integer field values at fixed little-endian
// widths; unit scaling is applied by callers.
package ubx

import "fmt"

const (
	sync1 = 0xB5
	sync2 = 0x62

	headerLen   = 6
	checksumLen = 2

	// MaxPayloadLen bounds how much payload the stream scanner will
	// accept before treating the length field as corrupt and resyncing.
	MaxPayloadLen = 2048
)

// FramingError reports a frame that could not be accepted: bad sync
// marker, length/checksum mismatch, or (in strict mode) an unregistered
// class/id pair. The frame is dropped; no state may be derived from it.
type FramingError struct {
	Reason string
}

func (e *FramingError) Error() string {
	return "ubx: " + e.Reason
}

func framingErrorf(format string, args ...interface{}) error {
	return &FramingError{Reason: fmt.Sprintf(format, args...)}
}

// Message is a validated, identified UBX message.
type Message struct {
	Identity Identity
	Class    byte
	ID       byte
	Payload  Payload
}

// String renders the message for console display.
func (m Message) String() string {
	return fmt.Sprintf("<UBX(%s, class=0x%02X, id=0x%02X, len=%d, payload=% x)>",
		m.Identity, m.Class, m.ID, len(m.Payload), []byte(m.Payload))
}

// checksum computes the 8-bit Fletcher checksum over b.
func checksum(b []byte) (ckA, ckB byte) {
	for _, c := range b {
		ckA += c
		ckB += ckA
	}
	return ckA, ckB
}

// Encode builds a complete frame around class/id/payload. A nil payload
// produces a zero-length frame, which is the poll form of a message.
func Encode(class, id byte, payload []byte) []byte {
	out := make([]byte, headerLen+len(payload)+checksumLen)
	out[0] = sync1
	out[1] = sync2
	out[2] = class
	out[3] = id
	out[4] = byte(len(payload))
	out[5] = byte(len(payload) >> 8)
	copy(out[headerLen:], payload)
	ckA, ckB := checksum(out[2 : headerLen+len(payload)])
	out[headerLen+len(payload)] = ckA
	out[headerLen+len(payload)+1] = ckB
	return out
}

// Parse validates framing and checksum and resolves the class/id pair
// against the identity catalog.
//
// In strict mode an unregistered class/id is a FramingError. In
// permissive mode the message is returned with IdentityUnknown so the
// caller can still echo it.
func Parse(data []byte, strict bool) (Message, error) {
	if len(data) < headerLen+checksumLen {
		return Message{}, framingErrorf("frame too short: %d bytes", len(data))
	}
	if data[0] != sync1 || data[1] != sync2 {
		return Message{}, framingErrorf("bad sync marker 0x%02X 0x%02X", data[0], data[1])
	}

	class := data[2]
	id := data[3]
	plen := int(data[4]) | int(data[5])<<8
	if len(data) != headerLen+plen+checksumLen {
		return Message{}, framingErrorf("length field %d does not match frame of %d bytes", plen, len(data))
	}

	ckA, ckB := checksum(data[2 : headerLen+plen])
	if ckA != data[headerLen+plen] || ckB != data[headerLen+plen+1] {
		return Message{}, framingErrorf("checksum mismatch: got 0x%02X%02X want 0x%02X%02X",
			data[headerLen+plen], data[headerLen+plen+1], ckA, ckB)
	}

	identity, ok := IdentityOf(class, id)
	if !ok {
		if strict {
			return Message{}, framingErrorf("unknown class/id 0x%02X 0x%02X", class, id)
		}
		identity = IdentityUnknown
	}

	payload := make(Payload, plen)
	copy(payload, data[headerLen:headerLen+plen])

	return Message{
		Identity: identity,
		Class:    class,
		ID:       id,
		Payload:  payload,
	}, nil
}
