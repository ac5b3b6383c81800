package pipewire

import (
	"encoding/binary"
	"fmt"
)

// Well-known object ids. The core and client proxies exist from the moment a
// connection is opened; every other id is allocated by the client.
const (
	CoreID   uint32 = 0
	ClientID uint32 = 1

	firstDynamicID uint32 = 2
)

// protocolVersion is the native protocol version sent in Hello.
const protocolVersion = 3

// registryVersion is the registry interface version requested from the core.
const registryVersion = 3

// Core methods (client → server).
const (
	coreMethodAddListener  uint8 = 0
	coreMethodHello        uint8 = 1
	coreMethodSync         uint8 = 2
	coreMethodPong         uint8 = 3
	coreMethodError        uint8 = 4
	coreMethodGetRegistry  uint8 = 5
	coreMethodCreateObject uint8 = 6
	coreMethodDestroy      uint8 = 7
)

// Core events (server → client).
const (
	coreEventInfo       uint8 = 0
	coreEventDone       uint8 = 1
	coreEventPing       uint8 = 2
	coreEventError      uint8 = 3
	coreEventRemoveID   uint8 = 4
	coreEventBoundID    uint8 = 5
	coreEventAddMem     uint8 = 6
	coreEventRemoveMem  uint8 = 7
	coreEventBoundProps uint8 = 8
)

// Client methods.
const (
	clientMethodUpdateProperties uint8 = 2
)

// Registry events.
const (
	registryEventGlobal       uint8 = 0
	registryEventGlobalRemove uint8 = 1
)

// Message framing.
const (
	// headerSize is id(4) + opcode/size(4) + seq(4) + n_fds(4).
	headerSize = 16

	// maxPayloadSize is the largest payload the size field can express.
	maxPayloadSize = 0x00ffffff

	// maxBufferedPayload bounds what the reader will buffer for one message.
	maxBufferedPayload = 4 << 20
)

// message is one framed protocol message.
type message struct {
	id     uint32
	opcode uint8
	seq    uint32
	nfds   uint32
	body   []byte
}

// encodeMessage frames body for the given object and opcode.
func encodeMessage(id uint32, opcode uint8, seq uint32, body []byte) ([]byte, error) {
	if len(body) > maxPayloadSize {
		return nil, fmt.Errorf("%w: payload of %d bytes exceeds frame limit", ErrProtocol, len(body))
	}
	buf := make([]byte, headerSize, headerSize+len(body))
	binary.NativeEndian.PutUint32(buf[0:4], id)
	binary.NativeEndian.PutUint32(buf[4:8], uint32(opcode)<<24|uint32(len(body))) //nolint:gosec // checked above
	binary.NativeEndian.PutUint32(buf[8:12], seq)
	binary.NativeEndian.PutUint32(buf[12:16], 0)
	return append(buf, body...), nil
}

// parseHeader decodes a message header. The returned message has no body yet.
func parseHeader(hdr []byte) (*message, int, error) {
	if len(hdr) < headerSize {
		return nil, 0, fmt.Errorf("%w: header too short (%d bytes)", ErrProtocol, len(hdr))
	}
	word := binary.NativeEndian.Uint32(hdr[4:8])
	msg := &message{
		id:     binary.NativeEndian.Uint32(hdr[0:4]),
		opcode: uint8(word >> 24),
		seq:    binary.NativeEndian.Uint32(hdr[8:12]),
		nfds:   binary.NativeEndian.Uint32(hdr[12:16]),
	}
	return msg, int(word & maxPayloadSize), nil
}
