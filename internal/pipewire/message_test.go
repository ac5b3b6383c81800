package pipewire

import (
	"errors"
	"testing"
)

func TestEncodeMessage_Header(t *testing.T) {
	body := idSeqBody(0, 7)
	data, err := encodeMessage(CoreID, coreMethodSync, 7, body)
	if err != nil {
		t.Fatalf("encodeMessage() error = %v", err)
	}
	if len(data) != headerSize+len(body) {
		t.Fatalf("len = %d, want %d", len(data), headerSize+len(body))
	}

	msg, size, err := parseHeader(data)
	if err != nil {
		t.Fatalf("parseHeader() error = %v", err)
	}
	if msg.id != CoreID || msg.opcode != coreMethodSync || msg.seq != 7 || msg.nfds != 0 {
		t.Errorf("header = %+v, want id=0 opcode=%d seq=7 nfds=0", msg, coreMethodSync)
	}
	if size != len(body) {
		t.Errorf("size = %d, want %d", size, len(body))
	}
}

func TestEncodeMessage_TooLarge(t *testing.T) {
	_, err := encodeMessage(CoreID, coreMethodSync, 0, make([]byte, maxPayloadSize+1))
	if !errors.Is(err, ErrProtocol) {
		t.Errorf("error = %v, want ErrProtocol", err)
	}
}

func TestParseHeader_Short(t *testing.T) {
	if _, _, err := parseHeader(make([]byte, 10)); !errors.Is(err, ErrProtocol) {
		t.Errorf("error = %v, want ErrProtocol", err)
	}
}
