package pipewire

import (
	"encoding/binary"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"golang.org/x/sys/unix"
)

// doneEvent is a Done(id, seq) the mock emits before acknowledging a Sync.
type doneEvent struct {
	id  uint32
	seq int32
}

// receivedMsg records a method call seen by the mock.
type receivedMsg struct {
	id     uint32
	opcode uint8
	seq    uint32
	syncID int32
	token  int32
}

// mockScenario scripts how the mock answers.
type mockScenario struct {
	globals      []Global    // announced on GetRegistry
	lateGlobals  []Global    // announced on Sync, after staleDone
	staleDone    []doneEvent // emitted on Sync before the matching Done
	ping         bool        // send Ping before acknowledging Sync
	passFd       bool        // send an AddMem event carrying a file descriptor
	silent       bool        // never acknowledge Sync
	hangUp       bool        // close the connection instead of acknowledging Sync
	errorOnSync  string      // send a core Error instead of Done
	oversizedAck bool        // acknowledge with a frame larger than the client buffers
}

// MockPipeWireServer simulates the server side of the native protocol for
// tests. It answers Hello, GetRegistry and Sync according to its scenario.
type MockPipeWireServer struct {
	mockScenario

	t        *testing.T
	listener *net.UnixListener
	path     string

	mu          sync.Mutex
	received    []receivedMsg
	clientProps *Properties
	pongs       []doneEvent
	open        []*net.UnixConn
	conns       int
	wg          sync.WaitGroup
}

// NewMockPipeWireServer starts a mock on a unix socket in a short temp dir.
func NewMockPipeWireServer(t *testing.T, scenario mockScenario) *MockPipeWireServer {
	t.Helper()

	dir, err := os.MkdirTemp("", "pw")
	if err != nil {
		t.Fatalf("failed to create socket dir: %v", err)
	}
	path := filepath.Join(dir, "pipewire-0")

	ln, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		os.RemoveAll(dir)
		t.Fatalf("failed to listen: %v", err)
	}

	s := &MockPipeWireServer{mockScenario: scenario, t: t, listener: ln, path: path}
	s.wg.Add(1)
	go s.acceptLoop()

	t.Cleanup(func() {
		s.listener.Close()
		s.mu.Lock()
		for _, nc := range s.open {
			nc.Close()
		}
		s.mu.Unlock()
		s.wg.Wait()
		os.RemoveAll(dir)
	})
	return s
}

// Remote returns a Config.Remote value pointing at the mock.
func (s *MockPipeWireServer) Remote() string {
	return "unix://" + s.path
}

// Received returns the method calls seen so far.
func (s *MockPipeWireServer) Received() []receivedMsg {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]receivedMsg, len(s.received))
	copy(out, s.received)
	return out
}

// ClientProps returns the properties sent with Client.UpdateProperties.
func (s *MockPipeWireServer) ClientProps() *Properties {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clientProps
}

// Pongs returns the Pong replies received.
func (s *MockPipeWireServer) Pongs() []doneEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]doneEvent, len(s.pongs))
	copy(out, s.pongs)
	return out
}

// Connections returns how many clients have connected.
func (s *MockPipeWireServer) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns
}

func (s *MockPipeWireServer) acceptLoop() {
	defer s.wg.Done()
	for {
		nc, err := s.listener.AcceptUnix()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns++
		s.open = append(s.open, nc)
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer nc.Close()
			s.serve(nc)
		}()
	}
}

func (s *MockPipeWireServer) serve(nc *net.UnixConn) {
	reader := newConn(nc, nil)
	var registryID uint32

	for {
		msg, err := reader.readMessage()
		if err != nil {
			return
		}

		rec := receivedMsg{id: msg.id, opcode: msg.opcode, seq: msg.seq}

		switch {
		case msg.id == ClientID && msg.opcode == clientMethodUpdateProperties:
			p, err := newPodParser(msg.body).Struct()
			if err == nil {
				if dict, err := p.Struct(); err == nil {
					if props, err := dict.Dict(); err == nil {
						s.mu.Lock()
						s.clientProps = props
						s.mu.Unlock()
					}
				}
			}

		case msg.id == CoreID && msg.opcode == coreMethodGetRegistry:
			p, err := newPodParser(msg.body).Struct()
			if err != nil {
				return
			}
			_, _ = p.Int()
			newID, _ := p.Int()
			registryID = uint32(newID) //nolint:gosec // test value
			for _, g := range s.globals {
				s.write(nc, registryID, registryEventGlobal, globalBody(g))
			}

		case msg.id == CoreID && msg.opcode == coreMethodPong:
			id, seq, _ := parseIDSeq(msg.body)
			s.mu.Lock()
			s.pongs = append(s.pongs, doneEvent{id: uint32(id), seq: seq}) //nolint:gosec // test value
			s.mu.Unlock()

		case msg.id == CoreID && msg.opcode == coreMethodSync:
			id, seq, _ := parseIDSeq(msg.body)
			rec.syncID, rec.token = id, seq
			s.record(rec)
			if !s.answerSync(nc, registryID, id, seq) {
				return
			}
			continue
		}

		s.record(rec)
	}
}

// answerSync plays the Sync part of the scenario. It returns false when the
// connection should be dropped.
func (s *MockPipeWireServer) answerSync(nc *net.UnixConn, registryID uint32, id, seq int32) bool {
	if s.passFd {
		s.writeWithFd(nc, CoreID, coreEventAddMem, idSeqBody(0, 0))
	}
	if s.ping {
		s.write(nc, CoreID, coreEventPing, idSeqBody(0, 77))
	}
	for _, d := range s.staleDone {
		s.write(nc, CoreID, coreEventDone, idSeqBody(int32(d.id), d.seq)) //nolint:gosec // test value
	}
	for _, g := range s.lateGlobals {
		s.write(nc, registryID, registryEventGlobal, globalBody(g))
	}

	switch {
	case s.hangUp:
		return false
	case s.silent:
		return true
	case s.errorOnSync != "":
		var b podBuilder
		b.Struct(func(b *podBuilder) {
			b.Int(id)
			b.Int(seq)
			b.Int(-2)
			b.String(s.errorOnSync)
		})
		s.write(nc, CoreID, coreEventError, b.bytes())
	case s.oversizedAck:
		hdr, _ := encodeMessage(CoreID, coreEventDone, 0, nil)
		binary.NativeEndian.PutUint32(hdr[4:8], uint32(coreEventDone)<<24|uint32(maxBufferedPayload+1))
		nc.Write(hdr) //nolint:errcheck // test
	default:
		s.write(nc, CoreID, coreEventDone, idSeqBody(id, seq))
	}
	return true
}

func (s *MockPipeWireServer) record(rec receivedMsg) {
	s.mu.Lock()
	s.received = append(s.received, rec)
	s.mu.Unlock()
}

func (s *MockPipeWireServer) write(nc net.Conn, id uint32, opcode uint8, body []byte) {
	msg, err := encodeMessage(id, opcode, 0, body)
	if err != nil {
		return
	}
	nc.Write(msg) //nolint:errcheck // client may already be gone
}

func (s *MockPipeWireServer) writeWithFd(nc *net.UnixConn, id uint32, opcode uint8, body []byte) {
	f, err := os.Open(os.DevNull)
	if err != nil {
		return
	}
	defer f.Close()

	msg, _ := encodeMessage(id, opcode, 0, body)
	binary.NativeEndian.PutUint32(msg[12:16], 1) // n_fds
	oob := unix.UnixRights(int(f.Fd()))
	nc.WriteMsgUnix(msg, oob, nil) //nolint:errcheck // client may already be gone
}

func idSeqBody(id, seq int32) []byte {
	var b podBuilder
	b.Struct(func(b *podBuilder) {
		b.Int(id)
		b.Int(seq)
	})
	return b.bytes()
}

func globalBody(g Global) []byte {
	props := g.Props
	if props == nil {
		props = NewProperties()
	}
	var b podBuilder
	b.Struct(func(b *podBuilder) {
		b.Int(int32(g.ID)) //nolint:gosec // test value
		b.Int(int32(g.Permissions)) //nolint:gosec // test value
		b.String(g.Type)
		b.Int(int32(g.Version)) //nolint:gosec // test value
		b.Struct(func(b *podBuilder) {
			b.Dict(props)
		})
	})
	return b.bytes()
}

func nodeGlobal(id uint32, kv ...string) Global {
	props := NewProperties()
	for i := 0; i+1 < len(kv); i += 2 {
		props.Set(kv[i], kv[i+1])
	}
	return Global{ID: id, Permissions: 0x1ff, Type: TypeNode, Version: 3, Props: props}
}
