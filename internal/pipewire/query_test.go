package pipewire

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestQueryNode_TargetAnnounced(t *testing.T) {
	server := NewMockPipeWireServer(t, mockScenario{
		globals: []Global{
			nodeGlobal(40, KeyNodeName, "Microphone"),
			nodeGlobal(42, KeyNodeName, "Speakers"),
			nodeGlobal(43, KeyNodeName, "HDMI"),
		},
	})
	session := openTestSession(t, server, Config{})
	defer session.Close()

	session.conn.seq = 7

	props, err := queryNode(context.Background(), session, 42)
	if err != nil {
		t.Fatalf("queryNode() error = %v", err)
	}

	want := NewProperties()
	want.Set(KeyNodeName, "Speakers")
	if !props.Equal(want) {
		t.Errorf("props = %v, want exactly {node.name: Speakers}", props.Map())
	}

	var token int32 = -1
	for _, m := range server.Received() {
		if m.opcode == coreMethodSync && m.id == CoreID {
			token = m.token
		}
	}
	if token != 7 {
		t.Errorf("barrier token = %d, want 7", token)
	}
}

func TestQueryNode_TargetAbsent(t *testing.T) {
	server := NewMockPipeWireServer(t, mockScenario{
		globals: []Global{nodeGlobal(42, KeyNodeName, "Speakers")},
	})
	session := openTestSession(t, server, Config{})
	defer session.Close()

	props, err := queryNode(context.Background(), session, 99)
	if err != nil {
		t.Fatalf("queryNode() error = %v", err)
	}
	if props != nil {
		t.Errorf("props = %v, want nil for an absent node", props.Map())
	}

	// Hello, UpdateProperties and GetRegistry take sequence numbers 0 to 2.
	for _, m := range server.Received() {
		if m.opcode == coreMethodSync && m.token != 3 {
			t.Errorf("barrier token = %d, want 3", m.token)
		}
	}
}

func TestQueryNode_StaleDoneIgnored(t *testing.T) {
	// A fresh session's barrier token is 3. The stale events carry either an
	// earlier token or the right token on the wrong object; the node is only
	// announced after them, so stopping early would lose it.
	server := NewMockPipeWireServer(t, mockScenario{
		staleDone: []doneEvent{
			{id: CoreID, seq: 1},
			{id: CoreID, seq: 2},
			{id: 5, seq: 3},
		},
		lateGlobals: []Global{nodeGlobal(42, KeyNodeName, "Speakers")},
	})
	session := openTestSession(t, server, Config{})
	defer session.Close()

	props, err := queryNode(context.Background(), session, 42)
	if err != nil {
		t.Fatalf("queryNode() error = %v", err)
	}
	if v, ok := props.Get(KeyNodeName); !ok || v != "Speakers" {
		t.Errorf("node.name = %q, %v; want %q (loop stopped on a stale Done)", v, ok, "Speakers")
	}
}

func TestQueryNode_LastAnnouncementWins(t *testing.T) {
	server := NewMockPipeWireServer(t, mockScenario{
		globals:     []Global{nodeGlobal(42, KeyNodeName, "Old")},
		lateGlobals: []Global{nodeGlobal(42, KeyNodeName, "New", KeyMediaClass, "Audio/Sink")},
	})
	session := openTestSession(t, server, Config{})
	defer session.Close()

	props, err := queryNode(context.Background(), session, 42)
	if err != nil {
		t.Fatalf("queryNode() error = %v", err)
	}
	if v, _ := props.Get(KeyNodeName); v != "New" {
		t.Errorf("node.name = %q, want %q", v, "New")
	}
	if props.Len() != 2 {
		t.Errorf("Len() = %d, want 2", props.Len())
	}
}

func TestQueryNode_AnswersPing(t *testing.T) {
	server := NewMockPipeWireServer(t, mockScenario{
		ping:    true,
		globals: []Global{nodeGlobal(42, KeyNodeName, "Speakers")},
	})
	session := openTestSession(t, server, Config{})

	if _, err := queryNode(context.Background(), session, 42); err != nil {
		t.Fatalf("queryNode() error = %v", err)
	}
	session.Close()

	deadline := time.Now().Add(2 * time.Second)
	for len(server.Pongs()) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	pongs := server.Pongs()
	if len(pongs) != 1 || pongs[0].seq != 77 {
		t.Errorf("pongs = %+v, want one pong with seq 77", pongs)
	}
}

func TestQueryNode_PassedFdReleased(t *testing.T) {
	server := NewMockPipeWireServer(t, mockScenario{
		passFd:  true,
		globals: []Global{nodeGlobal(42, KeyNodeName, "Speakers")},
	})
	session := openTestSession(t, server, Config{})
	defer session.Close()

	props, err := queryNode(context.Background(), session, 42)
	if err != nil {
		t.Fatalf("queryNode() error = %v", err)
	}
	if props.Len() != 1 {
		t.Errorf("Len() = %d, want 1", props.Len())
	}
}

func TestQueryNode_Failures(t *testing.T) {
	tests := []struct {
		name     string
		scenario mockScenario
		cfg      Config
		ctx      func() (context.Context, context.CancelFunc)
		wantErr  error
	}{
		{
			name:     "server error event",
			scenario: mockScenario{errorOnSync: "no such object"},
			wantErr:  ErrProtocol,
		},
		{
			name:     "server hangs up",
			scenario: mockScenario{hangUp: true},
			wantErr:  ErrDisconnected,
		},
		{
			name:     "oversized frame",
			scenario: mockScenario{oversizedAck: true},
			wantErr:  ErrProtocolDesync,
		},
		{
			name:     "configured sync timeout",
			scenario: mockScenario{silent: true},
			cfg:      Config{SyncTimeout: 50 * time.Millisecond},
			wantErr:  ErrTimeout,
		},
		{
			name:     "context deadline",
			scenario: mockScenario{silent: true},
			ctx: func() (context.Context, context.CancelFunc) {
				return context.WithTimeout(context.Background(), 50*time.Millisecond)
			},
			wantErr: ErrTimeout,
		},
		{
			name:     "caller cancels",
			scenario: mockScenario{silent: true},
			ctx: func() (context.Context, context.CancelFunc) {
				ctx, cancel := context.WithCancel(context.Background())
				time.AfterFunc(50*time.Millisecond, cancel)
				return ctx, cancel
			},
			wantErr: ErrTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := NewMockPipeWireServer(t, tt.scenario)
			cfg := tt.cfg
			cfg.Remote = server.Remote()

			ctx, cancel := context.Background(), context.CancelFunc(func() {})
			if tt.ctx != nil {
				ctx, cancel = tt.ctx()
			}
			defer cancel()

			props, err := NewClient(cfg, nil).NodeProperties(ctx, 42)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("NodeProperties() error = %v, want %v", err, tt.wantErr)
			}
			if props != nil {
				t.Errorf("props = %v, want nil on failure", props.Map())
			}
		})
	}
}

func TestClient_NodeProperties_FreshSessionPerCall(t *testing.T) {
	server := NewMockPipeWireServer(t, mockScenario{
		globals: []Global{nodeGlobal(42, KeyNodeName, "Speakers")},
	})
	client := NewClient(Config{Remote: server.Remote()}, nil)

	var closes int
	client.open = func(ctx context.Context, cfg Config, logger Logger) (*Session, error) {
		s, err := OpenSession(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		disconnect := s.closeConn
		s.closeConn = func() error {
			closes++
			return disconnect()
		}
		return s, nil
	}

	for i := range 2 {
		props, err := client.NodeProperties(context.Background(), 42)
		if err != nil {
			t.Fatalf("call %d: NodeProperties() error = %v", i, err)
		}
		if v, _ := props.Get(KeyNodeName); v != "Speakers" {
			t.Errorf("call %d: node.name = %q, want %q", i, v, "Speakers")
		}
	}

	if got := server.Connections(); got != 2 {
		t.Errorf("connections = %d, want 2 (no caching across calls)", got)
	}
	if closes != 2 {
		t.Errorf("session closes = %d, want 2", closes)
	}
}

func TestClient_NodeProperties_ConnectionFailed(t *testing.T) {
	client := NewClient(Config{Remote: "unix:///nonexistent/pipewire-0"}, nil)
	props, err := client.NodeProperties(context.Background(), 42)
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("NodeProperties() error = %v, want ErrConnectionFailed", err)
	}
	if props != nil {
		t.Error("props should be nil on connection failure")
	}
}

func TestClient_NodeProperties_StalledServerReturnsTimeout(t *testing.T) {
	server := NewMockPipeWireServer(t, mockScenario{silent: true})
	client := NewClient(Config{Remote: server.Remote(), SyncTimeout: 50 * time.Millisecond}, nil)

	var (
		props *Properties
		err   error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("NodeProperties() panicked: %v", r)
			}
		}()
		props, err = client.NodeProperties(context.Background(), 42)
	}()

	if !errors.Is(err, ErrTimeout) {
		t.Errorf("NodeProperties() error = %v, want ErrTimeout", err)
	}
	if props != nil {
		t.Errorf("props = %v, want nil", props.Map())
	}

	if server.Connections() != 1 {
		t.Errorf("connections = %d, want 1", server.Connections())
	}
}

func TestQueryNode_SyncWriteFailure(t *testing.T) {
	server := NewMockPipeWireServer(t, mockScenario{
		globals: []Global{nodeGlobal(42, KeyNodeName, "Speakers")},
	})
	session := openTestSession(t, server, Config{})
	defer session.Close()

	// Drop the socket underneath the session so the barrier write fails.
	session.conn.conn.Close()

	props, err := queryNode(context.Background(), session, 42)
	if !errors.Is(err, ErrDisconnected) {
		t.Errorf("queryNode() error = %v, want ErrDisconnected", err)
	}
	if props != nil {
		t.Errorf("props = %v, want nil", props.Map())
	}
}
