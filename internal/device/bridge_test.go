package device

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-audio/internal/pipewire"
)

// brokenServer is a unix socket endpoint that never completes a query:
// it either swallows everything the client sends or hangs up at once.
type brokenServer struct {
	path string
	ln   net.Listener

	mu    sync.Mutex
	conns []net.Conn
	wg    sync.WaitGroup
}

func newBrokenServer(t *testing.T, hangUp bool) *brokenServer {
	t.Helper()

	// Socket paths are limited to ~108 bytes, so stay out of t.TempDir.
	dir, err := os.MkdirTemp("", "pwdev")
	if err != nil {
		t.Fatalf("failed to create socket dir: %v", err)
	}
	path := filepath.Join(dir, "pipewire-0")
	ln, err := net.Listen("unix", path)
	if err != nil {
		os.RemoveAll(dir)
		t.Fatalf("failed to listen: %v", err)
	}

	s := &brokenServer{path: path, ln: ln}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			nc, err := ln.Accept()
			if err != nil {
				return
			}
			if hangUp {
				nc.Close()
				continue
			}
			s.mu.Lock()
			s.conns = append(s.conns, nc)
			s.mu.Unlock()
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				io.Copy(io.Discard, nc) //nolint:errcheck // ends when the test closes nc
			}()
		}
	}()

	t.Cleanup(func() {
		ln.Close()
		s.mu.Lock()
		for _, nc := range s.conns {
			nc.Close()
		}
		s.mu.Unlock()
		s.wg.Wait()
		os.RemoveAll(dir)
	})
	return s
}

func (s *brokenServer) client(syncTimeout time.Duration) *pipewire.Client {
	return pipewire.NewClient(pipewire.Config{
		Remote:      "unix://" + s.path,
		SyncTimeout: syncTimeout,
	}, nil)
}

// callWithoutPanic runs fn and fails the test if it panics.
func callWithoutPanic(t *testing.T, what string, fn func()) {
	t.Helper()
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("%s panicked: %v", what, r)
		}
	}()
	fn()
}

func TestDevice_OverPipeWire_BridgeFailures(t *testing.T) {
	tests := []struct {
		name        string
		hangUp      bool
		syncTimeout time.Duration
		ctxTimeout  time.Duration
	}{
		{name: "server stalls past sync timeout", syncTimeout: 50 * time.Millisecond, ctxTimeout: 5 * time.Second},
		{name: "server stalls past context deadline", ctxTimeout: 100 * time.Millisecond},
		{name: "server hangs up", hangUp: true, ctxTimeout: 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newBrokenServer(t, tt.hangUp)
			logger := &recordingLogger{}
			d := newTestDevice(t, Options{
				ID:         "speakers",
				TargetNode: uint32Ptr(42),
				Source:     server.client(tt.syncTimeout),
				Logger:     logger,
			})

			var name string
			callWithoutPanic(t, "Name()", func() {
				ctx, cancel := context.WithTimeout(context.Background(), tt.ctxTimeout)
				defer cancel()
				name = d.Name(ctx)
			})
			if name != NameError {
				t.Errorf("Name() = %q, want %q", name, NameError)
			}

			var (
				props *pipewire.Properties
				err   error
			)
			callWithoutPanic(t, "Properties()", func() {
				ctx, cancel := context.WithTimeout(context.Background(), tt.ctxTimeout)
				defer cancel()
				props, err = d.Properties(ctx)
			})
			if !errors.Is(err, ErrQueryFailed) {
				t.Errorf("Properties() error = %v, want ErrQueryFailed", err)
			}
			if props != nil {
				t.Errorf("Properties() = %v, want nil", props.Map())
			}

			logger.mu.Lock()
			logged := len(logger.errors)
			logger.mu.Unlock()
			if logged != 1 {
				t.Errorf("logged errors = %d, want 1 (from Name only)", logged)
			}
		})
	}
}

func TestProbe_OverPipeWire_StalledServer(t *testing.T) {
	server := newBrokenServer(t, false)
	d := newTestDevice(t, Options{
		ID:         "speakers",
		TargetNode: uint32Ptr(42),
		Source:     server.client(50 * time.Millisecond),
	})

	var st Status
	callWithoutPanic(t, "Probe()", func() {
		st = Probe(context.Background(), d)
	})
	if st.Presence != PresenceError {
		t.Errorf("presence = %q, want %q", st.Presence, PresenceError)
	}
	if st.Name != NameError {
		t.Errorf("name = %q, want %q", st.Name, NameError)
	}
}
