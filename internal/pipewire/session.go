package pipewire

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Session is one open-run-close cycle against the server.
//
// A Session owns its connection, loop and every listener registered through
// it. Close detaches the listeners first and only then disconnects, on every
// exit path. Sessions are single use and not safe for concurrent use.
type Session struct {
	conn     *Conn
	loop     *MainLoop
	core     *Core
	registry *Registry

	hooks       []*Hook
	syncTimeout time.Duration

	closeOnce sync.Once
	closeErr  error
	closeConn func() error

	logger Logger
}

// OpenSession connects, performs the handshake and binds the registry.
//
// Any failure is reported as ErrConnectionFailed and leaves nothing open.
//
// Parameters:
//   - ctx: Bounds the connection attempt
//   - cfg: Connection settings
//   - logger: Optional logger (may be nil)
//
// Returns:
//   - *Session: Ready session; the caller must Close it
//   - error: ErrConnectionFailed wrapping the cause
func OpenSession(ctx context.Context, cfg Config, logger Logger) (*Session, error) {
	conn, err := dial(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return newSession(conn, cfg, logger)
}

func newSession(conn *Conn, cfg Config, logger Logger) (*Session, error) {
	s := &Session{
		conn:        conn,
		loop:        newMainLoop(conn, logger),
		core:        newCore(conn, logger),
		syncTimeout: cfg.SyncTimeout,
		closeConn:   conn.Close,
		logger:      logger,
	}

	registry, err := s.core.GetRegistry()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	s.registry = registry
	return s, nil
}

// Core returns the core proxy.
func (s *Session) Core() *Core {
	return s.core
}

// Registry returns the registry bound at open.
func (s *Session) Registry() *Registry {
	return s.registry
}

// Loop returns the session's main loop.
func (s *Session) Loop() *MainLoop {
	return s.loop
}

// AddCoreListener attaches events to the core for the session's lifetime.
func (s *Session) AddCoreListener(events CoreEvents) *Hook {
	h := s.core.AddListener(events)
	s.hooks = append(s.hooks, h)
	return h
}

// AddRegistryListener attaches events to the registry for the session's lifetime.
func (s *Session) AddRegistryListener(events RegistryEvents) *Hook {
	h := s.registry.AddListener(events)
	s.hooks = append(s.hooks, h)
	return h
}

// RunUntil runs the loop until done reports true.
//
// done is checked before the first run and after every Quit. Without a
// SyncTimeout and with a context that never ends this waits indefinitely.
func (s *Session) RunUntil(ctx context.Context, done func() bool) error {
	if s.conn.closed {
		return ErrClosed
	}
	if s.syncTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.syncTimeout)
		defer cancel()
	}

	for !done() {
		if err := s.loop.Run(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close detaches every listener, then disconnects. Only the first call has
// any effect; later calls return the first result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		for i := len(s.hooks) - 1; i >= 0; i-- {
			s.hooks[i].Remove()
		}
		s.hooks = nil
		s.closeErr = s.closeConn()
	})
	return s.closeErr
}
