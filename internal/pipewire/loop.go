package pipewire

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

// MainLoop drives one connection: it reads messages and dispatches them to
// the proxy they are addressed to.
//
// Run executes on the calling goroutine and every listener callback is invoked
// from inside Run. Quit is meant to be called from such a callback.
type MainLoop struct {
	conn   *Conn
	quit   bool
	logger Logger
}

func newMainLoop(conn *Conn, logger Logger) *MainLoop {
	return &MainLoop{conn: conn, logger: logger}
}

// Quit makes the current Run return after the event being dispatched.
func (l *MainLoop) Quit() {
	l.quit = true
}

// Run processes events until Quit is called, ctx ends or the connection fails.
//
// Returns:
//   - nil after Quit
//   - ErrTimeout (wrapping the context error) if ctx ends first
//   - ErrDisconnected, ErrProtocol or ErrProtocolDesync on connection faults
func (l *MainLoop) Run(ctx context.Context) error {
	l.quit = false

	if deadline, ok := ctx.Deadline(); ok {
		if err := l.conn.setReadDeadline(deadline); err != nil {
			return fmt.Errorf("set read deadline: %w", err)
		}
	} else if err := l.conn.setReadDeadline(time.Time{}); err != nil {
		return fmt.Errorf("set read deadline: %w", err)
	}

	// Unblock a pending read when the caller cancels.
	stop := context.AfterFunc(ctx, func() {
		l.conn.setReadDeadline(time.Now()) //nolint:errcheck // best effort wake-up
	})
	defer stop()

	for !l.quit {
		if err := l.Iterate(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Iterate reads and dispatches exactly one message.
func (l *MainLoop) Iterate(ctx context.Context) error {
	msg, err := l.conn.readMessage()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %w", ErrTimeout, ctxErr)
		}
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return err
	}

	d, ok := l.conn.objects[msg.id]
	if !ok {
		if l.logger != nil {
			l.logger.Debug("event for unbound object", "id", msg.id, "opcode", msg.opcode)
		}
		return nil
	}
	return d.dispatch(msg)
}
