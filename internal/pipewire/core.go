package pipewire

import (
	"fmt"
)

// CoreEvents is the set of core callbacks. Nil fields are skipped.
type CoreEvents struct {
	// Done is called when the server acknowledges a Sync.
	Done func(id uint32, seq int32)

	// Error is called when the server reports an error on an object.
	Error func(id uint32, seq int32, res int32, message string)
}

// Core is the proxy for the server's core object (id 0).
type Core struct {
	conn      *Conn
	listeners hookList[CoreEvents]
	logger    Logger
}

func newCore(conn *Conn, logger Logger) *Core {
	c := &Core{conn: conn, logger: logger}
	conn.bind(CoreID, c)
	return c
}

// AddListener attaches events to the core.
func (c *Core) AddListener(events CoreEvents) *Hook {
	return c.listeners.add(events)
}

// Sync asks the server to emit Done(id, token) once every request sent so far
// has been processed. It does not block; the token is returned immediately so
// it can be captured before any listener is attached.
func (c *Core) Sync(id uint32) (int32, error) {
	token := int32(c.conn.seq) //nolint:gosec // sequence wraps like the server's
	var b podBuilder
	b.Struct(func(b *podBuilder) {
		b.Int(int32(id)) //nolint:gosec // object ids fit in int32
		b.Int(token)
	})
	if _, err := c.conn.send(CoreID, coreMethodSync, b.bytes()); err != nil {
		return 0, fmt.Errorf("sync: %w", err)
	}
	return token, nil
}

// GetRegistry binds a new registry proxy. Globals are announced to it as soon
// as the loop runs.
func (c *Core) GetRegistry() (*Registry, error) {
	id := c.conn.allocID()
	var b podBuilder
	b.Struct(func(b *podBuilder) {
		b.Int(registryVersion)
		b.Int(int32(id)) //nolint:gosec // object ids fit in int32
	})
	if _, err := c.conn.send(CoreID, coreMethodGetRegistry, b.bytes()); err != nil {
		return nil, fmt.Errorf("get registry: %w", err)
	}
	return newRegistry(c.conn, id, c.logger), nil
}

func (c *Core) pong(id, seq int32) error {
	var b podBuilder
	b.Struct(func(b *podBuilder) {
		b.Int(id)
		b.Int(seq)
	})
	if _, err := c.conn.send(CoreID, coreMethodPong, b.bytes()); err != nil {
		return fmt.Errorf("pong: %w", err)
	}
	return nil
}

// dispatch decodes one core event.
//
// Ping is answered directly. An Error event is delivered to listeners and then
// ends the loop with ErrProtocol: a session has no request it can retry.
func (c *Core) dispatch(msg *message) error {
	switch msg.opcode {
	case coreEventDone:
		id, seq, err := parseIDSeq(msg.body)
		if err != nil {
			return fmt.Errorf("core done: %w", err)
		}
		c.listeners.each(func(ev CoreEvents) {
			if ev.Done != nil {
				ev.Done(uint32(id), seq) //nolint:gosec // bit reinterpretation
			}
		})
		return nil

	case coreEventPing:
		id, seq, err := parseIDSeq(msg.body)
		if err != nil {
			return fmt.Errorf("core ping: %w", err)
		}
		return c.pong(id, seq)

	case coreEventError:
		p, err := newPodParser(msg.body).Struct()
		if err != nil {
			return fmt.Errorf("core error: %w", err)
		}
		id, err := p.Int()
		if err != nil {
			return fmt.Errorf("core error id: %w", err)
		}
		seq, err := p.Int()
		if err != nil {
			return fmt.Errorf("core error seq: %w", err)
		}
		res, err := p.Int()
		if err != nil {
			return fmt.Errorf("core error res: %w", err)
		}
		text, err := p.String()
		if err != nil {
			return fmt.Errorf("core error message: %w", err)
		}
		c.listeners.each(func(ev CoreEvents) {
			if ev.Error != nil {
				ev.Error(uint32(id), seq, res, text) //nolint:gosec // bit reinterpretation
			}
		})
		return fmt.Errorf("%w: server error on object %d (res %d): %s", ErrProtocol, id, res, text)

	default:
		if c.logger != nil {
			c.logger.Debug("ignoring core event", "opcode", msg.opcode)
		}
		return nil
	}
}

// parseIDSeq decodes the Struct{Int id, Int seq} body shared by Done and Ping.
func parseIDSeq(body []byte) (int32, int32, error) {
	p, err := newPodParser(body).Struct()
	if err != nil {
		return 0, 0, err
	}
	id, err := p.Int()
	if err != nil {
		return 0, 0, err
	}
	seq, err := p.Int()
	if err != nil {
		return 0, 0, err
	}
	return id, seq, nil
}
