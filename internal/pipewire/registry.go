package pipewire

import "fmt"

// Interface type names announced in Global events.
const (
	TypeNode   = "PipeWire:Interface:Node"
	TypeDevice = "PipeWire:Interface:Device"
	TypePort   = "PipeWire:Interface:Port"
)

// Global is an object announced by the registry.
type Global struct {
	ID          uint32
	Permissions uint32
	Type        string
	Version     uint32
	Props       *Properties
}

// RegistryEvents is the set of registry callbacks. Nil fields are skipped.
type RegistryEvents struct {
	Global       func(g Global)
	GlobalRemove func(id uint32)
}

// Registry is the proxy for a bound registry.
type Registry struct {
	id        uint32
	listeners hookList[RegistryEvents]
	logger    Logger
}

func newRegistry(conn *Conn, id uint32, logger Logger) *Registry {
	r := &Registry{id: id, logger: logger}
	conn.bind(id, r)
	return r
}

// ID returns the proxy's object id.
func (r *Registry) ID() uint32 {
	return r.id
}

// AddListener attaches events to the registry.
func (r *Registry) AddListener(events RegistryEvents) *Hook {
	return r.listeners.add(events)
}

func (r *Registry) dispatch(msg *message) error {
	switch msg.opcode {
	case registryEventGlobal:
		g, err := parseGlobal(msg.body)
		if err != nil {
			return fmt.Errorf("registry global: %w", err)
		}
		r.listeners.each(func(ev RegistryEvents) {
			if ev.Global != nil {
				ev.Global(g)
			}
		})
		return nil

	case registryEventGlobalRemove:
		p, err := newPodParser(msg.body).Struct()
		if err != nil {
			return fmt.Errorf("registry global remove: %w", err)
		}
		id, err := p.Int()
		if err != nil {
			return fmt.Errorf("registry global remove id: %w", err)
		}
		r.listeners.each(func(ev RegistryEvents) {
			if ev.GlobalRemove != nil {
				ev.GlobalRemove(uint32(id)) //nolint:gosec // bit reinterpretation
			}
		})
		return nil

	default:
		if r.logger != nil {
			r.logger.Debug("ignoring registry event", "opcode", msg.opcode)
		}
		return nil
	}
}

// parseGlobal decodes Struct{Int id, Int perms, String type, Int version, Struct dict}.
func parseGlobal(body []byte) (Global, error) {
	p, err := newPodParser(body).Struct()
	if err != nil {
		return Global{}, err
	}
	id, err := p.Int()
	if err != nil {
		return Global{}, fmt.Errorf("id: %w", err)
	}
	perms, err := p.Int()
	if err != nil {
		return Global{}, fmt.Errorf("permissions: %w", err)
	}
	typ, err := p.String()
	if err != nil {
		return Global{}, fmt.Errorf("type: %w", err)
	}
	version, err := p.Int()
	if err != nil {
		return Global{}, fmt.Errorf("version: %w", err)
	}
	dict, err := p.Struct()
	if err != nil {
		return Global{}, fmt.Errorf("props: %w", err)
	}
	props, err := dict.Dict()
	if err != nil {
		return Global{}, fmt.Errorf("props: %w", err)
	}
	return Global{
		ID:          uint32(id),    //nolint:gosec // bit reinterpretation
		Permissions: uint32(perms), //nolint:gosec // bit reinterpretation
		Type:        typ,
		Version:     uint32(version), //nolint:gosec // bit reinterpretation
		Props:       props,
	}, nil
}
