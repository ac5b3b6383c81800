package device

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds the configured devices by ID.
//
// All public methods are thread-safe.
type Registry struct {
	devices map[string]*Device
	mu      sync.RWMutex
	logger  Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		devices: make(map[string]*Device),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Register adds d. Returns ErrDeviceExists if its ID is taken.
func (r *Registry) Register(d *Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.devices[d.ID()]; ok {
		return fmt.Errorf("%w: %s", ErrDeviceExists, d.ID())
	}
	r.devices[d.ID()] = d
	r.logger.Debug("device registered", "device", d.ID(), "type", d.Type())
	return nil
}

// Get returns the device with the given ID.
// Returns ErrDeviceNotFound if it is not registered.
func (r *Registry) Get(id string) (*Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.devices[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	return d, nil
}

// List returns every device sorted by ID.
func (r *Registry) List() []*Device {
	r.mu.RLock()
	out := make([]*Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, d)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Inputs returns the devices that can capture, sorted by ID.
func (r *Registry) Inputs() []InputCapable {
	var out []InputCapable
	for _, d := range r.List() {
		if d.Type().HasInput() {
			out = append(out, d)
		}
	}
	return out
}

// Outputs returns the devices that can play back, sorted by ID.
func (r *Registry) Outputs() []OutputCapable {
	var out []OutputCapable
	for _, d := range r.List() {
		if d.Type().HasOutput() {
			out = append(out, d)
		}
	}
	return out
}

// Count returns the number of registered devices.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}
