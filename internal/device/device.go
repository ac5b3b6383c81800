package device

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/nerrad567/gray-logic-audio/internal/pipewire"
	"github.com/nerrad567/gray-logic-audio/internal/stream"
)

// Logger defines the logging interface used by devices and the registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Device.
type Options struct {
	// ID is the configured identifier, unique within a Registry.
	ID string

	// TargetNode is the PipeWire global id. Nil means the system default.
	TargetNode *uint32

	// Type is the capability tag. Default: TypeDuplex.
	Type Type

	// ObjectSerial pins streams to this exact object.
	ObjectSerial *string

	// StreamName labels future streams. Default: DefaultStreamName.
	StreamName string

	// StreamProperties are passed through to future streams.
	StreamProperties map[string][]byte

	// Source answers property queries. Required when TargetNode is set.
	Source PropertySource

	// Builder constructs streams. Default: stream.Unavailable.
	Builder stream.Builder

	Logger Logger
}

// Device is the PipeWire-backed device facade.
//
// Identity comes from the node's properties, fetched through Source on every
// call. Stream defaults (name and properties) are mutable and copied into
// each stream request, so changing them never affects existing streams.
type Device struct {
	id           string
	targetNode   *uint32
	deviceType   Type
	objectSerial *string

	source  PropertySource
	builder stream.Builder
	logger  Logger

	mu               sync.RWMutex
	streamName       string
	streamProperties map[string][]byte
}

// New creates a device from opts.
//
// Returns:
//   - *Device: Ready device
//   - error: ErrInvalidDevice or ErrInvalidDeviceType on bad options
func New(opts Options) (*Device, error) {
	if strings.TrimSpace(opts.ID) == "" {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidDevice)
	}
	if opts.Type == "" {
		opts.Type = TypeDuplex
	}
	if _, err := ParseType(string(opts.Type)); err != nil {
		return nil, err
	}
	if opts.TargetNode != nil && opts.Source == nil {
		return nil, fmt.Errorf("%w: %s targets node %d but has no property source", ErrInvalidDevice, opts.ID, *opts.TargetNode)
	}
	if opts.StreamName == "" {
		opts.StreamName = DefaultStreamName
	}
	if opts.Builder == nil {
		opts.Builder = stream.Unavailable
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}

	d := &Device{
		id:               opts.ID,
		deviceType:       opts.Type,
		source:           opts.Source,
		builder:          opts.Builder,
		logger:           opts.Logger,
		streamName:       opts.StreamName,
		streamProperties: cloneRawProperties(opts.StreamProperties),
	}
	if opts.TargetNode != nil {
		node := *opts.TargetNode
		d.targetNode = &node
	}
	if opts.ObjectSerial != nil {
		serial := *opts.ObjectSerial
		d.objectSerial = &serial
	}
	return d, nil
}

// ID returns the configured identifier.
func (d *Device) ID() string {
	return d.id
}

// Type returns the capability tag.
func (d *Device) Type() Type {
	return d.deviceType
}

// TargetNode returns the node id and whether one is set.
func (d *Device) TargetNode() (uint32, bool) {
	if d.targetNode == nil {
		return 0, false
	}
	return *d.targetNode, true
}

// ObjectSerial returns the stream pinning serial, if any.
func (d *Device) ObjectSerial() (string, bool) {
	if d.objectSerial == nil {
		return "", false
	}
	return *d.objectSerial, true
}

// Name returns the node's human-readable name.
//
// The system default device is named "Default" without querying the server.
// A missing node or node.name yields "Unknown". A failed query is logged and
// yields "Error"; Name never returns the failure itself.
func (d *Device) Name(ctx context.Context) string {
	if d.targetNode == nil {
		return NameDefault
	}
	props, err := d.Properties(ctx)
	if err != nil {
		d.logger.Error("failed to get device name", "device", d.id, "node", *d.targetNode, "error", err)
		return NameError
	}
	return nameFromProperties(props)
}

func nameFromProperties(props *pipewire.Properties) string {
	if name, ok := props.Get(pipewire.KeyNodeName); ok {
		return name
	}
	return NameUnknown
}

// Properties returns the node's property set, fetched fresh on every call.
//
// Returns:
//   - *pipewire.Properties: The properties, or nil for the system default or
//     a node the server does not announce
//   - error: ErrQueryFailed wrapping the bridge error
func (d *Device) Properties(ctx context.Context) (*pipewire.Properties, error) {
	if d.targetNode == nil {
		return nil, nil
	}
	props, err := d.source.NodeProperties(ctx, *d.targetNode)
	if err != nil {
		return nil, fmt.Errorf("%w: node %d: %w", ErrQueryFailed, *d.targetNode, err)
	}
	return props, nil
}

// DefaultInputConfig returns 48 kHz stereo, shared, without buffer bounds.
func (d *Device) DefaultInputConfig() stream.Config {
	return stream.DefaultConfig()
}

// DefaultOutputConfig returns 48 kHz stereo, shared, without buffer bounds.
func (d *Device) DefaultOutputConfig() stream.Config {
	return stream.DefaultConfig()
}

// ChannelMap returns the device's channel layout. The server negotiates the
// layout per stream, so none is reported here.
func (d *Device) ChannelMap() []stream.ChannelPosition {
	return []stream.ChannelPosition{}
}

// IsConfigSupported reports whether cfg can be requested. The server adapts
// any configuration, so every one is accepted.
func (d *Device) IsConfigSupported(stream.Config) bool {
	return true
}

// EnumerateConfigurations lists discrete supported configurations. None are
// enumerated: the server converts formats on demand.
func (d *Device) EnumerateConfigurations() []stream.Config {
	return []stream.Config{}
}

// StreamName returns the label for the next stream.
func (d *Device) StreamName() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.streamName
}

// StreamProperties returns a copy of the properties for the next stream.
func (d *Device) StreamProperties() map[string][]byte {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return cloneRawProperties(d.streamProperties)
}

// WithStreamName sets the label for streams created after this call.
func (d *Device) WithStreamName(name string) *Device {
	d.mu.Lock()
	d.streamName = name
	d.mu.Unlock()
	return d
}

// WithStreamProperties replaces the properties for streams created after
// this call. props is copied.
func (d *Device) WithStreamProperties(props map[string][]byte) *Device {
	cloned := cloneRawProperties(props)
	d.mu.Lock()
	d.streamProperties = cloned
	d.mu.Unlock()
	return d
}

// CreateInputStream asks the stream builder for a capture stream.
func (d *Device) CreateInputStream(ctx context.Context, cfg stream.Config, data stream.DataCallback, onError stream.ErrorCallback) (stream.Handle, error) {
	return d.buildStream(ctx, stream.Input, cfg, data, onError)
}

// CreateOutputStream asks the stream builder for a playback stream.
func (d *Device) CreateOutputStream(ctx context.Context, cfg stream.Config, data stream.DataCallback, onError stream.ErrorCallback) (stream.Handle, error) {
	return d.buildStream(ctx, stream.Output, cfg, data, onError)
}

// StreamRequest returns the request a stream in direction dir would receive.
func (d *Device) StreamRequest(dir stream.Direction, cfg stream.Config) stream.Request {
	d.mu.RLock()
	req := stream.Request{
		Direction:    dir,
		ObjectSerial: d.objectSerial,
		Name:         d.streamName,
		Config:       cfg,
		Properties:   d.streamProperties,
	}
	// Clone under the lock so the builder never shares the device's maps.
	req = req.Clone()
	d.mu.RUnlock()
	return req
}

func (d *Device) buildStream(ctx context.Context, dir stream.Direction, cfg stream.Config, data stream.DataCallback, onError stream.ErrorCallback) (stream.Handle, error) {
	req := d.StreamRequest(dir, cfg)
	h, err := d.builder.Build(ctx, req, data, onError)
	if err != nil {
		if errors.Is(err, stream.ErrStreamConstruction) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", stream.ErrStreamConstruction, err)
	}
	return h, nil
}

func cloneRawProperties(props map[string][]byte) map[string][]byte {
	if props == nil {
		return map[string][]byte{}
	}
	out := make(map[string][]byte, len(props))
	for k, v := range props {
		out[k] = append([]byte(nil), v...)
	}
	return out
}
