package device

import (
	"context"

	"github.com/nerrad567/gray-logic-audio/internal/pipewire"
	"github.com/nerrad567/gray-logic-audio/internal/stream"
)

// Identifiable is the identity surface of a device.
type Identifiable interface {
	ID() string
	Name(ctx context.Context) string
	Properties(ctx context.Context) (*pipewire.Properties, error)
	Type() Type
}

// ConfigQuerier reports the configurations a device accepts.
type ConfigQuerier interface {
	ChannelMap() []stream.ChannelPosition
	IsConfigSupported(cfg stream.Config) bool
	EnumerateConfigurations() []stream.Config
}

// InputCapable devices can create capture streams.
type InputCapable interface {
	Identifiable
	DefaultInputConfig() stream.Config
	CreateInputStream(ctx context.Context, cfg stream.Config, data stream.DataCallback, onError stream.ErrorCallback) (stream.Handle, error)
}

// OutputCapable devices can create playback streams.
type OutputCapable interface {
	Identifiable
	DefaultOutputConfig() stream.Config
	CreateOutputStream(ctx context.Context, cfg stream.Config, data stream.DataCallback, onError stream.ErrorCallback) (stream.Handle, error)
}

// PropertySource answers node property queries.
// *pipewire.Client is the production implementation.
type PropertySource interface {
	NodeProperties(ctx context.Context, nodeID uint32) (*pipewire.Properties, error)
}

var (
	_ InputCapable   = (*Device)(nil)
	_ OutputCapable  = (*Device)(nil)
	_ ConfigQuerier  = (*Device)(nil)
	_ PropertySource = (*pipewire.Client)(nil)
)
