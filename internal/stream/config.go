package stream

import (
	"fmt"
	"math/bits"
	"strings"
)

// DefaultSampleRate is the rate, in Hz, used by default configurations.
const DefaultSampleRate = 48000

// ChannelPosition names one speaker role.
type ChannelPosition uint8

// Channel positions, in mask bit order.
const (
	ChannelFrontLeft ChannelPosition = iota
	ChannelFrontRight
	ChannelFrontCenter
	ChannelLowFrequency
	ChannelRearLeft
	ChannelRearRight
	ChannelSideLeft
	ChannelSideRight
	ChannelMono
)

var channelNames = [...]string{"FL", "FR", "FC", "LFE", "RL", "RR", "SL", "SR", "MONO"}

// String returns the short PipeWire-style name (FL, FR, ...).
func (p ChannelPosition) String() string {
	if int(p) < len(channelNames) {
		return channelNames[p]
	}
	return fmt.Sprintf("AUX%d", p)
}

// ChannelMask is a set of channel positions, one bit per position.
type ChannelMask uint64

// ChannelsStereo selects front left and front right.
const ChannelsStereo = ChannelMask(1<<ChannelFrontLeft | 1<<ChannelFrontRight)

// Has reports whether p is selected.
func (m ChannelMask) Has(p ChannelPosition) bool {
	return m&(1<<p) != 0
}

// Count returns the number of selected channels.
func (m ChannelMask) Count() int {
	return bits.OnesCount64(uint64(m))
}

// Positions returns the selected positions in bit order.
func (m ChannelMask) Positions() []ChannelPosition {
	out := make([]ChannelPosition, 0, m.Count())
	for p := ChannelPosition(0); p < 64; p++ {
		if m.Has(p) {
			out = append(out, p)
		}
	}
	return out
}

// String returns the positions joined by commas, e.g. "FL,FR".
func (m ChannelMask) String() string {
	positions := m.Positions()
	names := make([]string, len(positions))
	for i, p := range positions {
		names[i] = p.String()
	}
	return strings.Join(names, ",")
}

// BufferSizeRange bounds the buffer size in frames. Nil bounds are unset.
type BufferSizeRange struct {
	Min *uint32 `json:"min,omitempty"`
	Max *uint32 `json:"max,omitempty"`
}

// Config is a requested stream configuration.
type Config struct {
	SampleRate float64         `json:"sample_rate"`
	Channels   ChannelMask     `json:"channels"`
	Exclusive  bool            `json:"exclusive"`
	BufferSize BufferSizeRange `json:"buffer_size"`
}

// DefaultConfig returns 48 kHz stereo, shared, with no buffer bounds.
func DefaultConfig() Config {
	return Config{
		SampleRate: DefaultSampleRate,
		Channels:   ChannelsStereo,
	}
}

// Validate checks that the configuration can describe a stream.
func (c Config) Validate() error {
	var errs []string
	if c.SampleRate <= 0 {
		errs = append(errs, "sample rate must be positive")
	}
	if c.Channels == 0 {
		errs = append(errs, "at least one channel is required")
	}
	if c.BufferSize.Min != nil && c.BufferSize.Max != nil && *c.BufferSize.Min > *c.BufferSize.Max {
		errs = append(errs, "buffer size min exceeds max")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return nil
}

// clone copies c, including the buffer bounds it points to.
func (c Config) clone() Config {
	out := c
	if c.BufferSize.Min != nil {
		v := *c.BufferSize.Min
		out.BufferSize.Min = &v
	}
	if c.BufferSize.Max != nil {
		v := *c.BufferSize.Max
		out.BufferSize.Max = &v
	}
	return out
}
