package stream

import (
	"context"
	"fmt"
)

// Direction is the data flow of a stream.
type Direction int

// Stream directions.
const (
	Input Direction = iota
	Output
)

func (d Direction) String() string {
	if d == Input {
		return "input"
	}
	return "output"
}

// Request is everything a Builder receives to construct one stream.
// A Request owns its data: the device that produced it keeps no reference.
type Request struct {
	Direction Direction

	// ObjectSerial pins the stream to one server object. Nil lets the
	// server route to the default device.
	ObjectSerial *string

	// Name labels the stream on the server.
	Name string

	Config Config

	// Properties are raw key/value bytes passed through to the server.
	Properties map[string][]byte
}

// Clone returns a deep copy of r.
func (r Request) Clone() Request {
	out := r
	if r.ObjectSerial != nil {
		s := *r.ObjectSerial
		out.ObjectSerial = &s
	}
	out.Config = r.Config.clone()
	if r.Properties != nil {
		out.Properties = make(map[string][]byte, len(r.Properties))
		for k, v := range r.Properties {
			out.Properties[k] = append([]byte(nil), v...)
		}
	}
	return out
}

// CallbackInfo accompanies each data callback.
type CallbackInfo struct {
	Frames int
}

// DataCallback is invoked from the stream's real-time context with one
// buffer of interleaved samples.
type DataCallback func(data []byte, info CallbackInfo)

// ErrorCallback receives errors raised while the stream runs.
type ErrorCallback func(err error)

// Handle controls a constructed stream.
type Handle interface {
	Play() error
	Pause() error
	Close() error
}

// Builder constructs streams. Implementations own the stream lifecycle.
type Builder interface {
	Build(ctx context.Context, req Request, data DataCallback, onError ErrorCallback) (Handle, error)
}

// BuilderFunc adapts a function to Builder.
type BuilderFunc func(ctx context.Context, req Request, data DataCallback, onError ErrorCallback) (Handle, error)

// Build calls f.
func (f BuilderFunc) Build(ctx context.Context, req Request, data DataCallback, onError ErrorCallback) (Handle, error) {
	return f(ctx, req, data, onError)
}

// Unavailable is a Builder for deployments without a stream backend.
// Every request fails with ErrStreamConstruction.
var Unavailable Builder = BuilderFunc(func(_ context.Context, req Request, _ DataCallback, _ ErrorCallback) (Handle, error) {
	return nil, fmt.Errorf("%w: no stream backend configured for %s stream %q", ErrStreamConstruction, req.Direction, req.Name)
})
