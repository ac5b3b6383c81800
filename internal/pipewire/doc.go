// Package pipewire is a minimal client for the PipeWire native protocol.
//
// It speaks just enough of the protocol to answer metadata questions about
// the server's object graph: connect, say hello, bind the registry, request a
// sync barrier and collect the globals announced before it is acknowledged.
//
// # Architecture
//
//	┌──────────────┐   unix socket   ┌──────────────────┐
//	│  Session     │◄───────────────►│  PipeWire server │
//	│  MainLoop    │  framed POD     │  (pipewire-0)    │
//	│  Core        │  messages       └──────────────────┘
//	│  Registry    │
//	└──────────────┘
//
// A Session is single use. It owns one connection, one event loop and the
// listeners attached to the core and registry proxies. Listener callbacks
// are invoked synchronously by MainLoop.Run on the calling goroutine, so
// state shared between callbacks and the driving code needs no locking.
//
// # Sync barrier
//
// Core.Sync returns a sequence token immediately. The server echoes the token
// in a Done event once every request sent before it has been processed, which
// means all globals announced in response to GetRegistry arrive first.
//
// Usage:
//
//	client := pipewire.NewClient(pipewire.Config{}, logger)
//	props, err := client.NodeProperties(ctx, 42)
//	if err != nil {
//	    return err
//	}
//	if props == nil {
//	    // node 42 is not present
//	}
package pipewire
