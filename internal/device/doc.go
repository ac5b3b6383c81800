// Package device provides the audio device facade for Gray Logic Audio.
//
// A Device represents one PipeWire node (or the system default when no node
// is targeted). It answers identity and property questions through the
// synchronous metadata bridge in package pipewire, and hands stream
// construction to a stream.Builder.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────┐
//	│                          Registry                            │
//	│   configured devices by ID, safe for concurrent use          │
//	│                                                              │
//	│  ┌──────────────┐   ┌─────────────────┐   ┌──────────────┐  │
//	│  │    Device    │──▶│ PropertySource  │   │ stream       │  │
//	│  │ (device.go)  │   │ (pipewire)      │   │ .Builder     │  │
//	│  │ • Name       │   └─────────────────┘   └──────────────┘  │
//	│  │ • Properties │            ▲                    ▲         │
//	│  │ • Streams    │────────────┴────────────────────┘         │
//	│  └──────────────┘                                           │
//	└──────────────────────────────────────────────────────────────┘
//	            │
//	            ▼
//	┌──────────────────────┐
//	│ SnapshotRepository   │
//	│ (node_snapshots)     │
//	└──────────────────────┘
//
// # Capabilities
//
// Callers that only need part of the surface depend on the small interfaces
// Identifiable, InputCapable and OutputCapable. *Device implements all three.
//
// # Usage
//
//	client := pipewire.NewClient(pipewire.Config{}, log)
//	dev := device.New(device.Options{
//	    ID:         "living-room",
//	    TargetNode: &nodeID,
//	    Type:       device.TypeOutput,
//	    Source:     client,
//	    Builder:    stream.Unavailable,
//	})
//	fmt.Println(dev.Name(ctx))
//
// # Thread Safety
//
// Device and Registry are safe for concurrent use. Each Name or Properties
// call runs its own bridge session; nothing is cached between calls.
package device
