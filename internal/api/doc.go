// Package api implements the HTTP REST API and WebSocket server for Gray Logic Audio.
//
// This package provides:
//   - Read-only device endpoints backed by the device registry and monitor
//   - Live property probes through the PipeWire bridge
//   - Node snapshot history from SQLite
//   - A WebSocket hub that relays monitor state changes
//
// # Routes
//
//	GET    /api/v1/health
//	POST   /api/v1/auth/token            client credentials -> bearer token
//	DELETE /api/v1/auth/token            revoke the presented token
//	POST   /api/v1/auth/ws-ticket        single-use WebSocket ticket
//	GET    /api/v1/devices[?direction=input|output]
//	GET    /api/v1/devices/{id}
//	GET    /api/v1/devices/{id}/properties
//	GET    /api/v1/devices/{id}/history[?limit=&since=]
//	GET    /api/v1/ws?ticket=
//
// # Security
//
// Bearer tokens are HS256 JWTs issued to configured API clients and recorded
// by JTI so they can be revoked. WebSocket connections use single-use tickets
// to keep tokens out of URLs. With no clients configured authentication is off.
//
// # Lifecycle
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
