// Package auth provides bearer-token authentication for the Gray Logic Audio API.
//
// API clients are configured under security.jwt.clients as id/secret pairs.
// A client exchanges its credentials for a short-lived HS256 access token:
//   - Credentials are compared in constant time
//   - Every issued token is recorded in api_tokens by its JTI
//   - Revoked or expired tokens are rejected even when the signature is valid
//
// There is no user store: the service is operated by other Gray Logic
// components and installers' tooling, not by household members.
package auth
