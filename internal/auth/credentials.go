package auth

import (
	"crypto/subtle"
	"sort"
)

// Credentials checks client id/secret pairs from configuration.
type Credentials struct {
	clients map[string]string
}

// NewCredentials copies the configured client secrets.
// Clients with an empty secret can never authenticate.
func NewCredentials(clients map[string]string) *Credentials {
	c := &Credentials{clients: make(map[string]string, len(clients))}
	for id, secret := range clients {
		if secret != "" {
			c.clients[id] = secret
		}
	}
	return c
}

// Authenticate verifies a client secret in constant time.
// Unknown clients and wrong secrets both return ErrInvalidCredentials.
func (c *Credentials) Authenticate(clientID, secret string) error {
	want, ok := c.clients[clientID]
	if !ok {
		// Compare anyway so timing does not reveal which ids exist.
		subtle.ConstantTimeCompare([]byte(secret), []byte(secret))
		return ErrInvalidCredentials
	}
	if subtle.ConstantTimeCompare([]byte(secret), []byte(want)) != 1 {
		return ErrInvalidCredentials
	}
	return nil
}

// Clients returns the configured client ids, sorted.
func (c *Credentials) Clients() []string {
	ids := make([]string, 0, len(c.clients))
	for id := range c.clients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
