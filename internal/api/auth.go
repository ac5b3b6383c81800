package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-audio/internal/auth"
)

// ticketTTL is how long a WebSocket ticket is valid.
const ticketTTL = 60 * time.Second

// tokenRequest is the request body for POST /auth/token.
type tokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// tokenResponse is the response body for POST /auth/token.
type tokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int       `json:"expires_in"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// ticketStore holds pending WebSocket authentication tickets.
// Tickets are single-use and expire after ticketTTL.
type ticketStore struct {
	tickets map[string]ticketEntry
	mu      sync.Mutex
}

type ticketEntry struct {
	clientID  string
	expiresAt time.Time
}

func newTicketStore() *ticketStore {
	return &ticketStore{tickets: make(map[string]ticketEntry)}
}

// handleIssueToken exchanges client credentials for an access token.
func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.ClientID == "" || req.ClientSecret == "" {
		writeBadRequest(w, "client_id and client_secret are required")
		return
	}

	signed, record, err := s.issuer.Issue(r.Context(), req.ClientID, req.ClientSecret)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.logger.Warn("token request rejected", "client_id", req.ClientID)
			writeUnauthorized(w, "invalid credentials")
			return
		}
		s.logger.Error("failed to issue token", "client_id", req.ClientID, "error", err)
		writeInternalError(w, "failed to issue token")
		return
	}

	s.logger.Info("access token issued", "client_id", record.ClientID, "jti", record.ID)
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int(time.Until(record.ExpiresAt).Round(time.Second).Seconds()),
		ExpiresAt:   record.ExpiresAt,
	})
}

// handleRevokeToken revokes the token used to authenticate the request.
func (s *Server) handleRevokeToken(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeUnauthorized(w, "missing bearer token")
		return
	}

	if err := s.issuer.Revoke(r.Context(), claims.ID); err != nil {
		if errors.Is(err, auth.ErrTokenNotFound) {
			writeNotFound(w, "token not found")
			return
		}
		s.logger.Error("failed to revoke token", "jti", claims.ID, "error", err)
		writeInternalError(w, "failed to revoke token")
		return
	}

	s.logger.Info("access token revoked", "client_id", claims.Subject, "jti", claims.ID)
	w.WriteHeader(http.StatusNoContent)
}

// handleWSTicket generates a single-use WebSocket authentication ticket.
// The client uses this ticket to authenticate the WebSocket connection
// without exposing the JWT in the URL.
func (s *Server) handleWSTicket(w http.ResponseWriter, r *http.Request) {
	var clientID string
	if claims := claimsFromContext(r.Context()); claims != nil {
		clientID = claims.Subject
	}

	ticket := s.tickets.issue(clientID)

	writeJSON(w, http.StatusOK, map[string]any{
		"ticket":     ticket,
		"expires_in": int(ticketTTL.Seconds()),
	})
}

// issue stores a new ticket for clientID and returns it.
func (t *ticketStore) issue(clientID string) string {
	ticket := generateTicket()

	t.mu.Lock()
	t.tickets[ticket] = ticketEntry{
		clientID:  clientID,
		expiresAt: time.Now().Add(ticketTTL),
	}
	t.mu.Unlock()

	return ticket
}

// consume checks if a ticket is valid and removes it (single-use).
func (t *ticketStore) consume(ticket string) (ticketEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.tickets[ticket]
	if !ok {
		return ticketEntry{}, false
	}
	delete(t.tickets, ticket)

	if !time.Now().Before(entry.expiresAt) {
		return ticketEntry{}, false
	}
	return entry, true
}

// cleanExpired removes expired tickets from the store.
func (t *ticketStore) cleanExpired() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	for ticket, entry := range t.tickets {
		if now.After(entry.expiresAt) {
			delete(t.tickets, ticket)
		}
	}
}

// size returns the number of pending tickets.
func (t *ticketStore) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.tickets)
}

// ticketBytes is the number of random bytes used for WebSocket tickets.
const ticketBytes = 32

// generateTicket creates a cryptographically random ticket string.
func generateTicket() string {
	b := make([]byte, ticketBytes)
	//nolint:errcheck // crypto/rand.Read always returns len(b) on supported platforms
	rand.Read(b)
	return hex.EncodeToString(b)
}

// cleanTicketsLoop runs cleanExpired periodically until the context is cancelled.
func (s *Server) cleanTicketsLoop(ctx context.Context) {
	ticker := time.NewTicker(ticketTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tickets.cleanExpired()
		}
	}
}
