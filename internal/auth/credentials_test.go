package auth

import (
	"errors"
	"slices"
	"testing"
)

func TestCredentials_Authenticate(t *testing.T) {
	creds := NewCredentials(map[string]string{
		"ops-console": "s3cret",
		"scene-agent": "hunter2",
		"disabled":    "",
	})

	tests := []struct {
		name     string
		clientID string
		secret   string
		wantErr  error
	}{
		{"valid", "ops-console", "s3cret", nil},
		{"second client", "scene-agent", "hunter2", nil},
		{"wrong secret", "ops-console", "hunter2", ErrInvalidCredentials},
		{"unknown client", "intruder", "s3cret", ErrInvalidCredentials},
		{"empty secret configured", "disabled", "", ErrInvalidCredentials},
		{"prefix of secret", "ops-console", "s3c", ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := creds.Authenticate(tt.clientID, tt.secret)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Authenticate(%q) error = %v, want %v", tt.clientID, err, tt.wantErr)
			}
		})
	}
}

func TestCredentials_Clients(t *testing.T) {
	creds := NewCredentials(map[string]string{"b": "x", "a": "y", "c": ""})
	if got, want := creds.Clients(), []string{"a", "b"}; !slices.Equal(got, want) {
		t.Errorf("Clients() = %v, want %v", got, want)
	}
}
