package pipewire

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func TestResolveRemote(t *testing.T) {
	tests := []struct {
		name    string
		remote  string
		env     map[string]string
		want    string
		wantErr bool
	}{
		{
			name:   "absolute path",
			remote: "/run/user/1000/pipewire-0",
			want:   "/run/user/1000/pipewire-0",
		},
		{
			name:   "unix URL",
			remote: "unix:///tmp/pw.sock",
			want:   "/tmp/pw.sock",
		},
		{
			name:    "unsupported scheme",
			remote:  "tcp://localhost:4713",
			wantErr: true,
		},
		{
			name:   "name in XDG_RUNTIME_DIR",
			remote: "pipewire-1",
			env:    map[string]string{"XDG_RUNTIME_DIR": "/run/user/1000"},
			want:   filepath.Join("/run/user/1000", "pipewire-1"),
		},
		{
			name:   "PIPEWIRE_RUNTIME_DIR wins",
			remote: "pipewire-0",
			env: map[string]string{
				"PIPEWIRE_RUNTIME_DIR": "/custom",
				"XDG_RUNTIME_DIR":      "/run/user/1000",
			},
			want: filepath.Join("/custom", "pipewire-0"),
		},
		{
			name: "default from PIPEWIRE_REMOTE",
			env: map[string]string{
				"PIPEWIRE_REMOTE": "/srv/pw.sock",
			},
			want: "/srv/pw.sock",
		},
		{
			name: "default name",
			env:  map[string]string{"XDG_RUNTIME_DIR": "/run/user/42"},
			want: filepath.Join("/run/user/42", DefaultRemote),
		},
		{
			name:    "no runtime dir",
			remote:  "pipewire-0",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range []string{"PIPEWIRE_REMOTE", "PIPEWIRE_RUNTIME_DIR", "XDG_RUNTIME_DIR", "USERPROFILE"} {
				t.Setenv(key, tt.env[key])
			}

			got, err := resolveRemote(tt.remote)
			if (err != nil) != tt.wantErr {
				t.Fatalf("resolveRemote(%q) error = %v, wantErr %v", tt.remote, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("resolveRemote(%q) = %q, want %q", tt.remote, got, tt.want)
			}
		})
	}
}

func TestDial_NoServer(t *testing.T) {
	_, err := OpenSession(context.Background(), Config{Remote: filepath.Join(t.TempDir(), "missing")}, nil)
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("OpenSession() error = %v, want ErrConnectionFailed", err)
	}
}

func TestDial_Handshake(t *testing.T) {
	server := NewMockPipeWireServer(t, mockScenario{})

	session, err := OpenSession(context.Background(), Config{
		Remote:     server.Remote(),
		ClientName: "test-client",
		Properties: map[string]string{"application.process.id": "1234"},
	}, nil)
	if err != nil {
		t.Fatalf("OpenSession() error = %v", err)
	}
	defer session.Close()

	// A completed query guarantees the mock has read everything sent before.
	if _, err := queryNode(context.Background(), session, 1); err != nil {
		t.Fatalf("queryNode() error = %v", err)
	}

	got := server.Received()
	if len(got) < 4 {
		t.Fatalf("received %d messages, want at least 4", len(got))
	}
	want := []struct {
		id     uint32
		opcode uint8
	}{
		{CoreID, coreMethodHello},
		{ClientID, clientMethodUpdateProperties},
		{CoreID, coreMethodGetRegistry},
		{CoreID, coreMethodSync},
	}
	for i, w := range want {
		if got[i].id != w.id || got[i].opcode != w.opcode {
			t.Errorf("message %d = id %d opcode %d, want id %d opcode %d",
				i, got[i].id, got[i].opcode, w.id, w.opcode)
		}
	}

	props := server.ClientProps()
	if v, _ := props.Get(KeyApplicationName); v != "test-client" {
		t.Errorf("application.name = %q, want %q", v, "test-client")
	}
	if v, _ := props.Get("application.process.id"); v != "1234" {
		t.Errorf("application.process.id = %q, want %q", v, "1234")
	}
}
