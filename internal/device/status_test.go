package device

import (
	"context"
	"errors"
	"testing"

	"github.com/nerrad567/gray-logic-audio/internal/pipewire"
)

func TestProbe(t *testing.T) {
	src := &fakeSource{nodes: map[uint32]*pipewire.Properties{
		42: nodeProps("node.name", "Speakers", "media.class", "Audio/Sink"),
	}}
	failing := &fakeSource{err: errors.New("socket gone")}

	tests := []struct {
		name         string
		opts         Options
		wantPresence Presence
		wantName     string
		wantProps    bool
		wantCalls    int
	}{
		{"default device", Options{Source: src}, PresenceDefault, NameDefault, false, 0},
		{"present", Options{TargetNode: uint32Ptr(42), Source: src}, PresencePresent, "Speakers", true, 1},
		{"absent", Options{TargetNode: uint32Ptr(99), Source: src}, PresenceAbsent, NameUnknown, false, 1},
		{"error", Options{TargetNode: uint32Ptr(42), Source: failing}, PresenceError, NameError, false, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := tt.opts.Source.(*fakeSource)
			before := source.Calls()
			d := newTestDevice(t, tt.opts)

			st := Probe(context.Background(), d)

			if st.Presence != tt.wantPresence {
				t.Errorf("Presence = %q, want %q", st.Presence, tt.wantPresence)
			}
			if st.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", st.Name, tt.wantName)
			}
			if (st.Properties != nil) != tt.wantProps {
				t.Errorf("Properties = %v, wantProps %v", st.Properties, tt.wantProps)
			}
			if got := source.Calls() - before; got != tt.wantCalls {
				t.Errorf("bridge calls = %d, want %d", got, tt.wantCalls)
			}
			if tt.wantPresence == PresenceError && st.Error == "" {
				t.Error("Error is empty for a failed probe")
			}
			if st.CheckedAt.IsZero() {
				t.Error("CheckedAt not set")
			}
		})
	}
}

func TestStatus_Changed(t *testing.T) {
	a := Status{Presence: PresencePresent, Properties: nodeProps("node.name", "A")}
	same := Status{Presence: PresencePresent, Properties: nodeProps("node.name", "A")}
	renamed := Status{Presence: PresencePresent, Properties: nodeProps("node.name", "B")}
	gone := Status{Presence: PresenceAbsent}

	if a.Changed(same) {
		t.Error("identical statuses reported as changed")
	}
	if !a.Changed(renamed) {
		t.Error("property change not detected")
	}
	if !a.Changed(gone) {
		t.Error("presence change not detected")
	}
	if !gone.Changed(Status{}) {
		t.Error("first observation should count as a change")
	}
}
