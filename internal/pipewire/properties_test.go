package pipewire

import (
	"encoding/json"
	"testing"
)

func TestProperties_SetKeepsFirstPosition(t *testing.T) {
	p := NewProperties()
	p.Set("b", "1")
	p.Set("a", "2")
	p.Set("b", "3")

	if p.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", p.Len())
	}
	keys := p.Keys()
	if keys[0] != "b" || keys[1] != "a" {
		t.Errorf("Keys() = %v, want [b a]", keys)
	}
	if v, ok := p.Get("b"); !ok || v != "3" {
		t.Errorf("Get(b) = %q, %v; want %q, true", v, ok, "3")
	}
}

func TestProperties_NilReceiver(t *testing.T) {
	var p *Properties

	if p.Len() != 0 {
		t.Errorf("Len() = %d, want 0", p.Len())
	}
	if _, ok := p.Get("x"); ok {
		t.Error("Get() on nil reported a value")
	}
	if p.Clone() != nil {
		t.Error("Clone() of nil is not nil")
	}
	if p.Map() != nil {
		t.Error("Map() of nil is not nil")
	}
	if !p.Equal(NewProperties()) {
		t.Error("nil should equal an empty set")
	}
}

func TestProperties_CloneIsIndependent(t *testing.T) {
	orig := PropertiesFromMap(map[string]string{"node.name": "Speakers"})
	clone := orig.Clone()
	clone.Set("node.name", "Headphones")
	clone.Set("extra", "x")

	if v, _ := orig.Get("node.name"); v != "Speakers" {
		t.Errorf("original changed to %q", v)
	}
	if orig.Len() != 1 {
		t.Errorf("original Len() = %d, want 1", orig.Len())
	}
}

func TestPropertiesFromMap_SortedKeys(t *testing.T) {
	p := PropertiesFromMap(map[string]string{"c": "3", "a": "1", "b": "2"})
	keys := p.Keys()
	want := []string{"a", "b", "c"}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("Keys() = %v, want %v", keys, want)
		}
	}
}

func TestProperties_Equal(t *testing.T) {
	a := NewProperties()
	a.Set("x", "1")
	a.Set("y", "2")

	b := NewProperties()
	b.Set("y", "2")
	b.Set("x", "1")

	c := a.Clone()

	if a.Equal(b) {
		t.Error("different order should not be equal")
	}
	if !a.Equal(c) {
		t.Error("clone should be equal")
	}
}

func TestProperties_JSONPreservesOrder(t *testing.T) {
	p := NewProperties()
	p.Set("node.name", "alsa_output.pci")
	p.Set("media.class", "Audio/Sink")
	p.Set("api.alsa.card", "0")

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"node.name":"alsa_output.pci","media.class":"Audio/Sink","api.alsa.card":"0"}`
	if string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}

	var decoded Properties
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !decoded.Equal(p) {
		t.Errorf("decoded = %v, want %v", decoded.Keys(), p.Keys())
	}
}
