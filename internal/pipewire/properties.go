package pipewire

import (
	"bytes"
	"encoding/json"
	"sort"
)

// Well-known property keys.
const (
	KeyNodeName        = "node.name"
	KeyNodeDescription = "node.description"
	KeyNodeNick        = "node.nick"
	KeyMediaClass      = "media.class"
	KeyObjectSerial    = "object.serial"
	KeyApplicationName = "application.name"
)

// Properties is an ordered string dictionary.
//
// Keys are unique and keep the position of their first insertion. Setting an
// existing key replaces its value (last write wins). The zero value is not
// usable; create one with NewProperties or PropertiesFromMap.
type Properties struct {
	keys   []string
	values map[string]string
}

// NewProperties returns an empty property set.
func NewProperties() *Properties {
	return &Properties{values: make(map[string]string)}
}

// PropertiesFromMap builds a property set from m with keys in sorted order.
func PropertiesFromMap(m map[string]string) *Properties {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	p := NewProperties()
	for _, k := range keys {
		p.Set(k, m[k])
	}
	return p
}

// Set stores value under key.
func (p *Properties) Set(key, value string) {
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = value
}

// Get returns the value stored under key.
func (p *Properties) Get(key string) (string, bool) {
	if p == nil {
		return "", false
	}
	v, ok := p.values[key]
	return v, ok
}

// Len returns the number of entries.
func (p *Properties) Len() int {
	if p == nil {
		return 0
	}
	return len(p.keys)
}

// Keys returns the keys in insertion order.
func (p *Properties) Keys() []string {
	if p == nil {
		return nil
	}
	out := make([]string, len(p.keys))
	copy(out, p.keys)
	return out
}

// Range calls fn for each entry in order until fn returns false.
func (p *Properties) Range(fn func(key, value string) bool) {
	if p == nil {
		return
	}
	for _, k := range p.keys {
		if !fn(k, p.values[k]) {
			return
		}
	}
}

// Clone returns an independent copy.
func (p *Properties) Clone() *Properties {
	if p == nil {
		return nil
	}
	c := &Properties{
		keys:   make([]string, len(p.keys)),
		values: make(map[string]string, len(p.values)),
	}
	copy(c.keys, p.keys)
	for k, v := range p.values {
		c.values[k] = v
	}
	return c
}

// Map returns the entries as a plain map.
func (p *Properties) Map() map[string]string {
	if p == nil {
		return nil
	}
	m := make(map[string]string, len(p.values))
	for k, v := range p.values {
		m[k] = v
	}
	return m
}

// Equal reports whether p and o hold the same entries in the same order.
func (p *Properties) Equal(o *Properties) bool {
	if p.Len() != o.Len() {
		return false
	}
	if p.Len() == 0 {
		return true
	}
	for i, k := range p.keys {
		if o.keys[i] != k || o.values[k] != p.values[k] {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the entries as a JSON object preserving key order.
func (p *Properties) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range p.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(p.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, keeping the document's key order.
func (p *Properties) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return err
	}
	p.keys = nil
	p.values = make(map[string]string)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		var value string
		if err := dec.Decode(&value); err != nil {
			return err
		}
		p.Set(key, value)
	}
	_, err := dec.Token()
	return err
}
