package pipewire

import (
	"encoding/binary"
	"fmt"
	"math"
)

// SPA POD type identifiers used by the native protocol.
const (
	podTypeNone   uint32 = 1
	podTypeBool   uint32 = 2
	podTypeID     uint32 = 3
	podTypeInt    uint32 = 4
	podTypeLong   uint32 = 5
	podTypeFloat  uint32 = 6
	podTypeDouble uint32 = 7
	podTypeString uint32 = 8
	podTypeBytes  uint32 = 9
	podTypeStruct uint32 = 14
	podTypeObject uint32 = 15
	podTypeFd     uint32 = 18
)

// podHeaderSize is the size of a POD header: body size(4) + type(4).
const podHeaderSize = 8

// podAlign rounds n up to the 8-byte POD alignment.
func podAlign(n int) int {
	return (n + 7) &^ 7
}

// podBuilder serialises values into a POD byte stream.
// All values are written in native byte order, as the protocol requires.
type podBuilder struct {
	buf []byte
}

func (b *podBuilder) header(size int, typ uint32) {
	b.buf = binary.NativeEndian.AppendUint32(b.buf, uint32(size)) //nolint:gosec // bounded by message size
	b.buf = binary.NativeEndian.AppendUint32(b.buf, typ)
}

func (b *podBuilder) pad(n int) {
	for range podAlign(n) - n {
		b.buf = append(b.buf, 0)
	}
}

// None writes a null value.
func (b *podBuilder) None() {
	b.header(0, podTypeNone)
}

// Bool writes a boolean as a 32-bit integer.
func (b *podBuilder) Bool(v bool) {
	var i uint32
	if v {
		i = 1
	}
	b.header(4, podTypeBool)
	b.buf = binary.NativeEndian.AppendUint32(b.buf, i)
	b.pad(4)
}

// ID writes an enumerated identifier.
func (b *podBuilder) ID(v uint32) {
	b.header(4, podTypeID)
	b.buf = binary.NativeEndian.AppendUint32(b.buf, v)
	b.pad(4)
}

// Int writes a signed 32-bit integer.
func (b *podBuilder) Int(v int32) {
	b.header(4, podTypeInt)
	b.buf = binary.NativeEndian.AppendUint32(b.buf, uint32(v)) //nolint:gosec // bit reinterpretation
	b.pad(4)
}

// Long writes a signed 64-bit integer.
func (b *podBuilder) Long(v int64) {
	b.header(8, podTypeLong)
	b.buf = binary.NativeEndian.AppendUint64(b.buf, uint64(v)) //nolint:gosec // bit reinterpretation
}

// Double writes a 64-bit float.
func (b *podBuilder) Double(v float64) {
	b.header(8, podTypeDouble)
	b.buf = binary.NativeEndian.AppendUint64(b.buf, math.Float64bits(v))
}

// String writes a NUL-terminated string.
func (b *podBuilder) String(s string) {
	size := len(s) + 1
	b.header(size, podTypeString)
	b.buf = append(b.buf, s...)
	b.buf = append(b.buf, 0)
	b.pad(size)
}

// Bytes writes an opaque byte blob.
func (b *podBuilder) Bytes(p []byte) {
	b.header(len(p), podTypeBytes)
	b.buf = append(b.buf, p...)
	b.pad(len(p))
}

// Struct writes a struct whose members are produced by fn.
func (b *podBuilder) Struct(fn func(*podBuilder)) {
	start := len(b.buf)
	b.header(0, podTypeStruct)
	fn(b)
	size := len(b.buf) - start - podHeaderSize
	binary.NativeEndian.PutUint32(b.buf[start:], uint32(size)) //nolint:gosec // bounded by message size
}

// Dict writes a property dictionary as {Int n, (String key, String value)*}.
func (b *podBuilder) Dict(props *Properties) {
	b.Int(int32(props.Len())) //nolint:gosec // dictionaries are small
	props.Range(func(key, value string) bool {
		b.String(key)
		b.String(value)
		return true
	})
}

// bytes returns the serialised stream.
func (b *podBuilder) bytes() []byte {
	return b.buf
}

// podParser reads values sequentially from a POD byte stream.
type podParser struct {
	data []byte
	off  int
}

func newPodParser(data []byte) *podParser {
	return &podParser{data: data}
}

// next returns the type and body of the next POD and advances past its padding.
func (p *podParser) next() (uint32, []byte, error) {
	if len(p.data)-p.off < podHeaderSize {
		return 0, nil, fmt.Errorf("%w: truncated pod header at offset %d", ErrProtocol, p.off)
	}
	size := int(binary.NativeEndian.Uint32(p.data[p.off:]))
	typ := binary.NativeEndian.Uint32(p.data[p.off+4:])
	start := p.off + podHeaderSize
	if size < 0 || size > len(p.data)-start {
		return 0, nil, fmt.Errorf("%w: pod size %d exceeds remaining %d bytes", ErrProtocol, size, len(p.data)-start)
	}
	body := p.data[start : start+size]
	p.off = start + podAlign(size)
	if p.off > len(p.data) {
		p.off = len(p.data)
	}
	return typ, body, nil
}

func (p *podParser) expect(want uint32, minSize int) ([]byte, error) {
	typ, body, err := p.next()
	if err != nil {
		return nil, err
	}
	if typ != want {
		return nil, fmt.Errorf("%w: pod type %d, want %d", ErrProtocol, typ, want)
	}
	if len(body) < minSize {
		return nil, fmt.Errorf("%w: pod type %d body too short (%d bytes)", ErrProtocol, typ, len(body))
	}
	return body, nil
}

// Done reports whether every value has been consumed.
func (p *podParser) Done() bool {
	return p.off >= len(p.data)
}

// Int reads a signed 32-bit integer.
func (p *podParser) Int() (int32, error) {
	body, err := p.expect(podTypeInt, 4)
	if err != nil {
		return 0, err
	}
	return int32(binary.NativeEndian.Uint32(body)), nil //nolint:gosec // bit reinterpretation
}

// ID reads an enumerated identifier.
func (p *podParser) ID() (uint32, error) {
	body, err := p.expect(podTypeID, 4)
	if err != nil {
		return 0, err
	}
	return binary.NativeEndian.Uint32(body), nil
}

// Long reads a signed 64-bit integer.
func (p *podParser) Long() (int64, error) {
	body, err := p.expect(podTypeLong, 8)
	if err != nil {
		return 0, err
	}
	return int64(binary.NativeEndian.Uint64(body)), nil //nolint:gosec // bit reinterpretation
}

// String reads a string. A None value decodes as the empty string.
func (p *podParser) String() (string, error) {
	typ, body, err := p.next()
	if err != nil {
		return "", err
	}
	switch typ {
	case podTypeNone:
		return "", nil
	case podTypeString:
		if len(body) == 0 || body[len(body)-1] != 0 {
			return "", fmt.Errorf("%w: string not NUL-terminated", ErrProtocol)
		}
		return string(body[:len(body)-1]), nil
	default:
		return "", fmt.Errorf("%w: pod type %d, want string", ErrProtocol, typ)
	}
}

// Struct reads a struct and returns a parser over its members.
func (p *podParser) Struct() (*podParser, error) {
	body, err := p.expect(podTypeStruct, 0)
	if err != nil {
		return nil, err
	}
	return newPodParser(body), nil
}

// Skip discards the next value whatever its type.
func (p *podParser) Skip() error {
	_, _, err := p.next()
	return err
}

// Dict reads a property dictionary written by podBuilder.Dict.
// Duplicate keys resolve last-write-wins.
func (p *podParser) Dict() (*Properties, error) {
	n, err := p.Int()
	if err != nil {
		return nil, fmt.Errorf("dict size: %w", err)
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: negative dict size %d", ErrProtocol, n)
	}
	props := NewProperties()
	for i := range int(n) {
		key, err := p.String()
		if err != nil {
			return nil, fmt.Errorf("dict key %d: %w", i, err)
		}
		value, err := p.String()
		if err != nil {
			return nil, fmt.Errorf("dict value %q: %w", key, err)
		}
		props.Set(key, value)
	}
	return props, nil
}
