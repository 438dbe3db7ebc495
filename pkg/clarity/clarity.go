// Package clarity implements the canonical wire serialization for
// Clarity-shaped values. Two logically equal values always serialize to the
// same bytes, so digests computed by independent clients match the verifier.
package clarity

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
)

// Wire type tags. The full consensus format defines more tags than this
// module models; the unmodeled ones are listed so the numbering stays honest.
const (
	tagInt               byte = 0x00
	tagUInt              byte = 0x01
	tagBuffer            byte = 0x02
	tagBoolTrue          byte = 0x03
	tagBoolFalse         byte = 0x04
	tagPrincipalStandard byte = 0x05
	tagPrincipalContract byte = 0x06
	tagResponseOk        byte = 0x07
	tagResponseErr       byte = 0x08
	tagOptionalNone      byte = 0x09
	tagOptionalSome      byte = 0x0a
	tagList              byte = 0x0b
	tagTuple             byte = 0x0c
	tagStringASCII       byte = 0x0d
	tagStringUTF8        byte = 0x0e
)

// maxNameLen bounds tuple field names on the wire.
const maxNameLen = 128

// Value is a serializable structured-data value.
type Value interface {
	writeTo(buf *bytes.Buffer) error
}

// Serialize encodes v into its canonical byte sequence.
func Serialize(v Value) ([]byte, error) {
	if v == nil {
		return nil, fmt.Errorf("clarity: cannot serialize nil value")
	}
	var buf bytes.Buffer
	if err := v.writeTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UInt is an unsigned integer value. The wire format carries 128 bits; values
// in this module fit in 64, so the upper quadword is always zero.
type UInt uint64

func (u UInt) writeTo(buf *bytes.Buffer) error {
	buf.WriteByte(tagUInt)
	var payload [16]byte
	binary.BigEndian.PutUint64(payload[8:], uint64(u))
	buf.Write(payload[:])
	return nil
}

// Bool is a boolean value.
type Bool bool

func (b Bool) writeTo(buf *bytes.Buffer) error {
	if b {
		buf.WriteByte(tagBoolTrue)
	} else {
		buf.WriteByte(tagBoolFalse)
	}
	return nil
}

// Buffer is an opaque byte string.
type Buffer []byte

func (b Buffer) writeTo(buf *bytes.Buffer) error {
	buf.WriteByte(tagBuffer)
	writeLen(buf, len(b))
	buf.Write(b)
	return nil
}

// StringASCII is a printable-ASCII string value.
type StringASCII string

func (s StringASCII) writeTo(buf *bytes.Buffer) error {
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7f {
			return fmt.Errorf("clarity: string-ascii contains non-ascii byte 0x%02x", s[i])
		}
	}
	buf.WriteByte(tagStringASCII)
	writeLen(buf, len(s))
	buf.WriteString(string(s))
	return nil
}

// StringUTF8 is a UTF-8 string value.
type StringUTF8 string

func (s StringUTF8) writeTo(buf *bytes.Buffer) error {
	buf.WriteByte(tagStringUTF8)
	writeLen(buf, len(s))
	buf.WriteString(string(s))
	return nil
}

// List is an ordered sequence of values.
type List []Value

func (l List) writeTo(buf *bytes.Buffer) error {
	buf.WriteByte(tagList)
	writeLen(buf, len(l))
	for i, item := range l {
		if item == nil {
			return fmt.Errorf("clarity: nil value at list index %d", i)
		}
		if err := item.writeTo(buf); err != nil {
			return err
		}
	}
	return nil
}

// Tuple is a set of named fields. Serialization orders entries by key, so a
// tuple has exactly one wire representation regardless of construction order.
type Tuple map[string]Value

func (t Tuple) writeTo(buf *bytes.Buffer) error {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf.WriteByte(tagTuple)
	writeLen(buf, len(keys))
	for _, k := range keys {
		if err := writeName(buf, k); err != nil {
			return err
		}
		v := t[k]
		if v == nil {
			return fmt.Errorf("clarity: nil value for tuple key %q", k)
		}
		if err := v.writeTo(buf); err != nil {
			return err
		}
	}
	return nil
}

func writeLen(buf *bytes.Buffer, n int) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(n))
	buf.Write(b[:])
}

// writeName encodes a tuple field name as a 1-byte-length-prefixed ASCII string.
func writeName(buf *bytes.Buffer, name string) error {
	if len(name) == 0 || len(name) > maxNameLen {
		return fmt.Errorf("clarity: tuple key %q length must be 1..%d", name, maxNameLen)
	}
	for i := 0; i < len(name); i++ {
		if name[i] > 0x7f {
			return fmt.Errorf("clarity: tuple key %q contains non-ascii byte", name)
		}
	}
	buf.WriteByte(byte(len(name)))
	buf.WriteString(name)
	return nil
}
