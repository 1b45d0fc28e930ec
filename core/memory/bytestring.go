// File: core/memory/bytestring.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// FixedSizeByteString is a bounded-capacity byte string. Its bytes live in
// a heap slice allocated once at construction, so unlike the other types
// in this package it holds a heap pointer and is not relocatable.
// Go generics cannot parametrize an array length by a type parameter the
// way the source does (`[CAPACITY]u8`), so capacity here is a runtime
// field fixed at construction instead of a compile-time const generic;
// every other invariant (never reallocates, push/remove fail or panic
// rather than grow) carries over unchanged.

package memory

import (
	"fmt"

	"github.com/momentics/zerocopy-ipc/api"
)

// FixedSizeByteString holds at most Capacity() bytes in a slice that is
// allocated exactly once and never resized.
type FixedSizeByteString struct {
	capacity int
	length   int
	data     []byte
}

// NewFixedSizeByteString allocates an empty string with the given fixed
// capacity.
func NewFixedSizeByteString(capacity int) *FixedSizeByteString {
	return &FixedSizeByteString{capacity: capacity, data: make([]byte, capacity)}
}

// FixedSizeByteStringFromBytes builds a string pre-populated with bytes;
// fails with api.ErrSizeTooLarge if bytes does not fit within capacity.
func FixedSizeByteStringFromBytes(capacity int, bytes []byte) (*FixedSizeByteString, error) {
	s := NewFixedSizeByteString(capacity)
	if err := s.PushBytes(bytes); err != nil {
		return nil, err
	}
	return s, nil
}

// Capacity returns the maximum number of bytes this string can ever hold.
func (s *FixedSizeByteString) Capacity() int { return s.capacity }

// Len returns the number of bytes currently stored.
func (s *FixedSizeByteString) Len() int { return s.length }

// Bytes returns a view over the currently stored bytes. The returned slice
// aliases internal storage and must not be retained past the next mutation.
func (s *FixedSizeByteString) Bytes() []byte { return s.data[:s.length] }

// String renders the stored bytes, escaping non-printable characters the
// way the source's debug/display formatting does.
func (s *FixedSizeByteString) String() string {
	return asEscapedString(s.Bytes())
}

func asEscapedString(b []byte) string {
	out := make([]byte, 0, len(b))
	const hex = "0123456789abcdef"
	for _, c := range b {
		switch {
		case c == '\t':
			out = append(out, '\\', 't')
		case c == '\r':
			out = append(out, '\\', 'r')
		case c == '\n':
			out = append(out, '\\', 'n')
		case c >= 0x20 && c <= 0x7e:
			out = append(out, c)
		default:
			out = append(out, '\\', 'x', hex[c>>4], hex[c&0xf])
		}
	}
	return string(out)
}

// Clear resets the string to empty without releasing its backing storage.
func (s *FixedSizeByteString) Clear() {
	s.length = 0
}

// PushBytes appends bytes, failing with api.ErrSizeTooLarge rather than
// growing if doing so would exceed capacity.
func (s *FixedSizeByteString) PushBytes(bytes []byte) error {
	if s.length+len(bytes) > s.capacity {
		return api.Wrap(api.ErrCodeCapacity,
			fmt.Sprintf("push of %d bytes would exceed capacity %d", len(bytes), s.capacity),
			api.ErrSizeTooLarge)
	}
	copy(s.data[s.length:], bytes)
	s.length += len(bytes)
	return nil
}

// Push appends a single byte under the same capacity contract as PushBytes.
func (s *FixedSizeByteString) Push(b byte) error {
	return s.PushBytes([]byte{b})
}

// Remove deletes the byte at index, shifting subsequent bytes left, and
// returns the removed byte. Panics on an out-of-range index, matching the
// fatal-on-misuse contract used throughout this package.
func (s *FixedSizeByteString) Remove(index int) byte {
	if index < 0 || index >= s.length {
		panic("memory: FixedSizeByteString.Remove index out of range")
	}
	removed := s.data[index]
	copy(s.data[index:s.length-1], s.data[index+1:s.length])
	s.length--
	return removed
}

// Equal compares stored bytes only, ignoring capacity.
func (s *FixedSizeByteString) Equal(other *FixedSizeByteString) bool {
	if s.length != other.length {
		return false
	}
	for i := 0; i < s.length; i++ {
		if s.data[i] != other.data[i] {
			return false
		}
	}
	return true
}
