// File: core/service/static_config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// StaticConfig is the immutable, serialised record a service's creator
// writes into its StaticStorage file: name, messaging pattern, and the QoS
// settings agreed at creation time. Openers deserialise it and compatibility-
// check it against what they requested before attaching. Wire format is a
// length-prefixed binary.BigEndian encoding rather than a generic encoding,
// since this is a small, fixed-shape record, not a general marshalling
// concern.

package service

import (
	"encoding/binary"
	"fmt"

	"github.com/momentics/zerocopy-ipc/api"
)

const staticConfigMagic uint32 = 0x494f5832 // "IOX2"

// StaticConfig is the durable identity and QoS agreement for one service.
type StaticConfig struct {
	Name                         string
	UUID                         string
	Pattern                      api.MessagingPattern
	MaxPublishers                int
	MaxSubscribers               int
	MaxNodes                     int
	SubscriberMaxBufferSize      int
	SubscriberMaxBorrowedSamples int
	PublisherMaxLoanedSamples    int
	PublisherHistorySize         int
	EnableSafeOverflow           bool
	UnableToDeliverStrategy      api.UnableToDeliverStrategy
}

// NewStaticConfig builds a StaticConfig for name/pattern from cfg's
// publish-subscribe defaults, ready to be overridden field-by-field by a
// service builder before creation.
func NewStaticConfig(name string, pattern api.MessagingPattern, cfg GlobalConfig) StaticConfig {
	d := cfg.Defaults.PublishSubscribe
	return StaticConfig{
		Name:                         name,
		UUID:                         Identity(name, pattern, cfg),
		Pattern:                      pattern,
		MaxPublishers:                d.MaxPublishers,
		MaxSubscribers:               d.MaxSubscribers,
		MaxNodes:                     d.MaxNodes,
		SubscriberMaxBufferSize:      d.SubscriberMaxBufferSize,
		SubscriberMaxBorrowedSamples: d.SubscriberMaxBorrowedSamples,
		PublisherMaxLoanedSamples:    d.PublisherMaxLoanedSamples,
		PublisherHistorySize:         d.PublisherHistorySize,
		EnableSafeOverflow:           d.EnableSafeOverflow,
		UnableToDeliverStrategy:      d.UnableToDeliverStrategy,
	}
}

// Encode serialises c into the wire format written to the .service file.
func (c StaticConfig) Encode() []byte {
	nameBytes := []byte(c.Name)
	uuidBytes := []byte(c.UUID)

	buf := make([]byte, 0, 4+4+len(nameBytes)+4+len(uuidBytes)+4+8*7+1+1)
	var tmp4 [4]byte

	binary.BigEndian.PutUint32(tmp4[:], staticConfigMagic)
	buf = append(buf, tmp4[:]...)

	binary.BigEndian.PutUint32(tmp4[:], uint32(len(nameBytes)))
	buf = append(buf, tmp4[:]...)
	buf = append(buf, nameBytes...)

	binary.BigEndian.PutUint32(tmp4[:], uint32(len(uuidBytes)))
	buf = append(buf, tmp4[:]...)
	buf = append(buf, uuidBytes...)

	binary.BigEndian.PutUint32(tmp4[:], uint32(c.Pattern))
	buf = append(buf, tmp4[:]...)

	var tmp8 [8]byte
	for _, v := range []int{
		c.MaxPublishers, c.MaxSubscribers, c.MaxNodes,
		c.SubscriberMaxBufferSize, c.SubscriberMaxBorrowedSamples,
		c.PublisherMaxLoanedSamples, c.PublisherHistorySize,
	} {
		binary.BigEndian.PutUint64(tmp8[:], uint64(v))
		buf = append(buf, tmp8[:]...)
	}

	var flags byte
	if c.EnableSafeOverflow {
		flags |= 1
	}
	buf = append(buf, flags)
	buf = append(buf, byte(c.UnableToDeliverStrategy))

	return buf
}

// DecodeStaticConfig parses the bytes Encode produced. Fails with
// ErrVersionMismatch (ErrCodeCompatibility) if raw is too short for the
// magic number or carries a foreign one, and with an ErrCodeInternal
// "truncated record" error if the rest of the record is cut short.
func DecodeStaticConfig(raw []byte) (StaticConfig, error) {
	var c StaticConfig
	r := rawReader{buf: raw}

	magic, err := r.uint32()
	if err != nil || magic != staticConfigMagic {
		return c, api.Wrap(api.ErrCodeCompatibility, "decode static config", api.ErrVersionMismatch)
	}

	name, err := r.lengthPrefixedString()
	if err != nil {
		return c, corruptStaticConfig(err)
	}
	uuid, err := r.lengthPrefixedString()
	if err != nil {
		return c, corruptStaticConfig(err)
	}
	pattern, err := r.uint32()
	if err != nil {
		return c, corruptStaticConfig(err)
	}

	ints := make([]int, 7)
	for i := range ints {
		v, err := r.uint64()
		if err != nil {
			return c, corruptStaticConfig(err)
		}
		ints[i] = int(v)
	}

	flags, err := r.byte_()
	if err != nil {
		return c, corruptStaticConfig(err)
	}
	strategy, err := r.byte_()
	if err != nil {
		return c, corruptStaticConfig(err)
	}

	c = StaticConfig{
		Name:                         name,
		UUID:                         uuid,
		Pattern:                      api.MessagingPattern(pattern),
		MaxPublishers:                ints[0],
		MaxSubscribers:               ints[1],
		MaxNodes:                     ints[2],
		SubscriberMaxBufferSize:      ints[3],
		SubscriberMaxBorrowedSamples: ints[4],
		PublisherMaxLoanedSamples:    ints[5],
		PublisherHistorySize:         ints[6],
		EnableSafeOverflow:           flags&1 != 0,
		UnableToDeliverStrategy:      api.UnableToDeliverStrategy(strategy),
	}
	return c, nil
}

func corruptStaticConfig(cause error) error {
	return api.Wrap(api.ErrCodeInternal, "decode static config", fmt.Errorf("truncated record: %w", cause))
}

// CheckCompatibility reports whether requested can attach to an existing
// service described by c, following the open-sequence compatibility check.
// Numeric QoS fields left at zero in requested are treated as "no
// opinion" and skipped; EnableSafeOverflow has no such escape hatch, so
// callers that care about pattern/numeric QoS only should build requested
// from NewStaticConfig (which already carries the service defaults for
// EnableSafeOverflow) rather than a bare zero-valued StaticConfig.
func (c StaticConfig) CheckCompatibility(requested StaticConfig) error {
	if c.Pattern != requested.Pattern {
		return api.NewError(api.ErrCodeCompatibility, "messaging pattern mismatch for service "+c.Name)
	}
	if requested.SubscriberMaxBufferSize != 0 && c.SubscriberMaxBufferSize != requested.SubscriberMaxBufferSize {
		return api.Wrap(api.ErrCodeCompatibility, "service "+c.Name, api.ErrIncompatibleBufferSize)
	}
	if requested.EnableSafeOverflow != c.EnableSafeOverflow {
		return api.Wrap(api.ErrCodeCompatibility, "service "+c.Name, api.ErrIncompatibleOverflowBehavior)
	}
	if requested.SubscriberMaxBorrowedSamples != 0 && c.SubscriberMaxBorrowedSamples != requested.SubscriberMaxBorrowedSamples {
		return api.Wrap(api.ErrCodeCompatibility, "service "+c.Name, api.ErrIncompatibleMaxBorrowedSetting)
	}
	return nil
}

// rawReader is a tiny cursor over a byte slice used only by Decode above.
type rawReader struct {
	buf []byte
	pos int
}

var errTruncated = fmt.Errorf("unexpected end of record")

func (r *rawReader) uint32() (uint32, error) {
	if r.pos+4 > len(r.buf) {
		return 0, errTruncated
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *rawReader) uint64() (uint64, error) {
	if r.pos+8 > len(r.buf) {
		return 0, errTruncated
	}
	v := binary.BigEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *rawReader) byte_() (byte, error) {
	if r.pos+1 > len(r.buf) {
		return 0, errTruncated
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *rawReader) lengthPrefixedString() (string, error) {
	n, err := r.uint32()
	if err != nil {
		return "", err
	}
	if r.pos+int(n) > len(r.buf) {
		return "", errTruncated
	}
	s := string(r.buf[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return s, nil
}
