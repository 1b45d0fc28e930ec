package service_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/momentics/zerocopy-ipc/api"
	"github.com/momentics/zerocopy-ipc/core/service"
)

func TestStaticConfigEncodeDecodeRoundTrip(t *testing.T) {
	cfg := service.DefaultGlobalConfig()
	original := service.NewStaticConfig("my-topic", api.PatternPublishSubscribe, cfg)

	decoded, err := service.DecodeStaticConfig(original.Encode())
	if err != nil {
		t.Fatalf("DecodeStaticConfig failed: %v", err)
	}

	if diff := cmp.Diff(original, decoded); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestStaticConfigDecodeRejectsForeignMagic(t *testing.T) {
	raw := []byte{0xde, 0xad, 0xbe, 0xef, 0, 0, 0, 0}
	if _, err := service.DecodeStaticConfig(raw); err == nil {
		t.Fatal("expected DecodeStaticConfig to reject data with a foreign magic number")
	}
}

func TestStaticConfigDecodeRejectsTruncatedRecord(t *testing.T) {
	cfg := service.DefaultGlobalConfig()
	full := service.NewStaticConfig("my-topic", api.PatternPublishSubscribe, cfg).Encode()

	if _, err := service.DecodeStaticConfig(full[:len(full)-4]); err == nil {
		t.Fatal("expected DecodeStaticConfig to reject a truncated record")
	}
}

func TestStaticConfigCheckCompatibilityRejectsPatternMismatch(t *testing.T) {
	cfg := service.DefaultGlobalConfig()
	existing := service.NewStaticConfig("my-topic", api.PatternPublishSubscribe, cfg)
	requested := service.NewStaticConfig("my-topic", api.PatternEvent, cfg)

	if err := existing.CheckCompatibility(requested); err == nil {
		t.Fatal("expected CheckCompatibility to reject a messaging pattern mismatch")
	}
}

func TestStaticConfigCheckCompatibilityAcceptsZeroRequestedFields(t *testing.T) {
	cfg := service.DefaultGlobalConfig()
	existing := service.NewStaticConfig("my-topic", api.PatternPublishSubscribe, cfg)

	requested := service.StaticConfig{Pattern: api.PatternPublishSubscribe, EnableSafeOverflow: existing.EnableSafeOverflow}
	if err := existing.CheckCompatibility(requested); err != nil {
		t.Fatalf("CheckCompatibility with zero-valued optional fields failed: %v", err)
	}
}

func TestStaticConfigCheckCompatibilityRejectsBufferSizeMismatch(t *testing.T) {
	cfg := service.DefaultGlobalConfig()
	existing := service.NewStaticConfig("my-topic", api.PatternPublishSubscribe, cfg)

	requested := existing
	requested.SubscriberMaxBufferSize = existing.SubscriberMaxBufferSize + 1

	if err := existing.CheckCompatibility(requested); err == nil {
		t.Fatal("expected CheckCompatibility to reject a buffer size mismatch")
	}
}
