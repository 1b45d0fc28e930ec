package memory_test

import (
	"testing"

	"github.com/momentics/zerocopy-ipc/core/memory"
)

func TestFixedSizeByteStringPushAndRemove(t *testing.T) {
	s := memory.NewFixedSizeByteString(123)
	if err := s.PushBytes([]byte("hello")); err != nil {
		t.Fatal(err)
	}
	if err := s.Push('!'); err != nil {
		t.Fatal(err)
	}
	if err := s.Push('!'); err != nil {
		t.Fatal(err)
	}
	if got, want := string(s.Bytes()), "hello!!"; got != want {
		t.Fatalf("Bytes() = %q, want %q", got, want)
	}

	removed := s.Remove(0)
	if removed != 'h' {
		t.Errorf("Remove(0) = %q, want 'h'", removed)
	}
	if got, want := string(s.Bytes()), "ello!!"; got != want {
		t.Errorf("Bytes() after Remove = %q, want %q", got, want)
	}
}

func TestFixedSizeByteStringPushBeyondCapacityFails(t *testing.T) {
	s := memory.NewFixedSizeByteString(4)
	if err := s.PushBytes([]byte("abcd")); err != nil {
		t.Fatal(err)
	}
	if err := s.Push('e'); err == nil {
		t.Fatal("expected push beyond capacity to fail")
	}
}

func TestFixedSizeByteStringFromBytesRejectsOversized(t *testing.T) {
	if _, err := memory.FixedSizeByteStringFromBytes(2, []byte("abc")); err == nil {
		t.Fatal("expected FixedSizeByteStringFromBytes to reject an oversized input")
	}
}

func TestFixedSizeByteStringClear(t *testing.T) {
	s, err := memory.FixedSizeByteStringFromBytes(16, []byte("present"))
	if err != nil {
		t.Fatal(err)
	}
	s.Clear()
	if got := s.Len(); got != 0 {
		t.Errorf("Len() after Clear = %d, want 0", got)
	}
	if err := s.PushBytes([]byte("reused")); err != nil {
		t.Fatalf("expected to reuse cleared storage: %v", err)
	}
}

func TestFixedSizeByteStringEqual(t *testing.T) {
	a, err := memory.FixedSizeByteStringFromBytes(32, []byte("service-name"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := memory.FixedSizeByteStringFromBytes(16, []byte("service-name"))
	if err != nil {
		t.Fatal(err)
	}
	if !a.Equal(b) {
		t.Error("expected strings with equal content but different capacity to compare equal")
	}
}

func TestFixedSizeByteStringEscapesNonPrintable(t *testing.T) {
	s, err := memory.FixedSizeByteStringFromBytes(8, []byte("a\tb\n"))
	if err != nil {
		t.Fatal(err)
	}
	if got, want := s.String(), `a\tb\n`; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
