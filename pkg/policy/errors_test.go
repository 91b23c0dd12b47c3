package policy

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_KindThroughWrapping(t *testing.T) {
	base := NotFound("remove", "policy %d not found", 12)
	wrapped := fmt.Errorf("engine: %w", base)

	if KindOf(wrapped) != KindNotFound {
		t.Errorf("expected %s, got %s", KindNotFound, KindOf(wrapped))
	}
	if !IsKind(wrapped, KindNotFound) {
		t.Error("IsKind should see through wrapping")
	}
	if IsKind(nil, KindNotFound) {
		t.Error("nil error has no kind")
	}
	if KindOf(errors.New("plain")) != KindUnknown {
		t.Error("plain errors are KindUnknown")
	}
}

func TestError_KernelTransportCarriesStatus(t *testing.T) {
	err := KernelTransport("send", 0xC0000022, nil)
	if err.Status != 0xC0000022 {
		t.Errorf("expected status to be preserved, got 0x%08X", err.Status)
	}
	if !strings.Contains(err.Error(), "0xC0000022") {
		t.Errorf("expected status in message, got %q", err.Error())
	}
	if !err.Kind.Retryable() {
		t.Error("transport errors are retryable")
	}
	if KindInvalidIntent.Retryable() {
		t.Error("validation errors are not retryable")
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("volume lookup failed")
	err := InvalidPath("resolve", "no device for C:").WithCause(cause)
	if !errors.Is(err, cause) {
		t.Error("expected cause in chain")
	}
}

func TestDriverID_Simulated(t *testing.T) {
	if DriverID(10).Simulated() {
		t.Error("low ids are real")
	}
	if !(SimulatedDriverIDBase + 1).Simulated() {
		t.Error("ids above the base are simulated")
	}
}

func TestKind_Text(t *testing.T) {
	for kind := KindUnknown; kind <= KindKernelUnavailable; kind++ {
		text, err := kind.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%d) failed: %v", kind, err)
		}
		var got Kind
		if err := got.UnmarshalText(text); err != nil || got != kind {
			t.Errorf("UnmarshalText(%q) = %s, %v", text, got, err)
		}
	}
	var k Kind
	if err := k.UnmarshalText([]byte("timeout")); err == nil {
		t.Error("expected error for unknown kind")
	}
}
