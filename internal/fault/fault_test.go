package fault

import (
	"errors"
	"io"
	"testing"
)

// TestWrap_PreservesCauseAndKind verifies wrapped faults keep both kind and cause.
func TestWrap_PreservesCauseAndKind(t *testing.T) {
	err := Wrap(KindTransport, "dial", io.EOF)
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected cause to be io.EOF, got %v", err)
	}
	if KindOf(err) != KindTransport {
		t.Fatalf("expected transport kind, got %q", KindOf(err))
	}
	if err.Error() != "transport: dial: EOF" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if Wrap(KindTransport, "dial", nil) != nil {
		t.Fatalf("expected nil for nil cause")
	}
}

// TestTerminal_MarksCopy verifies Terminal does not mutate the original fault.
func TestTerminal_MarksCopy(t *testing.T) {
	base := New(KindTransport, "reconnect", "attempts exhausted")
	term := Terminal(base)
	if !IsTerminal(term) {
		t.Fatalf("expected terminal fault")
	}
	if IsTerminal(base) {
		t.Fatalf("expected original fault to stay non-terminal")
	}
	if DetailOf(term) != "attempts exhausted" {
		t.Fatalf("unexpected detail %q", DetailOf(term))
	}
}

// TestKindOf_Untagged verifies plain errors report no kind.
func TestKindOf_Untagged(t *testing.T) {
	if KindOf(errors.New("plain")) != "" {
		t.Fatalf("expected empty kind")
	}
	if IsKind(nil, KindProtocol) {
		t.Fatalf("expected nil error to match no kind")
	}
}
