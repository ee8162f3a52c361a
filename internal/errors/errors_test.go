package errors

import (
	"fmt"
	"testing"
)

func TestPeerError(t *testing.T) {
	err := NewPeerError("spawn failed", ErrSpawnFailed).
		WithPeer("pairview-viewer-invoice").
		WithDocType("invoice")

	want := "peer error [peer=pairview-viewer-invoice, doc_type=invoice]: spawn failed: failed to spawn peer"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !Is(err, ErrSpawnFailed) {
		t.Error("PeerError should match its cause")
	}
	var pe *PeerError
	if !As(fmt.Errorf("wrapped: %w", err), &pe) {
		t.Error("As should find PeerError through wrapping")
	}
	if IsUserFacing(err) {
		t.Error("PeerError should not be user facing")
	}
}

func TestUpstreamError(t *testing.T) {
	err := NewUpstreamError("connection refused", nil).WithStatus(502)

	if !Is(err, ErrUpstream) {
		t.Error("UpstreamError should match ErrUpstream")
	}
	if !IsUserFacing(err) {
		t.Error("UpstreamError should be user facing")
	}
	if got := err.Error(); got != "upstream error [status=502]: connection refused" {
		t.Errorf("Error() = %q", got)
	}
}

func TestNotFoundError(t *testing.T) {
	err := NewNotFoundError("pair", "invoice_01")
	if err.Error() != "pair not found: invoice_01" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !Is(err, ErrNotFound) {
		t.Error("NotFoundError should match ErrNotFound")
	}
	if err.Severity() != SeverityWarning {
		t.Errorf("Severity() = %v, want warning", err.Severity())
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("must be positive").WithField("peer.retry_delay_ms").WithValue(-1)
	want := "validation error [field=peer.retry_delay_ms, value=-1]: must be positive"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !Is(err, ErrInvalidInput) {
		t.Error("ValidationError should match ErrInvalidInput")
	}
}

func TestIsDropped(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{ErrNotListening, true},
		{Wrap(ErrUntrustedOrigin, "frame"), true},
		{fmt.Errorf("x: %w", ErrUnknownKind), true},
		{ErrSpawnFailed, false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := IsDropped(tt.err); got != tt.want {
			t.Errorf("IsDropped(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "ctx") != nil {
		t.Error("Wrap(nil) should be nil")
	}
	err := Wrapf(ErrPairNotFound, "select %s", "inv")
	if err.Error() != "select inv: pair not found" {
		t.Errorf("Wrapf() = %q", err.Error())
	}
	if !Is(err, ErrPairNotFound) {
		t.Error("Wrapf should preserve the chain")
	}
}
