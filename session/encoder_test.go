package session

import (
	"testing"
	"time"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := &Session{
		ID:        "sid-1",
		OwnerID:   "owner-1",
		CreatedAt: time.UnixMilli(1_700_000_000_123),
		ExpiresAt: time.UnixMilli(1_700_000_600_456),
		Revoked:   true,
		IPAddress: "2001:db8::1",
		UserAgent: "Mozilla/5.0",
	}

	data, err := Encode(in)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if data[offsetRevoked] != 1 {
		t.Fatalf("revoked flag not at fixed offset")
	}

	out, err := Decode(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if out.ID != in.ID || out.OwnerID != in.OwnerID || out.IPAddress != in.IPAddress || out.UserAgent != in.UserAgent {
		t.Fatalf("string fields mismatch: %+v", out)
	}
	if !out.CreatedAt.Equal(in.CreatedAt) || !out.ExpiresAt.Equal(in.ExpiresAt) || !out.Revoked {
		t.Fatalf("header fields mismatch: %+v", out)
	}
}

func TestDecodeRejectsUnknownVersion(t *testing.T) {
	data, err := Encode(&Session{ID: "x", CreatedAt: time.Now(), ExpiresAt: time.Now()})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	data[0] = 9
	if _, err := Decode(data); err == nil {
		t.Fatal("expected version error")
	}
}

func TestSessionActive(t *testing.T) {
	now := time.Now()
	s := &Session{ExpiresAt: now}

	if !s.Active(now) {
		t.Fatal("session must be active at its expiry instant")
	}
	if s.Active(now.Add(time.Millisecond)) {
		t.Fatal("session must be inactive after expiry")
	}
	s.Revoked = true
	if s.Active(now.Add(-time.Hour)) {
		t.Fatal("revoked session must be inactive")
	}

	var nilSession *Session
	if nilSession.Active(now) {
		t.Fatal("nil session must be inactive")
	}
}
