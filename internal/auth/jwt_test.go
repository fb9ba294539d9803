package auth

import (
	"testing"
	"time"
)

func TestSignAndParse(t *testing.T) {
	token, err := SignJWT("ABC123", "secret", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	uid, err := ParseJWT(token, "secret")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if uid != "ABC123" {
		t.Fatalf("expected ABC123, got %q", uid)
	}
}

func TestParse_WrongSecret(t *testing.T) {
	token, err := SignJWT("ABC123", "secret", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := ParseJWT(token, "other-secret"); err == nil {
		t.Fatalf("expected error for wrong secret")
	}
}

func TestParse_Expired(t *testing.T) {
	token, err := SignJWT("ABC123", "secret", -time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := ParseJWT(token, "secret"); err == nil {
		t.Fatalf("expected error for expired token")
	}
}
