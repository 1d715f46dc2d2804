package security

import (
	"testing"
	"time"
)

func TestAdminTokenRoundTrip(t *testing.T) {
	cfg := TokenConfig{Secret: "s3cret", Expiry: time.Hour}
	token, err := IssueAdminToken("ops", cfg)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := ParseAdminToken(token, cfg)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Username != "ops" || claims.Subject != "ops" {
		t.Fatalf("unexpected claims %+v", claims)
	}

	if _, err := ParseAdminToken(token, TokenConfig{Secret: "other"}); err == nil {
		t.Fatalf("expected signature error with wrong secret")
	}
}

func TestIssueAdminTokenValidation(t *testing.T) {
	if _, err := IssueAdminToken("ops", TokenConfig{Expiry: time.Hour}); err == nil {
		t.Fatalf("expected missing secret error")
	}
	if _, err := IssueAdminToken(" ", TokenConfig{Secret: "x", Expiry: time.Hour}); err == nil {
		t.Fatalf("expected missing username error")
	}
	if _, err := IssueAdminToken("ops", TokenConfig{Secret: "x"}); err == nil {
		t.Fatalf("expected invalid expiry error")
	}
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !CheckPassword(hash, "hunter2") {
		t.Fatalf("expected password to match")
	}
	if CheckPassword(hash, "hunter3") {
		t.Fatalf("expected mismatch")
	}
	if _, err := HashPassword(""); err == nil {
		t.Fatalf("expected error for empty password")
	}
}

func TestGenerateRandomString(t *testing.T) {
	a, err := GenerateRandomString(32)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(a))
	}
	b, err := GenerateRandomString(32)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if a == b {
		t.Fatalf("expected distinct values")
	}
	if _, err := GenerateRandomString(0); err == nil {
		t.Fatalf("expected error for zero length")
	}
}
