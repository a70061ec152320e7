package security

import (
	"testing"
	"time"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, errHash := HashPassword("correct horse battery staple")
	if errHash != nil {
		t.Fatalf("hash: %v", errHash)
	}
	if hash == "correct horse battery staple" {
		t.Fatalf("expected hash to differ from plaintext")
	}
	if !VerifyPassword(hash, "correct horse battery staple") {
		t.Fatalf("expected matching password to verify")
	}
	if VerifyPassword(hash, "wrong password") {
		t.Fatalf("expected mismatched password to fail")
	}
}

func TestIssueAndParseToken(t *testing.T) {
	token, errIssue := IssueToken("secret", 42, time.Hour)
	if errIssue != nil {
		t.Fatalf("issue: %v", errIssue)
	}

	claims, errParse := ParseToken("secret", token)
	if errParse != nil {
		t.Fatalf("parse: %v", errParse)
	}
	if claims.UserID != 42 {
		t.Fatalf("expected user id 42, got %d", claims.UserID)
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	token, errIssue := IssueToken("secret", 42, time.Hour)
	if errIssue != nil {
		t.Fatalf("issue: %v", errIssue)
	}
	if _, errParse := ParseToken("other-secret", token); errParse == nil {
		t.Fatalf("expected wrong-secret token to be rejected")
	}
}

func TestParseToken_Expired(t *testing.T) {
	token, errIssue := IssueToken("secret", 42, -time.Minute)
	if errIssue != nil {
		t.Fatalf("issue: %v", errIssue)
	}
	if _, errParse := ParseToken("secret", token); errParse == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}
