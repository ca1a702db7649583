package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestGenerateAndVerifyToken(t *testing.T) {
	signer := NewSigner("test-secret", time.Hour)

	token := signer.GenerateConfirmationToken(42)
	userID, err := signer.VerifyConfirmationToken(token)
	if err != nil {
		t.Fatalf("VerifyConfirmationToken failed: %v", err)
	}
	if userID != 42 {
		t.Errorf("Expected user 42, got %d", userID)
	}

	// The nonce keeps tokens for the same user distinct.
	if token == signer.GenerateConfirmationToken(42) {
		t.Error("Expected distinct tokens for the same user")
	}
}

func TestVerifyTokenRejectsTampering(t *testing.T) {
	signer := NewSigner("test-secret", time.Hour)
	token := signer.GenerateConfirmationToken(42)

	cases := []string{
		"",
		"garbage",
		"a|b|c",
		"!!!|" + strings.Split(token, "|")[1],
		strings.Split(token, "|")[0] + "|!!!",
		// Payload swapped for another user, signature kept.
		strings.Split(signer.GenerateConfirmationToken(7), "|")[0] + "|" + strings.Split(token, "|")[1],
	}
	for _, bad := range cases {
		if _, err := signer.VerifyConfirmationToken(bad); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Expected ErrInvalidToken for %q, got %v", bad, err)
		}
	}

	other := NewSigner("other-secret", time.Hour)
	if _, err := other.VerifyConfirmationToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken for wrong secret, got %v", err)
	}
}

func TestVerifyTokenExpiry(t *testing.T) {
	signer := NewSigner("test-secret", -time.Minute)
	token := signer.GenerateConfirmationToken(42)
	if _, err := signer.VerifyConfirmationToken(token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Expected ErrExpiredToken, got %v", err)
	}
}
