package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("expired token")
)

// Signer issues and verifies timed, HMAC-signed confirmation tokens.
type Signer struct {
	secret []byte
	ttl    time.Duration
}

func NewSigner(secret string, ttl time.Duration) *Signer {
	return &Signer{secret: []byte(secret), ttl: ttl}
}

// GenerateConfirmationToken returns a token tying the user id to an expiry
// time, in the format "payload|signature". The uuid nonce keeps tokens
// issued in the same second distinct.
func (s *Signer) GenerateConfirmationToken(userID int) string {
	expires := time.Now().Add(s.ttl).Unix()
	payload := fmt.Sprintf("confirm:%d:%d:%s", userID, expires, uuid.NewString())
	return fmt.Sprintf("%s|%s",
		base64.URLEncoding.EncodeToString([]byte(payload)),
		base64.URLEncoding.EncodeToString(s.sign(payload)))
}

// VerifyConfirmationToken checks the signature and expiry and returns the
// user id the token was issued for.
func (s *Signer) VerifyConfirmationToken(token string) (int, error) {
	parts := strings.Split(token, "|")
	if len(parts) != 2 {
		return 0, ErrInvalidToken
	}

	payloadBytes, err := base64.URLEncoding.DecodeString(parts[0])
	if err != nil {
		return 0, ErrInvalidToken
	}
	signature, err := base64.URLEncoding.DecodeString(parts[1])
	if err != nil {
		return 0, ErrInvalidToken
	}
	payload := string(payloadBytes)
	if !hmac.Equal(signature, s.sign(payload)) {
		return 0, ErrInvalidToken
	}

	fields := strings.Split(payload, ":")
	if len(fields) != 4 || fields[0] != "confirm" {
		return 0, ErrInvalidToken
	}
	userID, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, ErrInvalidToken
	}
	expires, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return 0, ErrInvalidToken
	}
	if time.Now().Unix() > expires {
		return 0, ErrExpiredToken
	}
	return userID, nil
}

func (s *Signer) sign(payload string) []byte {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return mac.Sum(nil)
}
