package domain

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TokenHeader carries the signed bearer credential.
const TokenHeader = "X-Token"

// Token is a parsed bearer credential of the form
// "<appId>:<expiresAt>.<base64(hmac-sha256(secret, payload))>".
type Token struct {
	AppID     string
	ExpiresAt int64 // unix seconds
	Signature string
	Payload   string // the signed part: "<appId>:<expiresAt>"
}

// ParseToken splits a raw header value into its parts. The signature is
// separated by the last "." so app ids may contain dots; the payload splits
// on exactly one ":".
func ParseToken(raw string) (Token, error) {
	dot := strings.LastIndex(raw, ".")
	if dot < 0 {
		return Token{}, fmt.Errorf("token has no signature separator")
	}
	payload, sig := raw[:dot], raw[dot+1:]
	if payload == "" || sig == "" {
		return Token{}, fmt.Errorf("token payload or signature is empty")
	}

	parts := strings.Split(payload, ":")
	if len(parts) != 2 {
		return Token{}, fmt.Errorf("token payload is not appId:expiresAt")
	}
	exp, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return Token{}, fmt.Errorf("token expiry is not an integer: %w", err)
	}

	return Token{AppID: parts[0], ExpiresAt: exp, Signature: sig, Payload: payload}, nil
}

// Expired reports whether the token's expiry lies before now.
func (t Token) Expired(now time.Time) bool {
	return now.Unix() > t.ExpiresAt
}

// Verify recomputes the payload signature and compares it in constant time.
func (t Token) Verify(secret []byte) bool {
	return hmac.Equal([]byte(Sign(secret, t.Payload)), []byte(t.Signature))
}

// Sign produces the base64 HMAC-SHA256 signature of a token payload.
func Sign(secret []byte, payload string) string {
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// NewToken builds a complete signed token string. Used by tooling and tests;
// the gateway itself only verifies.
func NewToken(secret []byte, appID string, expiresAt int64) string {
	payload := appID + ":" + strconv.FormatInt(expiresAt, 10)
	return payload + "." + Sign(secret, payload)
}

// Redact desensitizes a token value for logging. The raw secret and the full
// signature must never reach the logs.
func Redact(raw string) string {
	if len(raw) <= 8 {
		return "***"
	}
	return raw[:8] + "***"
}
