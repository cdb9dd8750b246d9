package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthState classifies a stored token value. It is derived on demand and never stored.
type AuthState int

const (
	Absent AuthState = iota
	Valid
	Expired
	Malformed
)

func (s AuthState) String() string {
	switch s {
	case Valid:
		return "valid"
	case Expired:
		return "expired"
	case Malformed:
		return "malformed"
	default:
		return "absent"
	}
}

// ExpiredAt is the exp claim carried by minted expired tokens (2020-09-13).
const ExpiredAt int64 = 1600000000

// parserUnverified inspects token contents without checking the signature.
var parserUnverified = jwt.NewParser()

// ClassifyToken decides what an application should make of raw at time now.
// Only structure and the exp claim matter; signatures are not verified.
func ClassifyToken(raw string, now time.Time) AuthState {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Absent
	}
	token, _, err := parserUnverified.ParseUnverified(raw, jwt.MapClaims{})
	if err != nil && !errors.Is(err, jwt.ErrTokenUnverifiable) {
		return Malformed
	}
	if token == nil {
		return Malformed
	}
	exp, err := token.Claims.GetExpirationTime()
	if err != nil {
		return Malformed
	}
	if exp != nil && !now.Before(exp.Time) {
		return Expired
	}
	return Valid
}

// MintExpiredToken returns a well-formed HS256 token whose exp lies in the past.
// The signing key is throwaway; the application under test never trusts it.
func MintExpiredToken() (string, error) {
	claims := jwt.MapClaims{
		"userId": "uiprobe",
		"iat":    ExpiredAt - 3600,
		"exp":    ExpiredAt,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("uiprobe-expired-token"))
	if err != nil {
		return "", fmt.Errorf("minting expired token: %w", err)
	}
	return signed, nil
}
