package security

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const adminIssuer = "walletbot-ingress"

// AdminClaims are the claims of an operator bearer token.
type AdminClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// TokenConfig configures admin token signing.
type TokenConfig struct {
	Secret string
	Expiry time.Duration
}

// IssueAdminToken signs an HS256 token for username.
func IssueAdminToken(username string, cfg TokenConfig) (string, error) {
	if cfg.Secret == "" {
		return "", errors.New("security: missing jwt secret")
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return "", errors.New("security: missing username")
	}
	if cfg.Expiry <= 0 {
		return "", errors.New("security: invalid jwt expiry")
	}

	jtiBytes := make([]byte, 16)
	if _, errRand := rand.Read(jtiBytes); errRand != nil {
		return "", errRand
	}

	now := time.Now()
	claims := AdminClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    adminIssuer,
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.Expiry)),
			ID:        hex.EncodeToString(jtiBytes),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.Secret))
}

// ParseAdminToken verifies tokenString and returns its claims.
func ParseAdminToken(tokenString string, cfg TokenConfig) (*AdminClaims, error) {
	if cfg.Secret == "" {
		return nil, errors.New("security: missing jwt secret")
	}
	parsed, errParse := jwt.ParseWithClaims(tokenString, &AdminClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(cfg.Secret), nil
	}, jwt.WithIssuer(adminIssuer))
	if errParse != nil {
		return nil, errParse
	}
	claims, ok := parsed.Claims.(*AdminClaims)
	if !ok || !parsed.Valid {
		return nil, jwt.ErrSignatureInvalid
	}
	return claims, nil
}
