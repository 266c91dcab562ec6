// Package auth gates the admin endpoints behind HS256 bearer tokens issued
// to the configured admin account.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/aluiziolira/bookcatalog/config"
)

const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrInvalidToken       = errors.New("auth: invalid token")
)

// Claims are the JWT claims of an admin token. Type is access or refresh.
type Claims struct {
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

// TokenPair is returned on login.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// Tokens issues and verifies admin tokens.
type Tokens struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	username   string
	password   string
	now        func() time.Time
}

// NewTokens builds the token issuer for the configured admin account.
func NewTokens(cfg config.AuthConfig) *Tokens {
	return &Tokens{
		secret:     []byte(cfg.JWTSecret),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		username:   cfg.AdminUsername,
		password:   cfg.AdminPassword,
		now:        time.Now,
	}
}

// Login checks the admin credentials and returns a fresh token pair.
func (t *Tokens) Login(username, password string) (TokenPair, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(t.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(t.password)) == 1
	if !userOK || !passOK {
		return TokenPair{}, ErrInvalidCredentials
	}

	access, err := t.Issue(username, TypeAccess)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := t.Issue(username, TypeRefresh)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int(t.accessTTL.Seconds()),
	}, nil
}

// Refresh trades a valid refresh token for a new access token.
func (t *Tokens) Refresh(refreshToken string) (string, error) {
	claims, err := t.Parse(refreshToken, TypeRefresh)
	if err != nil {
		return "", err
	}
	return t.Issue(claims.Subject, TypeAccess)
}

// Issue signs a token of type typ for subject.
func (t *Tokens) Issue(subject, typ string) (string, error) {
	ttl := t.accessTTL
	if typ == TypeRefresh {
		ttl = t.refreshTTL
	}
	now := t.now()
	c := Claims{
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", typ, err)
	}
	return signed, nil
}

// Parse verifies signature, expiry and the expected token type.
func (t *Tokens) Parse(tokenStr, wantType string) (*Claims, error) {
	tok, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Type != wantType {
		return nil, fmt.Errorf("%w: expected %s token, got %q", ErrInvalidToken, wantType, claims.Type)
	}
	return claims, nil
}
