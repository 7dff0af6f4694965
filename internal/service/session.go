package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims binds a verified identity to one round.
type SessionClaims struct {
	Round string `json:"rnd"`
	jwt.RegisteredClaims
}

// SessionIssuer signs and parses examinee session tokens.
type SessionIssuer struct {
	secret []byte
	now    func() time.Time
}

// NewSessionIssuer constructs a session issuer backed by an HS256 secret.
func NewSessionIssuer(secret string) (*SessionIssuer, error) {
	if secret == "" {
		return nil, errors.New("session secret must be provided")
	}
	return &SessionIssuer{secret: []byte(secret), now: time.Now}, nil
}

// Issue signs a token for identity on the given round, valid until expiresAt.
func (s *SessionIssuer) Issue(identity, accessKey string, expiresAt time.Time) (string, error) {
	now := s.now()
	claims := SessionClaims{
		Round: accessKey,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return token, nil
}

// Parse validates the token and returns its claims.
func (s *SessionIssuer) Parse(raw string) (SessionClaims, error) {
	var claims SessionClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return SessionClaims{}, ErrInvalidSession
	}
	return claims, nil
}

// Subject returns the identity the token was issued for when it is valid for accessKey.
func (s *SessionIssuer) Subject(raw, accessKey string) (string, error) {
	claims, err := s.Parse(raw)
	if err != nil {
		return "", err
	}
	if claims.Round != accessKey || claims.Subject == "" {
		return "", ErrInvalidSession
	}
	return claims.Subject, nil
}

// Authorize checks that the token belongs to identity on the given round.
func (s *SessionIssuer) Authorize(raw, accessKey, identity string) error {
	claims, err := s.Parse(raw)
	if err != nil {
		return err
	}
	if claims.Round != accessKey || claims.Subject != NormalizeIdentity(identity) {
		return ErrInvalidSession
	}
	return nil
}
