package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/campuslink/realtime/internal/store"
)

var (
	// ErrUnknownUser means no identity record exists for the id.
	ErrUnknownUser = errors.New("unknown user")
	// ErrBanned means the identity exists but is banned from the platform.
	ErrBanned = errors.New("user is banned")
	// ErrTokenMismatch means the presented token is not for the claimed user.
	ErrTokenMismatch = errors.New("token subject does not match user")
)

// Config controls how strictly client-supplied identities are checked.
//
// The upstream behavior trusts the senderId carried in each payload.
// StrictSender binds sends to the connection's announced identity
// instead, and when JWTSecret is set the announce event must carry a
// token whose subject matches the announced user id.
type Config struct {
	StrictSender bool
	JWTSecret    []byte
}

// Service resolves user identities against the platform's user records.
type Service struct {
	users store.UserStore
	cfg   Config
}

// NewService constructs the identity service.
func NewService(users store.UserStore, cfg Config) *Service {
	return &Service{users: users, cfg: cfg}
}

// Strict reports whether sends must match the connection identity.
func (s *Service) Strict() bool {
	return s.cfg.StrictSender
}

// Resolve checks that userID names an existing, non-banned identity.
func (s *Service) Resolve(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrUnknownUser
	}
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUnknownUser
		}
		return fmt.Errorf("lookup user: %w", err)
	}
	if u.Banned {
		return ErrBanned
	}
	return nil
}

// VerifyAnnounce validates the token presented with an announce event.
// A no-op unless a JWT secret is configured.
func (s *Service) VerifyAnnounce(userID, tokenString string) error {
	if len(s.cfg.JWTSecret) == 0 {
		return nil
	}

	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.cfg.JWTSecret, nil
	})
	if err != nil {
		return fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return errors.New("invalid token claims")
	}
	if claims.Subject != userID {
		return ErrTokenMismatch
	}
	return nil
}

// GenerateToken mints an announce token for userID. Used by the
// platform's session layer and by tests.
func GenerateToken(secret []byte, userID string, expiresAt *jwt.NumericDate) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		ExpiresAt: expiresAt,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}
