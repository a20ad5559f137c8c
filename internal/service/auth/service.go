package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/detailing-api/pkg/auth"
	"github.com/jwalitptl/detailing-api/pkg/security"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrLocked             = errors.New("too many failed login attempts")
	ErrTokenGeneration    = errors.New("failed to generate token")
)

const (
	AdminRole = "admin"

	maxLoginAttempts = 5
	lockoutDuration  = 15 * time.Minute
)

type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Service authenticates the single configured admin account.
type Service struct {
	username     string
	passwordHash string
	ttl          time.Duration
	jwtSvc       auth.JWTService
	hasher       security.PasswordHasher
	attempts     *cache.Cache
	now          func() time.Time
}

func NewService(username, passwordHash string, ttl time.Duration, jwtSvc auth.JWTService, hasher security.PasswordHasher) *Service {
	return &Service{
		username:     username,
		passwordHash: passwordHash,
		ttl:          ttl,
		jwtSvc:       jwtSvc,
		hasher:       hasher,
		attempts:     cache.New(lockoutDuration, 2*lockoutDuration),
		now:          time.Now,
	}
}

func (s *Service) Login(ctx context.Context, username, password string) (*TokenResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := strings.ToLower(strings.TrimSpace(username))
	if n, ok := s.attempts.Get(key); ok && n.(int) >= maxLoginAttempts {
		return nil, ErrLocked
	}

	userOK := subtle.ConstantTimeCompare([]byte(key), []byte(strings.ToLower(s.username))) == 1
	// Always run bcrypt so an unknown username costs the same as a bad password.
	passErr := s.hasher.Compare(s.passwordHash, password)
	if !userOK || passErr != nil {
		s.recordFailure(key)
		return nil, ErrInvalidCredentials
	}
	s.attempts.Delete(key)

	token, err := s.jwtSvc.GenerateAccessToken(s.username, AdminRole)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenGeneration, err)
	}
	return &TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   s.now().Add(s.ttl).UTC(),
	}, nil
}

func (s *Service) recordFailure(key string) {
	if _, err := s.attempts.IncrementInt(key, 1); err != nil {
		s.attempts.Set(key, 1, cache.DefaultExpiration)
	}
}
