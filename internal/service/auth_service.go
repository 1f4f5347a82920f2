package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"smarthome/internal/repository"
)

// ErrAuthFailure covers every way a request can fail to resolve to a user:
// missing token, unknown token, malformed header.
var ErrAuthFailure = errors.New("authentication failure")

// defaultTestToken stands in when a request carries no Authorization header.
// It matches the fixture user seeded at startup so the sample account linking
// flow works without a real OAuth exchange.
const defaultTestToken = "123access"

// AuthConfig carries the signing material for the management console tokens.
type AuthConfig struct {
	SigningKey string
	TokenTTL   time.Duration
}

type tokenClaims struct {
	jwt.RegisteredClaims
	AdminID int `json:"admin_id"`
}

type AuthService struct {
	users  repository.Users
	admins repository.Admins
	cfg    AuthConfig
}

func NewAuthService(users repository.Users, admins repository.Admins, cfg AuthConfig) *AuthService {
	return &AuthService{users: users, admins: admins, cfg: cfg}
}

var _ Authorization = (*AuthService)(nil)

// ResolveToken maps an Authorization header to the owning user's id. An
// empty header falls back to the default test token rather than failing.
func (s *AuthService) ResolveToken(ctx context.Context, authorization string) (string, error) {
	token := strings.TrimSpace(strings.TrimPrefix(authorization, "Bearer"))
	if token == "" {
		token = defaultTestToken
	}

	user, err := s.users.GetByAccessToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", ErrAuthFailure
		}
		return "", fmt.Errorf("resolve token: %w", err)
	}
	return user.ID, nil
}

// SignUp registers a management console admin with a bcrypt password hash.
func (s *AuthService) SignUp(username, password string) (int, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}
	return s.admins.Create(username, string(hash))
}

// SignIn checks credentials and mints a signed JWT for the management API.
func (s *AuthService) SignIn(username, password string) (string, error) {
	admin, err := s.admins.GetByUsername(username)
	if err != nil {
		return "", fmt.Errorf("look up admin: %w", err)
	}
	if admin == nil {
		return "", ErrAuthFailure
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		return "", ErrAuthFailure
	}

	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.cfg.TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		AdminID: admin.ID,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.SigningKey))
}

// ParseToken validates a management JWT and returns the admin id inside it.
func (s *AuthService) ParseToken(accessToken string) (int, error) {
	token, err := jwt.ParseWithClaims(accessToken, &tokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(s.cfg.SigningKey), nil
	})
	if err != nil {
		return 0, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*tokenClaims)
	if !ok {
		return 0, errors.New("token claims have unexpected type")
	}
	return claims.AdminID, nil
}
