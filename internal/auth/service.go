package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"

	"storefront-catalog-service/internal/domain"
	"storefront-catalog-service/internal/store"
)

// Predefined errors for the credential boundary
var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrInvalidToken       = errors.New("auth: invalid or expired token")
)

// Principal is the verified identity attached to a request. The catalog
// service only ever sees the IsAdmin flag, passed explicitly per call.
type Principal struct {
	UserID  int64  `json:"id"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"isAdmin"`
}

// LoginResult mirrors the login response shape the storefront expects.
type LoginResult struct {
	User  domain.User
	Token string
}

// Service issues and verifies the opaque bearer credentials consumed by the
// HTTP layer. Tokens are HS256 JWTs carrying the subject id and admin flag.
type Service interface {
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	Authenticate(ctx context.Context, token string) (*Principal, error)
	EnsureAdmin(ctx context.Context, email, password string) error
}

type claims struct {
	IsAdmin bool `json:"isAdmin"`
	jwt.RegisteredClaims
}

type authService struct {
	users    store.UserStorer
	secret   []byte
	tokenTTL time.Duration
}

// NewService creates the auth service.
func NewService(users store.UserStorer, secret string, tokenTTL time.Duration) Service {
	return &authService{users: users, secret: []byte(secret), tokenTTL: tokenTTL}
}

// Login verifies the password and issues a signed token. A missing account
// and a wrong password are deliberately indistinguishable to the caller.
func (s *authService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		IsAdmin: user.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to sign token: %w", err)
	}

	return &LoginResult{User: *user, Token: signed}, nil
}

// Authenticate parses and verifies a bearer token, then re-loads the account
// so a deleted or demoted user cannot keep acting on a stale token.
func (s *authService) Authenticate(ctx context.Context, tokenString string) (*Principal, error) {
	var c claims
	token, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("auth: unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	var userID int64
	if _, err := fmt.Sscanf(c.Subject, "%d", &userID); err != nil {
		return nil, ErrInvalidToken
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	return &Principal{UserID: user.ID, Email: user.Email, IsAdmin: user.IsAdmin}, nil
}

// EnsureAdmin bootstraps the admin account on startup if it does not exist.
// It is idempotent: an already-registered email is not an error.
func (s *authService) EnsureAdmin(ctx context.Context, email, password string) error {
	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrUserNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("auth: failed to hash admin password: %w", err)
	}

	_, err = s.users.CreateUser(ctx, &domain.User{
		Email:        email,
		PasswordHash: string(hash),
		IsAdmin:      true,
	})
	if err != nil {
		if errors.Is(err, store.ErrEmailExists) {
			// Lost a startup race with another instance; the account exists.
			return nil
		}
		return err
	}
	log.Printf("INFO: Admin user %s created.", email)
	return nil
}
