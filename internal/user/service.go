package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"greencredits/pkg/domainerrors"
	"greencredits/pkg/platform/sentinel"
)

// Service handles signup and signin. Passwords are stored as bcrypt digests;
// signin mints a short-lived session token the frontend can hold. No route in
// this service enforces the token: API authorization stays out of scope.
type Service struct {
	store      Store
	signingKey []byte
	logger     *slog.Logger
}

func NewService(store Store, signingKey string, logger *slog.Logger) *Service {
	return &Service{store: store, signingKey: []byte(signingKey), logger: logger}
}

// SignInResult carries the signed-in identity and its session token.
type SignInResult struct {
	UserID string
	Token  string
}

func (s *Service) SignUp(ctx context.Context, email, password, role string) (string, error) {
	if email == "" || password == "" || role == "" {
		return "", domainerrors.New(domainerrors.CodeBadRequest,
			"Email, password, and role are required.")
	}

	digest, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", domainerrors.Wrap(domainerrors.CodeInternal, "Server error during registration.", err)
	}

	u := User{
		UserID:         newUserID(),
		Email:          email,
		PasswordDigest: digest,
		Role:           role,
		CreatedAt:      time.Now(),
	}
	if err := s.store.Insert(ctx, u); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return "", domainerrors.New(domainerrors.CodeDuplicate,
				"User already exists with this email.")
		}
		return "", domainerrors.Wrap(domainerrors.CodeInternal, "Server error during registration.", err)
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", u.UserID, "role", role)
	return u.UserID, nil
}

func (s *Service) SignIn(ctx context.Context, email, password string) (SignInResult, error) {
	u, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return SignInResult{}, domainerrors.New(domainerrors.CodeBadRequest, "Invalid credentials.")
		}
		return SignInResult{}, domainerrors.Wrap(domainerrors.CodeInternal, "Server error during sign in.", err)
	}

	if err := bcrypt.CompareHashAndPassword(u.PasswordDigest, []byte(password)); err != nil {
		return SignInResult{}, domainerrors.New(domainerrors.CodeBadRequest, "Invalid credentials.")
	}

	token, err := s.mintToken(u)
	if err != nil {
		return SignInResult{}, domainerrors.Wrap(domainerrors.CodeInternal, "Server error during sign in.", err)
	}
	return SignInResult{UserID: u.UserID, Token: token}, nil
}

func (s *Service) mintToken(u User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  u.UserID,
		"role": u.Role,
		"iat":  now.Unix(),
		"exp":  now.Add(24 * time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

func newUserID() string {
	return "USER-" + uuid.NewString()
}
