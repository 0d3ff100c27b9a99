package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/medzoom/accounts-be/internal/auth"
	"github.com/medzoom/accounts-be/internal/mailer"
	"github.com/medzoom/accounts-be/internal/models"
	"github.com/medzoom/accounts-be/internal/otp"
	"github.com/medzoom/accounts-be/internal/store"
	"github.com/rs/zerolog/log"
)

// AccountServiceProvider defines the interface for the account workflow.
type AccountServiceProvider interface {
	RequestSignup(ctx context.Context, email string) error
	CompleteSignup(ctx context.Context, username, email, password, code string) (models.User, error)
	Login(ctx context.Context, username, password string) (string, models.User, error)
	ResolveSession(ctx context.Context, token string) *models.User
}

// OTPRegistry is the expiring single-use code store the workflow depends on.
// Satisfied by *otp.Registry; a durable deployment can swap in an external
// expiring key-value store behind the same contract.
type OTPRegistry interface {
	Issue(email string) (string, error)
	Consume(email, suppliedCode string) error
}

var _ OTPRegistry = (*otp.Registry)(nil)

// AccountService orchestrates signup, login and session resolution over its
// injected collaborators.
type AccountService struct {
	store  store.Store
	mailer mailer.Mailer
	otps   OTPRegistry
	tokens *auth.Tokens
}

// NewAccountService creates a new AccountService.
func NewAccountService(st store.Store, m mailer.Mailer, otps OTPRegistry, tokens *auth.Tokens) *AccountService {
	return &AccountService{store: st, mailer: m, otps: otps, tokens: tokens}
}

// RequestSignup issues a verification code for email and mails it. The email
// must not belong to an existing account. On delivery failure the registry
// entry is retained; a retried send-otp overwrites it with a fresh code.
func (s *AccountService) RequestSignup(ctx context.Context, email string) error {
	if err := validateEmail(email); err != nil {
		return err
	}

	_, err := s.store.FindByEmail(ctx, email)
	if err == nil {
		return ErrDuplicateAccount
	}
	if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("lookup email: %w", err)
	}

	code, err := s.otps.Issue(email)
	if err != nil {
		return err
	}

	if err := s.sendCode(ctx, email, code); err != nil {
		log.Error().Err(err).Str("email", email).Msg("Failed to deliver OTP email")
		return ErrDeliveryFailed
	}
	return nil
}

// CompleteSignup consumes the verification code and creates the account. The
// store's unique indexes settle any race with a concurrent signup; the lookups
// here only produce the friendlier error first.
func (s *AccountService) CompleteSignup(ctx context.Context, username, email, password, code string) (models.User, error) {
	if err := validateEmail(email); err != nil {
		return models.User{}, err
	}
	if username == "" || password == "" || code == "" {
		return models.User{}, fmt.Errorf("%w: missing field", ErrValidation)
	}

	if err := s.otps.Consume(email, code); err != nil {
		return models.User{}, fmt.Errorf("%w: %v", ErrOTPInvalid, err)
	}

	if _, err := s.store.FindByEmail(ctx, email); err == nil {
		return models.User{}, ErrDuplicateAccount
	} else if !errors.Is(err, store.ErrNotFound) {
		return models.User{}, fmt.Errorf("lookup email: %w", err)
	}
	if _, err := s.store.FindByUsername(ctx, username); err == nil {
		return models.User{}, ErrUsernameTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return models.User{}, fmt.Errorf("lookup username: %w", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := models.User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}

	if err := s.store.Insert(ctx, user); err != nil {
		switch {
		case errors.Is(err, store.ErrEmailTaken):
			return models.User{}, ErrDuplicateAccount
		case errors.Is(err, store.ErrUsernameTaken):
			return models.User{}, ErrUsernameTaken
		}
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}

	user.PasswordHash = ""
	return user, nil
}

// Login verifies the credentials and issues a session token.
func (s *AccountService) Login(ctx context.Context, username, password string) (string, models.User, error) {
	if username == "" || password == "" {
		return "", models.User{}, fmt.Errorf("%w: missing field", ErrValidation)
	}

	user, err := s.store.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", models.User{}, ErrNoSuchUser
		}
		return "", models.User{}, fmt.Errorf("lookup username: %w", err)
	}

	if !auth.CheckPassword(password, user.PasswordHash) {
		return "", models.User{}, ErrBadCredentials
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return "", models.User{}, fmt.Errorf("issue token: %w", err)
	}

	user.PasswordHash = ""
	return token, user, nil
}

// ResolveSession returns the user a token asserts, or nil for anonymous.
// Absent, malformed, expired or tampered tokens all resolve to anonymous;
// callers must treat "no identity" as a normal outcome.
func (s *AccountService) ResolveSession(ctx context.Context, token string) *models.User {
	if token == "" {
		return nil
	}

	userID, err := s.tokens.Verify(token)
	if err != nil {
		return nil
	}

	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Warn().Err(err).Str("user_id", userID).Msg("Session lookup failed")
		}
		return nil
	}

	user.PasswordHash = ""
	return &user
}

// sendCode mails the verification code, retrying once before giving up.
func (s *AccountService) sendCode(ctx context.Context, email, code string) error {
	subject := "MedZoom - Email Verification OTP"
	body := fmt.Sprintf(`<html><body><h2>Welcome to MedZoom!</h2><p>Your OTP is:</p><h1 style="color:green;">%s</h1><p>This OTP expires in 10 minutes.</p></body></html>`, code)

	err := s.mailer.Send(ctx, email, subject, body)
	if err == nil {
		return nil
	}
	log.Warn().Err(err).Str("email", email).Msg("OTP delivery failed, retrying once")
	return s.mailer.Send(ctx, email, subject, body)
}

func validateEmail(email string) error {
	if email == "" || !strings.Contains(email, "@") {
		return fmt.Errorf("%w: invalid email address", ErrValidation)
	}
	return nil
}
