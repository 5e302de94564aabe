package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	netmail "net/mail"
	"strings"
	"time"

	"github.com/Skotchmaster/shop_auth/pkg/autherr"
	"github.com/Skotchmaster/shop_auth/pkg/logging"
	"github.com/Skotchmaster/shop_auth/pkg/mail"
	"github.com/Skotchmaster/shop_auth/pkg/metrics"
	"github.com/Skotchmaster/shop_auth/services/auth/internal/models"
)

type RegisterRequest struct {
	Username string
	Email    string
	Password string
}

// Register creates an unverified user and mails a verification code. An
// unverified user with the same username is replaced. If the mail cannot be
// sent the user is kept and ErrDelivery is returned.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) error {
	username := NormalizeUsername(req.Username)
	l := logging.FromContext(ctx).With("svc", "auth.register", "username", username)

	email, err := validateRegistration(username, req.Email, req.Password)
	if err != nil {
		l.Warn("register_error", "status", 400, "reason", err.Error())
		metrics.Registrations.WithLabelValues("register", "invalid").Inc()
		return err
	}

	pwHash, err := s.hasher.Encode(req.Password)
	if err != nil {
		l.Error("register_error", "status", 500, "reason", "cannot hash the password", "error", err)
		return fmt.Errorf("hash password: %w", err)
	}

	code, err := newVerificationCode()
	if err != nil {
		l.Error("register_error", "status", 500, "error", err)
		return err
	}
	expiresAt := s.clock().Add(s.verificationTTL)

	user := &models.User{
		Username:              username,
		Email:                 email,
		PasswordHash:          pwHash,
		Role:                  models.RoleUser,
		VerificationCode:      code,
		VerificationExpiresAt: &expiresAt,
	}
	if err := s.users.RegisterUser(ctx, user); err != nil {
		if errors.Is(err, autherr.ErrAlreadyRegistered) {
			l.Warn("register_error", "status", 409, "reason", "user already exist")
			metrics.Registrations.WithLabelValues("register", "conflict").Inc()
			return err
		}
		l.Error("register_error", "status", 500, "error", err)
		return fmt.Errorf("register user: %w", err)
	}
	s.publish(ctx, EventUserRegistered, username)

	if err := s.sendCode(ctx, user, code, expiresAt); err != nil {
		l.Error("register_delivery_failed", "status", 502, "error", err)
		metrics.Registrations.WithLabelValues("register", "delivery_failed").Inc()
		return err
	}

	l.Info("register_successful")
	metrics.Registrations.WithLabelValues("register", "success").Inc()
	return nil
}

// VerifyRegistration checks the code and, on success, marks the user verified
// and opens a session. An expired or wrong code leaves the user untouched.
func (s *AuthService) VerifyRegistration(ctx context.Context, username, code string) (*SessionTokens, error) {
	username = NormalizeUsername(username)
	l := logging.FromContext(ctx).With("svc", "auth.verify", "username", username)

	if username == "" || code == "" {
		return nil, fmt.Errorf("username and code are required: %w", autherr.ErrValidation)
	}

	user, err := s.users.FindUserByUsername(ctx, username)
	if err != nil {
		l.Warn("verify_failed", "status", autherr.HTTPStatus(err), "error", err)
		return nil, err
	}
	if user.Verified {
		return nil, autherr.ErrAlreadyVerified
	}
	if user.VerificationExpiresAt == nil || !s.clock().Before(*user.VerificationExpiresAt) {
		l.Warn("verify_failed", "status", 410, "reason", "code expired")
		metrics.Registrations.WithLabelValues("verify", "expired").Inc()
		return nil, autherr.ErrVerificationExpired
	}
	if subtle.ConstantTimeCompare([]byte(strings.ToUpper(strings.TrimSpace(code))), []byte(user.VerificationCode)) != 1 {
		l.Warn("verify_failed", "status", 400, "reason", "code mismatch")
		metrics.Registrations.WithLabelValues("verify", "mismatch").Inc()
		return nil, autherr.ErrVerificationMismatch
	}

	if err := s.users.MarkVerified(ctx, user.ID); err != nil {
		l.Error("verify_failed", "status", autherr.HTTPStatus(err), "error", err)
		return nil, err
	}
	user.Verified = true
	user.VerificationCode = ""
	user.VerificationExpiresAt = nil
	s.publish(ctx, EventUserVerified, username)
	metrics.Registrations.WithLabelValues("verify", "success").Inc()

	return s.startSession(ctx, user)
}

func (s *AuthService) ResendVerificationCode(ctx context.Context, username string) error {
	username = NormalizeUsername(username)
	l := logging.FromContext(ctx).With("svc", "auth.resend", "username", username)

	user, err := s.users.FindUserByUsername(ctx, username)
	if err != nil {
		l.Warn("resend_failed", "status", autherr.HTTPStatus(err), "error", err)
		return err
	}
	if user.Verified {
		return autherr.ErrAlreadyVerified
	}

	code, err := newVerificationCode()
	if err != nil {
		return err
	}
	expiresAt := s.clock().Add(s.verificationTTL)
	if err := s.users.SetVerificationCode(ctx, user.ID, code, expiresAt); err != nil {
		l.Error("resend_failed", "status", autherr.HTTPStatus(err), "error", err)
		return err
	}

	if err := s.sendCode(ctx, user, code, expiresAt); err != nil {
		l.Error("resend_delivery_failed", "status", 502, "error", err)
		metrics.Registrations.WithLabelValues("resend", "delivery_failed").Inc()
		return err
	}
	l.Info("resend_successful")
	metrics.Registrations.WithLabelValues("resend", "success").Inc()
	return nil
}

func (s *AuthService) sendCode(ctx context.Context, user *models.User, code string, expiresAt time.Time) error {
	err := s.mailer.SendVerificationCode(ctx, user.Email, mail.VerificationCode{
		Username:  user.Username,
		Code:      code,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", autherr.ErrDelivery, err)
	}
	return nil
}

func validateRegistration(username, email, password string) (string, error) {
	if username == "" {
		return "", fmt.Errorf("username is required: %w", autherr.ErrValidation)
	}
	if len(password) < MinPasswordLen {
		return "", fmt.Errorf("password must be at least %d characters: %w", MinPasswordLen, autherr.ErrValidation)
	}

	email = strings.TrimSpace(email)
	if email == "" && strings.Contains(username, "@") {
		email = username
	}
	if email == "" {
		return "", fmt.Errorf("email is required: %w", autherr.ErrValidation)
	}
	addr, err := netmail.ParseAddress(email)
	if err != nil {
		return "", fmt.Errorf("invalid email: %w", autherr.ErrValidation)
	}
	return addr.Address, nil
}
