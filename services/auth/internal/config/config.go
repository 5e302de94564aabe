package config

import (
	"fmt"
	"os"
	"time"

	"github.com/Skotchmaster/shop_auth/pkg/config"
	"github.com/Skotchmaster/shop_auth/pkg/mail"
	"github.com/Skotchmaster/shop_auth/pkg/tokens"
)

type ServiceConfig struct {
	config.Base

	Addr string

	JWTSecret       []byte
	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	Leeway          time.Duration
	VerificationTTL time.Duration

	SMTP mail.Config

	CleanupSchedule string
}

func Load() ServiceConfig {
	return ServiceConfig{
		Base: config.LoadBase("auth"),

		Addr: config.EnvDefault("AUTH_ADDR", ":8081"),

		JWTSecret:       []byte(os.Getenv("JWT_SECRET")),
		AccessTTL:       config.EnvDurationDefault("ACCESS_TOKEN_TTL", tokens.DefaultAccessTTL),
		RefreshTTL:      config.EnvDurationDefault("REFRESH_TOKEN_TTL", tokens.DefaultRefreshTTL),
		Leeway:          config.EnvDurationDefault("JWT_LEEWAY", 0),
		VerificationTTL: time.Duration(config.EnvIntDefault("VERIFICATION_CODE_TTL_MINUTES", 15)) * time.Minute,

		SMTP: mail.Config{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     config.EnvIntDefault("SMTP_PORT", 587),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     os.Getenv("SMTP_FROM"),
			TLS:      config.EnvBoolDefault("SMTP_TLS", true),
		},

		CleanupSchedule: config.EnvDefault("CLEANUP_SCHEDULE", "@hourly"),
	}
}

// Validate checks what serve needs before anything is dialed.
func (c ServiceConfig) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("missing required env DATABASE_URL")
	}
	if err := config.RequireMinLen(c.JWTSecret, tokens.MinSecretLen, "JWT_SECRET"); err != nil {
		return err
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= c.AccessTTL {
		return fmt.Errorf("REFRESH_TOKEN_TTL (%s) must exceed ACCESS_TOKEN_TTL (%s)", c.RefreshTTL, c.AccessTTL)
	}
	if c.Leeway < 0 || c.Leeway > tokens.MaxLeeway {
		return fmt.Errorf("JWT_LEEWAY must be between 0 and %s, got %s", tokens.MaxLeeway, c.Leeway)
	}
	if c.VerificationTTL <= 0 {
		return fmt.Errorf("VERIFICATION_CODE_TTL_MINUTES must be positive")
	}
	return nil
}

func (c ServiceConfig) Codec() tokens.Config {
	return tokens.Config{
		Secret:     c.JWTSecret,
		AccessTTL:  c.AccessTTL,
		RefreshTTL: c.RefreshTTL,
		Leeway:     c.Leeway,
	}
}

// MailEnabled is false when no SMTP relay is configured; codes are then
// written to the log.
func (c ServiceConfig) MailEnabled() bool {
	return c.SMTP.Host != ""
}
