package mail

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"text/template"
	"time"

	gomail "github.com/wneessen/go-mail"

	"github.com/Skotchmaster/shop_auth/pkg/logging"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	TLS      bool
}

// VerificationCode is the payload of the registration email.
type VerificationCode struct {
	Username  string
	Code      string
	ExpiresAt time.Time
}

const verificationSubject = "Your verification code"

var verificationBody = template.Must(template.New("verification").Parse(
	`Hello {{.Username}},

your verification code is {{.Code}}.
It expires at {{.ExpiresAt.Format "2006-01-02 15:04 MST"}}.

If you did not sign up, ignore this message.
`))

// Sender delivers mail through an SMTP relay.
type Sender struct {
	cfg Config
}

func NewSender(cfg Config) (*Sender, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("SMTP host is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("SMTP from address is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &Sender{cfg: cfg}, nil
}

func (s *Sender) SendVerificationCode(ctx context.Context, to string, vc VerificationCode) error {
	msg, err := s.verificationMsg(to, vc)
	if err != nil {
		return err
	}

	client, err := gomail.NewClient(s.cfg.Host, s.clientOptions()...)
	if err != nil {
		return fmt.Errorf("creating mail client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	return nil
}

func (s *Sender) verificationMsg(to string, vc VerificationCode) (*gomail.Msg, error) {
	var body bytes.Buffer
	if err := verificationBody.Execute(&body, vc); err != nil {
		return nil, fmt.Errorf("rendering body: %w", err)
	}

	msg := gomail.NewMsg()
	if err := msg.From(s.cfg.From); err != nil {
		return nil, fmt.Errorf("setting from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("setting to address: %w", err)
	}
	msg.Subject(verificationSubject)
	msg.SetBodyString(gomail.TypeTextPlain, body.String())
	return msg, nil
}

func (s *Sender) clientOptions() []gomail.Option {
	opts := []gomail.Option{
		gomail.WithPort(s.cfg.Port),
		gomail.WithTimeout(10 * time.Second),
	}
	if s.cfg.TLS {
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSMandatory))
		if s.cfg.Port == 465 {
			opts = append(opts, gomail.WithSSL())
		}
	} else {
		opts = append(opts, gomail.WithTLSPolicy(gomail.NoTLS))
	}
	if s.cfg.Username != "" && s.cfg.Password != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.cfg.Username),
			gomail.WithPassword(s.cfg.Password),
		)
	}
	return opts
}

// LogSender writes the code to the log instead of sending it. Used when no
// SMTP host is configured.
type LogSender struct{}

func (LogSender) SendVerificationCode(ctx context.Context, to string, vc VerificationCode) error {
	logging.FromContext(ctx).Info("verification_code_issued",
		slog.String("to", to),
		slog.String("username", vc.Username),
		slog.String("code", vc.Code),
		slog.Time("expires_at", vc.ExpiresAt),
	)
	return nil
}
