package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/clinic-sync/internal/config"
	"github.com/jwalitptl/clinic-sync/pkg/logger"
)

type Message struct {
	To      []string
	Subject string
	Body    string
}

type Service interface {
	Send(ctx context.Context, msg Message) error
}

// sender is the part of gomail.Dialer the SMTP service uses.
type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type smtpService struct {
	dialer sender
	from   string
}

func NewSMTPService(cfg config.SMTPConfig) Service {
	return &smtpService{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (s *smtpService) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return fmt.Errorf("email %q has no recipients", msg.Subject)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To...)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

type logService struct {
	logger *logger.Logger
}

// NewLogService only logs messages. It is used when SMTP is not configured.
func NewLogService(log *logger.Logger) Service {
	return &logService{logger: log}
}

func (s *logService) Send(_ context.Context, msg Message) error {
	s.logger.Info("email not sent, smtp disabled", "to", msg.To, "subject", msg.Subject)
	return nil
}

// New picks the SMTP service when configured.
func New(cfg config.SMTPConfig, log *logger.Logger) Service {
	if cfg.Host == "" {
		return NewLogService(log)
	}
	return NewSMTPService(cfg)
}
