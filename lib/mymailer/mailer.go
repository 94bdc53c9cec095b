package mymailer

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/jordan-wright/email"

	"github.com/MarcGrol/coursebackend/lib/mylog"
)

type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	From     string
}

//go:generate mockgen -source=mailer.go -package mymailer -destination mailer_mock.go Sender
type Sender interface {
	Send(c context.Context, to string, subject string, body string) error
}

// New returns an SMTP sender, or a sender that only logs when no SMTP host is configured.
func New(cfg Config) Sender {
	if cfg.Host == "" {
		return &logSender{logger: mylog.New("mailer")}
	}
	return &smtpSender{cfg: cfg}
}

type smtpSender struct {
	cfg Config
}

func (s *smtpSender) Send(c context.Context, to string, subject string, body string) error {
	e := composeEmail(s.cfg.From, to, subject, body)

	var auth smtp.Auth
	if s.cfg.User != "" {
		auth = smtp.PlainAuth("", s.cfg.User, s.cfg.Password, s.cfg.Host)
	}

	err := e.Send(fmt.Sprintf("%s:%s", s.cfg.Host, s.cfg.Port), auth)
	if err != nil {
		return fmt.Errorf("error sending email to %s: %w", to, err)
	}
	return nil
}

func composeEmail(from, to, subject, body string) *email.Email {
	e := email.NewEmail()
	e.From = from
	e.To = []string{to}
	e.Subject = subject
	e.Text = []byte(body)
	return e
}

type logSender struct {
	logger mylog.Logger
}

func (s *logSender) Send(c context.Context, to string, subject string, body string) error {
	s.logger.Log(c, to, mylog.SeverityInfo, "SMTP not configured, email to %s not sent: %s", to, subject)
	return nil
}
