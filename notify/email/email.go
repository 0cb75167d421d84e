// Package email delivers verification codes over SMTP.
package email

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"time"

	"github.com/jordan-wright/email"
	"github.com/sethvargo/go-retry"
)

var ErrEmptyAddress = errors.New("email: empty recipient address")

// Config describes the SMTP relay and the message envelope.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string

	From       string
	SenderName string
	Subject    string
	// CodeTTL is shown in the message body. Zero omits the sentence.
	CodeTTL time.Duration

	// Retries is how many times a transient failure (SMTP 4xx, network
	// timeout) is retried. Zero sends once.
	Retries uint64
	// RetryBackoff is the first Fibonacci backoff step. Defaults to 200ms.
	RetryBackoff time.Duration
}

// Sender delivers one composed message. The default sends through
// Config.Host with PLAIN auth.
type Sender func(ctx context.Context, msg *email.Email) error

// Transport renders and sends one message per code.
type Transport struct {
	cfg    Config
	send   Sender
	logger *slog.Logger
}

var bodyTemplate = template.Must(template.New("code").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
<h1>{{.Subject}}</h1>
<p>Your verification code:</p>
<p style="font-size: 32px; font-weight: bold; letter-spacing: 8px;">{{.Code}}</p>
{{if .Minutes}}<p>The code is valid for {{.Minutes}} minutes.</p>{{end}}
<p>If you did not request this code, ignore this email.</p>
</body>
</html>
`))

func New(cfg Config, logger *slog.Logger) *Transport {
	return NewWithSender(cfg, nil, logger)
}

// NewWithSender replaces the SMTP delivery step, e.g. with a pooled sender
// or a test double.
func NewWithSender(cfg Config, send Sender, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Subject == "" {
		cfg.Subject = "Verification code"
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 200 * time.Millisecond
	}
	t := &Transport{
		cfg:    cfg,
		logger: logger.With(slog.String("transport", "smtp")),
	}
	if send == nil {
		send = t.smtpSend
	}
	t.send = send
	return t
}

// SendCode composes and sends the message to address.
func (t *Transport) SendCode(ctx context.Context, address, code string) error {
	if address == "" {
		return ErrEmptyAddress
	}

	msg, err := t.compose(address, code)
	if err != nil {
		return err
	}

	b := retry.WithMaxRetries(t.cfg.Retries, retry.NewFibonacci(t.cfg.RetryBackoff))
	b = retry.WithCappedDuration(5*time.Second, b)

	err = retry.Do(ctx, b, func(ctx context.Context) error {
		err := t.send(ctx, msg)
		if err == nil {
			return nil
		}
		t.logger.WarnContext(ctx, "smtp send failed", slog.Any("error", err))
		if transient(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("email: send: %w", err)
	}
	return nil
}

// transient reports SMTP 4xx replies and network timeouts.
func transient(err error) bool {
	var proto *textproto.Error
	if errors.As(err, &proto) {
		return proto.Code >= 400 && proto.Code < 500
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func (t *Transport) compose(address, code string) (*email.Email, error) {
	var html bytes.Buffer
	err := bodyTemplate.Execute(&html, struct {
		Subject string
		Code    string
		Minutes int
	}{
		Subject: t.cfg.Subject,
		Code:    code,
		Minutes: int(t.cfg.CodeTTL / time.Minute),
	})
	if err != nil {
		return nil, fmt.Errorf("email: render body: %w", err)
	}

	from := t.cfg.From
	if t.cfg.SenderName != "" {
		from = fmt.Sprintf("%s <%s>", t.cfg.SenderName, t.cfg.From)
	}

	return &email.Email{
		To:      []string{address},
		From:    from,
		Subject: t.cfg.Subject,
		Text:    []byte("Your verification code: " + code + "\n"),
		HTML:    html.Bytes(),
		Headers: textproto.MIMEHeader{},
	}, nil
}

func (t *Transport) smtpSend(_ context.Context, msg *email.Email) error {
	addr := net.JoinHostPort(t.cfg.Host, strconv.Itoa(t.cfg.Port))
	var auth smtp.Auth
	if t.cfg.Username != "" {
		auth = smtp.PlainAuth("", t.cfg.Username, t.cfg.Password, t.cfg.Host)
	}
	return msg.Send(addr, auth)
}
