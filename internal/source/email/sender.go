package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.com/nhle/newsdigest/internal/source"
)

// Sender delivers rendered digests over SMTP.
type Sender struct {
	cfg    SMTPConfig
	logger *slog.Logger

	// tlsConfig is overridable in tests.
	tlsConfig *tls.Config
}

// NewSender creates a Sender for the given server settings.
func NewSender(cfg SMTPConfig, logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{
		cfg:       cfg,
		logger:    logger,
		tlsConfig: &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12},
	}
}

// Send composes out as a multipart/alternative message and delivers it to
// each recipient in its own SMTP transaction over a single connection.
// The first recipient that fails aborts the send.
func (s *Sender) Send(ctx context.Context, out Outgoing) error {
	if len(out.Recipients) == 0 {
		return fmt.Errorf("sending digest: no recipients")
	}
	if out.From == "" {
		out.From = s.cfg.Username
	}

	var buf bytes.Buffer
	if err := ComposeMessage(&buf, out); err != nil {
		return fmt.Errorf("composing digest: %w", err)
	}

	client, err := s.dial()
	if err != nil {
		return err
	}
	defer client.Close()

	stop := context.AfterFunc(ctx, func() { _ = client.Close() })
	defer stop()

	if s.cfg.Password != "" {
		auth := sasl.NewPlainClient("", s.cfg.Username, s.cfg.Password)
		if err := client.Auth(auth); err != nil {
			return &source.AuthError{
				Service: source.ServiceSMTP,
				Message: fmt.Sprintf("authentication failed for %s: %v", s.cfg.Username, err),
			}
		}
	}

	raw := buf.Bytes()
	for _, rcpt := range out.Recipients {
		if err := client.SendMail(out.From, []string{rcpt}, bytes.NewReader(raw)); err != nil {
			return fmt.Errorf("sending digest to %s: %w", rcpt, err)
		}
		s.logger.Info("digest delivered", slog.String("recipient", rcpt))
	}

	if err := client.Quit(); err != nil {
		s.logger.Debug("SMTP quit", slog.String("error", err.Error()))
	}

	return nil
}

// dial opens the SMTP connection using the configured security mode.
func (s *Sender) dial() (*smtp.Client, error) {
	addr := s.cfg.Host + ":" + s.cfg.Port

	var (
		client *smtp.Client
		err    error
	)

	switch s.cfg.Security {
	case "tls":
		client, err = smtp.DialTLS(addr, s.tlsConfig)
	case "none":
		client, err = smtp.Dial(addr)
	default:
		client, err = smtp.DialStartTLS(addr, s.tlsConfig)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to SMTP %s: %w", addr, err)
	}

	return client, nil
}

// ComposeMessage writes out as an RFC 5322 message with a text/plain and a
// text/html alternative, both UTF-8.
func ComposeMessage(w io.Writer, out Outgoing) error {
	var h mail.Header

	from, err := mail.ParseAddress(out.From)
	if err != nil {
		from = &mail.Address{Address: out.From}
	}
	h.SetAddressList("From", []*mail.Address{from})

	to := make([]*mail.Address, 0, len(out.Recipients))
	for _, rcpt := range out.Recipients {
		to = append(to, &mail.Address{Address: strings.TrimSpace(rcpt)})
	}
	h.SetAddressList("To", to)

	h.SetSubject(out.Subject)

	date := out.Date
	if date.IsZero() {
		date = time.Now()
	}
	h.SetDate(date)

	if err := h.GenerateMessageID(); err != nil {
		return fmt.Errorf("generating message id: %w", err)
	}

	iw, err := mail.CreateInlineWriter(w, h)
	if err != nil {
		return fmt.Errorf("creating mail writer: %w", err)
	}

	if err := writeInlinePart(iw, "text/plain", out.TextBody); err != nil {
		return err
	}
	if err := writeInlinePart(iw, "text/html", out.HTMLBody); err != nil {
		return err
	}

	return iw.Close()
}

func writeInlinePart(iw *mail.InlineWriter, contentType, body string) error {
	var ph mail.InlineHeader
	ph.SetContentType(contentType, map[string]string{"charset": "utf-8"})
	ph.Set("Content-Transfer-Encoding", "quoted-printable")

	pw, err := iw.CreatePart(ph)
	if err != nil {
		return fmt.Errorf("creating %s part: %w", contentType, err)
	}
	if _, err := io.WriteString(pw, body); err != nil {
		return fmt.Errorf("writing %s part: %w", contentType, err)
	}
	return pw.Close()
}
