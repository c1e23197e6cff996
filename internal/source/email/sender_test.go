package email

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/newsdigest/internal/source"
)

type delivery struct {
	from string
	to   []string
	data []byte
}

// testBackend is an in-process SMTP server that records every transaction.
type testBackend struct {
	mu         sync.Mutex
	deliveries []delivery
	username   string
	password   string
	rejectRcpt string
}

func (b *testBackend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &testSession{backend: b}, nil
}

func (b *testBackend) all() []delivery {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]delivery(nil), b.deliveries...)
}

type testSession struct {
	backend *testBackend
	authed  bool
	cur     delivery
}

func (s *testSession) AuthMechanisms() []string {
	return []string{sasl.Plain}
}

func (s *testSession) Auth(_ string) (sasl.Server, error) {
	return sasl.NewPlainServer(func(_, username, password string) error {
		if username != s.backend.username || password != s.backend.password {
			return errors.New("invalid credentials")
		}
		s.authed = true
		return nil
	}), nil
}

func (s *testSession) Mail(from string, _ *smtp.MailOptions) error {
	if s.backend.password != "" && !s.authed {
		return smtp.ErrAuthRequired
	}
	s.cur = delivery{from: from}
	return nil
}

func (s *testSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	if to == s.backend.rejectRcpt {
		return &smtp.SMTPError{Code: 550, EnhancedCode: smtp.EnhancedCode{5, 1, 1}, Message: "mailbox unavailable"}
	}
	s.cur.to = append(s.cur.to, to)
	return nil
}

func (s *testSession) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.cur.data = data

	s.backend.mu.Lock()
	s.backend.deliveries = append(s.backend.deliveries, s.cur)
	s.backend.mu.Unlock()
	return nil
}

func (s *testSession) Reset() {
	s.cur = delivery{}
}

func (s *testSession) Logout() error { return nil }

func startSMTPServer(t *testing.T, be *testBackend) SMTPConfig {
	t.Helper()

	srv := smtp.NewServer(be)
	srv.Domain = "localhost"
	srv.AllowInsecureAuth = true
	srv.ReadTimeout = 5 * time.Second
	srv.WriteTimeout = 5 * time.Second

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() { _ = srv.Serve(l) }()
	t.Cleanup(func() { _ = srv.Close() })

	host, port, err := net.SplitHostPort(l.Addr().String())
	require.NoError(t, err)

	return SMTPConfig{
		Host:     host,
		Port:     port,
		Username: be.username,
		Password: be.password,
		Security: "none",
	}
}

func sampleOutgoing() Outgoing {
	return Outgoing{
		From:       "me@gmail.com",
		Recipients: []string{"a@example.com", "b@example.com"},
		Subject:    "🤖 TLDR AI 뉴스레터 요약 - 2025년 03월 07일",
		TextBody:   "# 오늘의 소식\n",
		HTMLBody:   "<h1>오늘의 소식</h1>",
		Date:       time.Date(2025, 3, 7, 9, 0, 0, 0, time.UTC),
	}
}

func TestSender_DeliversToEachRecipient(t *testing.T) {
	be := &testBackend{username: "me@gmail.com", password: "app-password"}
	cfg := startSMTPServer(t, be)

	err := NewSender(cfg, nil).Send(context.Background(), sampleOutgoing())
	require.NoError(t, err)

	got := be.all()
	require.Len(t, got, 2)
	assert.Equal(t, "me@gmail.com", got[0].from)
	assert.Equal(t, []string{"a@example.com"}, got[0].to)
	assert.Equal(t, []string{"b@example.com"}, got[1].to)
	assert.Equal(t, got[0].data, got[1].data, "every recipient gets the same message")

	mr, err := mail.CreateReader(bytes.NewReader(got[0].data))
	require.NoError(t, err)
	subject, err := mr.Header.Subject()
	require.NoError(t, err)
	assert.Equal(t, "🤖 TLDR AI 뉴스레터 요약 - 2025년 03월 07일", subject)
}

func TestSender_AuthFailure(t *testing.T) {
	be := &testBackend{username: "me@gmail.com", password: "app-password"}
	cfg := startSMTPServer(t, be)
	cfg.Password = "wrong"

	err := NewSender(cfg, nil).Send(context.Background(), sampleOutgoing())
	require.Error(t, err)
	assert.True(t, source.IsAuthError(err))
	assert.Empty(t, be.all())
}

func TestSender_RecipientFailureNamesRecipient(t *testing.T) {
	be := &testBackend{rejectRcpt: "b@example.com"}
	cfg := startSMTPServer(t, be)

	err := NewSender(cfg, nil).Send(context.Background(), sampleOutgoing())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b@example.com")
	assert.Len(t, be.all(), 1, "delivery stops at the failing recipient")
}

func TestSender_NoRecipients(t *testing.T) {
	out := sampleOutgoing()
	out.Recipients = nil

	err := NewSender(SMTPConfig{Host: "127.0.0.1", Port: "1"}, nil).Send(context.Background(), out)
	assert.ErrorContains(t, err, "no recipients")
}

func TestComposeMessage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ComposeMessage(&buf, sampleOutgoing()))

	raw := buf.String()
	assert.Contains(t, raw, "multipart/alternative")
	assert.Contains(t, raw, "Message-Id:")

	mr, err := mail.CreateReader(strings.NewReader(raw))
	require.NoError(t, err)

	to, err := mr.Header.AddressList("To")
	require.NoError(t, err)
	require.Len(t, to, 2)
	assert.Equal(t, "a@example.com", to[0].Address)

	date, err := mr.Header.Date()
	require.NoError(t, err)
	assert.True(t, date.Equal(sampleOutgoing().Date))

	var types []string
	var html string
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)

		h, ok := p.Header.(*mail.InlineHeader)
		require.True(t, ok)
		ct, params, err := h.ContentType()
		require.NoError(t, err)
		assert.Equal(t, "utf-8", params["charset"])
		types = append(types, ct)

		body, err := io.ReadAll(p.Body)
		require.NoError(t, err)
		if ct == "text/html" {
			html = string(body)
		}
	}

	assert.Equal(t, []string{"text/plain", "text/html"}, types)
	assert.Equal(t, "<h1>오늘의 소식</h1>", html)
}
