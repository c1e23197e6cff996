package email

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"slices"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message"
	"github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/nhle/newsdigest/internal/source"
)

// wordDecoder decodes RFC 2047 headers in any charset go-message knows.
var wordDecoder = &mime.WordDecoder{CharsetReader: charset.Reader}

// IMAPClient wraps go-imap v2 for connecting to and querying IMAP servers.
type IMAPClient struct {
	host     string
	port     string
	username string
	password string
	mailbox  string
	logger   *slog.Logger

	// dial is overridable in tests.
	dial func(address string, options *imapclient.Options) (*imapclient.Client, error)
}

// NewIMAPClient creates a new IMAP client configuration.
func NewIMAPClient(
	host, port, username, password string, tls bool,
	mailbox string, logger *slog.Logger,
) *IMAPClient {
	if mailbox == "" {
		mailbox = "INBOX"
	}
	if logger == nil {
		logger = slog.Default()
	}
	dial := imapclient.DialStartTLS
	if tls {
		dial = imapclient.DialTLS
	}
	return &IMAPClient{
		host:     host,
		port:     port,
		username: username,
		password: password,
		mailbox:  mailbox,
		logger:   logger,
		dial:     dial,
	}
}

// Connect establishes a connection to the IMAP server, authenticates,
// and returns the connected client. The caller is responsible for
// calling Logout/Close on the returned client. Cancelling ctx aborts the
// login.
func (c *IMAPClient) Connect(
	ctx context.Context,
) (*imapclient.Client, error) {
	addr := c.host + ":" + c.port
	opts := &imapclient.Options{WordDecoder: wordDecoder}

	c.logger.Info("connecting to IMAP server", slog.String("addr", addr))

	client, err := c.dial(addr, opts)
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	stop := context.AfterFunc(ctx, func() { _ = client.Close() })
	defer stop()

	if err := client.Login(c.username, c.password).Wait(); err != nil {
		_ = client.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("logging in to IMAP %s: %w", addr, ctxErr)
		}
		return nil, &source.AuthError{
			Service: source.ServiceIMAP,
			Message: fmt.Sprintf(
				"authentication failed for %s: %v",
				c.username, err,
			),
		}
	}

	c.logger.Info("IMAP login succeeded", slog.String("user", c.username))
	return client, nil
}

// FetchLatestNewsletter connects, selects the configured mailbox, finds
// every message from senders received since the given time, and returns
// the newest one fully parsed. It returns source.ErrNoNewsletter when
// nothing matches.
func (c *IMAPClient) FetchLatestNewsletter(
	ctx context.Context, senders []string, since time.Time,
) (*ParsedMessage, error) {
	client, err := c.Connect(ctx)
	if err != nil {
		return nil, err
	}
	defer c.logout(client)

	stop := context.AfterFunc(ctx, func() { _ = client.Close() })
	defer stop()

	if _, err := client.Select(c.mailbox, &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		return nil, fmt.Errorf("selecting %s: %w", c.mailbox, err)
	}

	uids := c.searchRecent(client, senders, since)
	if len(uids) == 0 {
		return nil, source.ErrNoNewsletter
	}

	latest := uids[len(uids)-1]
	c.logger.Info("fetching newest newsletter",
		slog.Int("matches", len(uids)),
		slog.Uint64("uid", uint64(latest)))

	return c.fetchMessage(ctx, client, latest)
}

// searchRecent runs one UID SEARCH per sender and merges the results.
// A failed search for one sender is logged and skipped so the others can
// still match.
func (c *IMAPClient) searchRecent(
	client *imapclient.Client, senders []string, since time.Time,
) []imap.UID {
	var batches [][]imap.UID
	for _, sender := range senders {
		criteria := &imap.SearchCriteria{
			Since: since,
			Header: []imap.SearchCriteriaHeaderField{
				{Key: "From", Value: sender},
			},
		}

		c.logger.Info("searching mailbox",
			slog.String("sender", sender),
			slog.String("since", since.Format("02-Jan-2006")))

		data, err := client.UIDSearch(criteria, nil).Wait()
		if err != nil {
			c.logger.Warn("mailbox search failed",
				slog.String("sender", sender),
				slog.String("error", err.Error()))
			continue
		}

		found := data.AllUIDs()
		c.logger.Info("mailbox search done",
			slog.String("sender", sender),
			slog.Int("matches", len(found)))
		batches = append(batches, found)
	}

	return mergeUIDs(batches...)
}

// mergeUIDs deduplicates UIDs across searches and sorts them ascending, so
// the most recently delivered message is last.
func mergeUIDs(batches ...[]imap.UID) []imap.UID {
	var all []imap.UID
	for _, b := range batches {
		all = append(all, b...)
	}
	slices.Sort(all)
	return slices.Compact(all)
}

// fetchMessage fetches the full RFC 822 body for uid without setting \Seen.
func (c *IMAPClient) fetchMessage(
	ctx context.Context, client *imapclient.Client, uid imap.UID,
) (*ParsedMessage, error) {
	bodySection := &imap.FetchItemBodySection{
		Peek: true,
	}

	fetchOpts := &imap.FetchOptions{
		Envelope:    true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := client.Fetch(imap.UIDSetNum(uid), fetchOpts)
	defer fetchCmd.Close()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	msg := fetchCmd.Next()
	if msg == nil {
		return nil, fmt.Errorf("message UID %d not found", uid)
	}

	buf, err := msg.Collect()
	if err != nil {
		return nil, fmt.Errorf("collecting message data: %w", err)
	}

	parsed := parseMessage(buf.FindBodySection(bodySection))
	mergeEnvelope(&parsed.Envelope, envelopeFromBuffer(buf))

	if err := fetchCmd.Close(); err != nil {
		return parsed, fmt.Errorf("closing fetch: %w", err)
	}

	return parsed, nil
}

// MarkSeen connects and sets \Seen on the given message.
func (c *IMAPClient) MarkSeen(ctx context.Context, uid uint32) error {
	client, err := c.Connect(ctx)
	if err != nil {
		return err
	}
	defer c.logout(client)

	stop := context.AfterFunc(ctx, func() { _ = client.Close() })
	defer stop()

	if _, err := client.Select(c.mailbox, nil).Wait(); err != nil {
		return fmt.Errorf("selecting %s: %w", c.mailbox, err)
	}

	storeCmd := client.Store(imap.UIDSetNum(imap.UID(uid)), &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagSeen},
	}, nil)

	if err := storeCmd.Close(); err != nil {
		return fmt.Errorf("marking UID %d seen: %w", uid, err)
	}
	return nil
}

// logout ends the session; failures only matter for the log.
func (c *IMAPClient) logout(client *imapclient.Client) {
	if err := client.Logout().Wait(); err != nil {
		c.logger.Debug("IMAP logout", slog.String("error", err.Error()))
	}
	_ = client.Close()
	c.logger.Info("IMAP connection closed")
}

// envelopeFromBuffer extracts an Envelope from a FetchMessageBuffer.
func envelopeFromBuffer(buf *imapclient.FetchMessageBuffer) Envelope {
	env := Envelope{
		UID: uint32(buf.UID),
	}

	if buf.Envelope != nil {
		env.MessageID = buf.Envelope.MessageID
		env.Subject = buf.Envelope.Subject
		env.Date = buf.Envelope.Date

		if len(buf.Envelope.From) > 0 {
			env.From = buf.Envelope.From[0].Addr()
		}

		for _, to := range buf.Envelope.To {
			env.To = append(env.To, to.Addr())
		}
	}

	return env
}

// mergeEnvelope overlays the server-side envelope onto the one parsed from
// the raw headers; server values win when present.
func mergeEnvelope(dst *Envelope, src Envelope) {
	dst.UID = src.UID
	if src.MessageID != "" {
		dst.MessageID = src.MessageID
	}
	if src.Subject != "" {
		dst.Subject = src.Subject
	}
	if src.From != "" {
		dst.From = src.From
	}
	if len(src.To) > 0 {
		dst.To = src.To
	}
	if !src.Date.IsZero() {
		dst.Date = src.Date
	}
}

// parseMessage parses a raw RFC 5322 message with go-message, filling the
// envelope from its headers and extracting the text/plain body, the first
// text/html body, and attachment metadata.
func parseMessage(raw []byte) *ParsedMessage {
	parsed := &ParsedMessage{}
	if len(raw) == 0 {
		return parsed
	}

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		// If parsing fails, treat the whole thing as plain text.
		parsed.TextBody = string(raw)
		return parsed
	}
	defer mr.Close()

	parsed.Envelope = envelopeFromHeader(mr.Header)

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			break
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			body, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}

			switch {
			case contentType == "text/plain" && parsed.TextBody == "":
				parsed.TextBody = string(body)
			case contentType == "text/html" && parsed.HTMLBody == "":
				parsed.HTMLBody = string(body)
			}

		case *mail.AttachmentHeader:
			filename, _ := h.Filename()
			contentType, _, _ := h.ContentType()

			// Read to get size without storing content
			n, readErr := io.Copy(io.Discard, part.Body)
			if readErr != nil {
				continue
			}

			parsed.Attachments = append(parsed.Attachments, Attachment{
				Filename: filename,
				Size:     n,
				MIMEType: contentType,
			})
		}
	}

	return parsed
}

// envelopeFromHeader reads envelope fields straight from message headers.
func envelopeFromHeader(h mail.Header) Envelope {
	env := Envelope{}

	env.MessageID, _ = h.MessageID()
	env.Date, _ = h.Date()

	if subject, err := h.Subject(); err == nil {
		env.Subject = subject
	} else {
		env.Subject = DecodeHeader(h.Get("Subject"))
	}

	if from, err := h.AddressList("From"); err == nil && len(from) > 0 {
		env.From = from[0].Address
	}
	if to, err := h.AddressList("To"); err == nil {
		for _, addr := range to {
			env.To = append(env.To, addr.Address)
		}
	}

	return env
}

// DecodeHeader decodes an RFC 2047 encoded header value. Values that fail
// to decode are returned unchanged.
func DecodeHeader(v string) string {
	if v == "" {
		return ""
	}
	decoded, err := wordDecoder.DecodeHeader(v)
	if err != nil {
		return v
	}
	return strings.TrimSpace(decoded)
}
