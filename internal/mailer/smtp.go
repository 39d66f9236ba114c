package mailer

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/rs/zerolog"
)

// Config holds SMTP transport configuration.
type Config struct {
	Host           string
	Port           int
	ConnectTimeout time.Duration
	SendTimeout    time.Duration
	// LocalName is the hostname announced in HELO/EHLO. Empty uses the
	// library default.
	LocalName string
	// Username and Password enable AUTH PLAIN when both are set.
	Username string
	Password string
}

// SMTPMailer delivers messages to a single SMTP relay. Each Send opens a
// fresh connection; the dispatch engine sends one message at a time and a
// held-open connection would outlive the per-request store transactions.
type SMTPMailer struct {
	cfg Config
	log zerolog.Logger
}

// NewSMTPMailer creates an SMTPMailer for the given relay.
func NewSMTPMailer(cfg Config, log zerolog.Logger) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, log: log}
}

// Send connects to the relay and submits the message. The connect timeout
// bounds dialing; the send timeout bounds the whole SMTP dialogue via a
// connection deadline.
func (m *SMTPMailer) Send(ctx context.Context, msg *Message) error {
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))

	dialer := net.Dialer{Timeout: m.cfg.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}

	if m.cfg.SendTimeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(m.cfg.SendTimeout)); err != nil {
			conn.Close()
			return fmt.Errorf("set send deadline: %w", err)
		}
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	if m.cfg.LocalName != "" {
		if err := c.Hello(m.cfg.LocalName); err != nil {
			return fmt.Errorf("hello: %w", err)
		}
	}

	if m.cfg.Username != "" && m.cfg.Password != "" {
		auth := sasl.NewPlainClient("", m.cfg.Username, m.cfg.Password)
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}

	if err := c.Mail(msg.From, nil); err != nil {
		return fmt.Errorf("mail from %s: %w", msg.From, err)
	}

	for _, rcpt := range msg.Recipients() {
		if err := c.Rcpt(rcpt, nil); err != nil {
			return fmt.Errorf("rcpt to %s: %w", rcpt, err)
		}
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}

	if _, err := w.Write(msg.Data); err != nil {
		return fmt.Errorf("write: %w", err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("close data: %w", err)
	}

	if err := c.Quit(); err != nil {
		// Message is already accepted at this point. Log and move on.
		m.log.Warn().Err(err).Str("addr", addr).Msg("quit after accepted message failed")
	}

	return nil
}
