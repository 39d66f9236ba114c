package mailer

import (
	"bytes"
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-sasl"
	gosmtp "github.com/emersion/go-smtp"
	"github.com/rs/zerolog"
)

// relayBackend implements the go-smtp Backend interface and records the
// envelope, data and credentials of delivered messages.
type relayBackend struct {
	mu       sync.Mutex
	from     string
	rcpts    []string
	data     []byte
	username string
	password string
}

func (b *relayBackend) NewSession(_ *gosmtp.Conn) (gosmtp.Session, error) {
	return &relaySession{backend: b}, nil
}

type relaySession struct {
	backend *relayBackend
}

func (s *relaySession) AuthMechanisms() []string {
	return []string{sasl.Plain}
}

func (s *relaySession) Auth(_ string) (sasl.Server, error) {
	return sasl.NewPlainServer(func(identity, username, password string) error {
		s.backend.mu.Lock()
		defer s.backend.mu.Unlock()
		s.backend.username = username
		s.backend.password = password
		return nil
	}), nil
}

func (s *relaySession) Mail(from string, _ *gosmtp.MailOptions) error {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	s.backend.from = from
	return nil
}

func (s *relaySession) Rcpt(to string, _ *gosmtp.RcptOptions) error {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	s.backend.rcpts = append(s.backend.rcpts, to)
	return nil
}

func (s *relaySession) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	s.backend.data = data
	return nil
}

func (s *relaySession) Reset() {}

func (s *relaySession) Logout() error { return nil }

// startRelay serves the backend on a loopback port for the test's lifetime.
func startRelay(t *testing.T, backend *relayBackend) (host string, port int) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	srv := gosmtp.NewServer(backend)
	srv.AllowInsecureAuth = true
	go func() {
		_ = srv.Serve(ln)
	}()
	t.Cleanup(func() { srv.Close() })

	addr := ln.Addr().(*net.TCPAddr)
	return "127.0.0.1", addr.Port
}

func testSMTPConfig(host string, port int) Config {
	return Config{
		Host:           host,
		Port:           port,
		ConnectTimeout: 5 * time.Second,
		SendTimeout:    5 * time.Second,
		LocalName:      "dispatch.test",
	}
}

func TestSMTPMailerDeliversEnvelopeAndData(t *testing.T) {
	backend := &relayBackend{}
	host, port := startRelay(t, backend)

	m := NewSMTPMailer(testSMTPConfig(host, port), zerolog.Nop())
	msg := &Message{
		From: "bounces@example.com",
		To:   []string{"to1@example.com", "to2@example.com"},
		Cc:   []string{"cc@example.com"},
		Bcc:  []string{"bcc@example.com"},
		Data: []byte("Subject: greetings\r\n\r\nbody line one\r\nbody line two\r\n"),
	}

	if err := m.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	backend.mu.Lock()
	defer backend.mu.Unlock()

	// The envelope sender is the message's return path, not a header.
	if backend.from != "bounces@example.com" {
		t.Errorf("MAIL FROM = %q, want bounces@example.com", backend.from)
	}

	want := []string{"to1@example.com", "to2@example.com", "cc@example.com", "bcc@example.com"}
	if len(backend.rcpts) != len(want) {
		t.Fatalf("RCPT TO = %v, want %v", backend.rcpts, want)
	}
	for i := range want {
		if backend.rcpts[i] != want[i] {
			t.Errorf("RCPT TO[%d] = %q, want %q", i, backend.rcpts[i], want[i])
		}
	}

	for _, fragment := range []string{"Subject: greetings", "body line one", "body line two"} {
		if !bytes.Contains(backend.data, []byte(fragment)) {
			t.Errorf("delivered data missing %q:\n%s", fragment, backend.data)
		}
	}
}

func TestSMTPMailerAuthenticates(t *testing.T) {
	backend := &relayBackend{}
	host, port := startRelay(t, backend)

	cfg := testSMTPConfig(host, port)
	cfg.Username = "dispatch"
	cfg.Password = "relay-secret"

	m := NewSMTPMailer(cfg, zerolog.Nop())
	msg := &Message{
		From: "sender@example.com",
		To:   []string{"rcpt@example.com"},
		Data: []byte("Subject: authed\r\n\r\nbody\r\n"),
	}

	if err := m.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	backend.mu.Lock()
	defer backend.mu.Unlock()
	if backend.username != "dispatch" || backend.password != "relay-secret" {
		t.Errorf("credentials = %q/%q, want dispatch/relay-secret", backend.username, backend.password)
	}
}

func TestSMTPMailerSendTimeout(t *testing.T) {
	// A listener that accepts and never sends the greeting: the dialogue
	// must fail with an ordinary error once the send deadline expires.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go io.Copy(io.Discard, conn)
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	cfg := testSMTPConfig("127.0.0.1", addr.Port)
	cfg.SendTimeout = 200 * time.Millisecond

	m := NewSMTPMailer(cfg, zerolog.Nop())
	msg := &Message{
		From: "sender@example.com",
		To:   []string{"rcpt@example.com"},
		Data: []byte("Subject: stuck\r\n\r\nbody\r\n"),
	}

	start := time.Now()
	err = m.Send(context.Background(), msg)
	if err == nil {
		t.Fatal("expected a send error from the expired deadline")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("send took %v, deadline not honored", elapsed)
	}
}
