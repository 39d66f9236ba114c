package mailer

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestMessageRecipients(t *testing.T) {
	msg := &Message{
		From: "sender@example.com",
		To:   []string{"to1@example.com", "to2@example.com"},
		Cc:   []string{"cc@example.com"},
		Bcc:  []string{"bcc@example.com"},
	}

	got := msg.Recipients()
	want := []string{"to1@example.com", "to2@example.com", "cc@example.com", "bcc@example.com"}
	if len(got) != len(want) {
		t.Fatalf("Recipients() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Recipients()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestMessageRecipientsEmptyKinds(t *testing.T) {
	msg := &Message{From: "sender@example.com", To: []string{"to@example.com"}}
	if got := msg.Recipients(); len(got) != 1 || got[0] != "to@example.com" {
		t.Errorf("Recipients() = %v", got)
	}
}

func TestStdoutMailerWritesEnvelopeAndData(t *testing.T) {
	var buf bytes.Buffer
	m := &StdoutMailer{Out: &buf}

	err := m.Send(context.Background(), &Message{
		From: "sender@example.com",
		To:   []string{"to@example.com"},
		Bcc:  []string{"bcc@example.com"},
		Data: []byte("Subject: hi\r\n\r\nbody"),
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"MAIL FROM=sender@example.com",
		"RCPT=to@example.com,bcc@example.com",
		"Subject: hi",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
