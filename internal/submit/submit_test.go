package submit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

// failSequencer stops Submit right after validation, so tests can observe
// validation and defaulting without a database.
type failSequencer struct{}

var errSequencerStop = fmt.Errorf("sequencer stop")

func (failSequencer) NextID(context.Context, string) (string, error) {
	return "", errSequencerStop
}

func testConfig() Config {
	return Config{
		DefaultCharset:    "UTF-8",
		DefaultReplyTo:    "replies@example.com",
		DefaultReturnPath: "bounces@example.com",
		MaxRecipients:     3,
		MaxAttachedBytes:  1024,
		SequenceScope:     "mail",
	}
}

func testSubmitter(cfg Config) *Submitter {
	return New(nil, failSequencer{}, nil, cfg, zerolog.Nop())
}

func addresses(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("rcpt%d@example.com", i+1)
	}
	return out
}

func TestSubmitRecipientCount(t *testing.T) {
	cfg := testConfig()

	tests := []struct {
		name    string
		to      []string
		cc      []string
		bcc     []string
		wantErr bool
	}{
		{name: "zero recipients", wantErr: true},
		{name: "one recipient", to: addresses(1)},
		{name: "at limit across kinds", to: addresses(1), cc: addresses(1), bcc: addresses(1)},
		{name: "over limit", to: addresses(2), cc: addresses(2), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testSubmitter(cfg)
			_, err := s.Submit(context.Background(), &Request{
				Subject: "hello",
				From:    "sender@example.com",
				To:      tt.to,
				Cc:      tt.cc,
				Bcc:     tt.bcc,
			})

			if !tt.wantErr {
				// Valid input proceeds past validation and hits the
				// stop sequencer.
				if !errors.Is(err, errSequencerStop) {
					t.Fatalf("expected sequencer stop, got %v", err)
				}
				return
			}

			var countErr *RecipientCountError
			if !errors.As(err, &countErr) {
				t.Fatalf("expected RecipientCountError, got %v", err)
			}
			if countErr.Limit != cfg.MaxRecipients {
				t.Errorf("Limit = %d, want %d", countErr.Limit, cfg.MaxRecipients)
			}
			if got := len(tt.to) + len(tt.cc) + len(tt.bcc); countErr.Count != got {
				t.Errorf("Count = %d, want %d", countErr.Count, got)
			}
		})
	}
}

func TestSubmitAttachmentSizeLimit(t *testing.T) {
	cfg := testConfig()
	s := testSubmitter(cfg)

	req := &Request{
		Subject: "hello",
		From:    "sender@example.com",
		To:      addresses(1),
		Attachments: []Attachment{
			{Filename: "a.bin", ContentType: "application/octet-stream", Content: make([]byte, 600)},
			{Filename: "b.bin", ContentType: "application/octet-stream", Content: make([]byte, 600)},
		},
	}

	_, err := s.Submit(context.Background(), req)
	var sizeErr *AttachmentSizeError
	if !errors.As(err, &sizeErr) {
		t.Fatalf("expected AttachmentSizeError, got %v", err)
	}
	if sizeErr.Size != 1200 {
		t.Errorf("Size = %d, want the combined total 1200", sizeErr.Size)
	}
	if sizeErr.Limit != cfg.MaxAttachedBytes {
		t.Errorf("Limit = %d, want %d", sizeErr.Limit, cfg.MaxAttachedBytes)
	}
}

func TestSubmitAttachmentSizeAtLimit(t *testing.T) {
	s := testSubmitter(testConfig())

	req := &Request{
		Subject: "hello",
		From:    "sender@example.com",
		To:      addresses(1),
		Attachments: []Attachment{
			{Filename: "a.bin", ContentType: "application/octet-stream", Content: make([]byte, 1024)},
		},
	}

	_, err := s.Submit(context.Background(), req)
	if !errors.Is(err, errSequencerStop) {
		t.Fatalf("exactly at the limit should validate, got %v", err)
	}
}

func TestSubmitAppliesDefaults(t *testing.T) {
	s := testSubmitter(testConfig())

	req := &Request{
		Subject: "hello",
		From:    "sender@example.com",
		To:      addresses(1),
	}
	_, _ = s.Submit(context.Background(), req)

	if req.ReplyTo != "replies@example.com" {
		t.Errorf("ReplyTo = %q, want default", req.ReplyTo)
	}
	if req.ReturnPath != "bounces@example.com" {
		t.Errorf("ReturnPath = %q, want default", req.ReturnPath)
	}
	if req.Charset != "UTF-8" {
		t.Errorf("Charset = %q, want default", req.Charset)
	}
}

func TestSubmitKeepsExplicitValues(t *testing.T) {
	s := testSubmitter(testConfig())

	req := &Request{
		Subject:    "hello",
		From:       "sender@example.com",
		ReplyTo:    "other@example.com",
		ReturnPath: "other-bounces@example.com",
		Charset:    "ISO-2022-JP",
		To:         addresses(1),
	}
	_, _ = s.Submit(context.Background(), req)

	if req.ReplyTo != "other@example.com" || req.Charset != "ISO-2022-JP" {
		t.Error("explicit values must not be overwritten by defaults")
	}
}

func TestSubmitTemplateWithoutResolver(t *testing.T) {
	s := testSubmitter(testConfig())

	_, err := s.SubmitTemplate(context.Background(), &TemplateRequest{
		TemplateID: "welcome",
		Lang:       "en",
		To:         addresses(1),
	})
	if err == nil || !strings.Contains(err.Error(), "not configured") {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
