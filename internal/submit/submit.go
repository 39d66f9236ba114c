// Package submit validates and persists send requests. A request, its
// recipients and its attachments are written in one transaction; a request
// is either fully queued or not queued at all.
package submit

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sungwon/mail-dispatch/internal/metrics"
	"github.com/sungwon/mail-dispatch/internal/sequence"
	"github.com/sungwon/mail-dispatch/internal/storage"
	"github.com/sungwon/mail-dispatch/internal/template"
)

// Config holds submission defaults and limits.
type Config struct {
	DefaultCharset    string
	DefaultReplyTo    string
	DefaultReturnPath string
	MaxRecipients     int
	MaxAttachedBytes  int64
	SequenceScope     string
}

// Attachment is one file to attach to a request.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Request is the caller-facing submission input. ReplyTo, ReturnPath and
// Charset fall back to the configured defaults when empty.
type Request struct {
	Subject    string
	From       string
	ReplyTo    string
	ReturnPath string
	Charset    string
	Body       string

	To  []string
	Cc  []string
	Bcc []string

	Attachments []Attachment

	// PatternID optionally tags the request for a specific worker pool.
	PatternID string
}

// TemplateRequest is a submission whose subject and body come from a stored
// template.
type TemplateRequest struct {
	TemplateID   string
	Lang         string
	Placeholders map[string]any
	// Blended indicates the template body is a single combined string
	// split into subject and body by the delimiter grammar.
	Blended bool

	From       string
	ReplyTo    string
	ReturnPath string

	To  []string
	Cc  []string
	Bcc []string

	Attachments []Attachment

	PatternID string
}

// Submitter persists validated requests.
type Submitter struct {
	db       *storage.DB
	seq      sequence.Sequencer
	resolver *template.Resolver
	cfg      Config
	log      zerolog.Logger
}

// New creates a Submitter. The resolver may be nil if templated submission
// is not used.
func New(db *storage.DB, seq sequence.Sequencer, resolver *template.Resolver, cfg Config, log zerolog.Logger) *Submitter {
	return &Submitter{
		db:       db,
		seq:      seq,
		resolver: resolver,
		cfg:      cfg,
		log:      log,
	}
}

// Submit validates the request, allocates a request id and persists the
// request with its recipients and attachments atomically. It returns the
// new request id. Validation failures leave nothing persisted.
func (s *Submitter) Submit(ctx context.Context, req *Request) (string, error) {
	if err := s.validate(req); err != nil {
		return "", err
	}
	s.applyDefaults(req)

	requestID, err := s.seq.NextID(ctx, s.cfg.SequenceScope)
	if err != nil {
		return "", fmt.Errorf("allocate request id: %w", err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer tx.Rollback(ctx)

	q := storage.New(tx)

	if err := q.CreateMailRequest(ctx, storage.CreateMailRequestParams{
		RequestID:   requestID,
		Subject:     req.Subject,
		FromAddr:    req.From,
		ReplyTo:     req.ReplyTo,
		ReturnPath:  req.ReturnPath,
		Charset:     req.Charset,
		Body:        req.Body,
		Status:      storage.StatusUnsent,
		RequestedAt: time.Now(),
		PatternID:   req.PatternID,
	}); err != nil {
		return "", fmt.Errorf("create mail request: %w", err)
	}

	// Recipient serials are contiguous from 1 across the TO, CC, BCC
	// blocks in that order.
	serial := int32(0)
	for _, block := range []struct {
		kind      storage.RecipientKind
		addresses []string
	}{
		{storage.KindTo, req.To},
		{storage.KindCc, req.Cc},
		{storage.KindBcc, req.Bcc},
	} {
		for _, address := range block.addresses {
			serial++
			if err := q.CreateRecipient(ctx, storage.CreateRecipientParams{
				RequestID: requestID,
				Serial:    serial,
				Kind:      block.kind,
				Address:   address,
			}); err != nil {
				return "", fmt.Errorf("create recipient %d: %w", serial, err)
			}
		}
	}

	for i, att := range req.Attachments {
		if err := q.CreateAttachment(ctx, storage.CreateAttachmentParams{
			RequestID:   requestID,
			Serial:      int32(i + 1),
			Filename:    att.Filename,
			ContentType: att.ContentType,
			Content:     att.Content,
		}); err != nil {
			return "", fmt.Errorf("create attachment %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit submission: %w", err)
	}

	metrics.RequestsSubmittedTotal.Inc()
	s.log.Info().
		Str("request_id", requestID).
		Int("recipients", int(serial)).
		Int("attachments", len(req.Attachments)).
		Msg("mail request queued")

	return requestID, nil
}

// SubmitTemplate resolves the template, then submits the rendered subject
// and body with the given addressing.
func (s *Submitter) SubmitTemplate(ctx context.Context, req *TemplateRequest) (string, error) {
	if s.resolver == nil {
		return "", fmt.Errorf("template submission not configured")
	}

	var resolved template.Resolved
	var err error
	if req.Blended {
		resolved, err = s.resolver.ResolveBlended(ctx, req.TemplateID, req.Lang, req.Placeholders)
	} else {
		resolved, err = s.resolver.Resolve(ctx, req.TemplateID, req.Lang, req.Placeholders)
	}
	if err != nil {
		return "", err
	}

	return s.Submit(ctx, &Request{
		Subject:     resolved.Subject,
		From:        req.From,
		ReplyTo:     req.ReplyTo,
		ReturnPath:  req.ReturnPath,
		Charset:     resolved.Charset,
		Body:        resolved.Body,
		To:          req.To,
		Cc:          req.Cc,
		Bcc:         req.Bcc,
		Attachments: req.Attachments,
		PatternID:   req.PatternID,
	})
}

func (s *Submitter) validate(req *Request) error {
	total := len(req.To) + len(req.Cc) + len(req.Bcc)
	if total < 1 || total > s.cfg.MaxRecipients {
		metrics.SubmissionRejectedTotal.WithLabelValues("recipient_count").Inc()
		return &RecipientCountError{Limit: s.cfg.MaxRecipients, Count: total}
	}

	var size int64
	for _, att := range req.Attachments {
		size += int64(len(att.Content))
	}
	if size > s.cfg.MaxAttachedBytes {
		metrics.SubmissionRejectedTotal.WithLabelValues("attachment_size").Inc()
		return &AttachmentSizeError{Limit: s.cfg.MaxAttachedBytes, Size: size}
	}

	return nil
}

func (s *Submitter) applyDefaults(req *Request) {
	if req.ReplyTo == "" {
		req.ReplyTo = s.cfg.DefaultReplyTo
	}
	if req.ReturnPath == "" {
		req.ReturnPath = s.cfg.DefaultReturnPath
	}
	if req.Charset == "" {
		req.Charset = s.cfg.DefaultCharset
	}
}
