package storage

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// Status represents the lifecycle state of a mail request.
type Status string

const (
	// StatusUnsent indicates the request is persisted and waiting for dispatch.
	StatusUnsent Status = "UNSENT"
	// StatusSent indicates the request was handed to the mail transport.
	StatusSent Status = "SENT"
	// StatusFailed indicates dispatch failed; the row is retried only by
	// external resubmission.
	StatusFailed Status = "FAILED"
)

// RecipientKind identifies which header block a recipient belongs to.
type RecipientKind string

const (
	KindTo  RecipientKind = "TO"
	KindCc  RecipientKind = "CC"
	KindBcc RecipientKind = "BCC"
)

// MailRequest is one durable send request. Rows are created at submission
// and only status, sent_at and owner_process_id change afterwards.
type MailRequest struct {
	RequestID      string
	Subject        string
	FromAddr       string
	ReplyTo        string
	ReturnPath     string
	Charset        string
	Body           string
	Status         Status
	RequestedAt    time.Time
	SentAt         pgtype.Timestamptz
	PatternID      pgtype.Text
	OwnerProcessID pgtype.Text
}

// Recipient is one addressee of a request. Serials are contiguous from 1
// across the TO, CC and BCC blocks in that order.
type Recipient struct {
	RequestID string
	Serial    int32
	Kind      RecipientKind
	Address   string
}

// Attachment is one file attached to a request.
type Attachment struct {
	RequestID   string
	Serial      int32
	Filename    string
	ContentType string
	Content     []byte
}

// Template is a stored mail template keyed by id and language.
// Templates are read-only from this subsystem's perspective.
type Template struct {
	TemplateID string
	Lang       string
	Subject    string
	Body       string
	Charset    string
}
