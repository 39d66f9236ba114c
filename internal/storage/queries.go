package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of pgx operations used by Queries. Both *pgxpool.Pool
// and pgx.Tx satisfy it, so the same query methods run inside or outside
// a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// New creates a Queries instance backed by the given connection source.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// Queries holds all SQL operations on the dispatch queue tables.
type Queries struct {
	db DBTX
}

// WithTx returns a Queries that runs all operations on the given transaction.
func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

// Querier is the storage interface consumed by the submission, claim and
// dispatch components. Implemented by *Queries; tests provide mocks.
type Querier interface {
	CreateMailRequest(ctx context.Context, arg CreateMailRequestParams) error
	CreateRecipient(ctx context.Context, arg CreateRecipientParams) error
	CreateAttachment(ctx context.Context, arg CreateAttachmentParams) error
	GetMailRequest(ctx context.Context, requestID string) (MailRequest, error)
	ListRecipients(ctx context.Context, requestID string) ([]Recipient, error)
	ListAttachments(ctx context.Context, requestID string) ([]Attachment, error)
	ListUnsent(ctx context.Context, patternID string) ([]string, error)
	ListOwned(ctx context.Context, arg ListOwnedParams) ([]string, error)
	CountUnclaimed(ctx context.Context, patternID string) (int64, error)
	ClaimRequests(ctx context.Context, arg ClaimRequestsParams) (int64, error)
	MarkSent(ctx context.Context, arg MarkSentParams) (int64, error)
	MarkFailed(ctx context.Context, requestID string) (int64, error)
	GetTemplate(ctx context.Context, arg GetTemplateParams) (Template, error)
	NextSequenceValue(ctx context.Context, scope string) (int64, error)
}

var _ Querier = (*Queries)(nil)

const createMailRequest = `
INSERT INTO mail_requests (
	request_id, subject, from_addr, reply_to, return_path, charset, body,
	status, requested_at, pattern_id
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''))
`

// CreateMailRequestParams carries one row for the mail_requests table.
// An empty PatternID is stored as NULL.
type CreateMailRequestParams struct {
	RequestID   string
	Subject     string
	FromAddr    string
	ReplyTo     string
	ReturnPath  string
	Charset     string
	Body        string
	Status      Status
	RequestedAt time.Time
	PatternID   string
}

func (q *Queries) CreateMailRequest(ctx context.Context, arg CreateMailRequestParams) error {
	_, err := q.db.Exec(ctx, createMailRequest,
		arg.RequestID,
		arg.Subject,
		arg.FromAddr,
		arg.ReplyTo,
		arg.ReturnPath,
		arg.Charset,
		arg.Body,
		arg.Status,
		arg.RequestedAt,
		arg.PatternID,
	)
	return err
}

const createRecipient = `
INSERT INTO recipients (request_id, serial, kind, address)
VALUES ($1, $2, $3, $4)
`

type CreateRecipientParams struct {
	RequestID string
	Serial    int32
	Kind      RecipientKind
	Address   string
}

func (q *Queries) CreateRecipient(ctx context.Context, arg CreateRecipientParams) error {
	_, err := q.db.Exec(ctx, createRecipient, arg.RequestID, arg.Serial, arg.Kind, arg.Address)
	return err
}

const createAttachment = `
INSERT INTO attachments (request_id, serial, filename, content_type, bytes)
VALUES ($1, $2, $3, $4, $5)
`

type CreateAttachmentParams struct {
	RequestID   string
	Serial      int32
	Filename    string
	ContentType string
	Content     []byte
}

func (q *Queries) CreateAttachment(ctx context.Context, arg CreateAttachmentParams) error {
	_, err := q.db.Exec(ctx, createAttachment, arg.RequestID, arg.Serial, arg.Filename, arg.ContentType, arg.Content)
	return err
}

const getMailRequest = `
SELECT request_id, subject, from_addr, reply_to, return_path, charset, body,
	status, requested_at, sent_at, pattern_id, owner_process_id
FROM mail_requests
WHERE request_id = $1
`

func (q *Queries) GetMailRequest(ctx context.Context, requestID string) (MailRequest, error) {
	row := q.db.QueryRow(ctx, getMailRequest, requestID)
	var r MailRequest
	err := row.Scan(
		&r.RequestID,
		&r.Subject,
		&r.FromAddr,
		&r.ReplyTo,
		&r.ReturnPath,
		&r.Charset,
		&r.Body,
		&r.Status,
		&r.RequestedAt,
		&r.SentAt,
		&r.PatternID,
		&r.OwnerProcessID,
	)
	return r, err
}

const listRecipients = `
SELECT request_id, serial, kind, address
FROM recipients
WHERE request_id = $1
ORDER BY serial ASC
`

func (q *Queries) ListRecipients(ctx context.Context, requestID string) ([]Recipient, error) {
	rows, err := q.db.Query(ctx, listRecipients, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Recipient
	for rows.Next() {
		var r Recipient
		if err := rows.Scan(&r.RequestID, &r.Serial, &r.Kind, &r.Address); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const listAttachments = `
SELECT request_id, serial, filename, content_type, bytes
FROM attachments
WHERE request_id = $1
ORDER BY serial ASC
`

func (q *Queries) ListAttachments(ctx context.Context, requestID string) ([]Attachment, error) {
	rows, err := q.db.Query(ctx, listAttachments, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Attachment
	for rows.Next() {
		var a Attachment
		if err := rows.Scan(&a.RequestID, &a.Serial, &a.Filename, &a.ContentType, &a.Content); err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

const listUnsent = `
SELECT request_id
FROM mail_requests
WHERE status = 'UNSENT'
	AND ($1 = '' OR pattern_id = $1)
ORDER BY request_id ASC
`

// ListUnsent returns the ids of all UNSENT requests matching the pattern,
// in ascending request-id order. An empty patternID matches every row.
// Used in single-process mode where no ownership is recorded.
func (q *Queries) ListUnsent(ctx context.Context, patternID string) ([]string, error) {
	return q.listIDs(ctx, listUnsent, patternID)
}

const listOwned = `
SELECT request_id
FROM mail_requests
WHERE status = 'UNSENT'
	AND owner_process_id = $1
	AND ($2 = '' OR pattern_id = $2)
ORDER BY request_id ASC
`

type ListOwnedParams struct {
	ProcessID string
	PatternID string
}

// ListOwned returns the ids of UNSENT requests claimed by the given process,
// in ascending request-id order.
func (q *Queries) ListOwned(ctx context.Context, arg ListOwnedParams) ([]string, error) {
	return q.listIDs(ctx, listOwned, arg.ProcessID, arg.PatternID)
}

func (q *Queries) listIDs(ctx context.Context, sql string, args ...any) ([]string, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

const countUnclaimed = `
SELECT COUNT(*)
FROM mail_requests
WHERE status = 'UNSENT'
	AND owner_process_id IS NULL
	AND ($1 = '' OR pattern_id = $1)
`

// CountUnclaimed reports how many UNSENT rows matching the pattern are not
// yet owned by any process.
func (q *Queries) CountUnclaimed(ctx context.Context, patternID string) (int64, error) {
	row := q.db.QueryRow(ctx, countUnclaimed, patternID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const claimRequests = `
UPDATE mail_requests
SET owner_process_id = $1
WHERE status = 'UNSENT'
	AND owner_process_id IS NULL
	AND ($2 = '' OR pattern_id = $2)
`

type ClaimRequestsParams struct {
	ProcessID string
	PatternID string
}

// ClaimRequests atomically assigns every unclaimed UNSENT row matching the
// pattern to the given process and returns the number of rows claimed.
// The single conditional UPDATE is what guarantees that two concurrent
// worker processes never claim overlapping row sets.
func (q *Queries) ClaimRequests(ctx context.Context, arg ClaimRequestsParams) (int64, error) {
	tag, err := q.db.Exec(ctx, claimRequests, arg.ProcessID, arg.PatternID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const markSent = `
UPDATE mail_requests
SET status = 'SENT', sent_at = $2
WHERE request_id = $1
	AND status = 'UNSENT'
`

type MarkSentParams struct {
	RequestID string
	SentAt    time.Time
}

// MarkSent transitions a request UNSENT -> SENT and stamps sent_at.
// The transition is guarded by the expected prior status; it affects zero
// rows if the row was already moved on, which callers treat as a no-op.
func (q *Queries) MarkSent(ctx context.Context, arg MarkSentParams) (int64, error) {
	tag, err := q.db.Exec(ctx, markSent, arg.RequestID, arg.SentAt)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const markFailed = `
UPDATE mail_requests
SET status = 'FAILED', sent_at = NULL
WHERE request_id = $1
	AND status = 'SENT'
`

// MarkFailed compensates a pre-marked request SENT -> FAILED and clears
// sent_at, preserving the invariant that sent_at is set iff status is SENT.
func (q *Queries) MarkFailed(ctx context.Context, requestID string) (int64, error) {
	tag, err := q.db.Exec(ctx, markFailed, requestID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const getTemplate = `
SELECT template_id, lang, subject, body, charset
FROM templates
WHERE template_id = $1 AND lang = $2
`

type GetTemplateParams struct {
	TemplateID string
	Lang       string
}

func (q *Queries) GetTemplate(ctx context.Context, arg GetTemplateParams) (Template, error) {
	row := q.db.QueryRow(ctx, getTemplate, arg.TemplateID, arg.Lang)
	var t Template
	err := row.Scan(&t.TemplateID, &t.Lang, &t.Subject, &t.Body, &t.Charset)
	return t, err
}

const nextSequenceValue = `
INSERT INTO id_sequences (scope, last_value)
VALUES ($1, 1)
ON CONFLICT (scope)
DO UPDATE SET last_value = id_sequences.last_value + 1
RETURNING last_value
`

// NextSequenceValue increments and returns the counter for the given scope.
// The upsert is a single statement, so concurrent callers always observe
// distinct values.
func (q *Queries) NextSequenceValue(ctx context.Context, scope string) (int64, error) {
	row := q.db.QueryRow(ctx, nextSequenceValue, scope)
	var value int64
	err := row.Scan(&value)
	return value, err
}
