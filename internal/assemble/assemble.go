// Package assemble turns a fetched mail request with its recipients and
// attachments into a transport-ready message, validating header-bound
// fields against header injection.
package assemble

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"net/textproto"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sungwon/mail-dispatch/internal/mailer"
	"github.com/sungwon/mail-dispatch/internal/storage"
)

// headerFields are the stored fields checked for CR/LF before any of them
// is written into the header section.
var headerFields = []struct {
	name  string
	value func(*storage.MailRequest) string
}{
	{"subject", func(r *storage.MailRequest) string { return r.Subject }},
	{"from", func(r *storage.MailRequest) string { return r.FromAddr }},
	{"reply_to", func(r *storage.MailRequest) string { return r.ReplyTo }},
	{"return_path", func(r *storage.MailRequest) string { return r.ReturnPath }},
	{"charset", func(r *storage.MailRequest) string { return r.Charset }},
}

// Assembler composes wire messages. The BodyBuilder strategy supplies the
// text-body bytes.
type Assembler struct {
	body BodyBuilder
	log  zerolog.Logger
}

// New creates an Assembler. A nil builder uses TextBodyBuilder.
func New(body BodyBuilder, log zerolog.Logger) *Assembler {
	if body == nil {
		body = TextBodyBuilder{}
	}
	return &Assembler{body: body, log: log}
}

// Assemble validates the request and composes it into a mailer.Message.
// Any error aborts assembly for this request only; the caller continues
// with the rest of the batch.
func (a *Assembler) Assemble(req *storage.MailRequest, recipients []storage.Recipient, attachments []storage.Attachment) (*mailer.Message, error) {
	for _, f := range headerFields {
		if strings.ContainsAny(f.value(req), "\r\n") {
			return nil, &InvalidCharacterError{RequestID: req.RequestID, Field: f.name}
		}
	}

	if len(recipients) == 0 {
		return nil, ErrNoRecipients
	}

	if _, err := a.parseAddress(req, "From", req.FromAddr); err != nil {
		return nil, err
	}
	if req.ReplyTo != "" {
		if _, err := a.parseAddress(req, "ReplyTo", req.ReplyTo); err != nil {
			return nil, err
		}
	}

	msg := &mailer.Message{From: req.ReturnPath}
	if msg.From == "" {
		msg.From = req.FromAddr
	}

	for _, r := range recipients {
		var role string
		var dst *[]string
		switch r.Kind {
		case storage.KindTo:
			role, dst = "To", &msg.To
		case storage.KindCc:
			role, dst = "Cc", &msg.Cc
		case storage.KindBcc:
			role, dst = "Bcc", &msg.Bcc
		default:
			return nil, fmt.Errorf("request %s: unknown recipient kind %q", req.RequestID, r.Kind)
		}

		addr, err := a.parseAddress(req, role, r.Address)
		if err != nil {
			return nil, err
		}
		*dst = append(*dst, addr.Address)
	}

	body, err := a.body.Build(req)
	if err != nil {
		return nil, fmt.Errorf("build body for request %s: %w", req.RequestID, err)
	}

	data, err := compose(req, msg, body, attachments)
	if err != nil {
		return nil, fmt.Errorf("compose request %s: %w", req.RequestID, err)
	}
	msg.Data = data

	return msg, nil
}

func (a *Assembler) parseAddress(req *storage.MailRequest, field, address string) (*mail.Address, error) {
	addr, err := mail.ParseAddress(address)
	if err != nil {
		a.log.Error().
			Str("request_id", req.RequestID).
			Str("field", field).
			Str("address", address).
			Msg("invalid mail address")
		return nil, &AddressError{RequestID: req.RequestID, Field: field, Address: address, Err: err}
	}
	return addr, nil
}

// compose writes the RFC 5322 message: headers, then either a single
// text/plain part or a multipart container with the text body followed by
// one part per attachment.
func compose(req *storage.MailRequest, msg *mailer.Message, body []byte, attachments []storage.Attachment) ([]byte, error) {
	var buf bytes.Buffer

	writeHeader(&buf, "From", req.FromAddr)
	writeHeader(&buf, "To", strings.Join(msg.To, ", "))
	if len(msg.Cc) > 0 {
		writeHeader(&buf, "Cc", strings.Join(msg.Cc, ", "))
	}
	if len(msg.Bcc) > 0 {
		writeHeader(&buf, "Bcc", strings.Join(msg.Bcc, ", "))
	}
	if req.ReplyTo != "" {
		writeHeader(&buf, "Reply-To", req.ReplyTo)
	}
	if req.ReturnPath != "" {
		writeHeader(&buf, "Return-Path", "<"+req.ReturnPath+">")
	}
	writeHeader(&buf, "Subject", mime.QEncoding.Encode(req.Charset, req.Subject))
	writeHeader(&buf, "Date", time.Now().Format(time.RFC1123Z))
	writeHeader(&buf, "Message-ID", fmt.Sprintf("<%s@mail-dispatch>", uuid.New()))
	writeHeader(&buf, "MIME-Version", "1.0")

	textType := fmt.Sprintf("text/plain; charset=%s", req.Charset)

	if len(attachments) == 0 {
		writeHeader(&buf, "Content-Type", textType)
		writeHeader(&buf, "Content-Transfer-Encoding", "8bit")
		buf.WriteString("\r\n")
		buf.Write(body)
		return buf.Bytes(), nil
	}

	var parts bytes.Buffer
	w := multipart.NewWriter(&parts)

	textHeader := textproto.MIMEHeader{}
	textHeader.Set("Content-Type", textType)
	textHeader.Set("Content-Transfer-Encoding", "8bit")
	pw, err := w.CreatePart(textHeader)
	if err != nil {
		return nil, fmt.Errorf("create text part: %w", err)
	}
	if _, err := pw.Write(body); err != nil {
		return nil, fmt.Errorf("write text part: %w", err)
	}

	// The container content type tracks the attachment parts as they are
	// composed, so with multiple attachments the last one written governs
	// the outer Content-Type. Kept bug-for-bug compatible with the
	// historical behavior; assemble_test.go pins it.
	containerType := "multipart/mixed"
	for _, att := range attachments {
		partHeader := textproto.MIMEHeader{}
		partHeader.Set("Content-Type", att.ContentType)
		partHeader.Set("Content-Transfer-Encoding", "base64")
		partHeader.Set("Content-Disposition",
			mime.FormatMediaType("attachment", map[string]string{"filename": att.Filename}))

		pw, err := w.CreatePart(partHeader)
		if err != nil {
			return nil, fmt.Errorf("create part for %s: %w", att.Filename, err)
		}
		if err := writeBase64(pw, att.Content); err != nil {
			return nil, fmt.Errorf("write part for %s: %w", att.Filename, err)
		}
		containerType = att.ContentType
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	writeHeader(&buf, "Content-Type", fmt.Sprintf("%s; boundary=%q", containerType, w.Boundary()))
	buf.WriteString("\r\n")
	buf.Write(parts.Bytes())
	return buf.Bytes(), nil
}

func writeHeader(buf *bytes.Buffer, name, value string) {
	buf.WriteString(name)
	buf.WriteString(": ")
	buf.WriteString(value)
	buf.WriteString("\r\n")
}

// writeBase64 writes content base64-encoded and wrapped at 76 columns.
func writeBase64(w io.Writer, content []byte) error {
	encoded := base64.StdEncoding.EncodeToString(content)
	for len(encoded) > 0 {
		n := min(len(encoded), 76)
		if _, err := w.Write([]byte(encoded[:n])); err != nil {
			return err
		}
		if _, err := w.Write([]byte("\r\n")); err != nil {
			return err
		}
		encoded = encoded[n:]
	}
	return nil
}
