// Package mailer defines the outbound transport boundary of the dispatch
// queue and its SMTP implementation.
package mailer

import "context"

// Message is a transport-ready mail message: the envelope addressing plus
// the full RFC 5322 wire bytes.
type Message struct {
	// From is the envelope sender (return path).
	From string
	// To, Cc and Bcc are the envelope recipients, already parsed into
	// plain addresses.
	To  []string
	Cc  []string
	Bcc []string
	// Data is the complete message as written to the wire.
	Data []byte
}

// Recipients returns all envelope recipients in TO, CC, BCC order.
func (m *Message) Recipients() []string {
	out := make([]string, 0, len(m.To)+len(m.Cc)+len(m.Bcc))
	out = append(out, m.To...)
	out = append(out, m.Cc...)
	out = append(out, m.Bcc...)
	return out
}

// Mailer delivers an assembled message. Implementations must honor the
// context and their configured connect/send timeouts; a timeout is an
// ordinary send error to callers.
type Mailer interface {
	Send(ctx context.Context, msg *Message) error
}
