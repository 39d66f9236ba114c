package mailer

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// StdoutMailer writes messages to a writer instead of a network transport.
// Used for local runs and tests.
type StdoutMailer struct {
	Out io.Writer
}

// NewStdoutMailer creates a StdoutMailer writing to standard output.
func NewStdoutMailer() *StdoutMailer {
	return &StdoutMailer{Out: os.Stdout}
}

// Send prints the envelope and message data.
func (m *StdoutMailer) Send(_ context.Context, msg *Message) error {
	_, err := fmt.Fprintf(m.Out, "=== MAIL FROM=%s RCPT=%s ===\n%s\n=== END ===\n",
		msg.From, strings.Join(msg.Recipients(), ","), msg.Data)
	return err
}
