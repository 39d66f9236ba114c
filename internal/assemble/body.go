package assemble

import "github.com/sungwon/mail-dispatch/internal/storage"

// BodyBuilder produces the text-body bytes of an outgoing message.
// Alternative implementations can sign or encrypt the content before it is
// composed into the wire message.
type BodyBuilder interface {
	Build(req *storage.MailRequest) ([]byte, error)
}

// TextBodyBuilder emits the stored body unchanged.
type TextBodyBuilder struct{}

func (TextBodyBuilder) Build(req *storage.MailRequest) ([]byte, error) {
	return []byte(req.Body), nil
}
