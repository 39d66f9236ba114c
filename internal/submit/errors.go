package submit

import "fmt"

// RecipientCountError reports a submission whose total recipient count is
// outside [1, Limit].
type RecipientCountError struct {
	Limit int
	Count int
}

func (e *RecipientCountError) Error() string {
	return fmt.Sprintf("recipient count %d out of allowed range [1, %d]", e.Count, e.Limit)
}

// AttachmentSizeError reports a submission whose attachments sum to more
// than Limit bytes.
type AttachmentSizeError struct {
	Limit int64
	Size  int64
}

func (e *AttachmentSizeError) Error() string {
	return fmt.Sprintf("attached file size %d exceeds limit %d", e.Size, e.Limit)
}
