package template

import (
	"errors"
	"fmt"
)

var (
	// ErrDelimiterNotFound indicates the blended string has no line equal
	// to the delimiter.
	ErrDelimiterNotFound = errors.New("template: delimiter not found")
	// ErrSubjectNotFound indicates there is no non-blank line before the
	// delimiter.
	ErrSubjectNotFound = errors.New("template: subject not found")
	// ErrSubjectMultiline indicates more than one non-blank line precedes
	// the delimiter.
	ErrSubjectMultiline = errors.New("template: subject must be single line")
	// ErrBodyNotFound indicates nothing follows the delimiter line.
	ErrBodyNotFound = errors.New("template: body not found")
)

// NotFoundError reports a missing (template_id, lang) row. Treated as a
// configuration error: fatal at the point of use.
type NotFoundError struct {
	TemplateID string
	Lang       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("template %s not found for lang %s", e.TemplateID, e.Lang)
}
