// Package template resolves stored mail templates: placeholder substitution
// and the delimiter grammar that splits a blended string into subject and
// body.
package template

import (
	"fmt"
	"strings"
)

// DefaultDelimiter separates the subject block from the body in a blended
// template string.
const DefaultDelimiter = "---"

// Substitute replaces every occurrence of {name} in s with the rendered
// value for name. Replacement is literal: no escaping, no nested
// resolution, a single pass per key. A nil value renders as an empty
// string. The outcome does not depend on key order since rendered values
// contain no braces in supported usage.
func Substitute(s string, values map[string]any) string {
	for name, value := range values {
		s = strings.ReplaceAll(s, "{"+name+"}", render(value))
	}
	return s
}

func render(value any) string {
	if value == nil {
		return ""
	}
	return fmt.Sprint(value)
}

// SplitSubjectBody parses a blended string into a subject and a body.
// Lines before the first line exactly equal to delim are subject
// candidates; blank candidates are ignored and exactly one non-blank
// candidate must remain. Everything after the delimiter line is the body,
// verbatim including blank lines. Both LF and CRLF terminators are
// supported in the subject block.
func SplitSubjectBody(s, delim string) (subject, body string, err error) {
	if delim == "" {
		delim = DefaultDelimiter
	}

	rest := s
	found := false
	var candidates []string
	for rest != "" {
		line, tail := cutLine(rest)
		rest = tail
		if line == delim {
			found = true
			break
		}
		if strings.TrimSpace(line) != "" {
			candidates = append(candidates, line)
		}
	}

	if !found {
		return "", "", ErrDelimiterNotFound
	}
	if len(candidates) == 0 {
		return "", "", ErrSubjectNotFound
	}
	if len(candidates) > 1 {
		return "", "", ErrSubjectMultiline
	}
	if rest == "" {
		return "", "", ErrBodyNotFound
	}

	return candidates[0], rest, nil
}

// cutLine splits off the first line of s, dropping its LF or CRLF
// terminator. If s has no terminator the whole string is the line.
func cutLine(s string) (line, tail string) {
	i := strings.IndexByte(s, '\n')
	if i < 0 {
		return s, ""
	}
	line = s[:i]
	line = strings.TrimSuffix(line, "\r")
	return line, s[i+1:]
}
