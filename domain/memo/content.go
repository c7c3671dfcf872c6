package memo

import (
	"fmt"
	"strings"
	"unicode/utf8"

	pkgerrors "easymemo/pkg/errors"
)

// MaxContentLength bounds a memo body, matching the server-side limit.
const MaxContentLength = 10000

// Content is a value object for a memo's text body
type Content struct {
	text string
}

// NewContent creates content with validation. Leading and trailing whitespace
// is trimmed before storage; whitespace-only submissions are rejected.
func NewContent(text string) (Content, error) {
	text = strings.TrimSpace(text)

	if text == "" {
		return Content{}, pkgerrors.NewValidationError("content cannot be empty")
	}

	if utf8.RuneCountInString(text) > MaxContentLength {
		return Content{}, pkgerrors.NewValidationError(
			fmt.Sprintf("content exceeds maximum length of %d characters", MaxContentLength))
	}

	return Content{text: text}, nil
}

// String returns the content text
func (c Content) String() string {
	return c.text
}

// IsEmpty checks if content is empty
func (c Content) IsEmpty() bool {
	return c.text == ""
}

// Equals checks if two contents are equal
func (c Content) Equals(other Content) bool {
	return c.text == other.text
}

// Summary returns a truncated single-line summary of the content
func (c Content) Summary(maxLength int) string {
	if maxLength <= 0 {
		return ""
	}

	line := c.text
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}

	if utf8.RuneCountInString(line) <= maxLength {
		return line
	}

	runes := []rune(line)
	if maxLength <= 3 {
		return string(runes[:maxLength])
	}
	return string(runes[:maxLength-3]) + "..."
}
