// Package validate provides input validation and sanitization for the
// Lumen API.
package validate

import (
	"errors"
	"fmt"
	"html"
	"strings"
	"unicode/utf8"
)

// MaxCaptionLength is the maximum caption length in characters.
const MaxCaptionLength = 2000

// Caption validation errors.
var (
	ErrCaptionEmpty   = errors.New("caption is required")
	ErrCaptionTooLong = fmt.Errorf("caption must not exceed %d characters", MaxCaptionLength)
)

// Caption validates and sanitizes a post caption. Leading and trailing
// whitespace is stripped and HTML entities are escaped to block stored
// XSS. Length is measured in characters, not bytes, so multi-byte
// captions are not unfairly truncated.
func Caption(caption string) (string, error) {
	trimmed := strings.TrimSpace(caption)
	if trimmed == "" {
		return "", ErrCaptionEmpty
	}
	if utf8.RuneCountInString(trimmed) > MaxCaptionLength {
		return "", ErrCaptionTooLong
	}
	return html.EscapeString(trimmed), nil
}
