package services

import (
	"errors"
	"html"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxMessageLength is counted in runes after trimming
const MaxMessageLength = 8000

var (
	ErrEmptyMessage   = errors.New("message cannot be empty")
	ErrMessageTooLong = errors.New("message exceeds maximum length")
)

var (
	scriptTagRegex = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	onEventRegex   = regexp.MustCompile(`(?i)\s+on\w+\s*=`)
)

// SanitizeMessageContent strips script blocks and inline event handlers,
// then HTML-escapes what remains so stored text is inert markup.
func SanitizeMessageContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", ErrEmptyMessage
	}
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return "", ErrMessageTooLong
	}

	content = scriptTagRegex.ReplaceAllString(content, "")
	content = onEventRegex.ReplaceAllString(content, " ")
	content = html.EscapeString(content)
	content = strings.TrimSpace(content)

	if content == "" {
		return "", errors.New("message cannot be empty after sanitization")
	}
	return content, nil
}
