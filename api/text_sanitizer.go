package api

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/unimak/dftrack/internal/unicodecheck"
)

// textPolicy strips every tag from free text typed into report forms.
// bluemonday policies are safe for concurrent use after creation.
var textPolicy *bluemonday.Policy

func init() {
	textPolicy = bluemonday.StrictPolicy()
}

// SanitizeText removes markup and invisible characters from user free text.
// Entities escaped by the policy are decoded again because templates escape
// on output.
func SanitizeText(content string) string {
	content = strings.TrimSpace(unicodecheck.Clean(content))
	if content == "" {
		return content
	}
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(content)))
}

// sanitizeOptional applies SanitizeText to an optional value. Text that is
// empty after sanitizing becomes nil.
func sanitizeOptional(value *string) *string {
	if value == nil {
		return nil
	}
	clean := SanitizeText(*value)
	if clean == "" {
		return nil
	}
	return &clean
}
