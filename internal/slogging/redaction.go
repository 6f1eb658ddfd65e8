package slogging

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// RedactionAction says what happens to an attribute whose key matches a rule
type RedactionAction string

const (
	// RedactionOmit drops the attribute
	RedactionOmit RedactionAction = "omit"
	// RedactionObfuscate replaces the value with [REDACTED]
	RedactionObfuscate RedactionAction = "obfuscate"
	// RedactionPartial keeps four characters at each end of long values
	RedactionPartial RedactionAction = "partial"
)

// RedactionRule matches attribute keys by regular expression
type RedactionRule struct {
	FieldPattern string          `yaml:"field_pattern" json:"field_pattern"`
	Action       RedactionAction `yaml:"action" json:"action"`
}

// RedactionConfig holds the ordered rules; the first match wins
type RedactionConfig struct {
	Enabled bool            `yaml:"enabled" json:"enabled"`
	Rules   []RedactionRule `yaml:"rules" json:"rules"`
}

// DefaultRedactionConfig hides the login form fields and partially masks
// session identifiers
func DefaultRedactionConfig() RedactionConfig {
	return RedactionConfig{
		Enabled: true,
		Rules: []RedactionRule{
			{FieldPattern: "(?i)(password|confirmation|password_hash|secret)", Action: RedactionOmit},
			{FieldPattern: "(?i)(cookie|session)", Action: RedactionPartial},
			{FieldPattern: "(?i)(authorization|token)", Action: RedactionPartial},
		},
	}
}

type compiledRule struct {
	pattern *regexp.Regexp
	action  RedactionAction
}

// redactionHandler applies the rules before passing records on
type redactionHandler struct {
	handler slog.Handler
	rules   []compiledRule
}

// NewRedactionHandler wraps handler. A disabled config returns handler as is.
func NewRedactionHandler(handler slog.Handler, config RedactionConfig) (slog.Handler, error) {
	if !config.Enabled {
		return handler, nil
	}
	rules := make([]compiledRule, 0, len(config.Rules))
	for _, r := range config.Rules {
		pattern, err := regexp.Compile(r.FieldPattern)
		if err != nil {
			return nil, fmt.Errorf("failed to compile redaction pattern '%s': %w", r.FieldPattern, err)
		}
		rules = append(rules, compiledRule{pattern: pattern, action: r.Action})
	}
	return &redactionHandler{handler: handler, rules: rules}, nil
}

func (h *redactionHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *redactionHandler) Handle(ctx context.Context, record slog.Record) error {
	out := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
	record.Attrs(func(attr slog.Attr) bool {
		if redacted, keep := h.redact(attr); keep {
			out.AddAttrs(redacted)
		}
		return true
	})
	return h.handler.Handle(ctx, out)
}

func (h *redactionHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	kept := make([]slog.Attr, 0, len(attrs))
	for _, attr := range attrs {
		if redacted, keep := h.redact(attr); keep {
			kept = append(kept, redacted)
		}
	}
	return &redactionHandler{handler: h.handler.WithAttrs(kept), rules: h.rules}
}

func (h *redactionHandler) WithGroup(name string) slog.Handler {
	return &redactionHandler{handler: h.handler.WithGroup(name), rules: h.rules}
}

// redact returns the attribute to emit and whether to emit it at all
func (h *redactionHandler) redact(attr slog.Attr) (slog.Attr, bool) {
	for _, rule := range h.rules {
		if !rule.pattern.MatchString(attr.Key) {
			continue
		}
		switch rule.action {
		case RedactionOmit:
			return slog.Attr{}, false
		case RedactionObfuscate:
			return slog.String(attr.Key, "[REDACTED]"), true
		case RedactionPartial:
			return slog.String(attr.Key, partialRedactValue(attr.Value.String())), true
		}
	}
	return attr, true
}

func partialRedactValue(value string) string {
	switch {
	case value == "":
		return value
	case len(value) <= 12:
		return "[REDACTED]"
	default:
		return value[:4] + "...REDACTED..." + value[len(value)-4:]
	}
}

// SanitizeLogMessage collapses line breaks, tabs and runs of spaces so a
// message always stays on one log line
func SanitizeLogMessage(message string) string {
	return strings.Join(strings.Fields(message), " ")
}
