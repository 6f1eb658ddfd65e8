// Package unicodecheck detects and strips Unicode that renders invisibly or
// reorders text: zero-width characters, bidirectional overrides, Hangul
// fillers, control characters and private use codepoints.
package unicodecheck

import (
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Zero-width characters commonly used in spoofing attacks.
var zeroWidthChars = []rune{
	'\u200B', // Zero Width Space
	'\u200C', // Zero Width Non-Joiner
	'\u200D', // Zero Width Joiner
	'\u200E', // Left-to-Right Mark
	'\u200F', // Right-to-Left Mark
	'\uFEFF', // Byte Order Mark / Zero Width No-Break Space
}

// Bidirectional text override characters that can reorder displayed text.
var bidiOverrideChars = []rune{
	'\u202A', '\u202B', '\u202C', '\u202D', '\u202E', // embeddings and overrides
	'\u2066', '\u2067', '\u2068', '\u2069', // isolates
}

func isZeroWidth(r rune) bool { return slices.Contains(zeroWidthChars, r) }

func isBidiOverride(r rune) bool { return slices.Contains(bidiOverrideChars, r) }

func isHangulFiller(r rune) bool { return r == '\u3164' || r == '\uFFA0' }

// isControl excludes the whitespace a multi-line text box legitimately holds
func isControl(r rune) bool {
	return unicode.IsControl(r) && r != '\n' && r != '\t'
}

func isProblematicCategory(r rune) bool {
	return unicode.Is(unicode.Co, r) ||
		unicode.Is(unicode.Cs, r) ||
		(r >= 0xFDD0 && r <= 0xFDEF) ||
		r&0xFFFF == 0xFFFE || r&0xFFFF == 0xFFFF
}

func isInvisible(r rune) bool {
	return isZeroWidth(r) || isBidiOverride(r) || isHangulFiller(r) || isControl(r) || isProblematicCategory(r)
}

// Clean returns s in NFC form with invisible and reordering characters
// removed. Windows line endings become '\n'.
func Clean(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = norm.NFC.String(s)
	return strings.Map(func(r rune) rune {
		if isInvisible(r) {
			return -1
		}
		return r
	}, s)
}

// ContainsInvisible reports whether Clean would drop any character of s
func ContainsInvisible(s string) bool {
	return strings.ContainsFunc(s, isInvisible)
}

// IsCombiningMark reports whether r is a combining character of the scripts
// users are expected to type.
func IsCombiningMark(r rune) bool {
	return (r >= '\u0300' && r <= '\u036F') || // Combining Diacritical Marks
		(r >= '\u0483' && r <= '\u0489') || // Cyrillic
		(r >= '\u0591' && r <= '\u05BD') || // Hebrew
		(r >= '\u0610' && r <= '\u061A') || // Arabic
		(r >= '\u064B' && r <= '\u065F') ||
		(r >= '\u0E31' && r <= '\u0E3A') || // Thai
		(r >= '\u0E47' && r <= '\u0E4E')
}

// HasExcessiveCombiningMarks detects "Zalgo text": runs of at least
// maxConsecutive combining marks.
func HasExcessiveCombiningMarks(s string, maxConsecutive int) bool {
	run := 0
	for _, r := range s {
		if !IsCombiningMark(r) {
			run = 0
			continue
		}
		run++
		if run >= maxConsecutive {
			return true
		}
	}
	return false
}

// ValidIdentifier reports whether s is usable as a visible name such as a
// username: no invisible characters, no line breaks, no Zalgo runs.
func ValidIdentifier(s string) bool {
	if s == "" || strings.ContainsAny(s, "\n\t") {
		return false
	}
	return !ContainsInvisible(s) && !HasExcessiveCombiningMarks(s, 3)
}

// SanitizeForLogging replaces control characters with [CTRL] and zero-width
// characters with [ZW] so user input cannot forge log lines.
func SanitizeForLogging(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsControl(r) && r != '\t':
			b.WriteString("[CTRL]")
		case isZeroWidth(r):
			b.WriteString("[ZW]")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
