// Package textnorm cleans raw job description and resume text before it is
// sent to a model.
package textnorm

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
	"unicode/utf8"
)

// TruncationMarker is appended to text cut at the length bound.
const TruncationMarker = " [truncated]"

// Normalize removes noise from raw text and bounds it to maxLength runes.
// A maxLength of zero or less disables the bound. Normalize is idempotent.
func Normalize(raw string, maxLength int) string {
	text := clean(raw)
	if maxLength <= 0 || utf8.RuneCountInString(text) <= maxLength {
		return text
	}

	runes := []rune(text)
	markerLen := utf8.RuneCountInString(TruncationMarker)
	keep := maxLength - markerLen
	if keep <= 0 {
		return strings.TrimRightFunc(string(runes[:maxLength]), unicode.IsSpace)
	}

	head := strings.TrimRightFunc(string(runes[:keep]), unicode.IsSpace)
	return head + TruncationMarker
}

// Truncated reports whether Normalize had to cut the text.
func Truncated(text string) bool {
	return strings.HasSuffix(text, TruncationMarker)
}

// Digest returns the sha256 of the normalized, unbounded text.
func Digest(text string) string {
	sum := sha256.Sum256([]byte(clean(text)))
	return hex.EncodeToString(sum[:])
}

func clean(raw string) string {
	if raw == "" {
		return ""
	}

	text := strings.ToValidUTF8(raw, "")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = cleanLine(line)
		if line == "" {
			if blank || len(out) == 0 {
				continue
			}
			blank = true
			out = append(out, "")
			continue
		}
		blank = false
		out = append(out, line)
	}

	return strings.TrimSpace(strings.Join(out, "\n"))
}

func cleanLine(line string) string {
	var b strings.Builder
	b.Grow(len(line))

	space := false
	for _, r := range line {
		switch {
		case unicode.IsSpace(r):
			space = true
			continue
		case unicode.IsControl(r), unicode.Is(unicode.Cf, r):
			continue
		}

		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}

	return b.String()
}
