// Package resume normalizes candidate resume input before topic extraction.
// The interview pipeline works on plain text only, so markdown decoration and
// control characters are stripped at this boundary.
package resume

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxLength bounds resume input in runes. Anything longer is cut off before
// it reaches a model prompt.
const MaxLength = 20000

// Decoder converts a raw resume document into plain text. Binary-format
// decoders (PDF, DOCX) plug in here; PlainText covers text and markdown.
type Decoder func(raw []byte) (string, error)

// PlainText decodes text and markdown resumes.
func PlainText(raw []byte) (string, error) {
	return Normalize(string(raw))
}

// ErrEmpty is returned when the input carries no usable text.
var ErrEmpty = errors.New("resume text is empty")

var (
	mdHeading = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	mdBullet  = regexp.MustCompile(`(?m)^\s*[-*+]\s+`)
	mdLink    = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	mdEmph    = regexp.MustCompile(`(\*{1,3}|_{1,3}|` + "`" + `{1,3})([^*_` + "`" + `]+)` + "(`" + `{1,3}|_{1,3}|\*{1,3})`)
	blank     = regexp.MustCompile(`\n{3,}`)
)

// Normalize converts raw resume input into the plain text the topic extractor
// consumes: markdown markers removed, whitespace collapsed, length capped.
func Normalize(raw string) (string, error) {
	if !utf8.ValidString(raw) {
		return "", fmt.Errorf("resume text is not valid UTF-8")
	}

	text := strings.ReplaceAll(raw, "\r\n", "\n")
	text = stripControl(text)

	text = mdLink.ReplaceAllString(text, "$1")
	text = mdHeading.ReplaceAllString(text, "")
	text = mdBullet.ReplaceAllString(text, "")
	text = mdEmph.ReplaceAllString(text, "$2")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	text = strings.Join(lines, "\n")
	text = blank.ReplaceAllString(text, "\n\n")
	text = strings.TrimSpace(text)

	if text == "" {
		return "", ErrEmpty
	}
	if runes := []rune(text); len(runes) > MaxLength {
		text = strings.TrimSpace(string(runes[:MaxLength]))
	}
	return text, nil
}

func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
