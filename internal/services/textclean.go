package services

import (
	"regexp"
	"strings"
)

// Spaces around line breaks, including the ideographic space U+3000.
var (
	spaceAroundNewline = regexp.MustCompile(`[ 　]+\n[ 　]+`)
	spaceBeforeNewline = regexp.MustCompile(`[ 　]+\n`)
	spaceAfterNewline  = regexp.MustCompile(`\n[ 　]+`)
	blankLineRun       = regexp.MustCompile(`\n{3,}`)
)

// CleanPDFText removes layout artifacts left by PDF text extraction: padding
// around line breaks, hard wraps inside sentences, and runs of blank lines.
// Paragraph breaks and breaks after a sentence terminator are kept.
// The result is a fixed point: CleanPDFText(CleanPDFText(s)) == CleanPDFText(s).
func CleanPDFText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	s = spaceAroundNewline.ReplaceAllString(s, "\n")
	s = spaceBeforeNewline.ReplaceAllString(s, "\n")
	s = spaceAfterNewline.ReplaceAllString(s, "\n")
	s = joinWrappedLines(s)
	s = blankLineRun.ReplaceAllString(s, "\n\n")

	return s
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '。', '．', '！', '？', '.', '!', '?':
		return true
	}
	return false
}

// joinWrappedLines drops every single line break that neither ends a sentence
// nor belongs to a blank line. Each break is judged on its original neighbours,
// and removing one never changes the neighbours of another, so one pass is enough.
func joinWrappedLines(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s))

	for i, r := range runes {
		if r != '\n' {
			b.WriteRune(r)
			continue
		}

		prevBreaks := i == 0 || runes[i-1] == '\n' || isSentenceEnd(runes[i-1])
		nextBreak := i+1 < len(runes) && runes[i+1] == '\n'
		if prevBreaks || nextBreak {
			b.WriteRune(r)
		}
	}

	return b.String()
}
