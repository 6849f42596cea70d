// Package textout flattens manuscript into plain UTF-8 text.
package textout

import (
	"regexp"
	"strings"

	"msx/manuscript"
)

var newlineRuns = regexp.MustCompile(`\n{3,}`)

// Serialize produces plain text rendition of the manuscript. Images are never
// referenced.
func Serialize(m *manuscript.Manuscript) string {
	loc := m.Locale
	if loc == nil {
		loc = manuscript.LocaleFor(m.Language)
	}

	var sb strings.Builder
	sb.WriteString(m.Title)
	sb.WriteByte('\n')
	if len(m.Author) > 0 {
		sb.WriteString(loc.AuthorLabel + m.Author + "\n")
	}
	if len(m.Genre) > 0 {
		sb.WriteString(loc.GenreLabel + m.Genre + "\n")
	}
	sb.WriteString(loc.Separator)
	sb.WriteString("\n\n")

	for i := range m.Chapters {
		ch := &m.Chapters[i]
		sb.WriteString(ch.DisplayTitle)
		sb.WriteByte('\n')
		if ch.Summary != nil && !ch.Prologue {
			sb.WriteString(loc.SummaryLabel + *ch.Summary + "\n")
		}
		sb.WriteByte('\n')
		if len(ch.Paragraphs) == 0 {
			sb.WriteString(loc.NoContent)
			sb.WriteString("\n\n")
			continue
		}
		for _, p := range ch.Paragraphs {
			sb.WriteString(p)
			sb.WriteString("\n\n")
		}
	}
	return newlineRuns.ReplaceAllString(sb.String(), "\n\n")
}

// Bytes is Serialize returning UTF-8 bytes.
func Bytes(m *manuscript.Manuscript) []byte {
	return []byte(Serialize(m))
}
