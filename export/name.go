package export

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"unicode"

	sprig "github.com/go-task/slim-sprig/v3"
	"github.com/gosimple/slug"

	"msx/common"
	"msx/manuscript"
)

// DefaultName is used when title is empty after cleaning.
const DefaultName = "novel"

// Values is a struct that holds variables we make available for output name
// template expansion.
type Values struct {
	Title     string
	Author    string
	Genre     string
	Language  string
	Format    string
	ProjectID string
	Chapters  int
}

// Sanitize replaces characters which are not allowed in file names on any
// platform with underscores.
func Sanitize(name string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || strings.ContainsRune(`/\:*?"<>|`, r) {
			return '_'
		}
		return r
	}, name))
}

func expandName(tmpl string, m *manuscript.Manuscript, format common.OutputFmt) (string, error) {
	t, err := template.New("output_name_template").Funcs(sprig.FuncMap()).Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("unable to parse output name template: %w", err)
	}
	values := Values{
		Title:     m.Title,
		Author:    m.Author,
		Genre:     m.Genre,
		Language:  m.Language,
		Format:    format.String(),
		ProjectID: m.ID,
		Chapters:  len(m.Chapters),
	}
	buf := new(bytes.Buffer)
	if err := t.Execute(buf, values); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// OutputName returns file name for exported manuscript:
// "{sanitized-title}_export{ext}" or, when template is given, its sanitized
// expansion followed by extension.
func OutputName(m *manuscript.Manuscript, format common.OutputFmt, tmpl string, transliterate bool) (string, error) {
	stem := m.Title
	if len(tmpl) > 0 {
		expanded, err := expandName(tmpl, m, format)
		if err != nil {
			return "", err
		}
		stem = expanded
	}
	if transliterate {
		stem = slug.Make(stem)
	}
	stem = Sanitize(stem)
	if len(stem) == 0 {
		stem = DefaultName
	}
	if len(tmpl) == 0 {
		stem += "_export"
	}
	return stem + format.Ext(), nil
}
