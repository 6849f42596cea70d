package manuscript

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Locale holds language dependent strings used when presenting manuscript.
type Locale struct {
	Tag           language.Tag
	Prologue      string
	ChapterFormat string // receives chapter index and title
	AuthorLabel   string
	GenreLabel    string
	SummaryLabel  string
	NoContent     string
	Contents      string
	Separator     string

	fold bool // prologue marker compared case-insensitively
}

var (
	localeZh = &Locale{
		Tag:           language.Chinese,
		Prologue:      "序章",
		ChapterFormat: "第%d章 %s",
		AuthorLabel:   "作者：",
		GenreLabel:    "类型：",
		SummaryLabel:  "摘要：",
		NoContent:     "（本章暂无内容）",
		Contents:      "目录",
		Separator:     strings.Repeat("—", 20),
	}
	localeEn = &Locale{
		Tag:           language.English,
		Prologue:      "Prologue",
		ChapterFormat: "Chapter %d %s",
		AuthorLabel:   "Author: ",
		GenreLabel:    "Genre: ",
		SummaryLabel:  "Summary: ",
		NoContent:     "(This chapter has no content yet.)",
		Contents:      "Contents",
		Separator:     strings.Repeat("-", 40),
		fold:          true,
	}
)

var folder = cases.Fold()

// LocaleFor selects locale for project language tag. Anything which is not
// recognizable as English falls back to Chinese.
func LocaleFor(lang string) *Locale {
	tag, err := language.Parse(strings.TrimSpace(lang))
	if err != nil {
		return localeZh
	}
	if base, _ := tag.Base(); base.String() == "en" {
		return localeEn
	}
	return localeZh
}

// IsPrologue reports whether chapter title denotes prologue.
func (l *Locale) IsPrologue(title string) bool {
	title = strings.TrimSpace(title)
	if l.fold {
		return folder.String(title) == folder.String(l.Prologue)
	}
	return title == l.Prologue
}

// ChapterTitle formats display title for a regular chapter.
func (l *Locale) ChapterTitle(index int, title string) string {
	return strings.TrimSpace(fmt.Sprintf(l.ChapterFormat, index, strings.TrimSpace(title)))
}

// Lang returns BCP 47 language code of the locale.
func (l *Locale) Lang() string {
	return l.Tag.String()
}
