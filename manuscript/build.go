package manuscript

import (
	"regexp"
	"slices"
	"strings"

	"go.uber.org/zap"
)

// BuildOptions controls normalization.
type BuildOptions struct {
	// ExcludeIllustrations lists illustration ids which should never be
	// exported.
	ExcludeIllustrations map[string]struct{}
	// Locale overrides locale derived from project language when set.
	Locale *Locale
	// OnDrop receives every ignored illustration or cover element.
	OnDrop func(Dropped)
	Log    *zap.Logger
}

// ExcludeSet converts list of ids into lookup set.
func ExcludeSet(ids []string) map[string]struct{} {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

var (
	lineEndings = strings.NewReplacer("\r\n", "\n", "\r", "\n")
	blankLines  = regexp.MustCompile(`\n(?:[ \t\f\v\x{00a0}\x{3000}]*\n)+`)
)

// Paragraphs splits chapter body on blank lines, trims and drops empty blocks.
func Paragraphs(body string) []string {
	var res []string
	for _, p := range blankLines.Split(lineEndings.Replace(body), -1) {
		if p = strings.TrimSpace(p); len(p) > 0 {
			res = append(res, p)
		}
	}
	return res
}

func bodyOf(ch *ChapterRecord) string {
	if len(strings.TrimSpace(ch.FinalText)) > 0 {
		return ch.FinalText
	}
	return ch.DraftText
}

// Build normalizes raw records. It never fails: malformed fields are replaced
// with safe defaults.
func Build(project ProjectRecord, chapters []ChapterRecord, opts BuildOptions) *Manuscript {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	loc := opts.Locale
	if loc == nil {
		loc = LocaleFor(project.Language)
	}

	m := &Manuscript{
		ID:          project.ID,
		Title:       strings.TrimSpace(project.Title),
		Author:      strings.TrimSpace(project.Author),
		Genre:       strings.TrimSpace(project.Genre),
		Description: strings.TrimSpace(project.Description),
		Language:    loc.Lang(),
		Locale:      loc,
	}
	m.Covers, m.Cover = parseCovers(project.CoverImages, strings.TrimSpace(project.DefaultCoverID),
		&dropper{log: log, field: "cover_images", sink: opts.OnDrop})

	sorted := slices.Clone(chapters)
	slices.SortStableFunc(sorted, func(a, b ChapterRecord) int {
		return a.OrderIndex - b.OrderIndex
	})

	m.Chapters = make([]Chapter, 0, len(sorted))
	for i := range sorted {
		rec := &sorted[i]
		ch := Chapter{
			ID:         rec.ID,
			Index:      rec.OrderIndex,
			Title:      strings.TrimSpace(rec.Title),
			Prologue:   rec.OrderIndex == 0 || loc.IsPrologue(rec.Title),
			Paragraphs: Paragraphs(bodyOf(rec)),
		}
		if ch.Prologue {
			ch.DisplayTitle = loc.Prologue
		} else {
			ch.DisplayTitle = loc.ChapterTitle(rec.OrderIndex, rec.Title)
			ch.Summary = summaryOf(rec.OutlineGoal)
		}
		ch.Illustrations, ch.Cover = parseIllustrations(rec.Illustrations, len(ch.Paragraphs), opts.ExcludeIllustrations,
			&dropper{log: log.With(zap.String("chapter", rec.ID)), chapter: rec.ID, field: "illustrations", sink: opts.OnDrop})
		m.Chapters = append(m.Chapters, ch)
	}
	return m
}
