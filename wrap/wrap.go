// Package wrap breaks paragraphs into lines for fixed-width layout using
// CJK typesetting conventions.
package wrap

import (
	"strings"
	"unicode"
)

// Indent is put in front of the first line of every paragraph.
const Indent = "　　"

// Representative glyph used to calibrate line budget against real font metrics.
const Representative = "中"

const (
	weightSpace   = 0.3
	weightIdeo    = 1.0
	weightLatin   = 0.55
	weightClosing = 0.7
	weightOther   = 0.9

	indentUnits = 2 * weightIdeo

	minSaneRatio = 4
	maxSaneRatio = 200
	fallbackUnit = 7
)

// closing lists characters which must never start a line.
var closing = func() map[rune]struct{} {
	m := make(map[rune]struct{})
	for _, r := range "，。、；：？！）」』】〕》〉”’％…,.;:?!)]}%" {
		m[r] = struct{}{}
	}
	return m
}()

// IsClosingPunct reports whether r belongs to terminal or closing punctuation.
func IsClosingPunct(r rune) bool {
	_, ok := closing[r]
	return ok
}

func isIdeographic(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul)
}

func isLatin(r rune) bool {
	return ('0' <= r && r <= '9') || (unicode.IsLetter(r) && unicode.In(r, unicode.Latin))
}

// Weight returns the number of wrap units character occupies.
func Weight(r rune) float64 {
	switch {
	case unicode.IsSpace(r):
		return weightSpace
	case isIdeographic(r):
		return weightIdeo
	case isLatin(r):
		return weightLatin
	case IsClosingPunct(r):
		return weightClosing
	default:
		return weightOther
	}
}

// Budget converts available width into wrap units. glyphWidth is the measured
// width of Representative glyph, measurements outside of sane range are
// replaced with a fixed heuristic.
func Budget(width, glyphWidth float64) float64 {
	if glyphWidth > 0 {
		if ratio := width / glyphWidth; ratio >= minSaneRatio && ratio <= maxSaneRatio {
			return ratio
		}
	}
	return width / fallbackUnit
}

// Normalize merges hard line breaks, replaces non-breaking spaces and trims.
func Normalize(paragraph string) string {
	paragraph = strings.NewReplacer("\r\n", "\n", "\r", "\n", "\u00a0", " ", "\u202f", " ").Replace(paragraph)

	var (
		sb      strings.Builder
		prev    rune
		pending bool // line break or run of spaces waiting for next character
		brk     bool
	)
	for _, r := range paragraph {
		switch {
		case r == '\n':
			pending, brk = true, true
			continue
		case r == ' ' || r == '\t':
			pending = true
			continue
		}
		if pending && sb.Len() > 0 {
			// joined CJK lines do not need separator
			if !brk || !isIdeographic(prev) || !isIdeographic(r) {
				sb.WriteByte(' ')
			}
		}
		pending, brk = false, false
		sb.WriteRune(r)
		prev = r
	}
	return sb.String()
}

// Lines wraps single paragraph under budget (in wrap units). Paragraph that
// normalizes to empty string still produces one indented line.
func Lines(paragraph string, budget float64) []string {
	text := Normalize(paragraph)
	if len(text) == 0 {
		return []string{Indent}
	}

	var (
		lines []string
		cur   []rune
		sum   = indentUnits
	)
	flush := func() {
		s := strings.TrimRight(string(cur), " ")
		if len(lines) == 0 {
			s = Indent + s
		}
		lines = append(lines, s)
		cur, sum = cur[:0], 0
	}

	for _, r := range text {
		w := Weight(r)
		if len(cur) == 0 && len(lines) > 0 {
			if r == ' ' {
				continue
			}
			if IsClosingPunct(r) {
				// keep trailing punctuation with previous line
				lines[len(lines)-1] += string(r)
				continue
			}
		}
		if len(cur) > 0 && sum+w > budget {
			if IsClosingPunct(r) {
				cur = append(cur, r)
				flush()
				continue
			}
			flush()
			if r == ' ' {
				continue
			}
		}
		cur = append(cur, r)
		sum += w
	}
	if len(cur) > 0 || len(lines) == 0 {
		flush()
	}
	return lines
}

// Wrapper derives line budget from font metrics.
type Wrapper struct {
	// Measure returns rendered width of the string in the same units as
	// width passed to Lines. When nil fixed heuristic is used.
	Measure func(s string) float64
}

// Budget returns number of wrap units fitting into width.
func (w Wrapper) Budget(width float64) float64 {
	var glyph float64
	if w.Measure != nil {
		glyph = w.Measure(Representative)
	}
	return Budget(width, glyph)
}

// Lines wraps paragraph to fit width.
func (w Wrapper) Lines(paragraph string, width float64) []string {
	return Lines(paragraph, w.Budget(width))
}
