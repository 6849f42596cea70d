package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strings"

	xfont "golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

var ErrFontData = errors.New("font data is empty")

// Font is a TrueType or OpenType font embedded whole as composite Type0 font
// with Identity-H encoding. Glyph ids are used as CIDs.
type Font struct {
	res      string // resource name on pages
	baseName string
	data     []byte
	cff      bool

	f    *sfnt.Font
	buf  sfnt.Buffer
	upem sfnt.Units
	ppem fixed.Int26_6

	ascent, descent float64
	bbox            [4]float64
	italicAngle     float64

	advances map[sfnt.GlyphIndex]int // in 1/1000 of em
	runes    map[rune]sfnt.GlyphIndex
	used     map[sfnt.GlyphIndex][]rune
}

// ParseFont prepares font program for embedding. Name is used when font does
// not carry PostScript name.
func ParseFont(name string, data []byte) (*Font, error) {
	if len(data) == 0 {
		return nil, ErrFontData
	}
	f, err := sfnt.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("unable to parse font: %w", err)
	}
	upem := f.UnitsPerEm()
	if upem == 0 {
		return nil, errors.New("invalid font: unitsPerEm is zero")
	}

	font := &Font{
		data:     data,
		cff:      bytes.HasPrefix(data, []byte("OTTO")),
		f:        f,
		upem:     upem,
		ppem:     fixed.Int26_6(upem << 6),
		advances: make(map[sfnt.GlyphIndex]int),
		runes:    make(map[rune]sfnt.GlyphIndex),
		used:     make(map[sfnt.GlyphIndex][]rune),
	}

	font.baseName = strings.TrimSpace(name)
	if ps, _ := f.Name(&font.buf, sfnt.NameIDPostScript); len(ps) > 0 {
		font.baseName = ps
	}
	font.baseName = pdfName(font.baseName)
	if len(font.baseName) == 0 {
		font.baseName = "EmbeddedFont"
	}

	if metrics, err := f.Metrics(&font.buf, font.ppem, xfont.HintingNone); err == nil {
		font.ascent = font.scale(metrics.Ascent)
		font.descent = -font.scale(metrics.Descent)
	}
	if bounds, err := f.Bounds(&font.buf, font.ppem, xfont.HintingNone); err == nil {
		font.bbox = [4]float64{
			font.scale(bounds.Min.X), -font.scale(bounds.Max.Y),
			font.scale(bounds.Max.X), -font.scale(bounds.Min.Y),
		}
	}
	if post := f.PostTable(); post != nil {
		font.italicAngle = post.ItalicAngle
	}
	return font, nil
}

// scale converts font units at ppem == upem into 1/1000 of em.
func (f *Font) scale(v fixed.Int26_6) float64 {
	return float64(v) * 1000 / (64 * float64(f.upem))
}

// glyph maps rune into glyph index, missing glyphs map to notdef.
func (f *Font) glyph(r rune) sfnt.GlyphIndex {
	if gi, ok := f.runes[r]; ok {
		return gi
	}
	gi, err := f.f.GlyphIndex(&f.buf, r)
	if err != nil {
		gi = 0
	}
	f.runes[r] = gi
	return gi
}

func (f *Font) advance(gi sfnt.GlyphIndex) int {
	if w, ok := f.advances[gi]; ok {
		return w
	}
	w := 0
	if adv, err := f.f.GlyphAdvance(&f.buf, gi, f.ppem, xfont.HintingNone); err == nil {
		w = int(math.Round(f.scale(adv)))
	}
	f.advances[gi] = w
	return w
}

// HasGlyph reports whether font can render rune.
func (f *Font) HasGlyph(r rune) bool {
	return f.glyph(r) != 0
}

// Measure returns width of text in points when set at size.
func (f *Font) Measure(text string, size float64) float64 {
	var total int
	for _, r := range text {
		total += f.advance(f.glyph(r))
	}
	return float64(total) * size / 1000
}

// Ascent returns ascender in points for given size.
func (f *Font) Ascent(size float64) float64 {
	return f.ascent * size / 1000
}

// encode converts text into 2-byte CIDs remembering used glyphs.
func (f *Font) encode(text string) []byte {
	out := make([]byte, 0, 2*len(text))
	for _, r := range text {
		gi := f.glyph(r)
		if _, ok := f.used[gi]; !ok {
			f.used[gi] = []rune{r}
			f.advance(gi)
		}
		out = append(out, byte(gi>>8), byte(gi))
	}
	return out
}

// pdfName keeps only characters which need no escaping in PDF names.
func pdfName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case 'a' <= r && r <= 'z', 'A' <= r && r <= 'Z', '0' <= r && r <= '9', r == '-', r == '_', r == '+', r == '.':
			return r
		case r == ' ':
			return -1
		}
		return '_'
	}, s)
}
