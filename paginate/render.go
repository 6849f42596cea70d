// Package paginate lays manuscript out on fixed size pages and produces PDF
// with linked table of contents.
package paginate

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"msx/imgutil"
	"msx/manuscript"
	"msx/pdf"
	"msx/wrap"
)

// Page geometry and typography, in points.
const (
	PageWidth  = pdf.A4Width
	PageHeight = pdf.A4Height

	MarginX      = 56.0
	MarginTop    = 64.0
	MarginBottom = 64.0

	BodySize       = 12.0
	BodyLeading    = 20.0
	HeadingSize    = 18.0
	HeadingLeading = 28.0
	SummarySize    = 11.0
	SummaryLeading = 17.0
	TitleSize      = 26.0
	TitleLeading   = 36.0
	FooterSize     = 10.0

	TOCLeading = 22.0
	TOCHeading = 48.0

	chapterCoverMaxH = 260.0
	illustrationMaxH = 360.0
	coverMaxH        = 520.0
	blockGap         = 12.0
	paragraphGap     = 4.0
)

// ContentWidth is horizontal space between margins.
const ContentWidth = PageWidth - 2*MarginX

var ErrNoFont = errors.New("no usable font for paginated output")

// ImageLoader prepares referenced images for DCT embedding.
type ImageLoader interface {
	LoadJPEG(src string) (*imgutil.JPEG, error)
}

// Options are content toggles for single rendering.
type Options struct {
	NovelCover    bool
	ChapterCover  bool
	Illustrations bool
	Producer      string
	// Body text size and line height, defaults are used when zero.
	FontSize   float64
	LineHeight float64
}

// Result describes produced document.
type Result struct {
	Data        []byte
	Pages       int
	FrontMatter int // cover and TOC pages, never numbered
	TOCStart    int // 0-based index of the first TOC page
	Map         PageMap
	// Skipped combines non-fatal image problems.
	Skipped error
}

// Renderer turns manuscript into PDF. Font is required.
type Renderer struct {
	Font   *pdf.Font
	Images ImageLoader
	Log    *zap.Logger
}

// render holds state of single rendering.
type render struct {
	doc     *pdf.Document
	font    *pdf.Font
	images  ImageLoader
	log     *zap.Logger
	wrapper wrap.Wrapper
	loc     *manuscript.Locale
	opts    Options
	size    float64 // body text
	leading float64

	page    *pdf.Page
	y       float64 // top of free space on current page
	cache   map[string]*pdf.Image
	skipped error
}

// Render lays manuscript out. The only fatal condition is missing font,
// detected before any page is drawn. Image failures are logged, collected in
// Result.Skipped and leave no trace in the layout.
func (r *Renderer) Render(m *manuscript.Manuscript, opts Options) (*Result, error) {
	if r.Font == nil {
		return nil, ErrNoFont
	}
	log := r.Log
	if log == nil {
		log = zap.NewNop()
	}
	loc := m.Locale
	if loc == nil {
		loc = manuscript.LocaleFor(m.Language)
	}
	if !r.Font.HasGlyph([]rune(wrap.Representative)[0]) {
		log.Debug("Selected font does not cover CJK ideographs")
	}

	doc := pdf.New(PageWidth, PageHeight)
	doc.Info = pdf.Info{
		Title:    m.Title,
		Author:   m.Author,
		Subject:  m.Genre,
		Creator:  opts.Producer,
		Producer: opts.Producer,
	}

	st := &render{
		doc:     doc,
		font:    r.Font,
		images:  r.Images,
		log:     log,
		loc:     loc,
		opts:    opts,
		size:    BodySize,
		leading: BodyLeading,
		cache:   make(map[string]*pdf.Image),
	}
	if opts.FontSize > 0 {
		st.size = opts.FontSize
	}
	if opts.LineHeight > 0 {
		st.leading = opts.LineHeight
	}
	st.leading = max(st.leading, st.size)
	st.wrapper = wrap.Wrapper{
		Measure: func(s string) float64 { return r.Font.Measure(s, st.size) },
	}

	res := &Result{}

	// front matter
	if opts.NovelCover && m.Cover != nil {
		if img, w, h := st.image(m.Cover.Source, "novel cover"); img != nil {
			st.coverPage(m, img, w, h)
		}
	}
	res.TOCStart = doc.NumPages()
	tocPages := make([]*pdf.Page, TOCPages(len(m.Chapters)))
	for i := range tocPages {
		tocPages[i] = doc.AddPage()
	}
	res.FrontMatter = doc.NumPages()

	res.Map = st.contentPass(m)
	st.tocPass(tocPages, m, res.Map)
	st.footers(res.Map.First)

	data, err := doc.Bytes()
	if err != nil {
		return nil, fmt.Errorf("unable to serialize document: %w", err)
	}
	if st.skipped != nil {
		log.Warn("Some images were skipped", zap.Int("count", len(multierr.Errors(st.skipped))), zap.Error(st.skipped))
	}
	res.Data = data
	res.Pages = doc.NumPages()
	res.Skipped = st.skipped
	return res, nil
}

// image loads and registers image, returning nil when it cannot be used.
func (st *render) image(src, what string) (*pdf.Image, float64, float64) {
	if img, ok := st.cache[src]; ok {
		if img == nil {
			return nil, 0, 0
		}
		w, h := img.Size()
		return img, float64(w), float64(h)
	}
	img, err := st.loadImage(src)
	if err != nil {
		st.log.Warn("Skipping image", zap.String("image", what), zap.Error(err))
		st.skipped = multierr.Append(st.skipped, fmt.Errorf("%s: %w", what, err))
		st.cache[src] = nil
		return nil, 0, 0
	}
	st.cache[src] = img
	w, h := img.Size()
	return img, float64(w), float64(h)
}

func (st *render) loadImage(src string) (*pdf.Image, error) {
	if st.images == nil {
		return nil, errors.New("no image loader")
	}
	j, err := st.images.LoadJPEG(src)
	if err != nil {
		return nil, err
	}
	return st.doc.AddJPEG(j.Data, j.Width, j.Height, j.Components)
}

func (st *render) newPage() {
	st.page = st.doc.AddPage()
	st.y = MarginTop
}

// ensure starts new page unless h fits above bottom margin. Block taller
// than empty page is placed anyway.
func (st *render) ensure(h float64) {
	if st.page == nil || (st.y+h > PageHeight-MarginBottom && st.y > MarginTop) {
		st.newPage()
	}
}

// line draws single line of text at current position and advances cursor.
func (st *render) line(text string, size, leading, x float64, c pdf.Color) {
	st.ensure(leading)
	st.page.Text(st.font, size, x, st.y+st.baseline(size, leading), text, c)
	st.y += leading
}

// baseline positions glyphs vertically centered within leading.
func (st *render) baseline(size, leading float64) float64 {
	asc := st.font.Ascent(size)
	if asc <= 0 || asc > size {
		asc = size * 0.88
	}
	return (leading-size)/2 + asc
}

// block wraps text without paragraph indent.
func (st *render) block(text string, size, leading float64, c pdf.Color) {
	w := wrap.Wrapper{Measure: func(s string) float64 { return st.font.Measure(s, size) }}
	for i, l := range w.Lines(text, ContentWidth) {
		if i == 0 {
			l = strings.TrimPrefix(l, wrap.Indent)
		}
		if len(l) == 0 {
			continue
		}
		st.line(l, size, leading, MarginX, c)
	}
}

// centered wraps text and centers every line horizontally.
func (st *render) centered(text string, size, leading float64, c pdf.Color) {
	w := wrap.Wrapper{Measure: func(s string) float64 { return st.font.Measure(s, size) }}
	for _, l := range w.Lines(text, ContentWidth) {
		l = strings.TrimPrefix(l, wrap.Indent)
		x := MarginX + (ContentWidth-st.font.Measure(l, size))/2
		st.line(l, size, leading, max(MarginX, x), c)
	}
}

// picture draws image fitted into ContentWidth x maxH box.
func (st *render) picture(img *pdf.Image, w, h, maxH float64) {
	box := imgutil.Fit(w, h, ContentWidth, maxH)
	if box.H <= 0 {
		return
	}
	st.ensure(box.H + blockGap)
	st.page.Image(img, MarginX+box.X, st.y, box.W, box.H)
	st.y += box.H + blockGap
}

func (st *render) coverPage(m *manuscript.Manuscript, img *pdf.Image, w, h float64) {
	st.newPage()
	st.y += TitleLeading
	st.centered(m.Title, TitleSize, TitleLeading, pdf.Black)
	if len(m.Author) > 0 {
		st.centered(st.loc.AuthorLabel+m.Author, BodySize, BodyLeading, pdf.Black)
	}
	if len(m.Genre) > 0 {
		st.centered(st.loc.GenreLabel+m.Genre, BodySize, BodyLeading, pdf.Gray)
	}
	st.y += blockGap * 2
	st.picture(img, w, h, min(coverMaxH, PageHeight-MarginBottom-st.y-blockGap))
	st.page = nil
}

// contentPass draws chapters starting each one on new page. It returns real
// page where each chapter begins.
func (st *render) contentPass(m *manuscript.Manuscript) PageMap {
	pm := PageMap{First: st.doc.NumPages()}
	for i := range m.Chapters {
		ch := &m.Chapters[i]
		st.newPage()
		pm.Starts = append(pm.Starts, ChapterStart{ID: ch.ID, Page: st.page.Index()})

		st.block(ch.DisplayTitle, HeadingSize, HeadingLeading, pdf.Black)
		st.y += blockGap / 2
		if !ch.Prologue && ch.Summary != nil {
			st.block(st.loc.SummaryLabel+*ch.Summary, SummarySize, SummaryLeading, pdf.Gray)
			st.y += blockGap / 2
		}
		if st.opts.ChapterCover && ch.Cover != nil {
			if img, w, h := st.image(ch.Cover.Source, "chapter cover "+ch.ID); img != nil {
				st.picture(img, w, h, chapterCoverMaxH)
			}
		}

		if len(ch.Paragraphs) == 0 {
			st.block(st.loc.NoContent, st.size, st.leading, pdf.Gray)
			continue
		}
		for n, p := range ch.Paragraphs {
			for _, l := range st.wrapper.Lines(p, ContentWidth) {
				st.line(l, st.size, st.leading, MarginX, pdf.Black)
			}
			st.y += paragraphGap
			if !st.opts.Illustrations {
				continue
			}
			for _, ill := range ch.IllustrationsAt(n + 1) {
				if img, w, h := st.image(ill.Image.Source, "illustration "+ill.ID); img != nil {
					st.picture(img, w, h, illustrationMaxH)
				}
			}
		}
	}
	return pm
}

// footers puts display numbers on content pages.
func (st *render) footers(first int) {
	for i := first; i < st.doc.NumPages(); i++ {
		label := fmt.Sprint(DisplayNumber(i, first))
		x := (PageWidth - st.font.Measure(label, FooterSize)) / 2
		st.doc.Page(i).Text(st.font, FooterSize, x, PageHeight-MarginBottom/2, label, pdf.Gray)
	}
}
