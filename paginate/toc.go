package paginate

import (
	"math"
	"strconv"
	"strings"

	"msx/manuscript"
	"msx/pdf"
)

const (
	ellipsis  = "…"
	leaderDot = "."
	tocGap    = 6.0 // between title, leader and number
)

// ChapterStart records real (0-based) page index where chapter begins.
type ChapterStart struct {
	ID   string
	Page int
}

// PageMap is the outcome of content pass consumed by TOC pass.
type PageMap struct {
	First  int // index of the first content page
	Starts []ChapterStart
}

// Page returns start page of the chapter with given id.
func (pm PageMap) Page(id string) (int, bool) {
	for _, s := range pm.Starts {
		if s.ID == id {
			return s.Page, true
		}
	}
	return 0, false
}

// EntriesPerPage is number of TOC lines fitting on one page under heading.
func EntriesPerPage() int {
	return int(math.Floor((PageHeight - MarginTop - MarginBottom - TOCHeading) / TOCLeading))
}

// TOCPages is number of pages reserved for table of contents. At least one
// page is always reserved.
func TOCPages(entries int) int {
	per := EntriesPerPage()
	return max(1, (entries+per-1)/per)
}

// DisplayNumber maps 0-based real page index to number shown to reader, so
// that the first content page is always "1".
func DisplayNumber(page, first int) int {
	return max(1, page-first+1)
}

// truncate shortens text with ellipsis to fit width.
func truncate(f *pdf.Font, text string, size, width float64) string {
	if f.Measure(text, size) <= width {
		return text
	}
	runes := []rune(text)
	for n := len(runes) - 1; n > 0; n-- {
		s := strings.TrimRight(string(runes[:n]), " ") + ellipsis
		if f.Measure(s, size) <= width {
			return s
		}
	}
	return ellipsis
}

// leader returns dots filling width.
func leader(f *pdf.Font, size, width float64) string {
	dot := f.Measure(leaderDot, size)
	if dot <= 0 || width <= 0 {
		return ""
	}
	return strings.Repeat(leaderDot, int(width/dot))
}

// tocPass fills reserved pages: title, leader, display number and link to
// the real chapter page.
func (st *render) tocPass(pages []*pdf.Page, m *manuscript.Manuscript, pm PageMap) {
	per := EntriesPerPage()
	for i, p := range pages {
		title := st.loc.Contents
		if i > 0 {
			title = ""
		}
		if len(title) > 0 {
			x := MarginX + (ContentWidth-st.font.Measure(title, HeadingSize))/2
			p.Text(st.font, HeadingSize, x, MarginTop+st.baseline(HeadingSize, TOCHeading/2), title, pdf.Black)
			p.Line(MarginX, MarginTop+TOCHeading*3/4, MarginX+ContentWidth, MarginTop+TOCHeading*3/4, 0.5, pdf.Gray)
		}
	}

	for n, s := range pm.Starts {
		if n >= len(m.Chapters) {
			break
		}
		p := pages[min(n/per, len(pages)-1)]
		top := MarginTop + TOCHeading + float64(n%per)*TOCLeading
		base := top + st.baseline(BodySize, TOCLeading)

		number := strconv.Itoa(DisplayNumber(s.Page, pm.First))
		numW := st.font.Measure(number, BodySize)
		right := MarginX + ContentWidth

		title := truncate(st.font, m.Chapters[n].DisplayTitle, BodySize, ContentWidth-numW-4*tocGap)
		titleW := st.font.Measure(title, BodySize)

		dots := leader(st.font, BodySize, right-numW-tocGap-(MarginX+titleW+tocGap))
		dotsW := st.font.Measure(dots, BodySize)

		p.Text(st.font, BodySize, MarginX, base, title, pdf.Black)
		p.Text(st.font, BodySize, right-numW-tocGap-dotsW, base, dots, pdf.Gray)
		p.Text(st.font, BodySize, right-numW, base, number, pdf.Black)
		p.Link(MarginX, top, ContentWidth, TOCLeading, s.Page)
	}
}
