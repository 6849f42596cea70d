// Package pdf writes minimal PDF documents: pages with text in embedded
// composite fonts, JPEG images and internal links.
package pdf

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
)

// A4 page size in points.
const (
	A4Width  = 595.28
	A4Height = 841.89
)

type Color struct {
	R, G, B float64
}

var (
	Black = Color{}
	Gray  = Color{0.4, 0.4, 0.4}
)

// Info is document information dictionary.
type Info struct {
	Title    string
	Author   string
	Subject  string
	Creator  string
	Producer string
}

// Image is an XObject holding DCT encoded data.
type Image struct {
	res        string
	data       []byte
	width      int
	height     int
	components int
}

// Document accumulates pages in memory, Bytes produces final file.
type Document struct {
	Info   Info
	Width  float64
	Height float64

	pages  []*Page
	fonts  []*Font
	images []*Image
}

// New creates empty document with given page size.
func New(width, height float64) *Document {
	return &Document{Width: width, Height: height}
}

// AddFont registers font for use on pages.
func (d *Document) AddFont(f *Font) {
	for _, known := range d.fonts {
		if known == f {
			return
		}
	}
	f.res = "F" + strconv.Itoa(len(d.fonts)+1)
	d.fonts = append(d.fonts, f)
}

// AddJPEG registers image XObject. Components must be 1 (gray) or 3 (RGB).
func (d *Document) AddJPEG(data []byte, width, height, components int) (*Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("bad image size %dx%d", width, height)
	}
	if components != 1 && components != 3 {
		return nil, fmt.Errorf("unsupported number of color components: %d", components)
	}
	img := &Image{
		res:        "Im" + strconv.Itoa(len(d.images)+1),
		data:       data,
		width:      width,
		height:     height,
		components: components,
	}
	d.images = append(d.images, img)
	return img, nil
}

// Size returns image dimensions in pixels.
func (img *Image) Size() (int, int) {
	return img.width, img.height
}

// AddPage appends new empty page.
func (d *Document) AddPage() *Page {
	p := &Page{doc: d, index: len(d.pages)}
	d.pages = append(d.pages, p)
	return p
}

// Page returns page by 0-based index.
func (d *Document) Page(i int) *Page {
	return d.pages[i]
}

func (d *Document) NumPages() int {
	return len(d.pages)
}

type link struct {
	rect [4]float64
	dest int
}

// Page collects drawing operators. Coordinates accepted by Page methods are
// measured from the top left corner.
type Page struct {
	doc     *Document
	index   int
	content bytes.Buffer
	links   []link
}

// Index returns 0-based position of the page in document.
func (p *Page) Index() int {
	return p.index
}

func (p *Page) y(top float64) float64 {
	return p.doc.Height - top
}

func (c Color) fill() string {
	return fmt.Sprintf("%s %s %s rg", num(c.R), num(c.G), num(c.B))
}

func (c Color) stroke() string {
	return fmt.Sprintf("%s %s %s RG", num(c.R), num(c.G), num(c.B))
}

// Text draws single line with baseline at y.
func (p *Page) Text(f *Font, size, x, y float64, text string, c Color) {
	if len(text) == 0 {
		return
	}
	p.doc.AddFont(f)
	fmt.Fprintf(&p.content, "BT %s /%s %s Tf 1 0 0 1 %s %s Tm <%X> Tj ET\n",
		c.fill(), f.res, num(size), num(x), num(p.y(y)), f.encode(text))
}

// Image draws image scaled into box with top left corner at x, y.
func (p *Page) Image(img *Image, x, y, w, h float64) {
	fmt.Fprintf(&p.content, "q %s 0 0 %s %s %s cm /%s Do Q\n",
		num(w), num(h), num(x), num(p.y(y+h)), img.res)
}

// Line strokes straight line.
func (p *Page) Line(x1, y1, x2, y2, width float64, c Color) {
	fmt.Fprintf(&p.content, "q %s %s w %s %s m %s %s l S Q\n",
		c.stroke(), num(width), num(x1), num(p.y(y1)), num(x2), num(p.y(y2)))
}

// Link makes rectangle (top left corner at x, y) clickable, leading to page
// with 0-based index dest.
func (p *Page) Link(x, y, w, h float64, dest int) {
	p.links = append(p.links, link{
		rect: [4]float64{x, p.y(y + h), x + w, p.y(y)},
		dest: dest,
	})
}

// Links returns destinations of all links on page in order of creation.
func (p *Page) Links() []int {
	res := make([]int, 0, len(p.links))
	for _, l := range p.links {
		res = append(res, l.dest)
	}
	return res
}

// num formats number with at most 3 decimals.
func num(v float64) string {
	v = math.Round(v*1000) / 1000
	if v == 0 {
		return "0"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
