// Package epub builds EPUB 3 package for manuscript and stores it in a
// minimal zip archive.
package epub

import (
	"bytes"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"msx/epub/zipper"
	"msx/imgutil"
	"msx/manuscript"
)

const (
	mimetypeContent = "application/epub+zip"
	oebpsDir        = "OEBPS"
	imagesDir       = "images"

	mediaXHTML = "application/xhtml+xml"
	mediaNCX   = "application/x-dtbncx+xml"
	mediaCSS   = "text/css"

	titleFile = "title.xhtml"
	navFile   = "nav.xhtml"
	ncxFile   = "toc.ncx"
	opfFile   = "content.opf"
	cssFile   = "stylesheet.css"
)

const stylesheet = `body { margin: 0 5%; line-height: 1.6; }
h1 { text-align: center; margin: 1.5em 0 1em; }
p { text-indent: 2em; margin: 0 0 0.6em; }
p.summary, p.empty, p.meta { text-indent: 0; color: #666; }
p.meta { text-align: center; }
div.image { text-align: center; margin: 1em 0; }
div.image img { max-width: 100%; }
`

// ImageLoader returns image in a media type reading systems can show.
type ImageLoader interface {
	ForEbook(src string) (*imgutil.Payload, error)
}

// Options control optional content of the package.
type Options struct {
	NovelCover    bool
	ChapterCover  bool
	Illustrations bool
	// Modified is recorded as dcterms:modified, current time when zero.
	Modified time.Time
}

// Result is packaged book.
type Result struct {
	Data    []byte
	Entries []string // archive entry names in order
	// Skipped combines non-fatal image problems.
	Skipped error
}

// Builder packages manuscripts. Images may be nil, in which case no images
// are included.
type Builder struct {
	Images ImageLoader
	Log    *zap.Logger
}

type chapterData struct {
	ID       string
	Filename string
	Title    string
}

type resource struct {
	ID         string
	Href       string
	MediaType  string
	Properties string
}

// book is state of single packaging run.
type book struct {
	m       *manuscript.Manuscript
	loc     *manuscript.Locale
	opts    Options
	images  ImageLoader
	log     *zap.Logger
	uid     string
	lang    string
	archive zipper.Archive
	media   []resource
	bySrc   map[string]string // image source -> href, empty when failed
	skipped error
}

// Build produces complete EPUB archive. Either the whole archive is returned
// or an error, never partial data.
func (b *Builder) Build(m *manuscript.Manuscript, opts Options) (*Result, error) {
	log := b.Log
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Modified.IsZero() {
		opts.Modified = time.Now()
	}
	loc := m.Locale
	if loc == nil {
		loc = manuscript.LocaleFor(m.Language)
	}

	bk := &book{
		m:      m,
		loc:    loc,
		opts:   opts,
		images: b.Images,
		log:    log,
		uid:    Identifier(m),
		lang:   normalizeLang(m.Language, loc),
		bySrc:  make(map[string]string),
	}

	bk.add("mimetype", []byte(mimetypeContent))
	if err := bk.addXML("META-INF/container.xml", containerDoc()); err != nil {
		return nil, fmt.Errorf("unable to write container: %w", err)
	}

	var coverHref string
	if opts.NovelCover && m.Cover != nil {
		coverHref = bk.image(m.Cover.Source, "cover", "novel cover")
	}

	chapters := make([]chapterData, 0, len(m.Chapters))
	docs := make([]*etree.Document, 0, len(m.Chapters))
	for i := range m.Chapters {
		ch := &m.Chapters[i]
		cd := chapterData{
			ID:       fmt.Sprintf("chapter-%03d", i+1),
			Filename: fmt.Sprintf("chapter-%03d.xhtml", i+1),
			Title:    ch.DisplayTitle,
		}
		chapters = append(chapters, cd)
		docs = append(docs, bk.chapterDoc(i, ch))
	}

	if err := bk.addXML(path.Join(oebpsDir, titleFile), bk.titleDoc(coverHref)); err != nil {
		return nil, fmt.Errorf("unable to write title page: %w", err)
	}
	for i, doc := range docs {
		if err := bk.addXML(path.Join(oebpsDir, chapters[i].Filename), doc); err != nil {
			return nil, fmt.Errorf("unable to write chapter %s: %w", chapters[i].ID, err)
		}
	}
	if err := bk.addXML(path.Join(oebpsDir, navFile), bk.navDoc(chapters)); err != nil {
		return nil, fmt.Errorf("unable to write navigation document: %w", err)
	}
	if err := bk.addXML(path.Join(oebpsDir, ncxFile), bk.ncxDoc(chapters)); err != nil {
		return nil, fmt.Errorf("unable to write NCX: %w", err)
	}
	bk.add(path.Join(oebpsDir, cssFile), []byte(stylesheet))
	if err := bk.addXML(path.Join(oebpsDir, opfFile), bk.opfDoc(chapters, coverHref)); err != nil {
		return nil, fmt.Errorf("unable to write OPF: %w", err)
	}

	data, err := bk.archive.Bytes()
	if err != nil {
		return nil, fmt.Errorf("unable to build archive: %w", err)
	}
	log.Debug("Package assembled", zap.Int("entries", bk.archive.Len()), zap.Int("size", len(data)))
	if bk.skipped != nil {
		log.Warn("Some images were skipped", zap.Int("count", len(multierr.Errors(bk.skipped))), zap.Error(bk.skipped))
	}

	return &Result{Data: data, Entries: bk.archive.Names(), Skipped: bk.skipped}, nil
}

// Identifier derives stable book identifier from project id and title.
func Identifier(m *manuscript.Manuscript) string {
	return "urn:uuid:" + uuid.NewSHA1(uuid.NameSpaceURL, []byte("msx:"+m.ID+"\x00"+m.Title)).String()
}

func normalizeLang(lang string, loc *manuscript.Locale) string {
	if tag, err := language.Parse(strings.TrimSpace(lang)); err == nil {
		return tag.String()
	}
	return loc.Lang()
}

func (bk *book) add(name string, data []byte) {
	bk.archive.Add(name, data)
}

func (bk *book) addXML(name string, doc *etree.Document) error {
	var buf bytes.Buffer
	if _, err := doc.WriteTo(&buf); err != nil {
		return err
	}
	bk.add(name, buf.Bytes())
	return nil
}

// image stores image once per source and returns its href relative to
// OEBPS, or empty string when image is not usable.
func (bk *book) image(src, name, what string) string {
	if href, ok := bk.bySrc[src]; ok {
		return href
	}
	href := ""
	defer func() { bk.bySrc[src] = href }()

	if bk.images == nil {
		return ""
	}
	p, err := bk.images.ForEbook(src)
	if err != nil {
		bk.log.Warn("Skipping image", zap.String("image", what), zap.Error(err))
		bk.skipped = multierr.Append(bk.skipped, fmt.Errorf("%s: %w", what, err))
		return ""
	}
	href = path.Join(imagesDir, name+"."+p.Ext())
	res := resource{ID: "img-" + name, Href: href, MediaType: p.MIME}
	if name == "cover" {
		res.Properties = "cover-image"
	}
	bk.media = append(bk.media, res)
	bk.add(path.Join(oebpsDir, href), p.Data)
	bk.log.Debug("Wrote image", zap.String("image", what), zap.String("file", href))
	return href
}
