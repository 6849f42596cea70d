package epub

import (
	"fmt"
	"path"

	"github.com/beevik/etree"

	"msx/manuscript"
)

func newDocument() *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	return doc
}

func containerDoc() *etree.Document {
	doc := newDocument()

	container := doc.CreateElement("container")
	container.CreateAttr("version", "1.0")
	container.CreateAttr("xmlns", "urn:oasis:names:tc:opendocument:xmlns:container")

	rootfiles := container.CreateElement("rootfiles")
	rootfile := rootfiles.CreateElement("rootfile")
	rootfile.CreateAttr("full-path", path.Join(oebpsDir, opfFile))
	rootfile.CreateAttr("media-type", "application/oebps-package+xml")
	return doc
}

// xhtmlDoc creates content document skeleton and returns its body.
func (bk *book) xhtmlDoc(title string) (*etree.Document, *etree.Element) {
	doc := newDocument()
	doc.CreateDirective("DOCTYPE html")

	html := doc.CreateElement("html")
	html.CreateAttr("xmlns", "http://www.w3.org/1999/xhtml")
	html.CreateAttr("xmlns:epub", "http://www.idpf.org/2007/ops")
	html.CreateAttr("xml:lang", bk.lang)
	html.CreateAttr("lang", bk.lang)

	head := html.CreateElement("head")
	meta := head.CreateElement("meta")
	meta.CreateAttr("charset", "utf-8")
	head.CreateElement("title").SetText(title)
	link := head.CreateElement("link")
	link.CreateAttr("rel", "stylesheet")
	link.CreateAttr("type", "text/css")
	link.CreateAttr("href", cssFile)

	return doc, html.CreateElement("body")
}

func appendParagraph(parent *etree.Element, class, text string) {
	p := parent.CreateElement("p")
	if len(class) > 0 {
		p.CreateAttr("class", class)
	}
	p.SetText(text)
}

func appendImage(parent *etree.Element, href, alt string) {
	div := parent.CreateElement("div")
	div.CreateAttr("class", "image")
	img := div.CreateElement("img")
	img.CreateAttr("src", href)
	img.CreateAttr("alt", alt)
}

func (bk *book) titleDoc(coverHref string) *etree.Document {
	doc, body := bk.xhtmlDoc(bk.m.Title)

	section := body.CreateElement("section")
	section.CreateAttr("epub:type", "titlepage")
	section.CreateElement("h1").SetText(bk.m.Title)
	if len(bk.m.Author) > 0 {
		appendParagraph(section, "meta", bk.loc.AuthorLabel+bk.m.Author)
	}
	if len(bk.m.Genre) > 0 {
		appendParagraph(section, "meta", bk.loc.GenreLabel+bk.m.Genre)
	}
	if len(coverHref) > 0 {
		appendImage(section, coverHref, bk.m.Title)
	}
	if len(bk.m.Description) > 0 {
		appendParagraph(section, "summary", bk.m.Description)
	}
	return doc
}

func (bk *book) chapterDoc(i int, ch *manuscript.Chapter) *etree.Document {
	doc, body := bk.xhtmlDoc(ch.DisplayTitle)

	section := body.CreateElement("section")
	section.CreateAttr("epub:type", "chapter")
	section.CreateAttr("id", fmt.Sprintf("ch%03d", i+1))
	section.CreateElement("h1").SetText(ch.DisplayTitle)

	if !ch.Prologue && ch.Summary != nil {
		appendParagraph(section, "summary", bk.loc.SummaryLabel+*ch.Summary)
	}
	if bk.opts.ChapterCover && ch.Cover != nil {
		if href := bk.image(ch.Cover.Source, fmt.Sprintf("ch%03d-cover", i+1), "chapter cover "+ch.ID); len(href) > 0 {
			appendImage(section, href, ch.DisplayTitle)
		}
	}

	if len(ch.Paragraphs) == 0 {
		appendParagraph(section, "empty", bk.loc.NoContent)
		return doc
	}
	k := 0
	for n, p := range ch.Paragraphs {
		appendParagraph(section, "", p)
		if !bk.opts.Illustrations {
			continue
		}
		for _, ill := range ch.IllustrationsAt(n + 1) {
			k++
			name := fmt.Sprintf("ch%03d-ill-%02d", i+1, k)
			if href := bk.image(ill.Image.Source, name, "illustration "+ill.ID); len(href) > 0 {
				appendImage(section, href, ill.Image.Name)
			}
		}
	}
	return doc
}

func (bk *book) navDoc(chapters []chapterData) *etree.Document {
	doc, body := bk.xhtmlDoc(bk.loc.Contents)

	nav := body.CreateElement("nav")
	nav.CreateAttr("epub:type", "toc")
	nav.CreateAttr("id", "toc")
	nav.CreateAttr("role", "doc-toc")
	nav.CreateElement("h1").SetText(bk.loc.Contents)

	ol := nav.CreateElement("ol")
	appendNavItem(ol, titleFile, bk.m.Title)
	for _, ch := range chapters {
		appendNavItem(ol, ch.Filename, ch.Title)
	}

	landmarks := body.CreateElement("nav")
	landmarks.CreateAttr("epub:type", "landmarks")
	landmarks.CreateAttr("id", "landmarks")
	landmarks.CreateAttr("hidden", "")
	lol := landmarks.CreateElement("ol")
	a := lol.CreateElement("li").CreateElement("a")
	a.CreateAttr("epub:type", "titlepage")
	a.CreateAttr("href", titleFile)
	a.SetText(bk.m.Title)
	if len(chapters) > 0 {
		a := lol.CreateElement("li").CreateElement("a")
		a.CreateAttr("epub:type", "bodymatter")
		a.CreateAttr("href", chapters[0].Filename)
		a.SetText(chapters[0].Title)
	}
	return doc
}

func appendNavItem(ol *etree.Element, href, text string) {
	a := ol.CreateElement("li").CreateElement("a")
	a.CreateAttr("href", href)
	a.SetText(text)
}

func (bk *book) ncxDoc(chapters []chapterData) *etree.Document {
	doc := newDocument()

	ncx := doc.CreateElement("ncx")
	ncx.CreateAttr("xmlns", "http://www.daisy.org/z3986/2005/ncx/")
	ncx.CreateAttr("version", "2005-1")
	ncx.CreateAttr("xml:lang", bk.lang)

	head := ncx.CreateElement("head")
	for _, kv := range [][2]string{
		{"dtb:uid", bk.uid},
		{"dtb:depth", "1"},
		{"dtb:totalPageCount", "0"},
		{"dtb:maxPageNumber", "0"},
	} {
		meta := head.CreateElement("meta")
		meta.CreateAttr("name", kv[0])
		meta.CreateAttr("content", kv[1])
	}

	ncx.CreateElement("docTitle").CreateElement("text").SetText(bk.m.Title)
	if len(bk.m.Author) > 0 {
		ncx.CreateElement("docAuthor").CreateElement("text").SetText(bk.m.Author)
	}

	navMap := ncx.CreateElement("navMap")
	playOrder := 0
	navPoint := func(id, src, label string) {
		playOrder++
		np := navMap.CreateElement("navPoint")
		np.CreateAttr("id", id)
		np.CreateAttr("playOrder", fmt.Sprintf("%d", playOrder))
		np.CreateElement("navLabel").CreateElement("text").SetText(label)
		np.CreateElement("content").CreateAttr("src", src)
	}
	navPoint("title", titleFile, bk.m.Title)
	for _, ch := range chapters {
		navPoint(ch.ID, ch.Filename, ch.Title)
	}
	return doc
}

func (bk *book) opfDoc(chapters []chapterData, coverHref string) *etree.Document {
	doc := newDocument()

	pkg := doc.CreateElement("package")
	pkg.CreateAttr("xmlns", "http://www.idpf.org/2007/opf")
	pkg.CreateAttr("version", "3.0")
	pkg.CreateAttr("unique-identifier", "BookId")
	pkg.CreateAttr("xml:lang", bk.lang)

	metadata := pkg.CreateElement("metadata")
	metadata.CreateAttr("xmlns:dc", "http://purl.org/dc/elements/1.1/")
	metadata.CreateAttr("xmlns:opf", "http://www.idpf.org/2007/opf")

	id := metadata.CreateElement("dc:identifier")
	id.CreateAttr("id", "BookId")
	id.SetText(bk.uid)
	metadata.CreateElement("dc:title").SetText(bk.m.Title)
	metadata.CreateElement("dc:language").SetText(bk.lang)
	if len(bk.m.Author) > 0 {
		creator := metadata.CreateElement("dc:creator")
		creator.CreateAttr("id", "creator0")
		creator.SetText(bk.m.Author)
		role := metadata.CreateElement("meta")
		role.CreateAttr("refines", "#creator0")
		role.CreateAttr("property", "role")
		role.CreateAttr("scheme", "marc:relators")
		role.SetText("aut")
	}
	if len(bk.m.Genre) > 0 {
		metadata.CreateElement("dc:subject").SetText(bk.m.Genre)
	}
	if len(bk.m.Description) > 0 {
		metadata.CreateElement("dc:description").SetText(bk.m.Description)
	}
	modified := metadata.CreateElement("meta")
	modified.CreateAttr("property", "dcterms:modified")
	modified.SetText(bk.opts.Modified.UTC().Format("2006-01-02T15:04:05Z"))
	if len(coverHref) > 0 {
		// older reading systems look for cover this way
		meta := metadata.CreateElement("meta")
		meta.CreateAttr("name", "cover")
		meta.CreateAttr("content", "img-cover")
	}

	manifest := pkg.CreateElement("manifest")
	item := func(r resource) {
		it := manifest.CreateElement("item")
		it.CreateAttr("id", r.ID)
		it.CreateAttr("href", r.Href)
		it.CreateAttr("media-type", r.MediaType)
		if len(r.Properties) > 0 {
			it.CreateAttr("properties", r.Properties)
		}
	}
	item(resource{ID: "title", Href: titleFile, MediaType: mediaXHTML})
	for _, ch := range chapters {
		item(resource{ID: ch.ID, Href: ch.Filename, MediaType: mediaXHTML})
	}
	for _, r := range bk.media {
		item(r)
	}
	item(resource{ID: "nav", Href: navFile, MediaType: mediaXHTML, Properties: "nav"})
	item(resource{ID: "ncx", Href: ncxFile, MediaType: mediaNCX})
	item(resource{ID: "css", Href: cssFile, MediaType: mediaCSS})

	spine := pkg.CreateElement("spine")
	spine.CreateAttr("toc", "ncx")
	itemref := func(id string) {
		spine.CreateElement("itemref").CreateAttr("idref", id)
	}
	itemref("title")
	for _, ch := range chapters {
		itemref(ch.ID)
	}
	return doc
}
