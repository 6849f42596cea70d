package pdf

import (
	"bytes"
	"compress/zlib"
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode/utf16"

	"golang.org/x/image/font/sfnt"
)

var ErrNoPages = errors.New("document has no pages")

type objWriter struct {
	buf     bytes.Buffer
	offsets []int // by object number, 0 is unused
}

// alloc reserves object number to be written later.
func (w *objWriter) alloc() int {
	w.offsets = append(w.offsets, -1)
	return len(w.offsets) - 1
}

func (w *objWriter) object(id int, body string) {
	w.offsets[id] = w.buf.Len()
	fmt.Fprintf(&w.buf, "%d 0 obj\n%s\nendobj\n", id, body)
}

// stream writes stream object, compressing data when requested.
func (w *objWriter) stream(id int, dict string, data []byte, compress bool) error {
	if compress {
		var zb bytes.Buffer
		zw, err := zlib.NewWriterLevel(&zb, zlib.BestCompression)
		if err != nil {
			return err
		}
		if _, err := zw.Write(data); err != nil {
			return err
		}
		if err := zw.Close(); err != nil {
			return err
		}
		data = zb.Bytes()
		dict += " /Filter /FlateDecode"
	}
	w.offsets[id] = w.buf.Len()
	fmt.Fprintf(&w.buf, "%d 0 obj\n<< %s /Length %d >>\nstream\n", id, dict, len(data))
	w.buf.Write(data)
	w.buf.WriteString("\nendstream\nendobj\n")
	return nil
}

func ref(id int) string {
	return fmt.Sprintf("%d 0 R", id)
}

// textString encodes string for info dictionary as UTF-16BE with BOM.
func textString(s string) string {
	var sb strings.Builder
	sb.WriteString("<FEFF")
	for _, u := range utf16.Encode([]rune(s)) {
		fmt.Fprintf(&sb, "%04X", u)
	}
	sb.WriteString(">")
	return sb.String()
}

type pageRefs struct {
	page, content int
}

// Bytes serializes complete document.
func (d *Document) Bytes() ([]byte, error) {
	if len(d.pages) == 0 {
		return nil, ErrNoPages
	}

	w := &objWriter{offsets: []int{0}}
	w.buf.WriteString("%PDF-1.7\n%\xE2\xE3\xCF\xD3\n")

	catalog, pagesID, infoID := w.alloc(), w.alloc(), w.alloc()

	refs := make([]pageRefs, len(d.pages))
	for i := range d.pages {
		refs[i] = pageRefs{page: w.alloc(), content: w.alloc()}
	}
	fontIDs := make([]int, len(d.fonts))
	for i := range d.fonts {
		fontIDs[i] = w.alloc()
	}
	imageIDs := make([]int, len(d.images))
	for i := range d.images {
		imageIDs[i] = w.alloc()
	}

	w.object(catalog, fmt.Sprintf("<< /Type /Catalog /Pages %s >>", ref(pagesID)))

	kids := make([]string, len(refs))
	for i, r := range refs {
		kids[i] = ref(r.page)
	}
	w.object(pagesID, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(refs)))
	w.object(infoID, d.infoDict())

	var resources strings.Builder
	resources.WriteString("<< /ProcSet [/PDF /Text /ImageB /ImageC]")
	if len(d.fonts) > 0 {
		resources.WriteString(" /Font <<")
		for i, f := range d.fonts {
			fmt.Fprintf(&resources, " /%s %s", f.res, ref(fontIDs[i]))
		}
		resources.WriteString(" >>")
	}
	if len(d.images) > 0 {
		resources.WriteString(" /XObject <<")
		for i, img := range d.images {
			fmt.Fprintf(&resources, " /%s %s", img.res, ref(imageIDs[i]))
		}
		resources.WriteString(" >>")
	}
	resources.WriteString(" >>")

	for i, p := range d.pages {
		var annots string
		if len(p.links) > 0 {
			list := make([]string, 0, len(p.links))
			for _, l := range p.links {
				if l.dest < 0 || l.dest >= len(refs) {
					return nil, fmt.Errorf("link on page %d points to missing page %d", i+1, l.dest+1)
				}
				list = append(list, fmt.Sprintf("<< /Type /Annot /Subtype /Link /Rect [%s %s %s %s] /Border [0 0 0] /Dest [%s /XYZ 0 %s null] >>",
					num(l.rect[0]), num(l.rect[1]), num(l.rect[2]), num(l.rect[3]), ref(refs[l.dest].page), num(d.Height)))
			}
			annots = " /Annots [" + strings.Join(list, " ") + "]"
		}
		w.object(refs[i].page, fmt.Sprintf("<< /Type /Page /Parent %s /MediaBox [0 0 %s %s] /Resources %s /Contents %s%s >>",
			ref(pagesID), num(d.Width), num(d.Height), resources.String(), ref(refs[i].content), annots))
		if err := w.stream(refs[i].content, "", p.content.Bytes(), true); err != nil {
			return nil, fmt.Errorf("unable to write page %d: %w", i+1, err)
		}
	}

	for i, f := range d.fonts {
		if err := writeFont(w, fontIDs[i], f); err != nil {
			return nil, fmt.Errorf("unable to write font %s: %w", f.baseName, err)
		}
	}

	for i, img := range d.images {
		cs := "/DeviceRGB"
		if img.components == 1 {
			cs = "/DeviceGray"
		}
		dict := fmt.Sprintf("/Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace %s /BitsPerComponent 8 /Filter /DCTDecode",
			img.width, img.height, cs)
		if err := w.stream(imageIDs[i], dict, img.data, false); err != nil {
			return nil, err
		}
	}

	xref := w.buf.Len()
	fmt.Fprintf(&w.buf, "xref\n0 %d\n", len(w.offsets))
	w.buf.WriteString("0000000000 65535 f \n")
	for _, off := range w.offsets[1:] {
		fmt.Fprintf(&w.buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&w.buf, "trailer\n<< /Size %d /Root %s /Info %s >>\nstartxref\n%d\n%%%%EOF\n",
		len(w.offsets), ref(catalog), ref(infoID), xref)

	return w.buf.Bytes(), nil
}

func (d *Document) infoDict() string {
	var sb strings.Builder
	sb.WriteString("<<")
	for _, kv := range [][2]string{
		{"Title", d.Info.Title},
		{"Author", d.Info.Author},
		{"Subject", d.Info.Subject},
		{"Creator", d.Info.Creator},
		{"Producer", d.Info.Producer},
	} {
		if len(kv[1]) > 0 {
			fmt.Fprintf(&sb, " /%s %s", kv[0], textString(kv[1]))
		}
	}
	sb.WriteString(" >>")
	return sb.String()
}

// writeFont emits Type0 font with descendant CID font, descriptor, font
// program and ToUnicode map.
func writeFont(w *objWriter, id int, f *Font) error {
	cidID, descID, fileID, cmapID := w.alloc(), w.alloc(), w.alloc(), w.alloc()

	w.object(id, fmt.Sprintf("<< /Type /Font /Subtype /Type0 /BaseFont /%s /Encoding /Identity-H /DescendantFonts [%s] /ToUnicode %s >>",
		f.baseName, ref(cidID), ref(cmapID)))

	subtype, extra := "CIDFontType2", " /CIDToGIDMap /Identity"
	if f.cff {
		subtype, extra = "CIDFontType0", ""
	}
	w.object(cidID, fmt.Sprintf("<< /Type /Font /Subtype /%s /BaseFont /%s /CIDSystemInfo << /Registry (Adobe) /Ordering (Identity) /Supplement 0 >> /FontDescriptor %s /DW %d /W %s%s >>",
		subtype, f.baseName, ref(descID), f.advance(0), cidWidths(f), extra))

	fileKey := "FontFile2"
	if f.cff {
		fileKey = "FontFile3"
	}
	w.object(descID, fmt.Sprintf("<< /Type /FontDescriptor /FontName /%s /Flags 4 /FontBBox [%s %s %s %s] /ItalicAngle %s /Ascent %s /Descent %s /CapHeight %s /StemV 80 /%s %s >>",
		f.baseName, num(f.bbox[0]), num(f.bbox[1]), num(f.bbox[2]), num(f.bbox[3]),
		num(f.italicAngle), num(f.ascent), num(f.descent), num(f.ascent), fileKey, ref(fileID)))

	dict := fmt.Sprintf("/Length1 %d", len(f.data))
	if f.cff {
		dict = "/Subtype /OpenType"
	}
	if err := w.stream(fileID, dict, f.data, true); err != nil {
		return err
	}
	return w.stream(cmapID, "", toUnicode(f), true)
}

func usedGlyphs(f *Font) []sfnt.GlyphIndex {
	gids := make([]sfnt.GlyphIndex, 0, len(f.used))
	for gi := range f.used {
		gids = append(gids, gi)
	}
	slices.Sort(gids)
	return gids
}

// cidWidths builds W array for used glyphs as runs of "first last width".
func cidWidths(f *Font) string {
	gids := usedGlyphs(f)
	if len(gids) == 0 {
		return "[]"
	}
	var sb strings.Builder
	sb.WriteString("[")
	start, prev := gids[0], gids[0]
	cur := f.advance(start)
	for _, gi := range gids[1:] {
		adv := f.advance(gi)
		if adv == cur && gi == prev+1 {
			prev = gi
			continue
		}
		fmt.Fprintf(&sb, " %d %d %d", start, prev, cur)
		start, prev, cur = gi, gi, adv
	}
	fmt.Fprintf(&sb, " %d %d %d ]", start, prev, cur)
	return sb.String()
}

// toUnicode builds CMap mapping used glyphs back to text.
func toUnicode(f *Font) []byte {
	var buf bytes.Buffer
	buf.WriteString("/CIDInit /ProcSet findresource begin\n12 dict begin\nbegincmap\n")
	buf.WriteString("/CIDSystemInfo << /Registry (Adobe) /Ordering (UCS) /Supplement 0 >> def\n")
	fmt.Fprintf(&buf, "/CMapName /%s-UTF16 def\n/CMapType 2 def\n", f.baseName)
	buf.WriteString("1 begincodespacerange\n<0000> <FFFF>\nendcodespacerange\n")

	gids := usedGlyphs(f)
	for i := 0; i < len(gids); i += 100 {
		chunk := gids[i:min(i+100, len(gids))]
		fmt.Fprintf(&buf, "%d beginbfchar\n", len(chunk))
		for _, gi := range chunk {
			fmt.Fprintf(&buf, "<%04X> <", uint16(gi))
			for _, u := range utf16.Encode(f.used[gi]) {
				fmt.Fprintf(&buf, "%04X", u)
			}
			buf.WriteString(">\n")
		}
		buf.WriteString("endbfchar\n")
	}
	buf.WriteString("endcmap\nCMapName currentdict /CMap defineresource pop\nend\nend\n")
	return buf.Bytes()
}
