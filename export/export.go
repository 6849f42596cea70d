// Package export selects output format for manuscript and produces single
// in-memory artifact.
package export

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"msx/common"
	"msx/epub"
	"msx/fonts"
	"msx/manuscript"
	"msx/misc"
	"msx/paginate"
	"msx/pdf"
	"msx/textout"
)

// FontCatalog supplies fonts for paginated output.
type FontCatalog interface {
	ListFonts(ctx context.Context) ([]fonts.Option, error)
	FontBytes(ctx context.Context, fileName string) ([]byte, error)
}

// ImageLoader prepares images for both paginated and packaged output.
type ImageLoader interface {
	paginate.ImageLoader
	epub.ImageLoader
}

// Content toggles, ignored by text formats.
type Content struct {
	NovelCover    bool
	ChapterCover  bool
	Illustrations bool
}

type Options struct {
	Format  common.OutputFmt
	Content Content
	// Font is key, file name or PDF family of preferred font. First listed
	// font is used when empty or not found.
	Font       string
	FontSize   float64
	LineHeight float64
	// NameTemplate replaces default output name when not empty.
	NameTemplate  string
	Transliterate bool
	Modified      time.Time
}

// Result is exactly one artifact per export.
type Result struct {
	Name   string
	Data   []byte
	Format common.OutputFmt
	// Font used for paginated output.
	Font string
	// Pages in paginated output.
	Pages int
	// Skipped combines non-fatal image problems.
	Skipped error
}

type Exporter struct {
	Fonts  FontCatalog
	Images ImageLoader
	Log    *zap.Logger
}

func (e *Exporter) log() *zap.Logger {
	if e.Log == nil {
		return zap.NewNop()
	}
	return e.Log.Named("export")
}

// Export produces artifact in requested format. Nothing is written anywhere:
// caller saves Result.Data.
func (e *Exporter) Export(ctx context.Context, m *manuscript.Manuscript, opts Options) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !opts.Format.IsValid() {
		return nil, fmt.Errorf("unsupported output format: %s", opts.Format)
	}
	log := e.log()

	name, err := OutputName(m, opts.Format, opts.NameTemplate, opts.Transliterate)
	if err != nil {
		log.Warn("Unable to prepare output name, using default", zap.Error(err))
		if name, err = OutputName(m, opts.Format, "", opts.Transliterate); err != nil {
			return nil, err
		}
	}
	res := &Result{Name: name, Format: opts.Format}

	log.Debug("Exporting", zap.String("title", m.Title), zap.Stringer("format", opts.Format), zap.Int("chapters", len(m.Chapters)))

	switch {
	case opts.Format.TextOnly():
		res.Data = textout.Bytes(m)

	case opts.Format.Paginated():
		font, label, err := e.selectFont(ctx, opts.Font)
		if err != nil {
			return nil, err
		}
		r := &paginate.Renderer{Font: font, Images: e.Images, Log: log.Named("pdf")}
		out, err := r.Render(m, paginate.Options{
			NovelCover:    opts.Content.NovelCover,
			ChapterCover:  opts.Content.ChapterCover,
			Illustrations: opts.Content.Illustrations,
			Producer:      misc.GetAppName() + " " + misc.GetVersion(),
			FontSize:      opts.FontSize,
			LineHeight:    opts.LineHeight,
		})
		if err != nil {
			return nil, err
		}
		res.Data, res.Pages, res.Skipped, res.Font = out.Data, out.Pages, out.Skipped, label

	default:
		b := &epub.Builder{Images: e.Images, Log: log.Named("epub")}
		out, err := b.Build(m, epub.Options{
			NovelCover:    opts.Content.NovelCover,
			ChapterCover:  opts.Content.ChapterCover,
			Illustrations: opts.Content.Illustrations,
			Modified:      opts.Modified,
		})
		if err != nil {
			return nil, err
		}
		res.Data, res.Skipped = out.Data, out.Skipped
	}
	return res, nil
}

// selectFont lists fonts and loads selected one, each exactly once. Any
// failure here means no page can be drawn.
func (e *Exporter) selectFont(ctx context.Context, preferred string) (*pdf.Font, string, error) {
	if e.Fonts == nil {
		return nil, "", paginate.ErrNoFont
	}
	list, err := e.Fonts.ListFonts(ctx)
	if err != nil {
		return nil, "", errors.Join(paginate.ErrNoFont, err)
	}
	if len(list) == 0 {
		return nil, "", paginate.ErrNoFont
	}

	chosen := list[0]
	if len(preferred) > 0 {
		found := false
		for _, o := range list {
			if o.Key == preferred || o.FileName == preferred || o.PDFFamily == preferred {
				chosen, found = o, true
				break
			}
		}
		if !found {
			e.log().Warn("Requested font is not available, using default", zap.String("requested", preferred), zap.String("font", chosen.FileName))
		}
	}

	data, err := e.Fonts.FontBytes(ctx, chosen.FileName)
	if err != nil {
		return nil, "", errors.Join(paginate.ErrNoFont, err)
	}
	font, err := pdf.ParseFont(chosen.PDFFamily, data)
	if err != nil {
		return nil, "", errors.Join(paginate.ErrNoFont, fmt.Errorf("font %s: %w", chosen.FileName, err))
	}
	e.log().Debug("Font selected", zap.String("font", chosen.FileName), zap.String("label", chosen.Label))
	return font, chosen.Label, nil
}
