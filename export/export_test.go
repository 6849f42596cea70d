package export

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
	"golang.org/x/image/font/gofont/goregular"

	"msx/common"
	"msx/fonts"
	"msx/imgutil"
	"msx/manuscript"
	"msx/paginate"
)

type fakeFonts struct {
	list      []fonts.Option
	data      map[string][]byte
	listCalls int
	loaded    []string
	listErr   error
}

func (f *fakeFonts) ListFonts(context.Context) ([]fonts.Option, error) {
	f.listCalls++
	return f.list, f.listErr
}

func (f *fakeFonts) FontBytes(_ context.Context, name string) ([]byte, error) {
	f.loaded = append(f.loaded, name)
	data, ok := f.data[name]
	if !ok {
		return nil, errors.New("missing " + name)
	}
	return data, nil
}

func goFonts() *fakeFonts {
	return &fakeFonts{
		list: []fonts.Option{
			{Key: "broken", Label: "Broken", FileName: "broken.ttf", PDFFamily: "Broken"},
			{Key: "go", Label: "Go Regular", FileName: "go.ttf", PDFFamily: "GoRegular"},
		},
		data: map[string][]byte{
			"broken.ttf": []byte("not a font"),
			"go.ttf":     goregular.TTF,
		},
	}
}

type noImages struct{}

func (noImages) LoadJPEG(src string) (*imgutil.JPEG, error) {
	return nil, errors.New("no image " + src)
}

func (noImages) ForEbook(src string) (*imgutil.Payload, error) {
	return nil, errors.New("no image " + src)
}

func sample() *manuscript.Manuscript {
	return manuscript.Build(
		manuscript.ProjectRecord{ID: "p1", Title: "Test Novel", Author: "Someone", Language: "en"},
		[]manuscript.ChapterRecord{{
			ID: "c1", ProjectID: "p1", Title: "Beginning", OrderIndex: 1,
			FinalText: "Hello world.\n\nSecond paragraph.",
		}},
		manuscript.BuildOptions{},
	)
}

func TestExport_Text(t *testing.T) {
	for _, format := range []common.OutputFmt{common.OutputFmtTxt, common.OutputFmtMobi} {
		t.Run(format.String(), func(t *testing.T) {
			e := &Exporter{Log: zaptest.NewLogger(t)}
			res, err := e.Export(context.Background(), sample(), Options{Format: format})
			if err != nil {
				t.Fatal(err)
			}
			if res.Name != "Test Novel_export.txt" {
				t.Errorf("Name = %q", res.Name)
			}
			text := string(res.Data)
			if !strings.HasPrefix(text, "Test Novel\n") || !strings.Contains(text, "Second paragraph.") {
				t.Errorf("unexpected text:\n%s", text)
			}
			if res.Pages != 0 || res.Skipped != nil {
				t.Errorf("Pages = %d, Skipped = %v", res.Pages, res.Skipped)
			}
		})
	}
}

func TestExport_EPUB(t *testing.T) {
	e := &Exporter{Images: noImages{}, Log: zaptest.NewLogger(t)}
	m := sample()
	m.Cover = &manuscript.Image{ID: "cv", Source: "cover.png"}
	res, err := e.Export(context.Background(), m, Options{
		Format:   common.OutputFmtEpub,
		Content:  Content{NovelCover: true, Illustrations: true},
		Modified: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Name != "Test Novel_export.epub" {
		t.Errorf("Name = %q", res.Name)
	}
	if res.Skipped == nil {
		t.Error("broken cover was not reported")
	}
	zr, err := zip.NewReader(bytes.NewReader(res.Data), int64(len(res.Data)))
	if err != nil {
		t.Fatal(err)
	}
	if zr.File[0].Name != "mimetype" {
		t.Errorf("first entry = %s", zr.File[0].Name)
	}
}

func TestExport_PDF(t *testing.T) {
	catalog := goFonts()
	e := &Exporter{Fonts: catalog, Log: zaptest.NewLogger(t)}
	res, err := e.Export(context.Background(), sample(), Options{Format: common.OutputFmtPdf, Font: "go"})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(res.Data, []byte("%PDF-")) {
		t.Error("not a PDF")
	}
	if res.Name != "Test Novel_export.pdf" || res.Font != "Go Regular" {
		t.Errorf("Name = %q, Font = %q", res.Name, res.Font)
	}
	// TOC page followed by single chapter page
	if res.Pages != 2 {
		t.Errorf("Pages = %d, want 2", res.Pages)
	}
	if catalog.listCalls != 1 || len(catalog.loaded) != 1 || catalog.loaded[0] != "go.ttf" {
		t.Errorf("catalog used %d times, loaded %v", catalog.listCalls, catalog.loaded)
	}
}

func TestExport_FontSelection(t *testing.T) {
	tests := []struct {
		name      string
		preferred string
		want      string
	}{
		{"by key", "go", "go.ttf"},
		{"by file name", "go.ttf", "go.ttf"},
		{"by family", "GoRegular", "go.ttf"},
		{"unknown falls back to first", "missing", "broken.ttf"},
		{"empty falls back to first", "", "broken.ttf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog := goFonts()
			e := &Exporter{Fonts: catalog, Log: zaptest.NewLogger(t)}
			_, _, err := e.selectFont(context.Background(), tt.preferred)
			if len(catalog.loaded) != 1 || catalog.loaded[0] != tt.want {
				t.Fatalf("loaded %v, want %s", catalog.loaded, tt.want)
			}
			if tt.want == "broken.ttf" && !errors.Is(err, paginate.ErrNoFont) {
				t.Errorf("err = %v, want ErrNoFont", err)
			}
			if tt.want == "go.ttf" && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestExport_NoFont(t *testing.T) {
	tests := []struct {
		name    string
		catalog FontCatalog
	}{
		{"no catalog", nil},
		{"empty catalog", &fakeFonts{}},
		{"listing fails", &fakeFonts{listErr: fonts.ErrNoFonts}},
		{"bytes missing", &fakeFonts{list: []fonts.Option{{Key: "x", FileName: "x.ttf"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &Exporter{Fonts: tt.catalog, Log: zaptest.NewLogger(t)}
			res, err := e.Export(context.Background(), sample(), Options{Format: common.OutputFmtPdf})
			if !errors.Is(err, paginate.ErrNoFont) {
				t.Errorf("err = %v, want ErrNoFont", err)
			}
			if res != nil {
				t.Error("partial result returned")
			}
		})
	}
}

func TestExport_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := &Exporter{Log: zaptest.NewLogger(t)}
	if _, err := e.Export(ctx, sample(), Options{Format: common.OutputFmtTxt}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestExport_InvalidFormat(t *testing.T) {
	e := &Exporter{Log: zaptest.NewLogger(t)}
	if _, err := e.Export(context.Background(), sample(), Options{Format: common.OutputFmt(42)}); err == nil {
		t.Error("expected error")
	}
}

func TestOutputName(t *testing.T) {
	tests := []struct {
		name          string
		title         string
		format        common.OutputFmt
		tmpl          string
		transliterate bool
		want          string
	}{
		{"plain", "My Novel", common.OutputFmtPdf, "", false, "My Novel_export.pdf"},
		{"blank title", "  ", common.OutputFmtTxt, "", false, "novel_export.txt"},
		{"unsafe characters", "a/b:c", common.OutputFmtPdf, "", false, "a_b_c_export.pdf"},
		{"all forbidden", `*?"<>|`, common.OutputFmtEpub, "", false, "______" + "_export.epub"},
		{"control characters", "a\tb\nc", common.OutputFmtTxt, "", false, "a_b_c_export.txt"},
		{"mobi is text", "X", common.OutputFmtMobi, "", false, "X_export.txt"},
		{"cjk kept", "长夜", common.OutputFmtEpub, "", false, "长夜_export.epub"},
		{"transliterated", "Hello World", common.OutputFmtPdf, "", true, "hello-world_export.pdf"},
		{"template", "My Novel", common.OutputFmtPdf, `{{ .Author }} - {{ .Title | upper }}`, false, "Someone - MY NOVEL.pdf"},
		{"template with format", "T", common.OutputFmtEpub, `{{ .Title }}.{{ .Format }}.{{ .Chapters }}`, false, "T.epub.1.epub"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := sample()
			m.Title = tt.title
			got, err := OutputName(m, tt.format, tt.tmpl, tt.transliterate)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("OutputName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOutputName_BadTemplate(t *testing.T) {
	if _, err := OutputName(sample(), common.OutputFmtTxt, "{{ .Missing", false); err == nil {
		t.Error("expected parse error")
	}
}

func TestExport_BadTemplateFallsBack(t *testing.T) {
	e := &Exporter{Log: zaptest.NewLogger(t)}
	res, err := e.Export(context.Background(), sample(), Options{Format: common.OutputFmtTxt, NameTemplate: "{{ .Nope }}"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Name != "Test Novel_export.txt" {
		t.Errorf("Name = %q", res.Name)
	}
}
