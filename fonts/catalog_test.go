package fonts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"
	"golang.org/x/image/font/gofont/goregular"
)

func fontDir(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), goregular.TTF, 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func keys(opts []Option) string {
	var k []string
	for _, o := range opts {
		k = append(k, o.Key)
	}
	return strings.Join(k, ",")
}

func TestDirCatalog_ListFonts(t *testing.T) {
	dir := fontDir(t, "han10.ttf", "arial.ttf", "msyh.ttf", "NotoSansCJK-Regular.otf", "simhei.ttf", "SimSun.ttf", "han2.ttf", "readme.txt")
	if err := os.Mkdir(filepath.Join(dir, "simsun-dir.ttf"), 0755); err != nil {
		t.Fatal(err)
	}

	c := &DirCatalog{Dirs: []string{dir}, Log: zaptest.NewLogger(t)}
	opts, err := c.ListFonts(context.Background())
	if err != nil {
		t.Fatalf("ListFonts() error = %v", err)
	}
	if got, want := keys(opts), "SimSun.ttf,simhei.ttf,msyh.ttf,NotoSansCJK-Regular.otf,han2.ttf,han10.ttf"; got != want {
		t.Errorf("ListFonts() = %s, want %s", got, want)
	}
	if opts[0].Label != "宋体 (SimSun.ttf)" || opts[0].PDFFamily != "sys_SimSun" || opts[0].FileName != "SimSun.ttf" {
		t.Errorf("first option = %+v", opts[0])
	}
	if opts[3].PDFFamily != "sys_NotoSansCJK_Regular" || opts[3].Label != "思源黑体 (NotoSansCJK-Regular.otf)" {
		t.Errorf("noto option = %+v", opts[3])
	}

	c.All = true
	opts, err = c.ListFonts(context.Background())
	if err != nil {
		t.Fatalf("ListFonts(all) error = %v", err)
	}
	if !strings.Contains(keys(opts), "arial.ttf") {
		t.Errorf("All should list non-CJK fonts, got %s", keys(opts))
	}
}

func TestDirCatalog_ListFontsLimitAndDirs(t *testing.T) {
	var names []string
	for i := range MaxFonts + 10 {
		names = append(names, fmt.Sprintf("cjk-%03d.ttf", i))
	}
	first := fontDir(t, names...)
	second := fontDir(t, "simsun.ttf", "cjk-000.ttf")

	c := &DirCatalog{Dirs: []string{"/does/not/exist", first, second}}
	opts, err := c.ListFonts(context.Background())
	if err != nil {
		t.Fatalf("ListFonts() error = %v", err)
	}
	if len(opts) != MaxFonts {
		t.Errorf("ListFonts() = %d entries, want %d", len(opts), MaxFonts)
	}
	if opts[0].Key != "simsun.ttf" {
		t.Errorf("priority font from second directory should be first, got %s", opts[0].Key)
	}
}

func TestDirCatalog_Subdirectories(t *testing.T) {
	root := fontDir(t, "han1.ttf")
	for sub, name := range map[string]string{"noto": "NotoSerifCJK.ttf", "dejavu": "simsun.ttf"} {
		if err := os.Mkdir(filepath.Join(root, sub), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(root, sub, name), goregular.TTF, 0644); err != nil {
			t.Fatal(err)
		}
	}
	// two levels down is out of reach
	deep := filepath.Join(root, "noto", "deep")
	if err := os.Mkdir(deep, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(deep, "simhei.ttf"), goregular.TTF, 0644); err != nil {
		t.Fatal(err)
	}

	c := &DirCatalog{Dirs: []string{root}, Log: zaptest.NewLogger(t)}
	opts, err := c.ListFonts(context.Background())
	if err != nil {
		t.Fatalf("ListFonts() error = %v", err)
	}
	if got, want := keys(opts), "simsun.ttf,NotoSerifCJK.ttf,han1.ttf"; got != want {
		t.Errorf("ListFonts() = %s, want %s", got, want)
	}

	for _, o := range opts {
		if _, err := c.FontBytes(context.Background(), o.FileName); err != nil {
			t.Errorf("FontBytes(%s) error = %v", o.FileName, err)
		}
	}
	if _, err := c.FontBytes(context.Background(), "simhei.ttf"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("FontBytes(simhei.ttf) error = %v, want not exist", err)
	}
}

func TestDirCatalog_NoFonts(t *testing.T) {
	c := &DirCatalog{Dirs: []string{fontDir(t, "arial.ttf")}}
	if _, err := c.ListFonts(context.Background()); !errors.Is(err, ErrNoFonts) {
		t.Errorf("ListFonts() error = %v, want ErrNoFonts", err)
	}
}

func TestDirCatalog_FontBytes(t *testing.T) {
	dir := fontDir(t, "simsun.ttf")
	if err := os.WriteFile(filepath.Join(dir, "fake.ttf"), []byte("not a font at all"), 0644); err != nil {
		t.Fatal(err)
	}
	c := &DirCatalog{Dirs: []string{dir}}
	ctx := context.Background()

	data, err := c.FontBytes(ctx, "simsun.ttf")
	if err != nil {
		t.Fatalf("FontBytes() error = %v", err)
	}
	if len(data) != len(goregular.TTF) {
		t.Errorf("FontBytes() = %d bytes, want %d", len(data), len(goregular.TTF))
	}

	// memoized: removing file does not matter anymore
	if err := os.Remove(filepath.Join(dir, "simsun.ttf")); err != nil {
		t.Fatal(err)
	}
	if _, err := c.FontBytes(ctx, "simsun.ttf"); err != nil {
		t.Errorf("memoized FontBytes() error = %v", err)
	}

	tests := []struct {
		name string
		file string
		want error
	}{
		{"empty", " ", ErrUnsafeName},
		{"slash", "a/b.ttf", ErrUnsafeName},
		{"backslash", `a\b.ttf`, ErrUnsafeName},
		{"dots", "..simsun.ttf", ErrUnsafeName},
		{"extension", "simsun.ttc", ErrNotFont},
		{"content", "fake.ttf", ErrNotFont},
		{"missing", "missing.ttf", os.ErrNotExist},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := c.FontBytes(ctx, tt.file); !errors.Is(err, tt.want) {
				t.Errorf("FontBytes(%q) error = %v, want %v", tt.file, err, tt.want)
			}
		})
	}
}

func TestHelpers(t *testing.T) {
	if Priority("SIMSUN.TTF") != 0 || Priority("stkaiti.ttf") != 2 || Priority("other.ttf") != 10 {
		t.Error("Priority() is wrong")
	}
	if PDFFamily("思源 Sans.otf") != "sys____Sans" {
		t.Errorf("PDFFamily() = %s", PDFFamily("思源 Sans.otf"))
	}
	if !IsSafeFileName("ok.ttf") || IsSafeFileName("") {
		t.Error("IsSafeFileName() is wrong")
	}
}
