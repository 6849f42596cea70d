package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/rupor-github/gencfg"

	"msx/common"
)

func TestLoadConfiguration_NoFile(t *testing.T) {
	cfg, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() with empty path error = %v", err)
	}
	if cfg == nil {
		t.Fatal("LoadConfiguration() returned nil config")
	}
	if cfg.Version != 1 {
		t.Errorf("Default config version = %d, want 1", cfg.Version)
	}
	if cfg.Export.Format != common.OutputFmtPdf {
		t.Errorf("Default format = %s, want pdf", cfg.Export.Format)
	}
	if !cfg.Export.Content.NovelCover || !cfg.Export.Content.ChapterCover || !cfg.Export.Content.Illustrations {
		t.Errorf("All content toggles should default to true, got %+v", cfg.Export.Content)
	}
	if cfg.Export.PDF.FontSize != 12 || cfg.Export.PDF.LineHeight != 20 {
		t.Errorf("PDF metrics = %v/%v, want 12/20", cfg.Export.PDF.FontSize, cfg.Export.PDF.LineHeight)
	}
}

func TestLoadConfiguration_WithFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `version: 1
export:
  format: epub
  output_name_template: '{{ .Title }}-{{ .Author }}'
  content:
    novel_cover: false
    chapter_cover: true
    illustrations: false
  exclude_illustrations: ["img-1", "img-2"]
  pdf:
    fonts:
      dir: /opt/fonts
      extra_dirs: ["/usr/local/share/fonts"]
      font: simsun.ttc
    font_size: 11
    line_height: 18
  images:
    jpeg_quality: 75
logging:
  console:
    level: normal
  file:
    level: debug
    destination: ` + filepath.Join(tmpDir, "test.log") + `
    mode: append
reporting:
  destination: ` + filepath.Join(tmpDir, "test-report.zip") + `
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := LoadConfiguration(configPath)
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}

	if cfg.Export.Format != common.OutputFmtEpub {
		t.Errorf("Format = %s, want epub", cfg.Export.Format)
	}
	if cfg.Export.OutputNameTemplate != "{{ .Title }}-{{ .Author }}" {
		t.Errorf("OutputNameTemplate = %q, template must not be expanded on load", cfg.Export.OutputNameTemplate)
	}
	if cfg.Export.Content.NovelCover || cfg.Export.Content.Illustrations || !cfg.Export.Content.ChapterCover {
		t.Errorf("Content = %+v", cfg.Export.Content)
	}
	if len(cfg.Export.ExcludeIllustrations) != 2 {
		t.Errorf("ExcludeIllustrations length = %d, want 2", len(cfg.Export.ExcludeIllustrations))
	}
	if cfg.Export.Images.JPEGQuality != 75 {
		t.Errorf("JPEGQuality = %d, want 75", cfg.Export.Images.JPEGQuality)
	}
	dirs := cfg.Export.PDF.Fonts.FontDirs()
	if len(dirs) != 2 || dirs[0] != "/opt/fonts" {
		t.Errorf("FontDirs() = %v", dirs)
	}
	if cfg.Logging.FileLogger.Mode != "append" {
		t.Errorf("Logging mode = %q, want append", cfg.Logging.FileLogger.Mode)
	}
}

func TestLoadConfiguration_NonExistentFile(t *testing.T) {
	if _, err := LoadConfiguration("/nonexistent/config.yaml"); err == nil {
		t.Error("Expected error for nonexistent file")
	}
}

func TestLoadConfiguration_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"invalid yaml", "version: 1\nexport:\n  format: pdf\n  invalid indent\n"},
		{"unknown field", "version: 1\nunknown_field: value\n"},
		{"bad version", "version: 2\n"},
		{"bad format", "version: 1\nexport:\n  format: docx\n"},
		{"jpeg quality out of range", "version: 1\nexport:\n  images:\n    jpeg_quality: 10\n"},
		{"line height below font size", "version: 1\nexport:\n  pdf:\n    font_size: 14\n    line_height: 10\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("Failed to write config file: %v", err)
			}
			if _, err := LoadConfiguration(path); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}

func TestLoadConfiguration_WithOptions(t *testing.T) {
	option := func(opts *gencfg.ProcessingOptions) {}

	cfg, err := LoadConfiguration("", option)
	if err != nil {
		t.Fatalf("LoadConfiguration() with options error = %v", err)
	}
	if cfg == nil {
		t.Fatal("LoadConfiguration() returned nil config")
	}
}

func TestPrepare(t *testing.T) {
	data, err := Prepare()
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if len(data) == 0 {
		t.Fatal("Prepare() returned empty data")
	}
	if strings.Contains(string(data), "{{ if") {
		t.Error("Prepare() left font directory template unexpanded")
	}
	if _, err = unmarshalConfig(data, &Config{}, true); err != nil {
		t.Errorf("Prepared config is not valid: %v", err)
	}
}

func TestDump(t *testing.T) {
	cfg := &Config{
		Version: 1,
		Export: ExportConfig{
			Format: common.OutputFmtTxt,
			PDF:    PDFConfig{FontSize: 12, LineHeight: 20},
			Images: ImagesConfig{JPEGQuality: 80},
		},
	}

	data, err := Dump(cfg)
	if err != nil {
		t.Fatalf("Dump() error = %v", err)
	}
	if !strings.Contains(string(data), "format: txt") {
		t.Errorf("Dump() should serialize format by name:\n%s", data)
	}

	cfg2 := &Config{}
	if _, err = unmarshalConfig(data, cfg2, false); err != nil {
		t.Fatalf("Dumped config cannot be loaded: %v", err)
	}
	if cfg2.Export.Format != cfg.Export.Format {
		t.Errorf("Format mismatch after dump/load: got %s, want %s", cfg2.Export.Format, cfg.Export.Format)
	}
}

func TestFontDirs(t *testing.T) {
	tests := []struct {
		name string
		cfg  FontsConfig
		want int
	}{
		{"empty", FontsConfig{}, 0},
		{"main only", FontsConfig{Dir: "/a"}, 1},
		{"extra only", FontsConfig{ExtraDirs: []string{"/b", "/c"}}, 2},
		{"both", FontsConfig{Dir: "/a", ExtraDirs: []string{"/b"}}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.FontDirs(); len(got) != tt.want {
				t.Errorf("FontDirs() = %v, want %d entries", got, tt.want)
			}
		})
	}
}

func TestCleanFileName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"only dots", "...", "_bad_file_name_"},
		{"separator", "a" + string(os.PathSeparator) + "b", "ab"},
		{"hidden", ".novel.epub", "novel.epub"},
		{"trailing", "novel. . ", "novel"},
		{"control", "no\x00vel\t.pdf", "novel.pdf"},
		{"plain", "Moby Dick.epub", "Moby Dick.epub"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanFileName(tt.in); got != tt.want {
				t.Errorf("CleanFileName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCleanFileName_Long(t *testing.T) {
	got := CleanFileName(strings.Repeat("ж", 300) + ".epub")
	if len(got) > maxNameBytes {
		t.Errorf("len = %d, want <= %d", len(got), maxNameBytes)
	}
	if !strings.HasSuffix(got, ".epub") || !utf8.ValidString(got) {
		t.Errorf("CleanFileName() = %q, want valid name with extension", got)
	}
}
