package config

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func readReport(t *testing.T, name string) (map[string]string, []string) {
	t.Helper()

	zr, err := zip.OpenReader(name)
	if err != nil {
		t.Fatalf("report is not a zip: %v", err)
	}
	defer zr.Close()

	got := make(map[string]string)
	var order []string
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		data, _ := io.ReadAll(rc)
		rc.Close()
		got[f.Name] = string(data)
		order = append(order, f.Name)
	}
	return got, order
}

func TestReportClose_WritesEntries(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "report.zip")

	r, err := (&ReporterConfig{Destination: dest}).Prepare()
	if err != nil {
		t.Fatalf("Prepare() error: %v", err)
	}

	src := filepath.Join(dir, "novel.json")
	if err := os.WriteFile(src, []byte(`{"title":"t"}`), 0644); err != nil {
		t.Fatalf("failed to write source: %v", err)
	}
	if err := r.StoreCopy("input/novel.json", src); err != nil {
		t.Fatalf("StoreCopy() error: %v", err)
	}
	r.Store("result/novel.epub", src)
	r.StoreData("config/msx.yaml", []byte("document: {}"))
	if err := r.StoreYAML("diagnostics/dropped.yaml", []map[string]any{{"field": "illustrations", "pos": 2}}); err != nil {
		t.Fatalf("StoreYAML() error: %v", err)
	}

	// copy is taken at call time, reference is read on close
	if err := os.WriteFile(src, []byte(`{"title":"changed"}`), 0644); err != nil {
		t.Fatalf("failed to rewrite source: %v", err)
	}

	if r.Name() == "" {
		t.Error("Name() should not be empty")
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	got, order := readReport(t, dest)

	want := []string{"MANIFEST", "input/novel.json", "result/novel.epub", "config/msx.yaml", "diagnostics/dropped.yaml"}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Errorf("entries = %v, want %v", order, want)
	}
	if got["input/novel.json"] != `{"title":"t"}` {
		t.Errorf("input/novel.json = %q", got["input/novel.json"])
	}
	if got["result/novel.epub"] != `{"title":"changed"}` {
		t.Errorf("result/novel.epub = %q", got["result/novel.epub"])
	}
	if !strings.Contains(got["diagnostics/dropped.yaml"], "field: illustrations") {
		t.Errorf("diagnostics/dropped.yaml = %q", got["diagnostics/dropped.yaml"])
	}
	for _, name := range want[1:] {
		if !strings.Contains(got["MANIFEST"], "\t"+name+"\t") {
			t.Errorf("MANIFEST does not list %s:\n%s", name, got["MANIFEST"])
		}
	}
}

func TestReportStore_NameCollision(t *testing.T) {
	r := &Report{names: make(map[string]int)}
	r.StoreData("input/a.json", []byte("1"))
	r.StoreData("input/a.json", []byte("2"))
	r.StoreData("input/a.json", []byte("3"))

	want := []string{"input/a.json", "input/a-2.json", "input/a-3.json"}
	for i, e := range r.entries {
		if e.name != want[i] {
			t.Errorf("entry %d = %q, want %q", i, e.name, want[i])
		}
	}
}

func TestReportStoreCopy_Errors(t *testing.T) {
	r := &Report{names: make(map[string]int)}
	if err := r.StoreCopy("input/x", filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
	if err := r.StoreCopy("input/x", t.TempDir()); err == nil {
		t.Error("expected error for directory")
	}
	if len(r.entries) != 0 {
		t.Errorf("entries = %d, want 0", len(r.entries))
	}
}

func TestReportClose_AbsentReference(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "report.zip")
	r, err := (&ReporterConfig{Destination: dest}).Prepare()
	if err != nil {
		t.Fatalf("Prepare() error: %v", err)
	}
	r.Store("result/gone.pdf", filepath.Join(t.TempDir(), "gone.pdf"))
	if err := r.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	got, _ := readReport(t, dest)
	if _, ok := got["result/gone.pdf"]; ok {
		t.Error("absent file should not be archived")
	}
	if !strings.Contains(got["MANIFEST"], "(absent)") {
		t.Errorf("MANIFEST should mark absent file:\n%s", got["MANIFEST"])
	}
}

func TestReport_CollectsWarnings(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "report.zip")
	r, err := (&ReporterConfig{Destination: dest}).Prepare()
	if err != nil {
		t.Fatalf("Prepare() error: %v", err)
	}

	conf := LoggingConfig{
		FileLogger:    LoggerConfig{Level: "none", Destination: filepath.Join(dir, "msx.log")},
		ConsoleLogger: LoggerConfig{Level: "none"},
	}
	log, err := conf.Prepare(r)
	if err != nil {
		t.Fatalf("Prepare() error: %v", err)
	}
	log.Info("converting")
	log.Warn("image skipped", zap.String("id", "map"))
	_ = log.Sync()

	if err := r.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	got, _ := readReport(t, dest)
	w := got["warnings.json"]
	if !strings.Contains(w, "image skipped") || !strings.Contains(w, `"id":"map"`) {
		t.Errorf("warnings.json = %q", w)
	}
	if strings.Contains(w, "converting") {
		t.Errorf("warnings.json should not contain info entries: %q", w)
	}
	if !strings.Contains(got["final.log"], "converting") {
		t.Errorf("final.log should contain debug log, got %q", got["final.log"])
	}
}

func TestReportClose_NilReport(t *testing.T) {
	var r *Report
	r.Store("ignored", "/nowhere")
	r.StoreData("ignored", nil)
	if err := r.StoreCopy("ignored", "/nowhere"); err != nil {
		t.Errorf("StoreCopy on nil report should not error, got: %v", err)
	}
	if err := r.StoreYAML("ignored", struct{}{}); err != nil {
		t.Errorf("StoreYAML on nil report should not error, got: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("Close on nil report should not error, got: %v", err)
	}
	if r.Name() != "" {
		t.Errorf("Name on nil report = %q", r.Name())
	}
}

func TestReportClose_NilFile(t *testing.T) {
	r := &Report{names: make(map[string]int)}
	if err := r.Close(); err != nil {
		t.Errorf("Close with nil file should not error, got: %v", err)
	}
}
