package config

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	yaml "gopkg.in/yaml.v3"

	"msx/misc"
)

type ReporterConfig struct {
	Destination string `yaml:"destination" sanitize:"path_clean,assure_dir_exists_for_file" validate:"required,filepath"`
}

// Prepare creates initialized empty reporter.
func (conf *ReporterConfig) Prepare() (*Report, error) {
	r := &Report{names: make(map[string]int)}

	if f, err := os.Create(conf.Destination); err == nil {
		r.file = f
	} else if f, err = os.CreateTemp("", misc.GetAppName()+"-report.*.zip"); err == nil {
		r.file = f
	} else {
		return nil, fmt.Errorf("unable to create report: %w", err)
	}
	return r, nil
}

type entry struct {
	name   string
	source string // file read when report is closed, empty for data
	data   []byte
	stamp  time.Time
}

// Report collects everything needed to reproduce single export: manuscript
// input, model diagnostics, warnings, logs and produced artifact. Entries are
// archived in order of addition. Nil report ignores all calls.
type Report struct {
	file    *os.File
	entries []entry
	names   map[string]int

	mu       sync.Mutex
	warnings bytes.Buffer
}

// add registers entry, name collisions are resolved by numbering.
func (r *Report) add(e entry) string {
	if n := r.names[e.name]; n > 0 {
		r.names[e.name] = n + 1
		ext := path.Ext(e.name)
		e.name = fmt.Sprintf("%s-%d%s", strings.TrimSuffix(e.name, ext), n+1, ext)
	} else {
		r.names[e.name] = 1
	}
	if e.stamp.IsZero() {
		e.stamp = time.Now()
	}
	r.entries = append(r.entries, e)
	return e.name
}

// Close finalizes debug report.
func (r *Report) Close() error {
	if r == nil || r.file == nil {
		return nil
	}
	defer r.file.Close()
	return r.finalize()
}

// Name returns name of underlying file.
func (r *Report) Name() string {
	if r == nil || r.file == nil {
		return ""
	}
	if n, err := filepath.Abs(r.file.Name()); err == nil {
		return n
	}
	return r.file.Name()
}

// Store references file which is read when report is closed. Used for logs
// and produced artifacts.
func (r *Report) Store(name, file string) {
	if r == nil {
		return
	}
	if p, err := filepath.Abs(file); err == nil {
		file = p
	}
	r.add(entry{name: name, source: file})
}

// StoreData puts data into report under requested name.
func (r *Report) StoreData(name string, data []byte) {
	if r == nil {
		return
	}
	r.add(entry{name: name, data: data})
}

// StoreCopy reads file now, so report keeps input exactly as export saw it
// even if it changes later.
func (r *Report) StoreCopy(name, file string) error {
	if r == nil {
		return nil
	}
	info, err := os.Stat(file)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("not a regular file: %s", file)
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	r.add(entry{name: name, data: data, stamp: info.ModTime()})
	return nil
}

// StoreYAML puts YAML rendition of v into report.
func (r *Report) StoreYAML(name string, v any) error {
	if r == nil {
		return nil
	}
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("unable to marshal %s for report: %w", name, err)
	}
	r.add(entry{name: name, data: data})
	return nil
}

// Write collects warnings logged while report is active.
func (r *Report) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.warnings.Write(p)
}

func (r *Report) Sync() error {
	return nil
}

// finalize writes manifest followed by all entries.
func (r *Report) finalize() error {
	arc := zip.NewWriter(r.file)

	r.mu.Lock()
	if r.warnings.Len() > 0 {
		r.add(entry{name: "warnings.json", data: bytes.Clone(r.warnings.Bytes())})
	}
	r.mu.Unlock()

	if err := saveFile(arc, "MANIFEST", time.Now(), bytes.NewReader(r.manifest())); err != nil {
		return err
	}
	for _, e := range r.entries {
		if len(e.source) == 0 {
			if err := saveFile(arc, e.name, e.stamp, bytes.NewReader(e.data)); err != nil {
				return err
			}
			continue
		}
		if err := saveSource(arc, e.name, e.source); err != nil {
			return err
		}
	}
	return arc.Close()
}

// manifest lists entries with their size and origin.
func (r *Report) manifest() []byte {
	var buf bytes.Buffer
	for _, e := range r.entries {
		size, origin := int64(len(e.data)), "data"
		if len(e.source) > 0 {
			origin = e.source
			if info, err := os.Stat(e.source); err == nil {
				size = info.Size()
			} else {
				size, origin = -1, e.source+" (absent)"
			}
		}
		fmt.Fprintf(&buf, "%s\t%s\t%d\t%s\n", e.stamp.UTC().Format(time.RFC3339), e.name, size, origin)
	}
	return buf.Bytes()
}

// saveSource archives referenced file, absent files are skipped.
func saveSource(dst *zip.Writer, name, file string) error {
	info, err := os.Stat(file)
	if err != nil || !info.Mode().IsRegular() {
		return nil
	}
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()
	return saveFile(dst, name, info.ModTime(), f)
}

func saveFile(dst *zip.Writer, name string, t time.Time, src io.Reader) error {
	w, err := dst.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate, Modified: t})
	if err != nil {
		return err
	}
	_, err = io.Copy(w, src)
	return err
}
