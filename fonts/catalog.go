// Package fonts discovers font files usable for paginated output.
package fonts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/h2non/filetype"
	"github.com/maruel/natural"
	"go.uber.org/zap"
)

// MaxFonts limits number of fonts returned by catalog.
const MaxFonts = 80

var (
	ErrNoFonts    = errors.New("no usable CJK font found")
	ErrUnsafeName = errors.New("font file name is not acceptable")
	ErrNotFont    = errors.New("only TTF/OTF fonts are supported")
)

// Option describes single available font.
type Option struct {
	Key       string `json:"key"`
	Label     string `json:"label"`
	FileName  string `json:"fileName"`
	PDFFamily string `json:"pdfFamily"`
}

var cjkKeywords = []string{
	"simsun", "simhei", "simkai", "simfang", "msyh", "deng", "kaiti", "fangsong",
	"stsong", "stkaiti", "noto", "sourcehan", "source han", "cjk", "han",
}

func isFontExt(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".ttf", ".otf":
		return true
	}
	return false
}

// IsCJKCandidate checks font file name for well known CJK family names.
func IsCJKCandidate(name string) bool {
	lower := strings.ToLower(name)
	for _, k := range cjkKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// Priority orders fonts, lower is better.
func Priority(name string) int {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "simsun"):
		return 0
	case strings.Contains(lower, "simhei"):
		return 1
	case strings.Contains(lower, "simkai"), strings.Contains(lower, "stkaiti"):
		return 2
	case strings.Contains(lower, "msyh"):
		return 3
	case strings.Contains(lower, "deng"):
		return 4
	case strings.Contains(lower, "noto"):
		return 5
	}
	return 10
}

func displayName(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "simsun"), strings.Contains(lower, "stsong"):
		return "宋体"
	case strings.Contains(lower, "simhei"):
		return "黑体"
	case strings.Contains(lower, "simkai"), strings.Contains(lower, "stkaiti"):
		return "楷体"
	case strings.Contains(lower, "msyh"):
		return "微软雅黑"
	case strings.Contains(lower, "deng"):
		return "等线"
	case strings.Contains(lower, "noto") && strings.Contains(lower, "serif"):
		return "思源宋体"
	case strings.Contains(lower, "noto"):
		return "思源黑体"
	case IsCJKCandidate(name):
		return "中文字体"
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// PDFFamily derives font resource name safe for PDF from file name.
func PDFFamily(name string) string {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	if len(stem) == 0 {
		stem = "font"
	}
	return "sys_" + strings.Map(func(r rune) rune {
		if r < 0x80 && (('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9')) {
			return r
		}
		return '_'
	}, stem)
}

// IsSafeFileName rejects names which could escape font directory.
func IsSafeFileName(name string) bool {
	return len(strings.TrimSpace(name)) > 0 &&
		!strings.ContainsAny(name, `/\`) &&
		!strings.Contains(name, "..")
}

// DirCatalog lists fonts from set of directories and their immediate
// subdirectories, where Linux font packages usually put files. Deeper levels
// are not scanned. Loaded font programs are kept in memory.
type DirCatalog struct {
	Dirs []string
	// All lists every TTF/OTF font instead of CJK candidates only.
	All bool
	Log *zap.Logger

	mu    sync.Mutex
	cache map[string][]byte
}

func (c *DirCatalog) log() *zap.Logger {
	if c.Log == nil {
		return zap.NewNop()
	}
	return c.Log
}

// ListFonts returns available fonts best first.
func (c *DirCatalog) ListFonts(ctx context.Context) ([]Option, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type found struct {
		priority int
		opt      Option
	}
	var (
		list []found
		seen = make(map[string]struct{})
	)
	for _, dir := range c.Dirs {
		for _, path := range c.scan(dir) {
			name := filepath.Base(path)
			if !c.All && !IsCJKCandidate(name) {
				continue
			}
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			list = append(list, found{
				priority: Priority(name),
				opt: Option{
					Key:       name,
					Label:     fmt.Sprintf("%s (%s)", displayName(name), name),
					FileName:  name,
					PDFFamily: PDFFamily(name),
				},
			})
		}
	}

	slices.SortStableFunc(list, func(a, b found) int {
		if a.priority != b.priority {
			return a.priority - b.priority
		}
		switch {
		case natural.Less(a.opt.FileName, b.opt.FileName):
			return -1
		case natural.Less(b.opt.FileName, a.opt.FileName):
			return 1
		}
		return 0
	})
	if len(list) == 0 {
		return nil, ErrNoFonts
	}

	res := make([]Option, 0, min(len(list), MaxFonts))
	for _, f := range list[:min(len(list), MaxFonts)] {
		res = append(res, f.opt)
	}
	return res, nil
}

// FontBytes returns font program by file name as listed by ListFonts.
func (c *DirCatalog) FontBytes(ctx context.Context, fileName string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !IsSafeFileName(fileName) {
		return nil, fmt.Errorf("%w: %q", ErrUnsafeName, fileName)
	}
	if !isFontExt(fileName) {
		return nil, fmt.Errorf("%w: %s", ErrNotFont, fileName)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if data, ok := c.cache[fileName]; ok {
		return data, nil
	}

	for _, path := range c.locate(fileName) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("unable to read font file: %w", err)
		}
		if !filetype.Is(data, "ttf") && !filetype.Is(data, "otf") {
			return nil, fmt.Errorf("%w: %s has unexpected content", ErrNotFont, fileName)
		}
		if c.cache == nil {
			c.cache = make(map[string][]byte)
		}
		c.cache[fileName] = data
		c.log().Debug("Font loaded", zap.String("file", path), zap.Int("size", len(data)))
		return data, nil
	}
	return nil, fmt.Errorf("font file does not exist: %s: %w", fileName, os.ErrNotExist)
}

// scan returns font files of dir followed by font files of its immediate
// subdirectories.
func (c *DirCatalog) scan(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		c.log().Debug("Unable to read font directory", zap.String("dir", dir), zap.Error(err))
		return nil
	}
	var files, subs []string
	for _, e := range entries {
		switch {
		case e.IsDir():
			subs = append(subs, filepath.Join(dir, e.Name()))
		case e.Type().IsRegular() && isFontExt(e.Name()):
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	for _, sub := range subs {
		entries, err := os.ReadDir(sub)
		if err != nil {
			c.log().Debug("Unable to read font directory", zap.String("dir", sub), zap.Error(err))
			continue
		}
		for _, e := range entries {
			if e.Type().IsRegular() && isFontExt(e.Name()) {
				files = append(files, filepath.Join(sub, e.Name()))
			}
		}
	}
	return files
}

// locate returns paths with requested file name in the order ListFonts sees
// them, so the listed font is the one loaded.
func (c *DirCatalog) locate(fileName string) []string {
	var res []string
	for _, dir := range c.Dirs {
		for _, path := range c.scan(dir) {
			if filepath.Base(path) == fileName {
				res = append(res, path)
			}
		}
	}
	return res
}
