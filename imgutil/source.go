// Package imgutil loads image payloads referenced by manuscript records and
// prepares them for embedding into output documents.
package imgutil

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrEmptySource = errors.New("empty image source")
	ErrRemote      = errors.New("remote images are not supported")
	ErrBadSource   = errors.New("image source is neither data URL, file nor base64")
)

// maxFileSize limits images read from disk.
const maxFileSize = 64 << 20

// ReadSource resolves image reference: data URL, http(s) URL, file path
// (relative to baseDir) or bare base64 payload. It returns raw bytes and
// media type declared by data URL, if any.
func ReadSource(src, baseDir string) ([]byte, string, error) {
	src = strings.TrimSpace(src)
	if len(src) == 0 {
		return nil, "", ErrEmptySource
	}

	lower := strings.ToLower(src)
	switch {
	case strings.HasPrefix(lower, "data:"):
		return decodeDataURL(src)
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return nil, "", fmt.Errorf("%w: %s", ErrRemote, src)
	case strings.HasPrefix(lower, "file://"):
		u, err := url.Parse(src)
		if err != nil {
			return nil, "", fmt.Errorf("bad file URL: %w", err)
		}
		return readFile(u.Path)
	}

	data, mt, fileErr := readFile(resolve(src, baseDir))
	if fileErr == nil {
		return data, mt, nil
	}
	if data, err := decodeBase64(src); err == nil && len(data) > 0 {
		return data, "", nil
	}
	if errors.Is(fileErr, os.ErrNotExist) {
		return nil, "", ErrBadSource
	}
	return nil, "", fileErr
}

func resolve(path, baseDir string) string {
	if filepath.IsAbs(path) || len(baseDir) == 0 {
		return path
	}
	return filepath.Join(baseDir, path)
}

func readFile(path string) ([]byte, string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, "", err
	}
	if !info.Mode().IsRegular() {
		return nil, "", fmt.Errorf("%w: not a regular file %s", os.ErrInvalid, path)
	}
	if info.Size() > maxFileSize {
		return nil, "", fmt.Errorf("image file is too large (%d bytes): %s", info.Size(), path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	return data, "", nil
}

// decodeDataURL handles "data:[<mediatype>][;base64],<data>".
func decodeDataURL(src string) ([]byte, string, error) {
	header, payload, ok := strings.Cut(src[len("data:"):], ",")
	if !ok {
		return nil, "", fmt.Errorf("malformed data URL: missing comma")
	}

	params := strings.Split(header, ";")
	mediaType := strings.ToLower(strings.TrimSpace(params[0]))
	isBase64 := false
	for _, p := range params[1:] {
		if strings.EqualFold(strings.TrimSpace(p), "base64") {
			isBase64 = true
		}
	}

	if isBase64 {
		data, err := decodeBase64(payload)
		if err != nil {
			return nil, "", fmt.Errorf("malformed data URL payload: %w", err)
		}
		return data, mediaType, nil
	}
	data, err := url.PathUnescape(payload)
	if err != nil {
		return nil, "", fmt.Errorf("malformed data URL payload: %w", err)
	}
	return []byte(data), mediaType, nil
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\n':
			return -1
		}
		return r
	}, s)

	var lastErr error
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		data, err := enc.DecodeString(s)
		if err == nil {
			return data, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
