package config

import (
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// maxNameBytes keeps artifact names below common file system limits.
const maxNameBytes = 240

// CleanFileName turns export artifact name into something safe to create in
// destination directory: no separators or characters the platform rejects, no
// leading dots, no trailing dots or spaces, no reserved device names. Long
// names are cut on rune boundary keeping extension.
func CleanFileName(in string) string {
	out := strings.Map(func(sym rune) rune {
		if sym < 0x20 || strings.ContainsRune(forbiddenNameChars, sym) {
			return -1
		}
		return sym
	}, in)
	out = strings.TrimRight(strings.TrimLeft(out, ". "), ". ")
	if len(out) == 0 {
		return "_bad_file_name_"
	}

	ext := filepath.Ext(out)
	stem := strings.TrimSuffix(out, ext)
	if isReservedName(stem) {
		stem = "_" + stem
	}
	if len(ext) >= maxNameBytes {
		ext = ""
	}
	for len(stem)+len(ext) > maxNameBytes {
		_, size := utf8.DecodeLastRuneInString(stem)
		stem = stem[:len(stem)-size]
	}
	return stem + ext
}

func isReservedName(stem string) bool {
	for _, r := range reservedNames {
		if strings.EqualFold(stem, r) {
			return true
		}
	}
	return false
}
