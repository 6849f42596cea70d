package archive

import (
	"bytes"
	"compress/flate"
	"errors"
	"fmt"
	"io"
	"os"

	fixzip "github.com/hidez8891/zip"

	"msx/epub/zipper"
)

const epubMimetype = "application/epub+zip"

// Entry describes single archived file.
type Entry struct {
	Name   string
	Size   uint64
	Stored bool
	CRC32  uint32
	// Valid is true when recomputed checksum matches the stored one.
	Valid bool
}

// Report is result of archive inspection.
type Report struct {
	Entries  []Entry
	EPUB     bool
	Problems []string
}

// OK reports whether inspection found nothing wrong.
func (r *Report) OK() bool {
	return len(r.Problems) == 0
}

// Inspect reads every entry of archive, recomputes its checksum and, when
// archive looks like an EPUB, checks placement of the mimetype file.
func Inspect(archive string) (*Report, error) {
	arc, err := os.Open(archive)
	if err != nil {
		return nil, err
	}
	defer arc.Close()

	rep := &Report{}
	idx := 0
	err = Walk(archive, "", func(_ string, f *fixzip.File) error {
		e := Entry{
			Name:   f.Name,
			Size:   f.UncompressedSize64,
			Stored: f.Method == fixzip.Store,
			CRC32:  f.CRC32,
		}
		data, err := entryData(arc, f)
		if err != nil {
			rep.Problems = append(rep.Problems, fmt.Sprintf("%s: %v", f.Name, err))
		} else {
			e.Valid = zipper.CRC32(data) == f.CRC32
			if !e.Valid {
				rep.Problems = append(rep.Problems, fmt.Sprintf("%s: checksum mismatch", f.Name))
			}
		}

		if f.Name == "mimetype" && err == nil && bytes.Equal(data, []byte(epubMimetype)) {
			rep.EPUB = true
			if idx != 0 {
				rep.Problems = append(rep.Problems, "mimetype is not the first entry")
			}
			if !e.Stored {
				rep.Problems = append(rep.Problems, "mimetype is compressed")
			}
		}
		rep.Entries = append(rep.Entries, e)
		idx++
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rep, nil
}

// entryData reads entry content without library checksum verification, so
// damaged payload shows up as checksum mismatch rather than read error.
func entryData(arc io.ReaderAt, f *fixzip.File) ([]byte, error) {
	off, err := f.DataOffset()
	if err != nil {
		return nil, err
	}
	raw := io.NewSectionReader(arc, off, int64(f.CompressedSize64))

	switch f.Method {
	case fixzip.Store:
		return io.ReadAll(raw)
	case fixzip.Deflate:
		rc := flate.NewReader(raw)
		defer rc.Close()
		return io.ReadAll(rc)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if errors.Is(err, fixzip.ErrChecksum) {
		return data, nil
	}
	return data, err
}
