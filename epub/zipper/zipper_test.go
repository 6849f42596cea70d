package zipper

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"io"
	"strings"
	"testing"
)

func TestCRC32(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want uint32
	}{
		{"empty", nil, 0},
		{"check value", []byte("123456789"), 0xCBF43926},
		{"mimetype", []byte("application/epub+zip"), crc32.ChecksumIEEE([]byte("application/epub+zip"))},
		{"utf8", []byte("第一章 开端"), crc32.ChecksumIEEE([]byte("第一章 开端"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CRC32(tt.data); got != tt.want {
				t.Errorf("CRC32() = %08x, want %08x", got, tt.want)
			}
		})
	}
}

func sampleEntries() []Entry {
	return []Entry{
		{Name: "mimetype", Data: []byte("application/epub+zip")},
		{Name: "META-INF/container.xml", Data: []byte("<container/>")},
		{Name: "OEBPS/chapter-001.xhtml", Data: []byte("<html>第一章</html>")},
		{Name: "OEBPS/empty.txt", Data: nil},
	}
}

func TestBuild_ReadableByStdlib(t *testing.T) {
	entries := sampleEntries()
	data, err := Build(entries)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("zip.NewReader() error = %v", err)
	}
	if len(zr.File) != len(entries) {
		t.Fatalf("entries = %d, want %d", len(zr.File), len(entries))
	}
	for i, f := range zr.File {
		if f.Name != entries[i].Name {
			t.Errorf("entry %d name = %q, want %q", i, f.Name, entries[i].Name)
		}
		if f.Method != zip.Store {
			t.Errorf("entry %s method = %d, want stored", f.Name, f.Method)
		}
		if f.CRC32 != crc32.ChecksumIEEE(entries[i].Data) {
			t.Errorf("entry %s crc = %08x", f.Name, f.CRC32)
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("Open(%s) error = %v", f.Name, err)
		}
		got, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("ReadAll(%s) error = %v", f.Name, err)
		}
		if !bytes.Equal(got, entries[i].Data) {
			t.Errorf("entry %s content mismatch", f.Name)
		}
	}
}

func TestBuild_Structure(t *testing.T) {
	entries := sampleEntries()
	data, err := Build(entries)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	le := binary.LittleEndian

	eocd := data[len(data)-endOfCentralLen:]
	if le.Uint32(eocd) != sigEndOfCentral {
		t.Fatal("archive does not end with end of central directory record")
	}
	if n := le.Uint16(eocd[8:]); int(n) != len(entries) {
		t.Errorf("entries on disk = %d, want %d", n, len(entries))
	}
	if n := le.Uint16(eocd[10:]); int(n) != len(entries) {
		t.Errorf("total entries = %d, want %d", n, len(entries))
	}
	if n := le.Uint16(eocd[20:]); n != 0 {
		t.Errorf("comment length = %d, want 0", n)
	}
	cdLen := int(le.Uint32(eocd[12:]))
	cdStart := int(le.Uint32(eocd[16:]))
	if cdStart+cdLen != len(data)-endOfCentralLen {
		t.Errorf("central directory [%d,+%d) does not end at EOCD %d", cdStart, cdLen, len(data)-endOfCentralLen)
	}

	if got := bytes.Count(data[:cdStart], []byte{0x50, 0x4b, 0x03, 0x04}); got != len(entries) {
		t.Errorf("local header signatures = %d, want %d", got, len(entries))
	}

	pos := cdStart
	for i := range entries {
		cd := data[pos:]
		if le.Uint32(cd) != sigCentralHeader {
			t.Fatalf("entry %d: bad central header signature", i)
		}
		crc := le.Uint32(cd[16:])
		nameLen := int(le.Uint16(cd[28:]))
		offset := int(le.Uint32(cd[42:]))

		lh := data[offset:]
		if le.Uint32(lh) != sigLocalHeader {
			t.Fatalf("entry %d: offset %d does not point to local header", i, offset)
		}
		if le.Uint16(lh[4:]) != versionNeeded || le.Uint16(lh[6:]) != 0 || le.Uint16(lh[8:]) != methodStore {
			t.Errorf("entry %d: unexpected version/flags/method", i)
		}
		if le.Uint16(lh[12:]) != dosDate || le.Uint16(lh[10:]) != dosTime {
			t.Errorf("entry %d: unexpected timestamp", i)
		}
		if le.Uint32(lh[14:]) != crc {
			t.Errorf("entry %d: local crc %08x != central crc %08x", i, le.Uint32(lh[14:]), crc)
		}
		if crc != crc32.ChecksumIEEE(entries[i].Data) {
			t.Errorf("entry %d: stored crc %08x is wrong", i, crc)
		}
		if le.Uint32(lh[18:]) != le.Uint32(lh[22:]) {
			t.Errorf("entry %d: compressed size differs from size", i)
		}
		if name := string(lh[localHeaderLen : localHeaderLen+nameLen]); name != entries[i].Name {
			t.Errorf("entry %d: local name %q, want %q", i, name, entries[i].Name)
		}
		pos += centralHeaderLen + nameLen
	}
}

func TestBuild_FirstEntryIsMimetype(t *testing.T) {
	data, err := Build(sampleEntries())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	// readers sniff "mimetypeapplication/epub+zip" at fixed offset
	if got := string(data[localHeaderLen : localHeaderLen+len("mimetypeapplication/epub+zip")]); got != "mimetypeapplication/epub+zip" {
		t.Errorf("unexpected bytes at offset 30: %q", got)
	}
}

func TestBuild_Empty(t *testing.T) {
	data, err := Build(nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(data) != endOfCentralLen {
		t.Errorf("empty archive length = %d, want %d", len(data), endOfCentralLen)
	}
	if _, err := zip.NewReader(bytes.NewReader(data), int64(len(data))); err != nil {
		t.Errorf("empty archive is not readable: %v", err)
	}
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name    string
		entries []Entry
		want    error
	}{
		{"empty name", []Entry{{Name: "", Data: []byte("x")}}, ErrEmptyName},
		{"long name", []Entry{{Name: strings.Repeat("a", 1<<16), Data: nil}}, ErrNameTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Build(tt.entries)
			if !errors.Is(err, tt.want) {
				t.Errorf("Build() error = %v, want %v", err, tt.want)
			}
			if data != nil {
				t.Error("Build() returned partial data on error")
			}
		})
	}
}

func TestArchive(t *testing.T) {
	var a Archive
	for _, e := range sampleEntries() {
		a.Add(e.Name, e.Data)
	}
	if a.Len() != 4 {
		t.Errorf("Len() = %d, want 4", a.Len())
	}
	names := a.Names()
	for i, e := range sampleEntries() {
		if names[i] != e.Name {
			t.Errorf("Names()[%d] = %s, want %s", i, names[i], e.Name)
		}
	}
	got, err := a.Bytes()
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}
	want, _ := Build(sampleEntries())
	if !bytes.Equal(got, want) {
		t.Error("Archive.Bytes() differs from Build()")
	}
}
