// Package zipper serializes a list of in-memory files into a minimal zip
// archive with every entry stored uncompressed.
package zipper

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const (
	sigLocalHeader   = 0x04034b50
	sigCentralHeader = 0x02014b50
	sigEndOfCentral  = 0x06054b50

	localHeaderLen   = 30
	centralHeaderLen = 46
	endOfCentralLen  = 22

	versionNeeded = 20
	methodStore   = 0

	// MS-DOS date for 1980-01-01, time is midnight
	dosDate = 1<<5 | 1
	dosTime = 0
)

var (
	ErrEmptyName     = errors.New("zip entry name is empty")
	ErrNameTooLong   = errors.New("zip entry name is too long")
	ErrEntryTooLarge = errors.New("zip entry is too large")
	ErrTooManyFiles  = errors.New("too many zip entries")
	ErrTooLarge      = errors.New("zip archive is too large")
)

// Entry is a single file to be put into archive.
type Entry struct {
	Name string
	Data []byte
}

// Archive accumulates entries in order and produces archive bytes in one go.
type Archive struct {
	entries []Entry
}

// Add appends file to the archive. Data is not copied.
func (a *Archive) Add(name string, data []byte) {
	a.entries = append(a.entries, Entry{Name: name, Data: data})
}

// Len returns number of entries added so far.
func (a *Archive) Len() int {
	return len(a.entries)
}

// Names returns entry names in archive order.
func (a *Archive) Names() []string {
	names := make([]string, 0, len(a.entries))
	for _, e := range a.entries {
		names = append(names, e.Name)
	}
	return names
}

// Bytes serializes archive. It either succeeds completely or returns no data.
func (a *Archive) Bytes() ([]byte, error) {
	return Build(a.entries)
}

type record struct {
	name   []byte
	crc    uint32
	size   uint32
	offset uint32
}

// Build serializes entries into zip archive preserving their order.
func Build(entries []Entry) ([]byte, error) {
	if len(entries) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: %d", ErrTooManyFiles, len(entries))
	}

	var (
		buf     bytes.Buffer
		records = make([]record, 0, len(entries))
	)

	for _, e := range entries {
		switch {
		case len(e.Name) == 0:
			return nil, ErrEmptyName
		case len(e.Name) > math.MaxUint16:
			return nil, fmt.Errorf("%w: %.32s...", ErrNameTooLong, e.Name)
		case uint64(len(e.Data)) > math.MaxUint32:
			return nil, fmt.Errorf("%w: %s", ErrEntryTooLarge, e.Name)
		}
		if uint64(buf.Len()) > math.MaxUint32 {
			return nil, ErrTooLarge
		}

		r := record{
			name:   []byte(e.Name),
			crc:    CRC32(e.Data),
			size:   uint32(len(e.Data)),
			offset: uint32(buf.Len()),
		}
		writeLocalHeader(&buf, &r)
		buf.Write(r.name)
		buf.Write(e.Data)
		records = append(records, r)
	}

	cdStart := buf.Len()
	for i := range records {
		writeCentralHeader(&buf, &records[i])
		buf.Write(records[i].name)
	}
	cdLen := buf.Len() - cdStart

	if uint64(buf.Len()) > math.MaxUint32 {
		return nil, ErrTooLarge
	}
	writeEndOfCentral(&buf, len(records), cdLen, cdStart)

	return buf.Bytes(), nil
}

func writeLocalHeader(buf *bytes.Buffer, r *record) {
	var h [localHeaderLen]byte
	le := binary.LittleEndian
	le.PutUint32(h[0:], sigLocalHeader)
	le.PutUint16(h[4:], versionNeeded)
	le.PutUint16(h[6:], 0) // flags
	le.PutUint16(h[8:], methodStore)
	le.PutUint16(h[10:], dosTime)
	le.PutUint16(h[12:], dosDate)
	le.PutUint32(h[14:], r.crc)
	le.PutUint32(h[18:], r.size) // compressed
	le.PutUint32(h[22:], r.size)
	le.PutUint16(h[26:], uint16(len(r.name)))
	le.PutUint16(h[28:], 0) // extra
	buf.Write(h[:])
}

func writeCentralHeader(buf *bytes.Buffer, r *record) {
	var h [centralHeaderLen]byte
	le := binary.LittleEndian
	le.PutUint32(h[0:], sigCentralHeader)
	le.PutUint16(h[4:], versionNeeded) // made by
	le.PutUint16(h[6:], versionNeeded)
	le.PutUint16(h[8:], 0) // flags
	le.PutUint16(h[10:], methodStore)
	le.PutUint16(h[12:], dosTime)
	le.PutUint16(h[14:], dosDate)
	le.PutUint32(h[16:], r.crc)
	le.PutUint32(h[20:], r.size)
	le.PutUint32(h[24:], r.size)
	le.PutUint16(h[28:], uint16(len(r.name)))
	// extra, comment, disk number, internal and external attributes stay zero
	le.PutUint32(h[42:], r.offset)
	buf.Write(h[:])
}

func writeEndOfCentral(buf *bytes.Buffer, count, cdLen, cdStart int) {
	var h [endOfCentralLen]byte
	le := binary.LittleEndian
	le.PutUint32(h[0:], sigEndOfCentral)
	// this disk and disk with central directory are both zero
	le.PutUint16(h[8:], uint16(count))
	le.PutUint16(h[10:], uint16(count))
	le.PutUint32(h[12:], uint32(cdLen))
	le.PutUint32(h[16:], uint32(cdStart))
	// comment length is zero
	buf.Write(h[:])
}
