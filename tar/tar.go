// Package tar implements a structural walk of a POSIX ustar / GNU
// long-name / PAX tape-archive byte stream, as described by the tar(5)
// layouts in common use. It parses headers in memory and never writes to
// disk: callers receive entry descriptors paired with zero-copy views into
// the input buffer.
package tar

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/elliotnunn/resourceform/bitio"
	"github.com/elliotnunn/resourceform/internal/digest"
)

const blockSize = 512

// Error kinds raised by Walk. All are fatal: Walk returns either a
// complete result or a single error.
var (
	ErrTooSmallFileIsPassed = errors.New("tar: input shorter than one 512-byte record")
	ErrFieldIsNotNumber     = errors.New("tar: numeric field failed ASCII-octal parse")
	ErrHeader               = errors.New("tar: invalid tar header")
)

// TypeFlag values recognised by this walker.
const (
	TypeRegular         = '0'
	TypeRegularA        = 0
	TypeHardLink        = '1'
	TypeSymlink         = '2'
	TypeChar            = '3'
	TypeBlock           = '4'
	TypeDir             = '5'
	TypeFifo            = '6'
	TypeContiguous      = '7'
	TypePAXLocal        = 'x'
	TypePAXGlobal       = 'g'
	TypeGNULongLinkname = 'K'
	TypeGNULongName     = 'L'
)

// EntryInfo describes one resolved tar entry. It is immutable once
// returned from Walk.
type EntryInfo struct {
	Name     string
	LinkName string
	Size     int64
	TypeFlag byte
	Mode     int64
	Uid      int
	Gid      int
	Mtime    int64 // seconds since epoch
	Uname    string
	Gname    string
	DevMajor int64
	DevMinor int64

	// BlockStartIndex is the byte offset of this entry's 512-byte header
	// record within the original input buffer.
	BlockStartIndex int

	IsGlobalExtendedHeader bool
	IsLocalExtendedHeader  bool

	// Data is a zero-copy view into the input buffer passed to Walk.
	// Callers must not outlive that buffer.
	Data []byte

	// ContentHash is the xxhash64 digest of Data, computed once by Walk.
	ContentHash uint64
}

// roundTo512 rounds n up to the next multiple of 512.
func roundTo512(n int64) int64 {
	return (n + blockSize - 1) / blockSize * blockSize
}

// overlay is the extended-header / long-name state carried between
// records while walking.
type overlay struct {
	global       map[string]string
	local        map[string]string
	longName     string
	longLinkName string
}

// Walk iterates 512-byte records from data and returns the fully-resolved
// entry descriptors, in order. It does not emit PAX global/local extended
// headers or GNU long-name/long-link meta records; those are consumed to
// build the overlay applied to subsequent entries.
func Walk(data []byte) ([]EntryInfo, error) {
	if len(data) < blockSize {
		return nil, ErrTooSmallFileIsPassed
	}

	r := bitio.New(data, bitio.LSBFirst)
	var ov overlay
	var entries []EntryInfo

	for {
		cursor := r.Index()
		if cursor+blockSize > len(data) {
			break
		}

		if isZeroTerminator(data, cursor) {
			break
		}

		typeFlagBuf, err := r.PeekAt(cursor+156, 1)
		if err != nil {
			return nil, err
		}
		typeFlag := typeFlagBuf[0]

		if typeFlag == TypeGNULongLinkname || typeFlag == TypeGNULongName {
			size, err := readOctalField(r, cursor+124, 12)
			if err != nil {
				return nil, err
			}
			r.Seek(cursor + blockSize)
			nameBuf, err := r.Bytes(int(size))
			if err != nil {
				return nil, err
			}
			name := cString(nameBuf)
			if typeFlag == TypeGNULongLinkname {
				ov.longLinkName = name
			} else {
				ov.longName = name
			}
			r.Seek(cursor + blockSize + int(roundTo512(size)))
			continue
		}

		hdr, body, next, err := parseRecord(r, cursor, &ov)
		if err != nil {
			return nil, err
		}

		switch {
		case hdr.TypeFlag == TypePAXGlobal:
			m, err := parsePAXBody(body)
			if err != nil {
				return nil, err
			}
			if ov.global == nil {
				ov.global = map[string]string{}
			}
			for k, v := range m {
				ov.global[k] = v
			}
			hdr.IsGlobalExtendedHeader = true
		case hdr.TypeFlag == TypePAXLocal:
			m, err := parsePAXBody(body)
			if err != nil {
				return nil, err
			}
			ov.local = m
			hdr.IsLocalExtendedHeader = true
		default:
			hdr.Data = body
			hdr.ContentHash = digest.Sum(body)
			entries = append(entries, *hdr)
			ov.local = nil
			ov.longName = ""
			ov.longLinkName = ""
		}

		r.Seek(next)
	}

	return entries, nil
}

func isZeroTerminator(data []byte, cursor int) bool {
	end := cursor + 1024
	if end > len(data) {
		end = len(data)
	}
	for _, b := range data[cursor:end] {
		if b != 0 {
			return false
		}
	}
	return end == cursor+1024 || end == len(data)
}

// parseRecord parses the 512-byte header at the reader's current position
// into an EntryInfo, applying the overlay's name-resolution precedence
// (local extended > GNU long name > global extended > ustar prefix+name),
// and returns the entry's data slice along with the byte offset of the
// record following the data (rounded up to 512).
func parseRecord(r *bitio.Reader, blockStart int, ov *overlay) (*EntryInfo, []byte, int, error) {
	fields, err := readUstarFields(r, blockStart)
	if err != nil {
		return nil, nil, 0, err
	}

	hdr := &EntryInfo{
		TypeFlag:        fields.typeFlag,
		Mode:            fields.mode,
		Uid:             int(fields.uid),
		Gid:             int(fields.gid),
		Size:            fields.size,
		Mtime:           fields.mtime,
		Uname:           fields.uname,
		Gname:           fields.gname,
		DevMajor:        fields.devMajor,
		DevMinor:        fields.devMinor,
		BlockStartIndex: blockStart,
	}

	name := fields.name
	if fields.prefix != "" {
		name = fields.prefix + "/" + fields.name
	}
	linkName := fields.linkName

	if ov.global != nil {
		if v, ok := ov.global["path"]; ok {
			name = v
		}
		if v, ok := ov.global["linkpath"]; ok {
			linkName = v
		}
	}
	if ov.longName != "" {
		name = ov.longName
	}
	if ov.longLinkName != "" {
		linkName = ov.longLinkName
	}
	if ov.local != nil {
		if v, ok := ov.local["path"]; ok {
			name = v
		}
		if v, ok := ov.local["linkpath"]; ok {
			linkName = v
		}
	}
	hdr.Name = name
	hdr.LinkName = linkName

	applyNumericOverrides(hdr, ov)

	dataStart := blockStart + blockSize
	dataSize := hdr.Size
	if isHeaderOnlyType(hdr.TypeFlag) {
		dataSize = 0
	}
	dataEnd := dataStart + int(dataSize)
	if dataEnd > r.Len() {
		return nil, nil, 0, fmt.Errorf("tar: entry data runs past end of input: %w", ErrHeader)
	}
	data, err := r.PeekAt(dataStart, int(dataSize))
	if err != nil {
		return nil, nil, 0, err
	}

	next := int(roundTo512(int64(dataEnd)))
	return hdr, data, next, nil
}

func isHeaderOnlyType(t byte) bool {
	switch t {
	case TypeHardLink, TypeSymlink, TypeChar, TypeBlock, TypeDir, TypeFifo:
		return true
	}
	return false
}

// applyNumericOverrides applies PAX size/mode/uid/gid/mtime overrides, with
// local extended headers taking precedence over global ones.
func applyNumericOverrides(hdr *EntryInfo, ov *overlay) {
	apply := func(m map[string]string) {
		if m == nil {
			return
		}
		if v, ok := m["size"]; ok {
			if n, err := parseDecimal(v); err == nil {
				hdr.Size = n
			}
		}
		if v, ok := m["mode"]; ok {
			if n, err := parseDecimal(v); err == nil {
				hdr.Mode = n
			}
		}
		if v, ok := m["uid"]; ok {
			if n, err := parseDecimal(v); err == nil {
				hdr.Uid = int(n)
			}
		}
		if v, ok := m["gid"]; ok {
			if n, err := parseDecimal(v); err == nil {
				hdr.Gid = int(n)
			}
		}
		if v, ok := m["mtime"]; ok {
			if n, err := parsePAXTimeSeconds(v); err == nil {
				hdr.Mtime = n
			}
		}
	}
	apply(ov.global)
	apply(ov.local)
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
