package tar

import (
	"strconv"
	"strings"

	"github.com/elliotnunn/resourceform/bitio"
)

// field offsets and lengths within a 512-byte ustar header record.
const (
	offName     = 0
	lenName     = 100
	offMode     = 100
	lenMode     = 8
	offUid      = 108
	lenUid      = 8
	offGid      = 116
	lenGid      = 8
	offSize     = 124
	lenSize     = 12
	offMtime    = 136
	lenMtime    = 12
	offTypeFlag = 156
	offLinkName = 157
	lenLinkName = 100
	offUname    = 265
	lenUname    = 32
	offGname    = 297
	lenGname    = 32
	offDevMajor = 329
	lenDevMajor = 8
	offDevMinor = 337
	lenDevMinor = 8
	offPrefix   = 345
	lenPrefix   = 155
)

type ustarFields struct {
	name, linkName, uname, gname, prefix string
	typeFlag                             byte
	mode, uid, gid, size, mtime          int64
	devMajor, devMinor                   int64
}

func readUstarFields(r *bitio.Reader, blockStart int) (*ustarFields, error) {
	name, err := readASCIIField(r, blockStart+offName, lenName)
	if err != nil {
		return nil, err
	}
	mode, err := readOctalField(r, blockStart+offMode, lenMode)
	if err != nil {
		return nil, err
	}
	uid, err := readOctalField(r, blockStart+offUid, lenUid)
	if err != nil {
		return nil, err
	}
	gid, err := readOctalField(r, blockStart+offGid, lenGid)
	if err != nil {
		return nil, err
	}
	size, err := readOctalField(r, blockStart+offSize, lenSize)
	if err != nil {
		return nil, err
	}
	mtime, err := readOctalField(r, blockStart+offMtime, lenMtime)
	if err != nil {
		return nil, err
	}
	typeFlagBuf, err := r.PeekAt(blockStart+offTypeFlag, 1)
	if err != nil {
		return nil, err
	}
	typeFlag := typeFlagBuf[0]
	if typeFlag == 0 {
		typeFlag = TypeRegular
	}
	linkName, err := readASCIIField(r, blockStart+offLinkName, lenLinkName)
	if err != nil {
		return nil, err
	}
	uname, err := readASCIIField(r, blockStart+offUname, lenUname)
	if err != nil {
		return nil, err
	}
	gname, err := readASCIIField(r, blockStart+offGname, lenGname)
	if err != nil {
		return nil, err
	}
	devMajor, err := readOctalField(r, blockStart+offDevMajor, lenDevMajor)
	if err != nil {
		return nil, err
	}
	devMinor, err := readOctalField(r, blockStart+offDevMinor, lenDevMinor)
	if err != nil {
		return nil, err
	}
	prefix, err := readASCIIField(r, blockStart+offPrefix, lenPrefix)
	if err != nil {
		return nil, err
	}

	return &ustarFields{
		name: name, linkName: linkName, uname: uname, gname: gname, prefix: prefix,
		typeFlag: typeFlag,
		mode:     mode, uid: uid, gid: gid, size: size, mtime: mtime,
		devMajor: devMajor, devMinor: devMinor,
	}, nil
}

// readASCIIField reads a null/space-terminated ASCII field at an absolute
// offset, without moving the reader's cursor.
func readASCIIField(r *bitio.Reader, absOffset, length int) (string, error) {
	b, err := r.PeekAt(absOffset, length)
	if err != nil {
		return "", err
	}
	end := len(b)
	for i, c := range b {
		if c == 0x00 || c == 0x20 {
			end = i
			break
		}
	}
	return string(b[:end]), nil
}

// readOctalField reads a null/space-terminated ASCII octal numeric field at
// an absolute offset. An all-blank/zero field parses as 0.
func readOctalField(r *bitio.Reader, absOffset, length int) (int64, error) {
	b, err := r.PeekAt(absOffset, length)
	if err != nil {
		return 0, err
	}
	return parseOctalField(b)
}

func parseOctalField(b []byte) (int64, error) {
	s := strings.TrimRight(string(b), "\x00 ")
	s = strings.TrimLeft(s, " ")
	if s == "" {
		return 0, nil
	}
	// GNU base-256 numeric extension: high bit of the first byte set.
	if b[0]&0x80 != 0 {
		return parseGNUBase256(b), nil
	}
	n, err := strconv.ParseInt(s, 8, 64)
	if err != nil {
		return 0, ErrFieldIsNotNumber
	}
	return n, nil
}

// parseGNUBase256 decodes the GNU tar extension for numeric fields too
// large for octal: the first byte has its high bit set, and the remaining
// bytes (including the low 7 bits of the first) form a big-endian binary
// integer.
func parseGNUBase256(b []byte) int64 {
	var v int64
	v = int64(b[0] & 0x7f)
	for _, c := range b[1:] {
		v = v<<8 | int64(c)
	}
	return v
}

func parseDecimal(s string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
}

// parsePAXTimeSeconds parses a PAX mtime record, which is a decimal number
// of seconds with an optional fractional part ("1344742534.529282852"),
// truncating any fraction.
func parsePAXTimeSeconds(s string) (int64, error) {
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	return strconv.ParseInt(s, 10, 64)
}
