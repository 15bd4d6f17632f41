package tar

import (
	gotar "archive/tar"
	"bytes"
	"testing"

	"github.com/elliotnunn/resourceform/internal/digest"
)

func TestTooSmallFileIsPassed(t *testing.T) {
	_, err := Walk(make([]byte, 511))
	if err != ErrTooSmallFileIsPassed {
		t.Fatalf("got %v want ErrTooSmallFileIsPassed", err)
	}
}

func TestRoundTo512(t *testing.T) {
	cases := []int64{0, 1, 511, 512, 513, 1024, 1025}
	for _, n := range cases {
		got := roundTo512(n)
		if got%512 != 0 {
			t.Errorf("roundTo512(%d)=%d not a multiple of 512", n, got)
		}
		if got < n || got >= n+512 {
			t.Errorf("roundTo512(%d)=%d out of [%d, %d)", n, got, n, n+512)
		}
	}
}

// TestPlainUstarRoundTrip checks a handful of ordinary entries against
// what the standard library's own tar writer produces, the way the
// teacher repo's vs_stdlib_test.go does.
func TestPlainUstarRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := gotar.NewWriter(&buf)
	files := []struct {
		name string
		body string
	}{
		{"a.txt", "hello"},
		{"dir/b.txt", "world, a bit longer this time"},
		{"dir/sub/c.txt", ""},
	}
	for _, f := range files {
		if err := w.WriteHeader(&gotar.Header{
			Name: f.name, Typeflag: gotar.TypeReg, Size: int64(len(f.body)), Mode: 0644,
		}); err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(f.body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	entries, err := Walk(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != len(files) {
		t.Fatalf("got %d entries want %d", len(entries), len(files))
	}
	for i, f := range files {
		if entries[i].Name != f.name {
			t.Errorf("entry %d: got name %q want %q", i, entries[i].Name, f.name)
		}
		if string(entries[i].Data) != f.body {
			t.Errorf("entry %d: got data %q want %q", i, entries[i].Data, f.body)
		}
		if want := digest.Sum(entries[i].Data); entries[i].ContentHash != want {
			t.Errorf("entry %d: got ContentHash %#x want %#x", i, entries[i].ContentHash, want)
		}
	}
}

func TestGNULongName(t *testing.T) {
	// S4: a GNU 'L' record carrying the full name, followed by a regular
	// file header with a truncated name, must emit one entry whose Name
	// equals the long name.
	longName := "very/long/path/to/file.bin"
	truncated := "very/long/path/to/file.bi"

	var buf bytes.Buffer
	buf.Write(gnuLongNameRecord(TypeGNULongName, longName))
	buf.Write(regularFileRecord(truncated, "hello"))
	buf.Write(make([]byte, 1024)) // terminator

	entries, err := Walk(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries want 1", len(entries))
	}
	if entries[0].Name != longName {
		t.Errorf("got name %q want %q", entries[0].Name, longName)
	}
	if !bytes.Equal(entries[0].Data, []byte("hello")) {
		t.Errorf("got data %q", entries[0].Data)
	}
}

func TestPAXGlobalThenLocal(t *testing.T) {
	// S5: a global extended header sets path=g.txt; a subsequent local
	// extended header sets path=l.txt; the following data header is
	// emitted as l.txt, and the one after that (no local override) as
	// g.txt.
	var buf bytes.Buffer
	buf.Write(paxHeaderRecord(TypePAXGlobal, map[string]string{"path": "g.txt"}))
	buf.Write(paxHeaderRecord(TypePAXLocal, map[string]string{"path": "l.txt"}))
	buf.Write(regularFileRecord("ignored1", "a"))
	buf.Write(regularFileRecord("ignored2", "b"))
	buf.Write(make([]byte, 1024))

	entries, err := Walk(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries want 2", len(entries))
	}
	if entries[0].Name != "l.txt" {
		t.Errorf("entry 0: got name %q want l.txt", entries[0].Name)
	}
	if entries[1].Name != "g.txt" {
		t.Errorf("entry 1: got name %q want g.txt", entries[1].Name)
	}
}

func TestPAXModeOverride(t *testing.T) {
	// A PAX local extended header's mode= record overrides the ustar
	// header's octal mode field.
	var buf bytes.Buffer
	buf.Write(paxHeaderRecord(TypePAXLocal, map[string]string{"mode": "511"})) // 0777 decimal
	buf.Write(regularFileRecord("exec.sh", "#!/bin/sh\n"))
	buf.Write(make([]byte, 1024))

	entries, err := Walk(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries want 1", len(entries))
	}
	if entries[0].Mode != 511 {
		t.Errorf("got Mode %d want 511", entries[0].Mode)
	}
}

func TestUstarPrefixJoin(t *testing.T) {
	block := make([]byte, 512)
	copy(block[0:], "file.txt")
	copy(block[100:], "0000644\x00")
	copy(block[108:], "0000000\x00")
	copy(block[116:], "0000000\x00")
	copy(block[124:], "00000000005\x00")
	copy(block[136:], "00000000000\x00")
	block[156] = '0'
	copy(block[257:], "ustar\x0000")
	copy(block[345:], "some/prefix")

	data := append(append([]byte{}, block...), []byte("hello")...)
	data = append(data, make([]byte, roundTo512(5)-5)...)
	data = append(data, make([]byte, 1024)...)

	entries, err := Walk(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries", len(entries))
	}
	if entries[0].Name != "some/prefix/file.txt" {
		t.Errorf("got name %q", entries[0].Name)
	}
}

func TestMalformedSizeField(t *testing.T) {
	block := make([]byte, 512)
	copy(block[0:], "bad.txt")
	copy(block[100:], "0000644\x00")
	copy(block[108:], "0000000\x00")
	copy(block[116:], "0000000\x00")
	copy(block[124:], "NOTOCTAL\x00\x00\x00")
	copy(block[136:], "00000000000\x00")
	block[156] = '0'

	data := append(append([]byte{}, block...), make([]byte, 1024)...)
	_, err := Walk(data)
	if err != ErrFieldIsNotNumber {
		t.Fatalf("got %v want ErrFieldIsNotNumber", err)
	}
}

// regularFileRecord builds one 512-byte ustar header plus its rounded-up
// data body for a regular file.
func regularFileRecord(name, body string) []byte {
	block := make([]byte, 512)
	copy(block[0:], name)
	copy(block[100:], "0000644\x00")
	copy(block[108:], "0000000\x00")
	copy(block[116:], "0000000\x00")
	copy(block[124:], octalField(len(body), 11)+"\x00")
	copy(block[136:], "00000000000\x00")
	block[156] = TypeRegular

	out := append(block, []byte(body)...)
	pad := roundTo512(int64(len(body))) - int64(len(body))
	out = append(out, make([]byte, pad)...)
	return out
}

// gnuLongNameRecord builds a GNU 'L'/'K' meta record carrying name as its
// null-terminated body.
func gnuLongNameRecord(typeFlag byte, name string) []byte {
	body := name + "\x00"
	block := make([]byte, 512)
	copy(block[0:], "././@LongLink")
	copy(block[100:], "0000644\x00")
	copy(block[108:], "0000000\x00")
	copy(block[116:], "0000000\x00")
	copy(block[124:], octalField(len(body), 11)+"\x00")
	copy(block[136:], "00000000000\x00")
	block[156] = typeFlag

	out := append(block, []byte(body)...)
	pad := roundTo512(int64(len(body))) - int64(len(body))
	out = append(out, make([]byte, pad)...)
	return out
}

// paxHeaderRecord builds a PAX extended-header record ('x' or 'g') whose
// body encodes records as a self-describing length-prefixed line.
func paxHeaderRecord(typeFlag byte, kv map[string]string) []byte {
	var body []byte
	for k, v := range kv {
		body = append(body, paxRecordBytes(k, v)...)
	}
	block := make([]byte, 512)
	copy(block[0:], "pax_header")
	copy(block[100:], "0000644\x00")
	copy(block[108:], "0000000\x00")
	copy(block[116:], "0000000\x00")
	copy(block[124:], octalField(len(body), 11)+"\x00")
	copy(block[136:], "00000000000\x00")
	block[156] = typeFlag

	out := append(block, body...)
	pad := roundTo512(int64(len(body))) - int64(len(body))
	out = append(out, make([]byte, pad)...)
	return out
}

func paxRecordBytes(key, value string) []byte {
	suffix := key + "=" + value + "\n"
	n := len(suffix) + 2
	for {
		candidate := len(itoa(n)) + 1 + len(suffix)
		if candidate == n {
			break
		}
		n = candidate
	}
	return []byte(itoa(n) + " " + suffix)
}

func octalField(n, width int) string {
	s := itoa(toOctal(n))
	for len(s) < width {
		s = "0" + s
	}
	return s
}

func toOctal(n int) int {
	if n == 0 {
		return 0
	}
	return toOctal(n/8)*10 + n%8
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var b []byte
	for n > 0 {
		b = append([]byte{byte('0' + n%10)}, b...)
		n /= 10
	}
	if neg {
		b = append([]byte{'-'}, b...)
	}
	return string(b)
}
