package tar

import (
	"fmt"
	"strconv"
	"strings"
)

// parsePAXBody parses a PAX extended-header body into its key/value
// overlay. The grammar is a sequence of records of the form
// "<len> <key>=<value>\n", where <len> is the decimal byte length of the
// entire record, including the length digits, the single space, and the
// trailing newline. Implementations that slice by '=' without respecting
// <len> will misparse values that themselves contain '=' or newlines.
func parsePAXBody(body []byte) (map[string]string, error) {
	records := map[string]string{}
	buf := body
	for len(buf) > 0 {
		sp := -1
		for i, c := range buf {
			if c == ' ' {
				sp = i
				break
			}
			if c < '0' || c > '9' {
				break
			}
		}
		if sp <= 0 {
			return nil, fmt.Errorf("tar: malformed PAX record length: %w", ErrHeader)
		}
		n, err := strconv.Atoi(string(buf[:sp]))
		if err != nil || n <= 0 || n > len(buf) {
			return nil, fmt.Errorf("tar: malformed PAX record length: %w", ErrHeader)
		}

		record := buf[:n]
		rest := buf[n:]

		if record[n-1] != '\n' {
			return nil, fmt.Errorf("tar: PAX record not newline-terminated: %w", ErrHeader)
		}
		kv := string(record[sp+1 : n-1])
		eq := strings.IndexByte(kv, '=')
		if eq < 0 {
			return nil, fmt.Errorf("tar: PAX record missing '=': %w", ErrHeader)
		}
		records[kv[:eq]] = kv[eq+1:]

		buf = rest
	}
	return records, nil
}
