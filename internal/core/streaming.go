package core

// streaming.go cleans uploaded CSV bytes before they reach encoding/csv.
//
// Spreadsheet exports commonly start with a UTF-8 byte order mark and
// occasionally contain bytes in a legacy encoding. cleanReader drops the BOM
// and replaces every invalid byte with U+FFFD while streaming, so memory use
// does not grow with file size.

import (
	"bufio"
	"bytes"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// cleanReader yields valid UTF-8 without a leading BOM.
type cleanReader struct {
	src        *bufio.Reader
	bomChecked bool
	pending    []byte // encoded runes that did not fit the caller's buffer
}

// NewCleanReader wraps r with BOM removal and UTF-8 sanitization.
func NewCleanReader(r io.Reader) io.Reader {
	return &cleanReader{src: bufio.NewReader(r)}
}

func (c *cleanReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	if !c.bomChecked {
		c.bomChecked = true
		if head, err := c.src.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
			_, _ = c.src.Discard(len(utf8BOM))
		}
	}

	n := copy(p, c.pending)
	c.pending = c.pending[n:]

	var buf [utf8.UTFMax]byte
	for n < len(p) {
		// ReadRune reports each invalid byte as RuneError, which encodes as U+FFFD.
		r, _, err := c.src.ReadRune()
		if err != nil {
			if n > 0 && err == io.EOF {
				return n, nil
			}
			return n, err
		}

		w := utf8.EncodeRune(buf[:], r)
		if n+w > len(p) {
			copied := copy(p[n:], buf[:w])
			c.pending = append(c.pending, buf[copied:w]...)
			return n + copied, nil
		}
		n += copy(p[n:], buf[:w])
	}
	return n, nil
}
