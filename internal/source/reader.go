package source

import (
	"bufio"
	"bytes"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// cleanReader drops a leading UTF-8 byte order mark and replaces invalid
// UTF-8 bytes with '?'. It streams; memory use does not grow with input.
type cleanReader struct {
	br      *bufio.Reader
	started bool
	pending []byte
}

// NewCleanReader wraps r for CSV parsing.
func NewCleanReader(r io.Reader) io.Reader {
	return &cleanReader{br: bufio.NewReader(r)}
}

func (c *cleanReader) Read(p []byte) (int, error) {
	if !c.started {
		c.started = true
		if head, _ := c.br.Peek(len(utf8BOM)); bytes.Equal(head, utf8BOM) {
			_, _ = c.br.Discard(len(utf8BOM))
		}
	}

	n := copy(p, c.pending)
	c.pending = c.pending[n:]

	var buf [utf8.UTFMax]byte
	for n < len(p) {
		r, size, err := c.br.ReadRune()
		if err != nil {
			if n > 0 {
				return n, nil
			}
			return 0, err
		}

		w := 1
		if r == utf8.RuneError && size == 1 {
			buf[0] = '?'
		} else {
			w = utf8.EncodeRune(buf[:], r)
		}

		copied := copy(p[n:], buf[:w])
		n += copied
		if copied < w {
			c.pending = append(c.pending, buf[copied:w]...)
		}
	}
	return n, nil
}
