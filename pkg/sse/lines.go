package sse

import (
	"bytes"
	"errors"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// LineBuffer turns arbitrarily chunked bytes into complete text lines.
//
// Chunks are decoded incrementally as UTF-8: an incomplete multi-byte
// sequence at the end of a chunk is carried over and completed by the next
// chunk, and ill-formed bytes are replaced with U+FFFD. Decoded text is
// split on '\n'; everything but the final piece is returned as complete
// lines and the final (possibly empty) piece is retained.
//
// A LineBuffer is owned by exactly one stream and is not safe for
// concurrent use.
type LineBuffer struct {
	decoder transform.Transformer

	// carry holds undecoded bytes of a multi-byte sequence split across
	// chunk boundaries.
	carry []byte

	// text holds decoded text that has not yet been newline terminated.
	text []byte
}

// NewLineBuffer returns an empty LineBuffer.
func NewLineBuffer() *LineBuffer {
	return &LineBuffer{
		decoder: unicode.UTF8.NewDecoder(),
	}
}

// Push appends a chunk and returns the lines it completed, in order,
// without their trailing '\n'.
func (b *LineBuffer) Push(chunk []byte) []string {
	if len(chunk) == 0 {
		return nil
	}

	src := append(b.carry, chunk...)

	// Replacing an ill-formed byte grows it to three bytes, so this is
	// always large enough for a single Transform call.
	dst := make([]byte, len(src)*3)
	nDst, nSrc, err := b.decoder.Transform(dst, src, false)
	if err != nil && !errors.Is(err, transform.ErrShortSrc) {
		// Unreachable with a correctly sized dst; fall back to raw bytes
		// rather than losing input.
		nDst = copy(dst, src)
		nSrc = len(src)
	}

	b.carry = append([]byte(nil), src[nSrc:]...)
	b.text = append(b.text, dst[:nDst]...)

	var lines []string
	for {
		i := bytes.IndexByte(b.text, '\n')
		if i < 0 {
			break
		}
		lines = append(lines, string(b.text[:i]))
		b.text = b.text[i+1:]
	}

	return lines
}

// Pending returns the text that has been received but not yet terminated
// by a newline.
func (b *LineBuffer) Pending() string {
	return string(b.text) + string(b.carry)
}

// Discard drops any unterminated tail. It returns the dropped text.
func (b *LineBuffer) Discard() string {
	pending := b.Pending()
	b.text = nil
	b.carry = nil
	b.decoder.Reset()
	return pending
}
