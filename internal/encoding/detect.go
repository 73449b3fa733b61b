package encoding

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Charset names follow chardet's.
type Charset string

const (
	UTF8        Charset = "UTF-8"
	UTF8BOM     Charset = "UTF-8-BOM"
	UTF16LE     Charset = "UTF-16LE"
	UTF16BE     Charset = "UTF-16BE"
	Latin1      Charset = "ISO-8859-1"
	Windows1252 Charset = "windows-1252"
	Latin5      Charset = "ISO-8859-9"
)

const sampleSize = 4096

var decoders = map[Charset]encoding.Encoding{
	UTF16LE:     unicode.UTF16(unicode.LittleEndian, unicode.UseBOM),
	UTF16BE:     unicode.UTF16(unicode.BigEndian, unicode.UseBOM),
	Latin1:      charmap.Windows1252,
	Windows1252: charmap.Windows1252,
	Latin5:      charmap.ISO8859_9,
}

var boms = []struct {
	prefix  []byte
	charset Charset
}{
	{[]byte{0xEF, 0xBB, 0xBF}, UTF8BOM},
	{[]byte{0xFF, 0xFE}, UTF16LE},
	{[]byte{0xFE, 0xFF}, UTF16BE},
}

// Detect guesses the charset of a sample: byte order mark first, then UTF-8
// validity, then chardet. Anything unrecognised is treated as Windows-1252,
// the usual charset of Portuguese bank exports.
func Detect(sample []byte) Charset {
	for _, b := range boms {
		if bytes.HasPrefix(sample, b.prefix) {
			return b.charset
		}
	}

	if utf8.Valid(trimPartialRune(sample)) {
		return UTF8
	}

	result, err := chardet.NewTextDetector().DetectBest(sample)
	if err != nil {
		return Windows1252
	}

	switch c := Charset(result.Charset); c {
	case UTF8, Latin1, Windows1252, Latin5:
		return c
	}

	return Windows1252
}

// trimPartialRune drops a multi-byte sequence cut off by the end of the
// sample.
func trimPartialRune(b []byte) []byte {
	for i := 1; i <= utf8.UTFMax && i <= len(b); i++ {
		if !utf8.RuneStart(b[len(b)-i]) {
			continue
		}

		if !utf8.FullRune(b[len(b)-i:]) {
			return b[:len(b)-i]
		}

		break
	}

	return b
}

// NewUTF8Reader returns a reader that yields r decoded to UTF-8, and the
// charset it detected.
func NewUTF8Reader(r io.Reader) (io.Reader, Charset, error) {
	br := bufio.NewReaderSize(r, sampleSize)

	sample, err := br.Peek(sampleSize)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, "", fmt.Errorf("peeking sample: %w", err)
	}

	charset := Detect(sample)

	switch charset {
	case UTF8:
		return br, charset, nil
	case UTF8BOM:
		_, _ = br.Discard(len(boms[0].prefix))
		return br, charset, nil
	}

	return transform.NewReader(br, decoders[charset].NewDecoder()), charset, nil
}
