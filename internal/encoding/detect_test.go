package encoding_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/MrJamesThe3rd/expenso/internal/encoding"
)

const text = "Descrição;Montante\nCafé;12,50\nOperação;-3,00\n"

func TestNewUTF8Reader(t *testing.T) {
	latin1, err := charmap.Windows1252.NewEncoder().Bytes([]byte(text))
	require.NoError(t, err)

	utf16le, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().Bytes([]byte(text))
	require.NoError(t, err)

	type testCase struct {
		name    string
		input   []byte
		charset encoding.Charset
	}

	tests := []testCase{
		{name: "utf-8 passthrough", input: []byte(text), charset: encoding.UTF8},
		{name: "utf-8 bom stripped", input: append([]byte{0xEF, 0xBB, 0xBF}, text...), charset: encoding.UTF8BOM},
		{name: "utf-16 with bom", input: utf16le, charset: encoding.UTF16LE},
		{name: "windows-1252", input: latin1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, charset, err := encoding.NewUTF8Reader(bytes.NewReader(tt.input))
			require.NoError(t, err)

			if tt.charset != "" {
				assert.Equal(t, tt.charset, charset)
			}

			got, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, text, string(got))
		})
	}
}

func TestNewUTF8Reader_LargeInput(t *testing.T) {
	input := bytes.Repeat([]byte(text), 500)

	r, charset, err := encoding.NewUTF8Reader(bytes.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, encoding.UTF8, charset)

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, input, got)
}

func TestDetect_Empty(t *testing.T) {
	assert.Equal(t, encoding.UTF8, encoding.Detect(nil))
}
