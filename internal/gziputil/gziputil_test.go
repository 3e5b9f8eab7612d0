package gziputil

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressDecompress(t *testing.T) {
	in := []byte(`{"query":"{ me { id email role } }"}`)
	gz, err := Compress(in)
	require.NoError(t, err)
	assert.True(t, IsGzipped(gz))
	assert.False(t, IsGzipped(in))

	out, err := Decompress(bytes.NewReader(gz), MaxRequestSize)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecompress_Limit(t *testing.T) {
	gz, err := Compress([]byte(strings.Repeat("a", 2048)))
	require.NoError(t, err)

	_, err = Decompress(bytes.NewReader(gz), 1024)
	assert.ErrorIs(t, err, ErrTooLarge)

	out, err := Decompress(bytes.NewReader(gz), 2048)
	require.NoError(t, err)
	assert.Len(t, out, 2048)
}

func TestDecompress_NotGzip(t *testing.T) {
	_, err := Decompress(strings.NewReader("plain"), MaxRequestSize)
	assert.Error(t, err)
}
