package service

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveContent_DeterministicFingerprint(t *testing.T) {
	a, err := ResolveContent(strings.NewReader("hello world"))
	require.NoError(t, err)
	defer a.Close()

	b, err := ResolveContent(strings.NewReader("hello world"))
	require.NoError(t, err)
	defer b.Close()

	// Well-known SHA-256 of "hello world"
	assert.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", a.Fingerprint)
	assert.Equal(t, a.Fingerprint, b.Fingerprint)
	assert.Equal(t, int64(11), a.Size)
	assert.Equal(t, strings.ToLower(a.Fingerprint), a.Fingerprint)
}

func TestResolveContent_EmptyContent(t *testing.T) {
	c, err := ResolveContent(strings.NewReader(""))
	require.NoError(t, err)
	defer c.Close()

	// SHA-256 of the empty string is still a valid fingerprint
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", c.Fingerprint)
	assert.Equal(t, int64(0), c.Size)
}

func TestResolveContent_NilReader(t *testing.T) {
	_, err := ResolveContent(nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestResolveContent_ReReadable(t *testing.T) {
	c, err := ResolveContent(strings.NewReader("some body bytes"))
	require.NoError(t, err)
	defer c.Close()

	r, err := c.Reader()
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "some body bytes", string(got))

	// A second Reader call rewinds to the first byte again
	r, err = c.Reader()
	require.NoError(t, err)
	got, err = io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "some body bytes", string(got))
}

func TestResolveContent_LargeUploadSpillsToDisk(t *testing.T) {
	// One byte past the in-memory spool limit forces the temp-file path
	payload := bytes.Repeat([]byte{0xab}, memorySpoolLimit+1)

	c, err := ResolveContent(bytes.NewReader(payload))
	require.NoError(t, err)
	defer c.Close()

	require.NotNil(t, c.file)
	assert.Equal(t, int64(len(payload)), c.Size)

	sum := sha256.Sum256(payload)
	assert.Equal(t, hex.EncodeToString(sum[:]), c.Fingerprint)

	r, err := c.Reader()
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}
