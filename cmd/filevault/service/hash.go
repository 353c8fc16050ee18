package service

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// memorySpoolLimit is the largest upload kept fully in memory while
// hashing; anything bigger spills to a temp file.
const memorySpoolLimit = 8 << 20 // 8 MiB

// Content is an upload whose fingerprint has been resolved. The bytes were
// consumed exactly once for hashing and spooled so the persistence step can
// read them again from the start. Close releases the spool.
type Content struct {
	// Lowercase hex SHA-256 of the exact byte content
	Fingerprint string
	// Total content length in bytes
	Size int64

	buf  *bytes.Reader // in-memory spool
	file *os.File      // temp-file spool for large uploads
}

// Reader returns the content positioned at the first byte. Callable more
// than once; each call rewinds.
func (c *Content) Reader() (io.Reader, error) {
	if c.file != nil {
		if _, err := c.file.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("rewind content spool: %w", err)
		}
		return c.file, nil
	}
	if _, err := c.buf.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind content spool: %w", err)
	}
	return c.buf, nil
}

// Close removes the temp-file spool if one was created
func (c *Content) Close() error {
	if c.file == nil {
		return nil
	}
	name := c.file.Name()
	if err := c.file.Close(); err != nil {
		os.Remove(name)
		return err
	}
	return os.Remove(name)
}

// ResolveContent computes the content fingerprint of an upload stream.
// The fingerprint depends on the bytes alone: the same content yields the
// same fingerprint for any owner, filename, or media type. The stream is
// read incrementally and never assumed to fit in memory.
func ResolveContent(r io.Reader) (*Content, error) {
	if r == nil {
		return nil, ErrInvalidInput
	}

	hasher := sha256.New()

	// Spool to memory first; fall back to a temp file once the upload
	// outgrows the limit.
	var memBuf bytes.Buffer
	n, err := io.Copy(io.MultiWriter(hasher, &memBuf), io.LimitReader(r, memorySpoolLimit))
	if err != nil {
		return nil, fmt.Errorf("hash upload content: %w", err)
	}

	if n < memorySpoolLimit {
		return &Content{
			Fingerprint: hex.EncodeToString(hasher.Sum(nil)),
			Size:        n,
			buf:         bytes.NewReader(memBuf.Bytes()),
		}, nil
	}

	// Large upload: move what we have to disk and stream the rest.
	tmp, err := os.CreateTemp("", "filevault-upload-*")
	if err != nil {
		return nil, fmt.Errorf("create upload spool: %w", err)
	}

	if _, err := tmp.Write(memBuf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("spool upload content: %w", err)
	}

	rest, err := io.Copy(io.MultiWriter(hasher, tmp), r)
	if err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("hash upload content: %w", err)
	}

	return &Content{
		Fingerprint: hex.EncodeToString(hasher.Sum(nil)),
		Size:        n + rest,
		file:        tmp,
	}, nil
}
