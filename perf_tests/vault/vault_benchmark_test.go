package vault_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"testing"

	"github.com/filevault/filevault/cmd/filevault/service"
	"github.com/filevault/filevault/common/blobstore"
)

func randomPayload(b *testing.B, size int) []byte {
	b.Helper()
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		b.Fatal(err)
	}
	return buf
}

// BenchmarkResolveContent_InMemory fingerprints payloads small enough to
// stay in the memory spool.
func BenchmarkResolveContent_InMemory(b *testing.B) {
	for _, size := range []int{4 << 10, 256 << 10, 4 << 20} {
		payload := randomPayload(b, size)
		b.Run(fmt.Sprintf("%dKB", size/1024), func(b *testing.B) {
			b.SetBytes(int64(size))
			for i := 0; i < b.N; i++ {
				c, err := service.ResolveContent(bytes.NewReader(payload))
				if err != nil {
					b.Fatal(err)
				}
				c.Close()
			}
		})
	}
}

// BenchmarkResolveContent_DiskSpool fingerprints a payload large enough to
// spill to a temp file.
func BenchmarkResolveContent_DiskSpool(b *testing.B) {
	payload := randomPayload(b, 16<<20)
	b.SetBytes(int64(len(payload)))
	for i := 0; i < b.N; i++ {
		c, err := service.ResolveContent(bytes.NewReader(payload))
		if err != nil {
			b.Fatal(err)
		}
		c.Close()
	}
}

// BenchmarkFSStore_PutOpen measures a write-then-read cycle against the
// filesystem blob backend.
func BenchmarkFSStore_PutOpen(b *testing.B) {
	store, err := blobstore.NewFSStore(b.TempDir())
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()
	payload := randomPayload(b, 1<<20)
	b.SetBytes(int64(len(payload)))

	for i := 0; i < b.N; i++ {
		key := fmt.Sprintf("%064d", i)
		if err := store.Put(ctx, key, bytes.NewReader(payload), int64(len(payload))); err != nil {
			b.Fatal(err)
		}
		rc, err := store.Open(ctx, key)
		if err != nil {
			b.Fatal(err)
		}
		if _, err := io.Copy(io.Discard, rc); err != nil {
			b.Fatal(err)
		}
		rc.Close()
	}
}
