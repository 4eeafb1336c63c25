package crates

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	name string
	body string
	typ  byte
}

func crateArchive(t *testing.T, entries []entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, e := range entries {
		typ := e.typ
		if typ == 0 {
			typ = tar.TypeReg
		}
		hdr := &tar.Header{Name: e.name, Mode: 0644, Size: int64(len(e.body)), Typeflag: typ}
		if typ == tar.TypeDir {
			hdr.Mode, hdr.Size = 0755, 0
		}
		require.NoError(t, tw.WriteHeader(hdr))
		if typ == tar.TypeReg {
			_, err := tw.Write([]byte(e.body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

var helloEntries = []entry{
	{name: "hello-derive-1.2.0/", typ: tar.TypeDir},
	{name: "hello-derive-1.2.0/Cargo.toml", body: "[lib]\nproc-macro = true\n"},
	{name: "hello-derive-1.2.0/src/lib.rs", body: "extern crate proc_macro;\n"},
}

func newDownloadServer(t *testing.T, data []byte) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.URL.Path != "/hello-derive/hello-derive-1.2.0.crate" {
			http.NotFound(w, r)
			return
		}
		w.Write(data)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestFetcher_DownloadsThenUsesCache(t *testing.T) {
	data := crateArchive(t, helloEntries)
	srv, hits := newDownloadServer(t, data)
	cache := t.TempDir()
	f := NewFetcher(cache, srv.URL, time.Second)
	v := Version{Name: "hello-derive", Vers: "1.2.0", Checksum: checksum(data)}

	for i := 0; i < 2; i++ {
		src, err := f.Fetch(context.Background(), v)
		require.NoError(t, err)

		assert.Equal(t, filepath.Join(src.Dir, "hello-derive-1.2.0"), src.Root)
		lib, err := os.ReadFile(filepath.Join(src.Root, "src", "lib.rs"))
		require.NoError(t, err)
		assert.Equal(t, "extern crate proc_macro;\n", string(lib))

		require.NoError(t, src.Remove())
		assert.NoDirExists(t, src.Dir)
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(hits), "second fetch is served from the cache")
	assert.FileExists(t, filepath.Join(cache, "hello-derive-1.2.0.crate"))
	f.client.CloseIdleConnections()
}

func TestFetcher_ChecksumMismatch(t *testing.T) {
	data := crateArchive(t, helloEntries)
	srv, _ := newDownloadServer(t, data)
	cache := t.TempDir()
	f := NewFetcher(cache, srv.URL, time.Second)

	_, err := f.Fetch(context.Background(), Version{Name: "hello-derive", Vers: "1.2.0", Checksum: "deadbeef"})
	assert.ErrorIs(t, err, ErrChecksum)
	assert.NoFileExists(t, filepath.Join(cache, "hello-derive-1.2.0.crate"))
	f.client.CloseIdleConnections()
}

func TestFetcher_DownloadStatusIsFatal(t *testing.T) {
	srv, _ := newDownloadServer(t, nil)
	f := NewFetcher(t.TempDir(), srv.URL, time.Second)

	_, err := f.Fetch(context.Background(), Version{Name: "other", Vers: "0.1.0"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	f.client.CloseIdleConnections()
}

func TestFetcher_RejectsEscapingEntries(t *testing.T) {
	for _, name := range []string{"../evil.rs", "pkg/../../evil.rs", "/etc/evil"} {
		t.Run(name, func(t *testing.T) {
			cache := t.TempDir()
			data := crateArchive(t, []entry{{name: name, body: "x"}})
			require.NoError(t, os.WriteFile(filepath.Join(cache, "bad-0.1.0.crate"), data, 0644))

			f := NewFetcher(cache, "http://127.0.0.1:0", time.Second)
			_, err := f.Fetch(context.Background(), Version{Name: "bad", Vers: "0.1.0"})
			assert.Error(t, err)
		})
	}
}

func TestFetcher_RootFallsBackToFirstDirectory(t *testing.T) {
	cache := t.TempDir()
	data := crateArchive(t, []entry{{name: "renamed/Cargo.toml", body: "[package]\n"}})
	require.NoError(t, os.WriteFile(filepath.Join(cache, "odd-0.1.0.crate"), data, 0644))

	src, err := NewFetcher(cache, "http://127.0.0.1:0", time.Second).Fetch(context.Background(), Version{Name: "odd", Vers: "0.1.0"})
	require.NoError(t, err)
	defer src.Remove()
	assert.Equal(t, filepath.Join(src.Dir, "renamed"), src.Root)
}
