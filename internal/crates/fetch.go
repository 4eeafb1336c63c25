package crates

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"expandinator/internal/logging"
)

// ErrChecksum is returned when a downloaded archive does not match the
// checksum recorded in the index.
var ErrChecksum = errors.New("crate checksum mismatch")

// Fetcher obtains crate archives from a local cache or the registry's
// download endpoint and unpacks them.
type Fetcher struct {
	cacheDir    string
	downloadURL string
	client      *http.Client
}

// NewFetcher creates a fetcher. Downloaded archives are stored in cacheDir.
func NewFetcher(cacheDir, downloadURL string, timeout time.Duration) *Fetcher {
	return &Fetcher{
		cacheDir:    cacheDir,
		downloadURL: strings.TrimRight(downloadURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Source is an unpacked crate. Root is the crate directory inside Dir.
type Source struct {
	Dir  string
	Root string
}

// Remove deletes the unpacked tree.
func (s *Source) Remove() error {
	return os.RemoveAll(s.Dir)
}

// ArchiveName is the file name of a crate archive.
func ArchiveName(v Version) string {
	return v.Name + "-" + v.Vers + ".crate"
}

// Fetch unpacks v into a fresh temporary directory.
func (f *Fetcher) Fetch(ctx context.Context, v Version) (*Source, error) {
	archive, err := f.archive(ctx, v)
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "expandinator-"+v.Name+"-")
	if err != nil {
		return nil, fmt.Errorf("failed to create extraction directory: %w", err)
	}
	src := &Source{Dir: dir}
	if err := untar(archive, dir); err != nil {
		src.Remove()
		return nil, fmt.Errorf("failed to unpack %s: %w", ArchiveName(v), err)
	}

	root, err := crateRoot(dir, v.Name+"-"+v.Vers)
	if err != nil {
		src.Remove()
		return nil, err
	}
	src.Root = root
	logging.CratesDebug("unpacked %s into %s", ArchiveName(v), root)
	return src, nil
}

// archive returns the path of a cached archive, downloading it on a miss.
func (f *Fetcher) archive(ctx context.Context, v Version) (string, error) {
	path := filepath.Join(f.cacheDir, ArchiveName(v))
	if _, err := os.Stat(path); err == nil {
		logging.CratesDebug("cache hit %s", path)
		return path, nil
	}

	if err := os.MkdirAll(f.cacheDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create crate cache: %w", err)
	}
	if err := f.download(ctx, v, path); err != nil {
		return "", err
	}
	return path, nil
}

func (f *Fetcher) download(ctx context.Context, v Version, dest string) error {
	url := fmt.Sprintf("%s/%s/%s", f.downloadURL, v.Name, ArchiveName(v))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create download request: %w", err)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download of %s returned status %d", ArchiveName(v), resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return fmt.Errorf("failed to create download file: %w", err)
	}
	defer os.Remove(tmp.Name())

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(tmp, h), resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", ArchiveName(v), err)
	}

	if v.Checksum != "" {
		if sum := hex.EncodeToString(h.Sum(nil)); sum != v.Checksum {
			return fmt.Errorf("%s: %w (want %s, got %s)", ArchiveName(v), ErrChecksum, v.Checksum, sum)
		}
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("failed to store %s: %w", ArchiveName(v), err)
	}
	logging.Crates("downloaded %s (%d bytes) in %v", ArchiveName(v), n, time.Since(start))
	return nil
}

// untar extracts a gzipped tar archive into dir. Entries escaping dir are
// rejected; links and special files are skipped.
func untar(archive, dir string) error {
	file, err := os.Open(archive)
	if err != nil {
		return err
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return err
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		target, err := entryPath(dir, hdr.Name)
		if err != nil {
			return err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeEntry(target, tr, hdr.FileInfo().Mode().Perm()); err != nil {
				return err
			}
		default:
			logging.CratesDebug("skipping %s (type %c)", hdr.Name, hdr.Typeflag)
		}
	}
}

func entryPath(dir, name string) (string, error) {
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("archive entry %q is absolute", name)
	}
	target := filepath.Join(dir, name)
	rel, err := filepath.Rel(dir, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("archive entry %q escapes the extraction directory", name)
	}
	return target, nil
}

func writeEntry(path string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	if mode == 0 {
		mode = 0644
	}
	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode|0200)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// crateRoot returns dir/want when present, otherwise the single top-level
// directory of the archive.
func crateRoot(dir, want string) (string, error) {
	if info, err := os.Stat(filepath.Join(dir, want)); err == nil && info.IsDir() {
		return filepath.Join(dir, want), nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read extraction directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", fmt.Errorf("archive has no top-level directory")
}
