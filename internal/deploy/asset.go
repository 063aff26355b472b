package deploy

import (
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// zipEpoch is the modification time of every archive entry, so that the
// archive only depends on the file contents.
var zipEpoch = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

// Asset is a packaged deployment artifact.
type Asset struct {
	// Data is the zip archive.
	Data []byte

	// Hash is the hex encoded sha256 of Data.
	Hash string
}

// Key returns the object key of the asset below prefix.
func (a *Asset) Key(prefix string) string {
	return prefix + a.Hash + ".zip"
}

// Package zips the contents of dir. Entries are sorted and carry a fixed
// timestamp, so packaging the same files twice yields the same archive.
func Package(dir string) (*Asset, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("error reading asset: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("asset %s is not a directory", dir)
	}

	var files []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error walking asset: %w", err)
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("asset %s is empty", dir)
	}

	sort.Strings(files)

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	for _, path := range files {
		if err := addFile(w, dir, path); err != nil {
			return nil, err
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("error closing archive: %w", err)
	}

	sum := sha256.Sum256(buf.Bytes())

	return &Asset{
		Data: buf.Bytes(),
		Hash: hex.EncodeToString(sum[:]),
	}, nil
}

func addFile(w *zip.Writer, root, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		return err
	}

	header := &zip.FileHeader{
		Name:     filepath.ToSlash(rel),
		Method:   zip.Deflate,
		Modified: zipEpoch,
	}
	header.SetMode(info.Mode().Perm())

	dst, err := w.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("error adding %s: %w", rel, err)
	}

	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("error adding %s: %w", rel, err)
	}

	return nil
}
