// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

//Package archive extracts setup bundles: tarballs compressed with gzip or xz.
//Free space is checked against the size recorded in the archive's trailer
//before anything is written.
package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	fp "path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"

	futil "github.com/pi-top/pi-top-Offline-Updates/pkg/fileutil"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/log"
)

var (
	ENotEnoughSpace = errors.New("not enough free space")
	EExtraction     = errors.New("extraction failed")
)

// SpaceError reports the shortfall. Matches ENotEnoughSpace with errors.Is.
type SpaceError struct {
	Dir  string
	Need int64
	Free int64
}

func (e *SpaceError) Error() string {
	return fmt.Sprintf("%s: need %s, have %s", e.Dir, futil.ToMegs(e.Need), futil.ToMegs(e.Free))
}
func (e *SpaceError) Is(target error) bool { return target == ENotEnoughSpace }

// Receives a percentage in [0,100].
type ProgressFunc func(pct float64)

// replaced in tests
var freeSpace = futil.FreeSpace

// Extract unpacks archive into dest, calling onProgress after each entry
// with the percentage of entries done. A missing archive is not an error:
// the run may have started from an already-extracted bundle.
func Extract(archive, dest string, onProgress ProgressFunc) error {
	if !futil.Exists(archive) {
		log.Logf("archive %s not found, nothing to extract", archive)
		return nil
	}
	need, err := UncompressedSize(archive)
	if err != nil {
		return fmt.Errorf("%w: %s", EExtraction, err)
	}
	free := freeSpace(existingParent(dest))
	log.Logf("%s: %s uncompressed, %s free in %s", archive, futil.ToMegs(need), futil.ToMegs(free), dest)
	if free >= 0 && need > free {
		return &SpaceError{Dir: dest, Need: need, Free: free}
	}
	if err = os.MkdirAll(dest, 0755); err != nil {
		return fmt.Errorf("%w: %s", EExtraction, err)
	}

	total, err := countEntries(archive)
	if err != nil {
		return fmt.Errorf("%w: %s", EExtraction, err)
	}
	start := time.Now()
	done := 0
	err = walk(archive, func(hdr *tar.Header, r io.Reader) error {
		if err := writeEntry(dest, hdr, r); err != nil {
			return err
		}
		done++
		if onProgress != nil {
			onProgress(float64(done) * 100 / float64(total))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %s", EExtraction, err)
	}
	if total == 0 && onProgress != nil {
		onProgress(100)
	}
	log.Logf("extracted %d entries from %s in %s", done, archive, time.Since(start).Round(time.Millisecond))
	return nil
}

// Nearest dir at or above dir which exists; it is on the filesystem dir will
// be created on.
func existingParent(dir string) string {
	for {
		if futil.IsDir(dir) {
			return dir
		}
		parent := fp.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}

// Opens the decompressor matching the archive's magic bytes.
func open(archive string) (io.ReadCloser, error) {
	f, err := os.Open(archive)
	if err != nil {
		return nil, err
	}
	switch {
	case futil.IsGzip(archive):
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		return &stacked{Reader: gz, closers: []io.Closer{gz, f}}, nil
	case futil.IsXZ(archive):
		xr, err := xz.NewReader(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		return &stacked{Reader: xr, closers: []io.Closer{f}}, nil
	}
	f.Close()
	return nil, EFormat
}

type stacked struct {
	io.Reader
	closers []io.Closer
}

func (s *stacked) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func walk(archive string, fn func(hdr *tar.Header, r io.Reader) error) error {
	rc, err := open(archive)
	if err != nil {
		return err
	}
	defer rc.Close()
	tr := tar.NewReader(rc)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		// names are confined to dest by writeEntry
		if errors.Is(err, tar.ErrInsecurePath) && hdr != nil {
			err = nil
		}
		if err != nil {
			return err
		}
		if err = fn(hdr, tr); err != nil {
			return err
		}
	}
}

func countEntries(archive string) (n int, err error) {
	err = walk(archive, func(*tar.Header, io.Reader) error {
		n++
		return nil
	})
	return
}

// Resolves an entry name under dest, refusing names that escape it.
func target(dest, name string) (string, error) {
	clean := fp.Clean("/" + name)
	path := fp.Join(dest, clean)
	if path != fp.Clean(dest) && !strings.HasPrefix(path, fp.Clean(dest)+string(os.PathSeparator)) {
		return "", fmt.Errorf("entry %q escapes %s", name, dest)
	}
	return path, nil
}

// Refuses symlinks pointing outside dest, through which later entries could
// be written anywhere.
func checkLink(dest, path, linkname string) error {
	if fp.IsAbs(linkname) {
		return fmt.Errorf("symlink %s -> %s: absolute target", path, linkname)
	}
	resolved := fp.Join(fp.Dir(path), linkname)
	if resolved != fp.Clean(dest) && !futil.IsWithin(dest, resolved) {
		return fmt.Errorf("symlink %s -> %s escapes %s", path, linkname, dest)
	}
	return nil
}

func writeEntry(dest string, hdr *tar.Header, r io.Reader) error {
	path, err := target(dest, hdr.Name)
	if err != nil {
		return err
	}
	mode := os.FileMode(hdr.Mode).Perm()
	switch hdr.Typeflag {
	case tar.TypeDir:
		if err = os.MkdirAll(path, 0755); err != nil {
			return err
		}
		return os.Chmod(path, mode|0700)
	case tar.TypeReg, tar.TypeRegA:
		if err = os.MkdirAll(fp.Dir(path), 0755); err != nil {
			return err
		}
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
		if err != nil {
			return err
		}
		if _, err = io.Copy(f, r); err != nil {
			f.Close()
			return err
		}
		if err = f.Close(); err != nil {
			return err
		}
		if err = os.Chmod(path, mode); err != nil {
			return err
		}
		return os.Chtimes(path, hdr.ModTime, hdr.ModTime)
	case tar.TypeSymlink:
		if err = checkLink(dest, path, hdr.Linkname); err != nil {
			return err
		}
		if err = os.MkdirAll(fp.Dir(path), 0755); err != nil {
			return err
		}
		_ = os.Remove(path)
		return os.Symlink(hdr.Linkname, path)
	case tar.TypeLink:
		old, err := target(dest, hdr.Linkname)
		if err != nil {
			return err
		}
		_ = os.Remove(path)
		return os.Link(old, path)
	default:
		log.Logf("skipping %s: unsupported tar entry type %c", hdr.Name, hdr.Typeflag)
	}
	return nil
}
