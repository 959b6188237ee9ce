// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package fileutil

import (
	"fmt"
	"io/fs"
	"os"
	fp "path/filepath"
	"sort"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/pi-top/pi-top-Offline-Updates/pkg/log"
)

// Return free space for FS containing dir, or -1 in the event of an error
func FreeSpace(dir string) int64 {
	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		log.Logf("error %s finding free space for %s", err, dir)
		return -1
	}
	return int64(st.Bavail) * int64(st.Bsize)
}

const oneM = 1024 * 1024

//human-readable size in MB
func ToMegs(b int64) string {
	return fmt.Sprintf("%.1fM", float64(b)/oneM)
}

// ListFiles returns the paths, relative to root, of all regular files in the
// tree rooted at root, sorted. Symlinks and special files are skipped.
func ListFiles(root string) ([]string, error) {
	var files []string
	err := fp.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := fp.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})
	sort.Strings(files)
	return files, err
}

// CopyTree copies every regular file under src to the same relative path under
// dest, creating parent dirs as needed. Called after each file, with the
// number copied so far and the total, computed up front.
func CopyTree(src, dest string, afterEach func(rel string, done, total int)) error {
	files, err := ListFiles(src)
	if err != nil {
		return err
	}
	for i, rel := range files {
		from := fp.Join(src, rel)
		to := fp.Join(dest, rel)
		if err = os.MkdirAll(fp.Dir(to), 0755); err != nil {
			return err
		}
		if err = CopyFile(from, to); err != nil {
			return fmt.Errorf("copying %s to %s: %w", from, to, err)
		}
		log.Logf("copied %s to %s", from, to)
		if afterEach != nil {
			afterEach(rel, i+1, len(files))
		}
	}
	return nil
}

// DirHasEntries returns true if dir exists and contains at least one entry.
func DirHasEntries(dir string) bool {
	entries, err := os.ReadDir(dir)
	return err == nil && len(entries) > 0
}

// IsDir returns true if path exists and is a directory.
func IsDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

// IsWithin returns true if path lies strictly inside dir. Both are cleaned;
// symlinks are not resolved.
func IsWithin(dir, path string) bool {
	rel, err := fp.Rel(fp.Clean(dir), fp.Clean(path))
	return err == nil && rel != "." && rel != ".." && !strings.HasPrefix(rel, "../")
}

// Exists returns true if path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

//IsMountpoint searches for given dir in /proc/self/mountinfo, returns true if found
func IsMountpoint(dir string) bool {
	mi, err := os.ReadFile("/proc/self/mountinfo")
	if err != nil {
		log.Logf("error %s", err)
		return false
	}
	return mountinfoHas(string(mi), fp.Clean(dir))
}

func mountinfoHas(mountinfo, dir string) bool {
	for _, line := range strings.Split(mountinfo, "\n") {
		line = strings.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		elements := strings.Split(line, " ")
		if len(elements) < 6 {
			//fields towards the end vary, but the first ones are fixed
			log.Logf("failed to parse mountinfo line, skipping: %s", line)
			continue
		}
		if elements[4] == dir {
			return true
		}
	}
	return false
}
