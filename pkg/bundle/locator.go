// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package bundle

import (
	"fmt"
	"os"
	fp "path/filepath"
	"sort"

	"github.com/gobwas/glob"

	"github.com/pi-top/pi-top-Offline-Updates/pkg/log"
)

var EInvalid = fmt.Errorf("no setup bundle found")

// Bundle is a validated bundle. Exactly one of Archive and Layout.Dir is set.
type Bundle struct {
	// path passed to Validate
	Root string
	// newest archive on the mount point, if the bundle is compressed
	Archive string
	// set if the bundle is already extracted
	Layout Layout
}

func (b *Bundle) Extracted() bool { return b.Archive == "" }

// Locator validates mount points and extraction dirs. Safe to call repeatedly;
// nothing is cached between calls.
type Locator struct {
	glob     glob.Glob
	pattern  string
	codename string
}

// NewLocator compiles the archive name pattern; empty means DefaultArchiveGlob.
func NewLocator(pattern, codename string) (*Locator, error) {
	if pattern == "" {
		pattern = DefaultArchiveGlob
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("archive pattern %q: %w", pattern, err)
	}
	return &Locator{glob: g, pattern: pattern, codename: codename}, nil
}

// Archives lists archives in dir matching the pattern, newest first.
func (l *Locator) Archives(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	type cand struct {
		path  string
		mtime int64
	}
	var found []cand
	for _, e := range entries {
		if e.IsDir() || !l.glob.Match(e.Name()) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		found = append(found, cand{fp.Join(dir, e.Name()), fi.ModTime().UnixNano()})
	}
	sort.SliceStable(found, func(i, j int) bool {
		if found[i].mtime == found[j].mtime {
			return found[i].path > found[j].path
		}
		return found[i].mtime > found[j].mtime
	})
	var out []string
	for _, c := range found {
		out = append(out, c.path)
	}
	return out
}

// Validate resolves path into a Bundle. path may be a mount point holding an
// archive, a dir containing an extracted setup folder, or the setup folder
// itself. Returns EInvalid if none of these apply.
func (l *Locator) Validate(path string) (*Bundle, error) {
	if archives := l.Archives(path); len(archives) > 0 {
		if len(archives) > 1 {
			log.Logf("found %d archives in %s, using newest: %s", len(archives), path, archives[0])
		}
		return &Bundle{Root: path, Archive: archives[0]}, nil
	}
	layout := l.Layout(path)
	if layout.Valid() {
		return &Bundle{Root: path, Layout: layout}, nil
	}
	if fp.Base(fp.Clean(path)) == SetupFolder {
		layout = l.Layout(fp.Dir(fp.Clean(path)))
		if layout.Valid() {
			return &Bundle{Root: path, Layout: layout}, nil
		}
	}
	return nil, fmt.Errorf("%w in %s (pattern %s)", EInvalid, path, l.pattern)
}

// Layout returns the layout for an extraction dir.
func (l *Locator) Layout(dir string) Layout {
	return Layout{Dir: dir, Codename: l.codename}
}
