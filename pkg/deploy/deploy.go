// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package deploy copies the bundle's file tree onto the system and runs the
// bundle's scripts. Copying continues to the end of the tree; scripts stop at
// the first failure, since later scripts may depend on earlier ones.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"os"
	fp "path/filepath"
	"sort"
	"time"

	futil "github.com/pi-top/pi-top-Offline-Updates/pkg/fileutil"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/log"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/runner"
)

var (
	ECopy    = errors.New("copying files failed")
	EScripts = errors.New("running scripts failed")
)

const (
	DefaultChmodTimeout  = 10 * time.Second
	DefaultScriptTimeout = 10 * time.Minute
)

// CopyFiles copies every regular file under src to the same relative path
// under root. A missing src is not an error. onProgress receives the
// percentage of files copied, after each file.
func CopyFiles(src, root string, onProgress func(pct float64)) error {
	if !futil.IsDir(src) {
		log.Logf("No files to copy; skipping...")
		return nil
	}
	log.Logf("Copying files from %s to %s", src, root)
	err := futil.CopyTree(src, root, func(rel string, done, total int) {
		if onProgress != nil {
			onProgress(float64(done) * 100 / float64(total))
		}
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ECopy, err)
	}
	return nil
}

// Scripts runs the scripts in a bundle's scripts directory.
type Scripts struct {
	Runner        runner.Runner
	ChmodTimeout  time.Duration
	ScriptTimeout time.Duration
}

// List returns the scripts in dir, sorted by name. Subdirectories are
// skipped.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Run makes each script executable and runs it, in lexical order, stopping
// at the first failure. A missing or empty dir runs nothing.
func (s *Scripts) Run(ctx context.Context, dir string, onProgress func(pct float64)) error {
	if !futil.IsDir(dir) {
		log.Logf("No scripts to run; skipping...")
		return nil
	}
	names, err := List(dir)
	if err != nil {
		return fmt.Errorf("%w: %w", EScripts, err)
	}
	log.Logf("Running %d scripts from %s", len(names), dir)
	for i, name := range names {
		path := fp.Join(dir, name)
		log.Logf("Making script executable: %s ...", name)
		if _, err = s.Runner.Run(ctx, runner.Cmd{
			Name:    "chmod",
			Args:    []string{"+x", path},
			Timeout: orDefault(s.ChmodTimeout, DefaultChmodTimeout),
		}); err != nil {
			return fmt.Errorf("%w: %s: %w", EScripts, name, err)
		}
		log.Logf("Executing script: %s ...", name)
		res, err := s.Runner.Run(ctx, runner.Cmd{
			Name:    path,
			Dir:     dir,
			Timeout: orDefault(s.ScriptTimeout, DefaultScriptTimeout),
			Stdout:  func(l string) { log.Logf("%s: %s", name, l) },
			Stderr:  func(l string) { log.Logf("%s: %s", name, l) },
		})
		if err != nil {
			return fmt.Errorf("%w: %s: %w", EScripts, name, err)
		}
		log.Logf("%s exited with code %d", name, res.ExitCode)
		if onProgress != nil {
			onProgress(float64(i+1) * 100 / float64(len(names)))
		}
	}
	return nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}
