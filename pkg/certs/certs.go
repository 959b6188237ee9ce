// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package certs installs certificates shipped in the bundle. Each category
// is a subdirectory of the bundle's certificates directory, copied flat into
// the category's destination, after which the category's refresh command is
// run.
package certs

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

var EInstall = errors.New("certificate installation failed")

// Category says where one kind of certificate goes.
type Category struct {
	Path    string `toml:"path"`
	Command string `toml:"command"` //run after copying, if any file was copied
}

// Categories maps the name of a bundle subdirectory to its Category.
type Categories map[string]Category

const DefaultCommandTimeout = time.Minute

// DefaultCategories installs into the system CA store.
func DefaultCategories() Categories {
	return Categories{
		"ca-certificates": {
			Path:    "/usr/local/share/ca-certificates",
			Command: "update-ca-certificates",
		},
	}
}

// Names returns the category names, sorted. Categories are installed in this
// order.
func (c Categories) Names() []string {
	names := make([]string, 0, len(c))
	for n := range c {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

type Installer struct {
	Runner     runner.Runner
	Categories Categories
	Timeout    time.Duration //per command
}

// Regular files directly inside dir.
func regularFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			files = append(files, e.Name())
		}
	}
	return files, nil
}

// Install copies each category's certificates from dir. A missing dir, or a
// category with no subdirectory, is skipped.
func (in *Installer) Install(ctx context.Context, dir string, onProgress func(pct float64)) error {
	if !futil.IsDir(dir) {
		log.Logf("No certificates to install; skipping...")
		return nil
	}
	names := in.Categories.Names()
	for idx, name := range names {
		cat := in.Categories[name]
		src := fp.Join(dir, name)
		if !futil.IsDir(src) {
			continue
		}
		files, err := regularFiles(src)
		if err != nil {
			return fmt.Errorf("%w: %w", EInstall, err)
		}
		if len(files) == 0 {
			continue
		}
		if err = os.MkdirAll(cat.Path, 0755); err != nil {
			return fmt.Errorf("%w: %w", EInstall, err)
		}
		for i, f := range files {
			log.Logf("Copying certificate %s into %s ...", f, cat.Path)
			if err = futil.CopyFile(fp.Join(src, f), fp.Join(cat.Path, f)); err != nil {
				return fmt.Errorf("%w: %s: %w", EInstall, f, err)
			}
			if onProgress != nil {
				onProgress((float64(idx) + float64(i+1)/float64(len(files))) * 100 / float64(len(names)))
			}
		}
		if cat.Command == "" {
			continue
		}
		timeout := in.Timeout
		if timeout == 0 {
			timeout = DefaultCommandTimeout
		}
		cmd, err := runner.Parse(cat.Command, timeout)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", EInstall, name, err)
		}
		log.Logf("Running command '%s' ...", cmd)
		if _, err = in.Runner.Run(ctx, cmd); err != nil {
			return fmt.Errorf("%w: %s: %w", EInstall, name, err)
		}
	}
	return nil
}
