// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package paths contains functions used by mage. NOTE: to avoid
// chicken-and-egg problems with mage, its code cannot directly or indirectly
// import any packages with generated code.
package paths

import (
	"os"
	fp "path/filepath"
)

// Find repo root - from PT_USB_SETUP_ROOT env var, if set. Otherwise search
// parents for go.mod and choose the first dir found.
func repoRoot() (string, error) {
	rr := os.Getenv("PT_USB_SETUP_ROOT")
	if len(rr) > 0 {
		return rr, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(fp.Join(wd, "go.mod")); err == nil {
			break
		}
		wd = fp.Dir(wd)
		if len(wd) < 2 {
			wd = ""
			break
		}
	}
	if wd == "" {
		return "", os.ErrInvalid
	}
	err = os.Setenv("PT_USB_SETUP_ROOT", wd)
	if err != nil {
		return "", err
	}
	return wd, nil
}

// Get the working dir location from env PT_USB_SETUP_WORKDIR if set,
// otherwise use a dir adjacent to repo root, so that 'go test ./...' run from
// repo root never descends into build output.
func workDir() (string, error) {
	wd := os.Getenv("PT_USB_SETUP_WORKDIR")
	if len(wd) > 0 {
		return wd, nil
	}
	wd = fp.Join(fp.Dir(RepoRoot), fp.Base(RepoRoot)+"_work")
	err := os.Setenv("PT_USB_SETUP_WORKDIR", wd)
	if err != nil {
		return "", err
	}
	return wd, nil
}
