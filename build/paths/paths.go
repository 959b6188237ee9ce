// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// not for production use

// +build !release

package paths

import (
	"os/exec"
	fp "path/filepath"
	"strings"

	"github.com/magefile/mage/sh"

	"github.com/pi-top/pi-top-Offline-Updates/pkg/log"
)

//paths shared by jobs, as well as path-related utilty functions

//vars the user may wish to modify. override in another file.
var (
	// Name of the main binary and of the .deb it is shipped in.
	AppName = "pt-usb-setup"

	// GOARCH values for which release binaries are built. pi-top [3] runs
	// armhf, pi-top [4] and later may run either.
	Arches = []string{"arm", "arm64"}

	// GOARM used for 32-bit builds.
	GoArm = "7"
)

//other vars the user is less likely to want to modify
var (
	RepoRoot, ImportPath, WorkDir, ArtifactDir string

	// GoDirs - dirs containing code; limit go test, go vet and lint to these.
	GoDirs []string

	// pattern(s) suitable for 'go list' for the commands shipped on devices
	Cmds []string

	//path for local copy of linter
	LinterPath string

	//sample bundle, built by Bundle.Sample for manual testing
	SampleBundle string
)

func init() {
	var err error
	RepoRoot, err = repoRoot()
	if err != nil {
		log.Logf("Cannot determine repo root.")
	}
	WorkDir, err = workDir()
	if err != nil {
		log.Logf("Cannot determine workdir.")
	}

	cmd := exec.Command("go", "list", "-f", "{{.ImportPath}}", ".")
	cmd.Dir = RepoRoot
	out, err := cmd.Output()
	if err != nil {
		log.Logf("Cannot determine import path.")
	}
	ImportPath = strings.TrimSpace(string(out))

	ArtifactDir = fp.Join(WorkDir, "artifacts")

	GoDirs = []string{
		ImportPath + "/cmd/...",
		ImportPath + "/pkg/...",
	}
	Cmds = []string{ImportPath + "/cmd/..."}

	LinterPath = fp.Join(WorkDir, "golangci-lint")
	SampleBundle = fp.Join(WorkDir, "pi-top-usb-setup-sample.tar.gz")
}

//expands pattern via go list - note that pattern isn't a shell glob
func Pkglist(patterns ...string) ([]string, error) {
	args := []string{"list"}
	args = append(args, patterns...)
	out, err := sh.Output("go", args...)
	if err != nil {
		return nil, err
	}
	return strings.Split(out, "\n"), nil
}
