// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// +build mage

/*
 build file for mage build system
 list tgts with
go run mage/magerunner.go -l

 build tgt with
go run mage/magerunner.go tgt
*/

package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	fp "path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
	"github.com/magefile/mage/target"

	"github.com/pi-top/pi-top-Offline-Updates/build/paths"
)

var Default = BuildAll

func BuildAll(ctx context.Context) error {
	fmt.Println("mage running")
	mg.CtxDeps(ctx, Bins.Arm, Bins.Arm64)
	return nil
}

type Bins mg.Namespace

//binaries for the build host, for manual testing
func (Bins) Host(ctx context.Context) error {
	mg.CtxDeps(ctx, workdir)
	return buildArch(ctx, nil, "")
}

//binaries for 32-bit pi-top OS
func (Bins) Arm(ctx context.Context) error {
	mg.CtxDeps(ctx, workdir)
	env := map[string]string{
		"GOOS":        "linux",
		"GOARCH":      "arm",
		"GOARM":       paths.GoArm,
		"CGO_ENABLED": "0",
	}
	return buildArch(ctx, env, "armhf")
}

//binaries for 64-bit pi-top OS
func (Bins) Arm64(ctx context.Context) error {
	mg.CtxDeps(ctx, workdir)
	env := map[string]string{
		"GOOS":        "linux",
		"GOARCH":      "arm64",
		"CGO_ENABLED": "0",
	}
	return buildArch(ctx, env, "arm64")
}

//tarball of binaries for each arch, for packaging
func (Bins) Txz(ctx context.Context) error {
	mg.CtxDeps(ctx, BuildAll)
	for _, arch := range []string{"armhf", "arm64"} {
		out := fp.Join(paths.WorkDir, paths.AppName+"_"+arch+".txz")
		args := []string{"cJf", out, "-C", fp.Join(paths.WorkDir, arch), "--owner=0", "--group=0", "."}
		if err := sh.Run("tar", args...); err != nil {
			return err
		}
	}
	return nil
}

//build every cmd into WorkDir/subdir, skipping if nothing changed
func buildArch(ctx context.Context, env map[string]string, subdir string) error {
	apps, err := paths.Pkglist(paths.Cmds...)
	if err != nil {
		return err
	}
	outDir := fp.Join(paths.WorkDir, subdir)
	if err = os.MkdirAll(outDir, 0755); err != nil {
		return err
	}
	for _, app := range apps {
		app = strings.TrimSpace(app)
		if app == "" {
			continue
		}
		out := fp.Join(outDir, fp.Base(app))
		deps, err := depDirs(ctx, app)
		if err != nil {
			return err
		}
		//check if anything is newer than out (if it exists)
		rebuild, err := target.Dir(out, deps...)
		if err != nil {
			return err
		}
		if !rebuild {
			fmt.Println("skipping build of", app)
			continue
		}
		for k, v := range env {
			fmt.Printf("%s=%s\n", k, v)
		}
		if err = build(env, "-tags", "release", "-o", out, app); err != nil {
			return err
		}
	}
	return nil
}

//build go code with desired flags
var build func(env map[string]string, args ...string) error

func init() {
	var args []string
	for _, a := range []string{
		"build",
		"-trimpath",
		"-ldflags", "-X 'main.buildId=${BUILD_INFO}' -s -w",
	} {
		args = append(args, os.ExpandEnv(a))
	}
	build = RunWCmd(nil, "go", args...)
}

//sh.RunCmd modified to call RunWith
func RunWCmd(env map[string]string, cmd string, args ...string) func(env2 map[string]string, args ...string) error {
	return func(env2 map[string]string, args2 ...string) error {
		var cenv map[string]string
		if env == nil {
			cenv = env2
		} else {
			cenv = env
			if env2 != nil {
				for k, v := range env2 {
					cenv[k] = v
				}
			}
		}
		return sh.RunWith(cenv, cmd, append(args, args2...)...)
	}
}

func workdir() {
	//ignore errors
	_ = os.Mkdir(paths.WorkDir, 0755)
}

//return paths to pkgs imported by given package, within this repo.
func depDirs(ctx context.Context, pkg string) ([]string, error) {
	list := exec.CommandContext(ctx, "go", "list", "-f", "{{.ImportPath}}\n{{range .Deps}}{{.}}\n{{end}}", pkg)
	list.Dir = paths.RepoRoot
	out, err := list.CombinedOutput()
	if err != nil {
		return nil, err
	}
	deps := []string{}
	for _, l := range strings.Split(string(out), "\n") {
		l = strings.TrimSpace(l)
		if strings.HasPrefix(l, paths.ImportPath) {
			deps = append(deps, strings.Replace(l, paths.ImportPath, paths.RepoRoot, 1))
		}
	}
	return deps, nil
}
