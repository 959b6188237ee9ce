// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package apt applies package updates from a repository shipped inside the
// setup bundle. apt is pointed at the bundle through a transient source list
// which exists only while apt-get runs.
package apt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pi-top/pi-top-Offline-Updates/pkg/log"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/runner"
)

const DefaultTimeout = time.Hour

var EUpdate = errors.New("update failed")

// Updater runs apt-get against one offline repository.
type Updater struct {
	Runner     runner.Runner
	Repo       string        //bundle updates directory
	SourceFile string        //defaults to DefaultSourceFile
	Timeout    time.Duration //per apt-get invocation; defaults to DefaultTimeout

	// Called with apt's overall percentage for each progress line.
	OnProgress func(pct float64)
	// Called for each error reported by apt, and for each line on stderr.
	// apt may recover, so these do not abort the run.
	OnError func(msg string)
}

// Update refreshes package lists from the offline repository.
func (u *Updater) Update(ctx context.Context) error {
	return u.aptGet(ctx, "update")
}

// Upgrade performs a full dist-upgrade.
func (u *Updater) Upgrade(ctx context.Context) error {
	return u.aptGet(ctx, "dist-upgrade", "-y")
}

// UpgradePackage upgrades only the named package, if installed.
func (u *Updater) UpgradePackage(ctx context.Context, pkg string) error {
	return u.aptGet(ctx, "install", "--only-upgrade", "-y", pkg)
}

func (u *Updater) aptGet(ctx context.Context, args ...string) error {
	src := &Source{Repo: u.Repo, File: u.SourceFile}
	if src.File == "" {
		src.File = DefaultSourceFile
	}
	if err := src.Acquire(); err != nil {
		return err
	}
	defer src.Release()

	timeout := u.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	args = append(args, src.Options()...)
	args = append(args, "-o", "APT::Status-Fd=1")
	cmd := runner.Cmd{
		Name:    "apt-get",
		Args:    args,
		Env:     []string{"DEBIAN_FRONTEND=noninteractive"},
		Timeout: timeout,
		Stdout:  u.handleStatus,
		Stderr:  u.handleStderr,
	}
	log.Logf("Executing '%s' with timeout %s", cmd, timeout)
	res, err := u.Runner.Run(ctx, cmd)
	if err != nil {
		return fmt.Errorf("%w: %w", EUpdate, err)
	}
	log.Logf("apt-get %s exited with code %d", args[0], res.ExitCode)
	return nil
}

func (u *Updater) handleStatus(line string) {
	log.Logf("apt: %s", line)
	st, ok := ParseStatus(line)
	if !ok {
		return
	}
	switch st.Kind {
	case KindPackage, KindDownload:
		if u.OnProgress != nil {
			u.OnProgress(st.Percent)
		}
	case KindError:
		if u.OnProgress != nil {
			u.OnProgress(st.Percent)
		}
		if u.OnError != nil {
			u.OnError(st.Description)
		}
	}
}

func (u *Updater) handleStderr(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	log.Logf("apt stderr: %s", line)
	if u.OnError != nil {
		u.OnError(line)
	}
}

// Version returns the installed version of pkg, or "" if it cannot be
// determined.
func Version(ctx context.Context, r runner.Runner, pkg string) string {
	out, err := runner.Output(ctx, r, runner.Cmd{
		Name:    "dpkg-query",
		Args:    []string{"--show", pkg},
		Timeout: 10 * time.Second,
	})
	var version string
	if err != nil {
		log.Logf("Error while getting version of '%s': %s", pkg, err)
	} else if f := strings.Fields(out); len(f) > 1 {
		version = f[1]
	}
	log.Logf("Package %s version is %s", pkg, version)
	return version
}
