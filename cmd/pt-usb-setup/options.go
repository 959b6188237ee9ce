// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package main

import (
	"fmt"
	"io"

	"github.com/spf13/pflag"
)

// Environment, set by the udev rule or unit starting this program. Survives
// the restart hand-off.
const (
	EnvMountPoint = "PT_USB_SETUP_MOUNT_POINT"
	EnvSkipDialog = "PT_USB_SETUP_SKIP_DIALOG"
	EnvSkipUpdate = "PT_USB_SETUP_SKIP_UPDATE"
)

type options struct {
	mountPoint string
	skipDialog bool
	skipUpdate bool
	configPath string
	wait       bool
	noUI       bool
	version    bool
	dumpConfig bool
}

// Flags override the environment. The mount point may also be given as the
// only argument, as a unit instance does.
func parseOptions(args []string, getenv func(string) string, stderr io.Writer) (*options, error) {
	o := &options{}
	fs := pflag.NewFlagSet("pt-usb-setup", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.mountPoint, "mount-point", getenv(EnvMountPoint), "mount point or extracted bundle dir (env "+EnvMountPoint+")")
	fs.BoolVar(&o.skipDialog, "skip-dialog", getenv(EnvSkipDialog) == "1", "start without asking for confirmation")
	fs.BoolVar(&o.skipUpdate, "skip-update", getenv(EnvSkipUpdate) == "1", "do not upgrade this program's own package before the system")
	fs.StringVar(&o.configPath, "config", defaultConfig, "application configuration file")
	fs.BoolVar(&o.wait, "wait", false, "wait for a bundle to appear at the mount point")
	fs.BoolVar(&o.noUI, "no-ui", false, "log progress instead of showing the status screen")
	fs.BoolVar(&o.version, "version", false, "print version and exit")
	fs.BoolVar(&o.dumpConfig, "dump-config", false, "print the effective configuration and exit")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	switch rest := fs.Args(); len(rest) {
	case 0:
	case 1:
		o.mountPoint = rest[0]
	default:
		return nil, fmt.Errorf("unexpected arguments: %v", rest[1:])
	}
	if o.mountPoint == "" && !o.version && !o.dumpConfig {
		return nil, fmt.Errorf("no mount point given; use --mount-point or %s", EnvMountPoint)
	}
	return o, nil
}
