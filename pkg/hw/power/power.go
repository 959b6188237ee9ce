// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

//Package power reboots the device once setup asks for it.
package power

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"golang.org/x/sys/unix"

	"github.com/pi-top/pi-top-Offline-Updates/pkg/log"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/runner"
)

// Settle is the pause before a direct reboot, letting logs reach disk.
var Settle = 2 * time.Second

// Replaced in tests.
var (
	syncFS = unix.Sync
	reboot = func() error { return unix.Reboot(unix.LINUX_REBOOT_CMD_RESTART) }
)

// Reboot asks systemd to reboot. Should that fail, filesystems are synced
// and the kernel is told to restart directly.
//
// May be called from a deferred function; a panic in progress is logged
// first, since rebooting masks it.
func Reboot(ctx context.Context, r runner.Runner) error {
	if x := recover(); x != nil {
		log.Logf("panic() caught before reboot: %v", x)
		stars := "***********************************************************"
		log.Logf("%s\nstack trace:\n%s\n%s", stars, debug.Stack(), stars)
	}
	log.Logf("rebooting")
	_, err := r.Run(ctx, runner.Cmd{
		Name:    "systemctl",
		Args:    []string{"--system", "reboot", "-q"},
		Timeout: 30 * time.Second,
	})
	if err == nil {
		return nil
	}
	log.Logf("systemctl reboot: %s", err)
	syncFS()
	time.Sleep(Settle)
	if rerr := reboot(); rerr != nil {
		return fmt.Errorf("reboot: %w", rerr)
	}
	return nil
}
