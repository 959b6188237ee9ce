// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package main

import (
	"context"
	"fmt"

	"github.com/pi-top/pi-top-Offline-Updates/pkg/log"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/state"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/systemd"
)

// restart hands the run over to a new instance of the service, pointed at
// the extraction dir. The new instance skips confirmation and the check of
// this program's own package, which has just been upgraded.
func restart(ctx context.Context, units systemd.Manager, store *state.Store, template, dir string) error {
	if err := store.SetHandoff(state.Handoff{SkipDialog: true, SkipUpdate: true}); err != nil {
		//the instance arguments carry --skip-dialog regardless
		log.Logf("recording hand-off: %s", err)
	}
	unit := systemd.InstanceName(template, dir+" --skip-dialog")
	log.Logf("Starting %s", unit)
	if err := units.Start(ctx, unit); err != nil {
		return fmt.Errorf("restarting service: %w", err)
	}
	if !units.IsActive(ctx, unit) {
		return fmt.Errorf("restarting service: %s is not active", unit)
	}
	return nil
}
