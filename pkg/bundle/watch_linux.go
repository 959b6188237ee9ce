// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package bundle

import (
	"context"
	"fmt"
	fp "path/filepath"

	"github.com/rjeczalik/notify"

	"github.com/pi-top/pi-top-Offline-Updates/pkg/log"
)

// Wait blocks until Validate succeeds for dir, or ctx is done. The dir must
// exist; fs events in it trigger re-validation. An archive found while it is
// still being written (created, but not yet closed or moved into place) is
// not returned until the write completes.
func (l *Locator) Wait(ctx context.Context, dir string) (*Bundle, error) {
	events := make(chan notify.EventInfo, 8)
	if err := notify.Watch(dir+"/...", events, notify.InCloseWrite, notify.InMovedTo, notify.Create); err != nil {
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}
	defer notify.Stop(events)

	//names of archives created since the watch began, and not yet closed
	writing := map[string]bool{}
	//check after the watch is set up, so nothing is missed in between
	if b, err := l.Validate(dir); err == nil {
		return b, nil
	}
	log.Msgf("Waiting for setup files...")
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case ei := <-events:
			log.Logf("bundle watch: %s", ei)
			switch ei.Event() {
			case notify.Create:
				if name := fp.Base(ei.Path()); l.glob.Match(name) {
					writing[name] = true
				}
				continue
			case notify.InCloseWrite, notify.InMovedTo:
				delete(writing, fp.Base(ei.Path()))
			}
			b, err := l.Validate(dir)
			if err != nil {
				continue
			}
			if writing[fp.Base(b.Archive)] {
				log.Logf("%s is still being written", b.Archive)
				continue
			}
			return b, nil
		}
	}
}
