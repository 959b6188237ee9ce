// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package bundle

import (
	"github.com/u-root/u-root/pkg/mount"

	futil "github.com/pi-top/pi-top-Offline-Updates/pkg/fileutil"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/log"
)

// Unmount lazily unmounts the USB drive once the archive has been extracted.
// Not an error if mountPoint isn't a mount point.
func Unmount(mountPoint string) error {
	if !futil.IsMountpoint(mountPoint) {
		log.Logf("%s is not a mount point, not unmounting", mountPoint)
		return nil
	}
	log.Logf("unmounting %s", mountPoint)
	return mount.Unmount(mountPoint, false, true)
}
