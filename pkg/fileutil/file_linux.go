// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package fileutil

import (
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/pi-top/pi-top-Offline-Updates/pkg/log"
)

// Permission and special bits kept by CopyFile.
const copiedMode = os.ModePerm | os.ModeSetuid | os.ModeSetgid | os.ModeSticky

// Copy a file. Assumes any dirs have already been created. Copies mode,
// ownership and timestamps; ownership failures are logged, not returned.
func CopyFile(src, dest string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	return copyFileI(src, dest, info)
}

//like CopyFile; use when file has already been stat'd.
func copyFileI(src, dest string, info os.FileInfo) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer out.Close()
	n, err := io.Copy(out, in)
	if err != nil {
		out.Close()
		os.Remove(dest)
		return err
	}
	if n < info.Size() {
		return fmt.Errorf("copied %d bytes of %s, expected %d", n, src, info.Size())
	}
	//chown clears setuid/setgid, so it comes first
	if sys, ok := info.Sys().(*syscall.Stat_t); ok {
		if err = out.Chown(int(sys.Uid), int(sys.Gid)); err != nil {
			log.Logf("error %s setting uid/gid of %s", err, dest)
		}
	}
	if err = out.Chmod(info.Mode() & copiedMode); err != nil {
		return err
	}
	if err = out.Close(); err != nil {
		return err
	}
	return os.Chtimes(dest, info.ModTime(), info.ModTime())
}
