// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package fileutil contains file and filesystem helpers used across the setup
// stages: metadata-preserving copies, archive signature checks, free space.
package fileutil

import (
	"bytes"
	"io"
	"os"
	"time"

	"github.com/pi-top/pi-top-Offline-Updates/pkg/log"
)

var (
	xzId   = []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00} // fd 37 7a 58 5a 00 -> xz
	gzipId = []byte{0x1f, 0x8b}
)

//return n bytes from beginning of file
func ReadHeader(fname string, n int64) (head []byte, err error) {
	f, err := os.Open(fname)
	if err != nil {
		return
	}
	defer f.Close()
	head, err = io.ReadAll(io.LimitReader(f, n))
	if err == nil && int64(len(head)) < n {
		return nil, io.ErrUnexpectedEOF
	}
	return
}

//return last n bytes of file
func ReadTail(fname string, n int64) ([]byte, error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if fi.Size() < n {
		return nil, io.ErrUnexpectedEOF
	}
	tail := make([]byte, n)
	_, err = f.ReadAt(tail, fi.Size()-n)
	return tail, err
}

func hasMagic(fname string, magic []byte) bool {
	head, err := ReadHeader(fname, int64(len(magic)))
	if err != nil {
		log.Logf("failed to read head bytes from %s: %s", fname, err)
		return false
	}
	return bytes.Equal(head, magic)
}

//checks for XZ header
func IsXZ(fname string) bool { return hasMagic(fname, xzId) }

//checks for gzip header
func IsGzip(fname string) bool { return hasMagic(fname, gzipId) }

// WaitFor waits for a file to appear or times out. Returns true if file appears,
// false otherwise. Sleeps .1s between checks.
func WaitFor(path string, timeout time.Duration) (found bool) {
	deadline := time.After(timeout)
	for {
		if _, err := os.Stat(path); err == nil {
			return true
		}
		select {
		case <-deadline:
			return false
		case <-time.After(100 * time.Millisecond):
		}
	}
}
