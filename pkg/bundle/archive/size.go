// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package archive

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	futil "github.com/pi-top/pi-top-Offline-Updates/pkg/fileutil"
)

var EFormat = fmt.Errorf("unsupported or corrupt archive")

// UncompressedSize reads the uncompressed size of a gzip or xz archive from
// the format's trailer, without decompressing.
//
// gzip stores the size mod 2^32 in the last 4 bytes (ISIZE), so archives with
// more than 4GiB of content are under-reported. xz stores exact sizes in the
// stream index.
func UncompressedSize(path string) (int64, error) {
	switch {
	case futil.IsGzip(path):
		tail, err := futil.ReadTail(path, 4)
		if err != nil {
			return 0, err
		}
		return int64(binary.LittleEndian.Uint32(tail)), nil
	case futil.IsXZ(path):
		f, err := os.Open(path)
		if err != nil {
			return 0, err
		}
		defer f.Close()
		fi, err := f.Stat()
		if err != nil {
			return 0, err
		}
		return xzSize(f, fi.Size())
	}
	return 0, fmt.Errorf("%s: %w", path, EFormat)
}

const (
	xzHeaderLen = 12
	xzFooterLen = 12
)

// Walks back through concatenated xz streams, summing the uncompressed sizes
// recorded in each stream's index.
// https://tukaani.org/xz/xz-file-format.txt sections 2.1.2, 4
func xzSize(r io.ReaderAt, size int64) (int64, error) {
	var total int64
	pos := size
	footer := make([]byte, xzFooterLen)
	for pos > 0 {
		if pos < xzHeaderLen+xzFooterLen {
			return 0, fmt.Errorf("xz: truncated stream: %w", EFormat)
		}
		if _, err := r.ReadAt(footer, pos-xzFooterLen); err != nil {
			return 0, err
		}
		if binary.LittleEndian.Uint32(footer[8:]) == 0 {
			//stream padding
			pos -= 4
			continue
		}
		if footer[10] != 'Y' || footer[11] != 'Z' {
			return 0, fmt.Errorf("xz: bad footer magic: %w", EFormat)
		}
		backward := (int64(binary.LittleEndian.Uint32(footer[4:8])) + 1) * 4
		idxStart := pos - xzFooterLen - backward
		if idxStart < xzHeaderLen {
			return 0, fmt.Errorf("xz: bad index size: %w", EFormat)
		}
		idx := make([]byte, backward)
		if _, err := r.ReadAt(idx, idxStart); err != nil {
			return 0, err
		}
		uncompressed, blocks, err := parseXzIndex(idx)
		if err != nil {
			return 0, err
		}
		total += uncompressed
		pos = idxStart - blocks - xzHeaderLen
		if pos < 0 {
			return 0, fmt.Errorf("xz: index exceeds file: %w", EFormat)
		}
	}
	return total, nil
}

// Returns total uncompressed size and the total size of the (padded) blocks.
func parseXzIndex(idx []byte) (uncompressed, blocks int64, err error) {
	if len(idx) == 0 || idx[0] != 0 {
		return 0, 0, fmt.Errorf("xz: bad index indicator: %w", EFormat)
	}
	rd := bytes.NewReader(idx[1:])
	count, err := binary.ReadUvarint(rd)
	if err != nil {
		return 0, 0, fmt.Errorf("xz: index: %w", EFormat)
	}
	for i := uint64(0); i < count; i++ {
		unpadded, err := binary.ReadUvarint(rd)
		if err != nil {
			return 0, 0, fmt.Errorf("xz: index record %d: %w", i, EFormat)
		}
		size, err := binary.ReadUvarint(rd)
		if err != nil {
			return 0, 0, fmt.Errorf("xz: index record %d: %w", i, EFormat)
		}
		uncompressed += int64(size)
		blocks += (int64(unpadded) + 3) &^ 3
	}
	return uncompressed, blocks, nil
}
