// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package bundle

import (
	"bufio"
	"os"
	"strings"
)

const OSReleasePath = "/etc/os-release"

// Codename reads VERSION_CODENAME from an os-release file. Returns "" if the
// file or key is missing.
func Codename(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		k, v, ok := strings.Cut(strings.TrimSpace(sc.Text()), "=")
		if ok && k == "VERSION_CODENAME" {
			return strings.Trim(v, `"'`)
		}
	}
	return ""
}
