// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// +build ignore

/* runs mage against the targets in build/
usage:
go run mage/magerunner.go -l
go run mage/magerunner.go <target>

a -d flag in the args overrides the default build dir.
*/

package main

import (
	"os"
	fp "path/filepath"
	"runtime"

	"github.com/magefile/mage/mage"
)

func main() {
	args := os.Args[1:]
	if !hasDir(args) {
		root := "."
		if _, self, _, ok := runtime.Caller(0); ok {
			root = fp.Dir(fp.Dir(self))
		}
		args = append([]string{"-d", fp.Join(root, "build"), "-w", root}, args...)
	}
	os.Exit(mage.ParseAndRun(os.Stdout, os.Stderr, os.Stdin, args))
}

func hasDir(args []string) bool {
	for _, a := range args {
		if a == "-d" || len(a) > 3 && a[:3] == "-d=" {
			return true
		}
	}
	return false
}
