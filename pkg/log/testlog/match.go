// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

//go:build !release
// +build !release

package testlog

import (
	"flag"
	"fmt"
	"os"
	fp "path/filepath"
	"strings"
)

//Filters log buffer, comparing remaining lines to want. Buffer is left empty.
//Assumes each entry is a single line.
func (tlog *TstLog) LinesMustMatch(lf LineFilterer, want []string) {
	tlog.t.Helper()
	tlog.LinesMustMatchCleaned(lf, nil, want)
}

//Like LinesMustMatch, but alters log lines before comparing to expected input
func (tlog *TstLog) LinesMustMatchCleaned(filterFn LineFilterer, cleanFn LineCleaner, want []string) bool {
	tlog.t.Helper()
	success, _ := tlog.linesMustMatchCleaned(filterFn, cleanFn, want)
	return success
}

func (tlog *TstLog) linesMustMatchCleaned(filterFn LineFilterer, cleanFn LineCleaner, want []string) (success bool, got []string) {
	tlog.t.Helper()
	tlog.Freeze()
	success = true
	if tlog.Buf == nil {
		tlog.t.Error("nil buffer")
		return false, nil
	}
	all := tlog.Buf.String()
	filtered := tlog.Filter(filterFn)
	if len(filtered) != len(want) {
		tlog.t.Errorf("len mismatch - got %d want %d", len(filtered), len(want))
		success = false
	}
	for i, l := range filtered {
		trimmed := l
		if cleanFn != nil {
			trimmed = cleanFn(l)
		}
		got = append(got, trimmed)
		if i < len(want) && trimmed != want[i] {
			tlog.t.Errorf("\n got %s\nwant %s\nraw[%d]=%s", trimmed, want[i], i, l)
			success = false
		}
	}
	if !success {
		tlog.t.Logf("got:\n%#v", got)
		tlog.t.Logf("wanted:\n%#v", want)
		if *DumpFull {
			tlog.t.Logf("all:\n%s", all)
		}
	}
	return
}

// UpdateGolden names golden files which may be rewritten. Test(s) still fail;
// re-run to verify.
//
//   go test ./pkg/pipeline -run TestRunMessages -updateGolden testdata/TestRunMessages.golden
var UpdateGolden = flag.String("updateGolden", "", "during testing, allow updating this golden file")

// DumpFull writes the complete log if the test fails.
var DumpFull = flag.Bool("dumpFull", false, "on failure, write out complete log")

// Like LinesMustMatchCleaned, but compares against testdata/<TestName>.golden.
// Use -updateGolden to create/update files; dir(s) must exist.
func (tlog *TstLog) MustMatchGoldenCleaned(filterFn LineFilterer, cleanFn LineCleaner) bool {
	tlog.t.Helper()
	fname := fp.Join("testdata", tlog.t.Name()+".golden")
	var updateGolden, goldenWildcard bool
	if *UpdateGolden != "" {
		goldenWildcard = strings.ContainsAny(*UpdateGolden, "*?")
		match, err := fp.Match(*UpdateGolden, fname)
		if err != nil {
			tlog.t.Fatalf("glob error: %s", err)
		}
		updateGolden = match
	}
	content, _ := os.ReadFile(fname)
	want := strings.Split(string(content), "\n")
	if last := len(want) - 1; want[last] == "" {
		want = want[:last]
	}
	success, got := tlog.linesMustMatchCleaned(filterFn, cleanFn, want)
	if updateGolden {
		if success && !goldenWildcard {
			tlog.t.Fatal("no change to golden file")
		}
		if len(got) == 0 {
			os.Remove(fname)
			return success
		}
		f, err := os.Create(fname)
		if err != nil {
			tlog.t.Fatal(err)
		}
		defer f.Close()
		for _, line := range got {
			fmt.Fprintln(f, line)
		}
	}
	return success
}
