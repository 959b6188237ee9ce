// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package testlog

import (
	"testing"

	"github.com/pi-top/pi-top-Offline-Updates/pkg/log"
)

func TestCapture(t *testing.T) {
	tlog := NewTestLog(t, true, false)
	log.Logf("step %d: extract", 1)
	log.Msgf("Extracting...")
	log.Logf("step %d: update", 2)
	log.Msg("50% done")
	tlog.LinesMustMatch(FilterLogPfx("step"), []string{"LOG:step 1: extract", "LOG:step 2: update"})
	if msg, lg, _ := tlog.Counts(); msg != 2 || lg != 2 {
		t.Errorf("counts: msg=%d log=%d", msg, lg)
	}
}

func TestFilters(t *testing.T) {
	in := []string{"MSG:hello", "LOG:abc", "LOG:xyz", "other"}
	for _, td := range []struct {
		name string
		f    LineFilterer
		want int
	}{
		{"msg", FilterMsg(), 1},
		{"log", FilterLog(), 2},
		{"pfx", FilterLogPfx("a"), 1},
		{"re", FilterRe("^(MSG|LOG):"), 3},
		{"and", FilterAnd(FilterLog(), FilterRe("z$")), 1},
		{"or", FilterOr(FilterMsg(), FilterPfx("other")), 2},
	} {
		n := 0
		for _, l := range in {
			if td.f(l) {
				n++
			}
		}
		if n != td.want {
			t.Errorf("%s: want %d got %d", td.name, td.want, n)
		}
	}
}

func TestCleaners(t *testing.T) {
	c := TrimAnd(TrimToIdx(4), TrimFromSeq(" ("))
	if got := c("LOG:copied /a (12 bytes)"); got != "copied /a" {
		t.Errorf("got %q", got)
	}
	if got := TrimToIdx(10)("short"); got != "" {
		t.Errorf("got %q", got)
	}
}
