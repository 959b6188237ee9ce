// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package log_test

// This is package log_test, not log. Ensures that we expose enough functions
// to make testing possible from other packages.

import (
	"bytes"
	"os"
	fp "path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pi-top/pi-top-Offline-Updates/pkg/log"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/log/flags"
)

func TestMemLog(t *testing.T) {
	log.DefaultLogStack()
	defer log.DefaultLogStack()
	T, err := time.Parse("2006", "1999")
	if err != nil {
		t.Fatal(err)
	}
	log.Stack().AddEntry(log.LogEntry{
		Time:  T,
		Msg:   "interesting event",
		Flags: flags.EndUser,
	})
	entries := log.StoredEntries()
	if len(entries) != 1 {
		t.Fatal("wrong entries", entries)
	}
	want := "-- 19990101_000000 -- interesting event"
	got := entries[0].String()
	if want != got {
		t.Errorf("mem:\nwant %q\ngot  %q", want, got)
	}
}

func TestFileLog(t *testing.T) {
	log.DefaultLogStack()
	defer log.DefaultLogStack()
	T, err := time.Parse("2006", "1999")
	if err != nil {
		t.Fatal(err)
	}
	e := log.LogEntry{
		Time:  T,
		Msg:   "interesting event",
		Flags: flags.EndUser,
	}
	stack := log.Stack()
	stack.AddEntry(e)
	//this one must not make it into the file
	e.Time = T.Add(time.Minute)
	e.Msg = "sensitive event"
	e.Flags = flags.EndUser | flags.NotFile
	stack.AddEntry(e)

	tmp := t.TempDir()
	log.SetPrefix("gotest")
	defer log.SetPrefix("")
	_, err = log.AddFileLog(tmp)
	if err != nil {
		t.Fatal(err)
	}
	log.Finalize()
	fn, ok := log.GetAttr("Filename")
	if !ok {
		t.Fatal("no Filename attr")
	}
	if fp.Dir(fn.(string)) != tmp {
		t.Errorf("log file %s not in %s", fn, tmp)
	}
	buf, err := os.ReadFile(fn.(string))
	if err != nil {
		t.Fatal(err)
	}
	want := "-- 19990101_000000 -- interesting event\n"
	if string(buf) != want {
		t.Errorf("file:\nwant %q\ngot  %q", want, string(buf))
	}
}

func TestFileLogNoPrefix(t *testing.T) {
	log.DefaultLogStack()
	defer log.DefaultLogStack()
	log.SetPrefix("")
	if _, err := log.AddFileLog(t.TempDir()); err != log.EPrefix {
		t.Errorf("want EPrefix, got %v", err)
	}
}

func TestWriterLogFilters(t *testing.T) {
	log.DefaultLogStack()
	defer log.DefaultLogStack()
	var buf bytes.Buffer
	if err := log.AddWriterLog(flags.EndUser, &buf); err != nil {
		t.Fatal(err)
	}
	log.Logf("technical %d", 42)
	log.Msgf("Extracting %s", "bundle")
	log.Msg("100% done")
	out := buf.String()
	if strings.Contains(out, "technical") {
		t.Errorf("Logf leaked to EndUser sink: %q", out)
	}
	if !strings.Contains(out, "Extracting bundle") || !strings.Contains(out, "100% done") {
		t.Errorf("missing messages: %q", out)
	}
}
