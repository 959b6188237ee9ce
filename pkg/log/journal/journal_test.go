// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package journal

import (
	"testing"

	"github.com/coreos/go-systemd/v22/journal"

	"github.com/pi-top/pi-top-Offline-Updates/pkg/log"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/log/flags"
)

type sent struct {
	msg  string
	pri  journal.Priority
	vars map[string]string
}

func TestJournalLog(t *testing.T) {
	var got []sent
	send = func(msg string, pri journal.Priority, vars map[string]string) error {
		got = append(got, sent{msg, pri, vars})
		return nil
	}
	defer func() { send = journal.Send }()
	log.DefaultLogStack()
	defer log.DefaultLogStack()

	log.Logf("before %d", 1)
	if err := log.AddLogger(&journalLog{ident: "pt-usb-setup"}, true); err != nil {
		t.Fatal(err)
	}
	log.Msgf("hello %s", "user")
	log.FlaggedLogf(flags.NotJournal, "hidden")

	if len(got) != 2 {
		t.Fatalf("want 2 entries, got %d: %#v", len(got), got)
	}
	if got[0].msg != "before 1" || got[0].pri != journal.PriInfo {
		t.Errorf("replayed entry: %#v", got[0])
	}
	if got[1].msg != "hello user" || got[1].pri != journal.PriNotice {
		t.Errorf("user entry: %#v", got[1])
	}
	if got[1].vars["SYSLOG_IDENTIFIER"] != "pt-usb-setup" || got[1].vars["PT_USB_SETUP_USER_MESSAGE"] != "1" {
		t.Errorf("vars: %#v", got[1].vars)
	}
}

func TestPriority(t *testing.T) {
	for f, want := range map[flags.Flag]journal.Priority{
		flags.NA:                      journal.PriInfo,
		flags.EndUser:                 journal.PriNotice,
		flags.Fatal:                   journal.PriCrit,
		flags.Fatal | flags.EndUser:   journal.PriCrit,
		flags.NotFile | flags.EndUser: journal.PriNotice,
	} {
		if got := Priority(f); got != want {
			t.Errorf("%s: want %d got %d", f, want, got)
		}
	}
}
