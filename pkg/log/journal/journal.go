// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package journal is a StackableLogger forwarding entries to systemd-journald.
// pt-usb-setup runs as a systemd unit, so this is where its history ends up
// once the status screen is gone.
package journal

import (
	"fmt"
	"os"

	"github.com/coreos/go-systemd/v22/journal"

	"github.com/pi-top/pi-top-Offline-Updates/pkg/log"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/log/flags"
)

var ENoJournal = fmt.Errorf("journald socket not available")

// send is replaced in tests.
var send = journal.Send

// AddJournalLog adds a journal sink to the stack. Previous events are
// replayed. Identifier becomes SYSLOG_IDENTIFIER.
func AddJournalLog(identifier string) error {
	if !journal.Enabled() {
		return ENoJournal
	}
	return log.AddLogger(&journalLog{ident: identifier}, true)
}

type journalLog struct {
	ident string
	next  log.StackableLogger
}

var _ log.StackableLogger = (*journalLog)(nil)

// Priority maps entry flags to a journald priority.
func Priority(f flags.Flag) journal.Priority {
	switch {
	case f&flags.Fatal != 0:
		return journal.PriCrit
	case f&flags.EndUser != 0:
		return journal.PriNotice
	}
	return journal.PriInfo
}

func (jl *journalLog) AddEntry(e log.LogEntry) {
	if e.Flags&flags.NotJournal == 0 {
		vars := map[string]string{"SYSLOG_IDENTIFIER": jl.ident}
		if e.Flags&flags.EndUser != 0 {
			vars["PT_USB_SETUP_USER_MESSAGE"] = "1"
		}
		if err := send(e.Text(), Priority(e.Flags), vars); err != nil {
			fmt.Fprintf(os.Stderr, "journal: %s\n", err)
		}
	}
	if jl.next != nil {
		jl.next.AddEntry(e)
	}
}

func (jl *journalLog) ForwardTo(sl log.StackableLogger) {
	if jl.next == nil || sl == nil {
		jl.next = sl
	} else {
		panic("next already set")
	}
}

const JournalLogIdent = "journalLog"

func (*journalLog) Ident() string               { return JournalLogIdent }
func (jl *journalLog) Next() log.StackableLogger { return jl.next }

func (jl *journalLog) Finalize() {
	if jl.next != nil {
		jl.next.Finalize()
	}
}
