// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package log

import (
	"fmt"
	"io"
	"os"

	"github.com/pi-top/pi-top-Offline-Updates/pkg/log/flags"
)

type consoleLog struct {
	flags flags.Flag
	out   io.Writer
	next  StackableLogger
}

// Adds a consoleLog writing to stderr. Flags determine which events are
// shown: flags.NA for everything, flags.EndUser for Msgf() only.
func AddConsoleLog(f flags.Flag) {
	_ = AddWriterLog(f, os.Stderr)
}

// AddWriterLog is like AddConsoleLog but writes to w.
func AddWriterLog(f flags.Flag, w io.Writer) error {
	return AddLogger(&consoleLog{flags: f, out: w}, true)
}

var _ StackableLogger = (*consoleLog)(nil)

func (l *consoleLog) AddEntry(e LogEntry) {
	if l.flags == 0 || e.Flags&l.flags > 0 {
		fmt.Fprintln(l.out, e.String())
	}
	if l.next != nil {
		l.next.AddEntry(e)
	}
}

func (l *consoleLog) ForwardTo(sl StackableLogger) {
	if l.next == nil || sl == nil {
		l.next = sl
	} else {
		panic("next already set")
	}
}

const ConsoleLogIdent = "consoleLog"

func (*consoleLog) Ident() string           { return ConsoleLogIdent }
func (l *consoleLog) Next() StackableLogger { return l.next }

func (l *consoleLog) Finalize() {
	if l.next != nil {
		l.next.Finalize()
	}
}
