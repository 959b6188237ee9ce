// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package log is the logging mechanism shared by every stage of the setup
// pipeline. Events go to one or more sinks: the console, a file, journald,
// or the status screen.
//
// Two kinds of event exist. Msgf is for short, non-technical text that may be
// shown on the device's screen; Logf is for everything else. Until a sink is
// added, events are retained in memory so they can be replayed into sinks
// added later on.
package log

import (
	"fmt"
	"os"

	"github.com/pi-top/pi-top-Offline-Updates/pkg/log/flags"
)

var logPrefix string

// Sets the log prefix, used in the file name of file logs. Must be set before
// calling AddFileLog().
func SetPrefix(pfx string) {
	logPrefix = pfx
}

// Gets the log prefix
func GetPrefix() string { return logPrefix }

// Msgf is for messages suitable for display to the user. Short,
// non-technical. Keep them infrequent: the screen is small and the user needs
// time to read each one.
func Msgf(f string, va ...interface{}) { FlaggedLogf(flags.EndUser, f, va...) }

// See Msgf
func Msg(message string) { Msgf("%s", message) }

// Logf is for technical or trivial messages. Never shown on the screen.
func Logf(f string, va ...interface{}) { FlaggedLogf(flags.NA, f, va...) }

// See Logf
func Logln(va ...interface{}) { Logf("%s", fmt.Sprintln(va...)) }

// See Logf
func Log(message string) { Logf("%s", message) }

// If the log stack includes a memLog, this writes all of its content to stderr.
// no-op otherwise.
func DumpStderr() {
	l := FindInStack(MemLogIdent)
	if l != nil {
		ml := l.(*memLog)
		for _, e := range ml.Entries() {
			fmt.Fprintln(os.Stderr, e.String())
		}
	}
}
