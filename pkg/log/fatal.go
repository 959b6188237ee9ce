// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package log

import (
	"os"
	"strings"

	"github.com/pi-top/pi-top-Offline-Updates/pkg/log/flags"
)

// Called after a fatal event has been logged. Could exit, reboot, or wait for
// the user to dismiss an error screen.
type FatalFunc func()
type PreFunc func(f string, va ...interface{})

// Actions to take when Fatalf() is called. The event itself is logged
// automatically.
type FailAction struct {
	// Prefix to add to message
	MsgPfx string
	// Runs before Finalize(), so the log is still writable.
	Pre PreFunc
	// Exits the process. Logs are no longer writable when this is called.
	Terminator FatalFunc
}

var fatalAction = DefaultFatal

// Sets up action to take when fatal event has been logged; see FailAction.
func SetFatalAction(act FailAction) { fatalAction = act }

//Default fatal action is to call os.Exit(1)
var DefaultFatal = FailAction{Terminator: DefaultFatalAction}

func DefaultFatalAction() {
	if strings.HasSuffix(os.Args[0], ".test") {
		panic("generic fatal called from test")
	}
	os.Exit(1)
}

// Like Msgf, but does not return. Behavior is modified by SetFatalAction().
func Fatalf(f string, va ...interface{}) {
	logStackMtx.Lock()
	unconfigured := logStack.Next() == nil && logStack.Ident() == MemLogIdent
	logStackMtx.Unlock()
	if unconfigured {
		//no sink configured for the process; don't lose the message
		AddConsoleLog(0)
		Log("Fatalf: logging unconfigured")
	}
	FlaggedLogf(flags.Fatal, fatalAction.MsgPfx+f, va...)
	if fatalAction.Pre != nil {
		fatalAction.Pre(fatalAction.MsgPfx+f, va...)
	}
	Finalize()
	fatalAction.Terminator()
}
