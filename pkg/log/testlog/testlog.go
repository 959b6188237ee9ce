// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

//go:build !release
// +build !release

// Package testlog hijacks the output of pkg/log for the duration of a test. By
// default output is passed through testing.T.Logf; it can be stored in a buffer
// instead, for comparison against expected lines or golden files.
package testlog

import (
	"bytes"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/pi-top/pi-top-Offline-Updates/pkg/log"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/log/flags"
)

//Conforms to log.StackableLogger. Constructed via NewTestLog().
type TstLog struct {
	t             *testing.T    //log here if Buf is nil
	Buf           *bytes.Buffer //if non-nil, Msgf()/Logf() output goes here
	MsgCount      int           //number of calls to Msgf()
	LogCount      int           //number of calls to Logf()
	FatalCount    int           //number of calls to Fatalf()
	FatalIsNotErr bool          //if true, do not call t.Errorf() for Fatalf()
	freeze        bool          //do not write any more to Buf
	stderr        bool          //also immediately write to stderr
	mu            sync.Mutex
}

//Returns a new TstLog. If bufferLog is true, logging goes to a buffer rather
//than passing directly to t.Log()/t.Error(). Do not share one TstLog between
//tests.
func NewTestLog(t *testing.T, bufferLog, stderr bool) (tlog *TstLog) {
	tlog = &TstLog{
		t:      t,
		stderr: stderr,
	}
	if bufferLog {
		tlog.Buf = new(bytes.Buffer)
	}
	log.NewLogStack(tlog)
	log.SetFatalAction(log.FailAction{Terminator: func() {}})
	t.Cleanup(tlog.Freeze)
	return
}

var _ log.StackableLogger = (*TstLog)(nil)

func (tlog *TstLog) AddEntry(e log.LogEntry) {
	tlog.mu.Lock()
	defer tlog.mu.Unlock()
	if tlog.freeze {
		return
	}
	switch e.Flags {
	case flags.EndUser:
		e.Msg = "MSG:" + e.Msg
	case flags.Fatal:
		e.Msg = ">>FATAL()<< " + e.Msg
	case flags.NA:
		e.Msg = "LOG:" + e.Msg
	}
	tlog.handleEvt(e)
}

const TstLogIdent = "tstLog"

func (*TstLog) Ident() string                      { return TstLogIdent }
func (tl *TstLog) Next() log.StackableLogger       { return nil }
func (*TstLog) Finalize()                          {}
func (tl *TstLog) ForwardTo(_ log.StackableLogger) {}

//caller holds mu
func (tlog *TstLog) handleEvt(evt log.LogEntry) {
	tlog.t.Helper()
	f := "@" + evt.Time.Format(stampMilli) + ": " + evt.Msg
	switch evt.Flags {
	case flags.EndUser:
		tlog.MsgCount++
	case flags.Fatal:
		tlog.FatalCount++
		if !tlog.FatalIsNotErr {
			tlog.t.Errorf(f, evt.Args...)
			return
		}
	default:
		tlog.LogCount++
	}
	if tlog.stderr {
		fmt.Fprintf(os.Stderr, f+"\n", evt.Args...)
	}
	if tlog.Buf != nil {
		fmt.Fprintf(tlog.Buf, evt.Msg+"\n", evt.Args...)
	} else {
		tlog.t.Logf(f, evt.Args...)
	}
}

const stampMilli = "15:04:05.000" //like time.StampMilli, without the date

//sometimes used in testing to inject separators
func (tlog *TstLog) Logf(f string, va ...interface{}) {
	tlog.t.Helper()
	tlog.AddEntry(log.LogEntry{
		Time: time.Now(),
		Msg:  f,
		Args: va,
	})
}

//Stops capture and restores the default log stack. Safe to call repeatedly;
//NewTestLog registers it with t.Cleanup.
func (tlog *TstLog) Freeze() {
	tlog.mu.Lock()
	if tlog.freeze {
		tlog.mu.Unlock()
		return
	}
	tlog.freeze = true
	tlog.mu.Unlock()
	log.DefaultLogStack()
	log.SetFatalAction(log.DefaultFatal)
}

// Counts returns MsgCount, LogCount and FatalCount under the lock.
func (tlog *TstLog) Counts() (msg, lg, fatal int) {
	tlog.mu.Lock()
	defer tlog.mu.Unlock()
	return tlog.MsgCount, tlog.LogCount, tlog.FatalCount
}
