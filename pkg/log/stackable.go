// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package log

import (
	"fmt"
	"sync"
	"time"

	"github.com/pi-top/pi-top-Offline-Updates/pkg/log/flags"
)

// A logger which can be chained/stacked with others. Events can go to a file,
// to the journal, to the status screen, or just into memory; callers of Logf
// and Msgf don't need to know which.
type StackableLogger interface {
	//Add an entry to the log. Must call the same method on the next log in the
	// stack (if not nil).
	AddEntry(e LogEntry)

	// Chain one logger to another. Must panic if called on a logger to which
	// another has already been chained, unless sl is nil.
	ForwardTo(sl StackableLogger)

	// Identifies the type of logger, so that the stack holds no duplicates.
	Ident() string
	// Returns next StackableLogger or nil
	Next() StackableLogger
	// Flushes outstanding entries and releases resources. Must call the same
	// method on the next log in the stack (if not nil).
	Finalize()
}

// Top logger on the stack. Anything accessing logStack or its successors
// must hold logStackMtx.
var logStack StackableLogger = &memLog{}

var logStackMtx sync.Mutex

type stackErr struct {
	Id string
}

func (se *stackErr) Error() string {
	return fmt.Sprintf("duplicate logger %s in stack", se.Id)
}

// Flushes data, closes files, etc
func Finalize() {
	logStackMtx.Lock()
	defer logStackMtx.Unlock()
	logStack.Finalize()
}

// Restores the log stack to initial state: existing logger(s) are finalized
// and replaced with a memLog.
func DefaultLogStack() { NewLogStack(&memLog{}) }

//Calls Finalize on existing logger(s), then sets newLog as the topmost logger.
func NewLogStack(newLog StackableLogger) {
	logStackMtx.Lock()
	defer logStackMtx.Unlock()
	if logStack != nil {
		logStack.Finalize()
	}
	logStack = newLog
	ClearAttrs()
}

// AddLogger adds a logger to the top of the stack. If addPrevious is true,
// events held by a memLog are replayed into it first.
//
// Users should prefer AddConsoleLog(), AddFileLog(), journal.AddJournalLog()
// and the like; this is the backend for those.
//
// The only possible error is a duplicate: a logger with the same Ident() is
// already in the stack.
func AddLogger(sl StackableLogger, addPrevious bool) error {
	logStackMtx.Lock()
	defer logStackMtx.Unlock()
	if err := checkDuplicate(sl, logStack); err != nil {
		return err
	}
	if addPrevious {
		addPreviousEvents(sl)
	}
	sl.ForwardTo(logStack)
	logStack = sl
	return nil
}

// Recursive. Called by AddLogger.
func checkDuplicate(newLogger, sl StackableLogger) error {
	if sl == nil {
		return nil
	}
	if newLogger.Ident() == sl.Ident() {
		return &stackErr{Id: sl.Ident()}
	}
	return checkDuplicate(newLogger, sl.Next())
}

// Remove a log with the given id from the stack
func RemoveLogger(id string) {
	logStackMtx.Lock()
	defer logStackMtx.Unlock()
	var prev StackableLogger
	for l := logStack; l != nil; l = l.Next() {
		if l.Ident() != id {
			prev = l
			continue
		}
		next := l.Next()
		l.ForwardTo(nil)
		l.Finalize()
		if prev == nil {
			logStack = next
			if logStack == nil {
				logStack = &memLog{}
			}
		} else {
			prev.ForwardTo(nil)
			prev.ForwardTo(next)
		}
		return
	}
}

// LogEntry is the record passed down the stack.
type LogEntry struct {
	Time  time.Time `json:"t"`
	Msg   string
	Args  []interface{} `json:",omitempty"`
	Flags flags.Flag    `json:",omitempty"`
}

// Backend of Logf(), Msgf(), Fatalf(), etc.
func FlaggedLogf(opts flags.Flag, f string, va ...interface{}) {
	logStackMtx.Lock()
	defer logStackMtx.Unlock()
	logStack.AddEntry(LogEntry{
		Time:  time.Now(),
		Flags: opts,
		Msg:   f,
		Args:  va,
	})
}

// Text returns the formatted message, without timestamp or marker.
func (le *LogEntry) Text() string {
	if len(le.Args) == 0 {
		return le.Msg
	}
	return fmt.Sprintf(le.Msg, le.Args...)
}

func (le *LogEntry) String() string {
	var div string
	switch {
	case le.Flags&flags.EndUser != 0:
		div = "-- "
	case le.Flags&flags.Fatal != 0:
		div = "!! "
	case le.Flags == 0:
		div = "*- "
	default:
		div = "?? "
	}
	return div + le.Time.Format(TimestampLayout) + " " + div + le.Text()
}

// Replays entries from any memLog in the stack into newlog. Caller holds
// logStackMtx.
func addPreviousEvents(newlog StackableLogger) {
	if _, isMem := newlog.(*memLog); isMem {
		return
	}
	ml, ok := FindInStack(MemLogIdent).(*memLog)
	if !ok {
		return
	}
	for _, e := range ml.Entries() {
		newlog.AddEntry(e)
	}
}

// Return true if a log in the stack matches given id
func InStack(id string) bool {
	return FindInStack(id) != nil
}

// Return StackableLogger matching id, or nil
func FindInStack(id string) StackableLogger {
	for l := logStack; l != nil; l = l.Next() {
		if l.Ident() == id {
			return l
		}
	}
	return nil
}
