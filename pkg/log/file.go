// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package log

import (
	"fmt"
	"os"
	fp "path/filepath"

	"github.com/pi-top/pi-top-Offline-Updates/pkg/log/flags"
)

type fileLog struct {
	f    *os.File
	next StackableLogger
}

var _ StackableLogger = (*fileLog)(nil)

var EPrefix = fmt.Errorf("log prefix is unset")

// AddFileLog adds a fileLog to the stack, named from GetPrefix() and the
// current time. Existing events are inserted. See also AddNamedFileLog.
func AddFileLog(dir string) (string, error) {
	prefix := GetPrefix()
	if prefix == "" {
		return "", EPrefix
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return AddNamedFileLog(fp.Join(dir, prefix+Timestamp()+".log"))
}

// AddNamedFileLog is like AddFileLog, with a caller-specified file name.
func AddNamedFileLog(fname string) (string, error) {
	f, err := os.OpenFile(fname, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", err
	}
	err = AddLogger(&fileLog{f: f}, true)
	if err == nil {
		err = SetAttr("Filename", fname)
	}
	if err != nil {
		f.Close()
		os.Remove(fname)
		return "", err
	}
	return fname, nil
}

func (fl *fileLog) AddEntry(e LogEntry) {
	if (e.Flags&flags.NotFile) == 0 && fl.f != nil {
		fmt.Fprintln(fl.f, e.String())
	}
	if fl.next != nil {
		fl.next.AddEntry(e)
	}
}

func (fl *fileLog) ForwardTo(sl StackableLogger) {
	if fl.next == nil || sl == nil {
		fl.next = sl
	} else {
		panic("next already set")
	}
}

const FileLogIdent = "fileLog"

func (fl *fileLog) Ident() string         { return FileLogIdent }
func (fl *fileLog) Next() StackableLogger { return fl.next }

func (fl *fileLog) Finalize() {
	if fl.f != nil {
		if err := fl.f.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "closing log file: %s\n", err)
		}
		fl.f = nil
	}
	if fl.next != nil {
		fl.next.Finalize()
	}
}

func LoggingToFile() bool {
	logStackMtx.Lock()
	defer logStackMtx.Unlock()
	return InStack(FileLogIdent)
}
