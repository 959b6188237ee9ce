// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package runnertest provides a recording runner.Runner for tests. Commands
// are matched by key (see CmdKey); results may be scripted per key.
package runnertest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pi-top/pi-top-Offline-Updates/pkg/log"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/runner"
)

//represents a command in a Fake's response map
type Key string

//generates key for given command
func CmdKey(argv []string) Key {
	k := ""
	for _, arg := range argv {
		k += fmt.Sprintf("%s|", arg)
	}
	return Key(k)
}

// Response scripts the outcome for one key.
type Response struct {
	Stdout   []string      //fed to Cmd.Stdout, one line at a time
	Stderr   []string      //fed to Cmd.Stderr
	ExitCode int           //non-zero produces *runner.ExitError
	Err      error         //returned as-is if set; takes precedence over ExitCode
	Pause    time.Duration //sleep before returning
	RunCount int           //updated on each run
}

// Fake records every command and replays scripted Responses. Commands with
// no Response succeed with no output.
type Fake struct {
	mu        sync.Mutex
	calls     []runner.Cmd
	responses map[Key]*Response
	// if set, called for commands with no Response
	Default func(c runner.Cmd) Response
}

var _ runner.Runner = (*Fake)(nil)

func New() *Fake { return &Fake{responses: map[Key]*Response{}} }

// On scripts the response for argv.
func (f *Fake) On(argv []string, r Response) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[CmdKey(argv)] = &r
	return f
}

// Fail makes argv exit with status 1.
func (f *Fake) Fail(argv ...string) *Fake { return f.On(argv, Response{ExitCode: 1}) }

func (f *Fake) Run(ctx context.Context, c runner.Cmd) (runner.Result, error) {
	argv := c.Argv()
	log.Logf("Running %v...", argv)
	f.mu.Lock()
	f.calls = append(f.calls, c)
	r, ok := f.responses[CmdKey(argv)]
	var resp Response
	if ok {
		r.RunCount++
		resp = *r
	} else if f.Default != nil {
		resp = f.Default(c)
	}
	f.mu.Unlock()

	var out []string
	for _, l := range resp.Stdout {
		out = append(out, l)
		if c.Stdout != nil {
			c.Stdout(l)
		}
	}
	for _, l := range resp.Stderr {
		out = append(out, l)
		if c.Stderr != nil {
			c.Stderr(l)
		}
	}
	if resp.Pause > 0 {
		select {
		case <-time.After(resp.Pause):
		case <-ctx.Done():
		}
	}
	res := runner.Result{ExitCode: resp.ExitCode}
	if len(out) > 0 {
		res.Output = strings.Join(out, "\n") + "\n"
	}
	if resp.Err != nil {
		return res, resp.Err
	}
	if resp.ExitCode != 0 {
		return res, &runner.ExitError{Argv: argv, Code: resp.ExitCode, Output: res.Output}
	}
	return res, nil
}

// Calls returns a copy of the commands run so far.
func (f *Fake) Calls() []runner.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]runner.Cmd(nil), f.calls...)
}

// Lines returns each call as a space-joined command line.
func (f *Fake) Lines() []string {
	var lines []string
	for _, c := range f.Calls() {
		lines = append(lines, c.String())
	}
	return lines
}

// RunCount returns how many times argv was run.
func (f *Fake) RunCount(argv ...string) int {
	want := CmdKey(argv)
	n := 0
	for _, c := range f.Calls() {
		if CmdKey(c.Argv()) == want {
			n++
		}
	}
	return n
}
