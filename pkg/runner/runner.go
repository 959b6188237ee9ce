// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package runner executes external commands for the setup stages. Every
// command is time-bounded; output is read line by line on dedicated
// goroutines and optionally handed to callbacks, so a stage can follow a
// status stream (apt) while the command runs.
//
// Stages depend on the Runner interface; tests substitute runnertest.Fake.
package runner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/shlex"
)

// LineFunc receives one line of output, without the trailing newline.
type LineFunc func(line string)

// Cmd describes one invocation.
type Cmd struct {
	Name    string
	Args    []string
	Env     []string      //added to the process environment
	Dir     string        //working dir; empty means inherit
	Timeout time.Duration //0 means no limit
	Stdout  LineFunc      //optional
	Stderr  LineFunc      //optional
}

// Argv returns name followed by args.
func (c Cmd) Argv() []string { return append([]string{c.Name}, c.Args...) }

func (c Cmd) String() string { return strings.Join(c.Argv(), " ") }

// Result of a completed invocation.
type Result struct {
	ExitCode int
	Output   string //combined stdout and stderr, truncated to MaxOutput
}

// Runner runs commands. A non-zero exit is reported as *ExitError; a missed
// deadline as an error wrapping ETimeout.
type Runner interface {
	Run(ctx context.Context, c Cmd) (Result, error)
}

var (
	ETimeout = fmt.Errorf("command timed out")
	EEmpty   = fmt.Errorf("empty command line")
)

// ExitError reports a command which ran but exited non-zero.
type ExitError struct {
	Argv   []string
	Code   int
	Output string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%v exited with status %d", e.Argv, e.Code)
}

// Parse splits a configured command line, shell-style, into a Cmd.
func Parse(line string, timeout time.Duration) (Cmd, error) {
	words, err := shlex.Split(line)
	if err != nil {
		return Cmd{}, fmt.Errorf("parsing %q: %w", line, err)
	}
	if len(words) == 0 {
		return Cmd{}, EEmpty
	}
	return Cmd{Name: words[0], Args: words[1:], Timeout: timeout}, nil
}

// Output runs c and returns its combined output, for short queries.
func Output(ctx context.Context, r Runner, c Cmd) (string, error) {
	res, err := r.Run(ctx, c)
	return res.Output, err
}
