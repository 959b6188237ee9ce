// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package runner

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pi-top/pi-top-Offline-Updates/pkg/log"
)

// MaxOutput caps the output retained in Result.
const MaxOutput = 64 * 1024

// Time between SIGTERM on deadline and SIGKILL, and the limit on waiting for
// output pipes held open by orphaned grandchildren.
var KillDelay = 5 * time.Second

// Exec runs commands on the host.
type Exec struct{}

var _ Runner = Exec{}

func (Exec) Run(ctx context.Context, c Cmd) (res Result, err error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }
	cmd.WaitDelay = KillDelay

	outR, outW := io.Pipe()
	errR, errW := io.Pipe()
	cmd.Stdout = outW
	cmd.Stderr = errW
	out := &capped{max: MaxOutput}

	//readers are separate from the goroutine waiting on the process, so a
	//blocked read can't starve timeout handling
	var readers errgroup.Group
	readers.Go(func() error { return scanLines(outR, c.Stdout, out) })
	readers.Go(func() error { return scanLines(errR, c.Stderr, out) })

	log.Logf("Running %v (timeout %s)...", cmd.Args, c.Timeout)
	runErr := cmd.Run()
	outW.Close()
	errW.Close()
	if rerr := readers.Wait(); rerr != nil {
		log.Logf("reading output of %v: %s", cmd.Args, rerr)
	}
	res.Output = out.String()
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}
	if runErr == nil {
		return res, nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		log.Logf("%v: timed out after %s", cmd.Args, c.Timeout)
		return res, &timeoutError{argv: cmd.Args, after: c.Timeout}
	}
	var ee *exec.ExitError
	if errors.As(runErr, &ee) {
		log.Logf("%v: exit status %d\noutput:\n%s", cmd.Args, res.ExitCode, res.Output)
		return res, &ExitError{Argv: cmd.Args, Code: res.ExitCode, Output: res.Output}
	}
	log.Logf("%v: %s", cmd.Args, runErr)
	return res, runErr
}

type timeoutError struct {
	argv  []string
	after time.Duration
}

func (e *timeoutError) Error() string {
	return ETimeout.Error() + ": " + e.after.String() + " " + join(e.argv)
}
func (e *timeoutError) Unwrap() error { return ETimeout }

func join(argv []string) string { return Cmd{Name: argv[0], Args: argv[1:]}.String() }

// Reads r line by line until EOF. Always drains r, so the writer never blocks.
func scanLines(r io.Reader, fn LineFunc, out *capped) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		out.WriteLine(line)
		if fn != nil {
			fn(line)
		}
	}
	err := sc.Err()
	if err != nil {
		_, _ = io.Copy(io.Discard, r)
	}
	return err
}

// Combined output buffer shared by both readers.
type capped struct {
	mu  sync.Mutex
	buf bytes.Buffer
	max int
}

func (c *capped) WriteLine(l string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.buf.Len()+len(l)+1 > c.max {
		return
	}
	c.buf.WriteString(l)
	c.buf.WriteByte('\n')
}

func (c *capped) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}
