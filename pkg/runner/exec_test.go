// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package runner

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pi-top/pi-top-Offline-Updates/pkg/log/testlog"
)

func needShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("no sh in PATH")
	}
}

func TestExecLines(t *testing.T) {
	needShell(t)
	testlog.NewTestLog(t, true, false)
	var stdout, stderr []string
	res, err := Exec{}.Run(context.Background(), Cmd{
		Name:    "sh",
		Args:    []string{"-c", "echo one; echo two; echo oops >&2"},
		Timeout: 10 * time.Second,
		Stdout:  func(l string) { stdout = append(stdout, l) },
		Stderr:  func(l string) { stderr = append(stderr, l) },
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, stdout)
	assert.Equal(t, []string{"oops"}, stderr)
	assert.Equal(t, 0, res.ExitCode)
	assert.Contains(t, res.Output, "two\n")
}

func TestExecExitCode(t *testing.T) {
	needShell(t)
	testlog.NewTestLog(t, true, false)
	res, err := Exec{}.Run(context.Background(), Cmd{Name: "sh", Args: []string{"-c", "exit 3"}})
	var ee *ExitError
	require.True(t, errors.As(err, &ee), "got %v", err)
	assert.Equal(t, 3, ee.Code)
	assert.Equal(t, 3, res.ExitCode)
}

func TestExecTimeout(t *testing.T) {
	needShell(t)
	testlog.NewTestLog(t, true, false)
	start := time.Now()
	_, err := Exec{}.Run(context.Background(), Cmd{
		Name:    "sh",
		Args:    []string{"-c", "exec sleep 30"},
		Timeout: 200 * time.Millisecond,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ETimeout), "got %v", err)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestParse(t *testing.T) {
	c, err := Parse("update-ca-certificates --fresh 'a b'", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "update-ca-certificates", c.Name)
	assert.Equal(t, []string{"--fresh", "a b"}, c.Args)
	assert.Equal(t, time.Minute, c.Timeout)

	_, err = Parse("   ", 0)
	assert.Equal(t, EEmpty, err)
	assert.True(t, strings.HasPrefix(Cmd{Name: "a", Args: []string{"b"}}.String(), "a b"))
}
