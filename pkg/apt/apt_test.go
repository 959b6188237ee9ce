// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package apt

import (
	"context"
	"errors"
	"os"
	fp "path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pi-top/pi-top-Offline-Updates/pkg/log/testlog"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/runner"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/runner/runnertest"
)

func mkRepo(t *testing.T) string {
	t.Helper()
	repo := fp.Join(t.TempDir(), "updates")
	require.NoError(t, os.MkdirAll(repo, 0755))
	require.NoError(t, os.WriteFile(fp.Join(repo, "Packages"), nil, 0644))
	return repo
}

func TestParseStatus(t *testing.T) {
	for _, tc := range []struct {
		line string
		ok   bool
		want Status
	}{
		{"pmstatus:vim:42.5:Installing vim", true, Status{KindPackage, "vim", 42.5, "Installing vim"}},
		{"dlstatus:1:10:Retrieving file 1 of 3", true, Status{KindDownload, "1", 10, "Retrieving file 1 of 3"}},
		{"error:libc6:50:dpkg: error: half-installed\n", true, Status{KindError, "libc6", 50, "dpkg: error: half-installed"}},
		{"pmconffile:/etc/x:80:'/etc/x' '/etc/x.dpkg-new' 1 1", true, Status{KindConffile, "/etc/x", 80, "'/etc/x' '/etc/x.dpkg-new' 1 1"}},
		{"Reading package lists...", false, Status{}},
		{"pmstatus:vim:NaNish:x", false, Status{}},
		{"media-change:x:1:y", false, Status{}},
	} {
		got, ok := ParseStatus(tc.line)
		assert.Equal(t, tc.ok, ok, tc.line)
		assert.Equal(t, tc.want, got, tc.line)
	}
}

func TestSourceLifecycle(t *testing.T) {
	testlog.NewTestLog(t, true, false)
	repo := mkRepo(t)
	src := &Source{Repo: repo, File: fp.Join(t.TempDir(), "offline.list")}
	require.NoError(t, os.WriteFile(src.File, []byte("stale"), 0644))

	require.NoError(t, src.Acquire())
	data, err := os.ReadFile(src.File)
	require.NoError(t, err)
	assert.Equal(t, "deb [trusted=yes] file:"+repo+" ./", string(data))

	src.Release()
	assert.NoFileExists(t, src.File)
	src.Release()
}

func TestNotAnAptRepository(t *testing.T) {
	testlog.NewTestLog(t, true, false)
	fake := runnertest.New()
	list := fp.Join(t.TempDir(), "offline.list")
	for _, repo := range []string{fp.Join(t.TempDir(), "absent"), t.TempDir()} {
		u := &Updater{Runner: fake, Repo: repo, SourceFile: list}
		err := u.Update(context.Background())
		assert.ErrorIs(t, err, ENotAnAptRepository)
	}
	assert.Empty(t, fake.Calls())
	assert.NoFileExists(t, list)
}

func TestUpdateCommand(t *testing.T) {
	testlog.NewTestLog(t, true, false)
	repo := mkRepo(t)
	list := fp.Join(t.TempDir(), "offline.list")
	fake := runnertest.New()
	sawSource := false
	fake.Default = func(c runner.Cmd) runnertest.Response {
		_, err := os.Stat(list)
		sawSource = err == nil
		return runnertest.Response{}
	}
	u := &Updater{Runner: fake, Repo: repo, SourceFile: list}
	require.NoError(t, u.Update(context.Background()))
	require.NoError(t, u.UpgradePackage(context.Background(), "pi-top-usb-setup"))
	require.NoError(t, u.Upgrade(context.Background()))

	opts := " -o Dir::Etc::sourcelist=" + list + " -o Dir::Etc::sourceparts=- -o APT::Get::List-Cleanup=0 -o APT::Status-Fd=1"
	want := []string{
		"apt-get update" + opts,
		"apt-get install --only-upgrade -y pi-top-usb-setup" + opts,
		"apt-get dist-upgrade -y" + opts,
	}
	if diff := cmp.Diff(want, fake.Lines()); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, sawSource)
	assert.NoFileExists(t, list)
	for _, c := range fake.Calls() {
		assert.Equal(t, []string{"DEBIAN_FRONTEND=noninteractive"}, c.Env)
		assert.Equal(t, DefaultTimeout, c.Timeout)
	}
}

func TestUpgradeStream(t *testing.T) {
	testlog.NewTestLog(t, true, false)
	fake := runnertest.New()
	fake.Default = func(runner.Cmd) runnertest.Response {
		return runnertest.Response{
			Stdout: []string{
				"Reading package lists...",
				"dlstatus:1:5:Retrieving file 1 of 2",
				"pmstatus:vim:40:Unpacking vim",
				"error:vim:60:conflicting files",
				"pmstatus:vim:100:Installed vim",
			},
			Stderr: []string{"W: something odd", ""},
		}
	}
	var progress []float64
	var errs []string
	u := &Updater{
		Runner:     fake,
		Repo:       mkRepo(t),
		SourceFile: fp.Join(t.TempDir(), "offline.list"),
		OnProgress: func(p float64) { progress = append(progress, p) },
		OnError:    func(m string) { errs = append(errs, m) },
	}
	require.NoError(t, u.Upgrade(context.Background()))
	assert.Equal(t, []float64{5, 40, 60, 100}, progress)
	assert.Equal(t, []string{"conflicting files", "W: something odd"}, errs)
}

func TestUpgradeFailure(t *testing.T) {
	testlog.NewTestLog(t, true, false)
	list := fp.Join(t.TempDir(), "offline.list")
	fake := runnertest.New()
	fake.Default = func(runner.Cmd) runnertest.Response { return runnertest.Response{ExitCode: 100} }
	u := &Updater{Runner: fake, Repo: mkRepo(t), SourceFile: list}

	err := u.Upgrade(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, EUpdate))
	var ee *runner.ExitError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, 100, ee.Code)
	assert.NoFileExists(t, list)
}

func TestVersion(t *testing.T) {
	testlog.NewTestLog(t, true, false)
	fake := runnertest.New()
	fake.On([]string{"dpkg-query", "--show", "pi-top-usb-setup"}, runnertest.Response{
		Stdout: []string{"pi-top-usb-setup\t0.4.2"},
	})
	fake.Fail("dpkg-query", "--show", "absent")
	ctx := context.Background()
	assert.Equal(t, "0.4.2", Version(ctx, fake, "pi-top-usb-setup"))
	assert.Equal(t, "", Version(ctx, fake, "absent"))
}
