// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	fp "path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pi-top/pi-top-Offline-Updates/pkg/apt"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/bundle"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/bundle/archive"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/log/testlog"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/network"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/state"
)

// records calls from every collaborator, in order
type recorder struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
}

func (r *recorder) add(call string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
	return r.fail[call]
}

func (r *recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type updater struct {
	*recorder
	onProgress func(float64)
}

func (u *updater) Update(context.Context) error  { u.onProgress(50); return u.add("update") }
func (u *updater) Upgrade(context.Context) error { u.onProgress(100); return u.add("upgrade") }
func (u *updater) UpgradePackage(_ context.Context, pkg string) error {
	return u.add("upgrade-package " + pkg)
}

func (r *recorder) SetLocale(_ context.Context, v string) error      { return r.add("locale " + v) }
func (r *recorder) SetWifiCountry(_ context.Context, v string) error { return r.add("country " + v) }
func (r *recorder) SetTimezone(_ context.Context, v string) error    { return r.add("timezone " + v) }
func (r *recorder) SetEmail(_ context.Context, v string) error       { return r.add("email " + v) }
func (r *recorder) SetKeyboard(_ context.Context, l, v string) error {
	return r.add("keyboard " + l + " " + v)
}

func (r *recorder) Connect(_ context.Context, n *network.Network) error {
	return r.add("connect " + n.SSID)
}

type certInstaller struct{ *recorder }

func (c certInstaller) Install(_ context.Context, dir string, onProgress func(float64)) error {
	onProgress(100)
	return c.add("certificates " + fp.Base(dir))
}

type scripts struct{ *recorder }

func (s scripts) Run(_ context.Context, dir string, onProgress func(float64)) error {
	onProgress(100)
	return s.add("scripts " + fp.Base(dir))
}

type onboarder struct{ *recorder }

func (o onboarder) Run(_ context.Context, onProgress func(float64)) (bool, error) {
	onProgress(100)
	return true, o.add("onboard")
}

type flags map[string]bool

func (f flags) Enabled(key string) bool { return f[key] }

func allStages() flags {
	return flags{
		state.InstallUpdate:       true,
		state.ConfigureDevice:     true,
		state.InstallCertificates: true,
		state.InstallNetwork:      true,
		state.CopyFiles:           true,
		state.RunScripts:          true,
		state.CompleteOnboarding:  true,
	}
}

const config = `{
	// comments are allowed
	"language": "en_GB.UTF-8",
	"time_zone": "Europe/London",
	"keyboard_layout": ["gb", ""],
	"email": null,
	"network": {"ssid": "home", "authentication": {"type": "WPA_PERSONAL", "data": {"password": "secret"}}},
}`

// writes an extracted bundle into dir
func writeBundle(t *testing.T, dir string) {
	t.Helper()
	setup := fp.Join(dir, bundle.SetupFolder)
	for _, d := range []string{bundle.FilesFolder, bundle.ScriptsFolder, bundle.UpdatesFolder, bundle.CertificatesFolder} {
		require.NoError(t, os.MkdirAll(fp.Join(setup, d), 0755))
	}
	require.NoError(t, os.WriteFile(fp.Join(setup, bundle.ConfigFile), []byte(config), 0644))
	require.NoError(t, os.WriteFile(fp.Join(setup, bundle.UpdatesFolder, "Packages"), nil, 0644))
}

type harness struct {
	*Orchestrator
	rec      *recorder
	versions []string
}

func newHarness(t *testing.T, b *bundle.Bundle, f flags) *harness {
	t.Helper()
	loc, err := bundle.NewLocator("", "")
	require.NoError(t, err)
	h := &harness{rec: &recorder{fail: map[string]error{}}, versions: []string{"1.0", "1.0"}}
	o := New(b, loc, f)
	o.WorkDir = t.TempDir()
	o.SelfPackage = "pi-top-usb-setup"
	o.NewUpdater = func(repo string, onProgress func(float64), _ func(string)) Updater {
		h.rec.add("new-updater " + fp.Base(repo))
		return &updater{recorder: h.rec, onProgress: onProgress}
	}
	o.Version = func(_ context.Context, pkg string) string {
		v := h.versions[0]
		if len(h.versions) > 1 {
			h.versions = h.versions[1:]
		}
		h.rec.add("version " + pkg)
		return v
	}
	o.Device = h.rec
	o.Network = h.rec
	o.Certs = certInstaller{h.rec}
	o.Scripts = scripts{h.rec}
	o.Onboarding = onboarder{h.rec}
	o.CopyFiles = func(src, root string, onProgress func(float64)) error {
		onProgress(100)
		return h.rec.add("copy " + fp.Base(src))
	}
	o.Unmount = func(string) error { return h.rec.add("unmount") }
	h.Orchestrator = o
	return h
}

func extractedBundle(t *testing.T) *bundle.Bundle {
	dir := t.TempDir()
	writeBundle(t, dir)
	loc, err := bundle.NewLocator("", "")
	require.NoError(t, err)
	b, err := loc.Validate(dir)
	require.NoError(t, err)
	require.True(t, b.Extracted())
	return b
}

func TestRunAllStages(t *testing.T) {
	testlog.NewTestLog(t, true, false)
	h := newHarness(t, extractedBundle(t), allStages())
	res, err := h.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeDone, res.Outcome)
	assert.True(t, res.Reboot)
	assert.Equal(t, MsgReboot, res.Message)
	want := []string{
		"new-updater updates",
		"version pi-top-usb-setup",
		"update",
		"upgrade-package pi-top-usb-setup",
		"version pi-top-usb-setup",
		"upgrade",
		"locale en_GB.UTF-8",
		"timezone Europe/London",
		"keyboard gb ",
		"certificates certificates",
		"connect home",
		"copy files",
		"scripts scripts",
		"onboard",
	}
	if d := cmp.Diff(want, h.rec.Calls()); d != "" {
		t.Errorf("calls (-want +got):\n%s", d)
	}
	snap := h.State.Snapshot()
	assert.Equal(t, StageDone, snap.Stage)
	assert.Equal(t, 100.0, snap.Overall)
	assert.True(t, snap.Finished)
	//extracted bundle was not made by this program
	assert.DirExists(t, res.Dir)
}

func TestRunStagesDisabled(t *testing.T) {
	testlog.NewTestLog(t, true, false)
	h := newHarness(t, extractedBundle(t), flags{})
	res, err := h.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeDone, res.Outcome)
	assert.False(t, res.Reboot)
	assert.Equal(t, MsgComplete, res.Message)
	assert.Empty(t, h.rec.Calls())
}

func TestRestart(t *testing.T) {
	testlog.NewTestLog(t, true, false)
	mount := t.TempDir()
	b := &bundle.Bundle{Root: mount, Archive: fp.Join(mount, "pi-top-usb-setup.tar.gz")}
	h := newHarness(t, b, allStages())
	h.versions = []string{"1.0", "1.1"}
	h.Extract = func(_, dest string, onProgress archive.ProgressFunc) error {
		writeBundle(t, dest)
		onProgress(100)
		return nil
	}
	res, err := h.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeRestarting, res.Outcome)
	assert.Empty(t, res.Message)
	calls := h.rec.Calls()
	assert.Equal(t, "version pi-top-usb-setup", calls[len(calls)-1])
	assert.NotContains(t, calls, "upgrade")
	assert.NotContains(t, calls, "locale en_GB.UTF-8")
	assert.False(t, h.State.Snapshot().Finished)

	//dir is kept for the next instance, which owns it
	require.DirExists(t, res.Dir)
	assert.True(t, strings.HasPrefix(res.Dir, h.WorkDir))
	loc, err := bundle.NewLocator("", "")
	require.NoError(t, err)
	next, err := loc.Validate(res.Dir)
	require.NoError(t, err)
	h2 := newHarness(t, next, allStages())
	h2.WorkDir = h.WorkDir
	h2.SkipSelfUpgrade = true
	res, err = h2.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeDone, res.Outcome)
	assert.NotContains(t, h2.rec.Calls(), "upgrade-package pi-top-usb-setup")
	assert.Contains(t, h2.rec.Calls(), "upgrade")
	assert.NoDirExists(t, res.Dir)
}

func TestExtractedDirRemoved(t *testing.T) {
	testlog.NewTestLog(t, true, false)
	mount := t.TempDir()
	b := &bundle.Bundle{Root: mount, Archive: fp.Join(mount, "pi-top-usb-setup.tar.xz")}
	h := newHarness(t, b, flags{})
	var dest string
	h.Extract = func(_, d string, onProgress archive.ProgressFunc) error {
		dest = d
		writeBundle(t, d)
		return nil
	}
	res, err := h.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dest, res.Dir)
	assert.NoDirExists(t, dest)
	//not a mount point
	assert.NotContains(t, h.rec.Calls(), "unmount")
}

func TestStageErrors(t *testing.T) {
	boom := errors.New("boom")
	for _, tc := range []struct {
		name    string
		fail    string
		err     error
		code    Code
		message string
		notRun  string
	}{
		{"update", "update", boom, CodeUpdate, "There was an error during setup: E2. Press any button to exit.", "locale en_GB.UTF-8"},
		{"certificates", "certificates certificates", boom, CodeCertificateInstallation,
			"There was an error during setup: E8. Press any button to exit.", "connect home"},
		{"copy", "copy files", boom, CodeCopy, "There was an error during setup: E6. Press any button to exit.", "scripts scripts"},
		{"scripts", "scripts scripts", boom, CodeScripts, "There was an error during setup: E7. Press any button to exit.", "onboard"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			testlog.NewTestLog(t, true, false)
			h := newHarness(t, extractedBundle(t), allStages())
			h.rec.fail[tc.fail] = tc.err
			res, err := h.Run(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.err)
			var se *StageError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tc.code, se.Code)
			assert.Equal(t, OutcomeError, res.Outcome)
			assert.Equal(t, tc.code, res.Code)
			assert.Equal(t, tc.message, res.Message)
			assert.NotContains(t, h.rec.Calls(), tc.notRun)
			assert.Equal(t, StageFailed, h.State.Snapshot().Stage)
		})
	}
}

func TestOnboardingErrorKeepsReboot(t *testing.T) {
	testlog.NewTestLog(t, true, false)
	h := newHarness(t, extractedBundle(t), allStages())
	h.rec.fail["onboard"] = errors.New("marker not written")
	res, err := h.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, CodeOnboarding, res.Code)
	assert.True(t, res.Reboot)
	assert.Equal(t, MsgReboot, res.Message)
}

func TestSoftFailures(t *testing.T) {
	testlog.NewTestLog(t, true, false)
	h := newHarness(t, extractedBundle(t), allStages())
	h.rec.fail["connect home"] = errors.New("no such network")
	h.rec.fail["locale en_GB.UTF-8"] = errors.New("unknown locale")
	res, err := h.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeDone, res.Outcome)
	assert.Contains(t, h.rec.Calls(), "timezone Europe/London")
	assert.Contains(t, h.rec.Calls(), "copy files")
}

func TestNotAnAptRepository(t *testing.T) {
	testlog.NewTestLog(t, true, false)
	h := newHarness(t, extractedBundle(t), allStages())
	h.rec.fail["update"] = fmt.Errorf("x: %w", apt.ENotAnAptRepository)
	res, err := h.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeDone, res.Outcome)
	assert.NotContains(t, h.rec.Calls(), "upgrade")
	assert.Contains(t, h.rec.Calls(), "onboard")
}

func TestExtractionErrors(t *testing.T) {
	for _, tc := range []struct {
		err     error
		code    Code
		message string
	}{
		{&archive.SpaceError{Dir: "/tmp", Need: 10, Free: 1}, CodeNotEnoughSpace, MsgNoSpace},
		{fmt.Errorf("%w: corrupt", archive.EExtraction), CodeExtraction,
			"There was an error during setup: E3. Press any button to exit."},
	} {
		testlog.NewTestLog(t, true, false)
		mount := t.TempDir()
		b := &bundle.Bundle{Root: mount, Archive: fp.Join(mount, "pi-top-usb-setup.tar.gz")}
		h := newHarness(t, b, allStages())
		h.Extract = func(string, string, archive.ProgressFunc) error { return tc.err }
		res, err := h.Run(context.Background())
		require.Error(t, err)
		assert.Equal(t, tc.code, res.Code)
		assert.Equal(t, tc.message, res.Message)
		assert.Empty(t, h.rec.Calls())
		assert.NoDirExists(t, res.Dir)
	}
}

func TestMalformedConfig(t *testing.T) {
	testlog.NewTestLog(t, true, false)
	b := extractedBundle(t)
	require.NoError(t, os.WriteFile(b.Layout.ConfigPath(), []byte("{"), 0644))
	h := newHarness(t, b, allStages())
	res, err := h.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, CodeConfiguration, res.Code)
	assert.Empty(t, h.rec.Calls())
}

// reports a fixed sequence of percentages from each apt invocation, as apt
// does when download progress is followed by install progress
type resettingUpdater struct {
	state      *RunState
	onProgress func(float64)
	seen       []float64
}

func (u *resettingUpdater) report(pcts ...float64) error {
	for _, p := range pcts {
		u.onProgress(p)
		u.seen = append(u.seen, u.state.Snapshot().Progress)
	}
	return nil
}

func (u *resettingUpdater) Update(context.Context) error { return u.report(50, 100) }
func (u *resettingUpdater) UpgradePackage(context.Context, string) error {
	return u.report(90, 20, 100)
}
func (u *resettingUpdater) Upgrade(context.Context) error { return u.report(80, 10, 60, 100) }

func TestUpdateProgressMonotonic(t *testing.T) {
	testlog.NewTestLog(t, true, false)
	h := newHarness(t, extractedBundle(t), flags{state.InstallUpdate: true})
	u := &resettingUpdater{state: h.State}
	h.NewUpdater = func(_ string, onProgress func(float64), _ func(string)) Updater {
		u.onProgress = onProgress
		return u
	}
	_, err := h.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, u.seen, 9)
	for i := 1; i < len(u.seen); i++ {
		assert.GreaterOrEqual(t, u.seen[i], u.seen[i-1], "step %d: %v", i, u.seen)
	}
	assert.Equal(t, float64(updateShare), u.seen[1])
	assert.Equal(t, float64(selfUpgradeShare), u.seen[4])
	assert.Equal(t, 100.0, u.seen[8])
}
