// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package state

import (
	"os"
	fp "path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pi-top/pi-top-Offline-Updates/pkg/log/testlog"
)

func TestLoadMissing(t *testing.T) {
	testlog.NewTestLog(t, true, false)
	s, err := Load(fp.Join(t.TempDir(), "state.toml"))
	require.NoError(t, err)
	for _, k := range []string{InstallUpdate, ConfigureDevice, InstallCertificates,
		InstallNetwork, CopyFiles, RunScripts, CompleteOnboarding} {
		assert.False(t, s.Enabled(k), k)
	}
}

func TestEnabled(t *testing.T) {
	path := fp.Join(t.TempDir(), "state.toml")
	content := `[app]
install_update = "true"
copy_files = "1"
run_scripts = "false"
install_network = true
configure_device = 1
complete_onboarding = "yes"

[other]
install_update = "true"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	s, err := Load(path)
	require.NoError(t, err)
	assert.True(t, s.Enabled(InstallUpdate))
	assert.True(t, s.Enabled(CopyFiles))
	assert.False(t, s.Enabled(RunScripts))
	assert.True(t, s.Enabled(InstallNetwork))
	assert.True(t, s.Enabled(ConfigureDevice))
	assert.False(t, s.Enabled(CompleteOnboarding))
	assert.False(t, s.Enabled(InstallCertificates))
	assert.Equal(t, "true", s.Get("other", InstallUpdate, ""))
}

func TestMalformed(t *testing.T) {
	path := fp.Join(t.TempDir(), "state.toml")
	require.NoError(t, os.WriteFile(path, []byte("[app\n"), 0644))
	_, err := Load(path)
	assert.ErrorIs(t, err, EState)
}

func TestHandoff(t *testing.T) {
	testlog.NewTestLog(t, true, false)
	path := fp.Join(t.TempDir(), "sub", "state.toml")
	s, err := Load(path)
	require.NoError(t, err)
	s.Set(AppSection, InstallUpdate, "true")
	require.NoError(t, s.SetHandoff(Handoff{SkipDialog: true, SkipUpdate: true}))

	next, err := Load(path)
	require.NoError(t, err)
	h, err := next.TakeHandoff()
	require.NoError(t, err)
	assert.Equal(t, Handoff{SkipDialog: true, SkipUpdate: true}, h)
	assert.True(t, next.Enabled(InstallUpdate))

	after, err := Load(path)
	require.NoError(t, err)
	h, err = after.TakeHandoff()
	require.NoError(t, err)
	assert.Equal(t, Handoff{}, h)
	assert.Equal(t, []string{InstallUpdate}, after.Keys(AppSection))
}
