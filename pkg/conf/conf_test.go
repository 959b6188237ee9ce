// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package conf

import (
	"bytes"
	"os"
	fp "path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pi-top/pi-top-Offline-Updates/pkg/certs"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/log/testlog"
)

func TestLoadMissing(t *testing.T) {
	testlog.NewTestLog(t, true, false)
	c, err := Load(fp.Join(t.TempDir(), "config.toml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), c)
}

func TestLoad(t *testing.T) {
	tlog := testlog.NewTestLog(t, true, false)
	path := fp.Join(t.TempDir(), "config.toml")
	content := `
log_dir = "/tmp/logs"
bogus = 1

[timeouts]
apt = "2h"
script = "20m"
onboarding = "3m"

[network]
backend = "wpa_supplicant"
interface = "wlan1"

[certificates.company]
path = "/usr/local/share/company"
command = "company-refresh --all"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/logs", c.LogDir)
	assert.Equal(t, 2*time.Hour, c.Timeouts.Apt)
	assert.Equal(t, 20*time.Minute, c.Timeouts.Script)
	assert.Equal(t, 3*time.Minute, c.Timeouts.Onboarding)
	assert.Equal(t, Defaults().Timeouts.Chmod, c.Timeouts.Chmod)
	assert.Equal(t, "wpa_supplicant", c.Network.Backend)
	assert.Equal(t, "wlan1", c.Network.Interface)
	assert.Equal(t, []string{"ca-certificates", "company"}, c.Certificates.Names())
	assert.Equal(t, certs.Category{Path: "/usr/local/share/company", Command: "company-refresh --all"},
		c.Certificates["company"])
	assert.Contains(t, tlog.Buf.String(), "ignoring unknown key bogus")
}

func TestLoadInvalid(t *testing.T) {
	testlog.NewTestLog(t, true, false)
	for name, content := range map[string]string{
		"syntax":   "[network\n",
		"backend":  "[network]\nbackend = \"carrier-pigeon\"\n",
		"timeout":  "[timeouts]\nscript = \"-1s\"\n",
		"certpath": "[certificates.x]\ncommand = \"true\"\n",
	} {
		t.Run(name, func(t *testing.T) {
			path := fp.Join(t.TempDir(), "config.toml")
			require.NoError(t, os.WriteFile(path, []byte(content), 0644))
			_, err := Load(path)
			assert.ErrorIs(t, err, EConfig)
		})
	}
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Defaults().Write(&buf))
	assert.Contains(t, buf.String(), `self_package = "pi-top-usb-setup"`)
	assert.Contains(t, buf.String(), "[certificates.ca-certificates]")
}
