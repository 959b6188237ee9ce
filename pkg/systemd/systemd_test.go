// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package systemd

import (
	"context"
	"strings"
	"testing"

	"github.com/coreos/go-systemd/v22/unit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pi-top/pi-top-Offline-Updates/pkg/log/testlog"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/runner/runnertest"
)

func TestInstanceName(t *testing.T) {
	arg := "/tmp/pi-top-usb-setup-1234 --skip-dialog"
	name := InstanceName("pt-usb-setup@.service", arg)
	require.True(t, strings.HasPrefix(name, "pt-usb-setup@"))
	require.True(t, strings.HasSuffix(name, ".service"))
	escaped := strings.TrimSuffix(strings.TrimPrefix(name, "pt-usb-setup@"), ".service")
	assert.NotContains(t, escaped, " ")
	assert.NotContains(t, escaped, "/")
	assert.Equal(t, arg, unit.UnitNameUnescape(escaped))
}

func TestService(t *testing.T) {
	assert.Equal(t, "further-link.service", Service("further-link"))
	assert.Equal(t, "pt-miniscreen.service", Service("pt-miniscreen.service"))
	assert.Equal(t, "multi-user.target", Service("multi-user.target"))
}

func TestSystemctl(t *testing.T) {
	testlog.NewTestLog(t, true, false)
	fake := runnertest.New()
	fake.Fail("systemctl", "--system", "is-active", "-q", "absent.service")
	s := &Systemctl{Runner: fake}
	ctx := context.Background()
	require.NoError(t, s.Start(ctx, "pt-usb-setup@x.service"))
	require.NoError(t, s.Enable(ctx, "further-link"))
	assert.True(t, s.IsActive(ctx, "NetworkManager"))
	assert.False(t, s.IsActive(ctx, "absent"))

	assert.Equal(t, []string{
		"systemctl --system start -q pt-usb-setup@x.service",
		"systemctl --system enable -q further-link.service",
		"systemctl --system is-active -q NetworkManager.service",
		"systemctl --system is-active -q absent.service",
	}, fake.Lines())

	user := &Systemctl{Runner: fake, User: true}
	require.NoError(t, user.Start(ctx, "x"))
	assert.Equal(t, "systemctl --user start -q x.service", fake.Lines()[4])
}
