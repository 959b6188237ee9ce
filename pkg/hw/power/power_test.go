// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package power

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pi-top/pi-top-Offline-Updates/pkg/log/testlog"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/runner/runnertest"
)

func fakeKernel(t *testing.T, err error) *int {
	var calls int
	oldSync, oldReboot, oldSettle := syncFS, reboot, Settle
	syncFS = func() {}
	reboot = func() error { calls++; return err }
	Settle = 0
	t.Cleanup(func() { syncFS, reboot, Settle = oldSync, oldReboot, oldSettle })
	return &calls
}

func TestRebootSystemctl(t *testing.T) {
	testlog.NewTestLog(t, true, false)
	calls := fakeKernel(t, nil)
	fake := runnertest.New()
	require.NoError(t, Reboot(context.Background(), fake))
	assert.Equal(t, []string{"systemctl --system reboot -q"}, fake.Lines())
	assert.Zero(t, *calls)
}

func TestRebootFallback(t *testing.T) {
	testlog.NewTestLog(t, true, false)
	calls := fakeKernel(t, nil)
	fake := runnertest.New()
	fake.Fail("systemctl", "--system", "reboot", "-q")
	require.NoError(t, Reboot(context.Background(), fake))
	assert.Equal(t, 1, *calls)

	calls = fakeKernel(t, fmt.Errorf("operation not permitted"))
	assert.Error(t, Reboot(context.Background(), fake))
	assert.Equal(t, 1, *calls)
}
