// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOverall(t *testing.T) {
	r := &RunState{}
	for _, tc := range []struct {
		stage Stage
		pct   float64
		want  float64
	}{
		{StageInit, 0, 0},
		{StageExtracting, 0, 5},
		{StageExtracting, 50, 15},
		{StageUpdatingSystem, 100, 80},
		{StageConfiguringDevice, 50, 81},
		{StageRunningScripts, 40, 92},
		{StageCompletingOnboarding, 200, 100},
		{StageDone, 0, 100},
	} {
		r.Enter(tc.stage)
		r.SetProgress(tc.pct)
		assert.InDelta(t, tc.want, r.Snapshot().Overall, 1e-9, "%s %v", tc.stage, tc.pct)
	}
}

func TestFailKeepsProgress(t *testing.T) {
	r := &RunState{}
	r.Enter(StageCopyingFiles)
	r.SetProgress(60)
	r.Fail(CodeCopy)
	s := r.Snapshot()
	assert.Equal(t, StageFailed, s.Stage)
	assert.InDelta(t, 88, s.Overall, 1e-9)
	assert.Equal(t, "E6", s.Code.String())
}

func TestMessages(t *testing.T) {
	for _, tc := range []struct {
		snap Snapshot
		want string
	}{
		{Snapshot{Stage: StageDone}, "Device setup is complete! Press any button to exit."},
		{Snapshot{Stage: StageDone, Reboot: true}, "Device setup is complete! Press any button to reboot the device!"},
		{Snapshot{Stage: StageFailed, Code: CodeScripts, Reboot: true}, "Device setup is complete! Press any button to reboot the device!"},
		{Snapshot{Stage: StageFailed, Code: CodeUpdate}, "There was an error during setup: E2. Press any button to exit."},
		{Snapshot{Stage: StageFailed, Code: CodeNotEnoughSpace}, "There's not enough free space in your pi-top to continue. Press any button to exit"},
		{Snapshot{Stage: StageFailed, Code: CodeNetworkConfiguration}, "There was an error during setup: E9. Press any button to exit."},
	} {
		assert.Equal(t, tc.want, tc.snap.Message())
	}
}

func TestStageNames(t *testing.T) {
	assert.Equal(t, "CONFIGURING_NETWORK", StageConfiguringNetwork.String())
	assert.Equal(t, "Stage(7)", Stage(7).String())
	assert.Equal(t, "Installing certificates", StageInstallingCertificates.Title())
	for i := 1; i < len(Stages); i++ {
		assert.Less(t, int(Stages[i-1]), int(Stages[i]))
	}
}

func TestAdvance(t *testing.T) {
	r := &RunState{}
	r.Enter(StageUpdatingSystem)
	r.Advance(40)
	r.Advance(10)
	assert.Equal(t, 40.0, r.Snapshot().Progress)
	r.Advance(250)
	assert.Equal(t, 100.0, r.Snapshot().Progress)

	//a new stage starts from zero
	r.Enter(StageConfiguringDevice)
	r.Advance(5)
	assert.Equal(t, 5.0, r.Snapshot().Progress)
}
