// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package pipeline

import (
	"fmt"
	"sync"
)

// Stage of a run. The value is the overall progress at which the stage
// begins.
type Stage int

const (
	StageFailed                 Stage = -1
	StageInit                   Stage = 0
	StageExtracting             Stage = 5
	StageUpdatingSystem         Stage = 25
	StageConfiguringDevice      Stage = 80
	StageInstallingCertificates Stage = 82
	StageConfiguringNetwork     Stage = 83
	StageCopyingFiles           Stage = 85
	StageRunningScripts         Stage = 90
	StageCompletingOnboarding   Stage = 95
	StageDone                   Stage = 100
)

// Stages in the order a run passes through them.
var Stages = []Stage{
	StageInit,
	StageExtracting,
	StageUpdatingSystem,
	StageConfiguringDevice,
	StageInstallingCertificates,
	StageConfiguringNetwork,
	StageCopyingFiles,
	StageRunningScripts,
	StageCompletingOnboarding,
	StageDone,
}

func (s Stage) String() string {
	switch s {
	case StageFailed:
		return "ERROR"
	case StageInit:
		return "INIT"
	case StageExtracting:
		return "EXTRACTING"
	case StageUpdatingSystem:
		return "UPDATING_SYSTEM"
	case StageConfiguringDevice:
		return "CONFIGURING_DEVICE"
	case StageInstallingCertificates:
		return "INSTALLING_CERTIFICATES"
	case StageConfiguringNetwork:
		return "CONFIGURING_NETWORK"
	case StageCopyingFiles:
		return "COPYING_FILES"
	case StageRunningScripts:
		return "RUNNING_SCRIPTS"
	case StageCompletingOnboarding:
		return "COMPLETING_ONBOARDING"
	case StageDone:
		return "DONE"
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// Title is shown on screen while the stage runs.
func (s Stage) Title() string {
	switch s {
	case StageExtracting:
		return "Extracting files"
	case StageUpdatingSystem:
		return "Updating system"
	case StageConfiguringDevice:
		return "Configuring device"
	case StageInstallingCertificates:
		return "Installing certificates"
	case StageConfiguringNetwork:
		return "Configuring network"
	case StageCopyingFiles:
		return "Copying files"
	case StageRunningScripts:
		return "Running scripts"
	case StageCompletingOnboarding:
		return "Completing onboarding"
	case StageDone:
		return "Done"
	case StageFailed:
		return "Error"
	}
	return "Please wait"
}

// next returns the bound of the stage following s.
func (s Stage) next() Stage {
	for i, st := range Stages {
		if st == s && i+1 < len(Stages) {
			return Stages[i+1]
		}
	}
	return s
}

// Code is the error number shown to the user.
type Code int

const (
	CodeNone Code = iota
	CodeNotEnoughSpace
	CodeUpdate
	CodeExtraction
	CodeConfiguration
	CodeOnboarding
	CodeCopy
	CodeScripts
	CodeCertificateInstallation
	CodeNetworkConfiguration
)

func (c Code) String() string { return fmt.Sprintf("E%d", int(c)) }

const (
	MsgReboot   = "Device setup is complete! Press any button to reboot the device!"
	MsgComplete = "Device setup is complete! Press any button to exit."
	MsgNoSpace  = "There's not enough free space in your pi-top to continue. Press any button to exit"
	msgErrorFmt = "There was an error during setup: %s. Press any button to exit."
)

// Snapshot is a copy of RunState at one moment.
type Snapshot struct {
	Stage    Stage
	Progress float64 //of the current stage, 0-100
	Overall  float64 //of the whole run, 0-100
	Code     Code
	Reboot   bool
	Finished bool //the run has ended; Message is final
}

// Message is the text shown once the run has finished.
func (s Snapshot) Message() string {
	switch {
	case s.Reboot:
		return MsgReboot
	case s.Stage != StageFailed:
		return MsgComplete
	case s.Code == CodeNotEnoughSpace:
		return MsgNoSpace
	}
	return fmt.Sprintf(msgErrorFmt, s.Code)
}

// RunState is shared by the pipeline, which writes it, and the screen, which
// polls it. Safe for concurrent use.
type RunState struct {
	mu       sync.Mutex
	stage    Stage
	last     Stage //stage before an error, for Overall
	progress float64
	code     Code
	reboot   bool
	finished bool
}

func (r *RunState) Enter(s Stage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stage = s
	r.last = s
	r.progress = 0
}

func clamp(pct float64) float64 {
	if pct < 0 {
		return 0
	} else if pct > 100 {
		return 100
	}
	return pct
}

// SetProgress records the current stage's progress, clamped to 0-100.
func (r *RunState) SetProgress(pct float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = clamp(pct)
}

// Advance is like SetProgress, but never moves the current stage backwards.
func (r *RunState) Advance(pct float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if pct = clamp(pct); pct > r.progress {
		r.progress = pct
	}
}

func (r *RunState) Fail(c Code) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stage = StageFailed
	r.code = c
}

func (r *RunState) SetReboot(reboot bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reboot = reboot
}

func (r *RunState) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = true
}

func (r *RunState) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	base := r.last
	overall := float64(base) + r.progress/100*float64(base.next()-base)
	return Snapshot{
		Stage:    r.stage,
		Progress: r.progress,
		Overall:  overall,
		Code:     r.code,
		Reboot:   r.reboot,
		Finished: r.finished,
	}
}
