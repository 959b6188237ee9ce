// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package onboard completes first-boot onboarding on behalf of the user, so a
// device set up from a bundle skips the interactive onboarding app.
package onboard

import (
	"context"
	"errors"
	"fmt"
	"os"
	fp "path/filepath"
	"time"

	futil "github.com/pi-top/pi-top-Offline-Updates/pkg/fileutil"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/log"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/runner"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/systemd"
)

var EOnboarding = errors.New("completing onboarding failed")

const (
	DefaultMarker          = "/etc/pi-top/.onboarding-complete"
	DefaultEEPROMCommand   = "pt-eeprom -f"
	DefaultAPModeCommand   = "wifi-ap-sta disable"
	DefaultCommandTimeout  = time.Minute
	OpenboxSession         = "/usr/share/xsessions/openbox.desktop"
	BackupDir              = "/usr/lib/pt-os-web-portal/bak"
	LandingDesktop         = "/usr/lib/pt-os-web-portal/pt-os-landing.desktop"
	LandingAutostart       = "/etc/xdg/autostart/pt-os-landing.desktop"
	OnboardingAutostart    = "/etc/xdg/autostart/pt-os-setup.desktop"
	FirmwareUpdaterService = "pt-firmware-updater"
	FurtherLinkService     = "further-link"
	MiniscreenService      = "pt-miniscreen"
)

// Action is one step of onboarding.
type Action struct {
	Name string
	Do   func(ctx context.Context) error
}

// Finalizer runs the onboarding actions. Paths are resolved under Root, which
// is "/" when empty.
type Finalizer struct {
	Units         systemd.Manager
	Runner        runner.Runner
	Root          string
	Marker        string //records completion; DefaultMarker if empty
	EEPROMCommand string
	APModeCommand string
	Timeout       time.Duration
}

func (f *Finalizer) path(p string) string {
	if f.Root == "" {
		return p
	}
	return fp.Join(f.Root, p)
}

func (f *Finalizer) marker() string {
	if f.Marker != "" {
		return f.path(f.Marker)
	}
	return f.path(DefaultMarker)
}

// Completed reports whether onboarding has been recorded as done.
func (f *Finalizer) Completed() bool { return futil.Exists(f.marker()) }

// Actions returns the onboarding actions, in the order they must run.
func (f *Finalizer) Actions() []Action {
	return []Action{
		{"enable_firmware_updater_service", f.enable(FirmwareUpdaterService)},
		{"enable_further_link_service", f.enable(FurtherLinkService)},
		{"deprioritise_openbox_session", f.deprioritiseOpenbox},
		{"restore_files", f.restoreFiles},
		{"configure_landing", f.configureLanding},
		{"stop_onboarding_autostart", f.stopAutostart},
		{"update_eeprom", f.command(f.EEPROMCommand, DefaultEEPROMCommand)},
		{"enable_pt_miniscreen", f.enable(MiniscreenService)},
		{"disable_ap_mode", f.command(f.APModeCommand, DefaultAPModeCommand)},
	}
}

// Run executes every action, even when earlier ones fail, and then records
// completion. Reboot is required whenever the actions ran. If onboarding was
// already complete, nothing is done.
func (f *Finalizer) Run(ctx context.Context, onProgress func(pct float64)) (reboot bool, err error) {
	if f.Completed() {
		log.Logf("Device already onboarded; skipping...")
		return false, nil
	}
	log.Logf("Completing onboarding for device...")
	actions := f.Actions()
	for i, a := range actions {
		log.Logf("Executing %s...", a.Name)
		if aerr := a.Do(ctx); aerr != nil {
			log.Logf("%s: %s", a.Name, aerr)
		}
		if onProgress != nil {
			onProgress(float64(i+1) * 100 / float64(len(actions)))
		}
	}
	if err = f.markComplete(); err != nil {
		return true, fmt.Errorf("%w: %w", EOnboarding, err)
	}
	return true, nil
}

func (f *Finalizer) markComplete() error {
	m := f.marker()
	if err := os.MkdirAll(fp.Dir(m), 0755); err != nil {
		return err
	}
	return os.WriteFile(m, []byte(time.Now().Format(time.RFC3339)+"\n"), 0644)
}

func (f *Finalizer) enable(unit string) func(context.Context) error {
	return func(ctx context.Context) error {
		if f.Units == nil {
			return fmt.Errorf("no service manager")
		}
		return f.Units.Enable(ctx, unit)
	}
}

func (f *Finalizer) command(line, def string) func(context.Context) error {
	if line == "" {
		line = def
	}
	return func(ctx context.Context) error {
		timeout := f.Timeout
		if timeout == 0 {
			timeout = DefaultCommandTimeout
		}
		c, err := runner.Parse(line, timeout)
		if err != nil {
			return err
		}
		_, err = f.Runner.Run(ctx, c)
		return err
	}
}

// Moves the openbox session aside, leaving the desktop session as default.
func (f *Finalizer) deprioritiseOpenbox(context.Context) error {
	session := f.path(OpenboxSession)
	if !futil.Exists(session) {
		return nil
	}
	return os.Rename(session, session+".bak")
}

// Puts back files the onboarding app replaced.
func (f *Finalizer) restoreFiles(context.Context) error {
	bak := f.path(BackupDir)
	if !futil.IsDir(bak) {
		return nil
	}
	root := f.path("/")
	if err := futil.CopyTree(bak, root, nil); err != nil {
		return err
	}
	return os.RemoveAll(bak)
}

func (f *Finalizer) configureLanding(context.Context) error {
	dest := f.path(LandingAutostart)
	if err := os.MkdirAll(fp.Dir(dest), 0755); err != nil {
		return err
	}
	return futil.CopyFile(f.path(LandingDesktop), dest)
}

func (f *Finalizer) stopAutostart(context.Context) error {
	err := os.Remove(f.path(OnboardingAutostart))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
