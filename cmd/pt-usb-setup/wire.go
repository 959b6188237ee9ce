// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package main

import (
	"context"

	"github.com/pi-top/pi-top-Offline-Updates/pkg/apt"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/bundle"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/certs"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/conf"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/deploy"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/devconfig"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/network"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/onboard"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/pipeline"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/runner"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/systemd"
)

// newOrchestrator builds the pipeline's collaborators from cfg.
func newOrchestrator(cfg *conf.Config, b *bundle.Bundle, loc *bundle.Locator, flags pipeline.StageFlags,
	r runner.Runner, units systemd.Manager) *pipeline.Orchestrator {
	o := pipeline.New(b, loc, flags)
	o.WorkDir = cfg.WorkDir
	o.CopyFiles = deploy.CopyFiles
	o.SelfPackage = cfg.SelfPackage
	o.NewUpdater = func(repo string, onProgress func(float64), onError func(string)) pipeline.Updater {
		return &apt.Updater{
			Runner:     r,
			Repo:       repo,
			SourceFile: cfg.AptSourceFile,
			Timeout:    cfg.Timeouts.Apt,
			OnProgress: onProgress,
			OnError:    onError,
		}
	}
	o.Version = func(ctx context.Context, pkg string) string { return apt.Version(ctx, r, pkg) }

	o.Device = &devconfig.Commands{
		Runner:      r,
		Locale:      cfg.Device.Locale,
		WifiCountry: cfg.Device.WifiCountry,
		Timezone:    cfg.Device.Timezone,
		Keyboard:    cfg.Device.Keyboard,
		EmailFile:   cfg.Device.EmailFile,
		Timeout:     cfg.Timeouts.Device,
	}
	backend, _ := network.ParseBackend(cfg.Network.Backend) //checked by conf.Load
	o.Network = &network.Connector{
		Runner:         r,
		Backend:        backend,
		Interface:      cfg.Network.Interface,
		SupplicantConf: cfg.Network.SupplicantConf,
		Timeout:        cfg.Timeouts.Network,
		WaitAddress:    cfg.Network.WaitAddress,
	}
	o.Certs = &certs.Installer{
		Runner:     r,
		Categories: cfg.Certificates,
		Timeout:    cfg.Timeouts.Certificate,
	}
	o.Scripts = &deploy.Scripts{
		Runner:        r,
		ChmodTimeout:  cfg.Timeouts.Chmod,
		ScriptTimeout: cfg.Timeouts.Script,
	}
	o.Onboarding = &onboard.Finalizer{
		Units:         units,
		Runner:        r,
		Root:          cfg.Onboarding.Root,
		Marker:        cfg.Onboarding.Marker,
		EEPROMCommand: cfg.Onboarding.EEPROMCommand,
		APModeCommand: cfg.Onboarding.APModeCommand,
		Timeout:       cfg.Timeouts.Onboarding,
	}
	return o
}
