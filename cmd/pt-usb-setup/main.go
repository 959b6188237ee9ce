// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Command pt-usb-setup applies a setup bundle from a USB drive: it extracts
// the bundle, updates the system from the bundled repository, configures the
// device, installs certificates and files, runs the bundle's scripts and
// completes onboarding. Progress is shown on a status screen.
//
// It normally runs as an instance of pt-usb-setup@.service, started when a
// drive holding a bundle is mounted.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	fp "path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pi-top/pi-top-Offline-Updates/pkg/bundle"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/conf"
	futil "github.com/pi-top/pi-top-Offline-Updates/pkg/fileutil"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/hw/power"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/log"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/log/flags"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/log/journal"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/pipeline"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/runner"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/state"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/systemd"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/ui"
)

//in any binary with main.buildId string, it is set at compile time to $BUILD_INFO
var buildId string

const (
	appName       = "pt-usb-setup"
	defaultConfig = conf.DefaultPath
)

//with --wait, how long the mount point itself may take to appear
var mountWait = 5 * time.Minute

func main() {
	err := run()
	log.Finalize()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", appName, err)
		os.Exit(1)
	}
}

func setupLogging(cfg *conf.Config, noUI bool) {
	log.SetPrefix(appName)
	log.AdaptStdlog(nil, flags.NA)
	if err := journal.AddJournalLog(appName); err != nil {
		log.AddConsoleLog(flags.NA)
	} else if noUI {
		log.AddConsoleLog(flags.EndUser)
	}
	if cfg.LogDir != "" {
		if _, err := log.AddFileLog(cfg.LogDir); err != nil {
			log.Logf("file log: %s", err)
		}
	}
	log.Logf("buildId: %s", buildId)
}

func run() error {
	opts, err := parseOptions(os.Args[1:], os.Getenv, os.Stderr)
	if err != nil {
		return err
	}
	if opts.version {
		fmt.Println(appName, buildId)
		return nil
	}
	cfg, err := conf.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.dumpConfig {
		return cfg.Write(os.Stdout)
	}
	setupLogging(cfg, opts.noUI)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	store, err := state.Load(cfg.StateFile)
	if err != nil {
		return err
	}
	log.Logf("state %s: %s", store.Path(), strings.Join(store.Keys(state.AppSection), ", "))
	handoff, err := store.TakeHandoff()
	if err != nil {
		log.Logf("clearing hand-off flags: %s", err)
	}
	opts.skipDialog = opts.skipDialog || handoff.SkipDialog
	opts.skipUpdate = opts.skipUpdate || handoff.SkipUpdate

	loc, err := bundle.NewLocator(cfg.ArchiveGlob, bundle.Codename(cfg.OSRelease))
	if err != nil {
		return err
	}
	b, err := loc.Validate(opts.mountPoint)
	if err != nil && opts.wait {
		if !futil.WaitFor(opts.mountPoint, mountWait) {
			return fmt.Errorf("%s did not appear within %s", opts.mountPoint, mountWait)
		}
		b, err = loc.Wait(ctx, opts.mountPoint)
	}
	if err != nil {
		return err
	}
	log.Logf("Using bundle %s (archive %q)", b.Root, fp.Base(b.Archive))

	r := runner.Exec{}
	units := systemd.Connect(ctx, r)
	defer units.Close()

	o := newOrchestrator(cfg, b, loc, store, r, units)
	o.SkipSelfUpgrade = opts.skipUpdate

	res, dismissed, err := execute(ctx, o, opts)
	switch res.Outcome {
	case pipeline.OutcomeRestarting:
		if !systemd.IsSystemd() {
			return fmt.Errorf("cannot restart without systemd; run again against %s", res.Dir)
		}
		return restart(ctx, units, store, cfg.ServiceTemplate, res.Dir)
	case pipeline.OutcomeError:
		log.Logf("setup finished with error %s: %s", res.Code, err)
	}
	if res.Reboot && dismissed {
		return power.Reboot(ctx, r)
	}
	if errors.Is(err, errCancelled) {
		return nil
	}
	return err
}

var errCancelled = errors.New("cancelled by user")

// Runs o, with the status screen unless disabled. dismissed is true if the
// user acknowledged the final message, or if there is no screen.
func execute(ctx context.Context, o *pipeline.Orchestrator, opts *options) (pipeline.Result, bool, error) {
	if opts.noUI {
		res, err := o.Run(ctx)
		return res, true, err
	}
	type outcome struct {
		res pipeline.Result
		err error
	}
	done := make(chan outcome, 1)
	uiCtx, closeUI := context.WithCancel(ctx)
	defer closeUI()
	var once sync.Once
	var started atomic.Bool
	start := func() {
		once.Do(func() {
			started.Store(true)
			res, err := o.Run(ctx)
			if res.Outcome == pipeline.OutcomeRestarting {
				closeUI()
			}
			done <- outcome{res, err}
		})
	}
	m, uerr := ui.Run(uiCtx, ui.New(o.State, start, !opts.skipDialog))
	if m.Cancelled() {
		log.Logf("Setup cancelled by user")
		return pipeline.Result{}, false, errCancelled
	}
	if uerr != nil && uiCtx.Err() == nil {
		//no usable terminal; run without the screen unless already running
		log.Logf("status screen: %s", uerr)
		start()
		out := <-done
		return out.res, true, out.err
	}
	if !started.Load() {
		//interrupted before confirmation
		return pipeline.Result{}, false, ctx.Err()
	}
	out := <-done
	return out.res, m.Dismissed(), out.err
}
