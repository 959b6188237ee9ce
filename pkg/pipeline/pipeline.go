// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package pipeline runs a setup bundle's stages in order: extraction, offline
// update, device configuration, certificates, network, files, scripts and
// onboarding. Optional stages are gated by persisted flags. Progress and the
// final outcome are published through a RunState, which the screen polls from
// another goroutine.
//
// A run which upgrades this program's own package stops early with
// OutcomeRestarting; the caller starts a new instance against the extracted
// bundle, which carries on where this one left off.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	fp "path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/pi-top/pi-top-Offline-Updates/pkg/apt"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/bundle"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/bundle/archive"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/devconfig"
	futil "github.com/pi-top/pi-top-Offline-Updates/pkg/fileutil"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/log"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/network"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/state"
)

// ErrRestarting stops a run once its own package has been upgraded. Not a
// failure.
var ErrRestarting = errors.New("restarting with upgraded package")

// StageError is a failure which ends the run, with the code shown for it.
type StageError struct {
	Code Code
	Err  error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

type Outcome int

const (
	OutcomeDone Outcome = iota
	OutcomeError
	OutcomeRestarting
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDone:
		return "done"
	case OutcomeError:
		return "error"
	case OutcomeRestarting:
		return "restarting"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Result of a run.
type Result struct {
	Outcome Outcome
	Code    Code
	Reboot  bool
	Message string //empty when restarting
	Dir     string //extraction dir; a restarted instance is pointed here
}

// Collaborators. Implemented by the packages named in each comment.
type (
	// apt.Updater
	Updater interface {
		Update(ctx context.Context) error
		Upgrade(ctx context.Context) error
		UpgradePackage(ctx context.Context, pkg string) error
	}
	// network.Connector
	Connector interface {
		Connect(ctx context.Context, n *network.Network) error
	}
	// certs.Installer
	CertInstaller interface {
		Install(ctx context.Context, dir string, onProgress func(pct float64)) error
	}
	// deploy.Scripts
	ScriptRunner interface {
		Run(ctx context.Context, dir string, onProgress func(pct float64)) error
	}
	// onboard.Finalizer
	Onboarder interface {
		Run(ctx context.Context, onProgress func(pct float64)) (reboot bool, err error)
	}
	// state.Store
	StageFlags interface {
		Enabled(key string) bool
	}
)

// Orchestrator runs one bundle. Construct, fill in collaborators, then Run
// once.
type Orchestrator struct {
	Bundle  *bundle.Bundle
	Locator *bundle.Locator
	Flags   StageFlags
	State   *RunState

	// Parent dir for extraction; empty means os.TempDir().
	WorkDir string
	// Destination for the bundle's file tree; empty means "/".
	FilesRoot string

	Extract   func(archive, dest string, onProgress archive.ProgressFunc) error
	Unmount   func(mountPoint string) error
	CopyFiles func(src, root string, onProgress func(pct float64)) error

	NewUpdater  func(repo string, onProgress func(pct float64), onError func(msg string)) Updater
	Version     func(ctx context.Context, pkg string) string
	SelfPackage string
	// Set for a run started by a restart; the own-package check already
	// happened.
	SkipSelfUpgrade bool

	Device     devconfig.Actions
	Network    Connector
	Certs      CertInstaller
	Scripts    ScriptRunner
	Onboarding Onboarder

	RunID string

	layout  bundle.Layout
	config  *devconfig.DeviceConfig
	cleanup bool //remove layout.Dir when finished
}

// New returns an Orchestrator for b with default extraction and copying, and
// a fresh run id. Remaining collaborators must be set before Run.
func New(b *bundle.Bundle, loc *bundle.Locator, flags StageFlags) *Orchestrator {
	return &Orchestrator{
		Bundle:    b,
		Locator:   loc,
		Flags:     flags,
		State:     &RunState{},
		Extract:   archive.Extract,
		Unmount:   bundle.Unmount,
		RunID:     uuid.NewString(),
		FilesRoot: "/",
	}
}

// Run executes every stage and returns the outcome. Stage failures are
// reported in the result rather than as an error; the returned error is
// non-nil only for OutcomeError.
func (o *Orchestrator) Run(ctx context.Context) (Result, error) {
	log.Logf("Starting setup run %s for %s", o.RunID, o.Bundle.Root)
	if o.State == nil {
		o.State = &RunState{}
	}
	err := o.run(ctx)
	if errors.Is(err, ErrRestarting) {
		log.Logf("Restarting service, exiting...")
		return Result{Outcome: OutcomeRestarting, Dir: o.layout.Dir}, nil
	}
	if err == nil {
		o.State.Enter(StageDone)
		o.State.SetProgress(100)
	} else {
		log.Logf("Setup failed: %s", err)
		var se *StageError
		code := CodeNone
		if errors.As(err, &se) {
			code = se.Code
		}
		o.State.Fail(code)
	}
	o.Cleanup()
	o.State.Finish()
	snap := o.State.Snapshot()
	res := Result{
		Outcome: OutcomeDone,
		Code:    snap.Code,
		Reboot:  snap.Reboot,
		Message: snap.Message(),
		Dir:     o.layout.Dir,
	}
	if err != nil {
		res.Outcome = OutcomeError
	}
	log.Msgf("%s", res.Message)
	return res, err
}

func (o *Orchestrator) run(ctx context.Context) error {
	steps := []func(context.Context) error{
		o.extract,
		o.readConfig,
		o.update,
		o.configureDevice,
		o.installCertificates,
		o.configureNetwork,
		o.copyFiles,
		o.runScripts,
		o.completeOnboarding,
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := step(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) enabled(key string) bool {
	if o.Flags != nil && o.Flags.Enabled(key) {
		return true
	}
	log.Logf("Skipping %s due to system configuration...", strings.ReplaceAll(key, "_", " "))
	return false
}

func (o *Orchestrator) extract(context.Context) error {
	o.State.Enter(StageExtracting)
	if o.Bundle.Extracted() {
		o.layout = o.Bundle.Layout
		o.cleanup = o.owns(o.layout.Dir)
		log.Logf("Bundle already extracted in %s", o.layout.Dir)
		o.State.SetProgress(100)
		return nil
	}
	dir, err := os.MkdirTemp(o.WorkDir, workPrefix+"*")
	if err != nil {
		return &StageError{CodeExtraction, err}
	}
	o.layout = o.Locator.Layout(dir)
	o.cleanup = true
	log.Msgf("Extracting %s", fp.Base(o.Bundle.Archive))
	err = o.Extract(o.Bundle.Archive, dir, o.State.SetProgress)
	switch {
	case errors.Is(err, archive.ENotEnoughSpace):
		return &StageError{CodeNotEnoughSpace, err}
	case err != nil:
		return &StageError{CodeExtraction, err}
	}
	if o.Unmount != nil && futil.IsMountpoint(o.Bundle.Root) {
		if err = o.Unmount(o.Bundle.Root); err != nil {
			log.Logf("unmounting %s: %s", o.Bundle.Root, err)
		}
	}
	return nil
}

func (o *Orchestrator) readConfig(context.Context) error {
	cfg, err := devconfig.Load(o.layout.ConfigPath())
	if err != nil {
		return &StageError{CodeConfiguration, err}
	}
	o.config = cfg
	return nil
}

// Upper bounds, as a percentage of the update stage, of apt-get update and of
// the own-package upgrade. dist-upgrade gets the rest.
const (
	updateShare      = 10
	selfUpgradeShare = 20
)

func (o *Orchestrator) update(ctx context.Context) error {
	if !o.enabled(state.InstallUpdate) {
		return nil
	}
	//each apt invocation reports 0-100 on its own; map them onto
	//consecutive parts of the stage
	var lo, hi float64
	phase := func(from, to float64) {
		lo, hi = from, to
		o.State.Advance(from)
	}
	progress := func(pct float64) { o.State.Advance(lo + clamp(pct)*(hi-lo)/100) }
	u := o.NewUpdater(o.layout.UpdatesDir(), progress, func(msg string) {
		log.Logf("apt error: %s", msg)
	})
	var before string
	if !o.SkipSelfUpgrade {
		before = o.Version(ctx, o.SelfPackage)
		log.Logf("Before update, '%s' version is %s", o.SelfPackage, before)
	}
	log.Logf("Starting system update")
	o.State.Enter(StageUpdatingSystem)
	phase(0, updateShare)
	err := u.Update(ctx)
	if err == nil && !o.SkipSelfUpgrade {
		phase(updateShare, selfUpgradeShare)
		if err = u.UpgradePackage(ctx, o.SelfPackage); err == nil {
			after := o.Version(ctx, o.SelfPackage)
			if after != before {
				log.Logf("Package '%s' was updated from '%s' to '%s', restarting app...",
					o.SelfPackage, before, after)
				return ErrRestarting
			}
		}
	}
	if err == nil {
		phase(selfUpgradeShare, 100)
		err = u.Upgrade(ctx)
	}
	switch {
	case errors.Is(err, apt.ENotAnAptRepository):
		log.Logf("%s; skipping update", err)
		return nil
	case err != nil:
		return &StageError{CodeUpdate, err}
	}
	log.Logf("Finished updating")
	return nil
}

// Best-effort: failed bindings are logged, and do not end the run.
func (o *Orchestrator) configureDevice(ctx context.Context) error {
	if !o.enabled(state.ConfigureDevice) {
		return nil
	}
	o.State.Enter(StageConfiguringDevice)
	if err := devconfig.Apply(ctx, o.config, o.Device, o.State.SetProgress); err != nil {
		log.Logf("Device configuration incomplete: %s", err)
	}
	return nil
}

func (o *Orchestrator) installCertificates(ctx context.Context) error {
	if !o.enabled(state.InstallCertificates) {
		return nil
	}
	o.State.Enter(StageInstallingCertificates)
	if err := o.Certs.Install(ctx, o.layout.CertificatesDir(), o.State.SetProgress); err != nil {
		return &StageError{CodeCertificateInstallation, err}
	}
	return nil
}

// Failures are logged only; a device which is set up but offline is better
// than one which stopped here.
func (o *Orchestrator) configureNetwork(ctx context.Context) error {
	if !o.enabled(state.InstallNetwork) {
		return nil
	}
	o.State.Enter(StageConfiguringNetwork)
	raw, ok := o.config.Network()
	if !ok {
		log.Logf("No network configuration found; skipping...")
		o.State.SetProgress(100)
		return nil
	}
	n, err := network.Parse(raw)
	if err == nil {
		log.Logf("Connecting to network '%s'", n.SSID)
		err = o.Network.Connect(ctx, n)
	}
	if err != nil {
		log.Logf("%s: %s", CodeNetworkConfiguration, err)
	}
	o.State.SetProgress(100)
	return nil
}

func (o *Orchestrator) copyFiles(context.Context) error {
	if !o.enabled(state.CopyFiles) {
		return nil
	}
	o.State.Enter(StageCopyingFiles)
	if err := o.CopyFiles(o.layout.FilesDir(), o.FilesRoot, o.State.SetProgress); err != nil {
		return &StageError{CodeCopy, err}
	}
	return nil
}

func (o *Orchestrator) runScripts(ctx context.Context) error {
	if !o.enabled(state.RunScripts) {
		return nil
	}
	o.State.Enter(StageRunningScripts)
	if err := o.Scripts.Run(ctx, o.layout.ScriptsDir(), o.State.SetProgress); err != nil {
		return &StageError{CodeScripts, err}
	}
	return nil
}

func (o *Orchestrator) completeOnboarding(ctx context.Context) error {
	if !o.enabled(state.CompleteOnboarding) {
		return nil
	}
	o.State.Enter(StageCompletingOnboarding)
	reboot, err := o.Onboarding.Run(ctx, o.State.SetProgress)
	o.State.SetReboot(reboot)
	if err != nil {
		return &StageError{CodeOnboarding, err}
	}
	return nil
}

const workPrefix = "pi-top-usb-setup-"

// True for extraction dirs made by an earlier run, such as one which restarted.
func (o *Orchestrator) owns(dir string) bool {
	work := o.WorkDir
	if work == "" {
		work = os.TempDir()
	}
	return futil.IsWithin(work, dir) && strings.HasPrefix(fp.Base(dir), workPrefix)
}

// Cleanup removes the extraction dir, if this run owns it. Never called for a
// restarting run, since the next instance uses the dir.
func (o *Orchestrator) Cleanup() {
	if !o.cleanup || o.layout.Dir == "" {
		return
	}
	log.Logf("Cleaning up %s ...", o.layout.Dir)
	if err := os.RemoveAll(o.layout.Dir); err != nil {
		log.Logf("Error cleaning up %s: %s", o.layout.Dir, err)
	}
}
