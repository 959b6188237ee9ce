// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package systemd starts, stops, enables and queries units. The system bus
// is used when available; otherwise commands go through systemctl.
package systemd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/unit"

	"github.com/pi-top/pi-top-Offline-Updates/pkg/log"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/runner"
)

// Manager controls units.
type Manager interface {
	Start(ctx context.Context, name string) error
	Enable(ctx context.Context, name string) error
	IsActive(ctx context.Context, name string) bool
	Close()
}

// Connect returns a Manager using the system bus, or one shelling out to
// systemctl if the bus cannot be reached.
func Connect(ctx context.Context, r runner.Runner) Manager {
	m, err := NewDBus(ctx)
	if err != nil {
		log.Logf("system bus unavailable, using systemctl: %s", err)
		return &Systemctl{Runner: r}
	}
	return m
}

// InstanceName returns the name of the instance of template (such as
// "pt-usb-setup@.service") for arg, escaped as systemd-escape does.
func InstanceName(template, arg string) string {
	prefix, suffix, _ := strings.Cut(template, "@")
	return prefix + "@" + unit.UnitNameEscape(arg) + suffix
}

// Service appends .service if name has no unit suffix.
func Service(name string) string {
	if strings.Contains(name, ".") {
		return name
	}
	return name + ".service"
}

//Is the current init system systemd?
func IsSystemd() bool {
	data, err := os.ReadFile("/proc/1/cmdline")
	if err != nil {
		log.Logf("error determining init system: %s", err)
	}
	return strings.Contains(string(data), "systemd")
}

const systemctlTimeout = 30 * time.Second

// Systemctl shells out to systemctl.
type Systemctl struct {
	Runner runner.Runner
	User   bool //operate on the user's service manager
}

var _ Manager = (*Systemctl)(nil)

func (s *Systemctl) arg() string {
	if s.User {
		return "--user"
	}
	return "--system"
}

func (s *Systemctl) run(ctx context.Context, verb, name string) error {
	_, err := s.Runner.Run(ctx, runner.Cmd{
		Name:    "systemctl",
		Args:    []string{s.arg(), verb, "-q", Service(name)},
		Timeout: systemctlTimeout,
	})
	if err != nil {
		return fmt.Errorf("systemctl %s %s: %w", verb, name, err)
	}
	return nil
}

func (s *Systemctl) Start(ctx context.Context, name string) error  { return s.run(ctx, "start", name) }
func (s *Systemctl) Enable(ctx context.Context, name string) error { return s.run(ctx, "enable", name) }
func (*Systemctl) Close()                                          {}

//True if systemctl reports the unit is active.
func (s *Systemctl) IsActive(ctx context.Context, name string) bool {
	return s.run(ctx, "is-active", name) == nil
}
