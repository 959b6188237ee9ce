// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package network

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	fp "path/filepath"
	"strings"
	"time"

	"github.com/pi-top/pi-top-Offline-Updates/pkg/log"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/runner"
)

var ENetwork = errors.New("network configuration failed")

// Backend selects how networks are configured.
type Backend string

const (
	BackendAuto          Backend = "auto"
	BackendNmcli         Backend = "nmcli"
	BackendRaspiConfig   Backend = "raspi-config"
	BackendWpaSupplicant Backend = "wpa_supplicant"
)

const DefaultSupplicantConf = "/etc/wpa_supplicant/wpa_supplicant.conf"

func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(s)); b {
	case "", BackendAuto:
		return BackendAuto, nil
	case BackendNmcli, BackendRaspiConfig, BackendWpaSupplicant:
		return b, nil
	}
	return "", fmt.Errorf("%w: network backend %q", EBadValue, s)
}

// Plan is what Connect does for one network, in order: write inline files,
// append Stanza to the supplicant configuration if set, run Commands.
type Plan struct {
	Files    []*File
	Stanza   string
	Commands []Command
}

// Lines returns the printable form of each command.
func (p *Plan) Lines() []string {
	lines := make([]string, len(p.Commands))
	for i, c := range p.Commands {
		lines[i] = c.Text
	}
	return lines
}

// Connector configures networks on this system.
type Connector struct {
	Runner         runner.Runner
	Backend        Backend
	Interface      string        //empty: WirelessInterface()
	SupplicantConf string        //empty: DefaultSupplicantConf
	Timeout        time.Duration //per command; 0 keeps DefaultTimeout
	WaitAddress    time.Duration //after connecting, wait this long for an ipv4 address

	// Locates executables; exec.LookPath if nil.
	LookPath func(file string) (string, error)
}

func (c *Connector) has(cmd string) bool {
	look := c.LookPath
	if look == nil {
		look = exec.LookPath
	}
	_, err := look(cmd)
	return err == nil
}

func (c *Connector) ifname() string {
	if c.Interface == "" {
		c.Interface = WirelessInterface()
	}
	return c.Interface
}

// True if nmcli is installed and NetworkManager is running.
func (c *Connector) nmActive(ctx context.Context) bool {
	if !c.has("nmcli") {
		return false
	}
	_, err := c.Runner.Run(ctx, runner.Cmd{
		Name:    "systemctl",
		Args:    []string{"is-active", "--quiet", "NetworkManager"},
		Timeout: 5 * time.Second,
	})
	return err == nil
}

// Backend to use for n.
func (c *Connector) resolve(ctx context.Context, n *Network) Backend {
	b := c.Backend
	if b == "" {
		b = BackendAuto
	}
	if Simple(n.Security) && (b == BackendRaspiConfig || (b == BackendAuto && c.has("raspi-config"))) {
		return BackendRaspiConfig
	}
	if b == BackendNmcli || b == BackendWpaSupplicant {
		return b
	}
	if c.nmActive(ctx) {
		return BackendNmcli
	}
	return BackendWpaSupplicant
}

// Existing NetworkManager profile names.
func (c *Connector) profiles(ctx context.Context) []string {
	out, err := runner.Output(ctx, c.Runner, runner.Cmd{
		Name:    "nmcli",
		Args:    []string{"-g", "NAME", "connection", "show"},
		Timeout: c.timeout(),
	})
	if err != nil {
		log.Logf("listing NetworkManager profiles: %s", err)
		return nil
	}
	return strings.Split(strings.TrimSpace(out), "\n")
}

func (c *Connector) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}

// Plan decides how to configure n, without changing anything.
func (c *Connector) Plan(ctx context.Context, n *Network) *Plan {
	p := &Plan{Files: n.Files()}
	switch c.resolve(ctx, n) {
	case BackendRaspiConfig:
		cmd, _ := n.RaspiConfig()
		p.Commands = append(p.Commands, cmd)
	case BackendNmcli:
		name := n.ProfileName()
		for _, existing := range c.profiles(ctx) {
			if existing == name {
				p.Commands = append(p.Commands, n.NmcliDelete())
				break
			}
		}
		p.Commands = append(p.Commands, n.NmcliAdd(c.ifname()), n.NmcliUp())
	case BackendWpaSupplicant:
		p.Stanza = n.Stanza()
		p.Commands = append(p.Commands,
			newCmdline("wpa_cli", "-i", c.ifname(), "reconfigure").command())
	}
	for i := range p.Commands {
		p.Commands[i].Cmd.Timeout = c.timeout()
	}
	return p
}

// Connect configures n. Every step is attempted even if an earlier one
// fails; failures are logged and returned together.
func (c *Connector) Connect(ctx context.Context, n *Network) error {
	log.Logf("Setting network %q (%s)", n.SSID, n.Security.Type())
	p := c.Plan(ctx, n)
	var errs []error
	for _, f := range p.Files {
		if err := writeFile(f); err != nil {
			log.Logf("writing %s: %s", f.Path, err)
			errs = append(errs, err)
		}
	}
	if p.Stanza != "" {
		if err := c.appendStanza(p.Stanza); err != nil {
			log.Logf("updating %s: %s", c.supplicantConf(), err)
			errs = append(errs, err)
		}
	}
	for _, cmd := range p.Commands {
		log.Logf("--> Connecting to network: %s", cmd)
		if _, err := c.Runner.Run(ctx, cmd.Cmd); err != nil {
			log.Logf("%s: %s", cmd.Cmd.Name, err)
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ENetwork, errors.Join(errs...))
	}
	if c.WaitAddress > 0 {
		if WaitForIpv4(ctx, c.WaitAddress, c.ifname()) {
			log.Logf("%s has an ipv4 address", c.ifname())
		} else {
			log.Logf("%s has no ipv4 address after %s", c.ifname(), c.WaitAddress)
		}
	}
	return nil
}

func (c *Connector) supplicantConf() string {
	if c.SupplicantConf == "" {
		return DefaultSupplicantConf
	}
	return c.SupplicantConf
}

func (c *Connector) appendStanza(stanza string) error {
	f, err := os.OpenFile(c.supplicantConf(), os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0600)
	if err != nil {
		return err
	}
	if _, err = fmt.Fprintf(f, "\n%s\n", stanza); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeFile(f *File) error {
	if err := os.MkdirAll(fp.Dir(f.Path), 0755); err != nil {
		return err
	}
	log.Logf("Saving %s", f.Path)
	return os.WriteFile(f.Path, []byte(f.Content), 0600)
}
