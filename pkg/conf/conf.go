// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package conf loads the application configuration. Every setting is
// optional; a missing file means defaults throughout.
//
// Example:
//
//   log_dir = "/var/log/pi-top-usb-setup"
//
//   [timeouts]
//   apt = "2h"
//   script = "20m"
//
//   [network]
//   backend = "nmcli"
//
//   [certificates.ca-certificates]
//   path = "/usr/local/share/ca-certificates"
//   command = "update-ca-certificates"
package conf

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/pi-top/pi-top-Offline-Updates/pkg/apt"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/bundle"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/certs"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/deploy"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/devconfig"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/log"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/network"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/onboard"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/state"
)

const DefaultPath = "/etc/pi-top/pt-usb-setup/config.toml"

var EConfig = errors.New("bad configuration")

type Config struct {
	WorkDir         string `toml:"work_dir"` //extraction dirs are created here; empty means os.TempDir()
	ArchiveGlob     string `toml:"archive_glob"`
	LogDir          string `toml:"log_dir"`
	StateFile       string `toml:"state_file"`
	OSRelease       string `toml:"os_release"`
	AptSourceFile   string `toml:"apt_source_file"`
	SelfPackage     string `toml:"self_package"`
	ServiceTemplate string `toml:"service_template"`

	Timeouts     Timeouts         `toml:"timeouts"`
	Network      Network          `toml:"network"`
	Device       Device           `toml:"device"`
	Onboarding   Onboarding       `toml:"onboarding"`
	Certificates certs.Categories `toml:"certificates"`
}

type Timeouts struct {
	Apt         time.Duration `toml:"apt"`
	Chmod       time.Duration `toml:"chmod"`
	Script      time.Duration `toml:"script"`
	Certificate time.Duration `toml:"certificate"`
	Network     time.Duration `toml:"network"`
	Device      time.Duration `toml:"device"`
	Onboarding  time.Duration `toml:"onboarding"`
}

type Network struct {
	Backend        string        `toml:"backend"`
	Interface      string        `toml:"interface"`
	SupplicantConf string        `toml:"supplicant_conf"`
	WaitAddress    time.Duration `toml:"wait_address"`
}

// Device holds the command templates run for device configuration keys.
type Device struct {
	Locale      string `toml:"locale"`
	WifiCountry string `toml:"wifi_country"`
	Timezone    string `toml:"timezone"`
	Keyboard    string `toml:"keyboard"`
	EmailFile   string `toml:"email_file"`
}

type Onboarding struct {
	Root          string `toml:"root"`
	Marker        string `toml:"marker"`
	EEPROMCommand string `toml:"eeprom_command"`
	APModeCommand string `toml:"ap_mode_command"`
}

const (
	DefaultLogDir          = "/var/log/pi-top-usb-setup"
	DefaultSelfPackage     = "pi-top-usb-setup"
	DefaultServiceTemplate = "pt-usb-setup@.service"
)

func Defaults() *Config {
	return &Config{
		ArchiveGlob:     bundle.DefaultArchiveGlob,
		LogDir:          DefaultLogDir,
		StateFile:       state.DefaultPath,
		OSRelease:       bundle.OSReleasePath,
		AptSourceFile:   apt.DefaultSourceFile,
		SelfPackage:     DefaultSelfPackage,
		ServiceTemplate: DefaultServiceTemplate,
		Timeouts: Timeouts{
			Apt:         apt.DefaultTimeout,
			Chmod:       deploy.DefaultChmodTimeout,
			Script:      deploy.DefaultScriptTimeout,
			Certificate: certs.DefaultCommandTimeout,
			Network:     network.DefaultTimeout,
			Device:      devconfig.DefaultCmdTimeout,
			Onboarding:  onboard.DefaultCommandTimeout,
		},
		Network: Network{
			Backend:        string(network.BackendAuto),
			SupplicantConf: network.DefaultSupplicantConf,
		},
		Device: Device{
			Locale:      devconfig.DefaultLocaleCmd,
			WifiCountry: devconfig.DefaultWifiCountryCmd,
			Timezone:    devconfig.DefaultTimezoneCmd,
			Keyboard:    devconfig.DefaultKeyboardCmd,
			EmailFile:   devconfig.DefaultEmailFile,
		},
		Onboarding: Onboarding{
			Marker:        onboard.DefaultMarker,
			EEPROMCommand: onboard.DefaultEEPROMCommand,
			APModeCommand: onboard.DefaultAPModeCommand,
		},
		Certificates: certs.DefaultCategories(),
	}
}

// Load reads the file at path over the defaults. A missing file is not an
// error. Unknown keys are logged and ignored.
func Load(path string) (*Config, error) {
	c := Defaults()
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s: %w", EConfig, path, err)
		}
		log.Logf("Configuration file %s not found, using defaults", path)
		return c, nil
	}
	for _, k := range md.Undecoded() {
		log.Logf("%s: ignoring unknown key %s", path, k)
	}
	if err = c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	if _, err := network.ParseBackend(c.Network.Backend); err != nil {
		return fmt.Errorf("%w: %w", EConfig, err)
	}
	for name, d := range map[string]time.Duration{
		"apt":         c.Timeouts.Apt,
		"chmod":       c.Timeouts.Chmod,
		"script":      c.Timeouts.Script,
		"certificate": c.Timeouts.Certificate,
		"network":     c.Timeouts.Network,
		"device":      c.Timeouts.Device,
	} {
		if d < 0 {
			return fmt.Errorf("%w: negative %s timeout %s", EConfig, name, d)
		}
	}
	for name, cat := range c.Certificates {
		if cat.Path == "" {
			return fmt.Errorf("%w: certificate category %s has no path", EConfig, name)
		}
	}
	return nil
}

// Write encodes c as TOML, for --dump-config.
func (c *Config) Write(w io.Writer) error { return toml.NewEncoder(w).Encode(c) }
