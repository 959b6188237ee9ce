// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package devconfig

import (
	"bytes"
	"context"
	"fmt"
	"os"
	fp "path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/pi-top/pi-top-Offline-Updates/pkg/log"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/runner"
)

// Commands implements Actions by running templated command lines. Templates
// see .Value, or .Layout and .Variant for the keyboard, and may use the quote
// function. Expanded lines are split shell-style.
type Commands struct {
	Runner      runner.Runner
	Locale      string
	WifiCountry string
	Timezone    string
	Keyboard    string
	EmailFile   string //SetEmail writes the address here
	Timeout     time.Duration
}

var _ Actions = (*Commands)(nil)

// Defaults for Commands, targeting Raspberry Pi OS.
const (
	DefaultLocaleCmd      = "raspi-config nonint do_change_locale {{quote .Value}}"
	DefaultWifiCountryCmd = "raspi-config nonint do_wifi_country {{quote .Value}}"
	DefaultTimezoneCmd    = "raspi-config nonint do_change_timezone {{quote .Value}}"
	DefaultKeyboardCmd    = "localectl set-x11-keymap {{quote .Layout}} pc105 {{quote .Variant}}"
	DefaultEmailFile      = "/etc/pi-top/registration.txt"
	DefaultCmdTimeout     = time.Minute
)

func NewCommands(r runner.Runner) *Commands {
	return &Commands{
		Runner:      r,
		Locale:      DefaultLocaleCmd,
		WifiCountry: DefaultWifiCountryCmd,
		Timezone:    DefaultTimezoneCmd,
		Keyboard:    DefaultKeyboardCmd,
		EmailFile:   DefaultEmailFile,
		Timeout:     DefaultCmdTimeout,
	}
}

type tmplData struct {
	Value, Layout, Variant string
}

// Single-quotes s for shell-style splitting.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

var funcs = template.FuncMap{"quote": quote}

func expand(in string, data tmplData) (string, error) {
	tmpl, err := template.New("").Funcs(funcs).Parse(in)
	if err != nil {
		return "", fmt.Errorf("parsing templated command %q: %w", in, err)
	}
	var buf bytes.Buffer
	if err = tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("expanding templated command %q: %w", in, err)
	}
	return buf.String(), nil
}

func (c *Commands) run(ctx context.Context, tmpl string, data tmplData) error {
	if tmpl == "" {
		return fmt.Errorf("no command configured")
	}
	line, err := expand(tmpl, data)
	if err != nil {
		return err
	}
	cmd, err := runner.Parse(line, c.Timeout)
	if err != nil {
		return err
	}
	log.Logf("Executing '%s'", cmd)
	_, err = c.Runner.Run(ctx, cmd)
	return err
}

func (c *Commands) SetLocale(ctx context.Context, locale string) error {
	return c.run(ctx, c.Locale, tmplData{Value: locale})
}

func (c *Commands) SetWifiCountry(ctx context.Context, country string) error {
	return c.run(ctx, c.WifiCountry, tmplData{Value: country})
}

func (c *Commands) SetTimezone(ctx context.Context, tz string) error {
	return c.run(ctx, c.Timezone, tmplData{Value: tz})
}

func (c *Commands) SetKeyboard(ctx context.Context, layout, variant string) error {
	return c.run(ctx, c.Keyboard, tmplData{Layout: layout, Variant: variant})
}

func (c *Commands) SetEmail(_ context.Context, email string) error {
	if err := os.MkdirAll(fp.Dir(c.EmailFile), 0755); err != nil {
		return err
	}
	log.Logf("Writing registration email to %s", c.EmailFile)
	return os.WriteFile(c.EmailFile, []byte(email+"\n"), 0644)
}
