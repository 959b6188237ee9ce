// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package devconfig reads the bundle's device configuration file and applies
// it. Keys are independent and optional; each is bound to one action and the
// bindings run in a fixed order. A failing action is logged and the remaining
// bindings still run.
package devconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/pi-top/pi-top-Offline-Updates/pkg/log"
)

var EParse = errors.New("malformed device configuration")

// Top-level keys of the configuration file.
const (
	KeyLanguage = "language"
	KeyCountry  = "country"
	KeyTimeZone = "time_zone"
	KeyKeyboard = "keyboard_layout"
	KeyEmail    = "email"
	KeyNetwork  = "network"
)

// DeviceConfig holds the raw value of each key present in the file. Values
// are decoded by the binding that consumes them, so one bad value does not
// prevent the others from being applied.
type DeviceConfig struct {
	Path   string
	values map[string]json.RawMessage
}

// Load reads the configuration at path. Comments and trailing commas are
// tolerated. A missing file yields an empty configuration.
func Load(path string) (*DeviceConfig, error) {
	cfg := &DeviceConfig{Path: path, values: map[string]json.RawMessage{}}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		log.Logf("No device configuration file found in '%s'; skipping....", path)
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", EParse, err)
	}
	log.Logf("Reading configuration file from %s ...", path)
	if cfg, err = Parse(data); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.Path = path
	log.Logf("Configuration keys: %s", strings.Join(cfg.Keys(), ", "))
	return cfg, nil
}

// Parse builds a DeviceConfig from a JSON document.
func Parse(data []byte) (*DeviceConfig, error) {
	cfg := &DeviceConfig{values: map[string]json.RawMessage{}}
	if err := json.Unmarshal(jsonc.ToJSON(data), &cfg.values); err != nil {
		return nil, fmt.Errorf("%w: %w", EParse, err)
	}
	return cfg, nil
}

// Raw returns the undecoded value for key. ok is false if the key is absent
// or its value is null.
func (c *DeviceConfig) Raw(key string) (v json.RawMessage, ok bool) {
	if c == nil {
		return nil, false
	}
	v, ok = c.values[key]
	if ok && string(v) == "null" {
		return nil, false
	}
	return
}

// Keys returns the keys present in the file, sorted.
func (c *DeviceConfig) Keys() []string {
	if c == nil {
		return nil
	}
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Network returns the network descriptor, if any.
func (c *DeviceConfig) Network() (json.RawMessage, bool) { return c.Raw(KeyNetwork) }
