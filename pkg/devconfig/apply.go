// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package devconfig

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pi-top/pi-top-Offline-Updates/pkg/log"
)

// Actions change system settings. Implemented by Commands; tests substitute
// a recorder.
type Actions interface {
	SetLocale(ctx context.Context, locale string) error
	SetWifiCountry(ctx context.Context, country string) error
	SetTimezone(ctx context.Context, tz string) error
	SetKeyboard(ctx context.Context, layout, variant string) error
	SetEmail(ctx context.Context, email string) error
}

// Binding ties one configuration key to the action consuming it.
type Binding struct {
	Key   string
	Apply func(ctx context.Context, a Actions, v json.RawMessage) error
}

// Adapts a single-string action, such as Actions.SetLocale.
func stringAction(fn func(Actions, context.Context, string) error) func(context.Context, Actions, json.RawMessage) error {
	return func(ctx context.Context, a Actions, v json.RawMessage) error {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return err
		}
		return fn(a, ctx, s)
	}
}

var EKeyboard = errors.New("keyboard_layout must be [layout, variant]")

func setKeyboard(ctx context.Context, a Actions, v json.RawMessage) error {
	var lv []string
	if err := json.Unmarshal(v, &lv); err != nil {
		return fmt.Errorf("%w: %w", EKeyboard, err)
	}
	if len(lv) != 2 {
		return fmt.Errorf("%w: got %d values", EKeyboard, len(lv))
	}
	return a.SetKeyboard(ctx, lv[0], lv[1])
}

// Bindings in the order they are applied. The network key is handled by
// its own stage and is not bound here.
var Bindings = []Binding{
	{KeyLanguage, stringAction(Actions.SetLocale)},
	{KeyCountry, stringAction(Actions.SetWifiCountry)},
	{KeyTimeZone, stringAction(Actions.SetTimezone)},
	{KeyKeyboard, setKeyboard},
	{KeyEmail, stringAction(Actions.SetEmail)},
}

// Apply runs each binding whose key is present. Failures are logged and do
// not stop later bindings; they are returned joined so the caller can report
// them. onProgress is called once per binding, skipped or not.
func Apply(ctx context.Context, cfg *DeviceConfig, a Actions, onProgress func(pct float64)) error {
	log.Logf("Configuring device...")
	var errs []error
	for i, b := range Bindings {
		if v, ok := cfg.Raw(b.Key); !ok {
			log.Logf("'%s' not found in configuration file, skipping...", b.Key)
		} else {
			log.Logf("%s: applying '%s'", b.Key, v)
			if err := b.Apply(ctx, a, v); err != nil {
				log.Logf("%s: %s", b.Key, err)
				errs = append(errs, fmt.Errorf("%s: %w", b.Key, err))
			}
		}
		if onProgress != nil {
			onProgress(float64(i+1) * 100 / float64(len(Bindings)))
		}
	}
	return errors.Join(errs...)
}
