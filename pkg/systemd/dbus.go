// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package systemd

import (
	"context"
	"fmt"

	"github.com/coreos/go-systemd/v22/dbus"

	"github.com/pi-top/pi-top-Offline-Updates/pkg/log"
)

// DBus talks to systemd over the system bus.
type DBus struct {
	conn *dbus.Conn
}

var _ Manager = (*DBus)(nil)

func NewDBus(ctx context.Context) (*DBus, error) {
	conn, err := dbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return nil, err
	}
	return &DBus{conn: conn}, nil
}

func (d *DBus) Close() { d.conn.Close() }

// Waits for a queued job to finish.
func wait(ctx context.Context, verb, name string, ch <-chan string) error {
	select {
	case result := <-ch:
		if result != "done" {
			return fmt.Errorf("%s %s: job %s", verb, name, result)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s %s: %w", verb, name, ctx.Err())
	}
}

func (d *DBus) Start(ctx context.Context, name string) error {
	name = Service(name)
	ch := make(chan string, 1)
	if _, err := d.conn.StartUnitContext(ctx, name, "replace", ch); err != nil {
		return fmt.Errorf("start %s: %w", name, err)
	}
	return wait(ctx, "start", name, ch)
}

func (d *DBus) Enable(ctx context.Context, name string) error {
	name = Service(name)
	_, changes, err := d.conn.EnableUnitFilesContext(ctx, []string{name}, false, true)
	if err != nil {
		return fmt.Errorf("enable %s: %w", name, err)
	}
	for _, c := range changes {
		log.Logf("enable %s: %s %s -> %s", name, c.Type, c.Filename, c.Destination)
	}
	return d.conn.ReloadContext(ctx)
}

func (d *DBus) IsActive(ctx context.Context, name string) bool {
	name = Service(name)
	prop, err := d.conn.GetUnitPropertyContext(ctx, name, "ActiveState")
	if err != nil {
		log.Logf("querying %s: %s", name, err)
		return false
	}
	state, _ := prop.Value.Value().(string)
	return state == "active"
}
