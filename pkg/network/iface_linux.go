// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package network

import (
	"context"
	"net"
	fp "path/filepath"
	"time"

	"github.com/vishvananda/netlink"

	futil "github.com/pi-top/pi-top-Offline-Updates/pkg/fileutil"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/log"
)

// DefaultInterface is used when no wireless interface can be found.
const DefaultInterface = "wlan0"

var sysClassNet = "/sys/class/net"

// replaced in tests
var linkNames = func() ([]string, error) {
	links, err := netlink.LinkList()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(links))
	for _, l := range links {
		names = append(names, l.Attrs().Name)
	}
	return names, nil
}

// WirelessInterface returns the name of the first wireless link, or
// DefaultInterface.
func WirelessInterface() string {
	names, err := linkNames()
	if err != nil {
		log.Logf("listing links: %s", err)
		return DefaultInterface
	}
	for _, name := range names {
		if futil.Exists(fp.Join(sysClassNet, name, "wireless")) || futil.Exists(fp.Join(sysClassNet, name, "phy80211")) {
			return name
		}
	}
	log.Logf("no wireless link among %v, using %s", names, DefaultInterface)
	return DefaultInterface
}

// HasIpv4 returns true if the named interface has an ipv4 address.
func HasIpv4(name string) bool {
	link, err := netlink.LinkByName(name)
	if err != nil {
		return false
	}
	addrs, err := netlink.AddrList(link, netlink.FAMILY_V4)
	if err != nil {
		log.Logf("listing addresses of %s: %s", name, err)
		return false
	}
	for _, a := range addrs {
		if a.IP.To4() != nil && !a.IP.Equal(net.IPv4zero) {
			return true
		}
	}
	return false
}

// WaitForIpv4 waits until the interface gains an ipv4 address, or until the
// wait time has expired.
func WaitForIpv4(ctx context.Context, wait time.Duration, name string) bool {
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	tick := time.NewTicker(time.Second)
	defer tick.Stop()
	for {
		if HasIpv4(name) {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-tick.C:
		}
	}
}
