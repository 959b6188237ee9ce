// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// pt-usb-setup provisions a pi-top from a setup bundle delivered on a USB
// drive. The bundle is an archive (or an already-extracted folder) holding a
// device config, offline package updates, certificates, files to copy and
// scripts to run.
//
// One run, driven by pkg/pipeline, goes through these stages in order, each
// gated by a flag persisted in pkg/state:
//
//    - extraction: the archive is unpacked into a working directory after a
//      free-space check, and the USB drive is unmounted.
//    - update: apt is pointed at the bundled repository. If the package
//      providing this program is upgraded, the run hands off to a fresh
//      instance started via systemd and exits.
//    - device configuration: locale, keyboard, timezone, Wi-Fi country and
//      registration email.
//    - certificates, network, file copy and scripts.
//    - onboarding: first-boot completion, after which a reboot is required.
//
// Progress and the final message are shown by pkg/ui; any key dismisses the
// screen, rebooting if needed.
//
// Use `mage` (see mage/magerunner.go) to build and test.
//
package ptusbsetup
