// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package bundle locates and describes setup bundles. A bundle arrives either
// as a compressed archive on a USB mount point, or as a directory it has
// already been extracted into. Once extracted, everything lives under a
// single setup folder:
//
//   pi-top-usb-setup/
//     pi-top_config.json      device configuration (optional)
//     files/                  copied onto /, preserving relative paths
//     scripts/                run in lexicographic order
//     updates/                offline apt repository
//     updates_<codename>/     repository for a specific OS release
//     certificates/<category>/
package bundle

import (
	"encoding/json"
	"os"
	fp "path/filepath"

	"github.com/tidwall/jsonc"

	futil "github.com/pi-top/pi-top-Offline-Updates/pkg/fileutil"
)

const (
	SetupFolder        = "pi-top-usb-setup"
	ConfigFile         = "pi-top_config.json"
	FilesFolder        = "files"
	ScriptsFolder      = "scripts"
	UpdatesFolder      = "updates"
	CertificatesFolder = "certificates"

	// Archive names on the mount point. Newest by mtime wins.
	DefaultArchiveGlob = "pi-top-usb-setup*.tar.{gz,xz}"
)

// Layout maps an extraction dir onto the paths of a bundle's parts. Paths are
// computed, never cached; the filesystem may change between calls.
type Layout struct {
	// dir containing SetupFolder
	Dir string
	// OS release codename, selects updates_<codename> when present
	Codename string
}

func (l Layout) Folder() string            { return fp.Join(l.Dir, SetupFolder) }
func (l Layout) ConfigPath() string        { return fp.Join(l.Folder(), ConfigFile) }
func (l Layout) FilesDir() string          { return fp.Join(l.Folder(), FilesFolder) }
func (l Layout) ScriptsDir() string        { return fp.Join(l.Folder(), ScriptsFolder) }
func (l Layout) CertificatesDir() string   { return fp.Join(l.Folder(), CertificatesFolder) }
func (l Layout) genericUpdatesDir() string { return fp.Join(l.Folder(), UpdatesFolder) }

// UpdatesDir returns updates_<codename> if it exists, else updates.
func (l Layout) UpdatesDir() string {
	if l.Codename != "" {
		specific := fp.Join(l.Folder(), UpdatesFolder+"_"+l.Codename)
		if futil.IsDir(specific) {
			return specific
		}
	}
	return l.genericUpdatesDir()
}

// Presence flags for each part of a bundle.
type Presence struct {
	Config       bool
	Files        bool
	Scripts      bool
	Updates      bool
	Certificates bool
}

func (l Layout) Presence() Presence {
	return Presence{
		Config:       futil.Exists(l.ConfigPath()),
		Files:        futil.IsDir(l.FilesDir()),
		Scripts:      futil.IsDir(l.ScriptsDir()),
		Updates:      futil.DirHasEntries(l.UpdatesDir()),
		Certificates: futil.IsDir(l.CertificatesDir()),
	}
}

// Valid is true if the layout holds a parseable config file or a non-empty
// updates dir.
func (l Layout) Valid() bool {
	return configParses(l.ConfigPath()) || futil.DirHasEntries(l.UpdatesDir())
}

func configParses(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return json.Valid(jsonc.ToJSON(data))
}
