// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package apt

import (
	"fmt"
	"os"

	futil "github.com/pi-top/pi-top-Offline-Updates/pkg/fileutil"
	"github.com/pi-top/pi-top-Offline-Updates/pkg/log"
)

// DefaultSourceFile is where the transient source list is written.
const DefaultSourceFile = "/tmp/offline-apt-source.list"

var ENotAnAptRepository = fmt.Errorf("not an apt repository")

// Source is a file-based apt source list pointing at a local repository. It
// exists only between Acquire and Release.
type Source struct {
	Repo string //directory holding Packages(.gz) and the .debs
	File string //source list path
}

// SourceLine is the single line written to the source list.
func (s *Source) SourceLine() string {
	return fmt.Sprintf("deb [trusted=yes] file:%s ./", s.Repo)
}

// Acquire writes the source list. A stale list left by an earlier run is
// replaced. The caller must call Release, normally via defer.
func (s *Source) Acquire() error {
	if !futil.DirHasEntries(s.Repo) {
		return fmt.Errorf("%s: %w", s.Repo, ENotAnAptRepository)
	}
	s.remove()
	log.Logf("Creating offline apt source in %s", s.File)
	if err := os.WriteFile(s.File, []byte(s.SourceLine()), 0644); err != nil {
		return fmt.Errorf("writing apt source %s: %w", s.File, err)
	}
	return nil
}

// Release removes the source list. Safe to call more than once.
func (s *Source) Release() { s.remove() }

func (s *Source) remove() {
	if err := os.Remove(s.File); err != nil && !os.IsNotExist(err) {
		log.Logf("removing %s: %s", s.File, err)
	}
}

// Options returns the apt-get options restricting apt to this source.
func (s *Source) Options() []string {
	return []string{
		"-o", "Dir::Etc::sourcelist=" + s.File,
		"-o", "Dir::Etc::sourceparts=-",
		"-o", "APT::Get::List-Cleanup=0",
	}
}
