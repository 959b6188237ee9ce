// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package state persists the flags deciding which optional setup stages run,
// along with the flags handed from one run to its successor on restart. The
// store is a TOML file of tables holding string values.
package state

import (
	"errors"
	"fmt"
	"os"
	fp "path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/pi-top/pi-top-Offline-Updates/pkg/log"
)

const (
	DefaultPath = "/var/lib/pi-top-usb-setup/state.toml"
	AppSection  = "app"
)

// Stage keys, in the app section.
const (
	InstallUpdate       = "install_update"
	ConfigureDevice     = "configure_device"
	InstallCertificates = "install_certificates"
	InstallNetwork      = "install_network"
	CopyFiles           = "copy_files"
	RunScripts          = "run_scripts"
	CompleteOnboarding  = "complete_onboarding"
)

// Restart hand-off keys, in the app section. Cleared once read.
const (
	SkipDialog = "skip_dialog"
	SkipUpdate = "skip_update"
)

var EState = errors.New("state store")

// Store is a set of tables of key/value pairs backed by a file.
type Store struct {
	path string
	mu   sync.Mutex
	data map[string]map[string]string
}

// Load reads the store at path. A missing file yields an empty store, in
// which every stage is disabled.
func Load(path string) (*Store, error) {
	s := &Store{path: path, data: map[string]map[string]string{}}
	var raw map[string]map[string]interface{}
	_, err := toml.DecodeFile(path, &raw)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Logf("no state file at %s; all stages disabled", path)
			return s, nil
		}
		return nil, fmt.Errorf("%w: %s: %w", EState, path, err)
	}
	for section, kv := range raw {
		s.data[section] = map[string]string{}
		for k, v := range kv {
			s.data[section][k] = stringify(v)
		}
	}
	return s, nil
}

// Values may be written by hand as booleans or numbers.
func stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return fmt.Sprint(t)
	}
}

func (s *Store) Path() string { return s.path }

// Get returns the value of key in section, or def if unset.
func (s *Store) Get(section, key, def string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.data[section][key]; ok {
		return v
	}
	return def
}

func (s *Store) Set(section, key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data[section] == nil {
		s.data[section] = map[string]string{}
	}
	s.data[section][key] = value
}

func (s *Store) Delete(section, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data[section], key)
}

// Enabled is true if key in the app section is "true" or "1".
func (s *Store) Enabled(key string) bool {
	switch s.Get(AppSection, key, "false") {
	case "true", "1":
		return true
	}
	return false
}

// Keys returns the keys set in section, sorted.
func (s *Store) Keys(section string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for k := range s.data[section] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Save writes the store, replacing the file atomically.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(fp.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("%w: %w", EState, err)
	}
	tmp, err := os.CreateTemp(fp.Dir(s.path), ".state-*.toml")
	if err != nil {
		return fmt.Errorf("%w: %w", EState, err)
	}
	defer os.Remove(tmp.Name())
	err = toml.NewEncoder(tmp).Encode(s.data)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp.Name(), s.path)
	}
	if err != nil {
		return fmt.Errorf("%w: saving %s: %w", EState, s.path, err)
	}
	return nil
}

// Handoff is what a run passes to the run replacing it.
type Handoff struct {
	SkipDialog bool
	SkipUpdate bool
}

// SetHandoff records h for the next run and saves the store.
func (s *Store) SetHandoff(h Handoff) error {
	s.Set(AppSection, SkipDialog, strconv.FormatBool(h.SkipDialog))
	s.Set(AppSection, SkipUpdate, strconv.FormatBool(h.SkipUpdate))
	return s.Save()
}

// TakeHandoff returns the flags left by a previous run, clearing them. The
// store is saved only if something was cleared.
func (s *Store) TakeHandoff() (Handoff, error) {
	h := Handoff{SkipDialog: s.Enabled(SkipDialog), SkipUpdate: s.Enabled(SkipUpdate)}
	if s.Get(AppSection, SkipDialog, "") == "" && s.Get(AppSection, SkipUpdate, "") == "" {
		return h, nil
	}
	s.Delete(AppSection, SkipDialog)
	s.Delete(AppSection, SkipUpdate)
	return h, s.Save()
}
