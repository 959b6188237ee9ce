// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package network joins the wireless network described in the bundle's
// device configuration. A Network is decoded from JSON into one of a closed
// set of security variants; unknown variants are rejected when decoding.
// The variant is then rendered for whichever backend the system has:
// raspi-config for simple schemes, NetworkManager profiles, or a
// wpa_supplicant stanza.
package network

import (
	"encoding/json"
	"errors"
	"fmt"
	fp "path/filepath"
	"strings"
)

var (
	EUnknownType = errors.New("unknown authentication type")
	ERequired    = errors.New("missing required field")
	EBadValue    = errors.New("invalid value")
)

// Network is a decoded network descriptor.
type Network struct {
	SSID     string
	Hidden   bool
	Security Security
}

// Security is one of Open, OWE, WPAPersonal, LEAP or *WPAEnterprise.
type Security interface {
	// Name of the variant as used in the descriptor's type field.
	Type() string
	nmcli(c *cmdline)
	supplicant() []string
}

// Simple schemes can be configured without a connection manager.
func Simple(s Security) bool {
	switch s.(type) {
	case Open, OWE, WPAPersonal:
		return true
	}
	return false
}

type Open struct{}
type OWE struct{}

type WPAPersonal struct {
	Password string
}

type LEAP struct {
	Username string
	Password string
}

// WPAEnterprise wraps one EAP method.
type WPAEnterprise struct {
	Method EAPMethod
}

func (Open) Type() string           { return "OPEN" }
func (OWE) Type() string            { return "OWE" }
func (WPAPersonal) Type() string    { return "WPA_PERSONAL" }
func (LEAP) Type() string           { return "LEAP" }
func (*WPAEnterprise) Type() string { return "WPA_ENTERPRISE" }

// EAPMethod is one of *PWD, *TLS, *TTLS or *PEAP.
type EAPMethod interface {
	Method() string
	nmcli(c *cmdline)
	supplicant() []string
	files() []*File
}

type PWD struct {
	Username string
	Password string
}

type TLS struct {
	Identity           string
	PrivateKey         *File
	Domain             string
	CACert             *File
	CACertPassword     string
	UserCert           *File
	UserCertPassword   string
	PrivateKeyPassword string
}

type TTLS struct {
	AnonymousIdentity string
	Username          string
	Inner             TTLSInner
	CACert            *File
	CACertPassword    string
	Password          string
}

type PEAP struct {
	AnonymousIdentity string
	Username          string
	Inner             PEAPInner
	Version           PEAPVersion
	Domain            string
	CACert            *File
	CACertPassword    string
	Password          string
}

func (*PWD) Method() string  { return "PWD" }
func (*TLS) Method() string  { return "TLS" }
func (*TTLS) Method() string { return "TTLS" }
func (*PEAP) Method() string { return "PEAP" }

func (*PWD) files() []*File    { return nil }
func (t *TLS) files() []*File  { return nonNil(t.PrivateKey, t.CACert, t.UserCert) }
func (t *TTLS) files() []*File { return nonNil(t.CACert) }
func (p *PEAP) files() []*File { return nonNil(p.CACert) }

func nonNil(fs ...*File) (out []*File) {
	for _, f := range fs {
		if f != nil {
			out = append(out, f)
		}
	}
	return
}

// TTLSInner is the phase 2 method of TTLS.
type TTLSInner string

const (
	TTLSPAP           TTLSInner = "PAP"
	TTLSMSCHAP        TTLSInner = "MSCHAP"
	TTLSMSCHAPv2      TTLSInner = "MSCHAPv2"
	TTLSMSCHAPv2NoEAP TTLSInner = "MSCHAPv2_no_EAP"
	TTLSCHAP          TTLSInner = "CHAP"
	TTLSMD5           TTLSInner = "MD5"
	TTLSGTC           TTLSInner = "GTC"
)

func (t *TTLSInner) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch v := TTLSInner(s); v {
	case TTLSPAP, TTLSMSCHAP, TTLSMSCHAPv2, TTLSMSCHAPv2NoEAP, TTLSCHAP, TTLSMD5, TTLSGTC:
		*t = v
		return nil
	}
	return fmt.Errorf("%w: TTLS inner authentication %q", EBadValue, s)
}

// PEAPInner is the phase 2 method of PEAP.
type PEAPInner string

const (
	PEAPMSCHAPv2 PEAPInner = "MSCHAPv2"
	PEAPMD5      PEAPInner = "MD5"
	PEAPGTC      PEAPInner = "GTC"
)

func (p *PEAPInner) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch v := PEAPInner(s); v {
	case PEAPMSCHAPv2, PEAPMD5, PEAPGTC:
		*p = v
		return nil
	}
	return fmt.Errorf("%w: PEAP inner authentication %q", EBadValue, s)
}

type PEAPVersion int

const (
	PEAPAutomatic PEAPVersion = iota - 1
	PEAPVersion0
	PEAPVersion1
)

// null leaves v unchanged.
func (v *PEAPVersion) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	switch strings.ToUpper(strings.Trim(string(b), `"`)) {
	case "AUTOMATIC":
		*v = PEAPAutomatic
	case "VERSION0", "0":
		*v = PEAPVersion0
	case "VERSION1", "1":
		*v = PEAPVersion1
	default:
		return fmt.Errorf("%w: PEAP version %s", EBadValue, string(b))
	}
	return nil
}

// DefaultFileFolder is where inline files are written when the descriptor
// names no folder.
const DefaultFileFolder = "/tmp"

// File is a certificate or key. In the descriptor it is either a path to an
// existing file, or an object carrying the content inline, which must be
// written out before the network is configured.
type File struct {
	Path    string
	Content string
	Inline  bool
}

func (f *File) UnmarshalJSON(b []byte) error {
	var path string
	if err := json.Unmarshal(b, &path); err == nil {
		if path == "" {
			return fmt.Errorf("%w: empty file path", EBadValue)
		}
		f.Path = path
		return nil
	}
	var obj struct {
		Filename *string `json:"filename"`
		Content  *string `json:"content"`
		Folder   string  `json:"folder"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return fmt.Errorf("%w: file must be a path or {filename, content}: %w", EBadValue, err)
	}
	if obj.Filename == nil || *obj.Filename == "" {
		return fmt.Errorf("%w: file.filename", ERequired)
	}
	if obj.Content == nil {
		return fmt.Errorf("%w: file.content", ERequired)
	}
	if obj.Folder == "" {
		obj.Folder = DefaultFileFolder
	}
	f.Path = fp.Join(obj.Folder, fp.Base(*obj.Filename))
	f.Content = *obj.Content
	f.Inline = true
	return nil
}

// Files returns the inline files the network references.
func (n *Network) Files() (out []*File) {
	if e, ok := n.Security.(*WPAEnterprise); ok {
		for _, f := range e.Method.files() {
			if f.Inline {
				out = append(out, f)
			}
		}
	}
	return
}
