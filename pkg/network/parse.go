// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package network

import (
	"encoding/json"
	"fmt"
)

type rawNetwork struct {
	SSID           *string `json:"ssid"`
	Hidden         bool    `json:"hidden"`
	Authentication *struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	} `json:"authentication"`
}

// Parse decodes a network descriptor. Unknown fields are ignored; unknown
// variants and missing required fields are errors.
func Parse(data []byte) (*Network, error) {
	var raw rawNetwork
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("network: %w", err)
	}
	if raw.SSID == nil || *raw.SSID == "" {
		return nil, fmt.Errorf("network: %w: ssid", ERequired)
	}
	if raw.Authentication == nil {
		return nil, fmt.Errorf("network: %w: authentication", ERequired)
	}
	sec, err := parseSecurity(raw.Authentication.Type, raw.Authentication.Data)
	if err != nil {
		return nil, fmt.Errorf("network %q: %w", *raw.SSID, err)
	}
	return &Network{SSID: *raw.SSID, Hidden: raw.Hidden, Security: sec}, nil
}

func decode(data json.RawMessage, v interface{}) error {
	if len(data) == 0 || string(data) == "null" {
		data = []byte("{}")
	}
	return json.Unmarshal(data, v)
}

// Returns the value of a required string field.
func required(name string, v *string) (string, error) {
	if v == nil || *v == "" {
		return "", fmt.Errorf("%w: %s", ERequired, name)
	}
	return *v, nil
}

func optional(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func parseSecurity(kind string, data json.RawMessage) (Security, error) {
	switch kind {
	case "OPEN":
		return Open{}, nil
	case "OWE":
		return OWE{}, nil
	case "WPA_PERSONAL":
		var d struct {
			Password *string `json:"password"`
		}
		if err := decode(data, &d); err != nil {
			return nil, err
		}
		pw, err := required("password", d.Password)
		return WPAPersonal{Password: pw}, err
	case "LEAP":
		var d struct {
			Username *string `json:"username"`
			Password *string `json:"password"`
		}
		if err := decode(data, &d); err != nil {
			return nil, err
		}
		user, err := required("username", d.Username)
		return LEAP{Username: user, Password: optional(d.Password)}, err
	case "WPA_ENTERPRISE":
		var d struct {
			Authentication string `json:"authentication"`
		}
		if err := decode(data, &d); err != nil {
			return nil, err
		}
		m, err := parseMethod(d.Authentication, data)
		if err != nil {
			return nil, err
		}
		return &WPAEnterprise{Method: m}, nil
	}
	return nil, fmt.Errorf("%w %q", EUnknownType, kind)
}

func parseMethod(kind string, data json.RawMessage) (EAPMethod, error) {
	var err error
	switch kind {
	case "PWD":
		var d struct {
			Username *string `json:"username"`
			Password *string `json:"password"`
		}
		if err = decode(data, &d); err != nil {
			return nil, err
		}
		m := &PWD{Password: optional(d.Password)}
		m.Username, err = required("username", d.Username)
		return m, err
	case "TLS":
		var d struct {
			Identity           *string `json:"identity"`
			PrivateKey         *File   `json:"user_private_key"`
			Domain             *string `json:"domain"`
			CACert             *File   `json:"ca_cert"`
			CACertPassword     *string `json:"ca_cert_password"`
			UserCert           *File   `json:"user_cert"`
			UserCertPassword   *string `json:"user_cert_password"`
			PrivateKeyPassword *string `json:"user_private_key_password"`
		}
		if err = decode(data, &d); err != nil {
			return nil, err
		}
		if d.PrivateKey == nil {
			return nil, fmt.Errorf("%w: user_private_key", ERequired)
		}
		m := &TLS{
			PrivateKey:         d.PrivateKey,
			Domain:             optional(d.Domain),
			CACert:             d.CACert,
			CACertPassword:     optional(d.CACertPassword),
			UserCert:           d.UserCert,
			UserCertPassword:   optional(d.UserCertPassword),
			PrivateKeyPassword: optional(d.PrivateKeyPassword),
		}
		m.Identity, err = required("identity", d.Identity)
		return m, err
	case "TTLS":
		var d struct {
			AnonymousIdentity *string    `json:"anonymous_identity"`
			Username          *string    `json:"username"`
			Inner             *TTLSInner `json:"inner_authentication"`
			CACert            *File      `json:"ca_cert"`
			CACertPassword    *string    `json:"ca_cert_password"`
			Password          *string    `json:"password"`
		}
		if err = decode(data, &d); err != nil {
			return nil, err
		}
		if d.Inner == nil {
			return nil, fmt.Errorf("%w: inner_authentication", ERequired)
		}
		m := &TTLS{
			Inner:          *d.Inner,
			CACert:         d.CACert,
			CACertPassword: optional(d.CACertPassword),
			Password:       optional(d.Password),
		}
		if m.AnonymousIdentity, err = required("anonymous_identity", d.AnonymousIdentity); err != nil {
			return nil, err
		}
		m.Username, err = required("username", d.Username)
		return m, err
	case "PEAP":
		var d struct {
			AnonymousIdentity *string     `json:"anonymous_identity"`
			Username          *string     `json:"username"`
			Inner             *PEAPInner  `json:"inner_authentication"`
			Version           PEAPVersion `json:"peap_version"`
			Domain            *string     `json:"domain"`
			CACert            *File       `json:"ca_cert"`
			CACertPassword    *string     `json:"ca_cert_password"`
			Password          *string     `json:"password"`
		}
		d.Version = PEAPAutomatic
		if err = decode(data, &d); err != nil {
			return nil, err
		}
		if d.Inner == nil {
			return nil, fmt.Errorf("%w: inner_authentication", ERequired)
		}
		m := &PEAP{
			Inner:          *d.Inner,
			Version:        d.Version,
			Domain:         optional(d.Domain),
			CACert:         d.CACert,
			CACertPassword: optional(d.CACertPassword),
			Password:       optional(d.Password),
		}
		if m.AnonymousIdentity, err = required("anonymous_identity", d.AnonymousIdentity); err != nil {
			return nil, err
		}
		m.Username, err = required("username", d.Username)
		return m, err
	}
	return nil, fmt.Errorf("%w %q for WPA_ENTERPRISE", EUnknownType, kind)
}
