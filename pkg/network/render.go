// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package network

import (
	"fmt"
	"strings"
	"time"

	"github.com/pi-top/pi-top-Offline-Updates/pkg/runner"
)

// Builds an argv alongside its printable form. Values are quoted in the
// printable form only.
type cmdline struct {
	argv []string
	text []string
}

func newCmdline(words ...string) *cmdline {
	c := &cmdline{}
	return c.word(words...)
}

func (c *cmdline) word(words ...string) *cmdline {
	c.argv = append(c.argv, words...)
	c.text = append(c.text, words...)
	return c
}

// key followed by a single-quoted value
func (c *cmdline) sq(key, val string) *cmdline {
	c.argv = append(c.argv, key, val)
	c.text = append(c.text, key, "'"+val+"'")
	return c
}

// key followed by a single-quoted value, if the value is set
func (c *cmdline) opt(key, val string) *cmdline {
	if val == "" {
		return c
	}
	return c.sq(key, val)
}

func (c *cmdline) optFile(key string, f *File) *cmdline {
	if f == nil {
		return c
	}
	return c.sq(key, f.Path)
}

// double-quoted value; an empty value is printed as nothing
func (c *cmdline) dq(val string) *cmdline {
	c.argv = append(c.argv, val)
	if val == "" {
		c.text = append(c.text, "")
	} else {
		c.text = append(c.text, `"`+val+`"`)
	}
	return c
}

func (c *cmdline) command() Command {
	return Command{
		Cmd:  runner.Cmd{Name: c.argv[0], Args: c.argv[1:], Timeout: DefaultTimeout},
		Text: strings.Join(c.text, " "),
	}
}

// DefaultTimeout bounds each network command.
const DefaultTimeout = 30 * time.Second

// Command is one step of connecting to a network.
type Command struct {
	Cmd  runner.Cmd
	Text string //as a shell user would type it
}

func (c Command) String() string { return c.Text }

// ProfilePrefix starts the name of every NetworkManager profile created here.
const ProfilePrefix = "PT-USB-SETUP-"

// ProfileName derives a stable NetworkManager profile name from the SSID.
func (n *Network) ProfileName() string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '\'', '"':
			return -1
		case ' ', '\t':
			return '-'
		}
		return r
	}, n.SSID)
	return ProfilePrefix + name
}

// RaspiConfig returns the raspi-config command for simple schemes. ok is
// false for other schemes.
func (n *Network) RaspiConfig() (cmd Command, ok bool) {
	var password string
	switch s := n.Security.(type) {
	case Open, OWE:
	case WPAPersonal:
		password = s.Password
	default:
		return Command{}, false
	}
	hidden := "0"
	if n.Hidden {
		hidden = "1"
	}
	const plain = "0"
	c := newCmdline("raspi-config", "nonint", "do_wifi_ssid_passphrase").dq(n.SSID).dq(password).word(hidden, plain)
	return c.command(), true
}

// NmcliAdd returns the command creating the NetworkManager profile.
func (n *Network) NmcliAdd(ifname string) Command {
	c := newCmdline("nmcli", "connection", "add", "type", "wifi", "ifname", ifname).
		sq("con-name", n.ProfileName()).
		sq("ssid", n.SSID)
	if n.Hidden {
		c.word("802-11-wireless.hidden", "yes")
	}
	n.Security.nmcli(c)
	return c.command()
}

func (n *Network) NmcliUp() Command {
	return newCmdline("nmcli", "connection").sq("up", n.ProfileName()).command()
}

func (n *Network) NmcliDelete() Command {
	return newCmdline("nmcli", "connection").sq("delete", n.ProfileName()).command()
}

func (Open) nmcli(*cmdline) {}

func (OWE) nmcli(c *cmdline) { c.word("802-11-wireless-security.key-mgmt", "OWE") }

func (w WPAPersonal) nmcli(c *cmdline) {
	c.word("mode", "infra", "802-11-wireless-security.key-mgmt", "wpa-psk").
		sq("802-11-wireless-security.psk", w.Password)
}

func (l LEAP) nmcli(c *cmdline) {
	c.word("802-11-wireless-security.auth-alg", "leap", "802-11-wireless-security.key-mgmt", "ieee8021x").
		sq("802-11-wireless-security.leap-username", l.Username).
		opt("802-11-wireless-security.leap-password", l.Password)
}

func (e *WPAEnterprise) nmcli(c *cmdline) { e.Method.nmcli(c) }

func (p *PWD) nmcli(c *cmdline) {
	c.word("key-mgmt", "wpa-eap", "802-1x.eap", "pwd").
		sq("802-1x.identity", p.Username).
		opt("802-1x.password", p.Password)
}

func (t *TLS) nmcli(c *cmdline) {
	c.word("802-11-wireless-security.key-mgmt", "wpa-eap", "802-1x.eap", "tls").
		sq("802-1x.identity", t.Identity).
		optFile("802-1x.private-key", t.PrivateKey).
		opt("802-1x.domain-suffix-match", t.Domain).
		optFile("802-1x.ca-cert", t.CACert).
		opt("802-1x.ca-cert-password", t.CACertPassword).
		optFile("802-1x.client-cert", t.UserCert).
		opt("802-1x.client-cert-password", t.UserCertPassword).
		opt("802-1x.private-key-password", t.PrivateKeyPassword)
}

func (t *TTLS) nmcli(c *cmdline) {
	c.word("802-11-wireless-security.key-mgmt", "wpa-eap", "802-1x.eap", "ttls").
		sq("802-1x.anonymous-identity", t.AnonymousIdentity).
		sq("802-1x.identity", t.Username).
		word("802-1x.phase2-auth", string(t.Inner)).
		optFile("802-1x.ca-cert", t.CACert).
		opt("802-1x.ca-cert-password", t.CACertPassword).
		opt("802-1x.password", t.Password)
}

func (p *PEAP) nmcli(c *cmdline) {
	c.word("802-11-wireless-security.key-mgmt", "wpa-eap", "802-1x.eap", "peap").
		sq("802-1x.identity", p.Username).
		word("802-1x.phase2-auth", string(p.Inner)).
		sq("802-1x.anonymous-identity", p.AnonymousIdentity)
	if p.Version != PEAPAutomatic {
		c.word("802-1x.phase1-peapver", fmt.Sprint(int(p.Version)))
	}
	c.opt("802-1x.domain-suffix-match", p.Domain).
		optFile("802-1x.ca-cert", p.CACert).
		opt("802-1x.ca-cert-password", p.CACertPassword).
		opt("802-1x.password", p.Password)
}

// Stanza renders the network as a wpa_supplicant.conf network block.
func (n *Network) Stanza() string {
	lines := []string{fmt.Sprintf("ssid=%q", n.SSID)}
	if n.Hidden {
		lines = append(lines, "scan_ssid=1")
	}
	lines = append(lines, n.Security.supplicant()...)
	return "network {\n        " + strings.Join(lines, "\n        ") + "\n}"
}

func quoted(key, val string) string { return fmt.Sprintf("%s=\"%s\"", key, val) }

func appendOpt(lines []string, key, val string) []string {
	if val == "" {
		return lines
	}
	return append(lines, quoted(key, val))
}

func appendFile(lines []string, key string, f *File) []string {
	if f == nil {
		return lines
	}
	return append(lines, quoted(key, f.Path))
}

func (Open) supplicant() []string { return []string{"key_mgmt=NONE"} }
func (OWE) supplicant() []string  { return []string{"key_mgmt=OWE"} }

func (w WPAPersonal) supplicant() []string {
	return []string{"key-mgmt=WPA-PSK", quoted("psk", w.Password)}
}

func (l LEAP) supplicant() []string {
	lines := []string{"auth_alg=LEAP", "key_mgmt=IEEE8021X", quoted("identity", l.Username)}
	return appendOpt(lines, "password", l.Password)
}

func (e *WPAEnterprise) supplicant() []string { return e.Method.supplicant() }

func (p *PWD) supplicant() []string {
	lines := []string{"key_mgmt=WPA-EAP", "eap=PWD", quoted("identity", p.Username)}
	return appendOpt(lines, "password", p.Password)
}

// wpa_supplicant has no setting for certificate passwords other than the
// private key's, so those are not rendered.
func (t *TLS) supplicant() []string {
	lines := []string{"key_mgmt=WPA-EAP", "eap=TLS", quoted("identity", t.Identity)}
	lines = appendFile(lines, "private_key", t.PrivateKey)
	lines = appendOpt(lines, "domain_suffix_match", t.Domain)
	lines = appendFile(lines, "ca_cert", t.CACert)
	lines = appendFile(lines, "client_cert", t.UserCert)
	return appendOpt(lines, "private_key_passwd", t.PrivateKeyPassword)
}

func (t *TTLS) supplicant() []string {
	lines := []string{
		"key_mgmt=WPA-EAP",
		"eap=TTLS",
		quoted("anonymous_identity", t.AnonymousIdentity),
		quoted("identity", t.Username),
		quoted("phase2", "auth="+string(t.Inner)),
	}
	lines = appendFile(lines, "ca_cert", t.CACert)
	return appendOpt(lines, "password", t.Password)
}

func (p *PEAP) supplicant() []string {
	lines := []string{
		"key_mgmt=WPA-EAP",
		`eap="PEAP"`,
		quoted("anonymous_identity", p.AnonymousIdentity),
		quoted("identity", p.Username),
		quoted("phase2", string(p.Inner)),
	}
	if p.Version != PEAPAutomatic {
		lines = append(lines, quoted("phase1", fmt.Sprintf("peapver=%d", p.Version)))
	}
	lines = appendOpt(lines, "domain_suffix_match", p.Domain)
	lines = appendFile(lines, "ca_cert", p.CACert)
	return appendOpt(lines, "password", p.Password)
}
