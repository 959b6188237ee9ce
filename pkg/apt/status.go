// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package apt

import (
	"strconv"
	"strings"
)

// Kind of a status-fd line.
type Kind int

const (
	KindUnknown Kind = iota
	KindPackage      //pmstatus: dpkg progress
	KindDownload     //dlstatus: download progress
	KindError        //error: dpkg or download failure
	KindConffile     //pmconffile: conffile prompt
)

var kinds = map[string]Kind{
	"pmstatus":   KindPackage,
	"dlstatus":   KindDownload,
	"error":      KindError,
	"pmerror":    KindError,
	"pmconffile": KindConffile,
}

func (k Kind) String() string {
	switch k {
	case KindPackage:
		return "pmstatus"
	case KindDownload:
		return "dlstatus"
	case KindError:
		return "error"
	case KindConffile:
		return "pmconffile"
	}
	return "unknown"
}

// Status is one parsed line of apt's status stream, which has the form
// type:package:percent:description. The description may contain colons.
type Status struct {
	Kind        Kind
	Package     string
	Percent     float64
	Description string
}

// ParseStatus parses a status-fd line. ok is false for lines which are not
// status lines, or which carry an unparseable percentage.
func ParseStatus(line string) (st Status, ok bool) {
	fields := strings.SplitN(strings.TrimSpace(line), ":", 4)
	if len(fields) < 4 {
		return
	}
	k, known := kinds[fields[0]]
	if !known {
		return
	}
	pct, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return
	}
	return Status{
		Kind:        k,
		Package:     fields[1],
		Percent:     pct,
		Description: fields[3],
	}, true
}
