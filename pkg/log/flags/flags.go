// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package flags holds the bit flags attached to each log entry. Sinks use them
// to decide whether an entry is for them.
package flags

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Flag int

const (
	NA Flag = 0

	//ok to display message to end user
	EndUser Flag = 1 << (iota - 1)
	//logging a fatal error
	Fatal
	//do not write to local file log
	NotFile
	//do not forward to journald
	NotJournal
)

var named = []Flag{EndUser, Fatal, NotFile, NotJournal}

func (f Flag) MarshalJSON() ([]byte, error) { return json.Marshal(f.String()) }
func (f Flag) String() string {
	switch f {
	case NA:
		return ""
	case EndUser:
		return "user"
	case Fatal:
		return "fatal"
	case NotFile:
		return "not file"
	case NotJournal:
		return "not journal"
	}
	for _, bit := range named {
		if f&bit > 0 {
			return strings.Join([]string{bit.String(), (f &^ bit).String()}, "|")
		}
	}
	return fmt.Sprintf("0x%x", int(f))
}
