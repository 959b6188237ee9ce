// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package log

import (
	"log"
	"strings"

	"github.com/pi-top/pi-top-Offline-Updates/pkg/log/flags"
)

// AdaptStdlog redirects output from the standard library's "log" package into
// this logger, at the given level. Time flags are cleared on the std logger so
// timestamps aren't duplicated.
//
// Use nil for logger to redirect the predefined "standard" one.
func AdaptStdlog(logger *log.Logger, level flags.Flag) {
	sa := &stdAdapter{level: level}
	const timeFlags = log.Ldate | log.Ltime | log.Lmicroseconds
	if logger == nil {
		log.SetFlags(log.Flags() &^ timeFlags)
		log.SetOutput(sa)
		return
	}
	logger.SetFlags(logger.Flags() &^ timeFlags)
	logger.SetOutput(sa)
}

type stdAdapter struct {
	level flags.Flag
}

func (sa *stdAdapter) Write(b []byte) (int, error) {
	FlaggedLogf(sa.level, "%s", strings.TrimRight(string(b), "\n"))
	return len(b), nil
}
