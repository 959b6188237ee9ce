// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package log

import (
	"fmt"
	"sync"
)

var (
	attrs   = map[string]interface{}{}
	attrsMu sync.Mutex
)

var EAttrExists = fmt.Errorf("an attr with this name already exists")

// Get an attribute of the current log stack, such as the file log's name.
func GetAttr(key string) (interface{}, bool) {
	attrsMu.Lock()
	defer attrsMu.Unlock()
	v, ok := attrs[key]
	return v, ok
}

// Set an attribute of the current log stack. Names must be unique.
func SetAttr(key string, val interface{}) error {
	attrsMu.Lock()
	defer attrsMu.Unlock()
	if _, exists := attrs[key]; exists {
		return EAttrExists
	}
	attrs[key] = val
	return nil
}

//Remove all attrs from the map
func ClearAttrs() {
	attrsMu.Lock()
	defer attrsMu.Unlock()
	for key := range attrs {
		delete(attrs, key)
	}
}
