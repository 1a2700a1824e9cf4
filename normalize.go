//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of PortalSync.
//
// PortalSync is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// PortalSync is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with PortalSync. If not, see https://www.gnu.org/licenses/.

package portalsync

import (
	"fmt"
	"strings"
	"unicode"

	"regexp"
)

var (
	nonWordRun    = regexp.MustCompile(`[^a-zA-Z0-9_]+`)
	underscoreRun = regexp.MustCompile(`_+`)
)

// NormalizeServiceName normalizes a human-provided name into a
// platform-legal service identifier: lowercase letters, digits, and
// underscores, not starting with a digit, at most 128 characters.
// The function is pure and idempotent; it fails only on input that is
// empty after trimming.
func NormalizeServiceName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("service name must not be empty")
	}
	if unicode.IsDigit(rune(name[0])) {
		name = "_" + name
	}
	name = nonWordRun.ReplaceAllString(name, "_")
	name = underscoreRun.ReplaceAllString(name, "_")
	name = strings.ToLower(name)
	if len(name) > 128 {
		name = name[:128]
	}
	return name, nil
}
