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
	"time"
)

// NormalizeTimestampsUTC coerces every Time-typed column of the dataset to
// UTC. Values carrying a zone offset are converted to the equivalent UTC
// instant; values already in UTC are left as-is. This is advisory
// normalization for the remote API, not a correctness-critical transform:
// a Time column holding values that are not time.Time is skipped rather
// than reported as an error. Nil cells are untouched. Applying the
// normalization twice is equivalent to applying it once.
func NormalizeTimestampsUTC(d *Dataset) {
	if d == nil {
		return
	}
	for ci, col := range d.cols {
		if col.Type != FieldTime {
			continue
		}
		if !timeColumnConvertible(d, ci) {
			continue
		}
		for ri := range d.rows {
			v := d.rows[ri][ci]
			if v == nil {
				continue
			}
			t := v.(time.Time)
			if t.Location() != time.UTC {
				d.setValue(ri, ci, t.UTC())
			}
		}
	}
}

// timeColumnConvertible reports whether every non-nil cell in the column
// actually holds a time.Time.
func timeColumnConvertible(d *Dataset, ci int) bool {
	for ri := range d.rows {
		v := d.rows[ri][ci]
		if v == nil {
			continue
		}
		if _, ok := v.(time.Time); !ok {
			return false
		}
	}
	return true
}
