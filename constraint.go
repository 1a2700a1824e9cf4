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
	"context"
	"fmt"
	"strings"
	"time"
)

// RetryPolicy bounds a fixed-interval poll. Sleep is injectable so tests
// can observe waits without blocking; nil means time.Sleep.
type RetryPolicy struct {
	MaxAttempts int
	Interval    time.Duration
	Sleep       func(time.Duration)
}

// DefaultRetryPolicy polls 12 times at 5-second spacing, about a minute
// of waiting for a requested index to become visible.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 12, Interval: 5 * time.Second}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 12
	}
	if p.Interval <= 0 {
		p.Interval = 5 * time.Second
	}
	return p
}

// wait blocks for one poll interval, honoring context cancellation.
func (p RetryPolicy) wait(ctx context.Context) error {
	if p.Sleep != nil {
		p.Sleep(p.Interval)
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(p.Interval):
		return nil
	}
}

// ConstraintEnsurer checks whether a remote table carries a unique index
// on a given column and requests one when absent, polling under its
// RetryPolicy until the index becomes visible. Re-invoking when the index
// already exists is a no-op read.
type ConstraintEnsurer struct {
	Policy RetryPolicy
}

// Ensure verifies or establishes a unique index on column. It returns nil
// once the index is observably present. If the retry budget is exhausted
// before the index appears, the error matches ErrConstraintUnavailable;
// callers doing upsert-family writes should abort rather than proceed,
// since upsert correctness depends on the constraint.
func (ce ConstraintEnsurer) Ensure(ctx context.Context, table TableHandle, column string) error {
	policy := ce.Policy.withDefaults()

	present, err := hasUniqueIndex(ctx, table, column)
	if err != nil {
		return &SyncError{Op: "read_indexes", Err: err}
	}
	if present {
		return nil
	}

	idx := IndexInfo{
		Name:        uniqueIndexName(table.Title(), column),
		Fields:      column,
		IsUnique:    true,
		Description: "Field properties",
	}
	if err := table.AddIndex(ctx, idx); err != nil {
		return &SyncError{Op: "add_index", Err: err}
	}

	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if err := policy.wait(ctx); err != nil {
			return &SyncError{Op: "ensure_constraint", Err: err}
		}
		present, err = hasUniqueIndex(ctx, table, column)
		if err != nil {
			return &SyncError{Op: "read_indexes", Err: err}
		}
		if present {
			return nil
		}
	}
	return &SyncError{Op: "ensure_constraint", Err: fmt.Errorf("%w: index %q not visible after %d attempts",
		ErrConstraintUnavailable, idx.Name, policy.MaxAttempts)}
}

// hasUniqueIndex reports whether any unique index on the table covers the
// column, matching field names case-insensitively.
func hasUniqueIndex(ctx context.Context, table TableHandle, column string) (bool, error) {
	indexes, err := table.Indexes(ctx)
	if err != nil {
		return false, err
	}
	for _, idx := range indexes {
		if !idx.IsUnique {
			continue
		}
		for _, f := range strings.Split(idx.Fields, ",") {
			if strings.EqualFold(strings.TrimSpace(f), column) {
				return true, nil
			}
		}
	}
	return false, nil
}

// uniqueIndexName derives a deterministic index name from the table title
// and key column, e.g. UX_MY_TABLE_SITE_ID_ASC.
func uniqueIndexName(title, column string) string {
	clean := func(s string) string {
		s = strings.TrimSpace(s)
		s = nonWordRun.ReplaceAllString(s, "_")
		s = underscoreRun.ReplaceAllString(s, "_")
		return strings.ToUpper(s)
	}
	return fmt.Sprintf("UX_%s_%s_ASC", clean(title), clean(column))
}
