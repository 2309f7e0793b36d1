// Copyright 2023 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

// Package msort contains utility functions for sorting and
// de-duplicating batches of row events before they are rendered into
// a single multi-row statement.
package msort

import "github.com/cockroachdb/rdb-replicate/internal/model"

// UniqueByKey implements a "last one wins" approach to removing row
// events with duplicate id-column keys from a batchable run. A
// snapshot re-read or a retried extractor round can hand the sinker
// two rows for the same key within one batch; rendering both into a
// single multi-row INSERT/DELETE would either violate a unique
// constraint or silently double the delete predicate. Since x is
// already in source order, keeping the later occurrence for a given
// key is equivalent to keeping whichever one the source considers
// current.
//
// idCols must be non-empty; rows missing any idCols entry are kept
// as-is (querybuilder surfaces the missing-key error itself).
//
// The modified slice is returned.
func UniqueByKey(x []model.RowEvent, idCols []string) []model.RowEvent {
	seen := make(map[string]struct{}, len(x))

	dest := len(x)
	for src := len(x) - 1; src >= 0; src-- {
		key, ok := rowKey(x[src], idCols)
		if !ok {
			dest--
			x[dest] = x[src]
			continue
		}
		if _, found := seen[key]; found {
			// x is in ascending source order, so the occurrence closer
			// to the end of the original slice is the later event;
			// walking src backwards means it was already kept.
			continue
		}
		dest--
		seen[key] = struct{}{}
		x[dest] = x[src]
	}
	return x[dest:]
}

func rowKey(ev model.RowEvent, idCols []string) (string, bool) {
	row := ev.After
	if row == nil {
		row = ev.Before
	}
	key := ""
	for _, col := range idCols {
		v, ok := row[col]
		if !ok {
			return "", false
		}
		key += col + "=" + v.String() + "\x00"
	}
	return key, true
}
