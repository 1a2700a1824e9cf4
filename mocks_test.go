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
	"sync"
)

// Shared test doubles for the TableHandle and ContentStore interfaces.

type mockTable struct {
	mu sync.Mutex

	itemID string
	title  string

	indexes []IndexInfo

	truncateCalls int
	appendCalls   int
	indexesCalls  int
	addIndexCalls int

	appendReqs []AppendRequest

	truncateErr error
	indexesErr  error
	addIndexErr error

	// appendErrs[i] is returned by the i-th Append call; nil means success.
	appendErrs []error

	// indexVisibleAfter delays a freshly added index: it only shows up in
	// Indexes once that many Indexes calls have happened after AddIndex.
	indexVisibleAfter int
	pendingIndex      *IndexInfo
	callsSinceAdd     int

	queryCols []Column
	queryRows [][]interface{}
	queryErr  error
}

func newMockTable(itemID, title string) *mockTable {
	return &mockTable{itemID: itemID, title: title}
}

func (m *mockTable) ItemID() string { return m.itemID }
func (m *mockTable) Title() string  { return m.title }

func (m *mockTable) Truncate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.truncateCalls++
	return m.truncateErr
}

func (m *mockTable) Append(ctx context.Context, req AppendRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	call := m.appendCalls
	m.appendCalls++
	m.appendReqs = append(m.appendReqs, req)
	if call < len(m.appendErrs) {
		return m.appendErrs[call]
	}
	return nil
}

func (m *mockTable) Indexes(ctx context.Context) ([]IndexInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.indexesCalls++
	if m.indexesErr != nil {
		return nil, m.indexesErr
	}
	if m.pendingIndex != nil {
		m.callsSinceAdd++
		if m.callsSinceAdd > m.indexVisibleAfter {
			m.indexes = append(m.indexes, *m.pendingIndex)
			m.pendingIndex = nil
		}
	}
	return append([]IndexInfo(nil), m.indexes...), nil
}

func (m *mockTable) AddIndex(ctx context.Context, idx IndexInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addIndexCalls++
	if m.addIndexErr != nil {
		return m.addIndexErr
	}
	if m.indexVisibleAfter > 0 {
		m.pendingIndex = &idx
		m.callsSinceAdd = 0
	} else {
		m.indexes = append(m.indexes, idx)
	}
	return nil
}

func (m *mockTable) Query(ctx context.Context) ([]Column, [][]interface{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.queryErr != nil {
		return nil, nil, m.queryErr
	}
	return m.queryCols, m.queryRows, nil
}

func (m *mockTable) counts() (truncate, appendN, indexes, addIndex int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.truncateCalls, m.appendCalls, m.indexesCalls, m.addIndexCalls
}

func (m *mockTable) appendRequests() []AppendRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]AppendRequest(nil), m.appendReqs...)
}

type mockStore struct {
	mu sync.Mutex

	table *mockTable

	uploads     []string // staged file paths, in call order
	uploadProps []ItemProperties
	deleted     []string // asset IDs deleted, in call order
	published   []string // asset IDs published, in call order

	uploadErr  error
	analyzeErr error
	publishErr error
	searchErr  error
	nameErr    error
	tableErr   error

	searchResults []Asset
	nameAvailable bool

	nextAssetID int
}

func newMockStore(table *mockTable) *mockStore {
	return &mockStore{table: table, nameAvailable: true}
}

func (m *mockStore) Upload(ctx context.Context, localPath string, props ItemProperties) (Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.uploadErr != nil {
		return Asset{}, m.uploadErr
	}
	m.nextAssetID++
	id := fmt.Sprintf("asset-%d", m.nextAssetID)
	m.uploads = append(m.uploads, localPath)
	m.uploadProps = append(m.uploadProps, props)
	return Asset{ID: id, Title: props.Title}, nil
}

func (m *mockStore) Analyze(ctx context.Context, assetID, fileType string) (map[string]interface{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.analyzeErr != nil {
		return nil, m.analyzeErr
	}
	return map[string]interface{}{"type": fileType, "sourceUrl": assetID}, nil
}

func (m *mockStore) Delete(ctx context.Context, assetID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, assetID)
	return nil
}

func (m *mockStore) Search(ctx context.Context, query string) ([]Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return append([]Asset(nil), m.searchResults...), nil
}

func (m *mockStore) CheckNameAvailable(ctx context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nameErr != nil {
		return false, m.nameErr
	}
	return m.nameAvailable, nil
}

func (m *mockStore) Table(ctx context.Context, itemID string) (TableHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tableErr != nil {
		return nil, m.tableErr
	}
	return m.table, nil
}

func (m *mockStore) Publish(ctx context.Context, assetID string, props ItemProperties) (TableHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return nil, m.publishErr
	}
	m.published = append(m.published, assetID)
	return m.table, nil
}

func (m *mockStore) uploadedPaths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.uploads...)
}

func (m *mockStore) deletedAssets() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deleted...)
}

func (m *mockStore) publishedAssets() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.published...)
}

// testDataset builds an n-row dataset with an integer key column "site_id",
// a string column "name", and a float column "reading". Keys descend so
// key-sorted workflows are observable.
func testDataset(n int) *Dataset {
	ds, err := NewDataset([]Column{
		{Name: "site_id", Type: FieldInteger},
		{Name: "name", Type: FieldString},
		{Name: "reading", Type: FieldFloat},
	})
	if err != nil {
		panic(err)
	}
	for i := n; i >= 1; i-- {
		if err := ds.AppendRow(int64(i), fmt.Sprintf("site-%d", i), float64(i)*1.5); err != nil {
			panic(err)
		}
	}
	return ds
}
