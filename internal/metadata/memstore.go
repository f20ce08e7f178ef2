package metadata

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryOwnerIndex is the owner index name reported by MemoryStore when
// created with an owner index.
const MemoryOwnerIndex = "user_id-index"

// MemoryStore keeps records in process memory. Pages are ordered by image id
// and resume after the last id of the previous page.
type MemoryStore struct {
	mu         sync.RWMutex
	records    map[string]Record
	ownerIndex bool
}

// NewMemoryStore returns an empty store. withOwnerIndex controls whether
// DescribeIndexes reports an owner index and Query accepts it.
func NewMemoryStore(withOwnerIndex bool) *MemoryStore {
	return &MemoryStore{
		records:    make(map[string]Record),
		ownerIndex: withOwnerIndex,
	}
}

func (m *MemoryStore) Put(_ context.Context, rec *Record) error {
	if rec == nil || rec.ImageID == "" {
		return fmt.Errorf("record without image id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	cp.Tags = append([]string(nil), rec.Tags...)
	m.records[rec.ImageID] = cp
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	rec.Tags = append([]string(nil), rec.Tags...)
	return &rec, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	return nil
}

func (m *MemoryStore) Query(ctx context.Context, index, ownerID string, filter Filter, limit int, token string) (Page, error) {
	if !m.ownerIndex || index != MemoryOwnerIndex {
		return Page{}, fmt.Errorf("index %q does not exist", index)
	}
	return m.page(filter.With(Eq(FieldOwnerID, ownerID)), limit, token), nil
}

func (m *MemoryStore) Scan(_ context.Context, filter Filter, limit int, token string) (Page, error) {
	return m.page(filter, limit, token), nil
}

func (m *MemoryStore) DescribeIndexes(context.Context) ([]IndexInfo, error) {
	if !m.ownerIndex {
		return nil, nil
	}
	return []IndexInfo{{Name: MemoryOwnerIndex, PartitionKey: FieldOwnerID}}, nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

// Len returns the number of stored records.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func (m *MemoryStore) page(filter Filter, limit int, token string) Page {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.records))
	for id := range m.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	after := DecodeToken(token)[FieldImageID]

	var page Page
	for _, id := range ids {
		if after != "" && id <= after {
			continue
		}
		rec := m.records[id]
		if !filter.Match(&rec) {
			continue
		}
		if limit > 0 && len(page.Items) == limit {
			last := page.Items[len(page.Items)-1].ImageID
			page.NextToken = EncodeToken(map[string]string{FieldImageID: last})
			break
		}
		rec.Tags = append([]string(nil), rec.Tags...)
		page.Items = append(page.Items, rec)
	}
	return page
}
