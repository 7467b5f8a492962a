package chronodm

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// memStore is an in-memory Store. Documents round-trip through bson so that
// type normalisation matches the MongoDB store.
type memStore struct {
	mu        sync.Mutex
	records   map[string]map[bson.ObjectID][]byte
	snapshots map[bson.ObjectID][]byte

	// Injected failures, consumed by the next matching call.
	failReplace         error
	failSaveSnapshot    error
	failDeleteSnapshots error
}

func newMemStore() *memStore {
	return &memStore{
		records:   map[string]map[bson.ObjectID][]byte{},
		snapshots: map[bson.ObjectID][]byte{},
	}
}

func (m *memStore) FindRecord(ctx context.Context, schema *Schema, id bson.ObjectID, into Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.records[schema.Collection][id]
	if !ok {
		return ErrNotFound
	}
	return bson.Unmarshal(raw, into)
}

func (m *memStore) InsertRecord(ctx context.Context, schema *Schema, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	coll := m.records[schema.Collection]
	if coll == nil {
		coll = map[bson.ObjectID][]byte{}
		m.records[schema.Collection] = coll
	}
	if _, exists := coll[rec.GetID()]; exists {
		return ValidationErrors{{Field: "_id", Message: "duplicate key"}}
	}
	raw, err := bson.Marshal(rec)
	if err != nil {
		return err
	}
	coll[rec.GetID()] = raw
	return nil
}

func (m *memStore) ReplaceRecord(ctx context.Context, schema *Schema, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failReplace; err != nil {
		m.failReplace = nil
		return err
	}
	coll := m.records[schema.Collection]
	if _, ok := coll[rec.GetID()]; !ok {
		return ErrNotFound
	}
	raw, err := bson.Marshal(rec)
	if err != nil {
		return err
	}
	coll[rec.GetID()] = raw
	return nil
}

func (m *memStore) UpdateRecordFields(ctx context.Context, schema *Schema, id bson.ObjectID, fields bson.M) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	coll := m.records[schema.Collection]
	raw, ok := coll[id]
	if !ok {
		return ErrNotFound
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return err
	}
	for k, v := range fields {
		doc[k] = v
	}
	updated, err := bson.Marshal(doc)
	if err != nil {
		return err
	}
	coll[id] = updated
	return nil
}

func (m *memStore) DeleteRecord(ctx context.Context, schema *Schema, id bson.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	coll := m.records[schema.Collection]
	if _, ok := coll[id]; !ok {
		return ErrNotFound
	}
	delete(coll, id)
	return nil
}

// ownerSnapshots returns the owner's snapshots by ascending number.
// Callers hold m.mu.
func (m *memStore) ownerSnapshots(owner OwnerRef) []*Snapshot {
	var out []*Snapshot
	for _, raw := range m.snapshots {
		var s Snapshot
		if err := bson.Unmarshal(raw, &s); err != nil {
			continue
		}
		if s.Owner() == owner {
			out = append(out, &s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

func (m *memStore) FindSnapshot(ctx context.Context, owner OwnerRef, number int) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.ownerSnapshots(owner) {
		if s.Number == number {
			return s, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) LatestSnapshot(ctx context.Context, owner OwnerRef) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snaps := m.ownerSnapshots(owner)
	if len(snaps) == 0 {
		return nil, ErrNotFound
	}
	return snaps[len(snaps)-1], nil
}

func (m *memStore) SnapshotAt(ctx context.Context, owner OwnerRef, t time.Time) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *Snapshot
	for _, s := range m.ownerSnapshots(owner) {
		if s.CreatedAt.After(t) {
			continue
		}
		if best == nil || s.CreatedAt.After(best.CreatedAt) ||
			(s.CreatedAt.Equal(best.CreatedAt) && s.Number > best.Number) {
			best = s
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	return best, nil
}

func (m *memStore) ListSnapshots(ctx context.Context, owner OwnerRef) ([]*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ownerSnapshots(owner), nil
}

func (m *memStore) SaveSnapshot(ctx context.Context, s *Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failSaveSnapshot; err != nil {
		m.failSaveSnapshot = nil
		return err
	}

	for _, other := range m.ownerSnapshots(s.Owner()) {
		if other.Number == s.Number && other.ID != s.ID {
			return ValidationErrors{{Field: "number", Message: "version number is already taken"}}
		}
	}

	if s.IsNew() {
		s.ID = bson.NewObjectID()
	} else if _, ok := m.snapshots[s.ID]; !ok {
		return ErrNotFound
	}
	raw, err := bson.Marshal(s)
	if err != nil {
		return err
	}
	m.snapshots[s.ID] = raw
	return nil
}

func (m *memStore) DeleteSnapshot(ctx context.Context, s *Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.snapshots[s.ID]; !ok {
		return ErrNotFound
	}
	delete(m.snapshots, s.ID)
	return nil
}

func (m *memStore) DeleteSnapshots(ctx context.Context, owner OwnerRef) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failDeleteSnapshots; err != nil {
		m.failDeleteSnapshots = nil
		return 0, err
	}
	var n int64
	for _, s := range m.ownerSnapshots(owner) {
		delete(m.snapshots, s.ID)
		n++
	}
	return n, nil
}

// hasRecord reports whether the record is stored.
func (m *memStore) hasRecord(schema *Schema, id bson.ObjectID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.records[schema.Collection][id]
	return ok
}

// txStore is a memStore that claims to be transactional and records how
// often a transaction was opened.
type txStore struct {
	*memStore
	transactions int
}

func (s *txStore) Transactional() bool { return true }

func (s *txStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	s.transactions++
	return fn(ctx)
}
