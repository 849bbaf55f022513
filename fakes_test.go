package mongolog

import (
	"context"
	"errors"
	"sync"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/go-lynx/lynx-mongolog/collection"
)

type memHandle struct {
	mu   sync.Mutex
	name string
	docs []bson.D
	err  error
}

func (h *memHandle) InsertOne(_ context.Context, doc bson.D) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	h.docs = append(h.docs, doc)
	return nil
}

func (h *memHandle) InsertMany(_ context.Context, docs []bson.D) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	h.docs = append(h.docs, docs...)
	return nil
}

func (h *memHandle) snapshot() []bson.D {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]bson.D(nil), h.docs...)
}

type memDatabase struct {
	name    string
	mu      sync.Mutex
	handles map[string]*memHandle
	capped  map[string]int64
	err     error
}

func (d *memDatabase) HasCollection(_ context.Context, name string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.handles[name]
	return ok, nil
}

func (d *memDatabase) CreateCapped(_ context.Context, name string, sizeBytes, _ int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.capped[name] = sizeBytes
	return nil
}

func (d *memDatabase) Collection(name string) collection.Handle {
	d.mu.Lock()
	defer d.mu.Unlock()
	h, ok := d.handles[name]
	if !ok {
		h = &memHandle{name: name, err: d.err}
		d.handles[name] = h
	}
	return h
}

// memDialer keeps every database in memory, keyed by connection string and
// database name.
type memDialer struct {
	mu       sync.Mutex
	dbs      map[string]*memDatabase
	err      error
	closeErr error
	closed   bool
}

func newMemDialer() *memDialer {
	return &memDialer{dbs: make(map[string]*memDatabase)}
}

func (m *memDialer) Database(_ context.Context, uri, name string) (collection.Database, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := uri + "/" + name
	db, ok := m.dbs[key]
	if !ok {
		db = &memDatabase{name: name, handles: make(map[string]*memHandle), capped: make(map[string]int64), err: m.err}
		m.dbs[key] = db
	}
	return db, nil
}

func (m *memDialer) Close(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return m.closeErr
}

func (m *memDialer) docs(uri, db, coll string) []bson.D {
	m.mu.Lock()
	d, ok := m.dbs[uri+"/"+db]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	d.mu.Lock()
	h, ok := d.handles[coll]
	d.mu.Unlock()
	if !ok {
		return nil
	}
	return h.snapshot()
}

var errInsert = errors.New("insert failed")

func lookup(doc bson.D, key string) (any, bool) {
	for _, el := range doc {
		if el.Key == key {
			return el.Value, true
		}
	}
	return nil, false
}
