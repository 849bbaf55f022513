// Package collection resolves log destinations to collection handles and
// keeps one handle per destination for the lifetime of the cache.
package collection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-kratos/kratos/v2/log"
	"go.mongodb.org/mongo-driver/bson"
	"golang.org/x/sync/singleflight"

	"github.com/go-lynx/lynx-mongolog/internal/metrics"
)

// ErrClosed is returned by a closed Cache or MongoDialer.
var ErrClosed = errors.New("mongolog: collection cache closed")

// Handle inserts documents into one collection.
type Handle interface {
	InsertOne(ctx context.Context, doc bson.D) error
	InsertMany(ctx context.Context, docs []bson.D) error
}

// Database is the slice of a database the cache needs.
type Database interface {
	HasCollection(ctx context.Context, name string) (bool, error)
	CreateCapped(ctx context.Context, name string, sizeBytes, maxDocuments int64) error
	Collection(name string) Handle
}

// Dialer opens databases by connection string.
type Dialer interface {
	Database(ctx context.Context, connectionString, name string) (Database, error)
	Close(ctx context.Context) error
}

// Capped describes the capped collection to create for a missing
// destination. A zero SizeBytes disables creation.
type Capped struct {
	SizeBytes    int64
	MaxDocuments int64
}

// Option configures a Cache.
type Option func(*Cache)

// WithCapped enables capped collection creation.
func WithCapped(sizeBytes, maxDocuments int64) Option {
	return func(c *Cache) {
		c.capped = Capped{SizeBytes: sizeBytes, MaxDocuments: maxDocuments}
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(l log.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.log = log.NewHelper(l)
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(c *Cache) {
		c.rec = metrics.OrNop(r)
	}
}

// Cache maps a Key to its Handle. Entries are never evicted. Concurrent
// first-time resolutions of one key share a single open, and a failed open is
// not remembered.
type Cache struct {
	dialer  Dialer
	capped  Capped
	log     *log.Helper
	rec     metrics.Recorder
	handles sync.Map // Key -> Handle
	group   singleflight.Group
	closed  atomic.Bool
}

// New creates a Cache over d.
func New(d Dialer, opts ...Option) *Cache {
	c := &Cache{
		dialer: d,
		log:    log.NewHelper(log.GetLogger()),
		rec:    metrics.Nop{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Resolve returns the handle for k, opening and possibly creating the
// collection on first use.
func (c *Cache) Resolve(ctx context.Context, k Key) (Handle, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	k, err := Normalize(k)
	if err != nil {
		return nil, err
	}
	if h, ok := c.handles.Load(k); ok {
		return h.(Handle), nil
	}

	v, err, _ := c.group.Do(k.String(), func() (any, error) {
		if h, ok := c.handles.Load(k); ok {
			return h, nil
		}
		if c.closed.Load() {
			return nil, ErrClosed
		}
		h, err := c.open(ctx, k)
		if err != nil {
			return nil, err
		}
		c.handles.Store(k, h)
		c.rec.CollectionOpened()
		c.log.Debugf("opened collection %s.%s", k.Database, k.Collection)
		return h, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Handle), nil
}

func (c *Cache) open(ctx context.Context, k Key) (Handle, error) {
	db, err := c.dialer.Database(ctx, k.ConnectionString, k.Database)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", k.Database, err)
	}
	if c.capped.SizeBytes > 0 {
		if err := c.ensureCapped(ctx, db, k); err != nil {
			return nil, err
		}
	}
	return db.Collection(k.Collection), nil
}

func (c *Cache) ensureCapped(ctx context.Context, db Database, k Key) error {
	exists, err := db.HasCollection(ctx, k.Collection)
	if err != nil {
		return fmt.Errorf("list collection %s.%s: %w", k.Database, k.Collection, err)
	}
	if exists {
		return nil
	}
	if err := db.CreateCapped(ctx, k.Collection, c.capped.SizeBytes, c.capped.MaxDocuments); err != nil {
		return fmt.Errorf("create capped collection %s.%s: %w", k.Database, k.Collection, err)
	}
	c.rec.CappedCreated()
	c.log.Infof("created capped collection %s.%s (size=%d bytes, max=%d)",
		k.Database, k.Collection, c.capped.SizeBytes, c.capped.MaxDocuments)
	return nil
}

// Len reports the number of cached handles.
func (c *Cache) Len() int {
	n := 0
	c.handles.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Close releases the dialer's connections. Later resolutions fail with
// ErrClosed instead of dialing again. Cached handles must not be used
// afterwards.
func (c *Cache) Close(ctx context.Context) error {
	if c.closed.Swap(true) {
		return nil
	}
	c.handles.Range(func(k, _ any) bool {
		c.handles.Delete(k)
		return true
	})
	return c.dialer.Close(ctx)
}
