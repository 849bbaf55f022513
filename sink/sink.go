// Package sink writes log events to MongoDB, one at a time or in batches.
package sink

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/go-lynx/lynx-mongolog/collection"
	"github.com/go-lynx/lynx-mongolog/document"
	"github.com/go-lynx/lynx-mongolog/event"
	"github.com/go-lynx/lynx-mongolog/internal/metrics"
	"github.com/go-lynx/lynx-mongolog/layout"
	"github.com/go-lynx/lynx-mongolog/pkg/errx"
)

// Resolver maps a destination key to a collection handle.
type Resolver interface {
	Resolve(ctx context.Context, k collection.Key) (collection.Handle, error)
}

// Destination holds the layouts that pick where documents go. Database and
// Collection may be nil, in which case the resolver applies its defaults.
type Destination struct {
	ConnectionString layout.Layout
	Database         layout.Layout
	Collection       layout.Layout
}

// Entry is one event of a batch. Done, when set, is called exactly once with
// the outcome of the batch the entry was written in.
type Entry struct {
	Event *event.Event
	Done  func(error)
}

// Result is the per-entry outcome of WriteBatch.
type Result struct {
	Document bson.D
	Err      error
}

// Option configures a Sink.
type Option func(*Sink)

// WithPolicy sets the propagation policy.
func WithPolicy(p Policy) Option {
	return func(s *Sink) { s.policy = p }
}

// WithLogger sets the diagnostic logger.
func WithLogger(l log.Logger) Option {
	return func(s *Sink) {
		if l != nil {
			s.log = log.NewHelper(l)
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(s *Sink) { s.rec = metrics.OrNop(r) }
}

// Sink builds documents and inserts them through a Resolver.
type Sink struct {
	builder  *document.Builder
	dest     Destination
	resolver Resolver
	policy   Policy
	log      *log.Helper
	rec      metrics.Recorder

	// latest is the newest event time seen, in unix nanoseconds. It only
	// moves forward.
	latest atomic.Int64
}

// New creates a Sink.
func New(b *document.Builder, dest Destination, r Resolver, opts ...Option) *Sink {
	s := &Sink{
		builder:  b,
		dest:     dest,
		resolver: r,
		policy:   DefaultPolicy(),
		log:      log.NewHelper(log.GetLogger()),
		rec:      metrics.Nop{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the propagation policy.
func (s *Sink) Policy() Policy { return s.policy }

// Write inserts one event. Any failure is logged and returned.
func (s *Sink) Write(ctx context.Context, e *event.Event) error {
	doc := s.builder.Build(e)

	h, k, err := s.resolve(ctx, e)
	if err != nil {
		s.fail(err, 1, k)
		return err
	}

	start := time.Now()
	err = h.InsertOne(ctx, doc)
	s.rec.InsertLatency(time.Since(start))
	if err != nil {
		err = fmt.Errorf("insert into %s.%s: %w", k.Database, k.Collection, err)
		s.fail(err, 1, k)
		return err
	}
	s.rec.DocumentsWritten(1)
	return nil
}

// WriteBatch inserts all entries with a single bulk insert. Documents are built
// first, then the destination is resolved once for the newest event.
//
// Every entry's Done callback is invoked in order, with nil on success or with
// the batch error on failure. The returned error is non-nil only when the
// policy says the failure must propagate. Panics are not recovered.
func (s *Sink) WriteBatch(ctx context.Context, entries []Entry) ([]Result, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	results := make([]Result, len(entries))
	docs := make([]bson.D, len(entries))
	newest := entries[0].Event
	for i, en := range entries {
		docs[i] = s.builder.Build(en.Event)
		results[i].Document = docs[i]
		if en.Event.Time.After(newest.Time) {
			newest = en.Event
		}
	}

	h, k, err := s.resolve(ctx, newest)
	if err == nil {
		start := time.Now()
		err = h.InsertMany(ctx, docs)
		s.rec.InsertLatency(time.Since(start))
		s.rec.BatchSize(len(docs))
		if err != nil {
			err = fmt.Errorf("insert %d documents into %s.%s: %w", len(docs), k.Database, k.Collection, err)
		}
	}

	if err != nil {
		s.fail(err, len(entries), k)
	} else {
		s.rec.DocumentsWritten(len(docs))
	}

	for i, en := range entries {
		results[i].Err = err
		if en.Done != nil {
			en.Done(err)
		}
	}

	if s.policy.ShouldPropagate(err) {
		return results, err
	}
	return results, nil
}

// Latest returns the newest event time the sink has seen.
func (s *Sink) Latest() time.Time {
	n := s.latest.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

// observe advances the timestamp tracker to t and returns the tracker value.
func (s *Sink) observe(t time.Time) int64 {
	n := t.UnixNano()
	for {
		cur := s.latest.Load()
		if n <= cur {
			return cur
		}
		if s.latest.CompareAndSwap(cur, n) {
			return n
		}
	}
}

// resolve renders the destination against e, with the event time replaced by
// the newest time seen so far.
func (s *Sink) resolve(ctx context.Context, e *event.Event) (collection.Handle, collection.Key, error) {
	at := e.WithTime(time.Unix(0, s.observe(e.Time)).UTC())

	var k collection.Key
	var err error
	if k.ConnectionString, err = render(s.dest.ConnectionString, at); err != nil {
		return nil, k, errx.AsConfiguration(err, "render connection string")
	}
	if k.Database, err = render(s.dest.Database, at); err != nil {
		return nil, k, errx.AsConfiguration(err, "render database name")
	}
	if k.Collection, err = render(s.dest.Collection, at); err != nil {
		return nil, k, errx.AsConfiguration(err, "render collection name")
	}

	h, err := s.resolver.Resolve(ctx, k)
	if err != nil {
		return nil, k, err
	}
	return h, k, nil
}

func render(l layout.Layout, e *event.Event) (string, error) {
	if l == nil {
		return "", nil
	}
	return l.Render(e)
}

func (s *Sink) fail(err error, n int, k collection.Key) {
	kind := errx.KindOf(err)
	s.rec.WriteError(kind)
	s.log.Errorw(
		"msg", "mongolog write failed",
		"kind", kind.String(),
		"documents", n,
		"database", k.Database,
		"collection", k.Collection,
		"err", err,
	)
}
