package collection

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/go-lynx/lynx-mongolog/pkg/errx"
)

// codeNamespaceExists is returned by create when another writer won the race.
const codeNamespaceExists = 48

// MongoDialer opens databases with the official driver and shares one client
// per connection string.
type MongoDialer struct {
	timeout        time.Duration
	connectTimeout time.Duration
	driverLog      *zerolog.Logger
	configure      func(*options.ClientOptions)

	mu      sync.Mutex
	clients map[string]*mongo.Client
	closed  bool
}

// DialerOption configures a MongoDialer.
type DialerOption func(*MongoDialer)

// WithTimeout sets the client-wide operation timeout.
func WithTimeout(d time.Duration) DialerOption {
	return func(m *MongoDialer) { m.timeout = d }
}

// WithConnectTimeout sets the connect timeout.
func WithConnectTimeout(d time.Duration) DialerOption {
	return func(m *MongoDialer) { m.connectTimeout = d }
}

// WithDriverLog routes the driver's own log output to zl.
func WithDriverLog(zl *zerolog.Logger) DialerOption {
	return func(m *MongoDialer) { m.driverLog = zl }
}

// WithClientOptions lets callers adjust the client options after the
// connection string has been applied.
func WithClientOptions(fn func(*options.ClientOptions)) DialerOption {
	return func(m *MongoDialer) { m.configure = fn }
}

// NewMongoDialer creates a dialer. Clients connect lazily on first use.
func NewMongoDialer(opts ...DialerOption) *MongoDialer {
	m := &MongoDialer{clients: make(map[string]*mongo.Client)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Database implements Dialer.
func (m *MongoDialer) Database(ctx context.Context, connectionString, name string) (Database, error) {
	client, err := m.client(ctx, connectionString)
	if err != nil {
		return nil, err
	}
	return &mongoDatabase{db: client.Database(name)}, nil
}

func (m *MongoDialer) client(ctx context.Context, uri string) (*mongo.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	if c, ok := m.clients[uri]; ok {
		return c, nil
	}

	opts := options.Client().ApplyURI(uri)
	if m.timeout > 0 {
		opts.SetTimeout(m.timeout)
	}
	if m.connectTimeout > 0 {
		opts.SetConnectTimeout(m.connectTimeout)
	}
	if m.driverLog != nil {
		opts.SetLoggerOptions(options.Logger().
			SetSink(driverSink{zl: m.driverLog}).
			SetComponentLevel(options.LogComponentAll, options.LogLevelInfo))
	}
	if m.configure != nil {
		m.configure(opts)
	}

	// Connect validates options and starts monitoring; it does not wait for a server.
	c, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, errx.AsConfiguration(err, "connect mongodb")
	}
	m.clients[uri] = c
	return c, nil
}

// Close disconnects every client opened by the dialer. The dialer cannot be
// reused afterwards.
func (m *MongoDialer) Close(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	clients := m.clients
	m.clients = make(map[string]*mongo.Client)
	m.mu.Unlock()

	errs := make([]error, 0, len(clients))
	for _, c := range clients {
		errs = append(errs, c.Disconnect(ctx))
	}
	return errx.All(errs...)
}

type mongoDatabase struct {
	db *mongo.Database
}

func (d *mongoDatabase) HasCollection(ctx context.Context, name string) (bool, error) {
	names, err := d.db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return false, err
	}
	return len(names) > 0, nil
}

func (d *mongoDatabase) CreateCapped(ctx context.Context, name string, sizeBytes, maxDocuments int64) error {
	opts := options.CreateCollection().SetCapped(true).SetSizeInBytes(sizeBytes)
	if maxDocuments > 0 {
		opts.SetMaxDocuments(maxDocuments)
	}
	err := d.db.CreateCollection(ctx, name, opts)
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == codeNamespaceExists {
		return nil
	}
	return err
}

func (d *mongoDatabase) Collection(name string) Handle {
	return &mongoHandle{coll: d.db.Collection(name)}
}

type mongoHandle struct {
	coll *mongo.Collection
}

func (h *mongoHandle) InsertOne(ctx context.Context, doc bson.D) error {
	_, err := h.coll.InsertOne(ctx, doc)
	return err
}

func (h *mongoHandle) InsertMany(ctx context.Context, docs []bson.D) error {
	batch := make([]any, len(docs))
	for i, d := range docs {
		batch[i] = d
	}
	_, err := h.coll.InsertMany(ctx, batch)
	return err
}

// driverSink adapts zerolog to the driver's options.LogSink.
type driverSink struct {
	zl *zerolog.Logger
}

var _ options.LogSink = driverSink{}

func (s driverSink) Info(level int, message string, keysAndValues ...any) {
	ev := s.zl.Debug()
	if level <= int(options.LogLevelInfo) {
		ev = s.zl.Info()
	}
	ev.Fields(keysAndValues).Msg(message)
}

func (s driverSink) Error(err error, message string, keysAndValues ...any) {
	s.zl.Error().Err(err).Fields(keysAndValues).Msg(message)
}
