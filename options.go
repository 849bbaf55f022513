package mongolog

import (
	"io"

	"github.com/go-lynx/lynx-mongolog/collection"
	"github.com/go-lynx/lynx-mongolog/conf"
)

// Option defines the plugin option function type
type Option func(*PlugMongoLog)

func (p *PlugMongoLog) ensureConf() *conf.MongoLog {
	if p.conf == nil {
		p.conf = &conf.MongoLog{}
	}
	return p.conf
}

// WithConfig sets the whole configuration. Values found under the config
// prefix at initialization still override it.
func WithConfig(c *conf.MongoLog) Option {
	return func(p *PlugMongoLog) { p.conf = c }
}

// WithConnectionString sets a literal or templated connection string
func WithConnectionString(s string) Option {
	return func(p *PlugMongoLog) { p.ensureConf().ConnectionString = s }
}

// WithConnectionName sets the name the connection string is looked up by
func WithConnectionName(name string) Option {
	return func(p *PlugMongoLog) { p.ensureConf().ConnectionName = name }
}

// WithDatabase sets the database name layout
func WithDatabase(name string) Option {
	return func(p *PlugMongoLog) { p.ensureConf().DatabaseName = name }
}

// WithCollection sets the collection name layout
func WithCollection(name string) Option {
	return func(p *PlugMongoLog) { p.ensureConf().CollectionName = name }
}

// WithCappedCollection creates missing collections as capped collections
func WithCappedCollection(sizeBytes, maxItems int64) Option {
	return func(p *PlugMongoLog) {
		c := p.ensureConf()
		c.CappedCollectionSize = sizeBytes
		c.CappedCollectionMaxItems = maxItems
	}
}

// WithField appends a top-level document field
func WithField(name, layout, typ string) Option {
	return func(p *PlugMongoLog) {
		c := p.ensureConf()
		c.Fields = append(c.Fields, conf.Field{Name: name, Layout: layout, Type: typ})
	}
}

// WithProperty appends a field of the Properties sub-document
func WithProperty(name, layout, typ string) Option {
	return func(p *PlugMongoLog) {
		c := p.ensureConf()
		c.Properties = append(c.Properties, conf.Field{Name: name, Layout: layout, Type: typ})
	}
}

// WithBatch enables buffering with the given batch size
func WithBatch(size int, flushInterval string) Option {
	return func(p *PlugMongoLog) {
		c := p.ensureConf()
		c.Batch = conf.Batch{Enabled: true, Size: size, FlushInterval: flushInterval}
	}
}

// WithDialer replaces the MongoDB dialer
func WithDialer(d collection.Dialer) Option {
	return func(p *PlugMongoLog) { p.dialer = d }
}

// WithDiagnosticsWriter sends diagnostic output to w instead of stderr or a file
func WithDiagnosticsWriter(w io.Writer) Option {
	return func(p *PlugMongoLog) { p.diagWriter = w }
}
