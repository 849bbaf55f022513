package mongolog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-kratos/kratos/v2/config"
	kratoslog "github.com/go-kratos/kratos/v2/log"
	"github.com/go-lynx/lynx/app/log"
	"github.com/go-lynx/lynx/plugins"

	"github.com/go-lynx/lynx-mongolog/collection"
	"github.com/go-lynx/lynx-mongolog/conf"
	"github.com/go-lynx/lynx-mongolog/document"
	"github.com/go-lynx/lynx-mongolog/internal/diag"
	"github.com/go-lynx/lynx-mongolog/internal/metrics"
	"github.com/go-lynx/lynx-mongolog/layout"
	"github.com/go-lynx/lynx-mongolog/pkg/errx"
	"github.com/go-lynx/lynx-mongolog/sink"
)

// InitializeResources reads the configuration from the runtime and builds the
// write path.
func (p *PlugMongoLog) InitializeResources(rt plugins.Runtime) error {
	cfg := rt.GetConfig()
	if cfg == nil {
		return fmt.Errorf("failed to get config from runtime")
	}
	if err := p.Load(cfg); err != nil {
		log.Errorf("failed to initialize mongolog target: %v", err)
		return err
	}
	log.Info("mongolog target initialized successfully")
	return nil
}

// StartupTasks implements the plugin startup hook. Connections are opened
// lazily on the first write.
func (p *PlugMongoLog) StartupTasks() error {
	log.Infof("mongolog target started, batching=%t", p.conf.Batch.Enabled)
	return nil
}

// CheckHealth reports whether the write path is ready.
func (p *PlugMongoLog) CheckHealth() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.sink == nil {
		return fmt.Errorf("mongolog target is not initialized")
	}
	return nil
}

// CleanupTasks implements the plugin cleanup interface
func (p *PlugMongoLog) CleanupTasks() error {
	return p.CleanupTasksContext(context.Background())
}

// CleanupTasksContext flushes buffered events and closes the connections.
func (p *PlugMongoLog) CleanupTasksContext(parentCtx context.Context) error {
	log.Info("cleaning up mongolog target")

	ctx, cancel := p.createTimeoutContext(parentCtx, 5*time.Second)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	if p.batcher != nil {
		errs = append(errs, p.batcher.Close(ctx))
		p.batcher = nil
	}
	if p.cache != nil {
		errs = append(errs, p.cache.Close(ctx))
		p.cache = nil
	}
	if p.diag != nil {
		errs = append(errs, p.diag.Close())
		p.diag = nil
	}
	err := errx.All(errs...)
	p.sink = nil
	p.logger = nil

	if err != nil {
		log.Errorf("failed to clean up mongolog target: %v", err)
		return err
	}
	log.Info("mongolog target cleaned up successfully")
	return nil
}

// createTimeoutContext creates a context with timeout, respecting parent context deadline
func (p *PlugMongoLog) createTimeoutContext(parentCtx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if deadline, ok := parentCtx.Deadline(); ok {
		if time.Until(deadline) < timeout {
			return parentCtx, func() {}
		}
	}
	return context.WithTimeout(parentCtx, timeout)
}

// Load parses the configuration under the plugin prefix and builds every
// component. It can be used without a Lynx runtime.
func (p *PlugMongoLog) Load(cfg config.Config) error {
	if err := p.parseConfig(cfg); err != nil {
		return err
	}
	if err := ValidateMongoLogConfig(p.conf).Err(); err != nil {
		return err
	}
	connStr, err := resolveConnectionString(p.conf, cfg)
	if err != nil {
		return err
	}
	return p.build(connStr)
}

// parseConfig scans the plugin prefix over the configuration set by options.
func (p *PlugMongoLog) parseConfig(cfg config.Config) error {
	c := p.ensureConf()
	if cfg == nil {
		return nil
	}
	if err := cfg.Value(confPrefix).Scan(c); err != nil && !errors.Is(err, config.ErrNotFound) {
		return errx.AsConfiguration(err, "failed to parse mongolog config")
	}
	return nil
}

func (p *PlugMongoLog) build(connStr string) error {
	c := p.conf

	d, err := diag.New(diag.Options{
		Level:      c.Diagnostics.GetLevel(),
		File:       c.Diagnostics.File,
		MaxSizeMB:  c.Diagnostics.GetMaxSizeMB(),
		MaxBackups: c.Diagnostics.GetMaxBackups(),
		MaxAgeDays: c.Diagnostics.MaxAgeDays,
		Compress:   c.Diagnostics.Compress,
		Writer:     p.diagWriter,
	})
	if err != nil {
		return err
	}
	diagHelper := kratoslog.NewHelper(d)

	var rec metrics.Recorder = metrics.Nop{}
	if c.EnableMetrics {
		rec = metrics.Prometheus{}
	}

	builder, err := newBuilder(c, diagHelper)
	if err != nil {
		_ = d.Close()
		return err
	}

	dest := sink.Destination{}
	if dest.ConnectionString, err = layout.Parse(connStr); err != nil {
		_ = d.Close()
		return errx.AsConfiguration(err, "connection_string")
	}
	if dest.Database, err = layout.Parse(c.DatabaseName); err != nil {
		_ = d.Close()
		return errx.AsConfiguration(err, "database_name")
	}
	if dest.Collection, err = layout.Parse(c.CollectionName); err != nil {
		_ = d.Close()
		return errx.AsConfiguration(err, "collection_name")
	}

	dialer := p.dialer
	if dialer == nil {
		dialer = collection.NewMongoDialer(
			collection.WithTimeout(c.GetTimeout()),
			collection.WithConnectTimeout(c.GetConnectTimeout()),
			collection.WithDriverLog(d.Zerolog()),
		)
	}
	cache := collection.New(dialer,
		collection.WithCapped(c.CappedCollectionSize, c.CappedCollectionMaxItems),
		collection.WithLogger(d),
		collection.WithRecorder(rec),
	)

	s := sink.New(builder, dest, cache,
		sink.WithPolicy(sink.Policy{
			RethrowConfigErrors: c.GetRethrowConfigErrors(),
			RethrowWriteErrors:  c.RethrowWriteErrors,
		}),
		sink.WithLogger(d),
		sink.WithRecorder(rec),
	)

	loggerOpts := []LoggerOption{
		WithMinLevel(kratoslog.ParseLevel(c.GetLevel())),
		WithLoggerKey(c.GetLoggerKey()),
	}
	var batcher *sink.Batcher
	if c.Batch.Enabled {
		batcher = sink.NewBatcher(s, c.Batch.GetSize(), c.Batch.GetFlushInterval(),
			sink.WithFlushTimeout(c.GetTimeout()),
			sink.WithBatcherRecorder(rec),
			sink.WithErrorHandler(func(err error) {
				diagHelper.Errorf("background flush failed: %v", err)
			}),
		)
		loggerOpts = append(loggerOpts, WithBatcher(batcher))
	}

	p.mu.Lock()
	p.diag = d
	p.cache = cache
	p.sink = s
	p.batcher = batcher
	p.logger = NewLogger(s, loggerOpts...)
	p.mu.Unlock()
	return nil
}

func newBuilder(c *conf.MongoLog, diagHelper *kratoslog.Helper) (*document.Builder, error) {
	b := &document.Builder{
		IncludeDefaults:        c.GetIncludeDefaults(),
		IncludeEventProperties: c.GetIncludeEventProperties(),
		OnRenderError: func(field string, err error) {
			diagHelper.Warnf("field %s: %v", field, err)
		},
	}
	for _, f := range c.Fields {
		field, err := document.NewField(f.Name, f.Layout, f.Type)
		if err != nil {
			return nil, err
		}
		b.Fields = append(b.Fields, field)
	}
	for _, f := range c.Properties {
		field, err := document.NewField(f.Name, f.Layout, f.Type)
		if err != nil {
			return nil, err
		}
		b.Properties = append(b.Properties, field)
	}
	return b, nil
}

// Logger returns the Kratos logger backed by the target.
func (p *PlugMongoLog) Logger() *Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.logger
}

// Sink returns the write path, for callers that batch on their own.
func (p *PlugMongoLog) Sink() *sink.Sink {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sink
}

// LevelWriter returns a zerolog writer backed by the target.
func (p *PlugMongoLog) LevelWriter() *LevelWriter {
	l := p.Logger()
	if l == nil {
		return nil
	}
	return NewLevelWriter(l)
}
