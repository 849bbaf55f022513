// Package mongolog is a Lynx plugin that stores log events as MongoDB
// documents. It plugs into Kratos logging through Logger and into zerolog
// through LevelWriter.
package mongolog

import (
	"io"
	"sync"

	"github.com/go-lynx/lynx/plugins"

	"github.com/go-lynx/lynx-mongolog/collection"
	"github.com/go-lynx/lynx-mongolog/conf"
	"github.com/go-lynx/lynx-mongolog/internal/diag"
	"github.com/go-lynx/lynx-mongolog/sink"
)

// PlugMongoLog represents a Mongo log target plugin instance
type PlugMongoLog struct {
	// Inherits from base plugin
	*plugins.BasePlugin
	// Target configuration
	conf *conf.MongoLog

	// Overrides set through options
	dialer     collection.Dialer
	diagWriter io.Writer

	mu      sync.RWMutex
	diag    *diag.Logger
	cache   *collection.Cache
	sink    *sink.Sink
	batcher *sink.Batcher
	logger  *Logger
}
