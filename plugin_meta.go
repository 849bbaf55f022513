package mongolog

import (
	"github.com/go-lynx/lynx/plugins"
)

// Plugin metadata
const (
	// Plugin unique name
	pluginName = "mongolog.target"
	// Plugin version number
	pluginVersion = "v1.0.0"
	// Plugin description
	pluginDescription = "mongodb log target plugin for lynx framework"
	// Configuration prefix, used to read plugin-related configuration from config
	confPrefix = "lynx.mongolog"
)

// NewMongoLogTarget creates a new Mongo log target plugin instance.
func NewMongoLogTarget(opts ...Option) *PlugMongoLog {
	p := &PlugMongoLog{
		BasePlugin: plugins.NewBasePlugin(
			// Generate plugin unique ID
			plugins.GeneratePluginID("", pluginName, pluginVersion),
			// Plugin name
			pluginName,
			// Plugin description
			pluginDescription,
			// Plugin version
			pluginVersion,
			// Configuration prefix
			confPrefix,
			// Weight
			90,
		),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}
