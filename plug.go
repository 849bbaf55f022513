package mongolog

import (
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-lynx/lynx/app"
	"github.com/go-lynx/lynx/app/factory"
	"github.com/go-lynx/lynx/plugins"
)

// init registers the Mongo log target in the global plugin factory under
// pluginName, reading its configuration from confPrefix.
func init() {
	factory.GlobalTypedFactory().RegisterPlugin(pluginName, confPrefix, func() plugins.Plugin {
		return NewMongoLogTarget()
	})
}

// GetMongoLogPlugin gets the Mongo log target plugin instance
func GetMongoLogPlugin() *PlugMongoLog {
	plugin := app.Lynx().GetPluginManager().GetPlugin(pluginName)
	if plugin == nil {
		return nil
	}
	return plugin.(*PlugMongoLog)
}

// GetLogger returns the Kratos logger backed by the plugin, or nil when the
// plugin is not loaded.
func GetLogger() log.Logger {
	p := GetMongoLogPlugin()
	if p == nil {
		return nil
	}
	if l := p.Logger(); l != nil {
		return l
	}
	return nil
}
