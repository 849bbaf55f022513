package mongolog

import (
	"os"
	"strings"

	"github.com/go-kratos/kratos/v2/config"

	"github.com/go-lynx/lynx-mongolog/conf"
	"github.com/go-lynx/lynx-mongolog/pkg/errx"
)

// resolveConnectionString returns the connection string layout. A literal
// connection_string wins. Otherwise connection_name is looked up in the
// connections map, then as a configuration key, then as an environment
// variable.
func resolveConnectionString(c *conf.MongoLog, cfg config.Config) (string, error) {
	if s := strings.TrimSpace(c.ConnectionString); s != "" {
		return s, nil
	}
	name := strings.TrimSpace(c.ConnectionName)
	if name == "" {
		return "", errx.Configuration("connection_string or connection_name is required")
	}

	if s := strings.TrimSpace(c.Connections[name]); s != "" {
		return s, nil
	}
	if cfg != nil {
		if s, err := cfg.Value(name).String(); err == nil && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s), nil
		}
	}
	if s, ok := os.LookupEnv(name); ok && strings.TrimSpace(s) != "" {
		return strings.TrimSpace(s), nil
	}
	return "", errx.Configuration("connection %q not found in connections, configuration or environment", name)
}
