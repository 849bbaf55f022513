// Package conf holds the configuration of the Mongo log target, read from the
// "lynx.mongolog" prefix.
package conf

import (
	"strings"
	"time"
)

// Defaults applied by the getters.
const (
	DefaultLevel          = "debug"
	DefaultLoggerKey      = "module"
	DefaultTimeout        = 5 * time.Second
	DefaultConnectTimeout = 10 * time.Second
	DefaultBatchSize      = 100
	DefaultFlushInterval  = time.Second
	DefaultDiagLevel      = "warn"
	DefaultDiagMaxSizeMB  = 10
	DefaultDiagMaxBackups = 3
)

// Field describes one configured field or property.
type Field struct {
	Name   string `json:"name"`
	Layout string `json:"layout"`
	Type   string `json:"type"`
}

// Batch controls buffering in front of the bulk insert.
type Batch struct {
	Enabled       bool   `json:"enabled"`
	Size          int    `json:"size"`
	FlushInterval string `json:"flush_interval"`
}

// Diagnostics controls where the target reports its own failures.
type Diagnostics struct {
	Level      string `json:"level"`
	File       string `json:"file"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
	Compress   bool   `json:"compress"`
}

// MongoLog is the plugin configuration.
type MongoLog struct {
	// ConnectionName is looked up in Connections, then as a config key, then
	// as an environment variable. ConnectionString wins when both are set.
	ConnectionName   string            `json:"connection_name"`
	ConnectionString string            `json:"connection_string"`
	Connections      map[string]string `json:"connections"`

	DatabaseName   string `json:"database_name"`
	CollectionName string `json:"collection_name"`

	CappedCollectionSize     int64 `json:"capped_collection_size"`
	CappedCollectionMaxItems int64 `json:"capped_collection_max_items"`

	IncludeDefaults        *bool   `json:"include_defaults"`
	IncludeEventProperties *bool   `json:"include_event_properties"`
	Fields                 []Field `json:"fields"`
	Properties             []Field `json:"properties"`

	RethrowConfigErrors *bool `json:"rethrow_config_errors"`
	RethrowWriteErrors  bool  `json:"rethrow_write_errors"`

	Level          string `json:"level"`
	LoggerKey      string `json:"logger_key"`
	Timeout        string `json:"timeout"`
	ConnectTimeout string `json:"connect_timeout"`

	Batch         Batch       `json:"batch"`
	Diagnostics   Diagnostics `json:"diagnostics"`
	EnableMetrics bool        `json:"enable_metrics"`
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

func durationOr(s string, def time.Duration) time.Duration {
	if strings.TrimSpace(s) == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

func (c *MongoLog) GetIncludeDefaults() bool { return boolOr(c.IncludeDefaults, true) }

func (c *MongoLog) GetIncludeEventProperties() bool { return boolOr(c.IncludeEventProperties, true) }

func (c *MongoLog) GetRethrowConfigErrors() bool { return boolOr(c.RethrowConfigErrors, true) }

func (c *MongoLog) GetLevel() string {
	if c.Level == "" {
		return DefaultLevel
	}
	return c.Level
}

func (c *MongoLog) GetLoggerKey() string {
	if c.LoggerKey == "" {
		return DefaultLoggerKey
	}
	return c.LoggerKey
}

func (c *MongoLog) GetTimeout() time.Duration { return durationOr(c.Timeout, DefaultTimeout) }

func (c *MongoLog) GetConnectTimeout() time.Duration {
	return durationOr(c.ConnectTimeout, DefaultConnectTimeout)
}

func (b *Batch) GetSize() int {
	if b.Size <= 0 {
		return DefaultBatchSize
	}
	return b.Size
}

func (b *Batch) GetFlushInterval() time.Duration {
	return durationOr(b.FlushInterval, DefaultFlushInterval)
}

func (d *Diagnostics) GetLevel() string {
	if d.Level == "" {
		return DefaultDiagLevel
	}
	return d.Level
}

func (d *Diagnostics) GetMaxSizeMB() int {
	if d.MaxSizeMB <= 0 {
		return DefaultDiagMaxSizeMB
	}
	return d.MaxSizeMB
}

func (d *Diagnostics) GetMaxBackups() int {
	if d.MaxBackups <= 0 {
		return DefaultDiagMaxBackups
	}
	return d.MaxBackups
}

// Bool returns a pointer to b, for building configurations in code.
func Bool(b bool) *bool { return &b }
