package mongolog

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-lynx/lynx-mongolog/conf"
	"github.com/go-lynx/lynx-mongolog/layout"
	"github.com/go-lynx/lynx-mongolog/pkg/errx"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error in field '%s': %s", e.Field, e.Message)
}

// ValidationResult represents the configuration validation result
type ValidationResult struct {
	IsValid bool
	Errors  []ValidationError
}

// AddError adds a validation error
func (r *ValidationResult) AddError(field, message string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message})
	r.IsValid = false
}

// Error returns a string representation of all validation errors
func (r *ValidationResult) Error() string {
	if r.IsValid {
		return ""
	}

	var messages []string
	for _, err := range r.Errors {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

// Err returns nil for a valid result and a configuration error otherwise.
func (r *ValidationResult) Err() error {
	if r.IsValid {
		return nil
	}
	return errx.Configuration("%s", r.Error())
}

// ValidateMongoLogConfig checks the configuration before any component is built.
func ValidateMongoLogConfig(c *conf.MongoLog) *ValidationResult {
	result := &ValidationResult{IsValid: true}

	if c == nil {
		result.AddError("config", "configuration cannot be nil")
		return result
	}

	validateConnection(c, result)
	validateLayouts(c, result)
	validateFields("fields", c.Fields, result)
	validateFields("properties", c.Properties, result)
	validateCapped(c, result)
	validateDurations(c, result)
	validateBatch(c, result)

	return result
}

func validateConnection(c *conf.MongoLog, result *ValidationResult) {
	if strings.TrimSpace(c.ConnectionString) == "" && strings.TrimSpace(c.ConnectionName) == "" {
		result.AddError("connection_string", "connection_string or connection_name is required")
	}
	for name, s := range c.Connections {
		if strings.TrimSpace(name) == "" {
			result.AddError("connections", "connection name cannot be empty")
		}
		if strings.TrimSpace(s) == "" {
			result.AddError("connections."+name, "connection string cannot be empty")
		}
	}
}

func validateLayouts(c *conf.MongoLog, result *ValidationResult) {
	for field, text := range map[string]string{
		"connection_string": c.ConnectionString,
		"database_name":     c.DatabaseName,
		"collection_name":   c.CollectionName,
	} {
		if _, err := layout.Parse(text); err != nil {
			result.AddError(field, err.Error())
		}
	}
}

func validateFields(section string, fields []conf.Field, result *ValidationResult) {
	for i, f := range fields {
		path := fmt.Sprintf("%s[%d]", section, i)
		if strings.TrimSpace(f.Name) == "" {
			result.AddError(path+".name", "name is required")
		}
		if strings.TrimSpace(f.Layout) == "" {
			result.AddError(path+".layout", "layout is required")
			continue
		}
		if _, err := layout.Parse(f.Layout); err != nil {
			result.AddError(path+".layout", err.Error())
		}
	}
}

func validateCapped(c *conf.MongoLog, result *ValidationResult) {
	if c.CappedCollectionSize < 0 {
		result.AddError("capped_collection_size", "must not be negative")
	}
	if c.CappedCollectionMaxItems < 0 {
		result.AddError("capped_collection_max_items", "must not be negative")
	}
	if c.CappedCollectionMaxItems > 0 && c.CappedCollectionSize <= 0 {
		result.AddError("capped_collection_max_items", "requires capped_collection_size")
	}
}

func validateDurations(c *conf.MongoLog, result *ValidationResult) {
	for field, s := range map[string]string{
		"timeout":              c.Timeout,
		"connect_timeout":      c.ConnectTimeout,
		"batch.flush_interval": c.Batch.FlushInterval,
	} {
		if s == "" {
			continue
		}
		if d, err := time.ParseDuration(s); err != nil {
			result.AddError(field, "invalid duration: "+s)
		} else if d < 0 {
			result.AddError(field, "must not be negative")
		}
	}
}

func validateBatch(c *conf.MongoLog, result *ValidationResult) {
	if c.Batch.Size < 0 {
		result.AddError("batch.size", "must not be negative")
	}
}
