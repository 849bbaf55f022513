// Package document turns log events into ordered BSON documents.
package document

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// FieldType is the declared BSON type of a configured field.
type FieldType int

const (
	String FieldType = iota
	Boolean
	DateTime
	Double
	Int32
	Int64
	Object
)

var fieldTypeNames = [...]string{
	String:   "String",
	Boolean:  "Boolean",
	DateTime: "DateTime",
	Double:   "Double",
	Int32:    "Int32",
	Int64:    "Int64",
	Object:   "Object",
}

func (t FieldType) String() string {
	if t < 0 || int(t) >= len(fieldTypeNames) {
		return fieldTypeNames[String]
	}
	return fieldTypeNames[t]
}

// ParseFieldType maps a configured type name to a FieldType. Matching is
// case-insensitive; empty or unknown names yield String.
func ParseFieldType(name string) FieldType {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "boolean", "bool":
		return Boolean
	case "datetime", "date":
		return DateTime
	case "double", "float", "float64":
		return Double
	case "int32", "int":
		return Int32
	case "int64", "long":
		return Int64
	case "object", "json", "document":
		return Object
	default:
		return String
	}
}

// dateLayouts are tried in order for DateTime fields.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

var truthy = map[string]struct{}{
	"t": {}, "true": {}, "y": {}, "yes": {}, "1": {}, "x": {}, "on": {},
}

// Coerce converts a trimmed, non-empty rendered value to t. When the
// type-specific parse fails it returns raw unchanged and false; callers store
// the raw string in that case. Boolean coercion never fails.
func Coerce(raw string, t FieldType) (any, bool) {
	switch t {
	case Boolean:
		return toBool(raw), true
	case DateTime:
		for _, layout := range dateLayouts {
			if ts, err := time.Parse(layout, raw); err == nil {
				return ts, true
			}
		}
	case Double:
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f, true
		}
	case Int32:
		if i, err := strconv.ParseInt(raw, 10, 32); err == nil {
			return int32(i), true
		}
	case Int64:
		if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return i, true
		}
	case Object:
		if v, ok := parseObject(raw); ok {
			return v, true
		}
	default:
		return raw, true
	}
	return raw, false
}

// toBool accepts strconv literals first, then a fixed set of truthy tokens.
// Anything else is false.
func toBool(raw string) bool {
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	_, ok := truthy[strings.ToLower(raw)]
	return ok
}

// parseObject decodes any relaxed Extended JSON value. The value is wrapped in
// a single-key document so arrays and scalars decode through the same path.
// The driver stops reading after the wrapper closes, so raw must be a single
// complete JSON value on its own first.
func parseObject(raw string) (any, bool) {
	if !json.Valid([]byte(raw)) {
		return nil, false
	}
	var doc bson.D
	if err := bson.UnmarshalExtJSON([]byte(`{"v":`+raw+`}`), false, &doc); err != nil {
		return nil, false
	}
	if len(doc) != 1 || doc[0].Key != "v" {
		return nil, false
	}
	return doc[0].Value, true
}
