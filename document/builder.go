package document

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/go-lynx/lynx-mongolog/event"
)

// Keys written by the builder.
const (
	KeyDate       = "Date"
	KeyLevel      = "Level"
	KeyLogger     = "Logger"
	KeyMessage    = "Message"
	KeyException  = "Exception"
	KeyProperties = "Properties"
)

// Builder assembles one document per event. It is safe for concurrent use
// once configured.
type Builder struct {
	// IncludeDefaults writes Date, Level, Logger, Message and Exception.
	// Defaults are also written when no Fields are configured.
	IncludeDefaults bool
	// IncludeEventProperties copies the event's own properties into the
	// Properties sub-document.
	IncludeEventProperties bool
	Fields                 []*Field
	Properties             []*Field
	// OnRenderError, when set, is told about layouts that failed to render.
	// The affected key is omitted either way.
	OnRenderError func(field string, err error)
}

// Build converts e into a document. Keys keep their first position when a
// later field with the same name overwrites the value.
func (b *Builder) Build(e *event.Event) bson.D {
	doc := newOrdered(len(b.Fields) + 6)

	if b.IncludeDefaults || len(b.Fields) == 0 {
		doc.set(KeyDate, e.Time)
		doc.set(KeyLevel, e.LevelName())
		if e.Logger != "" {
			doc.set(KeyLogger, e.Logger)
		}
		if e.Message != "" {
			doc.set(KeyMessage, e.Message)
		}
		if exc := Exception(e.Err); exc != nil {
			doc.set(KeyException, exc)
		}
	}

	for _, f := range b.Fields {
		b.apply(doc, f.Name, f, e)
	}

	if props := b.buildProperties(e); props != nil {
		doc.set(KeyProperties, props)
	}
	return doc.d
}

// buildProperties returns nil when the sub-document would be empty.
// Property keys, configured or ambient, never contain '.'. Configured property
// fields take precedence over event properties that sanitize to the same key.
func (b *Builder) buildProperties(e *event.Event) bson.D {
	ambient := b.IncludeEventProperties && len(e.Properties) > 0
	if !ambient && len(b.Properties) == 0 {
		return nil
	}

	props := newOrdered(len(b.Properties) + len(e.Properties))
	for _, f := range b.Properties {
		b.apply(props, SanitizeKey(f.Name), f, e)
	}
	configured := len(props.d)

	if ambient {
		for _, p := range e.Properties {
			if p.Key == nil || p.Value == nil {
				continue
			}
			key := SanitizeKey(event.FormatValue(p.Key))
			if key == "" {
				continue
			}
			val := event.FormatValue(p.Value)
			if val == "" {
				continue
			}
			if i, ok := props.idx[key]; ok && i < configured {
				continue
			}
			props.set(key, val)
		}
	}

	if len(props.d) == 0 {
		return nil
	}
	return props.d
}

func (b *Builder) apply(doc *ordered, key string, f *Field, e *event.Event) {
	v, ok, err := f.Value(e)
	if err != nil && b.OnRenderError != nil {
		b.OnRenderError(f.Name, err)
	}
	if ok {
		doc.set(key, v)
	}
}

// SanitizeKey replaces characters that MongoDB treats as path separators.
func SanitizeKey(key string) string {
	return strings.ReplaceAll(key, ".", "_")
}

// ordered is a bson.D with map-style overwrite semantics.
type ordered struct {
	d   bson.D
	idx map[string]int
}

func newOrdered(capacity int) *ordered {
	return &ordered{d: make(bson.D, 0, capacity), idx: make(map[string]int, capacity)}
}

func (o *ordered) set(key string, value any) {
	if i, ok := o.idx[key]; ok {
		o.d[i].Value = value
		return
	}
	o.idx[key] = len(o.d)
	o.d = append(o.d, bson.E{Key: key, Value: value})
}
