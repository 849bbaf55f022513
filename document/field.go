package document

import (
	"strings"

	"github.com/go-lynx/lynx-mongolog/event"
	"github.com/go-lynx/lynx-mongolog/layout"
	"github.com/go-lynx/lynx-mongolog/pkg/errx"
)

// Field is a named, typed extraction rule: the layout is rendered against an
// event, trimmed and coerced to Type before being stored under Name.
type Field struct {
	Name   string
	Layout layout.Layout
	Type   FieldType
}

// NewField validates and compiles a field descriptor. Name and layout are
// required; an unknown type name falls back to String.
func NewField(name, layoutText, typeName string) (*Field, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errx.Configuration("field name is required")
	}
	if strings.TrimSpace(layoutText) == "" {
		return nil, errx.Configuration("field %q: layout is required", name)
	}
	l, err := layout.Parse(layoutText)
	if err != nil {
		return nil, errx.AsConfiguration(err, "field "+name)
	}
	return &Field{Name: name, Layout: l, Type: ParseFieldType(typeName)}, nil
}

// Value renders and coerces the field for e. ok is false when the rendered
// value is empty, in which case the key must be omitted. A render failure is
// reported through err and otherwise treated as empty.
func (f *Field) Value(e *event.Event) (v any, ok bool, err error) {
	raw, err := f.Layout.Render(e)
	if err != nil {
		return nil, false, err
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false, nil
	}
	v, _ = Coerce(raw, f.Type)
	return v, true, nil
}
