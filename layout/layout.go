// Package layout renders configured text templates against log events.
//
// A layout without template actions is a literal and renders to itself. Any
// other layout is a text/template executed with a View of the event:
//
//	{{ .Level }} {{ .Logger }} {{ .Message }} {{ .Error }}
//	{{ .Prop "user_id" }}          first property with that key
//	{{ .Date "2006-01" }}          event time in the given layout (UTC)
//	{{ env "HOSTNAME" | lower }}   environment lookups and string helpers
package layout

import (
	"fmt"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/go-lynx/lynx-mongolog/event"
)

// Layout renders a string from an event.
type Layout interface {
	Render(e *event.Event) (string, error)
	// Text returns the source the layout was parsed from.
	Text() string
}

var funcs = template.FuncMap{
	"env":   os.Getenv,
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
	"trim":  strings.TrimSpace,
}

// Parse compiles text into a Layout.
func Parse(text string) (Layout, error) {
	if !strings.Contains(text, "{{") {
		return Literal(text), nil
	}
	t, err := template.New("layout").Funcs(funcs).Option("missingkey=zero").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse layout %q: %w", text, err)
	}
	return &templateLayout{text: text, tmpl: t}, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// package-level defaults.
func MustParse(text string) Layout {
	l, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return l
}

// IsStatic reports whether l renders the same value for every event.
func IsStatic(l Layout) bool {
	if l == nil {
		return true
	}
	_, ok := l.(Literal)
	return ok
}

// Literal is a layout without template actions.
type Literal string

func (l Literal) Render(*event.Event) (string, error) { return string(l), nil }

func (l Literal) Text() string { return string(l) }

type templateLayout struct {
	text string
	tmpl *template.Template
}

func (l *templateLayout) Render(e *event.Event) (string, error) {
	var b strings.Builder
	if err := l.tmpl.Execute(&b, newView(e)); err != nil {
		return "", fmt.Errorf("render layout %q: %w", l.text, err)
	}
	return b.String(), nil
}

func (l *templateLayout) Text() string { return l.text }

// View is the data a template sees.
type View struct {
	Time    time.Time
	Level   string
	Logger  string
	Message string
	Error   string
	ev      *event.Event
}

func newView(e *event.Event) View {
	v := View{ev: e}
	if e == nil {
		return v
	}
	v.Time = e.Time
	v.Level = e.LevelName()
	v.Logger = e.Logger
	v.Message = e.Message
	if e.HasError() {
		v.Error = e.Err.Error()
	}
	return v
}

// Prop returns the formatted value of the first property named key, or "".
func (v View) Prop(key string) string {
	if v.ev == nil {
		return ""
	}
	val, ok := v.ev.Property(key)
	if !ok {
		return ""
	}
	return event.FormatValue(val)
}

// Date formats the event time in UTC using a Go time layout.
func (v View) Date(layout string) string {
	return v.Time.UTC().Format(layout)
}
