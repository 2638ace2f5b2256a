// Package markdown converts LLM-produced markdown into safe HTML.
//
// Rendering is two-phase: a line-oriented state machine segments the input
// into blocks (code fences, tables, blockquote runs, lists, headers, rules,
// chart placeholders and paragraphs), then every text run goes through an
// inline tokenizer that protects resolved spans behind placeholders. All text
// that does not come from an allow-listed HTML line is escaped.
package markdown

import (
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ChartSlot is a chart container emitted for a "[Chart: type]" marker.
type ChartSlot struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// Warning describes a construct that was rendered in a degraded way.
type Warning struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("line %d: %s", w.Line, w.Message)
}

// Document is the result of one render.
type Document struct {
	HTML     string      `json:"html"`
	Charts   []ChartSlot `json:"charts,omitempty"`
	Warnings []Warning   `json:"warnings,omitempty"`
}

// Renderer renders markdown. It holds no per-render state and is safe for
// concurrent use.
type Renderer struct {
	newID func() string
	log   *zap.Logger
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithLogger sets the logger that receives render warnings.
func WithLogger(l *zap.Logger) Option {
	return func(r *Renderer) {
		if l != nil {
			r.log = l
		}
	}
}

// WithIDFunc replaces the chart container ID generator.
func WithIDFunc(f func() string) Option {
	return func(r *Renderer) {
		if f != nil {
			r.newID = f
		}
	}
}

// New returns a Renderer.
func New(opts ...Option) *Renderer {
	r := &Renderer{newID: uuid.NewString, log: zap.NewNop()}
	for _, o := range opts {
		o(r)
	}
	return r
}

// ToHTML renders text with a default Renderer and returns only the HTML.
func ToHTML(text string) string {
	return New().Render(text).HTML
}

// Render converts text to HTML. It never fails; constructs it cannot parse
// are emitted as escaped paragraphs and reported in Document.Warnings.
func (r *Renderer) Render(text string) Document {
	doc := &Document{}
	text = strings.ReplaceAll(text, "\x00", "")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	p := &parser{r: r, doc: doc}
	doc.HTML = strings.Join(p.run(strings.Split(text, "\n"), 0), "\n")

	for _, w := range doc.Warnings {
		r.log.Warn("markdown render warning", zap.Int("line", w.Line), zap.String("warning", w.Message))
	}
	return *doc
}

// RenderValue renders v. Strings (and byte slices) are rendered as markdown;
// any other value is shown as escaped, indented JSON in a code block.
func (r *Renderer) RenderValue(v any) Document {
	switch t := v.(type) {
	case nil:
		return Document{}
	case string:
		return r.Render(t)
	case []byte:
		return r.Render(string(t))
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		data = []byte(fmt.Sprintf("%+v", v))
	}
	return Document{HTML: "<pre><code>" + html.EscapeString(string(data)) + "</code></pre>"}
}
