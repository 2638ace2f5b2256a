package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Tiliavir/ttt-insights/internal/model"
)

// ErrUnknownTemplate is returned for a template name that is neither built in
// nor defined in a custom templates file.
var ErrUnknownTemplate = errors.New("unknown report template")

// DefaultTemplate is used when no template is configured.
const DefaultTemplate = "weekly-summary"

// Prompt placeholders replaced by FillPrompt.
const (
	PlaceholderData      = "{{data}}"
	PlaceholderStartDate = "{{startDate}}"
	PlaceholderEndDate   = "{{endDate}}"
)

const formatRules = `Write the report in Markdown. Use headers, bullet lists and tables where they help.
You may place charts by writing one of these markers on a line of its own:
[Chart: daily] (hours per day), [Chart: category] (time by category),
[Chart: hourly] (hours by start time), [Chart: focus] (focus vs. short sessions).
Base every statement on the data. Do not invent numbers.`

var builtinTemplates = []model.Template{
	{
		Name:   "weekly-summary",
		System: "You are a concise assistant that summarises a person's tracked work time.\n" + formatRules,
		User: `Summarise my work from {{startDate}} to {{endDate}}.
Cover: total time and how it was split across categories, the main things I worked on,
notable days, meetings, and progress on deliverables and goals.
Finish with three short suggestions for next week.

{{data}}`,
	},
	{
		Name:   "productivity",
		System: "You are a productivity coach analysing time-tracking data.\n" + formatRules,
		User: `Analyse my productivity from {{startDate}} to {{endDate}}.
Look at focus time versus short sessions, when in the day I work, how fragmented my days are
and how much time meetings take. Point out patterns and give concrete, actionable advice.

{{data}}`,
	},
	{
		Name:   "deliverables",
		System: "You are a project assistant reporting progress on deliverables and goals.\n" + formatRules,
		User: `Write a status report on my deliverables and goals from {{startDate}} to {{endDate}}.
For each deliverable state the time invested, whether it was direct or allocated time and
what the entries suggest was done. Relate deliverables to their goals and flag goals that are behind target.

{{data}}`,
	},
	{
		Name:   "meetings",
		System: "You are an assistant reviewing how someone spends time in meetings.\n" + formatRules,
		User: `Review my meetings from {{startDate}} to {{endDate}}.
How much of my time went into meetings, which recurring meetings dominate, and which days were meeting-heavy?
Suggest meetings that could be shortened, merged or replaced.

{{data}}`,
	},
}

// Templates holds the built-in templates and any custom ones. A custom
// template replaces a built-in of the same name.
type Templates struct {
	byName map[string]model.Template
	custom map[string]bool
}

// BuiltinTemplates returns the built-in templates.
func BuiltinTemplates() *Templates {
	t := &Templates{byName: map[string]model.Template{}, custom: map[string]bool{}}
	for _, tmpl := range builtinTemplates {
		t.byName[tmpl.Name] = tmpl
	}
	return t
}

// Get returns the template called name.
func (t *Templates) Get(name string) (model.Template, error) {
	if name == "" {
		name = DefaultTemplate
	}
	tmpl, ok := t.byName[name]
	if !ok {
		return model.Template{}, fmt.Errorf("%w: %q (available: %s)", ErrUnknownTemplate, name, strings.Join(t.Names(), ", "))
	}
	return tmpl, nil
}

// Names lists built-in templates first, then custom ones, each sorted.
func (t *Templates) Names() []string {
	var builtin, custom []string
	for name := range t.byName {
		if t.custom[name] {
			custom = append(custom, name)
		} else {
			builtin = append(builtin, name)
		}
	}
	sort.Strings(builtin)
	sort.Strings(custom)
	return append(builtin, custom...)
}

// IsCustom reports whether name comes from a custom templates file.
func (t *Templates) IsCustom(name string) bool {
	return t.custom[name]
}

func (t *Templates) add(tmpl model.Template, log *zap.Logger) {
	tmpl.Name = strings.TrimSpace(tmpl.Name)
	if tmpl.Name == "" || strings.TrimSpace(tmpl.User) == "" {
		log.Warn("skipping custom template without name or user prompt", zap.String("name", tmpl.Name))
		return
	}
	t.byName[tmpl.Name] = tmpl
	t.custom[tmpl.Name] = true
}

// LoadTemplates returns the built-in templates plus the custom templates
// found in dir: templates.yaml (key customTemplates, or the legacy key
// templates) and the legacy templates.toml. Either key may hold a mapping
// from name to template or a list of templates. Missing files are fine.
func LoadTemplates(dir string, log *zap.Logger) (*Templates, error) {
	if log == nil {
		log = zap.NewNop()
	}
	t := BuiltinTemplates()

	tomlPath := filepath.Join(dir, "templates.toml")
	if data, err := os.ReadFile(tomlPath); err == nil {
		list, err := parseTOMLTemplates(data)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", tomlPath, err)
		}
		for _, tmpl := range list {
			t.add(tmpl, log)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	yamlPath := filepath.Join(dir, "templates.yaml")
	if data, err := os.ReadFile(yamlPath); err == nil {
		list, err := parseYAMLTemplates(data)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", yamlPath, err)
		}
		for _, tmpl := range list {
			t.add(tmpl, log)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}
	return t, nil
}

func parseYAMLTemplates(data []byte) ([]model.Template, error) {
	var doc map[string]yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	node, ok := doc["customTemplates"]
	if !ok {
		node, ok = doc["templates"]
	}
	if !ok {
		return nil, nil
	}
	switch node.Kind {
	case yaml.MappingNode:
		var m map[string]model.Template
		if err := node.Decode(&m); err != nil {
			return nil, err
		}
		return fromMap(m), nil
	case yaml.SequenceNode:
		var list []model.Template
		if err := node.Decode(&list); err != nil {
			return nil, err
		}
		return list, nil
	}
	return nil, fmt.Errorf("templates must be a mapping or a list, got %s", kindName(node.Kind))
}

func parseTOMLTemplates(data []byte) ([]model.Template, error) {
	var doc map[string]toml.Primitive
	md, err := toml.Decode(string(data), &doc)
	if err != nil {
		return nil, err
	}
	prim, ok := doc["customTemplates"]
	if !ok {
		prim, ok = doc["templates"]
	}
	if !ok {
		return nil, nil
	}
	var list []model.Template
	if err := md.PrimitiveDecode(prim, &list); err == nil {
		return list, nil
	}
	var m map[string]model.Template
	if err := md.PrimitiveDecode(prim, &m); err != nil {
		return nil, err
	}
	return fromMap(m), nil
}

func fromMap(m map[string]model.Template) []model.Template {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]model.Template, 0, len(m))
	for _, name := range names {
		tmpl := m[name]
		if tmpl.Name == "" {
			tmpl.Name = name
		}
		out = append(out, tmpl)
	}
	return out
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.ScalarNode:
		return "a scalar"
	case yaml.AliasNode:
		return "an alias"
	case yaml.DocumentNode:
		return "a document"
	}
	return "an unknown node"
}

// FillPrompt replaces the data and date placeholders in s. A prompt without
// {{data}} gets non-empty data appended.
func FillPrompt(s, data string, from, to time.Time) string {
	r := strings.NewReplacer(
		PlaceholderStartDate, from.Format("2006-01-02"),
		PlaceholderEndDate, to.Format("2006-01-02"),
	)
	s = r.Replace(s)
	if !strings.Contains(s, PlaceholderData) {
		if data == "" {
			return s
		}
		return s + "\n\n" + data
	}
	return strings.ReplaceAll(s, PlaceholderData, data)
}
