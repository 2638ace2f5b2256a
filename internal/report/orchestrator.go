package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Tiliavir/ttt-insights/internal/aggregate"
	"github.com/Tiliavir/ttt-insights/internal/charts"
	"github.com/Tiliavir/ttt-insights/internal/llm"
	"github.com/Tiliavir/ttt-insights/internal/markdown"
	"github.com/Tiliavir/ttt-insights/internal/model"
	"github.com/Tiliavir/ttt-insights/internal/tabular"
	"github.com/Tiliavir/ttt-insights/internal/timecalc"
	"github.com/Tiliavir/ttt-insights/internal/validation"
)

// ErrBusy is returned when Generate is called while another generation is
// still running.
var ErrBusy = errors.New("a report is already being generated")

// State is the phase of the current (or last) report generation.
type State string

const (
	StateIdle          State = "idle"
	StateGatheringData State = "gathering_data"
	StateAwaitingLLM   State = "awaiting_llm"
	StateRendering     State = "rendering"
	StateDisplayed     State = "displayed"
	StateFailed        State = "failed"
)

// EntrySource supplies the tracked data for a date range.
type EntrySource interface {
	LoadRange(from, to time.Time) ([]model.Entry, error)
	Categories() ([]string, error)
	Goals() ([]model.Goal, error)
	Deliverables() ([]model.Deliverable, error)
}

// ProviderFunc returns the provider adapter for a vendor.
type ProviderFunc func(v llm.Vendor) (llm.Provider, error)

// Notifier shows a short message to the user outside the terminal.
type Notifier interface {
	Notify(title, message string) error
}

// Event is sent to every subscribed view on each state change.
type Event struct {
	State  State
	Report *model.Report
	// Prompt is set in copy mode, where it was placed on the clipboard.
	Prompt string
	Err    error
}

// View receives orchestrator events.
type View interface {
	Update(Event)
}

// ViewFunc adapts a function to View.
type ViewFunc func(Event)

func (f ViewFunc) Update(e Event) { f(e) }

// GenerateRequest describes one report generation.
type GenerateRequest struct {
	From     time.Time `validate:"required"`
	To       time.Time `validate:"required"`
	Provider string    `validate:"omitempty,vendor"`
	Model    string    `validate:"max=200"`
	Template string    `validate:"max=100"`
	// Temperature is left to the vendor default when nil.
	Temperature *float64 `validate:"omitempty,gte=0,lte=2"`
	MaxTokens   int      `validate:"gte=0,lte=200000"`
	// CopyMode skips the provider call and puts the prompt on the clipboard.
	CopyMode bool
}

// Validate checks the request before any data is read.
func (r GenerateRequest) Validate() error {
	var problems []string
	if err := validation.Struct(r); err != nil {
		var verr *validation.Error
		if !errors.As(err, &verr) {
			return err
		}
		problems = append(problems, verr.Problems...)
	}
	if !r.CopyMode && r.Provider == "" {
		problems = append(problems, "provider is required unless copy mode is on")
	}
	if !r.From.IsZero() && !r.To.IsZero() {
		if err := validation.DateRange(r.From, r.To); err != nil {
			var verr *validation.Error
			if errors.As(err, &verr) {
				problems = append(problems, verr.Problems...)
			}
		}
	}
	if len(problems) > 0 {
		return &validation.Error{Problems: problems}
	}
	return nil
}

// ChartData is stored with each report: the charts bound to placeholders in
// the text and the ones the text did not place.
type ChartData struct {
	Bound    []charts.Binding `json:"bound"`
	Unplaced []charts.Config  `json:"unplaced"`
}

// DecodeChartData reads the chart data stored with r.
func DecodeChartData(r model.Report) (ChartData, error) {
	var cd ChartData
	if len(r.ChartData) == 0 {
		return cd, nil
	}
	if err := json.Unmarshal(r.ChartData, &cd); err != nil {
		return ChartData{}, fmt.Errorf("report %s: chart data: %w", r.ID, err)
	}
	return cd, nil
}

// Outcome is the result of a Generate call.
type Outcome struct {
	State    State
	Report   model.Report
	Document markdown.Document
	Charts   ChartData
	// Prompt is the full prompt; in copy mode it is all there is.
	Prompt string
	Copied bool
	// Saved is false when the report could not be written to the history.
	Saved bool
}

// Config wires an Orchestrator.
type Config struct {
	Source    EntrySource
	History   *History
	Templates *Templates
	Providers ProviderFunc
	Renderer  *markdown.Renderer
	// Clipboard defaults to the system clipboard.
	Clipboard func(string) error
	// Notifier is optional.
	Notifier     Notifier
	Logger       *zap.Logger
	Now          func() time.Time
	NewID        func() string
	EntryPreview int
}

// Orchestrator runs report generations one at a time:
// idle, gathering_data, awaiting_llm, rendering, displayed. Aggregation and
// provider errors end in failed.
type Orchestrator struct {
	source    EntrySource
	history   *History
	templates *Templates
	providers ProviderFunc
	renderer  *markdown.Renderer
	clipboard func(string) error
	notifier  Notifier
	log       *zap.Logger
	now       func() time.Time
	newID     func() string
	preview   int

	mu    sync.Mutex
	state State
	busy  bool
	views []View
}

// New returns an Orchestrator in state idle.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Source == nil {
		return nil, errors.New("report orchestrator: entry source is required")
	}
	o := &Orchestrator{
		source:    cfg.Source,
		history:   cfg.History,
		templates: cfg.Templates,
		providers: cfg.Providers,
		renderer:  cfg.Renderer,
		clipboard: cfg.Clipboard,
		notifier:  cfg.Notifier,
		log:       cfg.Logger,
		now:       cfg.Now,
		newID:     cfg.NewID,
		preview:   cfg.EntryPreview,
		state:     StateIdle,
	}
	if o.templates == nil {
		o.templates = BuiltinTemplates()
	}
	if o.providers == nil {
		o.providers = func(v llm.Vendor) (llm.Provider, error) {
			return nil, fmt.Errorf("no provider configured for %s", v.DisplayName())
		}
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	if o.renderer == nil {
		o.renderer = markdown.New(markdown.WithLogger(o.log))
	}
	if o.clipboard == nil {
		o.clipboard = clipboard.WriteAll
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.newID == nil {
		o.newID = uuid.NewString
	}
	return o, nil
}

// Subscribe registers v for events and returns a function removing it.
func (o *Orchestrator) Subscribe(v View) func() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.views = append(o.views, v)
	idx := len(o.views) - 1
	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if idx < len(o.views) {
			o.views[idx] = nil
		}
	}
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) set(e Event) {
	o.mu.Lock()
	o.state = e.State
	views := make([]View, 0, len(o.views))
	for _, v := range o.views {
		if v != nil {
			views = append(views, v)
		}
	}
	o.mu.Unlock()

	o.log.Debug("report state", zap.String("state", string(e.State)))
	for _, v := range views {
		v.Update(e)
	}
}

// Summary aggregates [from, to] and returns the report with its tabular form.
func (o *Orchestrator) Summary(from, to time.Time) (aggregate.Report, string, error) {
	if err := validation.DateRange(from, to); err != nil {
		return aggregate.Report{}, "", err
	}
	agg, err := o.gather(timecalc.StartOfDay(from), timecalc.EndOfDay(to))
	if err != nil {
		return aggregate.Report{}, "", err
	}
	return agg, tabular.Format(agg, tabular.Options{EntryPreview: o.preview}), nil
}

func (o *Orchestrator) gather(from, to time.Time) (aggregate.Report, error) {
	entries, err := o.source.LoadRange(from, to)
	if err != nil {
		return aggregate.Report{}, fmt.Errorf("load entries: %w", err)
	}
	cats, err := o.source.Categories()
	if err != nil {
		return aggregate.Report{}, fmt.Errorf("load categories: %w", err)
	}
	goals, err := o.source.Goals()
	if err != nil {
		return aggregate.Report{}, fmt.Errorf("load goals: %w", err)
	}
	dels, err := o.source.Deliverables()
	if err != nil {
		return aggregate.Report{}, fmt.Errorf("load deliverables: %w", err)
	}
	return aggregate.Build(aggregate.Input{
		From:         from,
		To:           to,
		Entries:      entries,
		Categories:   cats,
		Deliverables: dels,
		Goals:        goals,
	}), nil
}

// Generate runs one report generation. Invalid requests are rejected before
// the state changes. Only one generation runs at a time.
func (o *Orchestrator) Generate(ctx context.Context, req GenerateRequest) (Outcome, error) {
	if err := req.Validate(); err != nil {
		return Outcome{State: o.State()}, err
	}

	o.mu.Lock()
	if o.busy {
		o.mu.Unlock()
		return Outcome{State: o.State()}, ErrBusy
	}
	o.busy = true
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.busy = false
		o.mu.Unlock()
	}()

	from, to := timecalc.StartOfDay(req.From), timecalc.EndOfDay(req.To)

	o.set(Event{State: StateGatheringData})
	tmpl, err := o.templates.Get(req.Template)
	if err != nil {
		return o.fail(err)
	}
	agg, err := o.gather(from, to)
	if err != nil {
		return o.fail(err)
	}
	data := tabular.Format(agg, tabular.Options{EntryPreview: o.preview})
	user := FillPrompt(tmpl.User, data, from, to)
	system := FillPrompt(tmpl.System, "", from, to)
	prompt := system + "\n\n" + user

	if req.CopyMode {
		if err := o.clipboard(prompt); err != nil {
			return o.fail(fmt.Errorf("copy prompt to clipboard: %w", err))
		}
		o.set(Event{State: StateDisplayed, Prompt: prompt})
		o.notify("Report prompt copied", "Paste it into the chat of your choice.")
		return Outcome{State: StateDisplayed, Prompt: prompt, Copied: true}, nil
	}

	vendor, err := llm.ParseVendor(req.Provider)
	if err != nil {
		return o.fail(err)
	}
	o.set(Event{State: StateAwaitingLLM})
	provider, err := o.providers(vendor)
	if err != nil {
		return o.fail(err)
	}
	res, err := provider.Generate(ctx, llm.Request{
		Model:  req.Model,
		System: system,
		User:   user,
		Params: llm.Params{Temperature: req.Temperature, MaxTokens: req.MaxTokens},
	})
	if err != nil {
		return o.fail(err)
	}

	o.set(Event{State: StateRendering})
	doc := o.renderer.Render(res.Text)
	bound, unplaced := charts.Bind(doc.Charts, charts.Build(agg))
	cd := ChartData{Bound: bound, Unplaced: unplaced}
	chartJSON, err := json.Marshal(cd)
	if err != nil {
		o.log.Warn("encode chart data", zap.Error(err))
		chartJSON = nil
	}

	created := o.now()
	modelName := res.Model
	if modelName == "" {
		modelName = req.Model
	}
	rep := model.Report{
		ID:        o.newID(),
		CreatedAt: created,
		Content:   res.Text,
		HTML:      doc.HTML,
		Provider:  string(vendor),
		Model:     modelName,
		Template:  tmpl.Name,
		Data:      data,
		ChartData: chartJSON,
		Timestamp: created.UnixMilli(),
		Truncated: res.Truncated,
	}

	out := Outcome{
		State:    StateDisplayed,
		Report:   rep,
		Document: doc,
		Charts:   cd,
		Prompt:   prompt,
	}
	if o.history != nil {
		if err := o.history.Save(rep); err != nil {
			o.log.Error("save report to history", zap.String("id", rep.ID), zap.Error(err))
		} else {
			out.Saved = true
		}
	}

	o.set(Event{State: StateDisplayed, Report: &rep})
	msg := fmt.Sprintf("%s report from %s is ready.", tmpl.Name, vendor.DisplayName())
	if rep.Truncated {
		msg += " The output was cut off at the token limit."
	}
	o.notify("Report ready", msg)
	return out, nil
}

func (o *Orchestrator) fail(err error) (Outcome, error) {
	o.log.Warn("report generation failed", zap.Error(err))
	o.set(Event{State: StateFailed, Err: err})
	o.notify("Report failed", llm.UserMessage(err))
	return Outcome{State: StateFailed}, err
}

func (o *Orchestrator) notify(title, message string) {
	if o.notifier == nil {
		return
	}
	if err := o.notifier.Notify(title, message); err != nil {
		o.log.Debug("desktop notification failed", zap.Error(err))
	}
}
