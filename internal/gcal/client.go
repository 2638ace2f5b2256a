package gcal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/Tiliavir/ttt-insights/internal/calendar"
	"github.com/Tiliavir/ttt-insights/internal/logger"
)

// APIBaseURL is the Google Calendar v3 endpoint.
const APIBaseURL = "https://www.googleapis.com/calendar/v3"

// SourceName is the entry source and tag of imported Google meetings.
const SourceName = "google"

// EventTime is either a timed start/end or an all-day date.
type EventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

// Person is an organizer or attendee.
type Person struct {
	Email          string `json:"email"`
	DisplayName    string `json:"displayName,omitempty"`
	Self           bool   `json:"self,omitempty"`
	ResponseStatus string `json:"responseStatus,omitempty"`
}

func (p Person) String() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.Email
}

// Event is a Google Calendar event.
type Event struct {
	ID           string    `json:"id"`
	Status       string    `json:"status"` // "confirmed", "tentative", "cancelled"
	Summary      string    `json:"summary"`
	Description  string    `json:"description,omitempty"`
	Location     string    `json:"location,omitempty"`
	Start        EventTime `json:"start"`
	End          EventTime `json:"end"`
	Organizer    Person    `json:"organizer"`
	Attendees    []Person  `json:"attendees,omitempty"`
	Transparency string    `json:"transparency,omitempty"` // "transparent" means free
	Visibility   string    `json:"visibility,omitempty"`
}

type eventsResponse struct {
	Items         []Event `json:"items"`
	NextPageToken string  `json:"nextPageToken"`
}

// Skip reports whether the event is not imported: cancelled, all-day,
// private, free or declined events.
func Skip(ev Event) bool {
	switch {
	case ev.Status == "cancelled":
		return true
	case ev.Start.DateTime == "" || ev.End.DateTime == "":
		return true
	case ev.Visibility == "private" || ev.Visibility == "confidential":
		return true
	case ev.Transparency == "transparent":
		return true
	}
	for _, a := range ev.Attendees {
		if a.Self && a.ResponseStatus == "declined" {
			return true
		}
	}
	return false
}

// ToMeeting converts a timed event.
func ToMeeting(ev Event) (calendar.Meeting, error) {
	start, err := time.Parse(time.RFC3339, ev.Start.DateTime)
	if err != nil {
		return calendar.Meeting{}, fmt.Errorf("parsing start time: %w", err)
	}
	end, err := time.Parse(time.RFC3339, ev.End.DateTime)
	if err != nil {
		return calendar.Meeting{}, fmt.Errorf("parsing end time: %w", err)
	}
	m := calendar.Meeting{
		ID:        ev.ID,
		Subject:   ev.Summary,
		Start:     start.Local(),
		End:       end.Local(),
		Organizer: ev.Organizer.String(),
		Location:  ev.Location,
		Notes:     logger.SanitizeString(ev.Description, logger.MaxPreviewLength),
	}
	for _, a := range ev.Attendees {
		if a.Self {
			continue
		}
		if s := a.String(); s != "" {
			m.Attendees = append(m.Attendees, s)
		}
	}
	return m, nil
}

// Client reads the primary Google calendar.
type Client struct {
	httpClient *http.Client
	baseURL    string
	calendarID string
	log        *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another API host.
func WithBaseURL(u string) Option { return func(c *Client) { c.baseURL = u } }

// WithCalendarID reads another calendar than "primary".
func WithCalendarID(id string) Option { return func(c *Client) { c.calendarID = id } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(c *Client) { c.log = l } }

// NewClient wraps an authorised HTTP client (see HTTPClient).
func NewClient(httpClient *http.Client, opts ...Option) *Client {
	c := &Client{httpClient: httpClient, baseURL: APIBaseURL, calendarID: "primary", log: zap.NewNop()}
	for _, o := range opts {
		o(c)
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	return c
}

// Events lists single events in [from, to), following page tokens.
func (c *Client) Events(ctx context.Context, from, to time.Time) ([]Event, error) {
	var all []Event
	pageToken := ""
	for {
		q := url.Values{}
		q.Set("timeMin", from.UTC().Format(time.RFC3339))
		q.Set("timeMax", to.UTC().Format(time.RFC3339))
		q.Set("singleEvents", "true")
		q.Set("orderBy", "startTime")
		q.Set("maxResults", "250")
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}
		endpoint := fmt.Sprintf("%s/calendars/%s/events?%s", c.baseURL, url.PathEscape(c.calendarID), q.Encode())

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("google calendar request failed: %w", err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("reading response body: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("google calendar error %d: %s", resp.StatusCode,
				logger.SanitizeString(string(body), logger.MaxErrorMessageLength))
		}
		var page eventsResponse
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("decoding google calendar response: %w", err)
		}
		c.log.Debug("google calendar page", zap.Int("events", len(page.Items)))
		all = append(all, page.Items...)
		if page.NextPageToken == "" {
			return all, nil
		}
		pageToken = page.NextPageToken
	}
}

// Name implements calendar.Source.
func (c *Client) Name() string { return SourceName }

// Meetings implements calendar.Source.
func (c *Client) Meetings(ctx context.Context, from, to time.Time) ([]calendar.Meeting, error) {
	events, err := c.Events(ctx, from, to)
	if err != nil {
		return nil, err
	}
	var out []calendar.Meeting
	for _, ev := range events {
		if Skip(ev) {
			continue
		}
		m, err := ToMeeting(ev)
		if err != nil {
			c.log.Warn("skipping google event", zap.String("summary", ev.Summary), zap.Error(err))
			continue
		}
		out = append(out, m)
	}
	return out, nil
}
