package msgraph

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

// GraphBaseURL is the Microsoft Graph v1.0 endpoint.
const GraphBaseURL = "https://graph.microsoft.com/v1.0"

// SourceName is the entry source and tag of imported Outlook meetings.
const SourceName = "outlook"

// Client is an authenticated Microsoft Graph API client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	timezone   string
	log        *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another Graph host.
func WithBaseURL(u string) Option { return func(c *Client) { c.baseURL = u } }

// WithTimezone asks Graph for event times in an IANA zone, e.g. "Europe/Berlin".
func WithTimezone(tz string) Option { return func(c *Client) { c.timezone = tz } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(c *Client) { c.log = l } }

// NewClient wraps an authorised HTTP client (see Authenticator.HTTPClient).
func NewClient(httpClient *http.Client, opts ...Option) *Client {
	c := &Client{httpClient: httpClient, baseURL: GraphBaseURL, log: zap.NewNop()}
	for _, o := range opts {
		o(c)
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	return c
}

// calendarViewResponse is the Graph API paged response for calendar events.
type calendarViewResponse struct {
	Value    []CalendarEvent `json:"value"`
	NextLink string          `json:"@odata.nextLink"`
}

// GetCalendarView fetches calendar events in [from, to) using the
// calendarView endpoint, following nextLink pages.
func (c *Client) GetCalendarView(ctx context.Context, from, to time.Time) ([]CalendarEvent, error) {
	endpoint := fmt.Sprintf("%s/me/calendarView?startDateTime=%s&endDateTime=%s&$top=100",
		c.baseURL,
		url.QueryEscape(from.UTC().Format(time.RFC3339)),
		url.QueryEscape(to.UTC().Format(time.RFC3339)),
	)

	var all []CalendarEvent
	for endpoint != "" {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if c.timezone != "" {
			req.Header.Set("Prefer", fmt.Sprintf(`outlook.timezone="%s"`, c.timezone))
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("graph API request failed: %w", err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("reading response body: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("graph API error %d: %s", resp.StatusCode,
				logger.SanitizeString(string(body), logger.MaxErrorMessageLength))
		}

		var page calendarViewResponse
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("decoding graph response: %w", err)
		}
		c.log.Debug("graph calendar page", zap.Int("events", len(page.Value)))
		all = append(all, page.Value...)
		endpoint = page.NextLink
	}
	return all, nil
}

// Name implements calendar.Source.
func (c *Client) Name() string { return SourceName }

// Meetings implements calendar.Source.
func (c *Client) Meetings(ctx context.Context, from, to time.Time) ([]calendar.Meeting, error) {
	events, err := c.GetCalendarView(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return Normalize(events, c.timezone, c.log), nil
}
