package msgraph

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Tiliavir/ttt-insights/internal/calendar"
)

type dateTimeZone struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

// EmailAddress names an organizer or attendee.
type EmailAddress struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

func (e EmailAddress) String() string {
	if e.Name != "" {
		return e.Name
	}
	return e.Address
}

// Recipient is an organizer or attendee.
type Recipient struct {
	EmailAddress EmailAddress `json:"emailAddress"`
}

// CalendarEvent is a Microsoft Graph calendar event.
type CalendarEvent struct {
	ID          string       `json:"id"`
	Subject     string       `json:"subject"`
	BodyPreview string       `json:"bodyPreview"`
	IsAllDay    bool         `json:"isAllDay"`
	IsCancelled bool         `json:"isCancelled"`
	Sensitivity string       `json:"sensitivity"` // "normal", "personal", "private", "confidential"
	ShowAs      string       `json:"showAs"`      // "free", "tentative", "busy", "oof", "workingElsewhere", "unknown"
	Start       dateTimeZone `json:"start"`
	End         dateTimeZone `json:"end"`
	Location    struct {
		DisplayName string `json:"displayName"`
	} `json:"location"`
	Organizer Recipient   `json:"organizer"`
	Attendees []Recipient `json:"attendees"`
}

// parseGraphTime parses a Graph dateTime in the given timezone. With a
// Prefer: outlook.timezone header Graph omits the zone suffix, e.g.
// "2026-02-27T09:00:00.0000000".
func parseGraphTime(dt, tz string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, dt); err == nil {
		return t, nil
	}
	loc := time.UTC
	if tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		}
	}
	for _, layout := range []string{
		"2006-01-02T15:04:05.0000000",
		"2006-01-02T15:04:05",
	} {
		if t, err := time.ParseInLocation(layout, dt, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse graph time %q", dt)
}

// Skip reports whether the event is not imported: cancelled, all-day,
// private or free events and events without times.
func Skip(event CalendarEvent) bool {
	switch {
	case event.IsCancelled, event.IsAllDay:
		return true
	case event.Sensitivity == "private", event.ShowAs == "free":
		return true
	case event.Start.DateTime == "" || event.End.DateTime == "":
		return true
	}
	return false
}

// ToMeeting converts a Graph event. Times without a zone are read in tz, or
// in the event's own zone when tz is empty.
func ToMeeting(event CalendarEvent, tz string) (calendar.Meeting, error) {
	startTZ, endTZ := tz, tz
	if startTZ == "" {
		startTZ, endTZ = event.Start.TimeZone, event.End.TimeZone
	}
	start, err := parseGraphTime(event.Start.DateTime, startTZ)
	if err != nil {
		return calendar.Meeting{}, fmt.Errorf("parsing start time: %w", err)
	}
	end, err := parseGraphTime(event.End.DateTime, endTZ)
	if err != nil {
		return calendar.Meeting{}, fmt.Errorf("parsing end time: %w", err)
	}
	m := calendar.Meeting{
		ID:        event.ID,
		Subject:   event.Subject,
		Start:     start,
		End:       end,
		Organizer: event.Organizer.EmailAddress.String(),
		Location:  event.Location.DisplayName,
		Notes:     event.BodyPreview,
	}
	for _, a := range event.Attendees {
		if s := a.EmailAddress.String(); s != "" {
			m.Attendees = append(m.Attendees, s)
		}
	}
	return m, nil
}

// Normalize converts the importable events and drops the rest. Events whose
// times cannot be parsed are logged and dropped.
func Normalize(events []CalendarEvent, tz string, log *zap.Logger) []calendar.Meeting {
	if log == nil {
		log = zap.NewNop()
	}
	var out []calendar.Meeting
	for _, ev := range events {
		if Skip(ev) {
			continue
		}
		m, err := ToMeeting(ev, tz)
		if err != nil {
			log.Warn("skipping outlook event", zap.String("subject", ev.Subject), zap.Error(err))
			continue
		}
		out = append(out, m)
	}
	return out
}
