package notify_test

import (
	"strings"
	"testing"

	"github.com/Tiliavir/ttt-insights/internal/notify"
)

func TestNotifyDelivers(t *testing.T) {
	var gotTitle, gotMessage string
	d := notify.NewWithSender(func(title, message string) error {
		gotTitle, gotMessage = title, message
		return nil
	}, nil)
	if err := d.Notify("Report ready", "weekly-summary from OpenAI is ready."); err != nil {
		t.Fatal(err)
	}
	if gotTitle != "Report ready" || gotMessage != "weekly-summary from OpenAI is ready." {
		t.Errorf("sent %q / %q", gotTitle, gotMessage)
	}
}

func TestNotifyShortensLongMessages(t *testing.T) {
	var got string
	d := notify.NewWithSender(func(_, message string) error {
		got = message
		return nil
	}, nil)
	long := strings.Repeat("é", notify.MaxMessage+10)
	if err := d.Notify("t", long); err != nil {
		t.Fatal(err)
	}
	if n := len([]rune(got)); n != notify.MaxMessage {
		t.Errorf("message length = %d runes, want %d", n, notify.MaxMessage)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("message = %q, want ... suffix", got)
	}
}
