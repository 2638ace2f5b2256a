// Package notify shows desktop notifications about report generations.
package notify

import (
	"github.com/gen2brain/beeep"
	"go.uber.org/zap"
)

// AppName is shown as the notification source where the platform supports it.
const AppName = "ttt"

// SendFunc delivers one notification.
type SendFunc func(title, message string) error

// Desktop sends notifications through the platform notification service.
type Desktop struct {
	send SendFunc
	log  *zap.Logger
}

// NewDesktop returns a Desktop notifier.
func NewDesktop(log *zap.Logger) *Desktop {
	beeep.AppName = AppName
	return NewWithSender(func(title, message string) error {
		return beeep.Notify(title, message, "")
	}, log)
}

// NewWithSender returns a Desktop that delivers through send.
func NewWithSender(send SendFunc, log *zap.Logger) *Desktop {
	if log == nil {
		log = zap.NewNop()
	}
	return &Desktop{send: send, log: log}
}

// Notify shows title and message. Messages longer than MaxMessage runes are
// shortened.
func (d *Desktop) Notify(title, message string) error {
	message = shorten(message, MaxMessage)
	d.log.Debug("desktop notification", zap.String("title", title))
	return d.send(title, message)
}

// MaxMessage caps the notification body; most platforms cut it anyway.
const MaxMessage = 240

func shorten(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
