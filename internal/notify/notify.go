// Package notify delivers KPI digests to chat platforms.
package notify

import (
	"context"
	"errors"
)

// Field is a key-value pair shown alongside a message.
type Field struct {
	Name  string
	Value string
	Short bool // hint: render side-by-side with another field
}

// Message is a platform-neutral notification.
type Message struct {
	ChannelID string // empty uses the notifier's default channel
	Text      string // plain fallback text
	Title     string
	Body      string
	Color     string // sidebar color hint, e.g. "#52c41a"
	Fields    []Field
}

// Notifier delivers messages to one destination.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// Multi fans a message out to every notifier. All notifiers are tried;
// their errors are joined.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, msg Message) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
