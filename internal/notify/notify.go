// Package notify delivers best-effort admin notifications over message
// brokers.
package notify

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.uber.org/multierr"

	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/user"
)

// ErrNoRecipients is returned when there is nobody to notify.
var ErrNoRecipients = errors.New("no notification recipients")

// Message is a notification addressed to a set of users.
type Message struct {
	Recipients []string
	Title      string
	Body       string
	SentAt     time.Time
}

// Encode writes m as a JSON object.
func (m Message) Encode(e *jx.Encoder) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("recipients", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, r := range m.Recipients {
					e.Str(r)
				}
			})
		})
		e.Field("title", func(e *jx.Encoder) { e.Str(m.Title) })
		e.Field("body", func(e *jx.Encoder) { e.Str(m.Body) })
		e.Field("sent_at", func(e *jx.Encoder) { e.Str(m.SentAt.UTC().Format(time.RFC3339)) })
	})
}

// Bytes returns the JSON encoding of m.
func (m Message) Bytes() []byte {
	var e jx.Encoder
	m.Encode(&e)
	return e.Bytes()
}

// Publisher hands a message to a transport.
type Publisher interface {
	Publish(ctx context.Context, m Message) error
}

// Fanout publishes to every publisher and combines their errors.
type Fanout []Publisher

// Publish implements Publisher.
func (f Fanout) Publish(ctx context.Context, m Message) error {
	var err error
	for _, p := range f {
		err = multierr.Append(err, p.Publish(ctx, m))
	}
	return err
}

var _ order.Notifier = (*AdminNotifier)(nil)

// AdminNotifier addresses notifications to every admin user.
type AdminNotifier struct {
	users user.Repository
	pub   Publisher
	now   func() time.Time
}

// NewAdminNotifier creates an AdminNotifier.
func NewAdminNotifier(users user.Repository, pub Publisher) *AdminNotifier {
	return &AdminNotifier{users: users, pub: pub, now: time.Now}
}

// Notify implements order.Notifier.
func (n *AdminNotifier) Notify(ctx context.Context, title, body string) error {
	ids, err := n.users.ListIDsByRole(ctx, user.RoleAdmin)
	if err != nil {
		return errors.Wrap(err, "list admins")
	}
	if len(ids) == 0 {
		return ErrNoRecipients
	}
	return n.pub.Publish(ctx, Message{
		Recipients: ids,
		Title:      title,
		Body:       body,
		SentAt:     n.now(),
	})
}
