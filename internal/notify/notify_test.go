package notify

import (
	"context"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/go-faster/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/user"
)

var sentAt = time.Date(2024, time.January, 15, 10, 30, 0, 0, time.UTC)

const wantPayload = `{
	"recipients": ["admin-1", "admin-2"],
	"title": "New Order",
	"body": "Order #1 - 145.00",
	"sent_at": "2024-01-15T10:30:00Z"
}`

func testMessage() Message {
	return Message{
		Recipients: []string{"admin-1", "admin-2"},
		Title:      "New Order",
		Body:       "Order #1 - 145.00",
		SentAt:     sentAt,
	}
}

// --- Mock implementations ---

type mockUsers struct {
	admins []string
	err    error
}

func (m *mockUsers) GetByID(context.Context, string) (*user.User, error) { return nil, user.ErrNotFound }
func (m *mockUsers) GetByEmail(context.Context, string) (*user.User, error) {
	return nil, user.ErrNotFound
}

func (m *mockUsers) GetByExternalID(context.Context, string) (*user.User, error) {
	return nil, user.ErrNotFound
}
func (m *mockUsers) Create(context.Context, *user.User) error { return nil }

func (m *mockUsers) ListIDsByRole(_ context.Context, role user.Role) ([]string, error) {
	if role != user.RoleAdmin {
		return nil, nil
	}
	return m.admins, m.err
}

type recordingPublisher struct {
	msgs []Message
	err  error
}

func (p *recordingPublisher) Publish(_ context.Context, m Message) error {
	p.msgs = append(p.msgs, m)
	return p.err
}

type fakeChannel struct {
	exchange, key string
	msg           amqp.Publishing
	err           error
}

func (c *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	c.exchange, c.key, c.msg = exchange, key, msg
	return c.err
}

// --- Tests ---

func TestMessageBytes(t *testing.T) {
	assert.JSONEq(t, wantPayload, string(testMessage().Bytes()))
}

func TestAdminNotifier(t *testing.T) {
	t.Run("addresses admins", func(t *testing.T) {
		pub := &recordingPublisher{}
		n := NewAdminNotifier(&mockUsers{admins: []string{"admin-1", "admin-2"}}, pub)
		n.now = func() time.Time { return sentAt }

		require.NoError(t, n.Notify(context.Background(), "New Order", "Order #1 - 145.00"))
		require.Len(t, pub.msgs, 1)
		assert.Equal(t, testMessage(), pub.msgs[0])
	})

	t.Run("no admins", func(t *testing.T) {
		pub := &recordingPublisher{}
		n := NewAdminNotifier(&mockUsers{}, pub)

		err := n.Notify(context.Background(), "t", "b")
		assert.ErrorIs(t, err, ErrNoRecipients)
		assert.Empty(t, pub.msgs)
	})

	t.Run("user lookup fails", func(t *testing.T) {
		dbErr := errors.New("db down")
		n := NewAdminNotifier(&mockUsers{err: dbErr}, &recordingPublisher{})
		assert.ErrorIs(t, n.Notify(context.Background(), "t", "b"), dbErr)
	})
}

func TestFanout(t *testing.T) {
	errA := errors.New("a failed")
	errC := errors.New("c failed")
	a := &recordingPublisher{err: errA}
	b := &recordingPublisher{}
	c := &recordingPublisher{err: errC}

	err := Fanout{a, b, c}.Publish(context.Background(), testMessage())
	require.Error(t, err)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errC)
	for _, p := range []*recordingPublisher{a, b, c} {
		assert.Len(t, p.msgs, 1, "every publisher is attempted")
	}

	assert.NoError(t, Fanout{b}.Publish(context.Background(), testMessage()))
}

func TestRabbitPublisher(t *testing.T) {
	ch := &fakeChannel{}
	pub := NewRabbitPublisher(ch, "storefront")

	require.NoError(t, pub.Publish(context.Background(), testMessage()))
	assert.Equal(t, "storefront", ch.exchange)
	assert.Equal(t, AdminRoutingKey, ch.key)
	assert.Equal(t, "application/json", ch.msg.ContentType)
	assert.Equal(t, amqp.Persistent, ch.msg.DeliveryMode)
	assert.JSONEq(t, wantPayload, string(ch.msg.Body))

	ch.err = amqp.ErrClosed
	assert.ErrorIs(t, pub.Publish(context.Background(), testMessage()), amqp.ErrClosed)
}

func TestKafkaPublisher(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		producer := mocks.NewSyncProducer(t, nil)
		producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
			if !assert.JSONEq(t, wantPayload, string(val)) {
				return errors.New("unexpected payload")
			}
			return nil
		})

		pub := NewKafkaPublisher(producer, "admin-notifications")
		require.NoError(t, pub.Publish(context.Background(), testMessage()))
		require.NoError(t, producer.Close())
	})

	t.Run("failure", func(t *testing.T) {
		producer := mocks.NewSyncProducer(t, nil)
		producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

		pub := NewKafkaPublisher(producer, "admin-notifications")
		err := pub.Publish(context.Background(), testMessage())
		assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
		require.NoError(t, producer.Close())
	})
}
