package notify

import (
	"context"

	"github.com/google/uuid"
)

// Registry is the pub/sub surface the API and storage callers see.
type Registry interface {
	// Subscribe opens a stream of notices for one topic. The returned
	// subscription only sees notices published after the call.
	Subscribe(ctx context.Context, topic Topic) (*Subscription, error)

	// Publish fans a notice out to the topic's current subscribers.
	// Publishing to a topic without subscribers is a no-op.
	Publish(topic Topic, notice Notice)
}

// Observer receives per-notice callbacks for instrumentation. All methods
// are called synchronously under the broker lock and must not block.
type Observer interface {
	NoticePublished(topic Topic)
	NoticeDelivered(topic Topic)
	NoticeDropped(topic Topic)
}

// NopRegistry discards publishes and hands out subscriptions that never
// fire. Useful as a composition default and in tests.
type NopRegistry struct{}

var _ Registry = (*NopRegistry)(nil)

// Subscribe returns a subscription whose channel never receives.
func (*NopRegistry) Subscribe(_ context.Context, topic Topic) (*Subscription, error) {
	if topic.ID == uuid.Nil {
		return nil, ErrNilTopicID
	}
	return &Subscription{topic: topic, ch: make(chan Notice)}, nil
}

// Publish discards the notice.
func (*NopRegistry) Publish(Topic, Notice) {}
