package notify

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/DrFlowerkick/fk-tournament-planer-sub001/internal/logger"
)

var (
	// ErrRegistryClosed is returned by Subscribe after the last handle
	// was closed.
	ErrRegistryClosed = errors.New("notification registry is closed")

	// ErrNilTopicID rejects topics addressing the nil uuid.
	ErrNilTopicID = errors.New("topic id must not be nil")

	// ErrInvalidBufferSize rejects non-positive buffer sizes.
	ErrInvalidBufferSize = errors.New("buffer size must be positive")
)

// DefaultBufferSize is the per-subscriber notice buffer. A subscriber that
// falls further behind starts losing notices.
const DefaultBufferSize = 128

// Option configures the broker behind New.
type Option func(*broker) error

// WithBufferSize sets the per-subscriber channel buffer.
func WithBufferSize(size int) Option {
	return func(b *broker) error {
		if size <= 0 {
			return ErrInvalidBufferSize
		}
		b.bufferSize = size
		return nil
	}
}

// WithObserver attaches an instrumentation observer.
func WithObserver(o Observer) Option {
	return func(b *broker) error {
		b.observer = o
		return nil
	}
}

// broker is the shared fan-out state behind all handles. Topics are created
// lazily on first subscribe and reclaimed when their last subscriber leaves,
// so publishing to an unwatched topic costs nothing.
type broker struct {
	mu         sync.Mutex
	topics     map[Topic]map[*Subscription]struct{}
	refs       int
	closed     bool
	bufferSize int
	observer   Observer
}

// Handle is a ref-counted reference to the broker. Clones share the broker;
// closing the last live handle shuts the broker down and ends every open
// subscription. Closing a non-final handle affects nothing else.
type Handle struct {
	b    *broker
	once sync.Once
}

var _ Registry = (*Handle)(nil)

// New creates a broker and returns its first handle.
func New(opts ...Option) (*Handle, error) {
	b := &broker{
		topics:     make(map[Topic]map[*Subscription]struct{}),
		refs:       1,
		bufferSize: DefaultBufferSize,
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}
	return &Handle{b: b}, nil
}

// Clone returns a new handle on the same broker.
func (h *Handle) Clone() *Handle {
	h.b.mu.Lock()
	defer h.b.mu.Unlock()
	if !h.b.closed {
		h.b.refs++
	}
	return &Handle{b: h.b}
}

// Close releases this handle. The last release shuts the broker down: all
// subscription channels close and later subscribes fail with
// ErrRegistryClosed. Close is idempotent per handle.
func (h *Handle) Close() {
	h.once.Do(func() {
		h.b.mu.Lock()
		defer h.b.mu.Unlock()
		if h.b.closed {
			return
		}
		h.b.refs--
		if h.b.refs > 0 {
			return
		}
		h.b.closed = true
		subs := 0
		for _, topicSubs := range h.b.topics {
			for sub := range topicSubs {
				sub.detached = true
				close(sub.ch)
				subs++
			}
		}
		h.b.topics = nil
		logger.Debugf("Notification broker shut down, %d subscriptions ended", subs)
	})
}

// Subscribe opens a subscription on the topic. The subscription sees only
// notices published after this call returns.
func (h *Handle) Subscribe(_ context.Context, topic Topic) (*Subscription, error) {
	if topic.ID == uuid.Nil {
		return nil, ErrNilTopicID
	}
	if _, err := ParseKind(string(topic.Kind)); err != nil {
		return nil, err
	}

	b := h.b
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrRegistryClosed
	}

	sub := &Subscription{
		topic: topic,
		ch:    make(chan Notice, b.bufferSize),
		b:     b,
	}
	topicSubs, ok := b.topics[topic]
	if !ok {
		topicSubs = make(map[*Subscription]struct{})
		b.topics[topic] = topicSubs
	}
	topicSubs[sub] = struct{}{}
	return sub, nil
}

// Publish fans the notice out. Sends never block: a subscriber whose buffer
// is full loses this notice, everyone else still receives it.
func (h *Handle) Publish(topic Topic, notice Notice) {
	b := h.b
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	if b.observer != nil {
		b.observer.NoticePublished(topic)
	}
	topicSubs, ok := b.topics[topic]
	if !ok {
		return
	}
	for sub := range topicSubs {
		select {
		case sub.ch <- notice:
			if b.observer != nil {
				b.observer.NoticeDelivered(topic)
			}
		default:
			if b.observer != nil {
				b.observer.NoticeDropped(topic)
			}
			logger.Warnf("Dropping notice for slow subscriber on topic %s", topic)
		}
	}
}

// Subscription is one subscriber's stream of notices for a single topic.
type Subscription struct {
	topic Topic
	ch    chan Notice
	b     *broker
	once  sync.Once

	// detached marks that the broker already closed the channel; guarded
	// by the broker mutex.
	detached bool
}

// C returns the notice channel. It closes when the subscription is closed
// or the broker shuts down.
func (s *Subscription) C() <-chan Notice {
	return s.ch
}

// Topic returns the subscribed topic.
func (s *Subscription) Topic() Topic {
	return s.topic
}

// Close unsubscribes. The topic is reclaimed once its last subscriber
// leaves. Close is idempotent.
func (s *Subscription) Close() {
	s.once.Do(func() {
		if s.b == nil {
			close(s.ch)
			return
		}
		s.b.mu.Lock()
		defer s.b.mu.Unlock()
		if s.detached || s.b.closed {
			return
		}
		topicSubs := s.b.topics[s.topic]
		delete(topicSubs, s)
		if len(topicSubs) == 0 {
			delete(s.b.topics, s.topic)
		}
		close(s.ch)
	})
}
