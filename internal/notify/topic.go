// Package notify implements topic-addressed change notifications. Entities
// publish a notice after every successful save; subscribers listen per
// (kind, id) topic and decide themselves whether to refetch.
package notify

import (
	"fmt"

	"github.com/google/uuid"
)

// Kind names an entity family that can change.
type Kind string

// The topic kinds. Topics are opaque routing keys: subscribing to a kind
// whose entity is not persisted yet is legal and simply never fires.
const (
	KindAddress        Kind = "address"
	KindSportConfig    Kind = "sport-config"
	KindTournamentBase Kind = "tournament-base"
	KindStage          Kind = "stage"
)

// ParseKind validates a wire-level kind string.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindAddress, KindSportConfig, KindTournamentBase, KindStage:
		return k, nil
	default:
		return "", fmt.Errorf("unknown topic kind: %q", s)
	}
}

// Topic addresses one entity instance.
type Topic struct {
	Kind Kind
	ID   uuid.UUID
}

// NewTopic builds a validated topic. A nil id is rejected.
func NewTopic(kind Kind, id uuid.UUID) (Topic, error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return Topic{}, err
	}
	if id == uuid.Nil {
		return Topic{}, ErrNilTopicID
	}
	return Topic{Kind: kind, ID: id}, nil
}

// Path returns the SSE subscribe path for this topic.
func (t Topic) Path() string {
	return fmt.Sprintf("/api/cr/subscribe/%s/%s", t.Kind, t.ID)
}

func (t Topic) String() string {
	return fmt.Sprintf("%s/%s", t.Kind, t.ID)
}

// Notice tells subscribers that an entity reached a new version. It carries
// no payload; subscribers refetch if they care.
type Notice struct {
	Kind    Kind      `json:"kind"`
	ID      uuid.UUID `json:"id"`
	Version uint32    `json:"version"`
}

// Topic returns the topic this notice belongs to.
func (n Notice) Topic() Topic {
	return Topic{Kind: n.Kind, ID: n.ID}
}
