package providers

import (
	"context"

	"github.com/kceleski/agent-healthproassist-sub000/internal/domain/entities"
)

// SearchEventPublisher receives one event per finished search.
type SearchEventPublisher interface {
	PublishSearchEvent(ctx context.Context, event *entities.SearchEvent) error
}

// EventBus defines the interface for publishing and subscribing to search events
type EventBus interface {
	SearchEventPublisher

	// Subscribe subscribes to events on a channel
	Subscribe(ctx context.Context, channel string) (<-chan *entities.SearchEvent, error)

	// Unsubscribe unsubscribes from a channel
	Unsubscribe(ctx context.Context, channel string) error

	// Close closes the event bus and all subscriptions
	Close() error
}

// EventChannel constants for the search event stream
const (
	// EventChannelSearchCompleted carries every finished search
	EventChannelSearchCompleted = "search:completed"

	// EventChannelRolePrefix is the prefix for per-role channels
	EventChannelRolePrefix = "search:role:"
)

// GetRoleChannel returns the channel name for a caller role
func GetRoleChannel(role string) string {
	return EventChannelRolePrefix + role
}
