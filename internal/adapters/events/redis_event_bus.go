package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/kceleski/agent-healthproassist-sub000/internal/domain/entities"
	"github.com/kceleski/agent-healthproassist-sub000/internal/domain/providers"
	redisclient "github.com/kceleski/agent-healthproassist-sub000/internal/infrastructure/clients/redis"
)

// subscriberBuffer bounds each subscriber; events for a full subscriber are dropped.
const subscriberBuffer = 100

// RedisEventBus implements the EventBus interface using Redis Pub/Sub
type RedisEventBus struct {
	client        *redisclient.Client
	subscriptions map[string]*redis.PubSub
	subscribers   map[string]map[chan *entities.SearchEvent]struct{}
	mu            sync.RWMutex
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewRedisEventBus creates a new Redis-based event bus
func NewRedisEventBus(client *redisclient.Client) providers.EventBus {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisEventBus{
		client:        client,
		subscriptions: make(map[string]*redis.PubSub),
		subscribers:   make(map[string]map[chan *entities.SearchEvent]struct{}),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// PublishSearchEvent publishes event on the completed-search channel and, when the
// event carries a role, on that role's channel.
func (b *RedisEventBus) PublishSearchEvent(ctx context.Context, event *entities.SearchEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	channels := []string{providers.EventChannelSearchCompleted}
	if event.Role != "" {
		channels = append(channels, providers.GetRoleChannel(event.Role))
	}

	pipe := b.client.Client().Pipeline()
	for _, channel := range channels {
		pipe.Publish(ctx, channel, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	log.Debug().Str("event_id", event.ID).Strs("channels", channels).Msg("Published search event")
	return nil
}

// Subscribe subscribes to events on a channel. The returned channel is closed when
// ctx ends, on Unsubscribe, or on Close.
func (b *RedisEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.SearchEvent, error) {
	if err := b.ctx.Err(); err != nil {
		return nil, errors.New("event bus closed")
	}

	b.mu.Lock()
	if _, exists := b.subscriptions[channel]; !exists {
		pubsub := b.client.Client().Subscribe(b.ctx, channel)
		b.subscriptions[channel] = pubsub
		go b.receiveMessages(channel, pubsub)
	}
	if b.subscribers[channel] == nil {
		b.subscribers[channel] = make(map[chan *entities.SearchEvent]struct{})
	}
	eventChan := make(chan *entities.SearchEvent, subscriberBuffer)
	b.subscribers[channel][eventChan] = struct{}{}
	count := len(b.subscribers[channel])
	b.mu.Unlock()

	log.Debug().Str("channel", channel).Int("subscribers", count).Msg("Subscribed to channel")

	go func() {
		select {
		case <-ctx.Done():
		case <-b.ctx.Done():
		}
		b.removeSubscriber(channel, eventChan)
	}()

	return eventChan, nil
}

// receiveMessages fans Redis messages out to local subscribers
func (b *RedisEventBus) receiveMessages(channel string, pubsub *redis.PubSub) {
	defer func() {
		if err := b.cleanupChannel(channel); err != nil {
			log.Warn().Err(err).Str("channel", channel).Msg("Failed to clean up channel")
		}
	}()

	ch := pubsub.Channel()
	for {
		select {
		case <-b.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			b.broadcast(channel, msg.Payload)
		}
	}
}

func (b *RedisEventBus) broadcast(channel, payload string) {
	var event entities.SearchEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		log.Warn().Err(err).Str("channel", channel).Msg("Failed to unmarshal search event")
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for subscriber := range b.subscribers[channel] {
		e := event
		select {
		case subscriber <- &e:
		default:
			log.Warn().Str("channel", channel).Str("event_id", event.ID).Msg("Subscriber channel full, dropping event")
		}
	}
}

func (b *RedisEventBus) removeSubscriber(channel string, eventChan chan *entities.SearchEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subscribers, exists := b.subscribers[channel]
	if !exists {
		return
	}
	if _, ok := subscribers[eventChan]; !ok {
		return
	}
	delete(subscribers, eventChan)
	close(eventChan)

	if len(subscribers) == 0 {
		_ = b.closeChannelLocked(channel)
	}
}

func (b *RedisEventBus) cleanupChannel(channel string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for subscriber := range b.subscribers[channel] {
		close(subscriber)
	}
	return b.closeChannelLocked(channel)
}

// closeChannelLocked drops the channel's subscriber set and Redis subscription. b.mu must be held.
func (b *RedisEventBus) closeChannelLocked(channel string) error {
	delete(b.subscribers, channel)
	pubsub, ok := b.subscriptions[channel]
	if !ok {
		return nil
	}
	delete(b.subscriptions, channel)
	if err := pubsub.Close(); err != nil {
		return fmt.Errorf("failed to close subscription %s: %w", channel, err)
	}
	log.Debug().Str("channel", channel).Msg("Closed subscription")
	return nil
}

// Unsubscribe unsubscribes from a channel
func (b *RedisEventBus) Unsubscribe(ctx context.Context, channel string) error {
	return b.cleanupChannel(channel)
}

// Close closes the event bus and all subscriptions
func (b *RedisEventBus) Close() error {
	b.cancel()

	b.mu.RLock()
	channels := make([]string, 0, len(b.subscriptions))
	for channel := range b.subscriptions {
		channels = append(channels, channel)
	}
	b.mu.RUnlock()

	var errs []error
	for _, channel := range channels {
		if err := b.cleanupChannel(channel); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
