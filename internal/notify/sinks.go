package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/me/timetable/internal/logging"
	"github.com/me/timetable/pkg/model"
)

// LogNotifier writes events to the audit log.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("component", "notify.log")}
}

func (n *LogNotifier) Name() string { return "log" }

func (n *LogNotifier) Notify(ctx context.Context, ev model.Event) error {
	n.logger.Log(ctx, logging.LevelAudit, string(ev.Kind),
		"event_id", ev.ID, "tenant", ev.TenantID, "term", ev.Term, "class_group", ev.ClassGroup)
	return nil
}

// Broker fans events out to in-process subscribers such as SSE streams.
// Slow subscribers miss events instead of blocking the dispatcher.
type Broker struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan model.Event
}

// NewBroker creates an empty Broker.
func NewBroker() *Broker {
	return &Broker{subs: map[int]chan model.Event{}}
}

func (b *Broker) Name() string { return "broker" }

// Subscribe returns a channel of events and a function that ends the subscription.
func (b *Broker) Subscribe(buffer int) (<-chan model.Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	ch := make(chan model.Event, buffer)
	b.subs[id] = ch
	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
}

// Notify implements Notifier.
func (b *Broker) Notify(_ context.Context, ev model.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	return nil
}

// RedisNotifier publishes events as JSON on a Redis channel.
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

// NewRedisNotifier creates a RedisNotifier on addr.
func NewRedisNotifier(addr, password string, db int, channel string) *RedisNotifier {
	return &RedisNotifier{
		client: redis.NewClient(&redis.Options{
			Addr:        addr,
			Password:    password,
			DB:          db,
			DialTimeout: 2 * time.Second,
		}),
		channel: channel,
	}
}

func (n *RedisNotifier) Name() string { return "redis" }

// Ping checks the connection.
func (n *RedisNotifier) Ping(ctx context.Context) error {
	if err := n.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

func (n *RedisNotifier) Notify(ctx context.Context, ev model.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return n.client.Publish(ctx, n.channel, data).Err()
}

// Close closes the Redis client.
func (n *RedisNotifier) Close() error {
	return n.client.Close()
}

// WebhookNotifier POSTs events as JSON to a URL, rate limited.
type WebhookNotifier struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
}

// NewWebhookNotifier creates a WebhookNotifier allowing perSecond requests
// with the given burst.
func NewWebhookNotifier(url string, perSecond float64, burst int) *WebhookNotifier {
	if burst < 1 {
		burst = 1
	}
	return &WebhookNotifier{
		url:     url,
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

func (n *WebhookNotifier) Name() string { return "webhook" }

func (n *WebhookNotifier) Notify(ctx context.Context, ev model.Event) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Kind", string(ev.Kind))

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", n.url, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}
