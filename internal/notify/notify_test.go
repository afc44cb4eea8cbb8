package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/me/timetable/internal/logging"
	"github.com/me/timetable/pkg/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recorder struct {
	mu     sync.Mutex
	events []model.Event
	err    error
	got    chan struct{}
}

func newRecorder(err error) *recorder {
	return &recorder{err: err, got: make(chan struct{}, 16)}
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) Notify(_ context.Context, ev model.Event) error {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	r.got <- struct{}{}
	return r.err
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestDispatcher_DeliversToAllNotifiers(t *testing.T) {
	failing := newRecorder(errors.New("down"))
	ok := newRecorder(nil)
	d := NewDispatcher(DefaultConfig(), discardLogger(), failing, ok)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Start(ctx)

	d.Dispatch(model.Event{Kind: model.EventGridPublished, ClassGroup: "Grade5A"})
	waitFor(t, failing.got)
	waitFor(t, ok.got)

	ok.mu.Lock()
	ev := ok.events[0]
	ok.mu.Unlock()
	if !strings.HasPrefix(ev.ID, "evt_") || ev.OccurredAt.IsZero() || ev.ClassGroup != "Grade5A" {
		t.Errorf("event = %+v", ev)
	}
}

func TestDispatcher_StopDrainsQueue(t *testing.T) {
	rec := newRecorder(nil)
	d := NewDispatcher(Config{QueueSize: 4}, discardLogger(), rec)
	for i := 0; i < 3; i++ {
		d.Dispatch(model.Event{Kind: model.EventGridPublished})
	}

	done := make(chan struct{})
	go func() {
		d.Start(context.Background())
		close(done)
	}()
	d.Stop()
	<-done

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.events) != 3 {
		t.Errorf("delivered %d events, want 3", len(rec.events))
	}
}

func TestDispatcher_StopWithoutStart(t *testing.T) {
	rec := newRecorder(nil)
	d := NewDispatcher(DefaultConfig(), discardLogger(), rec)
	d.Dispatch(model.Event{Kind: model.EventGridPublished})

	stopped := make(chan struct{})
	go func() {
		d.Stop()
		d.Stop()
		close(stopped)
	}()
	waitFor(t, stopped)

	// A later Start sees the stop, delivers what is queued and returns.
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start after Stop: %v", err)
	}
	if len(rec.events) != 1 {
		t.Errorf("delivered %d events, want 1", len(rec.events))
	}
	if err := d.Start(context.Background()); err == nil {
		t.Error("second Start should fail")
	}
}

func TestDispatcher_FullQueueDrops(t *testing.T) {
	d := NewDispatcher(Config{QueueSize: 1}, discardLogger())
	d.Dispatch(model.Event{})
	d.Dispatch(model.Event{}) // must not block
	if len(d.queue) != 1 {
		t.Errorf("queue length = %d, want 1", len(d.queue))
	}
}

func TestBroker_FanOutAndUnsubscribe(t *testing.T) {
	b := NewBroker()
	a, cancelA := b.Subscribe(1)
	c, cancelC := b.Subscribe(1)
	defer cancelC()

	b.Notify(context.Background(), model.Event{ID: "1"})
	if ev := <-a; ev.ID != "1" {
		t.Errorf("a got %+v", ev)
	}
	if ev := <-c; ev.ID != "1" {
		t.Errorf("c got %+v", ev)
	}

	cancelA()
	cancelA() // idempotent
	if _, open := <-a; open {
		t.Error("channel still open after cancel")
	}

	// A full subscriber does not block others.
	b.Notify(context.Background(), model.Event{ID: "2"})
	b.Notify(context.Background(), model.Event{ID: "3"})
	if ev := <-c; ev.ID != "2" {
		t.Errorf("c got %+v, want 2", ev)
	}
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(logging.NewLoggerWithWriter(logging.LevelAudit, "text", &buf))
	n.Notify(context.Background(), model.Event{ID: "evt_1", Kind: model.EventGridUnpublished, ClassGroup: "Grade5B"})
	out := buf.String()
	if !strings.Contains(out, "level=AUDIT") || !strings.Contains(out, "grid.unpublished") || !strings.Contains(out, "class_group=Grade5B") {
		t.Errorf("log output: %s", out)
	}
}

func TestWebhookNotifier(t *testing.T) {
	var got model.Event
	var kind string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		kind = r.Header.Get("X-Event-Kind")
		json.NewDecoder(r.Body).Decode(&got)
		if got.ClassGroup == "bad" {
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, 100, 1)
	if err := n.Notify(context.Background(), model.Event{ID: "evt_1", Kind: model.EventGridPublished, ClassGroup: "Grade5A"}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if got.ID != "evt_1" || kind != string(model.EventGridPublished) {
		t.Errorf("server got %+v kind %q", got, kind)
	}
	if err := n.Notify(context.Background(), model.Event{ClassGroup: "bad"}); err == nil {
		t.Error("expected error on 502")
	}
}

func TestWebhookNotifier_RateLimitHonoursContext(t *testing.T) {
	n := NewWebhookNotifier("http://127.0.0.1:1", 0.001, 1)
	n.limiter.Allow() // use up the burst
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := n.Notify(ctx, model.Event{}); err == nil || !strings.Contains(err.Error(), "rate limit") {
		t.Errorf("error = %v, want rate limit", err)
	}
}

func TestRedisNotifier_Unreachable(t *testing.T) {
	n := NewRedisNotifier("127.0.0.1:1", "", 0, "timetable.events")
	defer n.Close()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := n.Notify(ctx, model.Event{ID: "evt_1"}); err == nil {
		t.Error("expected error from unreachable redis")
	}
	if n.Name() != "redis" {
		t.Errorf("Name = %q", n.Name())
	}
}
