package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/screwyforcepush/daily-shit-list/gateway"
	"github.com/screwyforcepush/daily-shit-list/storage"
)

func TestBrokerNotifyDoesNotBlock(t *testing.T) {
	broker := NewBroker()
	ch := broker.Subscribe()
	defer broker.Unsubscribe(ch)

	// More notifications than the subscriber buffer; must not deadlock.
	for i := 0; i < 10; i++ {
		broker.Notify()
	}
	select {
	case <-ch:
	default:
		t.Fatal("expected a pending notification")
	}
	select {
	case <-ch:
		t.Fatal("notifications should coalesce into a single signal")
	default:
	}
}

func TestBrokerUnsubscribeStopsDelivery(t *testing.T) {
	broker := NewBroker()
	ch := broker.Subscribe()
	broker.Unsubscribe(ch)
	broker.Notify()
	select {
	case <-ch:
		t.Fatal("unsubscribed channel must not receive signals")
	default:
	}
}

func TestStreamViewSendsInitialState(t *testing.T) {
	mem := storage.NewMemory()
	gw := gateway.New(mem, mem, gateway.SweepPolicy{}, log.New())
	broker := NewBroker()

	e := echo.New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // one event, then the handler returns

	req := httptest.NewRequest(http.MethodGet, "/api/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := streamView(gw, broker)(c); err != nil {
		t.Fatalf("stream handler: %v", err)
	}

	if ct := rec.Header().Get(echo.HeaderContentType); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
	body := rec.Body.String()
	if !strings.HasPrefix(body, "data: ") || !strings.Contains(body, `"summary"`) {
		t.Fatalf("unexpected stream payload %q", body)
	}
}

func TestSubscribeUpdatesBridgesRedisMessages(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	broker := NewBroker()
	ch := broker.Subscribe()
	defer broker.Unsubscribe(ch)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go SubscribeUpdates(ctx, client, "shitlist:updates", broker, log.New())

	// The subscription is established asynchronously; retry until the
	// message lands or the deadline passes.
	deadline := time.After(2 * time.Second)
	for {
		if err := client.Publish(ctx, "shitlist:updates", "{}").Err(); err != nil {
			t.Fatalf("publish: %v", err)
		}
		select {
		case <-ch:
			return
		case <-deadline:
			t.Fatal("expected broker notification from redis message")
		case <-time.After(50 * time.Millisecond):
		}
	}
}
