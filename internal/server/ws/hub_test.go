package ws

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/mirrorarb/internal/domain"
)

type chanBus struct {
	chans map[string]chan []byte
}

func (b *chanBus) Publish(_ context.Context, channel string, payload []byte) error {
	ch, ok := b.chans[channel]
	if !ok {
		return errors.New("unknown channel")
	}
	ch <- payload
	return nil
}

func (b *chanBus) Subscribe(_ context.Context, channel string) (<-chan []byte, error) {
	ch, ok := b.chans[channel]
	if !ok {
		return nil, errors.New("unknown channel")
	}
	return ch, nil
}

func TestHubRelaysBusEvents(t *testing.T) {
	t.Parallel()

	bus := &chanBus{chans: map[string]chan []byte{
		domain.ChannelArb:        make(chan []byte, 1),
		domain.ChannelSettlement: make(chan []byte, 1),
	}}
	hub := NewHub(bus, slog.New(slog.NewTextHandler(io.Discard, nil)), Config{Mode: "Server"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	_, first, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var status struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	if err := json.Unmarshal(first, &status); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if status.Type != "engine_status" || status.Payload["mode"] != "server" {
		t.Errorf("status = %+v", status)
	}

	if err := bus.Publish(ctx, domain.ChannelArb, []byte(`{"id":"opp-1"}`)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	kind, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if kind != websocket.TextMessage || string(msg) != `{"id":"opp-1"}` {
		t.Errorf("message = %d %s", kind, msg)
	}
}

func TestClientSubscriptions(t *testing.T) {
	t.Parallel()

	c := &client{subs: map[string]bool{domain.ChannelArb: true}}
	c.handleSubscription(subscribeMsg{Action: "subscribe", Channels: []string{domain.ChannelSettlement}})
	if !c.isSubscribed(domain.ChannelSettlement) {
		t.Error("subscribe did not add channel")
	}
	c.handleSubscription(subscribeMsg{Action: "unsubscribe", Channels: []string{domain.ChannelArb}})
	if c.isSubscribed(domain.ChannelArb) {
		t.Error("unsubscribe did not remove channel")
	}
}
