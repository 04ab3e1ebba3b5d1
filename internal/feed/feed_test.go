package feed

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"solarfarm-cloud/internal/farm/application"
	farm "solarfarm-cloud/internal/farm/domain"
	"solarfarm-cloud/internal/farm/infrastructure/memory"
	"solarfarm-cloud/internal/farm/simrand"
)

var testNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func testPublisher(t *testing.T, sectors, perSector int) (*Publisher, *Broker) {
	t.Helper()
	var ss []farm.Sector
	var panels []farm.Panel
	n := 1
	for i := 0; i < sectors; i++ {
		sector := farm.Sector{ID: farm.SectorCode(i/10, i%10), Row: i / 10, Col: i % 10}
		ss = append(ss, sector)
		for j := 0; j < perSector; j++ {
			p := farm.Panel{
				ID:          fmt.Sprintf("PNL-%04d", n),
				SectorID:    sector.ID,
				Capacity:    farm.PanelCapacityWatts,
				Status:      farm.StatusActive,
				DustLevel:   120,
				LastCleaned: testNow,
			}
			p.SetEfficiency(93)
			panels = append(panels, p)
			n++
		}
	}
	store, err := memory.NewStore(ss, panels)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	analytics, err := application.NewAnalyticsService(store, nil, application.AnalyticsOptions{},
		application.ClockFunc(func() time.Time { return testNow }))
	if err != nil {
		t.Fatalf("new analytics: %v", err)
	}
	broker := NewBroker(2)
	pub, err := NewPublisher(analytics, NewComposer(simrand.New(7)), broker, nil)
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	return pub, broker
}

func TestBrokerDropsWhenBufferFull(t *testing.T) {
	b := NewBroker(1)
	ch := b.Subscribe()
	if b.Len() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", b.Len())
	}
	if dropped := b.Broadcast([]byte("a")); dropped != 0 {
		t.Fatalf("expected no drop, got %d", dropped)
	}
	if dropped := b.Broadcast([]byte("b")); dropped != 1 {
		t.Fatalf("expected 1 drop, got %d", dropped)
	}
	if got := string(<-ch); got != "a" {
		t.Fatalf("expected oldest payload a, got %s", got)
	}
	b.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Fatalf("expected channel closed after unsubscribe")
	}
	b.Unsubscribe(ch)
	if b.Len() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", b.Len())
	}
}

func TestBrokerCloseRejectsSubscribers(t *testing.T) {
	b := NewBroker(0)
	ch := b.Subscribe()
	b.Close()
	if _, ok := <-ch; ok {
		t.Fatalf("expected channel closed by broker close")
	}
	if b.Subscribe() != nil {
		t.Fatalf("expected nil subscription after close")
	}
	b.Close()
}

func TestComposeShape(t *testing.T) {
	pub, _ := testPublisher(t, 12, 6)
	snap := pub.composer.Compose(pub.source.Overview())

	if len(snap.SectorSummaries) != 9 {
		t.Fatalf("expected 9 sector summaries, got %d", len(snap.SectorSummaries))
	}
	if snap.SectorSummaries[0].SectorID != "A1" || snap.SectorSummaries[0].Efficiency != 93 {
		t.Fatalf("unexpected first summary: %+v", snap.SectorSummaries[0])
	}
	if len(snap.SamplePanels) != 10 {
		t.Fatalf("expected 10 sample panels, got %d", len(snap.SamplePanels))
	}
	for _, p := range snap.SamplePanels {
		if p.Current < 4.7 || p.Current > 5.3 {
			t.Fatalf("current out of range: %v", p.Current)
		}
		if p.Temperature < 29 || p.Temperature > 35 {
			t.Fatalf("temperature out of range: %v", p.Temperature)
		}
	}
	if snap.Weather.Conditions != "clear" {
		t.Fatalf("expected clear weather, got %s", snap.Weather.Conditions)
	}
	if !snap.Timestamp.Equal(testNow) {
		t.Fatalf("expected timestamp %v, got %v", testNow, snap.Timestamp)
	}
	if snap.FarmStatistics.PanelsNeedingCleaning != 0 {
		t.Fatalf("expected no panels needing cleaning, got %d", snap.FarmStatistics.PanelsNeedingCleaning)
	}
}

func TestComposeSmallFarm(t *testing.T) {
	pub, _ := testPublisher(t, 2, 3)
	snap := pub.composer.Compose(pub.source.Overview())
	if len(snap.SectorSummaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(snap.SectorSummaries))
	}
	if len(snap.SamplePanels) != 6 {
		t.Fatalf("expected 6 sample panels, got %d", len(snap.SamplePanels))
	}
}

func TestPublishSkipsWithoutSubscribers(t *testing.T) {
	pub, broker := testPublisher(t, 2, 2)
	pub.Publish(context.Background(), testNow)
	ch := broker.Subscribe()
	defer broker.Unsubscribe(ch)
	pub.Publish(context.Background(), testNow)
	select {
	case payload := <-ch:
		var snap Snapshot
		if err := json.Unmarshal(payload, &snap); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(snap.SectorSummaries) != 2 {
			t.Fatalf("expected 2 summaries, got %d", len(snap.SectorSummaries))
		}
	default:
		t.Fatalf("expected a published snapshot")
	}
}

func TestSessionLifecycle(t *testing.T) {
	pub, broker := testPublisher(t, 1, 1)
	sent := make(chan []byte, 4)
	session := pub.NewSession(func(b []byte) error {
		sent <- b
		return nil
	})
	if session.State() != StateIdle {
		t.Fatalf("expected idle, got %s", session.State())
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- session.Run(ctx) }()

	select {
	case <-sent:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected initial snapshot")
	}
	if session.State() != StateStreaming {
		t.Fatalf("expected streaming, got %s", session.State())
	}
	broker.Broadcast([]byte(`{"tick":1}`))
	select {
	case got := <-sent:
		if string(got) != `{"tick":1}` {
			t.Fatalf("unexpected relay: %s", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected relayed snapshot")
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("expected clean stop, got %v", err)
	}
	if session.State() != StateClosed {
		t.Fatalf("expected closed, got %s", session.State())
	}
	if broker.Len() != 0 {
		t.Fatalf("expected unsubscribed, got %d", broker.Len())
	}
	if err := session.Run(context.Background()); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
}

func TestSessionStopsOnSendError(t *testing.T) {
	pub, broker := testPublisher(t, 1, 1)
	boom := errors.New("gone")
	session := pub.NewSession(func([]byte) error { return boom })
	if err := session.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected send error, got %v", err)
	}
	if session.State() != StateClosed || broker.Len() != 0 {
		t.Fatalf("expected closed and unsubscribed, got %s/%d", session.State(), broker.Len())
	}
}

func TestStateString(t *testing.T) {
	if StateStreaming.String() != "streaming" || State(9).String() != "state(9)" {
		t.Fatalf("unexpected state names")
	}
}

func TestWebSocketReceivesInitialSnapshot(t *testing.T) {
	pub, broker := testPublisher(t, 3, 4)
	srv := httptest.NewServer(NewWebSocketHandler(pub, nil))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(snap.SectorSummaries) != 3 {
		t.Fatalf("expected 3 summaries, got %d", len(snap.SectorSummaries))
	}

	broker.Broadcast([]byte(`{"tick":2}`))
	_, payload, err = conn.ReadMessage()
	if err != nil {
		t.Fatalf("read broadcast: %v", err)
	}
	if string(payload) != `{"tick":2}` {
		t.Fatalf("unexpected broadcast payload: %s", payload)
	}
}

func TestWebSocketListenOnlyClientOutlivesPongWait(t *testing.T) {
	const pongWait = 500 * time.Millisecond
	pub, _ := testPublisher(t, 2, 2)
	srv := httptest.NewServer(NewWebSocketHandler(pub, nil, WithPongWait(pongWait)))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// the client never writes; pongs are answered by the default ping handler while reading
	messages := make(chan []byte, 8)
	readErr := make(chan error, 1)
	go func() {
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			messages <- payload
		}
	}()

	select {
	case <-messages:
	case err := <-readErr:
		t.Fatalf("read initial snapshot: %v", err)
	case <-time.After(3 * time.Second):
		t.Fatalf("expected initial snapshot")
	}

	time.Sleep(3 * pongWait)
	pub.Publish(context.Background(), time.Now())

	select {
	case payload := <-messages:
		var snap Snapshot
		if err := json.Unmarshal(payload, &snap); err != nil {
			t.Fatalf("decode: %v", err)
		}
	case err := <-readErr:
		t.Fatalf("expected connection to stay open past pong wait, got %v", err)
	case <-time.After(3 * time.Second):
		t.Fatalf("expected snapshot after idle period")
	}
}

func TestSSEFirstEvent(t *testing.T) {
	pub, _ := testPublisher(t, 2, 2)
	srv := httptest.NewServer(NewSSEHandler(pub, nil))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected event-stream, got %s", ct)
	}

	reader := bufio.NewReader(resp.Body)
	event, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read event line: %v", err)
	}
	if event != "event: snapshot\n" {
		t.Fatalf("unexpected event line: %q", event)
	}
	data, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read data line: %v", err)
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(data), "data: ")), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(snap.SamplePanels) != 4 {
		t.Fatalf("expected 4 sample panels, got %d", len(snap.SamplePanels))
	}
}
