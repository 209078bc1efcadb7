package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cx-tal-miterani/flight-surety/internal/ledger"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

var testFlight = ledger.FlightKey{
	Airline:   "0x000000000000000000000000000000000000000a",
	Code:      "ND1309",
	Timestamp: 1_700_000_000_000,
}

func startHub(t *testing.T) (*Hub, chan struct{}) {
	t.Helper()
	hub := NewHub(nil)
	stopped := make(chan struct{})
	go func() {
		hub.Run()
		close(stopped)
	}()
	return hub, stopped
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func TestHub_StreamsFlightEvents(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub, stopped := startHub(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeFlight(w, r, testFlight)
	}))

	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.ClientCount(testFlight) == 1 }, time.Second, 10*time.Millisecond)

	other := testFlight
	other.Code = "ND1310"
	hub.Publish(context.Background(), []ledger.Event{
		{Type: ledger.EventFlightRegistered, Flight: other, Seq: 1, Timestamp: time.Now()},
		{Type: ledger.EventFlightStatusInfo, Flight: testFlight, Status: ledger.StatusLateAirline, Seq: 2, Timestamp: time.Now()},
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, ledger.EventFlightStatusInfo, msg.Type)
	assert.Equal(t, uint64(2), msg.Seq)
	require.NotNil(t, msg.Status)
	assert.Equal(t, uint8(20), *msg.Status)
	require.NotNil(t, msg.Flight)
	assert.Equal(t, testFlight, *msg.Flight)

	conn.Close()
	srv.Close()
	hub.Stop()
	<-stopped
}

func TestHub_AllTopicReceivesEverything(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub, stopped := startHub(t)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeAll))
	conn := dial(t, srv)
	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return len(hub.clients[allFlights]) == 1
	}, time.Second, 10*time.Millisecond)

	hub.Publish(context.Background(), []ledger.Event{
		{Type: ledger.EventAirlineFunded, Address: "0x000000000000000000000000000000000000000a", Amount: ledger.Units(10)},
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, ledger.EventAirlineFunded, msg.Type)
	assert.Equal(t, "10000000000000000000", msg.Amount)
	assert.Nil(t, msg.Flight)

	conn.Close()
	srv.Close()
	hub.Stop()
	<-stopped
}

func TestHub_PublishAfterStopDoesNotBlock(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub, stopped := startHub(t)
	hub.Stop()
	<-stopped

	events := make([]ledger.Event, 1000)
	for i := range events {
		events[i] = ledger.Event{Type: ledger.EventOracleRequest, Flight: testFlight}
	}
	done := make(chan struct{})
	go func() {
		hub.Publish(context.Background(), events)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked after stop")
	}
}

func TestMessageFrom(t *testing.T) {
	msg := messageFrom(ledger.Event{
		Type:    ledger.EventOracleRequest,
		Flight:  testFlight,
		Address: "0x0000000000000000000000000000000000000063",
		Index:   0,
	})
	require.NotNil(t, msg.Index)
	assert.Equal(t, uint8(0), *msg.Index)
	assert.Nil(t, msg.Status)
	assert.Empty(t, msg.Amount)
}
