package websocket

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"

	"github.com/cx-tal-miterani/flight-surety/internal/ledger"
)

// allFlights is the subscription key for clients that want every event.
const allFlights = ""

// Message is the JSON frame sent to subscribers for one ledger event.
type Message struct {
	Type      ledger.EventType  `json:"type"`
	Seq       uint64            `json:"seq"`
	Flight    *ledger.FlightKey `json:"flight,omitempty"`
	Address   string            `json:"address,omitempty"`
	Index     *uint8            `json:"index,omitempty"`
	Status    *uint8            `json:"status,omitempty"`
	Amount    string            `json:"amount,omitempty"`
	Timestamp int64             `json:"timestamp"`
}

func messageFrom(evt ledger.Event) *Message {
	msg := &Message{
		Type:      evt.Type,
		Seq:       evt.Seq,
		Address:   evt.Address.String(),
		Timestamp: evt.Timestamp.UnixMilli(),
	}
	if evt.HasFlight() {
		key := evt.Flight
		msg.Flight = &key
	}
	switch evt.Type {
	case ledger.EventOracleRequest, ledger.EventOracleReport:
		idx := evt.Index
		msg.Index = &idx
	}
	switch evt.Type {
	case ledger.EventOracleReport, ledger.EventFlightStatusInfo:
		status := uint8(evt.Status)
		msg.Status = &status
	}
	if evt.Amount != nil {
		msg.Amount = evt.Amount.Dec()
	}
	return msg
}

// Hub fans ledger events out to websocket clients, per flight.
type Hub struct {
	clients    map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
	logger     *slog.Logger
}

// NewHub creates a hub. Call Run to start it.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, 256),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run is the hub's main loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for key, clients := range h.clients {
				for client := range clients {
					close(client.send)
				}
				delete(h.clients, key)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.topic] == nil {
				h.clients[client.topic] = make(map[*Client]bool)
			}
			h.clients[client.topic][client] = true
			h.logger.Debug(
				"client subscribed",
				"component", "websocket",
				"topic", client.topic,
				"clients", len(h.clients[client.topic]),
			)
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.topic]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.send)
					if len(clients) == 0 {
						delete(h.clients, client.topic)
					}
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			data, err := json.Marshal(msg)
			if err != nil {
				h.logger.Error("failed to marshal message", "component", "websocket", "error", err)
				continue
			}
			topics := []string{allFlights}
			if msg.Flight != nil {
				topics = append(topics, msg.Flight.String())
			}
			h.mu.Lock()
			for _, topic := range topics {
				for client := range h.clients[topic] {
					select {
					case client.send <- data:
					default:
						// slow consumer
						delete(h.clients[topic], client)
						close(client.send)
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// Stop ends Run and closes every client's send queue.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Publish implements ledger.EventSink. It drops events once the hub has
// stopped.
func (h *Hub) Publish(ctx context.Context, events []ledger.Event) {
	for _, evt := range events {
		select {
		case h.broadcast <- messageFrom(evt):
		case <-h.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// ClientCount returns the number of clients watching a flight.
func (h *Hub) ClientCount(key ledger.FlightKey) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[key.String()])
}

func (h *Hub) subscribe(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) unsubscribe(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
