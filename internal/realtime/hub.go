// Package realtime pushes ingested pings to websocket subscribers, optionally
// fanned out across instances through Redis pub/sub.
package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"bus_tracker/internal/metrics"
	"bus_tracker/internal/models"
)

const EventLocationUpdate = "location_update"

// LocationEvent is the payload sent to subscribers for every stored ping.
type LocationEvent struct {
	Type       string          `json:"type"`
	BusID      uint            `json:"busId"`
	BusCode    string          `json:"busCode"`
	BusNumber  string          `json:"busNumber"`
	RouteID    uint            `json:"routeId"`
	OperatorID *uint           `json:"operatorId,omitempty"`
	Location   models.GeoPoint `json:"location"`
	Speed      float64         `json:"speed"`
	Heading    float64         `json:"heading"`
	Accuracy   *float64        `json:"accuracy,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// NewLocationEvent builds the event for a stored ping of bus.
func NewLocationEvent(loc *models.Location, bus *models.Bus) LocationEvent {
	return LocationEvent{
		Type:       EventLocationUpdate,
		BusID:      bus.ID,
		BusCode:    bus.BusCode,
		BusNumber:  bus.BusNumber,
		RouteID:    bus.RouteID,
		OperatorID: bus.OperatorID,
		Location:   loc.Point,
		Speed:      loc.Speed,
		Heading:    loc.Heading,
		Accuracy:   loc.Accuracy,
		Timestamp:  loc.Timestamp,
	}
}

// Filter selects the events a subscriber receives. Nil fields match everything.
type Filter struct {
	OperatorID *uint
	BusID      *uint
}

func (f Filter) Matches(ev LocationEvent) bool {
	if f.BusID != nil && *f.BusID != ev.BusID {
		return false
	}
	if f.OperatorID != nil && (ev.OperatorID == nil || *ev.OperatorID != *f.OperatorID) {
		return false
	}
	return true
}

// Hub tracks subscribers and delivers events to those whose filter matches.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	log     logrus.FieldLogger
	metrics *metrics.Metrics
}

func NewHub(log logrus.FieldLogger, m *metrics.Metrics) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		log:     log,
		metrics: m,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	h.metrics.ClientConnected()
	h.log.WithFields(logrus.Fields{
		"user_id": c.userID,
		"clients": n,
	}).Info("subscriber registered")
}

// Unregister removes c and closes its send queue. Safe to call twice.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()

	if ok {
		h.metrics.ClientDisconnected()
		h.log.WithField("user_id", c.userID).Info("subscriber unregistered")
	}
}

// Len returns the number of connected subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast delivers ev to every matching subscriber. Subscribers whose queue
// is full are dropped.
func (h *Hub) Broadcast(ev LocationEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.log.WithError(err).Error("failed to encode location event")
		return
	}

	var slow []*Client
	h.mu.RLock()
	for c := range h.clients {
		if !c.filter.Matches(ev) {
			continue
		}
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.WithField("user_id", c.userID).Warn("dropping slow subscriber")
		h.Unregister(c)
	}
}

// PublishLocation delivers a stored ping to local subscribers.
func (h *Hub) PublishLocation(_ context.Context, loc *models.Location, bus *models.Bus) {
	h.Broadcast(NewLocationEvent(loc, bus))
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		h.Unregister(c)
	}
}
