package realtime

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bus_tracker/internal/models"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func uintPtr(v uint) *uint { return &v }

func samplePing(busID uint, operatorID *uint) (*models.Location, *models.Bus) {
	bus := &models.Bus{ID: busID, BusCode: "BUS123456", BusNumber: "NB-0001", RouteID: 87, OperatorID: operatorID}
	loc := &models.Location{
		BusID:     busID,
		Point:     models.NewGeoPoint(7.0907, 79.9935),
		Speed:     45,
		Heading:   180,
		Timestamp: time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC),
	}
	return loc, bus
}

func receive(t *testing.T, c *Client) (LocationEvent, bool) {
	t.Helper()
	select {
	case payload := <-c.send:
		var ev LocationEvent
		require.NoError(t, json.Unmarshal(payload, &ev))
		return ev, true
	case <-time.After(200 * time.Millisecond):
		return LocationEvent{}, false
	}
}

func TestFilter_Matches(t *testing.T) {
	ev := LocationEvent{BusID: 1, OperatorID: uintPtr(3)}
	testCases := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"Everything", Filter{}, true},
		{"Same bus", Filter{BusID: uintPtr(1)}, true},
		{"Other bus", Filter{BusID: uintPtr(2)}, false},
		{"Same operator", Filter{OperatorID: uintPtr(3)}, true},
		{"Other operator", Filter{OperatorID: uintPtr(4)}, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.filter.Matches(ev))
		})
	}
	assert.False(t, Filter{OperatorID: uintPtr(3)}.Matches(LocationEvent{BusID: 1}), "unowned bus")
}

func TestHub_BroadcastRespectsFilters(t *testing.T) {
	hub := NewHub(quietLogger(), nil)
	all := NewClient(hub, nil, Filter{}, 1)
	ownFleet := NewClient(hub, nil, Filter{OperatorID: uintPtr(3)}, 2)
	otherBus := NewClient(hub, nil, Filter{BusID: uintPtr(2)}, 3)
	hub.Register(all)
	hub.Register(ownFleet)
	hub.Register(otherBus)
	require.Equal(t, 3, hub.Len())

	loc, bus := samplePing(1, uintPtr(3))
	hub.PublishLocation(context.Background(), loc, bus)

	ev, ok := receive(t, all)
	require.True(t, ok)
	assert.Equal(t, EventLocationUpdate, ev.Type)
	assert.Equal(t, [2]float64{79.9935, 7.0907}, ev.Location.Coordinates())
	_, ok = receive(t, ownFleet)
	assert.True(t, ok)
	_, ok = receive(t, otherBus)
	assert.False(t, ok)
}

func TestHub_DropsSlowSubscriber(t *testing.T) {
	hub := NewHub(quietLogger(), nil)
	c := NewClient(hub, nil, Filter{}, 1)
	hub.Register(c)

	loc, bus := samplePing(1, nil)
	for i := 0; i <= sendQueueSize; i++ {
		hub.PublishLocation(context.Background(), loc, bus)
	}
	assert.Zero(t, hub.Len())

	hub.Unregister(c)
}

func TestHub_WebsocketDelivery(t *testing.T) {
	hub := NewHub(quietLogger(), nil)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		NewClient(hub, conn, Filter{BusID: uintPtr(1)}, 0).Serve()
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 10*time.Millisecond)
	loc, bus := samplePing(1, nil)
	hub.PublishLocation(context.Background(), loc, bus)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev LocationEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, uint(1), ev.BusID)
	assert.Equal(t, 45.0, ev.Speed)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Len() == 0 }, time.Second, 10*time.Millisecond)
}
