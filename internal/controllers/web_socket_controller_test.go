package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bus_tracker/internal/apperrors"
	"bus_tracker/internal/models"
	"bus_tracker/internal/policy"
	"bus_tracker/internal/realtime"
)

func TestSubscriberFilter(t *testing.T) {
	testCases := []struct {
		name     string
		actor    policy.Actor
		busID    *uint
		operator *uint
		bus      *uint
		denied   bool
	}{
		{name: "Anonymous sees the public feed", actor: nil},
		{name: "Consumer may narrow to one bus", actor: policy.Consumer{UserID: 9}, busID: ptr(uint(4)), bus: ptr(uint(4))},
		{name: "Operator limited to its fleet", actor: policy.OperatorStaff{UserID: 8, OperatorID: 3}, operator: ptr(uint(3))},
		{name: "Driver limited to its bus", actor: policy.BusScoped{UserID: 7, BusID: 1}, bus: ptr(uint(1))},
		{name: "Driver asking for its own bus", actor: policy.BusScoped{UserID: 7, BusID: 1}, busID: ptr(uint(1)), bus: ptr(uint(1))},
		{name: "Driver asking for another bus", actor: policy.BusScoped{UserID: 7, BusID: 1}, busID: ptr(uint(2)), denied: true},
		{name: "Admin sees everything", actor: policy.Admin{UserID: 1}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f, err := subscriberFilter(tc.actor, tc.busID)
			if tc.denied {
				assert.Equal(t, apperrors.KindAccessDenied, apperrors.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.operator, f.OperatorID)
			assert.Equal(t, tc.bus, f.BusID)
		})
	}
}

func newWebSocketServer(t *testing.T, hub *realtime.Hub) *httptest.Server {
	wc := NewWebSocketController(hub, testUsers, quietLogger())
	r := gin.New()
	r.GET("/ws/locations", wc.HandleLocationWebSocket)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestWebSocketController_RejectsBadToken(t *testing.T) {
	srv := newWebSocketServer(t, realtime.NewHub(quietLogger(), nil))

	resp, err := http.Get(srv.URL + "/ws/locations?token=forged")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp2, err := http.Get(srv.URL + "/ws/locations?busId=abc")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
}

func TestWebSocketController_StreamsScopedPings(t *testing.T) {
	hub := realtime.NewHub(quietLogger(), nil)
	srv := newWebSocketServer(t, hub)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/locations?token=driver"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 10*time.Millisecond)

	other := scenarioBus()
	other.ID = 2
	ping := func(bus *models.Bus) {
		hub.PublishLocation(context.Background(), &models.Location{
			BusID: bus.ID, Point: models.NewGeoPoint(7.0907, 79.9935), Speed: 30, Timestamp: fixedNow,
		}, bus)
	}
	ping(other)
	ping(scenarioBus())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev realtime.LocationEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, uint(1), ev.BusID, "the driver only receives its own bus")
}
