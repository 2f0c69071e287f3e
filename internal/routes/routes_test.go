package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bus_tracker/internal/apperrors"
	"bus_tracker/internal/auth"
	"bus_tracker/internal/config"
	"bus_tracker/internal/controllers"
	"bus_tracker/internal/metrics"
	"bus_tracker/internal/middleware"
	"bus_tracker/internal/models"
	"bus_tracker/internal/policy"
	"bus_tracker/internal/realtime"
	"bus_tracker/internal/repository/mocks"
	"bus_tracker/internal/services"
)

type stubResolver map[string]*models.User

func (s stubResolver) ResolveActor(_ context.Context, token string) (*models.User, policy.Actor, error) {
	u, ok := s[token]
	if !ok {
		return nil, nil, apperrors.Authentication(apperrors.MsgInvalidOrExpiredToken)
	}
	return u, policy.FromUser(u), nil
}

func uintPtr(v uint) *uint { return &v }

var callers = stubResolver{
	"admin":  {ID: 1, Role: models.RoleAdmin, IsActive: true},
	"driver": {ID: 7, Role: models.RoleDriver, OperatorID: uintPtr(3), AssignedBusID: uintPtr(1), IsActive: true},
	"user":   {ID: 9, Role: models.RoleUser, IsActive: true},
}

type okPinger struct{}

func (okPinger) PingContext(context.Context) error { return nil }

type testServer struct {
	router    *gin.Engine
	buses     *mocks.MockBusRepository
	routes    *mocks.MockRouteRepository
	locations *mocks.MockLocationRepository
}

func newTestServer(t *testing.T) *testServer {
	gin.SetMode(gin.TestMode)
	ctrl := gomock.NewController(t)
	users := mocks.NewMockUserRepository(ctrl)
	tokens := mocks.NewMockTokenRepository(ctrl)
	operators := mocks.NewMockOperatorRepository(ctrl)
	routeRepo := mocks.NewMockRouteRepository(ctrl)
	buses := mocks.NewMockBusRepository(ctrl)
	locations := mocks.NewMockLocationRepository(ctrl)

	log := logrus.New()
	log.SetOutput(io.Discard)
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	hub := realtime.NewHub(log, m)
	now := func() time.Time { return time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC) }

	jwt := auth.NewTokenManager(config.JWTConfig{
		AccessSecret: "a", RefreshSecret: "r", AccessTTL: time.Minute, RefreshTTL: time.Hour,
	})
	authSvc := services.NewAuthService(users, tokens, jwt, log)
	locationSvc := services.NewLocationService(locations, buses, hub, m, log).WithClock(now)

	r := gin.New()
	r.Use(middleware.Metrics(m))
	SetupRouter(r, Dependencies{
		Auth:      controllers.NewAuthController(authSvc, log),
		Buses:     controllers.NewBusController(services.NewBusService(buses, routeRepo, operators, log), locationSvc, log),
		Routes:    controllers.NewRouteController(services.NewRouteService(routeRepo, buses, log), log),
		Locations: controllers.NewLocationController(locationSvc, 90, log),
		Admin: controllers.NewAdminController(
			services.NewUserService(users, tokens, operators, buses, log),
			services.NewOperatorService(operators, buses, users, log),
			log,
		),
		Health:    controllers.NewHealthController(okPinger{}, log),
		WebSocket: controllers.NewWebSocketController(hub, callers, log),
		Resolver:  callers,
		Gatherer:  registry,
		Log:       log,
	})
	return &testServer{router: r, buses: buses, routes: routeRepo, locations: locations}
}

func (s *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func scenarioBus() *models.Bus {
	return &models.Bus{ID: 1, BusNumber: "NB-0001", BusCode: "BUS123456", RouteID: 87,
		OperatorID: uintPtr(3), Capacity: 45, BusType: "Luxury", Status: models.BusStatusActive}
}

// Route 87 / NB-0001 over HTTP: the driver reports a position and reads it back.
func TestRouter_IngestThenLatest(t *testing.T) {
	s := newTestServer(t)

	var stored models.Location
	s.buses.EXPECT().FindByID(gomock.Any(), uint(1)).Return(scenarioBus(), nil).Times(2)
	s.locations.EXPECT().Append(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, loc *models.Location) error {
			loc.ID = 500
			stored = *loc
			return nil
		})
	s.locations.EXPECT().Latest(gomock.Any(), uint(1)).
		DoAndReturn(func(context.Context, uint) (*models.Location, error) { return &stored, nil })

	w := s.do(http.MethodPost, "/api/v1/locations/bus/1/update", "driver", map[string]interface{}{
		"latitude": 7.0907, "longitude": 79.9935, "speed": 45, "heading": 180,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/api/v1/locations/bus/1/latest", "driver", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body struct {
		Data struct {
			ID       uint `json:"id"`
			Location struct {
				Coordinates [2]float64 `json:"coordinates"`
			} `json:"location"`
			Speed   float64 `json:"speed"`
			Heading float64 `json:"heading"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, uint(500), body.Data.ID)
	assert.Equal(t, [2]float64{79.9935, 7.0907}, body.Data.Location.Coordinates)
	assert.Equal(t, 45.0, body.Data.Speed)
	assert.Equal(t, 180.0, body.Data.Heading)

	w = s.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "bus_tracker_locations_ingested_total 1"), w.Body.String())
}

func TestRouter_AccessRules(t *testing.T) {
	testCases := []struct {
		name   string
		method string
		path   string
		token  string
		status int
	}{
		{"Health is public", http.MethodGet, "/health", "", http.StatusOK},
		{"Profile needs a token", http.MethodGet, "/api/v1/auth/me", "", http.StatusUnauthorized},
		{"Forged token", http.MethodGet, "/api/v1/locations/bus/1/latest", "forged", http.StatusUnauthorized},
		{"Admin area for admins only", http.MethodGet, "/api/v1/admin/users", "user", http.StatusForbidden},
		{"Admin area without a token", http.MethodGet, "/api/v1/admin/bus-operators", "", http.StatusUnauthorized},
		{"Cleanup for admins only", http.MethodDelete, "/api/v1/admin/locations/cleanup", "driver", http.StatusForbidden},
		{"Bus creation for admins only", http.MethodPost, "/api/v1/buses", "driver", http.StatusForbidden},
		{"Route deletion for admins only", http.MethodDelete, "/api/v1/routes/87", "user", http.StatusForbidden},
		{"Ping ingest needs a token", http.MethodPut, "/api/v1/locations/bus/1/update", "", http.StatusUnauthorized},
		{"Unknown path", http.MethodGet, "/api/v1/nothing", "", http.StatusNotFound},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(t)
			w := s.do(tc.method, tc.path, tc.token, nil)
			assert.Equal(t, tc.status, w.Code, w.Body.String())
		})
	}
}

func TestRouter_PublicDirectory(t *testing.T) {
	s := newTestServer(t)
	s.routes.EXPECT().List(gomock.Any(), gomock.Any()).
		Return([]models.Route{{ID: 87, RouteNumber: "87", Origin: "Colombo", Destination: "Kandy", IsActive: true}}, int64(1), nil)

	w := s.do(http.MethodGet, "/api/v1/routes?page=1&limit=10", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			Routes     []map[string]interface{} `json:"routes"`
			Pagination services.Pagination      `json:"pagination"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	require.Len(t, body.Data.Routes, 1)
	assert.Equal(t, "87", body.Data.Routes[0]["routeNumber"])
	assert.Equal(t, services.Pagination{Total: 1, TotalPages: 1, CurrentPage: 1, Count: 1, Limit: 10}, body.Data.Pagination)
}
