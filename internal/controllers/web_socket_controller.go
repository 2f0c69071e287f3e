package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"bus_tracker/internal/apperrors"
	"bus_tracker/internal/middleware"
	"bus_tracker/internal/policy"
	"bus_tracker/internal/realtime"
	"bus_tracker/internal/response"
)

// upgrader configures the WebSocket connection.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CORS for the REST API is enforced separately; the feed itself is read-only.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WebSocketController struct {
	hub      *realtime.Hub
	resolver middleware.ActorResolver
	log      logrus.FieldLogger
}

func NewWebSocketController(hub *realtime.Hub, resolver middleware.ActorResolver, log logrus.FieldLogger) *WebSocketController {
	return &WebSocketController{hub: hub, resolver: resolver, log: log}
}

// subscriberFilter narrows the feed to what the actor may see. Anonymous
// and consumer subscribers get the public feed.
func subscriberFilter(actor policy.Actor, busID *uint) (realtime.Filter, error) {
	var f realtime.Filter
	switch a := actor.(type) {
	case policy.OperatorStaff:
		id := a.OperatorID
		f.OperatorID = &id
	case policy.BusScoped:
		id := a.BusID
		f.BusID = &id
	}

	if busID != nil {
		if f.BusID != nil && *f.BusID != *busID {
			return f, apperrors.AccessDenied("")
		}
		f.BusID = busID
	}
	return f, nil
}

// HandleLocationWebSocket streams live location updates. The access token
// may be passed as ?token= since browsers cannot set headers on upgrade.
func (wc *WebSocketController) HandleLocationWebSocket(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = middleware.BearerToken(c)
	}

	var (
		actor  policy.Actor
		userID uint
	)
	if token != "" {
		user, a, err := wc.resolver.ResolveActor(c.Request.Context(), token)
		if err != nil {
			response.Error(c, wc.log, err)
			return
		}
		actor, userID = a, user.ID
	}

	q := newQueryParser(c)
	busID := q.uintPtr("busId")
	if err := q.err(); err != nil {
		response.Error(c, wc.log, err)
		return
	}
	filter, err := subscriberFilter(actor, busID)
	if err != nil {
		response.Error(c, wc.log, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		wc.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	wc.log.WithFields(logrus.Fields{"user_id": userID, "bus_id": filter.BusID, "operator_id": filter.OperatorID}).
		Debug("websocket subscriber connected")

	realtime.NewClient(wc.hub, conn, filter, userID).Serve()
}
