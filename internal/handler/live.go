package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/turf-reservation/internal/realtime"
	"github.com/iliyamo/turf-reservation/internal/service"
)

const (
	liveWriteWait  = 10 * time.Second
	livePongWait   = 60 * time.Second
	livePingPeriod = livePongWait * 9 / 10
)

// LiveHandler streams the reservation events of a venue to its owner over
// a websocket.  Dashboards use it instead of polling the pending list.
type LiveHandler struct {
	Service  *service.BookingService
	Hub      *realtime.Hub
	Upgrader websocket.Upgrader
}

// NewLiveHandler panics if a dependency is nil.
func NewLiveHandler(svc *service.BookingService, hub *realtime.Hub) *LiveHandler {
	if svc == nil || hub == nil {
		panic("nil dependency passed to NewLiveHandler")
	}
	return &LiveHandler{
		Service: svc,
		Hub:     hub,
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Stream handles GET /v1/owner/venues/:id/live.  Ownership is checked
// before the upgrade so a stranger gets a plain 403.  Each event is sent
// as one JSON text message.
func (h *LiveHandler) Stream(c echo.Context) error {
	ownerID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	venueID, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid venue id")
	}
	ctx := c.Request().Context()
	if err := h.Service.AuthorizeVenue(ctx, venueID, ownerID); err != nil {
		return respondError(c, err)
	}

	conn, err := h.Upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader already replied with an HTTP error
		c.Logger().Warnf("live: upgrade venue %d: %v", venueID, err)
		return nil
	}
	defer conn.Close()
	sub := h.Hub.Subscribe(venueID)
	defer sub.Close()

	// The read loop only processes control frames and notices the peer
	// going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(livePongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(livePongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					c.Logger().Debugf("live: venue %d: %v", venueID, err)
				}
				return
			}
		}
	}()

	ping := time.NewTicker(livePingPeriod)
	defer ping.Stop()
	for {
		select {
		case msg, ok := <-sub.C:
			_ = conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
				return nil
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return nil
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(liveWriteWait)); err != nil {
				return nil
			}
		case <-gone:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}
