package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"nhooyr.io/websocket"

	"predmarket/internal/events"
	"predmarket/internal/repository"
)

// EventHandler serves the persisted event log and the live websocket
// stream.
type EventHandler struct {
	Hub  *events.Hub
	Repo repository.Repository
}

func (h *EventHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/events")
	g.GET("", h.list)
	g.GET("/ws", h.stream)
}

func (h *EventHandler) list(c *gin.Context) {
	params := repository.ListEventsParams{
		Type:   strQueryPtr(c, "type"),
		Limit:  intQuery(c, "limit", 100),
		Offset: intQuery(c, "offset", 0),
	}
	if v := c.Query("market_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			Error(c, http.StatusBadRequest, "invalid market_id", nil)
			return
		}
		params.MarketID = &id
	}
	if v := intQuery(c, "after_id", 0); v > 0 {
		params.AfterID = uint64(v)
	}
	items, err := h.Repo.ListEvents(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, items, nil)
}

func (h *EventHandler) stream(c *gin.Context) {
	// Origin checks happen at the gateway.
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		return
	}
	h.Hub.ServeWS(c.Request.Context(), conn)
}
