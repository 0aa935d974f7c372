package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"predmarket/internal/auth"
	"predmarket/internal/market"
	"predmarket/internal/repository"
)

// TransferHandler exposes the outbox: listing pending transfers and
// triggering an executor run outside the cron schedule.
type TransferHandler struct {
	Engine *market.Engine
	Sink   market.Sink
	Repo   repository.Repository
}

func (h *TransferHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/transfers")
	g.GET("/pending", auth.RequireAdmin(), h.pending)
	g.POST("/run", auth.RequireAdmin(), h.run)
}

func (h *TransferHandler) pending(c *gin.Context) {
	items, err := h.Repo.ListPendingTransfers(c.Request.Context(), intQuery(c, "limit", 100))
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, items, nil)
}

func (h *TransferHandler) run(c *gin.Context) {
	executed, failed := h.Engine.RunTransfers(c.Request.Context(), h.Sink, intQuery(c, "batch", 100))
	Ok(c, gin.H{"executed": executed, "failed": failed}, nil)
}
