package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"predmarket/internal/auth"
	"predmarket/internal/market"
)

// ClaimHandler settles payouts and serves the payout preview.
type ClaimHandler struct {
	Engine *market.Engine
}

func (h *ClaimHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/markets/:id")
	g.POST("/claim", auth.RequireUser(), h.claim)
	g.GET("/payout", h.payoutPreview)
}

func (h *ClaimHandler) claim(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	p := auth.FromGin(c)
	amount, err := h.Engine.Claim(c.Request.Context(), p.User, id)
	if err != nil {
		EngineError(c, err)
		return
	}
	Ok(c, gin.H{"amount": amount}, nil)
}

func (h *ClaimHandler) payoutPreview(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	user := c.Query("user")
	if user == "" {
		user = auth.FromGin(c).User
	}
	if user == "" {
		Error(c, http.StatusBadRequest, "user required", nil)
		return
	}
	amount, err := h.Engine.CalculatePayout(c.Request.Context(), id, user)
	if err != nil {
		EngineError(c, err)
		return
	}
	Ok(c, gin.H{"amount": amount}, nil)
}
