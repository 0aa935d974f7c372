package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"predmarket/internal/auth"
	"predmarket/internal/market"
	"predmarket/internal/repository"
)

// BetHandler exposes the betting ledger: placing bets, selling shares
// back, and the position views.
type BetHandler struct {
	Engine *market.Engine
	Repo   repository.Repository
}

func (h *BetHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/markets/:id")
	g.POST("/bets", auth.RequireUser(), h.placeBet)
	g.POST("/sell", auth.RequireUser(), h.sellShares)
	g.GET("/positions", h.positions)
}

type betRequest struct {
	Outcome int16  `json:"outcome" binding:"required"`
	Amount  string `json:"amount" binding:"required"`
}

func (h *BetHandler) placeBet(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req betRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid amount", nil)
		return
	}
	p := auth.FromGin(c)
	pos, err := h.Engine.PlaceBet(c.Request.Context(), p.User, id, req.Outcome, amount)
	if err != nil {
		EngineError(c, err)
		return
	}
	Ok(c, pos, nil)
}

func (h *BetHandler) sellShares(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req betRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid amount", nil)
		return
	}
	p := auth.FromGin(c)
	pos, err := h.Engine.SellShares(c.Request.Context(), p.User, id, req.Outcome, amount)
	if err != nil {
		EngineError(c, err)
		return
	}
	Ok(c, pos, nil)
}

// positions lists the caller's positions when no user query is given,
// or the named user's positions otherwise.
func (h *BetHandler) positions(c *gin.Context) {
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
	items, err := h.Repo.ListUserPositions(c.Request.Context(), id, user)
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, items, nil)
}
