package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"predmarket/internal/auth"
	"predmarket/internal/market"
	"predmarket/internal/repository"
)

// MarketHandler exposes the lifecycle operations: proposal, approval,
// activation, cancellation and the read views.
type MarketHandler struct {
	Engine *market.Engine
	Repo   repository.Repository
}

func (h *MarketHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/markets")
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.GET("/:id/pools", h.pools)
	g.POST("", auth.RequireUser(), h.create)
	g.POST("/:id/approve", auth.RequireAdmin(), h.approve)
	g.POST("/:id/reject", auth.RequireAdmin(), h.reject)
	g.POST("/:id/activate", auth.RequireAdmin(), h.activate)
	g.POST("/:id/cancel", auth.RequireUser(), h.cancel)
	g.POST("/:id/bond/refund", auth.RequireAdmin(), h.refundBond)
}

type createMarketRequest struct {
	Question       string    `json:"question" binding:"required"`
	Description    string    `json:"description"`
	Category       string    `json:"category" binding:"required"`
	Outcome1       string    `json:"outcome1" binding:"required"`
	Outcome2       string    `json:"outcome2" binding:"required"`
	ResolutionTime time.Time `json:"resolution_time" binding:"required"`
	CreatorBond    string    `json:"creator_bond" binding:"required"`
}

func (h *MarketHandler) create(c *gin.Context) {
	var req createMarketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	bond, err := decimal.NewFromString(req.CreatorBond)
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid creator_bond", nil)
		return
	}
	p := auth.FromGin(c)
	m, err := h.Engine.Create(c.Request.Context(), p.User, market.CreateConfig{
		Question:       req.Question,
		Description:    req.Description,
		Category:       req.Category,
		Outcome1:       req.Outcome1,
		Outcome2:       req.Outcome2,
		ResolutionTime: req.ResolutionTime,
		CreatorBond:    bond,
	})
	if err != nil {
		EngineError(c, err)
		return
	}
	Ok(c, m, nil)
}

func (h *MarketHandler) get(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	m, err := h.Engine.Get(c.Request.Context(), id)
	if err != nil {
		EngineError(c, err)
		return
	}
	Ok(c, m, nil)
}

func (h *MarketHandler) list(c *gin.Context) {
	params := repository.ListMarketsParams{
		State:    strQueryPtr(c, "state"),
		Creator:  strQueryPtr(c, "creator"),
		Category: strQueryPtr(c, "category"),
		Limit:    intQuery(c, "limit", 50),
		Offset:   intQuery(c, "offset", 0),
	}
	items, err := h.Repo.ListMarkets(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountMarkets(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(params.Limit, params.Offset, total))
}

func (h *MarketHandler) pools(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	pools, err := h.Engine.GetPools(c.Request.Context(), id)
	if err != nil {
		EngineError(c, err)
		return
	}
	Ok(c, pools, nil)
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (h *MarketHandler) approve(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	p := auth.FromGin(c)
	if err := h.Engine.Approve(c.Request.Context(), p.User, id); err != nil {
		EngineError(c, err)
		return
	}
	m, err := h.Engine.Get(c.Request.Context(), id)
	if err != nil {
		EngineError(c, err)
		return
	}
	Ok(c, m, nil)
}

func (h *MarketHandler) reject(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req reasonRequest
	_ = c.ShouldBindJSON(&req)
	p := auth.FromGin(c)
	if err := h.Engine.Reject(c.Request.Context(), p.User, id, req.Reason); err != nil {
		EngineError(c, err)
		return
	}
	m, err := h.Engine.Get(c.Request.Context(), id)
	if err != nil {
		EngineError(c, err)
		return
	}
	Ok(c, m, nil)
}

func (h *MarketHandler) activate(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	p := auth.FromGin(c)
	if err := h.Engine.Activate(c.Request.Context(), p.User, id); err != nil {
		EngineError(c, err)
		return
	}
	m, err := h.Engine.Get(c.Request.Context(), id)
	if err != nil {
		EngineError(c, err)
		return
	}
	Ok(c, m, nil)
}

func (h *MarketHandler) cancel(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req reasonRequest
	_ = c.ShouldBindJSON(&req)
	p := auth.FromGin(c)
	if err := h.Engine.Cancel(c.Request.Context(), p.User, id, p.IsAdmin(), req.Reason); err != nil {
		EngineError(c, err)
		return
	}
	m, err := h.Engine.Get(c.Request.Context(), id)
	if err != nil {
		EngineError(c, err)
		return
	}
	Ok(c, m, nil)
}

func (h *MarketHandler) refundBond(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req reasonRequest
	_ = c.ShouldBindJSON(&req)
	p := auth.FromGin(c)
	if err := h.Engine.RefundBond(c.Request.Context(), p.User, id, req.Reason); err != nil {
		EngineError(c, err)
		return
	}
	Ok(c, gin.H{"refunded": true}, nil)
}
