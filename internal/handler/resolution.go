package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"predmarket/internal/auth"
	"predmarket/internal/market"
)

// ResolutionHandler covers the resolve → dispute → finalize flow plus
// the admin override escape hatch.
type ResolutionHandler struct {
	Engine *market.Engine
}

func (h *ResolutionHandler) Register(r *gin.Engine) {
	r.POST("/api/v1/markets/resolve-batch", auth.RequireResolver(), h.batchResolve)

	g := r.Group("/api/v1/markets/:id")
	g.POST("/resolve", auth.RequireResolver(), h.resolve)
	g.POST("/dispute-signals", auth.RequireUser(), h.submitDisputeSignal)
	g.POST("/override", auth.RequireAdmin(), h.adminOverride)
	g.POST("/finalize", auth.RequireResolver(), h.finalize)
	g.GET("/review", h.reviewStatus)
}

type resolveRequest struct {
	Outcome  int16  `json:"outcome" binding:"required"`
	Evidence string `json:"evidence"`
}

func (h *ResolutionHandler) resolve(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	p := auth.FromGin(c)
	if err := h.Engine.Resolve(c.Request.Context(), p.User, id, req.Outcome, req.Evidence); err != nil {
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

type batchResolveRequest struct {
	Items []struct {
		MarketID string `json:"market_id" binding:"required"`
		Outcome  int16  `json:"outcome" binding:"required"`
		Evidence string `json:"evidence"`
	} `json:"items" binding:"required"`
}

func (h *ResolutionHandler) batchResolve(c *gin.Context) {
	var req batchResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	items := make([]market.BatchResolveItem, 0, len(req.Items))
	for _, item := range req.Items {
		id, err := uuid.Parse(item.MarketID)
		if err != nil {
			Error(c, http.StatusBadRequest, "invalid market_id "+item.MarketID, nil)
			return
		}
		items = append(items, market.BatchResolveItem{
			MarketID: id,
			Outcome:  item.Outcome,
			Evidence: item.Evidence,
		})
	}
	p := auth.FromGin(c)
	results := h.Engine.BatchResolve(c.Request.Context(), p.User, items)
	Ok(c, results, nil)
}

type disputeSignalRequest struct {
	AgreePct    int `json:"agree_pct"`
	DisagreePct int `json:"disagree_pct"`
}

func (h *ResolutionHandler) submitDisputeSignal(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req disputeSignalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	p := auth.FromGin(c)
	if err := h.Engine.SubmitDisputeSignal(c.Request.Context(), p.User, id, req.AgreePct, req.DisagreePct); err != nil {
		EngineError(c, err)
		return
	}
	status, err := h.Engine.ReviewStatus(c.Request.Context(), id)
	if err != nil {
		EngineError(c, err)
		return
	}
	Ok(c, gin.H{"review": status}, nil)
}

type overrideRequest struct {
	Outcome int16  `json:"outcome" binding:"required"`
	Reason  string `json:"reason" binding:"required"`
}

func (h *ResolutionHandler) adminOverride(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req overrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	p := auth.FromGin(c)
	if err := h.Engine.AdminOverride(c.Request.Context(), p.User, id, req.Outcome, req.Reason); err != nil {
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

func (h *ResolutionHandler) finalize(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	p := auth.FromGin(c)
	if err := h.Engine.Finalize(c.Request.Context(), p.User, id); err != nil {
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

func (h *ResolutionHandler) reviewStatus(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	status, err := h.Engine.ReviewStatus(c.Request.Context(), id)
	if err != nil {
		EngineError(c, err)
		return
	}
	Ok(c, gin.H{"review": status}, nil)
}
