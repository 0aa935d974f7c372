package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"predmarket/internal/auth"
	"predmarket/internal/params"
	"predmarket/internal/repository"
)

// ParamsHandler exposes the governed parameter set. Reads return the
// effective snapshot (defaults merged with stored overrides); writes
// are validated before persisting.
type ParamsHandler struct {
	Store *params.Store
	Repo  repository.Repository
}

func (h *ParamsHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/params")
	g.GET("", h.snapshot)
	g.GET("/overrides", auth.RequireAdmin(), h.overrides)
	g.PUT("/:key", auth.RequireAdmin(), h.set)
}

func (h *ParamsHandler) snapshot(c *gin.Context) {
	snap, err := h.Store.Snapshot(c.Request.Context())
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, snap, nil)
}

func (h *ParamsHandler) overrides(c *gin.Context) {
	items, err := h.Repo.ListParameters(c.Request.Context())
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, items, nil)
}

type setParamRequest struct {
	Value string `json:"value" binding:"required"`
}

func (h *ParamsHandler) set(c *gin.Context) {
	key := c.Param("key")
	var req setParamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if err := h.Store.Set(c.Request.Context(), key, req.Value); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"key": key, "value": req.Value}, nil)
}
