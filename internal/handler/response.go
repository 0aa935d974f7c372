package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"predmarket/internal/market"
)

type apiResponse struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

func Ok(c *gin.Context, data any, meta map[string]any) {
	c.JSON(http.StatusOK, apiResponse{
		Code:    0,
		Message: "ok",
		Data:    data,
		Meta:    meta,
	})
}

func Error(c *gin.Context, status int, message string, meta map[string]any) {
	c.JSON(status, apiResponse{
		Code:    status,
		Message: message,
		Meta:    meta,
	})
}

// EngineError maps a ledger error to an HTTP status and carries the
// stable error code in the meta so clients can branch without string
// matching.
func EngineError(c *gin.Context, err error) {
	Error(c, statusFor(err), err.Error(), map[string]any{"error_code": market.Code(err)})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, market.ErrMarketNotFound):
		return http.StatusNotFound
	case errors.Is(err, market.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, market.ErrInvalidConfiguration),
		errors.Is(err, market.ErrInvalidOutcome),
		errors.Is(err, market.ErrInvalidAmount),
		errors.Is(err, market.ErrInsufficientBond),
		errors.Is(err, market.ErrBetTooSmall),
		errors.Is(err, market.ErrBetTooLarge):
		return http.StatusBadRequest
	case errors.Is(err, market.ErrCreationDisabled),
		errors.Is(err, market.ErrPaused),
		errors.Is(err, market.ErrAlreadyApproved),
		errors.Is(err, market.ErrAlreadyRejected),
		errors.Is(err, market.ErrNotApproved),
		errors.Is(err, market.ErrAlreadyActive),
		errors.Is(err, market.ErrBetsPlaced),
		errors.Is(err, market.ErrMarketNotActive),
		errors.Is(err, market.ErrInsufficientPosition),
		errors.Is(err, market.ErrMarketNotResolvable),
		errors.Is(err, market.ErrAlreadyResolved),
		errors.Is(err, market.ErrMarketNotFinalized),
		errors.Is(err, market.ErrAlreadyFinalized),
		errors.Is(err, market.ErrDisputeWindowNotElapsed),
		errors.Is(err, market.ErrDisputeWindowClosed),
		errors.Is(err, market.ErrDuplicateDisputeSignal),
		errors.Is(err, market.ErrAlreadyClaimed),
		errors.Is(err, market.ErrNothingToClaim),
		errors.Is(err, market.ErrBondNotHeld):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func uuidParam(c *gin.Context, key string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param(key)))
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid "+key, nil)
		return uuid.Nil, false
	}
	return id, true
}

func intQuery(c *gin.Context, key string, def int) int {
	if val := c.Query(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return def
}

func strQueryPtr(c *gin.Context, key string) *string {
	if val := strings.TrimSpace(c.Query(key)); val != "" {
		return &val
	}
	return nil
}

func paginationMeta(limit, offset int, total int64) map[string]any {
	// Mirror the repository's limit normalization so has_next stays
	// truthful when the caller omits the limit.
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	hasNext := int64(offset+limit) < total
	return map[string]any{
		"limit":    limit,
		"offset":   offset,
		"total":    total,
		"has_next": hasNext,
	}
}
