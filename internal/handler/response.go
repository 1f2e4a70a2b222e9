package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"roundkeeper/internal/ledger"
	"roundkeeper/internal/oracle"
	"roundkeeper/internal/service"
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

// errorFrom writes err with the status its class maps to. Ledger
// rejections carry the vm status so callers see why the module aborted.
func errorFrom(c *gin.Context, err error, meta map[string]any) {
	status := statusFor(err)
	var rejected *ledger.RejectedError
	if errors.As(err, &rejected) {
		if meta == nil {
			meta = map[string]any{}
		}
		meta["transactionHash"] = rejected.Hash
		meta["vmStatus"] = rejected.VMStatus
	}
	Error(c, status, err.Error(), meta)
}

func statusFor(err error) int {
	var rejected *ledger.RejectedError
	switch {
	case errors.Is(err, service.ErrSignerNotConfigured),
		errors.Is(err, service.ErrInvalidArgument),
		errors.Is(err, service.ErrNoRoundsExist),
		errors.Is(err, service.ErrRoundNotExpired),
		errors.Is(err, service.ErrRoundNotSettled),
		errors.Is(err, service.ErrNoBet),
		errors.Is(err, service.ErrAlreadyClaimed):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrFeatureDisabled):
		return http.StatusForbidden
	case errors.Is(err, service.ErrRoundNotFound), errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrRoundActive), errors.Is(err, service.ErrAlreadySettled):
		return http.StatusConflict
	case errors.Is(err, oracle.ErrUnavailable),
		errors.Is(err, oracle.ErrMalformed),
		errors.Is(err, oracle.ErrPriceInvalid),
		errors.As(err, &rejected):
		return http.StatusBadGateway
	case errors.Is(err, ledger.ErrStaleSequence):
		return http.StatusServiceUnavailable
	case errors.Is(err, ledger.ErrConfirmationTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
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
	if val := c.Query(key); val != "" {
		return &val
	}
	return nil
}

func paginationMeta(limit, offset int, total int64) map[string]any {
	if limit <= 0 {
		limit = 0
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

func boolPtr(v bool) *bool { return &v }
