package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"roundkeeper/internal/events"
	"roundkeeper/internal/repository"
	"roundkeeper/internal/service"
)

// KeeperAuditHandler serves saga checkpoints, the submission journal and
// the live event feed.
type KeeperAuditHandler struct {
	Checkpoints service.CheckpointStore
	// Repo is nil when the keeper runs without a database.
	Repo   repository.Repository
	Events *events.Hub
}

func (h *KeeperAuditHandler) Register(r *gin.Engine) {
	g := r.Group("/api/keeper")
	g.GET("/checkpoints", h.listCheckpoints)
	g.GET("/submissions", h.listSubmissions)
	g.GET("/events", h.events)
}

// @Summary List advance checkpoints
// @Tags keeper
// @Produce json
// @Param stage query string false "comma separated stages"
// @Param limit query int false "limit"
// @Param offset query int false "offset"
// @Success 200 {array} models.AdvanceCheckpoint
// @Router /api/keeper/checkpoints [get]
func (h *KeeperAuditHandler) listCheckpoints(c *gin.Context) {
	if h.Checkpoints == nil {
		Error(c, http.StatusServiceUnavailable, "checkpoint store unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	var stages []string
	for _, s := range strings.Split(c.Query("stage"), ",") {
		if s = strings.TrimSpace(s); s != "" {
			stages = append(stages, s)
		}
	}
	params := repository.ListAdvanceCheckpointsParams{
		Limit:   limit,
		Offset:  offset,
		Stages:  stages,
		OrderBy: "round_id",
		Asc:     boolPtr(false),
	}
	items, err := h.Checkpoints.ListAdvanceCheckpoints(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total := int64(len(items))
	if h.Repo != nil {
		if n, err := h.Repo.CountAdvanceCheckpoints(c.Request.Context(), params); err == nil {
			total = n
		}
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

// @Summary List ledger submissions
// @Tags keeper
// @Produce json
// @Param function query string false "entry function"
// @Param status query string false "committed or failed"
// @Param limit query int false "limit"
// @Param offset query int false "offset"
// @Success 200 {array} models.TxSubmission
// @Router /api/keeper/submissions [get]
func (h *KeeperAuditHandler) listSubmissions(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusServiceUnavailable, "submission journal requires a database", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	params := repository.ListTxSubmissionsParams{
		Limit:    limit,
		Offset:   offset,
		Function: strQueryPtr(c, "function"),
		Status:   strQueryPtr(c, "status"),
		Sender:   strQueryPtr(c, "sender"),
		OrderBy:  "id",
		Asc:      boolPtr(false),
	}
	items, err := h.Repo.ListTxSubmissions(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountTxSubmissions(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

// @Summary Keeper event feed (websocket)
// @Tags keeper
// @Router /api/keeper/events [get]
func (h *KeeperAuditHandler) events(c *gin.Context) {
	if h.Events == nil {
		Error(c, http.StatusServiceUnavailable, "event feed unavailable", nil)
		return
	}
	h.Events.ServeWS(c.Writer, c.Request)
}
