package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"roundkeeper/internal/auth"
	"roundkeeper/internal/service"
)

type SettingsHandler struct {
	Settings *service.SystemSettingsService
}

func (h *SettingsHandler) Register(r *gin.Engine) {
	g := r.Group("/api/settings/switches")
	g.GET("", h.listSwitches)
	g.GET("/:name", h.getSwitch)
	g.PUT("/:name", h.putSwitch)
}

// @Summary List feature switches
// @Tags settings
// @Produce json
// @Success 200 {array} service.FeatureSwitch
// @Router /api/settings/switches [get]
func (h *SettingsHandler) listSwitches(c *gin.Context) {
	Ok(c, h.Settings.Switches(c.Request.Context()), nil)
}

// @Summary Get a feature switch
// @Tags settings
// @Produce json
// @Param name path string true "switch name, e.g. auto_manage"
// @Success 200 {object} service.FeatureSwitch
// @Router /api/settings/switches/{name} [get]
func (h *SettingsHandler) getSwitch(c *gin.Context) {
	key, ok := switchKey(c)
	if !ok {
		return
	}
	Ok(c, h.Settings.Switch(c.Request.Context(), key, service.DefaultFeatureSwitches()[key]), nil)
}

type putSwitchRequest struct {
	Enabled *bool `json:"enabled"`
}

// @Summary Turn a feature switch on or off
// @Tags settings
// @Accept json
// @Produce json
// @Param name path string true "switch name"
// @Param body body putSwitchRequest true "new state"
// @Success 200 {object} service.FeatureSwitch
// @Router /api/settings/switches/{name} [put]
func (h *SettingsHandler) putSwitch(c *gin.Context) {
	if h.Settings == nil || h.Settings.Repo == nil {
		Error(c, http.StatusServiceUnavailable, "settings require a database", nil)
		return
	}
	key, ok := switchKey(c)
	if !ok {
		return
	}
	var req putSwitchRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	var operator string
	if claims, ok := auth.ClaimsFromGin(c); ok {
		operator = claims.Operator
	}
	if err := h.Settings.SetEnabled(c.Request.Context(), key, *req.Enabled, operator); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, h.Settings.Switch(c.Request.Context(), key, *req.Enabled), nil)
}

func switchKey(c *gin.Context) (string, bool) {
	name := strings.TrimSpace(c.Param("name"))
	key := "feature." + strings.TrimPrefix(name, "feature.")
	if name == "" || !service.IsKnownSwitch(key) {
		Error(c, http.StatusNotFound, "unknown switch", nil)
		return "", false
	}
	return key, true
}
