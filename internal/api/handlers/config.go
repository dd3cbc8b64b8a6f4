package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/fila/internal/aggregate"
	"github.com/your-org/fila/pkg/dto"
)

type ConfigHandler struct {
	engine *aggregate.Engine
}

func NewConfigHandler(engine *aggregate.Engine) *ConfigHandler {
	return &ConfigHandler{engine: engine}
}

func (h *ConfigHandler) Get(c *gin.Context) {
	s, est := h.engine.Config()
	c.JSON(http.StatusOK, dto.ConfigResponse{
		Config: settingsToResponse(s),
		Estimate: dto.EstimateResponse{
			MinutesToClose:  est.MinutesToClose,
			EstimatedServed: est.EstimatedServed,
			InQueue:         est.InQueue,
			NeedsWindow:     est.NeedsWindow,
		},
	})
}

func (h *ConfigHandler) SetSchedule(c *gin.Context) {
	var req dto.ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if err := h.engine.SetSchedule(req.Opening, req.Closing); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, settingsToResponse(h.engine.Settings()))
}

func (h *ConfigHandler) SetServiceTime(c *gin.Context) {
	var req dto.ServiceTimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if err := h.engine.SetServiceMinutes(req.Minutes); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, settingsToResponse(h.engine.Settings()))
}

func (h *ConfigHandler) SetSecondaryWindow(c *gin.Context) {
	var req dto.SecondaryWindowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if err := h.engine.SetSecondaryWindow(req.Enabled, req.Cutover); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, settingsToResponse(h.engine.Settings()))
}

// Reset handles POST /v1/reset.
func (h *ConfigHandler) Reset(c *gin.Context) {
	sum := h.engine.Reset()
	c.JSON(http.StatusOK, dto.ResetResponse{Status: "ok", Summary: SummaryToResponse(sum)})
}

func settingsToResponse(s aggregate.Settings) dto.SettingsResponse {
	return dto.SettingsResponse{
		Opening:          s.Opening.String(),
		Closing:          s.Closing.String(),
		ServiceMinutes:   s.ServiceMinutes,
		SecondaryEnabled: s.SecondaryEnabled,
		SecondaryCutover: s.SecondaryCutover,
		Windows:          s.Windows(),
	}
}
