package handlers

import (
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/fila/internal/aggregate"
	"github.com/your-org/fila/internal/attendance"
	"github.com/your-org/fila/internal/storage"
	"github.com/your-org/fila/pkg/dto"
)

type StatsHandler struct {
	engine  *aggregate.Engine
	history storage.SummaryStore
}

// NewStatsHandler creates the handler. history may be nil when no archive
// is configured.
func NewStatsHandler(engine *aggregate.Engine, history storage.SummaryStore) *StatsHandler {
	return &StatsHandler{engine: engine, history: history}
}

func (h *StatsHandler) Statistics(c *gin.Context) {
	st := h.engine.Statistics()
	status := "CERRADA"
	if st.WindowOpen {
		status = "ABIERTA"
	}
	c.JSON(http.StatusOK, dto.StatisticsResponse{
		Date:           st.Date.Format(time.DateOnly),
		Attended:       st.Attended,
		AvgWait:        round2(st.AvgWait),
		MedianWait:     round2(st.MedianWait),
		Entries:        st.Entries,
		PeakQueue:      st.PeakQueue,
		OperatingHours: st.Opening + " - " + st.Closing,
		Throughput:     st.Throughput,
		WindowStatus:   status,
		LastReset:      st.LastReset.Format(time.RFC3339),
	})
}

func (h *StatsHandler) History(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no summary archive configured"})
		return
	}

	var q dto.HistoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBindError(c, err)
		return
	}

	sums, err := h.history.ListSummaries(c.Request.Context(), q.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := dto.SummaryListResponse{
		Summaries: make([]dto.SummaryResponse, 0, len(sums)),
		Total:     len(sums),
	}
	for _, s := range sums {
		resp.Summaries = append(resp.Summaries, SummaryToResponse(s))
	}
	c.JSON(http.StatusOK, resp)
}

// SummaryToResponse converts a closed-period summary into its wire form.
func SummaryToResponse(s attendance.Summary) dto.SummaryResponse {
	return dto.SummaryResponse{
		ID:          s.ID,
		Date:        s.Date,
		Attended:    s.Attended,
		Entries:     s.Entries,
		AvgWait:     round2(s.AvgWait),
		MedianWait:  round2(s.MedianWait),
		PeakQueue:   s.PeakQueue,
		PeriodStart: s.PeriodStart.Format(time.RFC3339),
		PeriodEnd:   s.PeriodEnd.Format(time.RFC3339),
		Trigger:     string(s.Trigger),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
