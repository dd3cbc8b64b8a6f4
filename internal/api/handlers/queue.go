package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/your-org/fila/internal/aggregate"
	"github.com/your-org/fila/pkg/dto"
)

type QueueHandler struct {
	engine *aggregate.Engine
}

func NewQueueHandler(engine *aggregate.Engine) *QueueHandler {
	return &QueueHandler{engine: engine}
}

func (h *QueueHandler) State(c *gin.Context) {
	c.JSON(http.StatusOK, StateToResponse(h.engine.CurrentState()))
}

func (h *QueueHandler) Queue(c *gin.Context) {
	q := h.engine.FullQueue()
	resp := dto.QueueResponse{
		Total:   q.Total,
		Persons: make([]dto.QueueEntryResponse, 0, len(q.Entries)),
	}
	for _, e := range q.Entries {
		resp.Persons = append(resp.Persons, dto.QueueEntryResponse{
			ID:          e.ID,
			Position:    e.Position,
			Segment:     e.Segment,
			CameraID:    e.CameraID,
			WaitMinutes: e.WaitMinutes,
			Confidence:  round2(e.Confidence),
			CenterY:     round2(e.CenterY),
			Window:      e.Window,
		})
	}
	c.JSON(http.StatusOK, resp)
}

func (h *QueueHandler) Segments(c *gin.Context) {
	segs := h.engine.Segments()
	resp := dto.SegmentListResponse{
		Segments: make([]dto.SegmentResponse, 0, len(segs)),
		Total:    len(segs),
	}
	for _, s := range segs {
		resp.Segments = append(resp.Segments, dto.SegmentResponse{
			Segment:      s.Segment,
			CameraID:     s.CameraID,
			Persons:      s.Count,
			Active:       s.Active,
			SecondsSince: round2(s.SinceUpdate.Seconds()),
		})
	}
	c.JSON(http.StatusOK, resp)
}

// StateToResponse converts an engine state into its wire form.
func StateToResponse(s aggregate.State) dto.StateResponse {
	counts := make(map[string]int, len(s.SegmentCounts))
	for seg, n := range s.SegmentCounts {
		counts[strconv.Itoa(seg)] = n
	}
	return dto.StateResponse{
		Persons:        s.Persons,
		WaitMinutes:    s.WaitMinutes,
		Alert:          s.Alert,
		ActiveSegments: s.ActiveSegments,
		SegmentCounts:  counts,
		PeakQueue:      s.PeakQueue,
	}
}
