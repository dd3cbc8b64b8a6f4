package handlers

import (
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/fila/internal/aggregate"
	"github.com/your-org/fila/internal/segment"
	"github.com/your-org/fila/pkg/dto"
)

type ReportHandler struct {
	engine *aggregate.Engine
}

func NewReportHandler(engine *aggregate.Engine) *ReportHandler {
	return &ReportHandler{engine: engine}
}

// Create handles POST /v1/segments/report.
func (h *ReportHandler) Create(c *gin.Context) {
	var req dto.SegmentReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	offset, err := h.Ingest(req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.SegmentReportResponse{Status: "ok", Offset: offset})
}

// Ingest applies a report received over any transport. NATS payloads skip
// gin binding, so required fields are checked again here.
func (h *ReportHandler) Ingest(req dto.SegmentReportRequest) (int, error) {
	if req.Count == nil {
		return 0, &aggregate.ValidationError{Field: "personas_count", Reason: "is required"}
	}
	return h.engine.Report(reportFromDTO(req))
}

func reportFromDTO(req dto.SegmentReportRequest) segment.Report {
	persons := make([]segment.Person, len(req.Persons))
	for i, p := range req.Persons {
		persons[i] = segment.Person{LocalPos: p.LocalPos, CenterY: p.CenterY, Confidence: p.Confidence}
	}
	r := segment.Report{
		Segment:  req.Segment,
		CameraID: req.CameraID,
		Count:    *req.Count,
		Persons:  persons,
	}
	if req.Timestamp > 0 {
		sec, frac := math.Modf(req.Timestamp)
		r.ReportedAt = time.Unix(int64(sec), int64(frac*1e9))
	}
	return r
}
