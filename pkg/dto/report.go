package dto

// LocalPerson is one person as ordered by the reporting camera.
type LocalPerson struct {
	LocalPos   int     `json:"local_pos" binding:"min=1"`
	CenterY    float64 `json:"centro_y"`
	Confidence float64 `json:"confianza"`
}

// SegmentReportRequest is sent by a segmenter over HTTP or NATS. Count is a
// pointer so a missing personas_count can be told apart from zero.
type SegmentReportRequest struct {
	Segment   int           `json:"segmento" binding:"required,min=1"`
	CameraID  string        `json:"camera_id" binding:"required"`
	Count     *int          `json:"personas_count" binding:"required,min=0"`
	Persons   []LocalPerson `json:"personas" binding:"dive"`
	Timestamp float64       `json:"timestamp"`
}

type SegmentReportResponse struct {
	Status string `json:"status"`
	Offset int    `json:"offset"`
}

// DetectionFrame carries one frame's person detections from the detector.
type DetectionFrame struct {
	CameraID   string      `json:"camera_id"`
	Frame      int64       `json:"frame"`
	Timestamp  float64     `json:"timestamp"`
	Detections []Detection `json:"detections"`
}

// Detection is an axis-aligned box in pixels as [x1, y1, x2, y2].
type Detection struct {
	BBox       [4]float64 `json:"bbox"`
	Confidence float64    `json:"confidence"`
}
