package dto

type StateResponse struct {
	Persons        int            `json:"personas"`
	WaitMinutes    int            `json:"tiempo_espera_min"`
	Alert          bool           `json:"alerta"`
	ActiveSegments int            `json:"segmentos_activos"`
	SegmentCounts  map[string]int `json:"detalle_segmentos"`
	PeakQueue      int            `json:"max_fila"`
}

type QueueEntryResponse struct {
	ID          string  `json:"id"`
	Position    int     `json:"posicion"`
	Segment     int     `json:"segmento"`
	CameraID    string  `json:"camera_id"`
	WaitMinutes int     `json:"tiempo_espera_min"`
	Confidence  float64 `json:"confianza"`
	CenterY     float64 `json:"centro_y"`
	Window      int     `json:"ventanilla"`
}

type QueueResponse struct {
	Total   int                  `json:"total"`
	Persons []QueueEntryResponse `json:"personas"`
}

type SegmentResponse struct {
	Segment      int     `json:"segmento"`
	CameraID     string  `json:"camera_id"`
	Persons      int     `json:"personas"`
	Active       bool    `json:"activo"`
	SecondsSince float64 `json:"ultima_actualizacion_seg"`
}

type SegmentListResponse struct {
	Segments []SegmentResponse `json:"segmentos"`
	Total    int               `json:"total"`
}

// WSMessage is pushed to websocket clients. Type is "state" or "reset".
type WSMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
	At   string `json:"at"`
}
