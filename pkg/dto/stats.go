package dto

type StatisticsResponse struct {
	Date           string  `json:"fecha"`
	Attended       int     `json:"personas_atendidas"`
	AvgWait        float64 `json:"tiempo_promedio_espera"`
	MedianWait     float64 `json:"tiempo_mediana_espera"`
	Entries        int     `json:"personas_entrada"`
	PeakQueue      int     `json:"pico_fila"`
	OperatingHours string  `json:"horas_operacion"`
	Throughput     float64 `json:"velocidad_atencion"`
	WindowStatus   string  `json:"estado_ventanilla"`
	LastReset      string  `json:"ultimo_reinicio"`
}

type SummaryResponse struct {
	ID          string  `json:"id"`
	Date        string  `json:"fecha"`
	Attended    int     `json:"personas_atendidas"`
	Entries     int     `json:"personas_entrada"`
	AvgWait     float64 `json:"tiempo_promedio_espera"`
	MedianWait  float64 `json:"tiempo_mediana_espera"`
	PeakQueue   int     `json:"pico_fila"`
	PeriodStart string  `json:"inicio"`
	PeriodEnd   string  `json:"fin"`
	Trigger     string  `json:"motivo"`
}

type SummaryListResponse struct {
	Summaries []SummaryResponse `json:"resumenes"`
	Total     int               `json:"total"`
}

type HistoryQuery struct {
	Limit int `form:"limit"`
}
