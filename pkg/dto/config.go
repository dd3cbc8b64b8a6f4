package dto

type ScheduleRequest struct {
	Opening string `json:"apertura" binding:"required"`
	Closing string `json:"cierre" binding:"required"`
}

type ServiceTimeRequest struct {
	Minutes int `json:"minutos" binding:"required,min=1"`
}

type SecondaryWindowRequest struct {
	Enabled bool `json:"habilitada"`
	Cutover int  `json:"corte" binding:"min=0"`
}

type SettingsResponse struct {
	Opening          string `json:"apertura"`
	Closing          string `json:"cierre"`
	ServiceMinutes   int    `json:"tiempo_atencion_min"`
	SecondaryEnabled bool   `json:"ventanilla_secundaria"`
	SecondaryCutover int    `json:"corte_ventanilla"`
	Windows          int    `json:"ventanillas"`
}

type EstimateResponse struct {
	MinutesToClose  int  `json:"minutos_hasta_cierre"`
	EstimatedServed int  `json:"personas_estimadas_atendidas"`
	InQueue         int  `json:"personas_en_cola"`
	NeedsWindow     bool `json:"alerta_nueva_ventanilla"`
}

type ConfigResponse struct {
	Config   SettingsResponse `json:"config"`
	Estimate EstimateResponse `json:"estimado"`
}

type ResetResponse struct {
	Status  string          `json:"status"`
	Summary SummaryResponse `json:"resumen"`
}
