package attendance

import (
	"time"

	"github.com/your-org/fila/internal/config"
)

// Trigger names why a statistics period ended.
type Trigger string

const (
	TriggerNone        Trigger = ""
	TriggerDayRollover Trigger = "day_rollover"
	TriggerClosing     Trigger = "closing"
	TriggerManual      Trigger = "manual"
)

// Summary is the record of one closed statistics period.
type Summary struct {
	ID          string    `json:"id,omitempty"`
	Date        string    `json:"fecha"`
	Attended    int       `json:"personas_atendidas"`
	Entries     int       `json:"personas_entrada"`
	AvgWait     float64   `json:"tiempo_promedio_espera"`
	MedianWait  float64   `json:"tiempo_mediana_espera"`
	PeakQueue   int       `json:"pico_fila"`
	PeriodStart time.Time `json:"inicio"`
	PeriodEnd   time.Time `json:"fin"`
	Trigger     Trigger   `json:"motivo"`
}

// ResetDue reports whether statistics must be reset at now. A reset is due
// when the calendar day changed since lastReset, or when today's closing time
// has been reached and lastReset happened before it. Calling it again after
// the reset was applied returns TriggerNone.
func ResetDue(now, lastReset time.Time, closing config.ClockTime) Trigger {
	last := lastReset.In(now.Location())
	if !startOfDay(now).Equal(startOfDay(last)) && now.After(last) {
		return TriggerDayRollover
	}
	closeAt := closing.On(now)
	if !now.Before(closeAt) && last.Before(closeAt) {
		return TriggerClosing
	}
	return TriggerNone
}
