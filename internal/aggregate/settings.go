package aggregate

import (
	"errors"
	"fmt"

	"github.com/your-org/fila/internal/config"
)

// Settings are the runtime-adjustable queue parameters.
type Settings struct {
	Opening          config.ClockTime
	Closing          config.ClockTime
	ServiceMinutes   int
	SecondaryEnabled bool
	SecondaryCutover int
}

// Windows returns the number of service windows in operation.
func (s Settings) Windows() int {
	if s.secondaryActive() {
		return 2
	}
	return 1
}

func (s Settings) secondaryActive() bool {
	return s.SecondaryEnabled && s.SecondaryCutover > 0
}

func settingsFromConfig(cfg config.QueueConfig) (Settings, error) {
	opening, closing, err := cfg.Schedule()
	if err != nil {
		return Settings{}, fmt.Errorf("queue schedule: %w", err)
	}
	s := Settings{
		Opening:          opening,
		Closing:          closing,
		ServiceMinutes:   cfg.ServiceMinutes,
		SecondaryEnabled: cfg.SecondaryWindow,
		SecondaryCutover: cfg.SecondaryCutover,
	}
	if s.ServiceMinutes <= 0 {
		return Settings{}, invalid("minutos", "must be > 0, got %d", s.ServiceMinutes)
	}
	if s.SecondaryCutover < 0 {
		return Settings{}, invalid("corte", "must be >= 0, got %d", s.SecondaryCutover)
	}
	return s, nil
}

// Settings returns the current configuration.
func (e *Engine) Settings() Settings {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.settings
}

// SetSchedule replaces opening and closing times, given as HH:MM.
func (e *Engine) SetSchedule(opening, closing string) error {
	open, err := config.ParseClock(opening)
	if err != nil {
		return invalid("apertura", "%s", clockReason(err))
	}
	cl, err := config.ParseClock(closing)
	if err != nil {
		return invalid("cierre", "%s", clockReason(err))
	}
	if cl.Minutes() <= open.Minutes() {
		return invalid("cierre", "must be after apertura (%s)", open)
	}

	e.mu.Lock()
	e.settings.Opening = open
	e.settings.Closing = cl
	e.mu.Unlock()
	return nil
}

// SetServiceMinutes replaces the per-person service time.
func (e *Engine) SetServiceMinutes(minutes int) error {
	if minutes <= 0 {
		return invalid("minutos", "must be > 0, got %d", minutes)
	}
	e.mu.Lock()
	e.settings.ServiceMinutes = minutes
	e.mu.Unlock()
	return nil
}

// SetSecondaryWindow enables or disables the second service window. People
// past position cutover are assigned to it.
func (e *Engine) SetSecondaryWindow(enabled bool, cutover int) error {
	if cutover < 0 {
		return invalid("corte", "must be >= 0, got %d", cutover)
	}
	if enabled && cutover == 0 {
		return invalid("corte", "must be >= 1 when the window is enabled")
	}
	e.mu.Lock()
	e.settings.SecondaryEnabled = enabled
	e.settings.SecondaryCutover = cutover
	e.mu.Unlock()
	return nil
}

func clockReason(err error) string {
	if errors.Is(err, config.ErrInvalidClock) {
		return "must be HH:MM"
	}
	return err.Error()
}
