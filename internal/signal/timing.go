package signal

import (
	"fmt"
	"time"

	"traffic-signal-go/internal/congestion"
)

// Timing таблица длительностей фаз и пороги динамического зеленого.
// Пороги строгие: RedThreshold=8 означает "более 8 машин".
type Timing struct {
	BaseGreen       time.Duration `yaml:"base_green"`
	ModerateGreen   time.Duration `yaml:"moderate_green"`
	HeavyGreen      time.Duration `yaml:"heavy_green"`
	Yellow          time.Duration `yaml:"yellow"`
	Red             time.Duration `yaml:"red"`
	RedThreshold    int           `yaml:"red_threshold"`
	YellowThreshold int           `yaml:"yellow_threshold"`
}

// DefaultTiming 30/40/60 секунд зеленого, 5 желтого, 25 красного
func DefaultTiming() Timing {
	return Timing{
		BaseGreen:       30 * time.Second,
		ModerateGreen:   40 * time.Second,
		HeavyGreen:      60 * time.Second,
		Yellow:          5 * time.Second,
		Red:             25 * time.Second,
		RedThreshold:    8,
		YellowThreshold: 5,
	}
}

// Validate проверяет, что все длительности положительны и кратны секунде
func (t Timing) Validate() error {
	durations := map[string]time.Duration{
		"base_green":     t.BaseGreen,
		"moderate_green": t.ModerateGreen,
		"heavy_green":    t.HeavyGreen,
		"yellow":         t.Yellow,
		"red":            t.Red,
	}
	for name, d := range durations {
		if d < time.Second {
			return fmt.Errorf("timing %s must be at least 1s, got %s", name, d)
		}
		if d%time.Second != 0 {
			return fmt.Errorf("timing %s must be a whole number of seconds, got %s", name, d)
		}
	}
	if t.RedThreshold < 0 || t.YellowThreshold < 0 {
		return fmt.Errorf("timing thresholds must be non-negative")
	}
	return nil
}

// GreenFor вычисляет длительность зеленого по снимку, первое совпадение побеждает
func (t Timing) GreenFor(s congestion.Snapshot) time.Duration {
	switch {
	case s.RedZone > t.RedThreshold:
		return t.HeavyGreen
	case s.YellowZone > t.YellowThreshold:
		return t.ModerateGreen
	default:
		return t.BaseGreen
	}
}

// durationFor таблица длительностей; для зеленого берется текущее динамическое значение
func (t Timing) durationFor(p Phase, dynamicGreen time.Duration) (time.Duration, error) {
	switch p {
	case Green:
		return dynamicGreen, nil
	case Yellow:
		return t.Yellow, nil
	case Red:
		return t.Red, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrInvalidPhase, int(p))
	}
}
