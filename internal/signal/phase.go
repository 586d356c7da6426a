package signal

import (
	"fmt"
	"strings"
)

// Phase фаза светофора
type Phase int

const (
	Green Phase = iota
	Yellow
	Red
)

// Phases порядок цикла: GREEN -> YELLOW -> RED -> GREEN
var Phases = []Phase{Green, Yellow, Red}

// Valid сообщает, является ли значение одной из трех фаз
func (p Phase) Valid() bool {
	return p == Green || p == Yellow || p == Red
}

// Next возвращает следующую фазу цикла
func (p Phase) Next() Phase {
	switch p {
	case Green:
		return Yellow
	case Yellow:
		return Red
	default:
		return Green
	}
}

func (p Phase) String() string {
	switch p {
	case Green:
		return "GREEN"
	case Yellow:
		return "YELLOW"
	case Red:
		return "RED"
	default:
		return fmt.Sprintf("PHASE(%d)", int(p))
	}
}

// MarshalText кодирует фазу в JSON как строку
func (p Phase) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPhase, int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText разбирает фазу из JSON
func (p *Phase) UnmarshalText(text []byte) error {
	parsed, err := ParsePhase(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePhase разбирает имя фазы без учета регистра
func ParsePhase(s string) (Phase, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "GREEN":
		return Green, nil
	case "YELLOW":
		return Yellow, nil
	case "RED":
		return Red, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidPhase, s)
	}
}
