package signal

import "errors"

var (
	// ErrInvalidPhase неизвестная фаза в ручном переключении
	ErrInvalidPhase = errors.New("invalid phase")
	// ErrInvalidSnapshot отрицательные или несогласованные счетчики загруженности
	ErrInvalidSnapshot = errors.New("invalid snapshot")
	// ErrNotStarted контроллер еще ни разу не запускался
	ErrNotStarted = errors.New("controller not started")
)
