package congestion

import (
	"errors"
	"fmt"
	"time"
)

// ErrMalformedSnapshot снимок нарушает собственные инварианты
var ErrMalformedSnapshot = errors.New("malformed snapshot")

// Snapshot количество машин по зонам за один кадр.
// Передается по значению и после создания не изменяется.
type Snapshot struct {
	GreenZone     int       `json:"green_zone"`
	YellowZone    int       `json:"yellow_zone"`
	RedZone       int       `json:"red_zone"`
	OccupiedCells int       `json:"occupied_grid_cells"`
	TotalVehicles int       `json:"total_vehicles"`
	GridRows      int       `json:"grid_rows"`
	GridCols      int       `json:"grid_cols"`
	CapturedAt    time.Time `json:"timestamp"`
}

// NewSnapshot собирает снимок из готовых счетчиков зон
func NewSnapshot(green, yellow, red, occupiedCells int, capturedAt time.Time) Snapshot {
	return Snapshot{
		GreenZone:     green,
		YellowZone:    yellow,
		RedZone:       red,
		OccupiedCells: occupiedCells,
		TotalVehicles: green + yellow + red,
		CapturedAt:    capturedAt,
	}
}

// Validate проверяет неотрицательность счетчиков, сумму и предел занятых ячеек.
// Предел ячеек проверяется только если размер сетки известен.
func (s Snapshot) Validate() error {
	if s.GreenZone < 0 || s.YellowZone < 0 || s.RedZone < 0 || s.OccupiedCells < 0 {
		return fmt.Errorf("%w: negative count", ErrMalformedSnapshot)
	}
	if s.TotalVehicles != s.GreenZone+s.YellowZone+s.RedZone {
		return fmt.Errorf("%w: total %d does not match zone sum %d",
			ErrMalformedSnapshot, s.TotalVehicles, s.GreenZone+s.YellowZone+s.RedZone)
	}
	if s.GridRows < 0 || s.GridCols < 0 {
		return fmt.Errorf("%w: negative grid size", ErrMalformedSnapshot)
	}
	if s.GridRows > 0 && s.GridCols > 0 && s.OccupiedCells > s.GridRows*s.GridCols {
		return fmt.Errorf("%w: %d occupied cells exceed %dx%d grid",
			ErrMalformedSnapshot, s.OccupiedCells, s.GridRows, s.GridCols)
	}
	return nil
}
