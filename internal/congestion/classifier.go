package congestion

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrInvalidFrame размеры кадра или сетки не положительны
	ErrInvalidFrame = errors.New("invalid frame geometry")
	// ErrInvalidBoundaries границы зон не упорядочены
	ErrInvalidBoundaries = errors.New("invalid zone boundaries")
)

// Zone зона кадра по вертикали
type Zone int

const (
	ZoneRed Zone = iota
	ZoneYellow
	ZoneGreen
)

// String возвращает имя зоны в формате API
func (z Zone) String() string {
	switch z {
	case ZoneGreen:
		return "green_zone"
	case ZoneYellow:
		return "yellow_zone"
	case ZoneRed:
		return "red_zone"
	default:
		return fmt.Sprintf("zone(%d)", int(z))
	}
}

// Point центр обнаруженного объекта в пикселях кадра
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Boundaries доли высоты кадра, разделяющие зоны.
// Должно выполняться Red < Yellow < Green.
type Boundaries struct {
	Red    float64 `yaml:"red" json:"red"`
	Yellow float64 `yaml:"yellow" json:"yellow"`
	Green  float64 `yaml:"green" json:"green"`
}

// DefaultBoundaries границы по умолчанию: нижние 30% кадра зеленые
func DefaultBoundaries() Boundaries {
	return Boundaries{Red: 0.1, Yellow: 0.4, Green: 0.7}
}

// Validate проверяет порядок границ
func (b Boundaries) Validate() error {
	if !(b.Red < b.Yellow && b.Yellow < b.Green) {
		return fmt.Errorf("%w: red=%.2f yellow=%.2f green=%.2f", ErrInvalidBoundaries, b.Red, b.Yellow, b.Green)
	}
	if b.Red < 0 || b.Green > 1 {
		return fmt.Errorf("%w: boundaries must lie in [0, 1]", ErrInvalidBoundaries)
	}
	return nil
}

// Classifier распределяет центры объектов по зонам и ячейкам сетки
type Classifier struct {
	boundaries Boundaries
	now        func() time.Time
}

// NewClassifier создает классификатор с заданными границами
func NewClassifier(boundaries Boundaries) (*Classifier, error) {
	if err := boundaries.Validate(); err != nil {
		return nil, err
	}
	return &Classifier{
		boundaries: boundaries,
		now:        time.Now,
	}, nil
}

// WithClock подменяет источник времени для CapturedAt
func (c *Classifier) WithClock(now func() time.Time) *Classifier {
	c.now = now
	return c
}

// Boundaries возвращает границы зон
func (c *Classifier) Boundaries() Boundaries {
	return c.boundaries
}

// ZoneOf определяет зону по вертикальной координате.
// Сравнение идет снизу вверх, граница включается в нижнюю зону.
func (c *Classifier) ZoneOf(y, frameHeight float64) Zone {
	ratio := y / frameHeight
	switch {
	case ratio >= c.boundaries.Green:
		return ZoneGreen
	case ratio >= c.boundaries.Yellow:
		return ZoneYellow
	default:
		return ZoneRed
	}
}

// CellOf возвращает строку и столбец ячейки сетки для точки
func CellOf(x, y, frameWidth, frameHeight float64, gridRows, gridCols int) (int, int) {
	return cellIndex(y, frameHeight, gridRows), cellIndex(x, frameWidth, gridCols)
}

// cellIndex ограничивает индекс до перевода в int, чтобы огромные и бесконечные координаты не переполнялись
func cellIndex(v, extent float64, cells int) int {
	f := math.Floor(v / extent * float64(cells))
	switch {
	case math.IsNaN(f), f < 0:
		return 0
	case f >= float64(cells):
		return cells - 1
	default:
		return int(f)
	}
}

// Classify строит снимок загруженности по центрам объектов одного кадра
func (c *Classifier) Classify(objects []Point, frameWidth, frameHeight float64, gridRows, gridCols int) (Snapshot, error) {
	return c.ClassifyAt(c.now(), objects, frameWidth, frameHeight, gridRows, gridCols)
}

// ClassifyAt то же, что Classify, но с явным временем снимка
func (c *Classifier) ClassifyAt(capturedAt time.Time, objects []Point, frameWidth, frameHeight float64, gridRows, gridCols int) (Snapshot, error) {
	if frameWidth <= 0 || frameHeight <= 0 {
		return Snapshot{}, fmt.Errorf("%w: frame %.0fx%.0f", ErrInvalidFrame, frameWidth, frameHeight)
	}
	if gridRows <= 0 || gridCols <= 0 {
		return Snapshot{}, fmt.Errorf("%w: grid %dx%d", ErrInvalidFrame, gridRows, gridCols)
	}

	snapshot := Snapshot{
		GridRows:   gridRows,
		GridCols:   gridCols,
		CapturedAt: capturedAt,
	}

	occupied := make([]bool, gridRows*gridCols)
	for _, obj := range objects {
		switch c.ZoneOf(obj.Y, frameHeight) {
		case ZoneGreen:
			snapshot.GreenZone++
		case ZoneYellow:
			snapshot.YellowZone++
		default:
			snapshot.RedZone++
		}

		row, col := CellOf(obj.X, obj.Y, frameWidth, frameHeight, gridRows, gridCols)
		cell := row*gridCols + col
		if !occupied[cell] {
			occupied[cell] = true
			snapshot.OccupiedCells++
		}
	}

	snapshot.TotalVehicles = snapshot.GreenZone + snapshot.YellowZone + snapshot.RedZone
	return snapshot, nil
}
