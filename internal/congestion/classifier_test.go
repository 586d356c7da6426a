package congestion

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedTime = time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)

func newTestClassifier(t *testing.T) *Classifier {
	t.Helper()
	c, err := NewClassifier(DefaultBoundaries())
	require.NoError(t, err)
	return c.WithClock(func() time.Time { return fixedTime })
}

func TestClassifyNoObjects(t *testing.T) {
	c := newTestClassifier(t)

	s, err := c.Classify(nil, 640, 480, 3, 3)
	require.NoError(t, err)

	assert.Equal(t, 0, s.GreenZone)
	assert.Equal(t, 0, s.YellowZone)
	assert.Equal(t, 0, s.RedZone)
	assert.Equal(t, 0, s.OccupiedCells)
	assert.Equal(t, 0, s.TotalVehicles)
	assert.Equal(t, fixedTime, s.CapturedAt)
}

func TestClassifyBoundaryGoesToLowerZone(t *testing.T) {
	c := newTestClassifier(t)

	tests := []struct {
		name string
		y    float64
		want Zone
	}{
		{"exactly on green boundary", 70, ZoneGreen},
		{"just above green boundary", 69.9, ZoneYellow},
		{"exactly on yellow boundary", 40, ZoneYellow},
		{"just above yellow boundary", 39.9, ZoneRed},
		{"top of frame", 0, ZoneRed},
		{"bottom of frame", 100, ZoneGreen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.ZoneOf(tt.y, 100))
		})
	}
}

func TestClassifyGreenBoundaryObject(t *testing.T) {
	c := newTestClassifier(t)

	s, err := c.Classify([]Point{{X: 10, Y: 70}}, 1000, 100, 3, 3)
	require.NoError(t, err)

	assert.Equal(t, 1, s.GreenZone)
	assert.Equal(t, 0, s.YellowZone)
	assert.Equal(t, 0, s.RedZone)
	assert.Equal(t, 1, s.TotalVehicles)
}

func TestClassifyCountsAndGrid(t *testing.T) {
	c := newTestClassifier(t)

	objects := []Point{
		{X: 10, Y: 400},  // green, cell (2,0)
		{X: 20, Y: 410},  // green, cell (2,0) again
		{X: 320, Y: 250}, // yellow, cell (1,1)
		{X: 630, Y: 20},  // red, cell (0,2)
		{X: 640, Y: 480}, // right-bottom edge clamps to (2,2), green
	}

	s, err := c.Classify(objects, 640, 480, 3, 3)
	require.NoError(t, err)

	assert.Equal(t, 3, s.GreenZone)
	assert.Equal(t, 1, s.YellowZone)
	assert.Equal(t, 1, s.RedZone)
	assert.Equal(t, 4, s.OccupiedCells)
	assert.Equal(t, s.GreenZone+s.YellowZone+s.RedZone, s.TotalVehicles)
	assert.NoError(t, s.Validate())
}

func TestClassifyOccupancySaturates(t *testing.T) {
	c := newTestClassifier(t)

	objects := make([]Point, 50)
	for i := range objects {
		objects[i] = Point{X: 5, Y: 5}
	}

	s, err := c.Classify(objects, 640, 480, 3, 3)
	require.NoError(t, err)

	assert.Equal(t, 50, s.RedZone)
	assert.Equal(t, 1, s.OccupiedCells)
}

func TestCellOf(t *testing.T) {
	row, col := CellOf(639.9, 0, 640, 480, 3, 3)
	assert.Equal(t, 0, row)
	assert.Equal(t, 2, col)

	row, col = CellOf(-5, -5, 640, 480, 3, 3)
	assert.Equal(t, 0, row)
	assert.Equal(t, 0, col)

	row, col = CellOf(213.4, 200, 640, 480, 3, 3)
	assert.Equal(t, 1, row)
	assert.Equal(t, 1, col)
}

func TestCellOfHugeCoordinatesClampToLastCell(t *testing.T) {
	cases := []struct {
		name     string
		x, y     float64
		row, col int
	}{
		{"far beyond frame", 1e300, 1e300, 2, 2},
		{"beyond int64 on x", 1e19, 100, 0, 2},
		{"positive infinity", math.Inf(1), math.Inf(1), 2, 2},
		{"negative infinity", math.Inf(-1), math.Inf(-1), 0, 0},
		{"not a number", math.NaN(), math.NaN(), 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			row, col := CellOf(tc.x, tc.y, 640, 480, 3, 3)
			assert.Equal(t, tc.row, row)
			assert.Equal(t, tc.col, col)
		})
	}
}

func TestClassifyHugeCenterCountsOnce(t *testing.T) {
	c := newTestClassifier(t)

	s, err := c.Classify([]Point{{X: 1e300, Y: 1e300}}, 640, 480, 3, 3)
	require.NoError(t, err)

	assert.Equal(t, 1, s.GreenZone)
	assert.Equal(t, 1, s.OccupiedCells)
	require.NoError(t, s.Validate())
}

func TestClassifyInvalidFrame(t *testing.T) {
	c := newTestClassifier(t)

	_, err := c.Classify(nil, 0, 480, 3, 3)
	assert.ErrorIs(t, err, ErrInvalidFrame)

	_, err = c.Classify(nil, 640, 480, 0, 3)
	assert.ErrorIs(t, err, ErrInvalidFrame)
}

func TestNewClassifierRejectsUnorderedBoundaries(t *testing.T) {
	_, err := NewClassifier(Boundaries{Red: 0.5, Yellow: 0.4, Green: 0.7})
	assert.ErrorIs(t, err, ErrInvalidBoundaries)

	_, err = NewClassifier(Boundaries{Red: 0.1, Yellow: 0.4, Green: 1.2})
	assert.ErrorIs(t, err, ErrInvalidBoundaries)
}

func TestSnapshotValidate(t *testing.T) {
	valid := NewSnapshot(1, 2, 3, 4, fixedTime)
	assert.Equal(t, 6, valid.TotalVehicles)
	assert.NoError(t, valid.Validate())

	negative := NewSnapshot(-1, 0, 0, 0, fixedTime)
	assert.ErrorIs(t, negative.Validate(), ErrMalformedSnapshot)

	badTotal := valid
	badTotal.TotalVehicles = 7
	assert.ErrorIs(t, badTotal.Validate(), ErrMalformedSnapshot)

	tooManyCells := valid
	tooManyCells.GridRows, tooManyCells.GridCols = 1, 2
	assert.ErrorIs(t, tooManyCells.Validate(), ErrMalformedSnapshot)
}

func TestZoneString(t *testing.T) {
	assert.Equal(t, "green_zone", ZoneGreen.String())
	assert.Equal(t, "yellow_zone", ZoneYellow.String())
	assert.Equal(t, "red_zone", ZoneRed.String())
}

func TestClassifyAtUsesGivenTime(t *testing.T) {
	c := newTestClassifier(t)
	at := fixedTime.Add(time.Minute)

	s, err := c.ClassifyAt(at, []Point{{X: 1, Y: 1}}, 640, 480, 3, 3)
	require.NoError(t, err)
	assert.Equal(t, at, s.CapturedAt)
}
