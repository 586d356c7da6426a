package history

import (
	"math"
	"sync"
	"time"

	"traffic-signal-go/internal/congestion"
	"traffic-signal-go/internal/signal"

	"github.com/google/uuid"
)

// DefaultCapacity сколько снимков хранится по умолчанию
const DefaultCapacity = 100

// Entry запись истории: снимок загруженности и сигнал в момент снимка
type Entry struct {
	ID           string              `json:"id"`
	Snapshot     congestion.Snapshot `json:"congestion"`
	SignalStatus signal.Phase        `json:"signal_status"`
}

// Averages средние значения по хранимой истории
type Averages struct {
	GreenZone     float64 `json:"green_zone"`
	YellowZone    float64 `json:"yellow_zone"`
	RedZone       float64 `json:"red_zone"`
	TotalVehicles float64 `json:"total_vehicles"`
}

// Ring кольцевой буфер фиксированной емкости, самая старая запись вытесняется
type Ring struct {
	mu      sync.RWMutex
	entries []Entry
	head    int // индекс самой старой записи
	size    int
}

// NewRing создает буфер; емкость меньше 1 заменяется значением по умолчанию
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Ring{entries: make([]Entry, capacity)}
}

// Add добавляет запись и возвращает ее с присвоенным ID
func (r *Ring) Add(snapshot congestion.Snapshot, phase signal.Phase) Entry {
	entry := Entry{
		ID:           uuid.New().String(),
		Snapshot:     snapshot,
		SignalStatus: phase,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	capacity := len(r.entries)
	if r.size < capacity {
		r.entries[(r.head+r.size)%capacity] = entry
		r.size++
	} else {
		r.entries[r.head] = entry
		r.head = (r.head + 1) % capacity
	}
	return entry
}

// Len количество хранимых записей
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

// Capacity емкость буфера
func (r *Ring) Capacity() int {
	return len(r.entries)
}

// Latest возвращает последнюю запись
func (r *Ring) Latest() (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.size == 0 {
		return Entry{}, false
	}
	return r.entries[(r.head+r.size-1)%len(r.entries)], true
}

// Last возвращает до n последних записей от старой к новой
func (r *Ring) Last(n int) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n > r.size {
		n = r.size
	}
	if n <= 0 {
		return []Entry{}
	}

	out := make([]Entry, n)
	start := r.head + r.size - n
	for i := 0; i < n; i++ {
		out[i] = r.entries[(start+i)%len(r.entries)]
	}
	return out
}

// Since возвращает записи, снятые не раньше from
func (r *Ring) Since(from time.Time) []Entry {
	all := r.Last(r.Capacity())
	out := make([]Entry, 0, len(all))
	for _, e := range all {
		if !e.Snapshot.CapturedAt.Before(from) {
			out = append(out, e)
		}
	}
	return out
}

// Averages считает средние по всем хранимым записям, округляя до сотых.
// Второй результат false, если история пуста.
func (r *Ring) Averages() (Averages, bool) {
	entries := r.Last(r.Capacity())
	if len(entries) == 0 {
		return Averages{}, false
	}

	var green, yellow, red, total int
	for _, e := range entries {
		green += e.Snapshot.GreenZone
		yellow += e.Snapshot.YellowZone
		red += e.Snapshot.RedZone
		total += e.Snapshot.TotalVehicles
	}

	n := float64(len(entries))
	return Averages{
		GreenZone:     round2(float64(green) / n),
		YellowZone:    round2(float64(yellow) / n),
		RedZone:       round2(float64(red) / n),
		TotalVehicles: round2(float64(total) / n),
	}, true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
