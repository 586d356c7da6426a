package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"traffic-signal-go/internal/congestion"
	"traffic-signal-go/internal/emitter"
	"traffic-signal-go/internal/history"
	"traffic-signal-go/internal/model"
	"traffic-signal-go/internal/repository"
	"traffic-signal-go/internal/signal"
	"traffic-signal-go/pkg/models"

	"github.com/sirupsen/logrus"
)

// ErrPersistenceDisabled база данных не настроена
var ErrPersistenceDisabled = errors.New("persistence is disabled")

// vehicleClasses классы COCO, которые считаются транспортом
var vehicleClasses = map[int]string{
	2: "car",
	3: "motorcycle",
	5: "bus",
	7: "truck",
}

// SignalController операции контроллера, нужные сервису
type SignalController interface {
	IngestCongestion(s congestion.Snapshot) error
	Status() (signal.Status, error)
	ForceSignal(p signal.Phase) error
	Running() bool
}

// DetectorHealthChecker проверка доступности детектора
type DetectorHealthChecker interface {
	CheckHealth(ctx context.Context) (*models.DetectorHealth, error)
}

// PublisherStats статистика публикации событий смены фазы
type PublisherStats interface {
	Stats() emitter.Stats
}

// Options параметры TrafficService
type Options struct {
	IntersectionID string
	GridRows       int
	GridCols       int
	MinConfidence  float64
}

// TrafficService сервис обработки детекций и управления сигналом
type TrafficService struct {
	classifier *congestion.Classifier
	controller SignalController
	history    *history.Ring
	repo       repository.CongestionRepository
	detector   DetectorHealthChecker
	publisher  PublisherStats
	logger     *logrus.Logger
	opts       Options
}

// NewTrafficService создает сервис; repo может быть nil, если база отключена
func NewTrafficService(
	classifier *congestion.Classifier,
	controller SignalController,
	ring *history.Ring,
	repo repository.CongestionRepository,
	logger *logrus.Logger,
	opts Options,
) *TrafficService {
	return &TrafficService{
		classifier: classifier,
		controller: controller,
		history:    ring,
		repo:       repo,
		logger:     logger,
		opts:       opts,
	}
}

// WithDetector подключает проверку здоровья детектора
func (s *TrafficService) WithDetector(detector DetectorHealthChecker) *TrafficService {
	s.detector = detector
	return s
}

// WithPublisher добавляет статистику MQTT в проверку здоровья
func (s *TrafficService) WithPublisher(publisher PublisherStats) *TrafficService {
	s.publisher = publisher
	return s
}

// ProcessFrame классифицирует кадр, обновляет динамический зеленый, историю и базу
func (s *TrafficService) ProcessFrame(frame models.DetectionFrame) (*FrameResult, error) {
	points, rejected := s.vehicleCenters(frame)

	capturedAt := time.Now()
	if frame.CapturedAt != nil {
		capturedAt = *frame.CapturedAt
	}

	snapshot, err := s.classifier.ClassifyAt(capturedAt, points, frame.Width, frame.Height, s.opts.GridRows, s.opts.GridCols)
	if err != nil {
		return nil, fmt.Errorf("failed to classify frame: %w", err)
	}

	if err := s.controller.IngestCongestion(snapshot); err != nil {
		return nil, fmt.Errorf("failed to ingest congestion: %w", err)
	}

	status, err := s.controller.Status()
	if err != nil {
		return nil, fmt.Errorf("failed to read signal status: %w", err)
	}

	entry := s.history.Add(snapshot, status.CurrentPhase)
	s.persist(entry, status)

	return &FrameResult{
		EntryID:              entry.ID,
		Congestion:           toCongestionResponse(snapshot),
		AcceptedObjects:      len(points),
		RejectedObjects:      rejected,
		SignalStatus:         status.CurrentPhase,
		DynamicGreenDuration: status.DynamicGreenDuration,
	}, nil
}

// vehicleCenters оставляет транспорт с достаточной уверенностью и считает центры рамок.
// Готовые центры из кадра принимаются без фильтрации.
func (s *TrafficService) vehicleCenters(frame models.DetectionFrame) ([]congestion.Point, int) {
	points := make([]congestion.Point, 0, len(frame.Detections)+len(frame.Centers))
	rejected := 0

	for _, d := range frame.Detections {
		if _, ok := vehicleClasses[d.ClassID]; !ok || d.Confidence <= s.opts.MinConfidence {
			rejected++
			continue
		}
		x, y := d.Box.Center()
		points = append(points, congestion.Point{X: float64(x), Y: float64(y)})
	}
	for _, c := range frame.Centers {
		points = append(points, congestion.Point{X: c.X, Y: c.Y})
	}
	return points, rejected
}

// persist сохраняет запись истории; ошибка базы не прерывает обработку кадра
func (s *TrafficService) persist(entry history.Entry, status signal.Status) {
	if s.repo == nil {
		return
	}

	record := &model.CongestionRecord{
		ID:                   entry.ID,
		IntersectionID:       s.opts.IntersectionID,
		GreenZoneCount:       entry.Snapshot.GreenZone,
		YellowZoneCount:      entry.Snapshot.YellowZone,
		RedZoneCount:         entry.Snapshot.RedZone,
		TotalVehicles:        entry.Snapshot.TotalVehicles,
		OccupiedGridCells:    entry.Snapshot.OccupiedCells,
		SignalStatus:         status.CurrentPhase.String(),
		DynamicGreenDuration: status.DynamicGreenDuration,
		CapturedAt:           entry.Snapshot.CapturedAt,
	}
	if err := s.repo.Create(record); err != nil {
		s.logger.Errorf("Ошибка сохранения снимка %s в БД: %v", entry.ID, err)
	}
}

// LatestCongestion последний снимок; до первого кадра все счетчики нулевые
func (s *TrafficService) LatestCongestion() CongestionResponse {
	entry, ok := s.history.Latest()
	if !ok {
		return CongestionResponse{Timestamp: time.Now()}
	}
	return toCongestionResponse(entry.Snapshot)
}

// History возвращает до limit последних записей и общее число хранимых
func (s *TrafficService) History(limit int) HistoryResponse {
	return HistoryResponse{
		History:      s.history.Last(limit),
		TotalEntries: s.history.Len(),
	}
}

// HistorySince записи истории, снятые не раньше from
func (s *TrafficService) HistorySince(from time.Time) HistoryResponse {
	return HistoryResponse{
		History:      s.history.Since(from),
		TotalEntries: s.history.Len(),
	}
}

// Stats средние по истории и текущий сигнал
func (s *TrafficService) Stats() (StatsResponse, error) {
	averages, ok := s.history.Averages()
	if !ok {
		return StatsResponse{Message: "No data available"}, nil
	}

	status, err := s.controller.Status()
	if err != nil {
		return StatsResponse{}, fmt.Errorf("failed to read signal status: %w", err)
	}

	phase := status.CurrentPhase
	return StatsResponse{
		TotalEntries:         s.history.Len(),
		Averages:             &averages,
		CurrentSignal:        &phase,
		DynamicGreenDuration: status.DynamicGreenDuration,
	}, nil
}

// SignalStatus текущее состояние светофора
func (s *TrafficService) SignalStatus() (signal.Status, error) {
	return s.controller.Status()
}

// ForceSignal разбирает имя фазы и вручную переключает сигнал
func (s *TrafficService) ForceSignal(name string) (signal.Phase, error) {
	phase, err := signal.ParsePhase(name)
	if err != nil {
		return 0, err
	}
	if err := s.controller.ForceSignal(phase); err != nil {
		return 0, err
	}
	return phase, nil
}

// ListRecords сохраненные снимки с пагинацией
func (s *TrafficService) ListRecords(page, pageSize int) (*ListRecordsResponse, error) {
	if s.repo == nil {
		return nil, ErrPersistenceDisabled
	}

	records, total, err := s.repo.List(s.opts.IntersectionID, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	return &ListRecordsResponse{Records: records, Total: total, Page: page, Size: pageSize}, nil
}

// RecordsBetween сохраненные снимки за интервал
func (s *TrafficService) RecordsBetween(from, to time.Time) ([]*model.CongestionRecord, error) {
	if s.repo == nil {
		return nil, ErrPersistenceDisabled
	}
	if to.Before(from) {
		return nil, fmt.Errorf("invalid time range: %s is before %s", to.Format(time.RFC3339), from.Format(time.RFC3339))
	}
	return s.repo.ListBetween(s.opts.IntersectionID, from, to)
}

// PruneRecords удаляет снимки старше retention
func (s *TrafficService) PruneRecords(retention time.Duration) (int64, error) {
	if s.repo == nil {
		return 0, ErrPersistenceDisabled
	}
	return s.repo.DeleteBefore(time.Now().Add(-retention))
}

// RunRetention периодически удаляет старые снимки до отмены контекста
func (s *TrafficService) RunRetention(ctx context.Context, retention, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := s.PruneRecords(retention)
			if err != nil {
				s.logger.Errorf("Ошибка очистки старых снимков: %v", err)
				continue
			}
			if deleted > 0 {
				s.logger.Infof("Удалено %d снимков старше %s", deleted, retention)
			}
		}
	}
}

// Health собирает состояние контроллера, детектора и базы
func (s *TrafficService) Health(ctx context.Context) HealthResponse {
	resp := HealthResponse{
		SignalControllerActive: s.controller.Running(),
		DetectorConfigured:     s.detector != nil,
		DatabaseEnabled:        s.repo != nil,
		Timestamp:              time.Now(),
	}

	if s.detector != nil {
		health, err := s.detector.CheckHealth(ctx)
		if err != nil {
			s.logger.Warnf("Детектор недоступен: %v", err)
		}
		resp.DetectorActive = err == nil && health.Status == "healthy"
	}

	if s.repo != nil {
		if err := s.repo.Ping(); err != nil {
			s.logger.Warnf("База данных недоступна: %v", err)
		} else {
			resp.DatabaseActive = true
		}
	}

	if s.publisher != nil {
		stats := s.publisher.Stats()
		resp.MQTT = &stats
	}

	resp.Status = "healthy"
	if !resp.SignalControllerActive ||
		(resp.DetectorConfigured && !resp.DetectorActive) ||
		(resp.DatabaseEnabled && !resp.DatabaseActive) {
		resp.Status = "unhealthy"
	}
	return resp
}

func toCongestionResponse(s congestion.Snapshot) CongestionResponse {
	return CongestionResponse{
		ZoneCounts: ZoneCounts{
			GreenZone:  s.GreenZone,
			YellowZone: s.YellowZone,
			RedZone:    s.RedZone,
		},
		OccupiedGridCells: s.OccupiedCells,
		TotalVehicles:     s.TotalVehicles,
		Timestamp:         s.CapturedAt,
	}
}
