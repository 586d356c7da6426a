package service

import (
	"context"
	"errors"
	"time"

	"traffic-signal-go/internal/client"
	"traffic-signal-go/pkg/models"

	"github.com/sirupsen/logrus"
)

// FrameSource источник результатов детекции
type FrameSource interface {
	FetchLatest(ctx context.Context) (*models.DetectionFrame, error)
}

// DetectionPoller опрашивает детектор и передает новые кадры в TrafficService
type DetectionPoller struct {
	source      FrameSource
	service     *TrafficService
	interval    time.Duration
	logger      *logrus.Logger
	lastFrameID string
}

// NewDetectionPoller создает опросчик детектора
func NewDetectionPoller(source FrameSource, service *TrafficService, interval time.Duration, logger *logrus.Logger) *DetectionPoller {
	return &DetectionPoller{
		source:   source,
		service:  service,
		interval: interval,
		logger:   logger,
	}
}

// Run опрашивает детектор до отмены контекста; ошибки опроса не останавливают цикл
func (p *DetectionPoller) Run(ctx context.Context) {
	p.logger.Infof("Запуск опроса детектора каждые %s", p.interval)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Опрос детектора остановлен")
			return
		case <-ticker.C:
			if err := p.pollOnce(ctx); err != nil {
				p.logger.Warnf("Ошибка опроса детектора: %v", err)
			}
		}
	}
}

// pollOnce обрабатывает последний кадр детектора, если он новый
func (p *DetectionPoller) pollOnce(ctx context.Context) error {
	frame, err := p.source.FetchLatest(ctx)
	if errors.Is(err, client.ErrNoFrame) {
		return nil
	}
	if err != nil {
		return err
	}

	if frame.FrameID != "" && frame.FrameID == p.lastFrameID {
		return nil
	}

	if _, err := p.service.ProcessFrame(*frame); err != nil {
		return err
	}
	p.lastFrameID = frame.FrameID
	return nil
}
