package repository

import (
	"fmt"
	"time"

	"traffic-signal-go/internal/model"

	"gorm.io/gorm"
)

// CongestionRepository интерфейс для работы со снимками загруженности
type CongestionRepository interface {
	Create(record *model.CongestionRecord) error
	List(intersectionID string, page, pageSize int) ([]*model.CongestionRecord, int64, error)
	ListBetween(intersectionID string, from, to time.Time) ([]*model.CongestionRecord, error)
	DeleteBefore(cutoff time.Time) (int64, error)
	Ping() error
}

// congestionRepository реализация CongestionRepository
type congestionRepository struct {
	db *gorm.DB
}

// NewCongestionRepository создает новый instance CongestionRepository
func NewCongestionRepository(db *gorm.DB) CongestionRepository {
	return &congestionRepository{
		db: db,
	}
}

// Create сохраняет снимок
func (r *congestionRepository) Create(record *model.CongestionRecord) error {
	if err := r.db.Create(record).Error; err != nil {
		return fmt.Errorf("failed to create congestion record: %w", err)
	}
	return nil
}

// List получает снимки перекрестка с пагинацией, новые первыми
func (r *congestionRepository) List(intersectionID string, page, pageSize int) ([]*model.CongestionRecord, int64, error) {
	var records []*model.CongestionRecord
	var total int64

	query := r.db.Model(&model.CongestionRecord{}).Where("intersection_id = ?", intersectionID)

	// Подсчитываем общее количество
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count congestion records: %w", err)
	}

	offset := (page - 1) * pageSize
	err := r.db.Where("intersection_id = ?", intersectionID).
		Offset(offset).
		Limit(pageSize).
		Order("captured_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list congestion records: %w", err)
	}

	return records, total, nil
}

// ListBetween получает снимки за интервал [from, to]
func (r *congestionRepository) ListBetween(intersectionID string, from, to time.Time) ([]*model.CongestionRecord, error) {
	var records []*model.CongestionRecord

	err := r.db.Where("intersection_id = ? AND captured_at BETWEEN ? AND ?", intersectionID, from, to).
		Order("captured_at ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get congestion records by time range: %w", err)
	}
	return records, nil
}

// DeleteBefore удаляет снимки старше cutoff
func (r *congestionRepository) DeleteBefore(cutoff time.Time) (int64, error) {
	result := r.db.Where("captured_at < ?", cutoff).Delete(&model.CongestionRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete old congestion records: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Ping проверяет доступность базы данных
func (r *congestionRepository) Ping() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.Ping()
}
