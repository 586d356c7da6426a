package model

import (
	"time"

	"gorm.io/gorm"
)

// CongestionRecord снимок загруженности перекрестка в базе данных
type CongestionRecord struct {
	ID             string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	IntersectionID string `gorm:"type:varchar(64);not null;index" json:"intersection_id"`

	// Счетчики по зонам
	GreenZoneCount    int `gorm:"not null;default:0" json:"green_zone_count"`
	YellowZoneCount   int `gorm:"not null;default:0" json:"yellow_zone_count"`
	RedZoneCount      int `gorm:"not null;default:0" json:"red_zone_count"`
	TotalVehicles     int `gorm:"not null;default:0" json:"total_vehicles"`
	OccupiedGridCells int `gorm:"not null;default:0" json:"occupied_grid_cells"`

	// Состояние сигнала в момент снимка
	SignalStatus         string `gorm:"type:varchar(16);not null" json:"signal_status"`
	DynamicGreenDuration int    `gorm:"not null" json:"dynamic_green_duration"`

	CapturedAt time.Time      `gorm:"not null;index" json:"captured_at"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

// TableName указывает имя таблицы для CongestionRecord
func (CongestionRecord) TableName() string {
	return "congestion_records"
}
