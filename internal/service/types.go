package service

import (
	"time"

	"traffic-signal-go/internal/emitter"
	"traffic-signal-go/internal/history"
	"traffic-signal-go/internal/model"
	"traffic-signal-go/internal/signal"
)

// ZoneCounts количество машин по зонам
type ZoneCounts struct {
	GreenZone  int `json:"green_zone"`
	YellowZone int `json:"yellow_zone"`
	RedZone    int `json:"red_zone"`
}

// CongestionResponse текущая загруженность перекрестка
type CongestionResponse struct {
	ZoneCounts        ZoneCounts `json:"zone_counts"`
	OccupiedGridCells int        `json:"occupied_grid_cells"`
	TotalVehicles     int        `json:"total_vehicles"`
	Timestamp         time.Time  `json:"timestamp"`
}

// FrameResult результат обработки одного кадра детекции
type FrameResult struct {
	EntryID              string             `json:"entry_id"`
	Congestion           CongestionResponse `json:"congestion"`
	AcceptedObjects      int                `json:"accepted_objects"`
	RejectedObjects      int                `json:"rejected_objects"`
	SignalStatus         signal.Phase       `json:"signal_status"`
	DynamicGreenDuration int                `json:"dynamic_green_duration"`
}

// HistoryResponse последние записи истории
type HistoryResponse struct {
	History      []history.Entry `json:"history"`
	TotalEntries int             `json:"total_entries"`
}

// StatsResponse общая статистика по истории
type StatsResponse struct {
	Message              string            `json:"message,omitempty"`
	TotalEntries         int               `json:"total_entries"`
	Averages             *history.Averages `json:"averages,omitempty"`
	CurrentSignal        *signal.Phase     `json:"current_signal,omitempty"`
	DynamicGreenDuration int               `json:"dynamic_green_duration,omitempty"`
}

// ListRecordsResponse сохраненные снимки с пагинацией
type ListRecordsResponse struct {
	Records []*model.CongestionRecord `json:"records"`
	Total   int64                     `json:"total"`
	Page    int                       `json:"page"`
	Size    int                       `json:"size"`
}

// HealthResponse состояние сервиса и зависимостей
type HealthResponse struct {
	Status                 string         `json:"status"`
	SignalControllerActive bool           `json:"signal_controller_active"`
	DetectorConfigured     bool           `json:"detector_configured"`
	DetectorActive         bool           `json:"detector_active"`
	DatabaseEnabled        bool           `json:"database_enabled"`
	DatabaseActive         bool           `json:"database_active"`
	MQTT                   *emitter.Stats `json:"mqtt,omitempty"`
	Timestamp              time.Time      `json:"timestamp"`
}
