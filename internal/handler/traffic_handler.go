package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"traffic-signal-go/internal/congestion"
	"traffic-signal-go/internal/service"
	"traffic-signal-go/internal/signal"
	"traffic-signal-go/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const defaultHistoryLimit = 50

// TrafficHandler обрабатывает HTTP запросы контроллера перекрестка
type TrafficHandler struct {
	trafficService *service.TrafficService
	logger         *logrus.Logger
}

// NewTrafficHandler создает новый экземпляр TrafficHandler
func NewTrafficHandler(trafficService *service.TrafficService, logger *logrus.Logger) *TrafficHandler {
	return &TrafficHandler{
		trafficService: trafficService,
		logger:         logger,
	}
}

// RegisterRoutes регистрирует маршруты API
func (h *TrafficHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/", h.Index)

	api := router.Group("/api/v1")
	{
		api.POST("/detections", h.IngestDetections)
		api.GET("/congestion", h.GetCongestion)
		api.GET("/signal-status", h.GetSignalStatus)
		api.POST("/force-signal", h.ForceSignal)
		api.GET("/history", h.GetHistory)
		api.GET("/stats", h.GetStats)
		api.GET("/health", h.CheckHealth)
		api.GET("/records", h.ListRecords)
		api.GET("/records/range", h.GetRecordsByRange)
	}
}

// Index краткое описание API
func (h *TrafficHandler) Index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Adaptive Traffic Signal Controller API",
		"endpoints": []string{
			"POST /api/v1/detections",
			"GET /api/v1/congestion",
			"GET /api/v1/signal-status",
			"POST /api/v1/force-signal",
			"GET /api/v1/history",
			"GET /api/v1/stats",
			"GET /api/v1/health",
			"GET /api/v1/records",
			"GET /api/v1/records/range",
		},
	})
}

// IngestDetections принимает результат детекции кадра
func (h *TrafficHandler) IngestDetections(c *gin.Context) {
	var frame models.DetectionFrame
	if err := c.ShouldBindJSON(&frame); err != nil {
		h.logger.Errorf("Ошибка разбора кадра детекции: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный формат кадра детекции"})
		return
	}

	result, err := h.trafficService.ProcessFrame(frame)
	if err != nil {
		h.logger.Errorf("Ошибка обработки кадра: %v", err)
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	h.logger.Debugf("Кадр обработан: %d машин, зеленый %dс", result.Congestion.TotalVehicles, result.DynamicGreenDuration)
	c.JSON(http.StatusOK, result)
}

// GetCongestion возвращает последний снимок загруженности
func (h *TrafficHandler) GetCongestion(c *gin.Context) {
	c.JSON(http.StatusOK, h.trafficService.LatestCongestion())
}

// GetSignalStatus возвращает состояние светофора
func (h *TrafficHandler) GetSignalStatus(c *gin.Context) {
	status, err := h.trafficService.SignalStatus()
	if err != nil {
		h.logger.Errorf("Ошибка получения состояния сигнала: %v", err)
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, status)
}

// ForceSignal вручную переключает сигнал
func (h *TrafficHandler) ForceSignal(c *gin.Context) {
	var req models.ForceSignalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Поле signal обязательно"})
		return
	}

	phase, err := h.trafficService.ForceSignal(req.Signal)
	if err != nil {
		h.logger.Warnf("Отклонено ручное переключение на %q: %v", req.Signal, err)
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, models.ForceSignalResponse{
		Success: true,
		Message: "Signal forced to " + phase.String(),
	})
}

// GetHistory возвращает последние записи истории или записи начиная с since (RFC3339)
func (h *TrafficHandler) GetHistory(c *gin.Context) {
	if since := c.Query("since"); since != "" {
		from, err := time.Parse(time.RFC3339, since)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный формат since, ожидается RFC3339"})
			return
		}
		c.JSON(http.StatusOK, h.trafficService.HistorySince(from))
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultHistoryLimit)))
	if err != nil || limit < 1 {
		limit = defaultHistoryLimit
	}
	c.JSON(http.StatusOK, h.trafficService.History(limit))
}

// GetStats возвращает статистику по истории
func (h *TrafficHandler) GetStats(c *gin.Context) {
	stats, err := h.trafficService.Stats()
	if err != nil {
		h.logger.Errorf("Ошибка расчета статистики: %v", err)
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// CheckHealth проверяет состояние сервиса
func (h *TrafficHandler) CheckHealth(c *gin.Context) {
	health := h.trafficService.Health(c.Request.Context())
	if health.Status != "healthy" {
		c.JSON(http.StatusServiceUnavailable, health)
		return
	}
	c.JSON(http.StatusOK, health)
}

// ListRecords возвращает сохраненные снимки с пагинацией
func (h *TrafficHandler) ListRecords(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}

	size, err := strconv.Atoi(c.DefaultQuery("size", "10"))
	if err != nil || size < 1 || size > 100 {
		size = 10
	}

	resp, err := h.trafficService.ListRecords(page, size)
	if err != nil {
		h.logger.Errorf("Ошибка получения снимков: %v", err)
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	h.logger.Infof("Возвращено %d снимков из %d", len(resp.Records), resp.Total)
	c.JSON(http.StatusOK, resp)
}

// GetRecordsByRange возвращает снимки за интервал from..to в RFC3339
func (h *TrafficHandler) GetRecordsByRange(c *gin.Context) {
	from, err := time.Parse(time.RFC3339, c.Query("from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный формат from, ожидается RFC3339"})
		return
	}
	to, err := time.Parse(time.RFC3339, c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный формат to, ожидается RFC3339"})
		return
	}
	if to.Before(from) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "to раньше from"})
		return
	}

	records, err := h.trafficService.RecordsBetween(from, to)
	if err != nil {
		h.logger.Errorf("Ошибка получения снимков за интервал: %v", err)
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records, "total": len(records)})
}

// statusFor сопоставляет ошибку сервиса HTTP статусу
func statusFor(err error) int {
	switch {
	case signal.IsClientError(err), errors.Is(err, congestion.ErrInvalidFrame):
		return http.StatusBadRequest
	case errors.Is(err, signal.ErrNotStarted):
		return http.StatusServiceUnavailable
	case errors.Is(err, service.ErrPersistenceDisabled):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
