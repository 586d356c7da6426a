package models

import "time"

// BoundingBox рамка объекта в пикселях кадра
type BoundingBox struct {
	X1 int `json:"x1"` // Левая граница
	Y1 int `json:"y1"` // Верхняя граница
	X2 int `json:"x2"` // Правая граница
	Y2 int `json:"y2"` // Нижняя граница
}

// Center возвращает целочисленный центр рамки
func (b BoundingBox) Center() (int, int) {
	return (b.X1 + b.X2) / 2, (b.Y1 + b.Y2) / 2
}

// Detection один объект, найденный детектором
type Detection struct {
	ClassID    int         `json:"class_id"`   // Класс COCO
	Label      string      `json:"label"`      // Имя класса (car, bus, ...)
	Confidence float64     `json:"confidence"` // Уверенность детектора
	Box        BoundingBox `json:"box"`        // Рамка объекта
}

// CenterPoint центр объекта, если детектор уже его посчитал
type CenterPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DetectionFrame результат детекции одного кадра
type DetectionFrame struct {
	FrameID    string        `json:"frame_id,omitempty"`    // ID кадра у источника
	Width      float64       `json:"width"`                 // Ширина кадра
	Height     float64       `json:"height"`                // Высота кадра
	Detections []Detection   `json:"detections,omitempty"`  // Рамки с классами
	Centers    []CenterPoint `json:"centers,omitempty"`     // Готовые центры без фильтрации
	CapturedAt *time.Time    `json:"captured_at,omitempty"` // Время съемки кадра
}

// DetectorHealth ответ проверки здоровья детектора
type DetectorHealth struct {
	Status      string `json:"status"`       // healthy/unhealthy
	ModelLoaded bool   `json:"model_loaded"` // Загружена ли модель
	Version     string `json:"version"`      // Версия сервиса детекции
}

// ForceSignalRequest запрос на ручное переключение сигнала
type ForceSignalRequest struct {
	Signal string `json:"signal" binding:"required"` // GREEN, YELLOW или RED
}

// ForceSignalResponse ответ на ручное переключение
type ForceSignalResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
