package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"traffic-signal-go/pkg/models"

	"github.com/sirupsen/logrus"
)

// ErrNoFrame детектор еще не обработал ни одного кадра
var ErrNoFrame = errors.New("detector has no frame yet")

// DetectorClient клиент для внешнего сервиса детекции машин
type DetectorClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewDetectorClient создает новый клиент детектора
func NewDetectorClient(baseURL string, timeout time.Duration, logger *logrus.Logger) *DetectorClient {
	return &DetectorClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// BaseURL адрес детектора
func (c *DetectorClient) BaseURL() string {
	return c.baseURL
}

// FetchLatest получает результат детекции последнего кадра
func (c *DetectorClient) FetchLatest(ctx context.Context) (*models.DetectionFrame, error) {
	url := fmt.Sprintf("%s/detections/latest", c.baseURL)

	var frame models.DetectionFrame
	status, err := c.getJSON(ctx, url, &frame)
	if status == http.StatusNoContent {
		return nil, ErrNoFrame
	}
	if err != nil {
		return nil, err
	}

	c.logger.Debugf("Получен кадр %s: %d объектов", frame.FrameID, len(frame.Detections)+len(frame.Centers))
	return &frame, nil
}

// CheckHealth проверяет состояние детектора
func (c *DetectorClient) CheckHealth(ctx context.Context) (*models.DetectorHealth, error) {
	c.logger.Debug("Проверка здоровья детектора")

	url := fmt.Sprintf("%s/health", c.baseURL)

	var health models.DetectorHealth
	if _, err := c.getJSON(ctx, url, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// getJSON выполняет GET и разбирает JSON ответ; при 204 тело не читается
func (c *DetectorClient) getJSON(ctx context.Context, url string, out interface{}) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to send HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return resp.StatusCode, nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, fmt.Errorf("detector returned status %d, body: %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to parse JSON response: %w", err)
	}
	return resp.StatusCode, nil
}
