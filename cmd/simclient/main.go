package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"time"

	"traffic-signal-go/pkg/models"
)

const (
	frameWidth  = 640
	frameHeight = 480
)

// scenarios сколько машин генерируется в каждой зоне: ближняя, средняя, дальняя
var scenarios = map[string][3]int{
	"light":    {2, 1, 0},
	"moderate": {3, 6, 2},
	"heavy":    {4, 5, 10},
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "адрес сервера")
	scenario := flag.String("scenario", "moderate", "light, moderate или heavy")
	frames := flag.Int("frames", 10, "сколько кадров отправить")
	interval := flag.Duration("interval", time.Second, "пауза между кадрами")
	force := flag.String("force", "", "вручную переключить сигнал (GREEN, YELLOW, RED)")
	flag.Parse()

	httpClient := &http.Client{Timeout: 10 * time.Second}

	// Проверяем health endpoint
	fmt.Println("Проверяем health endpoint...")
	if err := printGet(httpClient, *baseURL+"/api/v1/health"); err != nil {
		fmt.Printf("Ошибка при обращении к health endpoint: %v\n", err)
		os.Exit(1)
	}

	if *force != "" {
		if err := forceSignal(httpClient, *baseURL, *force); err != nil {
			fmt.Printf("Ошибка ручного переключения: %v\n", err)
			os.Exit(1)
		}
		return
	}

	counts, ok := scenarios[*scenario]
	if !ok {
		fmt.Printf("Неизвестный сценарий %q\n", *scenario)
		os.Exit(1)
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	for i := 0; i < *frames; i++ {
		frame := syntheticFrame(rng, fmt.Sprintf("sim-%d", i), counts)
		if err := postFrame(httpClient, *baseURL, frame); err != nil {
			fmt.Printf("Ошибка отправки кадра %s: %v\n", frame.FrameID, err)
		}
		if err := printGet(httpClient, *baseURL+"/api/v1/signal-status"); err != nil {
			fmt.Printf("Ошибка получения состояния сигнала: %v\n", err)
		}
		time.Sleep(*interval)
	}

	fmt.Println("Итоговая статистика:")
	if err := printGet(httpClient, *baseURL+"/api/v1/stats"); err != nil {
		fmt.Printf("Ошибка получения статистики: %v\n", err)
	}
}

// syntheticFrame раскладывает машины по зонам: ближняя внизу кадра, дальняя вверху
func syntheticFrame(rng *rand.Rand, id string, counts [3]int) models.DetectionFrame {
	bands := [3][2]int{
		{int(0.75 * frameHeight), frameHeight - 20},
		{int(0.45 * frameHeight), int(0.65 * frameHeight)},
		{20, int(0.35 * frameHeight)},
	}
	classes := []struct {
		id    int
		label string
	}{{2, "car"}, {3, "motorcycle"}, {5, "bus"}, {7, "truck"}}

	now := time.Now()
	frame := models.DetectionFrame{FrameID: id, Width: frameWidth, Height: frameHeight, CapturedAt: &now}
	for zone, n := range counts {
		for j := 0; j < n; j++ {
			cls := classes[rng.Intn(len(classes))]
			cx := 20 + rng.Intn(frameWidth-40)
			cy := bands[zone][0] + rng.Intn(bands[zone][1]-bands[zone][0])
			frame.Detections = append(frame.Detections, models.Detection{
				ClassID:    cls.id,
				Label:      cls.label,
				Confidence: 0.5 + rng.Float64()/2,
				Box:        models.BoundingBox{X1: cx - 15, Y1: cy - 10, X2: cx + 15, Y2: cy + 10},
			})
		}
	}
	return frame
}

func postFrame(httpClient *http.Client, baseURL string, frame models.DetectionFrame) error {
	return postJSON(httpClient, baseURL+"/api/v1/detections", frame)
}

func forceSignal(httpClient *http.Client, baseURL, phase string) error {
	return postJSON(httpClient, baseURL+"/api/v1/force-signal", models.ForceSignalRequest{Signal: phase})
}

func postJSON(httpClient *http.Client, url string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("ошибка сериализации запроса: %w", err)
	}

	resp, err := httpClient.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("ошибка отправки запроса: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("ошибка чтения ответа: %w", err)
	}

	fmt.Printf("POST %s (статус %d):\n%s\n", url, resp.StatusCode, string(body))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("сервер вернул статус %d", resp.StatusCode)
	}
	return nil
}

func printGet(httpClient *http.Client, url string) error {
	resp, err := httpClient.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("ошибка чтения ответа: %w", err)
	}

	fmt.Printf("GET %s (статус %d):\n%s\n\n", url, resp.StatusCode, string(body))
	return nil
}
