package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"traffic-signal-go/internal/congestion"
	"traffic-signal-go/internal/history"
	"traffic-signal-go/internal/signal"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config структура конфигурации приложения
type Config struct {
	IntersectionID string `yaml:"intersection_id"`

	Server struct {
		Port        int
		Host        string
		Environment string
	} `yaml:"-"`
	GRPC struct {
		Enabled bool
		Port    int
	} `yaml:"-"`
	Logging struct {
		Level  string
		Format string
	} `yaml:"-"`
	Database DatabaseConfig `yaml:"-"`
	Detector struct {
		BaseURL       string
		Timeout       time.Duration
		PollInterval  time.Duration
		MinConfidence float64
	} `yaml:"-"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Signal     SignalConfig     `yaml:"signal"`
	Classifier ClassifierConfig `yaml:"classifier"`
	History    struct {
		Capacity int `yaml:"capacity"`
	} `yaml:"history"`
}

// DatabaseConfig параметры подключения к PostgreSQL
type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string

	// Retention срок хранения снимков; 0 отключает очистку
	Retention time.Duration
}

// DSN строка подключения для драйвера postgres
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

// MQTTConfig параметры публикации смены фаз
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`
}

// SignalConfig период такта и таблица длительностей
type SignalConfig struct {
	TickInterval time.Duration `yaml:"tick_interval"`
	Timing       signal.Timing `yaml:"timing"`
}

// ClassifierConfig границы зон и размер сетки
type ClassifierConfig struct {
	Boundaries congestion.Boundaries `yaml:"boundaries"`
	GridRows   int                   `yaml:"grid_rows"`
	GridCols   int                   `yaml:"grid_cols"`
}

// LoadConfig загружает конфигурацию из .env, переменных окружения и YAML файла CONFIG_FILE
func LoadConfig() (*Config, error) {
	// .env необязателен
	_ = godotenv.Load()

	cfg := &Config{}
	cfg.IntersectionID = getEnv("INTERSECTION_ID", "intersection-1")

	// Конфигурация сервера
	cfg.Server.Port = getEnvInt("SERVER_PORT", 8080)
	cfg.Server.Host = getEnv("SERVER_HOST", "0.0.0.0")
	cfg.Server.Environment = getEnv("ENVIRONMENT", "development")

	cfg.GRPC.Enabled = getEnvBool("GRPC_ENABLED", false)
	cfg.GRPC.Port = getEnvInt("GRPC_PORT", 9090)

	// Конфигурация логирования
	cfg.Logging.Level = getEnv("LOG_LEVEL", "info")
	cfg.Logging.Format = getEnv("LOG_FORMAT", "json")

	cfg.Database = DatabaseConfig{
		Enabled:  getEnvBool("DB_ENABLED", false),
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "5432"),
		Name:     getEnv("DB_NAME", "traffic_management"),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", "postgres"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),

		Retention: getEnvDuration("DB_RETENTION", 0),
	}

	// Внешний детектор; пустой адрес отключает опрос
	cfg.Detector.BaseURL = getEnv("DETECTOR_BASE_URL", "")
	cfg.Detector.Timeout = getEnvDuration("DETECTOR_TIMEOUT", 5*time.Second)
	cfg.Detector.PollInterval = getEnvDuration("DETECTOR_POLL_INTERVAL", time.Second)
	cfg.Detector.MinConfidence = getEnvFloat("DETECTOR_MIN_CONFIDENCE", 0.3)

	cfg.MQTT = MQTTConfig{
		Enabled:     getEnvBool("MQTT_ENABLED", false),
		Broker:      getEnv("MQTT_BROKER", "localhost:1883"),
		ClientID:    getEnv("MQTT_CLIENT_ID", ""),
		TopicPrefix: getEnv("MQTT_TOPIC_PREFIX", "traffic/signals"),
		QoS:         byte(getEnvInt("MQTT_QOS", 1)),
	}

	cfg.Signal = SignalConfig{
		TickInterval: getEnvDuration("SIGNAL_TICK_INTERVAL", time.Second),
		Timing:       signal.DefaultTiming(),
	}

	cfg.Classifier = ClassifierConfig{
		Boundaries: congestion.DefaultBoundaries(),
		GridRows:   getEnvInt("GRID_ROWS", 3),
		GridCols:   getEnvInt("GRID_COLS", 3),
	}

	cfg.History.Capacity = getEnvInt("HISTORY_CAPACITY", history.DefaultCapacity)

	if path := getEnv("CONFIG_FILE", ""); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile накладывает YAML файл поверх значений из окружения
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate проверяет согласованность конфигурации
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.GRPC.Enabled && (c.GRPC.Port <= 0 || c.GRPC.Port > 65535) {
		return fmt.Errorf("invalid grpc port %d", c.GRPC.Port)
	}
	if c.Signal.TickInterval <= 0 {
		return fmt.Errorf("signal tick interval must be positive")
	}
	if err := c.Signal.Timing.Validate(); err != nil {
		return err
	}
	if err := c.Classifier.Boundaries.Validate(); err != nil {
		return err
	}
	if c.Classifier.GridRows <= 0 || c.Classifier.GridCols <= 0 {
		return fmt.Errorf("invalid grid %dx%d", c.Classifier.GridRows, c.Classifier.GridCols)
	}
	if c.History.Capacity <= 0 {
		return fmt.Errorf("history capacity must be positive")
	}
	if c.Detector.MinConfidence < 0 || c.Detector.MinConfidence > 1 {
		return fmt.Errorf("detector min confidence must be in [0, 1]")
	}
	if c.Database.Retention < 0 {
		return fmt.Errorf("database retention must not be negative")
	}
	if c.MQTT.Enabled && c.MQTT.QoS > 2 {
		return fmt.Errorf("invalid mqtt qos %d", c.MQTT.QoS)
	}
	return nil
}

// IsProduction сообщает, запущен ли сервис в production окружении
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// getEnv получает значение переменной окружения или возвращает значение по умолчанию
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt получает int значение переменной окружения или возвращает значение по умолчанию
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration принимает "1s", "500ms" или целое число секунд
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
