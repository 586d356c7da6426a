package emitter

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"traffic-signal-go/internal/config"
	"traffic-signal-go/internal/signal"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	queueSize      = 64
	publishTimeout = 2 * time.Second
)

// publisher часть mqtt.Client, нужная эмиттеру
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnected() bool
}

// PhaseEvent сообщение о смене фазы в MQTT.
// Seq копируется из контроллера; подписчик упорядочивает события по нему.
type PhaseEvent struct {
	EventID         string       `json:"event_id"`
	Seq             uint64       `json:"seq"`
	IntersectionID  string       `json:"intersection_id"`
	From            signal.Phase `json:"from"`
	To              signal.Phase `json:"to"`
	DurationSeconds int          `json:"duration_seconds"`
	Forced          bool         `json:"forced"`
	At              time.Time    `json:"at"`
}

// Stats статистика эмиттера
type Stats struct {
	Connected bool   `json:"connected"`
	Published uint64 `json:"published"`
	Dropped   uint64 `json:"dropped"`
	Errors    uint64 `json:"errors"`
}

// MQTTEmitter публикует смены фаз в MQTT брокер.
// OnPhaseChange только ставит событие в очередь, публикация идет в Run.
type MQTTEmitter struct {
	cfg            config.MQTTConfig
	intersectionID string
	logger         *logrus.Logger
	client         publisher
	queue          chan PhaseEvent

	mu        sync.RWMutex
	published uint64
	dropped   uint64
	errors    uint64
}

// NewMQTTEmitter создает эмиттер; подключение выполняется в Connect
func NewMQTTEmitter(cfg config.MQTTConfig, intersectionID string, logger *logrus.Logger) *MQTTEmitter {
	return &MQTTEmitter{
		cfg:            cfg,
		intersectionID: intersectionID,
		logger:         logger,
		queue:          make(chan PhaseEvent, queueSize),
	}
}

// Connect устанавливает соединение с брокером
func (e *MQTTEmitter) Connect(ctx context.Context) error {
	clientID := e.cfg.ClientID
	if clientID == "" {
		clientID = fmt.Sprintf("%s-%s", e.intersectionID, uuid.New().String()[:8])
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", e.cfg.Broker))
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		e.logger.WithFields(logrus.Fields{
			"broker":    e.cfg.Broker,
			"client_id": clientID,
		}).Info("Соединение с MQTT брокером установлено")
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		e.logger.WithError(err).WithField("broker", e.cfg.Broker).
			Warn("Соединение с MQTT брокером потеряно, ожидаем переподключения")
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()

	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("mqtt connection cancelled: %w", ctx.Err())
	case <-time.After(5 * time.Second):
		return fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}

	e.client = client
	return nil
}

// OnPhaseChange ставит событие в очередь; при переполнении событие отбрасывается
func (e *MQTTEmitter) OnPhaseChange(change signal.PhaseChange) {
	event := PhaseEvent{
		EventID:         uuid.New().String(),
		Seq:             change.Seq,
		IntersectionID:  e.intersectionID,
		From:            change.From,
		To:              change.To,
		DurationSeconds: int(change.Duration / time.Second),
		Forced:          change.Forced,
		At:              change.At,
	}

	select {
	case e.queue <- event:
	default:
		e.mu.Lock()
		e.dropped++
		e.mu.Unlock()
		e.logger.WithField("to", change.To.String()).Warn("Очередь MQTT переполнена, событие отброшено")
	}
}

// Run публикует события из очереди до отмены контекста
func (e *MQTTEmitter) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-e.queue:
			if err := e.publish(event); err != nil {
				e.logger.WithError(err).Error("Ошибка публикации смены сигнала в MQTT")
			}
		}
	}
}

// Topic топик событий смены фаз перекрестка
func (e *MQTTEmitter) Topic() string {
	return fmt.Sprintf("%s/%s/phase", e.cfg.TopicPrefix, e.intersectionID)
}

func (e *MQTTEmitter) publish(event PhaseEvent) error {
	if e.client == nil || !e.client.IsConnected() {
		e.countError()
		return fmt.Errorf("mqtt not connected")
	}

	payload, err := json.Marshal(event)
	if err != nil {
		e.countError()
		return fmt.Errorf("failed to marshal phase event: %w", err)
	}

	token := e.client.Publish(e.Topic(), e.cfg.QoS, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		e.countError()
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		e.countError()
		return fmt.Errorf("publish failed: %w", err)
	}

	e.mu.Lock()
	e.published++
	e.mu.Unlock()

	e.logger.WithFields(logrus.Fields{
		"topic": e.Topic(),
		"to":    event.To.String(),
		"size":  len(payload),
	}).Debug("Смена сигнала опубликована")
	return nil
}

func (e *MQTTEmitter) countError() {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
}

// Disconnect закрывает соединение с брокером
func (e *MQTTEmitter) Disconnect() {
	if c, ok := e.client.(mqtt.Client); ok && c.IsConnected() {
		c.Disconnect(250)
		e.logger.Info("MQTT отключен")
	}
}

// Stats возвращает статистику эмиттера
func (e *MQTTEmitter) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return Stats{
		Connected: e.client != nil && e.client.IsConnected(),
		Published: e.published,
		Dropped:   e.dropped,
		Errors:    e.errors,
	}
}
