package signal

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"traffic-signal-go/internal/congestion"

	"github.com/sirupsen/logrus"
)

// Status согласованный снимок состояния контроллера на момент AsOf
type Status struct {
	CurrentPhase         Phase     `json:"current_signal"`
	TimeRemaining        int       `json:"time_remaining"`
	PhaseDuration        int       `json:"signal_duration"`
	DynamicGreenDuration int       `json:"dynamic_green_duration"`
	PhaseStartedAt       time.Time `json:"phase_started_at"`
	Running              bool      `json:"running"`
	AsOf                 time.Time `json:"timestamp"`
}

// PhaseChange событие смены фазы.
// Seq растет на единицу с каждой сменой и задает их порядок для наблюдателей.
type PhaseChange struct {
	Seq      uint64        `json:"seq"`
	From     Phase         `json:"from"`
	To       Phase         `json:"to"`
	Duration time.Duration `json:"-"`
	Forced   bool          `json:"forced"`
	At       time.Time     `json:"at"`
}

// Observer получает уведомления о смене фаз.
// Вызывается вне блокировки контроллера и не должен блокироваться надолго.
type Observer interface {
	OnPhaseChange(change PhaseChange)
}

// ObserverFunc адаптер функции к Observer
type ObserverFunc func(change PhaseChange)

// OnPhaseChange вызывает f
func (f ObserverFunc) OnPhaseChange(change PhaseChange) {
	f(change)
}

// Option настройка контроллера
type Option func(*Controller)

// WithClock подменяет источник текущего времени
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// WithTickInterval задает период планировщика
func WithTickInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.tickInterval = d
		}
	}
}

// WithObserver добавляет наблюдателя смены фаз
func WithObserver(o Observer) Option {
	return func(c *Controller) {
		c.observers = append(c.observers, o)
	}
}

// Controller конечный автомат фаз с динамической длительностью зеленого.
// Все поля состояния защищены mu; каждая операция выполняется в одной критической секции.
type Controller struct {
	timing       Timing
	tickInterval time.Duration
	now          func() time.Time
	logger       *logrus.Logger
	observers    []Observer

	mu             sync.RWMutex
	started        bool
	running        bool
	phase          Phase
	phaseStartedAt time.Time
	phaseDuration  time.Duration
	timeRemaining  time.Duration
	dynamicGreen   time.Duration
	seq            uint64

	cancel context.CancelFunc
	done   chan struct{}
}

// NewController создает остановленный контроллер
func NewController(timing Timing, logger *logrus.Logger, opts ...Option) (*Controller, error) {
	if err := timing.Validate(); err != nil {
		return nil, fmt.Errorf("invalid signal timing: %w", err)
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	c := &Controller{
		timing:       timing,
		tickInterval: time.Second,
		now:          time.Now,
		logger:       logger,
		dynamicGreen: timing.BaseGreen,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Start инициализирует состояние и запускает планировщик. Повторный вызов ничего не делает.
func (c *Controller) Start() {
	ctx, done, ok := c.begin()
	if !ok {
		return
	}

	c.logger.WithFields(logrus.Fields{
		"phase":         Green.String(),
		"duration":      c.timing.BaseGreen.String(),
		"tick_interval": c.tickInterval.String(),
	}).Info("Контроллер светофора запущен")

	go c.run(ctx, done)
}

func (c *Controller) begin() (context.Context, chan struct{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil, nil, false
	}

	now := c.now()
	c.started = true
	c.running = true
	c.phase = Green
	c.dynamicGreen = c.timing.BaseGreen
	c.phaseStartedAt = now
	c.phaseDuration = c.dynamicGreen
	c.timeRemaining = c.phaseDuration

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	return ctx, c.done, true
}

// Stop останавливает планировщик и дожидается его завершения
func (c *Controller) Stop() {
	cancel, done := c.halt()
	if cancel == nil {
		return
	}

	cancel()
	<-done

	c.logger.Info("Контроллер светофора остановлен")
}

func (c *Controller) halt() (context.CancelFunc, chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil, nil
	}
	c.running = false
	return c.cancel, c.done
}

// run цикл планировщика; ошибка одного такта не завершает цикл
func (c *Controller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.safeTick(); err != nil {
				c.logger.WithError(err).Error("Ошибка такта контроллера, продолжаем со следующего такта")
			}
		}
	}
}

func (c *Controller) safeTick() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tick panic: %v", r)
		}
	}()
	return c.Tick()
}

// Tick переключает фазу, если ее время истекло, и пересчитывает остаток
func (c *Controller) Tick() error {
	change, err := c.advance()
	if err != nil || change == nil {
		return err
	}

	c.logger.WithFields(logrus.Fields{
		"seq":      change.Seq,
		"from":     change.From.String(),
		"to":       change.To.String(),
		"duration": change.Duration.String(),
	}).Info("Смена сигнала")
	c.notify(*change)
	return nil
}

// advance критическая секция Tick; блокировка снимается и при панике
func (c *Controller) advance() (*PhaseChange, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil, nil
	}

	now := c.now()
	elapsed := now.Sub(c.phaseStartedAt)

	var change *PhaseChange
	if elapsed >= c.phaseDuration {
		next := c.phase.Next()
		duration, err := c.timing.durationFor(next, c.dynamicGreen)
		if err != nil {
			return nil, err
		}

		c.seq++
		change = &PhaseChange{Seq: c.seq, From: c.phase, To: next, Duration: duration, At: now}
		c.phase = next
		c.phaseStartedAt = now
		c.phaseDuration = duration
		elapsed = 0
	}

	c.timeRemaining = remaining(c.phaseDuration, elapsed)
	return change, nil
}

// IngestCongestion пересчитывает динамический зеленый по последнему снимку.
// Текущая фаза не меняется, новое значение действует со следующего входа в GREEN.
func (c *Controller) IngestCongestion(s congestion.Snapshot) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}

	green := c.timing.GreenFor(s)

	c.mu.Lock()
	previous := c.dynamicGreen
	c.dynamicGreen = green
	c.mu.Unlock()

	if previous != green {
		c.logger.WithFields(logrus.Fields{
			"red_zone":    s.RedZone,
			"yellow_zone": s.YellowZone,
			"previous":    previous.String(),
			"current":     green.String(),
		}).Debug("Динамическая длительность зеленого изменена")
	}
	return nil
}

// ForceSignal вручную устанавливает фазу; цикл продолжается с нее
func (c *Controller) ForceSignal(p Phase) error {
	if !p.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidPhase, int(p))
	}

	change, err := c.force(p)
	if err != nil {
		return err
	}

	c.logger.WithFields(logrus.Fields{
		"seq":      change.Seq,
		"from":     change.From.String(),
		"to":       change.To.String(),
		"duration": change.Duration.String(),
	}).Warn("Ручное переключение сигнала")
	c.notify(change)
	return nil
}

func (c *Controller) force(p Phase) (PhaseChange, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		return PhaseChange{}, ErrNotStarted
	}

	duration, err := c.timing.durationFor(p, c.dynamicGreen)
	if err != nil {
		return PhaseChange{}, err
	}

	now := c.now()
	c.seq++
	change := PhaseChange{Seq: c.seq, From: c.phase, To: p, Duration: duration, Forced: true, At: now}
	c.phase = p
	c.phaseStartedAt = now
	c.phaseDuration = duration
	c.timeRemaining = duration
	return change, nil
}

// Status возвращает снимок состояния, прочитанный целиком под одной блокировкой
func (c *Controller) Status() (Status, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.started {
		return Status{}, ErrNotStarted
	}

	return Status{
		CurrentPhase:         c.phase,
		TimeRemaining:        seconds(c.timeRemaining),
		PhaseDuration:        seconds(c.phaseDuration),
		DynamicGreenDuration: seconds(c.dynamicGreen),
		PhaseStartedAt:       c.phaseStartedAt,
		Running:              c.running,
		AsOf:                 c.now(),
	}, nil
}

// Running сообщает, работает ли планировщик
func (c *Controller) Running() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}

func (c *Controller) notify(change PhaseChange) {
	for _, o := range c.observers {
		o.OnPhaseChange(change)
	}
}

func remaining(duration, elapsed time.Duration) time.Duration {
	if left := duration - elapsed; left > 0 {
		return left
	}
	return 0
}

// seconds округляет вверх, чтобы только что начатая фаза показывала полную длительность
func seconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}

// IsClientError сообщает, вызвана ли ошибка некорректным вводом
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidPhase) || errors.Is(err, ErrInvalidSnapshot)
}
