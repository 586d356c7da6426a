package grpcserver

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName имя сервиса в grpc.health.v1
const ServiceName = "traffic.signal.Controller"

// RunningChecker источник состояния контроллера
type RunningChecker interface {
	Running() bool
}

// Server gRPC сервер со стандартным сервисом здоровья.
// Статус SERVING выставляется, пока контроллер светофора работает.
type Server struct {
	grpc     *grpc.Server
	health   *health.Server
	checker  RunningChecker
	logger   *logrus.Logger
	interval time.Duration
}

// NewServer создает сервер и регистрирует сервис здоровья
func NewServer(checker RunningChecker, logger *logrus.Logger) *Server {
	s := &Server{
		grpc:     grpc.NewServer(),
		health:   health.NewServer(),
		checker:  checker,
		logger:   logger,
		interval: time.Second,
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.SyncStatus()
	return s
}

// SyncStatus переносит состояние контроллера в сервис здоровья
func (s *Server) SyncStatus() healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if s.checker.Running() {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(ServiceName, status)
	s.health.SetServingStatus("", status)
	return status
}

// Watch периодически синхронизирует статус до отмены контекста
func (s *Server) Watch(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	last := healthpb.HealthCheckResponse_UNKNOWN
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if status := s.SyncStatus(); status != last {
				s.logger.WithField("status", status.String()).Info("Статус gRPC health изменен")
				last = status
			}
		}
	}
}

// Health сервис здоровья для прямых проверок
func (s *Server) Health() healthpb.HealthServer {
	return s.health
}

// Serve слушает порт и обслуживает запросы до остановки
func (s *Server) Serve(port int) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("failed to listen on grpc port %d: %w", port, err)
	}
	s.logger.Infof("gRPC health сервер запущен на порту %d", port)
	return s.grpc.Serve(lis)
}

// Stop переводит статус в NOT_SERVING и мягко останавливает сервер
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
