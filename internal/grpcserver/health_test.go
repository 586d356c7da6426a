package grpcserver

import (
	"context"
	"io"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type stubChecker struct {
	running atomic.Bool
}

func (s *stubChecker) Running() bool {
	return s.running.Load()
}

func check(t *testing.T, s *Server, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := s.Health().Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestHealthFollowsController(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	checker := &stubChecker{}
	s := NewServer(checker, logger)

	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, s, ServiceName))

	checker.running.Store(true)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, s.SyncStatus())
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, s, ServiceName))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, s, ""))

	checker.running.Store(false)
	s.SyncStatus()
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, s, ServiceName))
}

func TestHealthShutdown(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	checker := &stubChecker{}
	checker.running.Store(true)
	s := NewServer(checker, logger)
	s.Stop()

	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, s, ServiceName))
}
