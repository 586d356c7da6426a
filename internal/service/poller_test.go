package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"traffic-signal-go/internal/client"
	"traffic-signal-go/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func detectorServer(t *testing.T, frame *models.DetectionFrame, hits *atomic.Int32) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if frame == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(frame)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPollOnceProcessesNewFrame(t *testing.T) {
	svc, _ := newTestService(t, nil)

	frame := heavyFrame()
	frame.FrameID = "frame-1"
	var hits atomic.Int32
	srv := detectorServer(t, &frame, &hits)

	poller := NewDetectionPoller(client.NewDetectorClient(srv.URL, time.Second, quietLogger()), svc, time.Hour, quietLogger())

	require.NoError(t, poller.pollOnce(context.Background()))
	assert.Equal(t, 1, svc.History(50).TotalEntries)

	// тот же кадр повторно не обрабатывается
	require.NoError(t, poller.pollOnce(context.Background()))
	assert.Equal(t, 1, svc.History(50).TotalEntries)
	assert.Equal(t, int32(2), hits.Load())
}

func TestPollOnceNoFrame(t *testing.T) {
	svc, _ := newTestService(t, nil)

	var hits atomic.Int32
	srv := detectorServer(t, nil, &hits)

	poller := NewDetectionPoller(client.NewDetectorClient(srv.URL, time.Second, quietLogger()), svc, time.Hour, quietLogger())

	require.NoError(t, poller.pollOnce(context.Background()))
	assert.Equal(t, 0, svc.History(50).TotalEntries)
}

func TestPollOnceInvalidFrame(t *testing.T) {
	svc, _ := newTestService(t, nil)

	frame := models.DetectionFrame{FrameID: "broken", Width: 0, Height: 0}
	var hits atomic.Int32
	srv := detectorServer(t, &frame, &hits)

	poller := NewDetectionPoller(client.NewDetectorClient(srv.URL, time.Second, quietLogger()), svc, time.Hour, quietLogger())

	assert.Error(t, poller.pollOnce(context.Background()))
	assert.Empty(t, poller.lastFrameID)
}

func TestPollerRunStopsOnCancel(t *testing.T) {
	svc, _ := newTestService(t, nil)

	var hits atomic.Int32
	srv := detectorServer(t, nil, &hits)

	poller := NewDetectionPoller(client.NewDetectorClient(srv.URL, time.Second, quietLogger()), svc, 10*time.Millisecond, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		poller.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return hits.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}
