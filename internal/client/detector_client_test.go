package client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestFetchLatest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/detections/latest", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"frame_id": "f-1",
			"width": 640,
			"height": 480,
			"detections": [
				{"class_id": 2, "label": "car", "confidence": 0.91, "box": {"x1": 10, "y1": 400, "x2": 50, "y2": 440}}
			]
		}`))
	}))
	defer srv.Close()

	c := NewDetectorClient(srv.URL+"/", time.Second, quietLogger())
	assert.Equal(t, srv.URL, c.BaseURL())
	frame, err := c.FetchLatest(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "f-1", frame.FrameID)
	assert.Equal(t, 640.0, frame.Width)
	require.Len(t, frame.Detections, 1)
	assert.Equal(t, "car", frame.Detections[0].Label)
	x, y := frame.Detections[0].Box.Center()
	assert.Equal(t, 30, x)
	assert.Equal(t, 420, y)
}

func TestFetchLatestNoFrame(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewDetectorClient(srv.URL, time.Second, quietLogger())
	_, err := c.FetchLatest(context.Background())
	assert.ErrorIs(t, err, ErrNoFrame)
}

func TestFetchLatestServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model crashed", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewDetectorClient(srv.URL, time.Second, quietLogger())
	_, err := c.FetchLatest(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestFetchLatestBadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	c := NewDetectorClient(srv.URL, time.Second, quietLogger())
	_, err := c.FetchLatest(context.Background())
	assert.Error(t, err)
}

func TestCheckHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		_, _ = w.Write([]byte(`{"status": "healthy", "model_loaded": true, "version": "8n"}`))
	}))
	defer srv.Close()

	c := NewDetectorClient(srv.URL, time.Second, quietLogger())
	health, err := c.CheckHealth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", health.Status)
	assert.True(t, health.ModelLoaded)
}

func TestCheckHealthUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewDetectorClient(srv.URL, 100*time.Millisecond, quietLogger())
	_, err := c.CheckHealth(context.Background())
	assert.Error(t, err)
}
