package schedule

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/collections-notifier/internal/model"
	scheduleService "github.com/jwalitptl/collections-notifier/internal/service/schedule"
	"github.com/jwalitptl/collections-notifier/pkg/logger"
	"github.com/jwalitptl/collections-notifier/pkg/metrics"
)

type noopRunner struct {
	blocked chan struct{}
}

func (r *noopRunner) RunSweep(ctx context.Context) (*model.RunReport, error) {
	if r.blocked != nil {
		<-r.blocked
	}
	report := model.NewRunReport()
	report.Scanned = 5
	return report, nil
}

func setupTestRouter(t *testing.T, runner scheduleService.Runner) (*gin.Engine, *scheduleService.Scheduler) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := model.ScheduleConfig{Frequency: model.FrequencyDaily, Hour: 9}
	scheduler, err := scheduleService.New(cfg, time.UTC, runner, logger.NewLogger(nil), metrics.New("schedhandlertest"))
	require.NoError(t, err)

	engine := gin.New()
	NewHandler(scheduler).RegisterRoutes(engine.Group("/api/v1"))
	return engine, scheduler
}

func doRequest(engine *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestStartAndStatus(t *testing.T) {
	engine, scheduler := setupTestRouter(t, &noopRunner{})
	defer scheduler.Stop()

	w := doRequest(engine, http.MethodPost, "/api/v1/scheduler/start", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(engine, http.MethodGet, "/api/v1/scheduler/status", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Schedule struct {
				Active   bool      `json:"active"`
				NextFire time.Time `json:"next_fire"`
			} `json:"schedule"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.True(t, resp.Data.Schedule.Active)
	assert.False(t, resp.Data.Schedule.NextFire.IsZero())
}

func TestStopDisarms(t *testing.T) {
	engine, scheduler := setupTestRouter(t, &noopRunner{})
	require.NoError(t, scheduler.Start())

	w := doRequest(engine, http.MethodPost, "/api/v1/scheduler/stop", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, scheduler.NextFireInfo().Active)
}

func TestRunNowReturnsReport(t *testing.T) {
	engine, _ := setupTestRouter(t, &noopRunner{})

	w := doRequest(engine, http.MethodPost, "/api/v1/scheduler/run", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Scanned int `json:"scanned"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, 5, resp.Data.Scanned)
}

func TestRunNowConflictsWhileSweepInFlight(t *testing.T) {
	runner := &noopRunner{blocked: make(chan struct{})}
	engine, _ := setupTestRouter(t, runner)

	started := make(chan struct{})
	go func() {
		close(started)
		doRequest(engine, http.MethodPost, "/api/v1/scheduler/run", "")
	}()
	<-started
	// Give the in-flight sweep a moment to take the guard.
	require.Eventually(t, func() bool {
		w := doRequest(engine, http.MethodPost, "/api/v1/scheduler/run", "")
		return w.Code == http.StatusConflict
	}, time.Second, 5*time.Millisecond)

	close(runner.blocked)
}

func TestReconfigure(t *testing.T) {
	engine, scheduler := setupTestRouter(t, &noopRunner{})
	defer scheduler.Stop()

	t.Run("valid config applies", func(t *testing.T) {
		body := `{"frequency":"weekly","hour":8,"minute":30,"weekdays":[1,5]}`
		w := doRequest(engine, http.MethodPut, "/api/v1/scheduler/config", body)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("unknown frequency rejected by binding", func(t *testing.T) {
		body := `{"frequency":"hourly","hour":8}`
		w := doRequest(engine, http.MethodPut, "/api/v1/scheduler/config", body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("weekly without weekdays rejected", func(t *testing.T) {
		body := `{"frequency":"weekly","hour":8}`
		w := doRequest(engine, http.MethodPut, "/api/v1/scheduler/config", body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
