package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"Predictor/internal/domain/models"
	"Predictor/internal/repository"
	"Predictor/internal/service/hostbridge"
	"Predictor/internal/service/ratelimit"
	"Predictor/internal/usecase"
	"Predictor/pkg/cache"
	"Predictor/pkg/config"
	xhttp "Predictor/pkg/http"
	"Predictor/pkg/logger"
	"Predictor/pkg/metrics"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

type testAPI struct {
	server   *xhttp.Server
	sessions *usecase.SessionManager
}

func newTestAPI(t *testing.T, runLimit int64) *testAPI {
	t.Helper()
	cfg := config.DefaultAnalysis()
	cfg.TickPeriod = time.Millisecond
	cfg.Delay = 50 * time.Millisecond

	sessions := usecase.NewSessionManager(
		cfg, time.Minute, time.Minute, 0,
		usecase.NewRandomSynthesizer(cfg, usecase.WithSeed(3)),
		metrics.Noop{}, repository.NoopEventPublisher{}, logger.Nop(),
	)
	t.Cleanup(sessions.Shutdown)

	var limiter *ratelimit.Limiter
	if runLimit > 0 {
		store := cache.NewMemoryCache()
		t.Cleanup(func() { _ = store.Close() })
		limiter = ratelimit.New(store, runLimit, time.Minute)
	}

	h := NewAnalysisEchoHandler(logger.Nop(), sessions, limiter, metrics.Noop{}, hostbridge.Config{
		WriteWait:  time.Second,
		PongWait:   5 * time.Second,
		PingPeriod: 4 * time.Second,
		BufferSize: 256,
	}, []string{"*"})
	srv := xhttp.NewServer(h, xhttp.WithMetrics("", prometheus.NewRegistry()))
	return &testAPI{server: srv, sessions: sessions}
}

func (a *testAPI) do(t *testing.T, method, target, body string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	a.server.Echo().ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec.Code, env
}

func (a *testAPI) create(t *testing.T, body string) models.SessionSnapshot {
	t.Helper()
	code, env := a.do(t, http.MethodPost, "/api/sessions", body)
	require.Equal(t, http.StatusCreated, code)
	var s models.SessionSnapshot
	require.NoError(t, json.Unmarshal(env.Data, &s))
	return s
}

func snapshotOf(t *testing.T, env envelope) models.SessionSnapshot {
	t.Helper()
	var s models.SessionSnapshot
	require.NoError(t, json.Unmarshal(env.Data, &s))
	return s
}

func errorCode(t *testing.T, env envelope) string {
	t.Helper()
	var errs []xhttp.AppError
	require.NoError(t, json.Unmarshal(env.Data, &errs))
	require.NotEmpty(t, errs)
	return errs[0].Code
}

func TestTimeframes(t *testing.T) {
	a := newTestAPI(t, 0)
	code, env := a.do(t, http.MethodGet, "/api/timeframes", "")
	require.Equal(t, http.StatusOK, code)

	var resp models.TimeframesResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, []string{"1m", "5m", "15m", "1h", "4h", "1d"}, resp.Timeframes)
	assert.Equal(t, "15m", resp.Default)
}

func TestCreateSession_Defaults(t *testing.T) {
	a := newTestAPI(t, 0)
	s := a.create(t, "")

	assert.NotEmpty(t, s.ID)
	assert.Equal(t, "BTC", s.Base)
	assert.Equal(t, "USDT", s.Quote)
	assert.Equal(t, "15m", s.Timeframe)
	assert.Equal(t, models.ViewForm, s.View)
}

func TestCreateSession_RejectsBadTimeframe(t *testing.T) {
	a := newTestAPI(t, 0)
	code, _ := a.do(t, http.MethodPost, "/api/sessions", `{"timeframe":"2h"}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestRunAnalysis_FullFlow(t *testing.T) {
	a := newTestAPI(t, 0)
	s := a.create(t, `{"base":"eth","quote":"usdt"}`)

	code, env := a.do(t, http.MethodPost, "/api/sessions/"+s.ID+"/analysis", `{"quote":" usdc ","timeframe":"1h"}`)
	require.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, models.ViewAnalyzing, snapshotOf(t, env).View)

	var final models.SessionSnapshot
	require.Eventually(t, func() bool {
		_, env := a.do(t, http.MethodGet, "/api/sessions/"+s.ID, "")
		final = snapshotOf(t, env)
		return final.View == models.ViewResult
	}, 2*time.Second, 5*time.Millisecond)

	require.NotNil(t, final.Result)
	assert.Equal(t, "ETH/USDC", final.Result.Symbol)
	assert.Equal(t, "1h", final.Result.Timeframe)

	code, env = a.do(t, http.MethodPost, "/api/sessions/"+s.ID+"/reset", "")
	require.Equal(t, http.StatusOK, code)
	reset := snapshotOf(t, env)
	assert.Equal(t, models.ViewForm, reset.View)
	assert.Nil(t, reset.Result)
	assert.Equal(t, "ETH", reset.Base)
}

func TestRunAnalysis_EmptyField(t *testing.T) {
	a := newTestAPI(t, 0)
	s := a.create(t, "")

	code, env := a.do(t, http.MethodPost, "/api/sessions/"+s.ID+"/analysis", `{"base":"  "}`)
	require.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "ERR_EMPTY_FIELD", errorCode(t, env))

	_, env = a.do(t, http.MethodGet, "/api/sessions/"+s.ID, "")
	snap := snapshotOf(t, env)
	assert.Equal(t, models.ViewForm, snap.View)
	assert.Equal(t, usecase.EmptyFieldMessage, snap.ErrorMessage)
}

func TestRunAnalysis_ConflictWhileAnalyzing(t *testing.T) {
	a := newTestAPI(t, 0)
	s := a.create(t, "")

	code, _ := a.do(t, http.MethodPost, "/api/sessions/"+s.ID+"/analysis", "")
	require.Equal(t, http.StatusAccepted, code)

	code, env := a.do(t, http.MethodPost, "/api/sessions/"+s.ID+"/analysis", "")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "ERR_CONFLICT", errorCode(t, env))

	code, _ = a.do(t, http.MethodPut, "/api/sessions/"+s.ID+"/form", `{"base":"SOL"}`)
	assert.Equal(t, http.StatusConflict, code)
}

func TestRunAnalysis_Throttled(t *testing.T) {
	a := newTestAPI(t, 1)
	s1 := a.create(t, "")
	s2 := a.create(t, "")

	code, _ := a.do(t, http.MethodPost, "/api/sessions/"+s1.ID+"/analysis", "")
	require.Equal(t, http.StatusAccepted, code)

	code, env := a.do(t, http.MethodPost, "/api/sessions/"+s2.ID+"/analysis", "")
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "ERR_RATE_LIMITED", errorCode(t, env))
}

func TestRunAnalysis_RejectedAttemptsDoNotUseThrottle(t *testing.T) {
	a := newTestAPI(t, 2)
	s := a.create(t, "")

	for i := 0; i < 2; i++ {
		code, env := a.do(t, http.MethodPost, "/api/sessions/"+s.ID+"/analysis", `{"base":"  "}`)
		require.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "ERR_EMPTY_FIELD", errorCode(t, env))
	}

	code, _ := a.do(t, http.MethodPost, "/api/sessions/"+s.ID+"/analysis", `{"base":"ETH"}`)
	require.Equal(t, http.StatusAccepted, code)

	code, _ = a.do(t, http.MethodPost, "/api/sessions/"+s.ID+"/analysis", "")
	require.Equal(t, http.StatusConflict, code)

	other := a.create(t, "")
	code, _ = a.do(t, http.MethodPost, "/api/sessions/"+other.ID+"/analysis", "")
	assert.Equal(t, http.StatusAccepted, code, "the conflict must not have used the second slot")

	third := a.create(t, "")
	code, env := a.do(t, http.MethodPost, "/api/sessions/"+third.ID+"/analysis", "")
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "ERR_RATE_LIMITED", errorCode(t, env))
	_, env = a.do(t, http.MethodGet, "/api/sessions/"+third.ID, "")
	assert.Equal(t, models.ViewForm, snapshotOf(t, env).View)
}

func TestUpdateForm(t *testing.T) {
	a := newTestAPI(t, 0)
	s := a.create(t, "")

	code, env := a.do(t, http.MethodPut, "/api/sessions/"+s.ID+"/form", `{"base":"doge","timeframe":"4h"}`)
	require.Equal(t, http.StatusOK, code)
	snap := snapshotOf(t, env)
	assert.Equal(t, "DOGE", snap.Base)
	assert.Equal(t, "USDT", snap.Quote)
	assert.Equal(t, "4h", snap.Timeframe)

	code, env = a.do(t, http.MethodPut, "/api/sessions/"+s.ID+"/form", `{"timeframe":"3d"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, string(env.Data), "ERR_ONEOF")
}

func TestUnknownSession(t *testing.T) {
	a := newTestAPI(t, 0)

	code, env := a.do(t, http.MethodGet, "/api/sessions/nope", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "ERR_NOT_FOUND", errorCode(t, env))

	code, _ = a.do(t, http.MethodDelete, "/api/sessions/nope", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestLeaveCancelsPendingResult(t *testing.T) {
	a := newTestAPI(t, 0)
	s := a.create(t, "")
	ctrl, err := a.sessions.Get(s.ID)
	require.NoError(t, err)

	code, _ := a.do(t, http.MethodPost, "/api/sessions/"+s.ID+"/analysis", "")
	require.Equal(t, http.StatusAccepted, code)
	code, _ = a.do(t, http.MethodDelete, "/api/sessions/"+s.ID, "")
	require.Equal(t, http.StatusNoContent, code)

	time.Sleep(120 * time.Millisecond)
	assert.Nil(t, ctrl.Snapshot().Result)
	code, _ = a.do(t, http.MethodGet, "/api/sessions/"+s.ID, "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestBridge_InitSequenceAndHaptic(t *testing.T) {
	a := newTestAPI(t, 0)
	ts := httptest.NewServer(a.server.Echo())
	defer ts.Close()
	s := a.create(t, `{"base":"BTC","quote":"USDT"}`)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/sessions/" + s.ID + "/bridge"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var calls []string
	var haptic []string
	var lastState *models.SessionSnapshot
	ran := false

	deadline := time.Now().Add(3 * time.Second)
	require.NoError(t, conn.SetReadDeadline(deadline))
	for haptic == nil {
		var f hostbridge.Frame
		require.NoError(t, conn.ReadJSON(&f))
		switch f.Type {
		case hostbridge.FrameCall:
			if f.Method == hostbridge.MethodHapticNotify {
				haptic = f.Args
				continue
			}
			calls = append(calls, f.Method)
		case hostbridge.FrameState:
			lastState = f.State
			if !ran {
				ran = true
				code, _ := a.do(t, http.MethodPost, "/api/sessions/"+s.ID+"/analysis", "")
				require.Equal(t, http.StatusAccepted, code)
			}
		}
	}

	assert.Equal(t, []string{"ready", "expand", "enableClosingConfirmation"}, calls)
	require.NotNil(t, lastState)
	require.NotNil(t, lastState.Result)
	want := "success"
	if lastState.Result.Signal == models.SignalSell {
		want = "warning"
	}
	assert.Equal(t, []string{want}, haptic)
}
