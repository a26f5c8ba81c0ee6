package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/roadsim-backend-go/internal/config"
	"github.com/jengzang/roadsim-backend-go/internal/database"
	"github.com/jengzang/roadsim-backend-go/internal/middleware"
	"github.com/jengzang/roadsim-backend-go/internal/models"
	"github.com/jengzang/roadsim-backend-go/internal/repository"
	"github.com/jengzang/roadsim-backend-go/internal/service"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	t      *testing.T
	router *gin.Engine
	jobs   *service.JobService
	token  string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := database.Open(database.Config{Path: database.MemoryPath})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{JWTSecret: testSecret, RateLimit: 100, Sim: config.DefaultSimulation()}
	networks := service.NewNetworkService(repository.NewNetworkRepository(db))
	runs := service.NewRunService(repository.NewRunRepository(db), networks, cfg.Sim)
	jobs := service.NewJobService(repository.NewJobRepository(db), runs)
	t.Cleanup(jobs.Wait)

	token, err := middleware.IssueToken(testSecret, "tester", time.Hour)
	require.NoError(t, err)
	return &testServer{t: t, router: SetupRouter(cfg, networks, runs, jobs), jobs: jobs, token: token}
}

func (s *testServer) do(method, path string, body []byte, authorized bool) (int, envelope) {
	s.t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authorized {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

// lineNetwork is nodes 1..4 along the x axis, 10m apart
func lineNetwork(t *testing.T) []byte {
	t.Helper()
	fc := geojson.NewFeatureCollection()
	for i := 1; i <= 4; i++ {
		f := geojson.NewFeature(orb.Point{float64(i-1) * 10, 0})
		f.Properties["id"] = i
		fc.Append(f)
	}
	for i := 1; i < 4; i++ {
		f := geojson.NewFeature(orb.LineString{{float64(i-1) * 10, 0}, {float64(i) * 10, 0}})
		f.Properties["u"] = i
		f.Properties["v"] = i + 1
		fc.Append(f)
	}
	body, err := fc.MarshalJSON()
	require.NoError(t, err)
	return body
}

func (s *testServer) importLine() models.Network {
	s.t.Helper()
	code, env := s.do(http.MethodPost, "/api/v1/networks?name=line", lineNetwork(s.t), true)
	require.Equal(s.t, http.StatusCreated, code, env.Error)
	var network models.Network
	require.NoError(s.t, json.Unmarshal(env.Data, &network))
	return network
}

func (s *testServer) createRun(networkID int64) models.RunSnapshot {
	s.t.Helper()
	body := fmt.Sprintf(`{"network_id": %d, "vehicles": 1, "dt": 0.1}`, networkID)
	code, env := s.do(http.MethodPost, "/api/v1/runs", []byte(body), true)
	require.Equal(s.t, http.StatusCreated, code, env.Error)
	var snap models.RunSnapshot
	require.NoError(s.t, json.Unmarshal(env.Data, &snap))
	return snap
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

func TestNetworks(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(http.MethodPost, "/api/v1/networks", lineNetwork(t), false)
	assert.Equal(t, http.StatusUnauthorized, code)

	network := s.importLine()
	assert.Equal(t, "line", network.Name)
	assert.Equal(t, 4, network.NodeCount)

	code, env := s.do(http.MethodGet, fmt.Sprintf("/api/v1/networks/%d", network.ID), nil, false)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"name":"line"`)

	code, _ = s.do(http.MethodGet, "/api/v1/networks/999", nil, false)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = s.do(http.MethodGet, "/api/v1/networks/abc", nil, false)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = s.do(http.MethodPost, "/api/v1/networks", []byte(`{"type":"Point"}`), true)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestRunLifecycle(t *testing.T) {
	s := newTestServer(t)
	network := s.importLine()

	snap := s.createRun(network.ID)
	require.Len(t, snap.Vehicles, 1)
	assert.Equal(t, int64(0), snap.Tick)
	assert.Equal(t, []int64{1, 2, 3, 4}, snap.Vehicles[0].Route)

	code, env := s.do(http.MethodPost, "/api/v1/runs/"+snap.RunID+"/step", []byte(`{"ticks": 5}`), true)
	require.Equal(t, http.StatusOK, code, env.Error)
	var stepped models.RunSnapshot
	require.NoError(t, json.Unmarshal(env.Data, &stepped))
	assert.Equal(t, int64(5), stepped.Tick)
	assert.InDelta(t, 0.5, stepped.Elapsed, 1e-9)

	code, env = s.do(http.MethodPost, "/api/v1/runs/"+snap.RunID+"/step", nil, true)
	require.Equal(t, http.StatusOK, code, env.Error)
	require.NoError(t, json.Unmarshal(env.Data, &stepped))
	assert.Equal(t, int64(6), stepped.Tick, "an empty body steps once")

	code, _ = s.do(http.MethodPost, "/api/v1/runs/"+snap.RunID+"/step", []byte(`{"ticks": -1}`), true)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = s.do(http.MethodGet, "/api/v1/runs/"+snap.RunID+"/stats", nil, false)
	require.Equal(t, http.StatusOK, code)
	var st models.RunStats
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.Equal(t, int64(6), st.Tick)
	assert.Greater(t, st.MeanSpeed, 0.0)

	code, _ = s.do(http.MethodDelete, "/api/v1/runs/"+snap.RunID, nil, true)
	assert.Equal(t, http.StatusOK, code)
	code, _ = s.do(http.MethodGet, "/api/v1/runs/"+snap.RunID, nil, false)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestCreateRun_Errors(t *testing.T) {
	s := newTestServer(t)
	network := s.importLine()

	code, _ := s.do(http.MethodPost, "/api/v1/runs", []byte(`{"network_id": 1}`), true)
	assert.Equal(t, http.StatusBadRequest, code, "vehicles is required")

	code, _ = s.do(http.MethodPost, "/api/v1/runs", []byte(`{"network_id": 42, "vehicles": 1}`), true)
	assert.Equal(t, http.StatusNotFound, code)

	body := fmt.Sprintf(`{"network_id": %d, "vehicles": 5}`, network.ID)
	code, _ = s.do(http.MethodPost, "/api/v1/runs", []byte(body), true)
	assert.Equal(t, http.StatusBadRequest, code, "only one cul-de-sac is not the destination")

	body = fmt.Sprintf(`{"network_id": %d, "vehicles": 1, "destination": 77}`, network.ID)
	code, _ = s.do(http.MethodPost, "/api/v1/runs", []byte(body), true)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestStream(t *testing.T) {
	s := newTestServer(t)
	network := s.importLine()
	snap := s.createRun(network.ID)

	srv := httptest.NewServer(s.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/runs/" + snap.RunID + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var got models.RunSnapshot
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, int64(0), got.Tick)

	code, _ := s.do(http.MethodPost, "/api/v1/runs/"+snap.RunID+"/step", []byte(`{"ticks": 3}`), true)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, int64(3), got.Tick)

	code, _ = s.do(http.MethodDelete, "/api/v1/runs/"+snap.RunID, nil, true)
	require.Equal(t, http.StatusOK, code)
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestJobs(t *testing.T) {
	s := newTestServer(t)
	network := s.importLine()
	snap := s.createRun(network.ID)

	code, env := s.do(http.MethodPost, "/api/v1/runs/"+snap.RunID+"/jobs", []byte(`{"ticks": 250}`), true)
	require.Equal(t, http.StatusCreated, code, env.Error)
	var job models.Job
	require.NoError(t, json.Unmarshal(env.Data, &job))
	assert.Equal(t, "tester", job.CreatedBy)
	s.jobs.Wait()

	code, env = s.do(http.MethodGet, fmt.Sprintf("/api/v1/jobs/%d", job.ID), nil, false)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &job))
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.Equal(t, 250, job.ProcessedTicks)

	code, env = s.do(http.MethodGet, "/api/v1/runs/"+snap.RunID+"/jobs?status=completed", nil, false)
	require.Equal(t, http.StatusOK, code)
	var listed struct {
		Jobs []models.Job `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &listed))
	assert.Len(t, listed.Jobs, 1)

	code, _ = s.do(http.MethodDelete, fmt.Sprintf("/api/v1/jobs/%d", job.ID), nil, true)
	assert.Equal(t, http.StatusConflict, code, "a completed job cannot be cancelled")
	code, _ = s.do(http.MethodGet, "/api/v1/jobs/999", nil, false)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = s.do(http.MethodPost, "/api/v1/runs/nope/jobs", []byte(`{"ticks": 5}`), true)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = s.do(http.MethodPost, "/api/v1/runs/"+snap.RunID+"/jobs", []byte(`{}`), true)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestStream_UnknownRun(t *testing.T) {
	s := newTestServer(t)
	code, _ := s.do(http.MethodGet, "/api/v1/runs/nope/stream", nil, false)
	assert.Equal(t, http.StatusNotFound, code)
}
