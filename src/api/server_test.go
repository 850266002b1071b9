package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"FlightDelayExplorer/src/datasource"
	"FlightDelayExplorer/src/metrics"
	"FlightDelayExplorer/src/processor"
	"FlightDelayExplorer/src/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDataset() *datasource.Dataset {
	return &datasource.Dataset{
		Flights: []processor.FlightRecord{
			{Origin: "JFK", Dest: "LAX", OriginCity: "New York, NY", DepDelay: processor.Float(10)},
			{Origin: "JFK", Dest: "LAX", OriginCity: "New York, NY", DepDelay: processor.Float(-5)},
			{Origin: "JFK", Dest: "SFO", OriginCity: "New York, NY", Cancelled: 1},
			{Origin: "EWR", Dest: "ORD", OriginCity: "Newark, NJ", DepDelay: processor.Float(3)},
		},
		Airports: []processor.AirportCode{
			{Code: "JFK", Latitude: 40.64, Longitude: -73.78},
			{Code: "DUP", Latitude: 1, Longitude: 2},
			{Code: "DUP", Latitude: 3, Longitude: 4},
		},
	}
}

func newTestServer(t *testing.T, load datasource.Loader, preload bool) (*Server, http.Handler) {
	t.Helper()
	logger, err := storage.NewLogger(filepath.Join(t.TempDir(), "app.log"), "development")
	require.NoError(t, err)
	t.Cleanup(func() { _ = logger.Close() })

	srv := NewServer(datasource.NewStore(load), metrics.NewMetricsRegistry(), logger)
	if preload {
		_, err := srv.Reload("startup")
		require.NoError(t, err)
	}
	return srv, srv.Routes()
}

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error"`
}

func get(t *testing.T, h http.Handler, method, path string) (int, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func staticLoader() datasource.Loader {
	return func() (*datasource.Dataset, error) { return testDataset(), nil }
}

func TestRoutesEndpoint(t *testing.T) {
	_, h := newTestServer(t, staticLoader(), true)

	code, env := get(t, h, http.MethodGet, "/api/routes/JFK")
	require.Equal(t, http.StatusOK, code)

	var rows []processor.RouteSummary
	require.NoError(t, json.Unmarshal(env.Data, &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "LAX", rows[0].Dest)
	assert.InDelta(t, 2.5, *rows[0].MeanDepDelay, 1e-9)
	assert.Nil(t, rows[1].MeanDepDelay)
	assert.Equal(t, 1, rows[1].Cancelled)

	code, env = get(t, h, http.MethodGet, "/api/routes/BOS")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `[]`, string(env.Data))
}

func TestLookupEndpoints(t *testing.T) {
	_, h := newTestServer(t, staticLoader(), true)

	_, env := get(t, h, http.MethodGet, "/api/origins")
	assert.JSONEq(t, `["JFK, New York, NY", "EWR, Newark, NJ"]`, string(env.Data))

	_, env = get(t, h, http.MethodGet, "/api/origins/codes")
	assert.JSONEq(t, `["JFK", "EWR"]`, string(env.Data))

	_, env = get(t, h, http.MethodGet, "/api/destinations")
	assert.JSONEq(t, `["LAX", "SFO", "ORD"]`, string(env.Data))
}

func TestCoordinatesEndpoint(t *testing.T) {
	_, h := newTestServer(t, staticLoader(), true)

	code, env := get(t, h, http.MethodGet, "/api/airports/JFK")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"latitude": 40.64, "longitude": -73.78}`, string(env.Data))

	code, env = get(t, h, http.MethodGet, "/api/airports/LAX")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "error", env.Status)
	assert.Contains(t, env.Error, "LAX")

	code, env = get(t, h, http.MethodGet, "/api/airports/DUP")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"latitude": 1, "longitude": 2}`, string(env.Data))

	code, _ = get(t, h, http.MethodGet, "/api/airports/DUP?strict=1")
	assert.Equal(t, http.StatusConflict, code)
}

func TestNoDataset(t *testing.T) {
	_, h := newTestServer(t, func() (*datasource.Dataset, error) {
		return nil, errors.New("missing file")
	}, false)

	code, _ := get(t, h, http.MethodGet, "/api/routes/JFK")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	code, env := get(t, h, http.MethodPost, "/api/dataset/reload")
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Contains(t, env.Error, "missing file")

	code, env = get(t, h, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), "no_dataset")
}

func TestReloadEndpoint(t *testing.T) {
	_, h := newTestServer(t, staticLoader(), false)

	code, env := get(t, h, http.MethodPost, "/api/dataset/reload")
	require.Equal(t, http.StatusOK, code)

	var info DatasetInfo
	require.NoError(t, json.Unmarshal(env.Data, &info))
	assert.Equal(t, 4, info.Flights)
	assert.Equal(t, 3, info.Airports)

	code, _ = get(t, h, http.MethodGet, "/api/dataset")
	assert.Equal(t, http.StatusOK, code)
}

func TestMetricsEndpoint(t *testing.T) {
	_, h := newTestServer(t, staticLoader(), true)
	get(t, h, http.MethodGet, "/api/routes/JFK")
	get(t, h, http.MethodGet, "/api/airports/NOPE")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `fdx_dataset_rows{table="flights"} 4`)
	assert.Contains(t, body, `fdx_airport_lookup_errors_total{kind="not_found"} 1`)
	assert.True(t, strings.Contains(body, `endpoint="/api/routes/{origin}"`))
}
