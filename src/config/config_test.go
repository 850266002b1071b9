package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigs(t *testing.T, cfg, dcfg string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(cfg), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dataconfig.json"), []byte(dcfg), 0644))
	return dir
}

func TestLoadConfigs(t *testing.T) {
	dir := writeConfigs(t, `{
		"data_dir": "/srv/flights",
		"flights_file": "nyc.csv",
		"log_max_size": "10 * 1024 * 1024",
		"http": {"addr": ":9090"},
		"report": {"spec": "@every 1h", "origins": ["JFK", "EWR"]},
		"email": {"server": "imap.example.com:993", "check_interval": "2m"}
	}`, `{
		"flightData": {"carrier": "OP_UNIQUE_CARRIER"},
		"header_row": 1
	}`)

	cfg, dcfg, err := loadConfigs(dir, "config.json", "dataconfig.json")
	require.NoError(t, err)

	assert.Equal(t, "/srv/flights", cfg.DataDir)
	assert.Equal(t, filepath.Join("/srv/flights", "nyc.csv"), cfg.FlightsPath())
	assert.Equal(t, filepath.Join("/srv/flights", "airports_codes.csv"), cfg.AirportsPath())
	assert.Equal(t, ";", cfg.AirportsDelimiter)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, []string{"JFK", "EWR"}, cfg.Report.Origins)
	assert.Equal(t, filepath.Join("/srv/flights", "reports"), cfg.Report.OutputDir)
	assert.Equal(t, 2*time.Minute, time.Duration(cfg.Email.CheckInterval))

	assert.Equal(t, "OP_UNIQUE_CARRIER", dcfg.GetFlightData("carrier"))
	assert.Equal(t, "dep_delay", dcfg.GetFlightData("dep_delay"))
	assert.Equal(t, "Airport Code", dcfg.GetAirportData("code"))
	assert.Equal(t, 1, dcfg.HeaderRow)
}

func TestLoadConfigsErrors(t *testing.T) {
	_, _, err := loadConfigs(t.TempDir(), "config.json", "dataconfig.json")
	assert.Error(t, err)

	dir := writeConfigs(t, `{not json`, `{"flightData": 3}`)
	_, _, err = loadConfigs(dir, "config.json", "dataconfig.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Config")
	assert.Contains(t, err.Error(), "DataConfig")
}

func TestEnvOverrides(t *testing.T) {
	dir := writeConfigs(t, `{"data_dir": "data"}`, `{}`)
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("FDX_HTTP_ADDR=:7070\nFDX_WATCH=true\n"), 0644))

	t.Setenv("FDX_DATA_DIR", "/override")
	t.Setenv("FDX_HTTP_ADDR", "")
	t.Setenv("FDX_WATCH", "")
	os.Unsetenv("FDX_HTTP_ADDR")
	os.Unsetenv("FDX_WATCH")

	require.NoError(t, LoadEnv(envFile))

	cfg, _, err := loadConfigs(dir, "config.json", "dataconfig.json")
	require.NoError(t, err)
	assert.Equal(t, "/override", cfg.DataDir)
	assert.Equal(t, ":7070", cfg.HTTP.Addr)
	assert.True(t, cfg.Watch)

	assert.NoError(t, LoadEnv(filepath.Join(dir, "missing.env")))
}

func TestDuration(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalJSON([]byte(`"90s"`)))
	assert.Equal(t, 90*time.Second, time.Duration(d))

	out, err := d.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"1m30s"`, string(out))

	assert.Error(t, d.UnmarshalJSON([]byte(`"soon"`)))
}

func TestDefaultDataConfig(t *testing.T) {
	dc := DefaultDataConfig()
	assert.Equal(t, "origin", dc.GetFlightData("origin"))
	assert.Equal(t, "Longitude", dc.GetAirportData("longitude"))

	dc.SetFlightData("origin", "ORIGIN")
	assert.Equal(t, "ORIGIN", dc.GetFlightData("origin"))
}
