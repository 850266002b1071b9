package datasource

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"FlightDelayExplorer/src/config"
	"FlightDelayExplorer/src/processor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLoader(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "flights.csv"),
		[]byte("origin,dest,dep_delay\nJFK,LAX,10\nEWR,ORD,3\n,ORD,4\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "airports_codes.csv"),
		[]byte("Airport Code;Latitude;Longitude\nJFK;40.6;-73.7\n"), 0644))

	cfg := &config.Config{DataDir: dir, FlightsFile: "flights.csv", AirportsFile: "airports_codes.csv", AirportsDelimiter: ";"}
	store := NewStore(FileLoader(cfg, config.DefaultDataConfig()))
	assert.Nil(t, store.Snapshot())

	ds, err := store.Reload()
	require.NoError(t, err)
	assert.Len(t, ds.Flights, 2)
	assert.Equal(t, 1, ds.SkippedFlights)
	assert.Len(t, ds.Airports, 1)
	assert.Same(t, ds, store.Snapshot())
	assert.Equal(t, filepath.Join(dir, "flights.csv"), ds.FlightsPath)
}

func TestStoreKeepsSnapshotOnFailure(t *testing.T) {
	calls := 0
	store := NewStore(func() (*Dataset, error) {
		calls++
		if calls > 1 {
			return nil, errors.New("broken file")
		}
		return &Dataset{Flights: []processor.FlightRecord{{Origin: "JFK", Dest: "LAX"}}}, nil
	})

	first, err := store.Reload()
	require.NoError(t, err)

	_, err = store.Reload()
	require.Error(t, err)
	assert.Same(t, first, store.Snapshot())
}
