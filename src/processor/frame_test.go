package processor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummariesToDataFrame(t *testing.T) {
	rows := SummarizeRoutes(jfkFlights(), "JFK")
	df := SummariesToDataFrame(rows)
	require.NoError(t, df.Err)

	assert.Equal(t, SummaryColumns(), df.Names())
	assert.Equal(t, 2, df.Nrow())
	assert.Equal(t, []string{"origin", "dest", "mean_arr_delay", "mean_dep_delay", "mean_distance", "mean_air_time"}, df.Names()[:6])

	assert.Equal(t, "LAX", df.Col("dest").Elem(0).String())
	assert.InDelta(t, 2.5, df.Col("mean_dep_delay").Elem(0).Float(), 1e-9)
	assert.True(t, df.Col("mean_dep_delay").Elem(1).IsNA())
	assert.Equal(t, 1, int(df.Col("cancelled").Elem(1).Float()))
}

func TestSummariesToDataFrameEmpty(t *testing.T) {
	df := SummariesToDataFrame(nil)
	require.NoError(t, df.Err)
	assert.Equal(t, 0, df.Nrow())
	assert.Len(t, df.Names(), len(SummaryColumns()))
}
