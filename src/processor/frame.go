package processor

import (
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// 与原数据分析工具一致的前置列顺序
var leadingMeanColumns = []Metric{ArrDelay, DepDelay, Distance, AirTime}

// SummaryColumns 返回SummariesToDataFrame输出的列名顺序
func SummaryColumns() []string {
	cols := []string{"origin", "dest"}
	for _, m := range leadingMeanColumns {
		cols = append(cols, "mean_"+m.String())
	}
	cols = append(cols, "origin_city", "dest_city", "carriers", "flights")
	for _, m := range trailingMeanColumns() {
		cols = append(cols, "mean_"+m.String())
	}
	return append(cols, "cancelled", "diverted", "cancelled_rate", "diverted_rate")
}

func trailingMeanColumns() []Metric {
	var ms []Metric
	for _, m := range Metrics() {
		lead := false
		for _, l := range leadingMeanColumns {
			if m == l {
				lead = true
				break
			}
		}
		if !lead {
			ms = append(ms, m)
		}
	}
	return ms
}

// SummariesToDataFrame 将航线汇总转换为DataFrame，缺失均值为NaN
func SummariesToDataFrame(rows []RouteSummary) dataframe.DataFrame {
	n := len(rows)
	text := func(name string, get func(*RouteSummary) string) series.Series {
		values := make([]string, n)
		for i := range rows {
			values[i] = get(&rows[i])
		}
		return series.New(values, series.String, name)
	}
	mean := func(m Metric) series.Series {
		values := make([]string, n)
		for i := range rows {
			values[i] = formatOptional(rows[i].Mean(m))
		}
		return series.New(values, series.Float, "mean_"+m.String())
	}
	count := func(name string, get func(*RouteSummary) int) series.Series {
		values := make([]int, n)
		for i := range rows {
			values[i] = get(&rows[i])
		}
		return series.New(values, series.Int, name)
	}
	rate := func(name string, get func(*RouteSummary) float64) series.Series {
		values := make([]float64, n)
		for i := range rows {
			values[i] = get(&rows[i])
		}
		return series.New(values, series.Float, name)
	}

	cols := []series.Series{
		text("origin", func(s *RouteSummary) string { return s.Origin }),
		text("dest", func(s *RouteSummary) string { return s.Dest }),
	}
	for _, m := range leadingMeanColumns {
		cols = append(cols, mean(m))
	}
	cols = append(cols,
		text("origin_city", func(s *RouteSummary) string { return s.OriginCity }),
		text("dest_city", func(s *RouteSummary) string { return s.DestCity }),
		text("carriers", func(s *RouteSummary) string { return s.Carriers }),
		count("flights", func(s *RouteSummary) int { return s.Flights }),
	)
	for _, m := range trailingMeanColumns() {
		cols = append(cols, mean(m))
	}
	cols = append(cols,
		count("cancelled", func(s *RouteSummary) int { return s.Cancelled }),
		count("diverted", func(s *RouteSummary) int { return s.Diverted }),
		rate("cancelled_rate", func(s *RouteSummary) float64 { return s.CancelledRate }),
		rate("diverted_rate", func(s *RouteSummary) float64 { return s.DivertedRate }),
	)

	return dataframe.New(cols...)
}

func formatOptional(v *float64) string {
	if v == nil {
		return "NaN"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
