package processor

import (
	"sort"
	"strings"
)

// routeAccumulator 单个目的地分区的累加器
type routeAccumulator struct {
	dest       string
	originCity string
	destCity   string

	carriers    []string
	seenCarrier map[string]struct{}

	flights   int
	sums      [NumMetrics]float64
	counts    [NumMetrics]int
	cancelled int
	diverted  int
}

func newRouteAccumulator(r *FlightRecord) *routeAccumulator {
	return &routeAccumulator{
		dest:        r.Dest,
		originCity:  r.OriginCity,
		destCity:    r.DestCity,
		seenCarrier: make(map[string]struct{}),
	}
}

func (a *routeAccumulator) add(r *FlightRecord) {
	a.flights++

	if r.Carrier != "" {
		if _, ok := a.seenCarrier[r.Carrier]; !ok {
			a.seenCarrier[r.Carrier] = struct{}{}
			a.carriers = append(a.carriers, r.Carrier)
		}
	}

	for i := 0; i < NumMetrics; i++ {
		if v := r.Value(Metric(i)); v != nil {
			a.sums[i] += *v
			a.counts[i]++
		}
	}

	a.cancelled += r.Cancelled
	a.diverted += r.Diverted
}

func (a *routeAccumulator) summary(origin string) RouteSummary {
	s := RouteSummary{
		Origin:     origin,
		Dest:       a.dest,
		OriginCity: a.originCity,
		DestCity:   a.destCity,
		Carriers:   strings.Join(a.carriers, ","),
		Flights:    a.flights,
		Cancelled:  a.cancelled,
		Diverted:   a.diverted,
	}

	for i := 0; i < NumMetrics; i++ {
		if a.counts[i] == 0 {
			continue
		}
		s.setMean(Metric(i), Float(a.sums[i]/float64(a.counts[i])))
	}

	if a.flights > 0 {
		s.CancelledRate = float64(a.cancelled) / float64(a.flights)
		s.DivertedRate = float64(a.diverted) / float64(a.flights)
	}
	return s
}

// SummarizeRoutes 汇总从origin出发的各条航线
// 实现流程:
// 1. 选出出发地与origin完全一致(区分大小写)的记录
// 2. 按目的地分区，单次遍历累加
// 3. 每个分区输出一行，数值字段取非缺失值的均值
// 4. 按目的地代码升序排列
//
// origin不存在时返回空切片，不报错
func SummarizeRoutes(flights []FlightRecord, origin string) []RouteSummary {
	partitions := make(map[string]*routeAccumulator)

	for i := range flights {
		r := &flights[i]
		if r.Origin != origin {
			continue
		}

		acc, ok := partitions[r.Dest]
		if !ok {
			acc = newRouteAccumulator(r)
			partitions[r.Dest] = acc
		}
		acc.add(r)
	}

	summaries := make([]RouteSummary, 0, len(partitions))
	for _, acc := range partitions {
		summaries = append(summaries, acc.summary(origin))
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Dest < summaries[j].Dest
	})

	return summaries
}
