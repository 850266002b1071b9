// data.go
package processor

// Metric 航班记录中可求均值的数值字段
type Metric int

const (
	SchedDepTime     Metric = iota // 计划起飞时刻
	DepTime                        // 实际起飞时刻
	DepDelay                       // 起飞延误(分钟，负数为提前)
	TaxiOut                        // 滑出时间
	WheelsOff                      // 离地时刻
	WheelsOn                       // 接地时刻
	TaxiIn                         // 滑入时间
	SchedArrTime                   // 计划到达时刻
	ArrTime                        // 实际到达时刻
	ArrDelay                       // 到达延误(分钟，负数为提前)
	SchedElapsedTime               // 计划航程时间
	ElapsedTime                    // 实际航程时间
	AirTime                        // 空中时间
	Distance                       // 距离

	NumMetrics int = iota
)

var metricNames = [NumMetrics]string{
	"sched_dep_time",
	"dep_time",
	"dep_delay",
	"taxi_out",
	"wheels_off",
	"wheels_on",
	"taxi_in",
	"sched_arr_time",
	"arr_time",
	"arr_delay",
	"sched_elapsed_time",
	"elapsed_time",
	"air_time",
	"distance",
}

// Metrics 按定义顺序返回全部数值字段
func Metrics() []Metric {
	ms := make([]Metric, NumMetrics)
	for i := range ms {
		ms[i] = Metric(i)
	}
	return ms
}

func (m Metric) String() string {
	if m < 0 || int(m) >= NumMetrics {
		return "unknown"
	}
	return metricNames[m]
}

// FlightRecord 单条航班记录
// 数值字段为nil表示缺失(例如取消航班没有起飞延误)，不等同于0
type FlightRecord struct {
	Origin     string `json:"origin"`
	Dest       string `json:"dest"`
	OriginCity string `json:"origin_city,omitempty"`
	DestCity   string `json:"dest_city,omitempty"`
	Carrier    string `json:"carrier,omitempty"`

	SchedDepTime     *float64 `json:"sched_dep_time"`
	DepTime          *float64 `json:"dep_time"`
	DepDelay         *float64 `json:"dep_delay"`
	TaxiOut          *float64 `json:"taxi_out"`
	WheelsOff        *float64 `json:"wheels_off"`
	WheelsOn         *float64 `json:"wheels_on"`
	TaxiIn           *float64 `json:"taxi_in"`
	SchedArrTime     *float64 `json:"sched_arr_time"`
	ArrTime          *float64 `json:"arr_time"`
	ArrDelay         *float64 `json:"arr_delay"`
	SchedElapsedTime *float64 `json:"sched_elapsed_time"`
	ElapsedTime      *float64 `json:"elapsed_time"`
	AirTime          *float64 `json:"air_time"`
	Distance         *float64 `json:"distance"`

	Cancelled int `json:"cancelled"` // 0/1
	Diverted  int `json:"diverted"`  // 0/1
}

// Value 返回指定数值字段，缺失时为nil
func (r *FlightRecord) Value(m Metric) *float64 {
	switch m {
	case SchedDepTime:
		return r.SchedDepTime
	case DepTime:
		return r.DepTime
	case DepDelay:
		return r.DepDelay
	case TaxiOut:
		return r.TaxiOut
	case WheelsOff:
		return r.WheelsOff
	case WheelsOn:
		return r.WheelsOn
	case TaxiIn:
		return r.TaxiIn
	case SchedArrTime:
		return r.SchedArrTime
	case ArrTime:
		return r.ArrTime
	case ArrDelay:
		return r.ArrDelay
	case SchedElapsedTime:
		return r.SchedElapsedTime
	case ElapsedTime:
		return r.ElapsedTime
	case AirTime:
		return r.AirTime
	case Distance:
		return r.Distance
	}
	return nil
}

// SetValue 设置指定数值字段，v为nil表示缺失
func (r *FlightRecord) SetValue(m Metric, v *float64) {
	switch m {
	case SchedDepTime:
		r.SchedDepTime = v
	case DepTime:
		r.DepTime = v
	case DepDelay:
		r.DepDelay = v
	case TaxiOut:
		r.TaxiOut = v
	case WheelsOff:
		r.WheelsOff = v
	case WheelsOn:
		r.WheelsOn = v
	case TaxiIn:
		r.TaxiIn = v
	case SchedArrTime:
		r.SchedArrTime = v
	case ArrTime:
		r.ArrTime = v
	case ArrDelay:
		r.ArrDelay = v
	case SchedElapsedTime:
		r.SchedElapsedTime = v
	case ElapsedTime:
		r.ElapsedTime = v
	case AirTime:
		r.AirTime = v
	case Distance:
		r.Distance = v
	}
}

// AirportCode 机场代码参考表的一行
type AirportCode struct {
	Code      string  `json:"code"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// LatLon 机场坐标(十进制度，不做范围校验)
type LatLon struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// RouteSummary 某出发地到单个目的地的航线汇总
type RouteSummary struct {
	Origin     string `json:"origin"`
	Dest       string `json:"dest"`
	OriginCity string `json:"origin_city"`
	DestCity   string `json:"dest_city"`
	Carriers   string `json:"carriers"`
	Flights    int    `json:"flights"`

	MeanSchedDepTime     *float64 `json:"mean_sched_dep_time"`
	MeanDepTime          *float64 `json:"mean_dep_time"`
	MeanDepDelay         *float64 `json:"mean_dep_delay"`
	MeanTaxiOut          *float64 `json:"mean_taxi_out"`
	MeanWheelsOff        *float64 `json:"mean_wheels_off"`
	MeanWheelsOn         *float64 `json:"mean_wheels_on"`
	MeanTaxiIn           *float64 `json:"mean_taxi_in"`
	MeanSchedArrTime     *float64 `json:"mean_sched_arr_time"`
	MeanArrTime          *float64 `json:"mean_arr_time"`
	MeanArrDelay         *float64 `json:"mean_arr_delay"`
	MeanSchedElapsedTime *float64 `json:"mean_sched_elapsed_time"`
	MeanElapsedTime      *float64 `json:"mean_elapsed_time"`
	MeanAirTime          *float64 `json:"mean_air_time"`
	MeanDistance         *float64 `json:"mean_distance"`

	// 取消/备降同时给出次数和比例，由调用方选择口径
	Cancelled     int     `json:"cancelled"`
	Diverted      int     `json:"diverted"`
	CancelledRate float64 `json:"cancelled_rate"`
	DivertedRate  float64 `json:"diverted_rate"`
}

// Mean 返回指定字段的均值，全部缺失时为nil
func (s *RouteSummary) Mean(m Metric) *float64 {
	switch m {
	case SchedDepTime:
		return s.MeanSchedDepTime
	case DepTime:
		return s.MeanDepTime
	case DepDelay:
		return s.MeanDepDelay
	case TaxiOut:
		return s.MeanTaxiOut
	case WheelsOff:
		return s.MeanWheelsOff
	case WheelsOn:
		return s.MeanWheelsOn
	case TaxiIn:
		return s.MeanTaxiIn
	case SchedArrTime:
		return s.MeanSchedArrTime
	case ArrTime:
		return s.MeanArrTime
	case ArrDelay:
		return s.MeanArrDelay
	case SchedElapsedTime:
		return s.MeanSchedElapsedTime
	case ElapsedTime:
		return s.MeanElapsedTime
	case AirTime:
		return s.MeanAirTime
	case Distance:
		return s.MeanDistance
	}
	return nil
}

func (s *RouteSummary) setMean(m Metric, v *float64) {
	switch m {
	case SchedDepTime:
		s.MeanSchedDepTime = v
	case DepTime:
		s.MeanDepTime = v
	case DepDelay:
		s.MeanDepDelay = v
	case TaxiOut:
		s.MeanTaxiOut = v
	case WheelsOff:
		s.MeanWheelsOff = v
	case WheelsOn:
		s.MeanWheelsOn = v
	case TaxiIn:
		s.MeanTaxiIn = v
	case SchedArrTime:
		s.MeanSchedArrTime = v
	case ArrTime:
		s.MeanArrTime = v
	case ArrDelay:
		s.MeanArrDelay = v
	case SchedElapsedTime:
		s.MeanSchedElapsedTime = v
	case ElapsedTime:
		s.MeanElapsedTime = v
	case AirTime:
		s.MeanAirTime = v
	case Distance:
		s.MeanDistance = v
	}
}

// Float 返回v的指针，便于构造记录
func Float(v float64) *float64 {
	return &v
}
