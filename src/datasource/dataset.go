package datasource

import (
	"fmt"
	"sync"
	"time"

	"FlightDelayExplorer/src/config"
	"FlightDelayExplorer/src/datasource/file"
	"FlightDelayExplorer/src/processor"
)

// Dataset 一次加载得到的航班表和机场代码表，加载后只读
type Dataset struct {
	Flights         []processor.FlightRecord
	Airports        []processor.AirportCode
	SkippedFlights  int // 出发地或目的地为空的行
	SkippedAirports int
	FlightsPath     string
	AirportsPath    string
	LoadedAt        time.Time
}

// Loader 加载数据集的函数
type Loader func() (*Dataset, error)

// FileLoader 按配置从数据目录读取两张表
func FileLoader(cfg *config.Config, dcfg *config.DataConfig) Loader {
	return func() (*Dataset, error) {
		flightsPath := cfg.FlightsPath()
		airportsPath := cfg.AirportsPath()

		flights, skippedFlights, err := file.LoadFlights(flightsPath, cfg.FlightsSheet, dcfg)
		if err != nil {
			return nil, fmt.Errorf("加载航班数据失败: %w", err)
		}

		delimiter := ';'
		if cfg.AirportsDelimiter != "" {
			delimiter = []rune(cfg.AirportsDelimiter)[0]
		}
		airports, skipped, err := file.LoadAirportCodes(airportsPath, delimiter, dcfg)
		if err != nil {
			return nil, fmt.Errorf("加载机场代码失败: %w", err)
		}

		return &Dataset{
			Flights:         flights,
			Airports:        airports,
			SkippedFlights:  skippedFlights,
			SkippedAirports: skipped,
			FlightsPath:     flightsPath,
			AirportsPath:    airportsPath,
			LoadedAt:        time.Now(),
		}, nil
	}
}

// Store 持有当前数据集快照(线程安全)
// 重新加载时整体替换快照，不修改读者已持有的数据
type Store struct {
	load Loader
	ds   *Dataset
	mu   sync.RWMutex
}

func NewStore(load Loader) *Store {
	return &Store{load: load}
}

// Snapshot 获取当前数据集，尚未加载时返回nil
func (s *Store) Snapshot() *Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ds
}

// Reload 重新加载数据集，失败时保留旧快照
func (s *Store) Reload() (*Dataset, error) {
	ds, err := s.load()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ds = ds
	return ds, nil
}
