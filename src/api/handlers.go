package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"FlightDelayExplorer/src/datasource"
	"FlightDelayExplorer/src/processor"

	"github.com/go-chi/chi/v5"
)

// DatasetInfo /api/dataset 返回的数据集概况
type DatasetInfo struct {
	Flights         int       `json:"flights"`
	Airports        int       `json:"airports"`
	SkippedFlights  int       `json:"skipped_flights"`
	SkippedAirports int       `json:"skipped_airports"`
	FlightsPath     string    `json:"flights_path"`
	AirportsPath    string    `json:"airports_path"`
	LoadedAt        time.Time `json:"loaded_at"`
}

// handleHealth GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if s.store.Snapshot() == nil {
		status = "no_dataset"
	}
	respondWithSuccess(w, map[string]string{
		"status": status,
		"uptime": time.Since(s.upSince).Round(time.Second).String(),
	})
}

// handleRoutes GET /api/routes/{origin}
// 未知出发地返回空列表而不是404
func (s *Server) handleRoutes(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.snapshot(w)
	if !ok {
		return
	}

	origin := chi.URLParam(r, "origin")
	start := time.Now()
	rows := processor.SummarizeRoutes(ds.Flights, origin)
	s.metrics.SummaryDuration.Observe(time.Since(start).Seconds())
	s.metrics.SummaryRoutes.Observe(float64(len(rows)))

	respondWithSuccess(w, rows)
}

// handleOrigins GET /api/origins
func (s *Server) handleOrigins(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.snapshot(w)
	if !ok {
		return
	}
	respondWithSuccess(w, processor.DistinctOrigins(ds.Flights))
}

// handleOriginCodes GET /api/origins/codes
func (s *Server) handleOriginCodes(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.snapshot(w)
	if !ok {
		return
	}
	respondWithSuccess(w, processor.DistinctOriginCodes(ds.Flights))
}

// handleDestinations GET /api/destinations
func (s *Server) handleDestinations(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.snapshot(w)
	if !ok {
		return
	}
	respondWithSuccess(w, processor.DistinctDestinations(ds.Flights))
}

// handleCoordinates GET /api/airports/{code}?strict=1
// strict时代码重复返回409，否则取第一条记录
func (s *Server) handleCoordinates(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.snapshot(w)
	if !ok {
		return
	}

	policy := processor.FirstMatch
	if strict, _ := strconv.ParseBool(r.URL.Query().Get("strict")); strict {
		policy = processor.RejectDuplicates
	}

	code := chi.URLParam(r, "code")
	coords, err := processor.CoordinatesWithPolicy(ds.Airports, code, policy)
	switch {
	case errors.Is(err, processor.ErrNotFound):
		s.metrics.LookupErrors.WithLabelValues("not_found").Inc()
		respondWithError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, processor.ErrAmbiguous):
		s.metrics.LookupErrors.WithLabelValues("ambiguous").Inc()
		respondWithError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondWithSuccess(w, coords)
}

// handleDataset GET /api/dataset
func (s *Server) handleDataset(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.snapshot(w)
	if !ok {
		return
	}
	respondWithSuccess(w, datasetInfo(ds))
}

// handleReload POST /api/dataset/reload
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	ds, err := s.Reload("api")
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("reload failed: %v", err))
		return
	}
	respondWithSuccess(w, datasetInfo(ds))
}

func datasetInfo(ds *datasource.Dataset) DatasetInfo {
	return DatasetInfo{
		Flights:         len(ds.Flights),
		Airports:        len(ds.Airports),
		SkippedFlights:  ds.SkippedFlights,
		SkippedAirports: ds.SkippedAirports,
		FlightsPath:     ds.FlightsPath,
		AirportsPath:    ds.AirportsPath,
		LoadedAt:        ds.LoadedAt,
	}
}

// handleLogs GET /logs 实时输出日志
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Transfer-Encoding", "chunked")

	// 创建日志订阅通道
	logChan := s.logger.Subscribe()
	defer s.logger.Unsubscribe(logChan)

	for {
		select {
		case msg, ok := <-logChan:
			if !ok {
				return
			}
			if _, err := fmt.Fprintln(w, msg); err != nil {
				// 客户端断开连接
				return
			}
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		case <-r.Context().Done():
			return
		}
	}
}
