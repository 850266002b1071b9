package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"FlightDelayExplorer/src/datasource"
	"FlightDelayExplorer/src/metrics"
	"FlightDelayExplorer/src/storage"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ErrNoDataset 数据集尚未加载成功
var ErrNoDataset = errors.New("dataset not loaded")

// Server 对外提供航线汇总和查询接口
type Server struct {
	store   *datasource.Store
	metrics *metrics.MetricsRegistry
	logger  *storage.Logger
	upSince time.Time
}

func NewServer(store *datasource.Store, metricsReg *metrics.MetricsRegistry, logger *storage.Logger) *Server {
	return &Server{
		store:   store,
		metrics: metricsReg,
		logger:  logger,
		upSince: time.Now(),
	}
}

// Reload 重新加载数据集并更新指标，trigger记录触发来源(startup/watch/signal/api)
func (s *Server) Reload(trigger string) (*datasource.Dataset, error) {
	start := time.Now()
	ds, err := s.store.Reload()
	if err != nil {
		s.metrics.DatasetReloads.WithLabelValues(trigger, "error").Inc()
		s.logger.Error("数据集加载失败", "trigger", trigger, "err", err)
		return nil, err
	}

	s.metrics.DatasetReloads.WithLabelValues(trigger, "ok").Inc()
	s.metrics.ObserveDataset(len(ds.Flights), len(ds.Airports), float64(ds.LoadedAt.Unix()))
	s.logger.Info("数据集加载完成",
		"trigger", trigger,
		"flights", len(ds.Flights),
		"airports", len(ds.Airports),
		"skipped_flights", ds.SkippedFlights,
		"skipped_airports", ds.SkippedAirports,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return ds, nil
}

// Routes 构建chi路由
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.metricsMiddleware)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}))
	r.Get("/logs", s.handleLogs)

	r.Route("/api", func(r chi.Router) {
		r.Get("/routes/{origin}", s.handleRoutes)
		r.Get("/origins", s.handleOrigins)
		r.Get("/origins/codes", s.handleOriginCodes)
		r.Get("/destinations", s.handleDestinations)
		r.Get("/airports/{code}", s.handleCoordinates)
		r.Get("/dataset", s.handleDataset)
		r.Post("/dataset/reload", s.handleReload)
	})

	return r
}

// metricsMiddleware 记录每个请求的指标和访问日志
func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.metrics.HTTPRequestsInFlight.Inc()
		defer s.metrics.HTTPRequestsInFlight.Dec()

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		// 路由匹配完成后才能拿到模式串
		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" {
			pattern = "unknown"
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		duration := time.Since(start)
		s.metrics.HTTPRequestsTotal.WithLabelValues(pattern, r.Method, strconv.Itoa(status)).Inc()
		s.metrics.HTTPRequestDuration.WithLabelValues(pattern, r.Method).Observe(duration.Seconds())

		if pattern != "/logs" && pattern != "/metrics" {
			s.logger.Debug("HTTP request completed",
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"endpoint", pattern,
				"status_code", status,
				"duration_ms", duration.Milliseconds(),
			)
		}
	})
}

// APIResponse 统一的响应结构
type APIResponse struct {
	Status    string      `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
}

func respondWithSuccess(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, APIResponse{
		Status:    "success",
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, APIResponse{
		Status:    "error",
		Timestamp: time.Now().UTC(),
		Error:     message,
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// snapshot 取当前数据集，未加载时直接返回503
func (s *Server) snapshot(w http.ResponseWriter) (*datasource.Dataset, bool) {
	ds := s.store.Snapshot()
	if ds == nil {
		respondWithError(w, http.StatusServiceUnavailable, ErrNoDataset.Error())
		return nil, false
	}
	return ds, true
}
