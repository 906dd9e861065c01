/*
 * HttpApi:
 * Read-only JSON / MessagePack view of the monitor plus the watering commands.
 * Handlers only work on snapshots and never touch the sensors.
 */

package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"thomas-leister.de/greenhouse/alert"
	"thomas-leister.de/greenhouse/configmanager"
	"thomas-leister.de/greenhouse/log"
	"thomas-leister.de/greenhouse/monitor"
	"thomas-leister.de/greenhouse/registry"
	"thomas-leister.de/greenhouse/statistics"
	"thomas-leister.de/greenhouse/watering"
)

// Core is the part of the monitor served by the API.
type Core interface {
	Device() string
	CurrentStatus() monitor.Status
	SensorRegistry() []registry.SensorInfo
	History() monitor.HistoryView
	Statistics() statistics.Snapshot
	WateringState() (watering.Status, bool)
	RequestManualWatering() error
	SetAutoWateringConfig(enabled bool, minThreshold, maxThreshold float64) error
	Calibration() monitor.CalibrationStatus
	RecentAlerts() []alert.Event
}

type Server struct {
	Listen string
	core   Core
}

// AutoConfigRequest is the body of PUT /api/watering/config. Omitted fields keep their current value.
type AutoConfigRequest struct {
	Enabled      *bool    `json:"enabled"`
	MinThreshold *float64 `json:"min_threshold"`
	MaxThreshold *float64 `json:"max_threshold"`
}

func New(config *configmanager.Config, core Core) *Server {
	return &Server{Listen: config.Http.Listen, core: core}
}

// Handler returns the router wrapped with CORS and access logging
func (s *Server) Handler() http.Handler {
	registerer := prometheus.NewRegistry()
	registerer.MustRegister(newCollector(s.core))

	router := mux.NewRouter()
	router.HandleFunc("/api", s.getStatus).Methods(http.MethodGet)
	router.HandleFunc("/api/sensors", s.getSensors).Methods(http.MethodGet)
	router.HandleFunc("/api/history", s.getHistory).Methods(http.MethodGet)
	router.HandleFunc("/api/statistics", s.getStatistics).Methods(http.MethodGet)
	router.HandleFunc("/api/watering", s.getWatering).Methods(http.MethodGet)
	router.HandleFunc("/api/watering/manual", s.postManualWatering).Methods(http.MethodPost)
	router.HandleFunc("/api/watering/config", s.putAutoConfig).Methods(http.MethodPut)
	router.HandleFunc("/api/calibration", s.getCalibration).Methods(http.MethodGet)
	router.HandleFunc("/api/alerts", s.getAlerts).Methods(http.MethodGet)
	router.HandleFunc("/health", s.getHealth).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(registerer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)
	accessLog := zap.NewStdLog(log.GetZapLogger()).Writer()
	return handlers.LoggingHandler(accessLog, cors(router))
}

// Run serves the API until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Infof("HTTP: Listening on %s", s.Listen)
		errChan <- server.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

func (s *Server) respond(w http.ResponseWriter, req *http.Request, status int, data any) {
	if err := writeResponse(w, req, status, data); err != nil {
		log.Warnf("HTTP: Could not write response for %s: %v", req.URL.Path, err)
	}
}

func (s *Server) fail(w http.ResponseWriter, req *http.Request, status int, err error) {
	if werr := writeError(w, req, status, err); werr != nil {
		log.Warnf("HTTP: Could not write error for %s: %v", req.URL.Path, werr)
	}
}

func (s *Server) getStatus(w http.ResponseWriter, req *http.Request) {
	s.respond(w, req, http.StatusOK, s.core.CurrentStatus())
}

func (s *Server) getSensors(w http.ResponseWriter, req *http.Request) {
	s.respond(w, req, http.StatusOK, s.core.SensorRegistry())
}

func (s *Server) getHistory(w http.ResponseWriter, req *http.Request) {
	s.respond(w, req, http.StatusOK, s.core.History())
}

func (s *Server) getStatistics(w http.ResponseWriter, req *http.Request) {
	s.respond(w, req, http.StatusOK, s.core.Statistics())
}

func (s *Server) getWatering(w http.ResponseWriter, req *http.Request) {
	status, ok := s.core.WateringState()
	if !ok {
		s.fail(w, req, http.StatusNotFound, monitor.ErrWateringDisabled)
		return
	}
	s.respond(w, req, http.StatusOK, status)
}

func (s *Server) postManualWatering(w http.ResponseWriter, req *http.Request) {
	if err := s.core.RequestManualWatering(); err != nil {
		s.fail(w, req, wateringErrorStatus(err), err)
		return
	}
	status, _ := s.core.WateringState()
	s.respond(w, req, http.StatusAccepted, status)
}

func (s *Server) putAutoConfig(w http.ResponseWriter, req *http.Request) {
	current, ok := s.core.WateringState()
	if !ok {
		s.fail(w, req, http.StatusNotFound, monitor.ErrWateringDisabled)
		return
	}

	var body AutoConfigRequest
	decoder := json.NewDecoder(req.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		s.fail(w, req, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	enabled, min, max := current.AutoEnabled, current.MinThreshold, current.MaxThreshold
	if body.Enabled != nil {
		enabled = *body.Enabled
	}
	if body.MinThreshold != nil {
		min = *body.MinThreshold
	}
	if body.MaxThreshold != nil {
		max = *body.MaxThreshold
	}

	if err := s.core.SetAutoWateringConfig(enabled, min, max); err != nil {
		s.fail(w, req, wateringErrorStatus(err), err)
		return
	}
	status, _ := s.core.WateringState()
	s.respond(w, req, http.StatusOK, status)
}

func (s *Server) getCalibration(w http.ResponseWriter, req *http.Request) {
	s.respond(w, req, http.StatusOK, s.core.Calibration())
}

func (s *Server) getAlerts(w http.ResponseWriter, req *http.Request) {
	s.respond(w, req, http.StatusOK, s.core.RecentAlerts())
}

func (s *Server) getHealth(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK\nuptime: %ds\n", s.core.CurrentStatus().UptimeSeconds)
}

func wateringErrorStatus(err error) int {
	switch {
	case errors.Is(err, monitor.ErrWateringDisabled):
		return http.StatusNotFound
	case errors.Is(err, watering.ErrAlreadyWatering):
		return http.StatusConflict
	case errors.Is(err, watering.ErrInvalidThresholds):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
