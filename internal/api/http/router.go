// Package apihttp exposes the farm over HTTP.
package apihttp

import (
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"solarfarm-cloud/internal/audit"
	"solarfarm-cloud/internal/auth"
	"solarfarm-cloud/internal/farm/application"
	"solarfarm-cloud/internal/farm/infrastructure/memory"
	"solarfarm-cloud/internal/feed"
)

// Version is reported by the identity endpoint.
const Version = "2.0.0"

// Deps are the services behind the API. A nil Audit falls back to an in-memory log.
type Deps struct {
	Store     *memory.Store
	Analytics *application.AnalyticsService
	Cleaning  *application.CleaningService
	Sensors   *application.SensorService
	Alerts    *application.AlertService
	Publisher *feed.Publisher
	Audit     audit.Log
	Logger    *log.Logger
}

// Options tune the HTTP surface.
type Options struct {
	AreaSizeKm     float64
	JWTSecret      string
	AllowedOrigins []string
}

// NewRouter builds the full handler chain: access log, CORS, auth, routes.
func NewRouter(deps Deps, opts Options) (http.Handler, error) {
	h, err := newHandler(deps, opts)
	if err != nil {
		return nil, err
	}

	r := mux.NewRouter()
	r.HandleFunc("/", h.root).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.Handle("/ws", feed.NewWebSocketHandler(deps.Publisher, deps.Logger))

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/sectors", h.sectors).Methods(http.MethodGet)
	api.HandleFunc("/sectors/{sectorId}/panels", h.sectorPanels).Methods(http.MethodGet)
	api.HandleFunc("/sectors/{sectorId}/clean", h.cleanSector).Methods(http.MethodPost)
	api.HandleFunc("/panels", h.panels).Methods(http.MethodGet)
	api.HandleFunc("/panels/{panelId}", h.panel).Methods(http.MethodGet)
	api.HandleFunc("/panels/{panelId}/cleaning-history", h.cleaningHistory).Methods(http.MethodGet)
	api.HandleFunc("/statistics", h.statistics).Methods(http.MethodGet)
	api.HandleFunc("/clean/{panelId}", h.cleanPanel).Methods(http.MethodPost)
	api.HandleFunc("/predict/sector/{sectorId}", h.predictSector).Methods(http.MethodPost)
	api.HandleFunc("/predict", h.predictPanel).Methods(http.MethodPost)
	api.HandleFunc("/sensor-data", h.sensorData).Methods(http.MethodPost)
	api.HandleFunc("/sensor-history/{panelId}", h.sensorHistory).Methods(http.MethodGet)
	api.HandleFunc("/analytics/{panelId}", h.panelAnalytics).Methods(http.MethodGet)
	api.HandleFunc("/alerts", h.alerts).Methods(http.MethodGet)
	api.HandleFunc("/alerts/summary", h.alertSummary).Methods(http.MethodGet)
	api.HandleFunc("/alerts/{alertId}/resolve", h.resolveAlert).Methods(http.MethodPut)
	api.HandleFunc("/audit", h.auditLog).Methods(http.MethodGet)
	api.HandleFunc("/reports/sectors.{format:pdf|xlsx}", h.sectorReport).Methods(http.MethodGet)
	api.Handle("/stream", feed.NewSSEHandler(deps.Publisher, deps.Logger)).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	authMiddleware := auth.NewMiddleware([]byte(opts.JWTSecret), auth.NewFarmPolicy())
	var handler http.Handler = authMiddleware.Wrap(r)
	handler = corsMiddleware(handler, opts.AllowedOrigins)
	return loggingMiddleware(handler, deps.Logger), nil
}

type handler struct {
	store     *memory.Store
	analytics *application.AnalyticsService
	cleaning  *application.CleaningService
	sensors   *application.SensorService
	alertSvc  *application.AlertService
	audit     audit.Log
	logger    *log.Logger
	opts      Options
}

func newHandler(deps Deps, opts Options) (*handler, error) {
	if deps.Store == nil {
		return nil, errors.New("apihttp: nil store")
	}
	if deps.Analytics == nil || deps.Cleaning == nil || deps.Sensors == nil || deps.Alerts == nil {
		return nil, errors.New("apihttp: nil service")
	}
	if deps.Publisher == nil {
		return nil, errors.New("apihttp: nil publisher")
	}
	auditLog := deps.Audit
	if auditLog == nil {
		auditLog = audit.NewMemoryLog(0)
	}
	return &handler{
		store:     deps.Store,
		analytics: deps.Analytics,
		cleaning:  deps.Cleaning,
		sensors:   deps.Sensors,
		alertSvc:  deps.Alerts,
		audit:     auditLog,
		logger:    deps.Logger,
		opts:      opts,
	}, nil
}
