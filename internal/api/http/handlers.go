package apihttp

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"solarfarm-cloud/internal/audit"
	"solarfarm-cloud/internal/auth"
	"solarfarm-cloud/internal/farm/application"
	farm "solarfarm-cloud/internal/farm/domain"
	"solarfarm-cloud/internal/farm/infrastructure/memory"
	"solarfarm-cloud/internal/observability/metrics"
	"solarfarm-cloud/internal/report"
)

const (
	defaultPageLimit = 100
	serviceMessage   = "Solar Panel AI System API - Large Scale"
)

type scale struct {
	TotalPanels     int     `json:"total_panels"`
	TotalSectors    int     `json:"total_sectors"`
	AreaKm2         float64 `json:"area_km2"`
	TotalCapacityMW float64 `json:"total_capacity_mw"`
}

type identity struct {
	Message string `json:"message"`
	Status  string `json:"status"`
	Version string `json:"version"`
	Scale   scale  `json:"scale"`
}

func (h *handler) root(w http.ResponseWriter, r *http.Request) {
	panels := h.store.Len()
	writeJSON(w, http.StatusOK, identity{
		Message: serviceMessage,
		Status:  "operational",
		Version: Version,
		Scale: scale{
			TotalPanels:     panels,
			TotalSectors:    len(h.store.Sectors()),
			AreaKm2:         h.opts.AreaSizeKm * h.opts.AreaSizeKm,
			TotalCapacityMW: float64(panels*farm.PanelCapacityWatts) / 1_000_000,
		},
	})
}

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *handler) sectors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.analytics.Sectors())
}

type sectorPanels struct {
	SectorID   string           `json:"sector_id"`
	PanelCount int              `json:"panel_count"`
	Panels     []farm.PanelView `json:"panels"`
}

func (h *handler) sectorPanels(w http.ResponseWriter, r *http.Request) {
	sectorID := mux.Vars(r)["sectorId"]
	panels := h.store.BySector(sectorID)
	if len(panels) == 0 {
		writeError(w, farm.ErrSectorNotFound)
		return
	}
	writeJSON(w, http.StatusOK, sectorPanels{
		SectorID:   sectorID,
		PanelCount: len(panels),
		Panels:     farm.ViewsOf(panels),
	})
}

type panelPage struct {
	Total  int              `json:"total"`
	Skip   int              `json:"skip"`
	Limit  int              `json:"limit"`
	Panels []farm.PanelView `json:"panels"`
}

func (h *handler) panels(w http.ResponseWriter, r *http.Request) {
	skip, err := intQuery(r, "skip", 0)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := intQuery(r, "limit", defaultPageLimit)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	all := h.store.All(memory.Filter{SectorID: r.URL.Query().Get("sector_id")})
	start := min(skip, len(all))
	end := start + min(limit, len(all)-start)
	writeJSON(w, http.StatusOK, panelPage{
		Total:  len(all),
		Skip:   skip,
		Limit:  limit,
		Panels: farm.ViewsOf(all[start:end]),
	})
}

func (h *handler) panel(w http.ResponseWriter, r *http.Request) {
	p, err := h.store.Get(mux.Vars(r)["panelId"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, farm.ViewOf(p))
}

func (h *handler) cleaningHistory(w http.ResponseWriter, r *http.Request) {
	records, err := h.cleaning.History(r.Context(), mux.Vars(r)["panelId"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *handler) statistics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.analytics.FarmStatistics())
}

func (h *handler) cleanPanel(w http.ResponseWriter, r *http.Request) {
	result, err := h.cleaning.CleanPanel(r.Context(), mux.Vars(r)["panelId"])
	if err != nil {
		writeError(w, err)
		return
	}
	h.recordAudit(r, audit.ActionCleanPanel, audit.ResourcePanel, result.PanelID, map[string]any{
		"record_id":      result.RecordID,
		"new_efficiency": result.NewEfficiency,
	})
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) cleanSector(w http.ResponseWriter, r *http.Request) {
	result, err := h.cleaning.CleanSector(r.Context(), mux.Vars(r)["sectorId"])
	if err != nil {
		writeError(w, err)
		return
	}
	h.recordAudit(r, audit.ActionCleanSector, audit.ResourceSector, result.SectorID, map[string]any{
		"panels_cleaned":   result.PanelsCleaned,
		"total_water_used": result.TotalWaterUsed,
	})
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) predictSector(w http.ResponseWriter, r *http.Request) {
	prediction, err := h.analytics.PredictSector(mux.Vars(r)["sectorId"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prediction)
}

func (h *handler) predictPanel(w http.ResponseWriter, r *http.Request) {
	var in application.PanelPredictionInput
	if err := decodeBody(r, &in); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	prediction, err := h.analytics.PredictPanel(in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prediction)
}

func (h *handler) sensorData(w http.ResponseWriter, r *http.Request) {
	var in application.SensorInput
	if err := decodeBody(r, &in); err != nil {
		metrics.ObserveSensorIngest(metrics.ResultRejected, 0)
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := h.sensors.Submit(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) sensorHistory(w http.ResponseWriter, r *http.Request) {
	hours, err := intQuery(r, "hours", farm.DefaultSensorHistoryHours)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	readings, err := h.sensors.History(r.Context(), mux.Vars(r)["panelId"], hours)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, readings)
}

func (h *handler) panelAnalytics(w http.ResponseWriter, r *http.Request) {
	days, err := intQuery(r, "days", farm.DefaultAnalyticsDays)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	rows, err := h.analytics.PanelAnalytics(r.Context(), mux.Vars(r)["panelId"], days)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *handler) alerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.alertSvc.Active(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (h *handler) alertSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.analytics.AlertSummary())
}

func (h *handler) resolveAlert(w http.ResponseWriter, r *http.Request) {
	alert, err := h.alertSvc.Resolve(r.Context(), mux.Vars(r)["alertId"])
	if err != nil {
		writeError(w, err)
		return
	}
	h.recordAudit(r, audit.ActionResolveAlert, audit.ResourceAlert, alert.ID, map[string]any{
		"panel_id": alert.PanelID,
		"type":     alert.Type,
	})
	writeJSON(w, http.StatusOK, alert)
}

func (h *handler) auditLog(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", audit.DefaultLimit)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	entries, err := h.audit.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// recordAudit logs an operator action. Failures are logged, never surfaced.
func (h *handler) recordAudit(r *http.Request, action, resourceType, resourceID string, meta map[string]any) {
	payload, _ := json.Marshal(meta)
	err := h.audit.Log(r.Context(), audit.Entry{
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Metadata:     payload,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
	if err != nil {
		metrics.IncPersistenceError("audit_logs")
		if h.logger != nil {
			h.logger.Printf("audit: log failed: action=%s resource=%s err=%v", action, resourceID, err)
		}
	}
}

func (h *handler) sectorReport(w http.ResponseWriter, r *http.Request) {
	format := mux.Vars(r)["format"]
	start := time.Now()
	out, contentType, err := report.Build(format, report.FromOverview(h.analytics.Overview()))
	if err != nil {
		metrics.ObserveReportExport(format, metrics.ResultError, time.Since(start))
		if h.logger != nil {
			h.logger.Printf("report: build failed: format=%s err=%v", format, err)
		}
		writeDetail(w, http.StatusInternalServerError, "report build failed")
		return
	}
	metrics.ObserveReportExport(format, metrics.ResultSuccess, time.Since(start))
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="sectors.`+format+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}
