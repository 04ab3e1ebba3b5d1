package apihttp

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	farm "solarfarm-cloud/internal/farm/domain"
)

type errorBody struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorBody{Detail: detail})
}

// writeError maps domain errors to status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, farm.ErrPanelNotFound):
		writeDetail(w, http.StatusNotFound, "Panel not found")
	case errors.Is(err, farm.ErrSectorNotFound):
		writeDetail(w, http.StatusNotFound, "Sector not found")
	case errors.Is(err, farm.ErrAlertNotFound):
		writeDetail(w, http.StatusNotFound, "Alert not found")
	case errors.Is(err, farm.ErrInvalidReading):
		writeDetail(w, http.StatusBadRequest, err.Error())
	default:
		writeDetail(w, http.StatusInternalServerError, "internal error")
	}
}

// intQuery parses a non-negative integer query value, returning fallback when absent.
func intQuery(r *http.Request, key string, fallback int) (int, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, errors.New(key + " must be an integer")
	}
	if parsed < 0 {
		return 0, errors.New(key + " must be non-negative")
	}
	return parsed, nil
}

func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("request body required")
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return errors.New("malformed request body")
	}
	return nil
}
