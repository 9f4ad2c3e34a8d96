package http

import (
	"encoding/json"
	"net/http"

	apperrors "ticketing/pkg/errors"
)

// Envelope is the success body: {"success": true, ...payload}.
type Envelope map[string]any

type PaginatedResponse struct {
	Total   int64 `json:"total"`
	Page    int   `json:"page"`
	PerPage int   `json:"per_page"`
}

func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

func WriteError(w http.ResponseWriter, err error) error {
	appErr := apperrors.AsAppError(err)
	return WriteJSON(w, appErr.StatusCode(), appErr.Response())
}

func WriteStatus(w http.ResponseWriter, statusCode int, payload Envelope) error {
	body := make(Envelope, len(payload)+1)
	for k, v := range payload {
		body[k] = v
	}
	body["success"] = true
	return WriteJSON(w, statusCode, body)
}

func WriteSuccess(w http.ResponseWriter, payload Envelope) error {
	return WriteStatus(w, http.StatusOK, payload)
}

func WriteCreated(w http.ResponseWriter, payload Envelope) error {
	return WriteStatus(w, http.StatusCreated, payload)
}

func WritePaginated(w http.ResponseWriter, key string, items any, meta PaginatedResponse) error {
	return WriteSuccess(w, Envelope{
		key:        items,
		"total":    meta.Total,
		"page":     meta.Page,
		"per_page": meta.PerPage,
	})
}
