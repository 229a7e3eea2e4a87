package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/datalib/internal/apperr"
	"github.com/starford/datalib/internal/dataservice"
	"github.com/starford/datalib/internal/library"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error  string            `json:"error" validate:"required"`
	Fields map[string]string `json:"fields,omitempty"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// writeError maps a service error onto a status code and error body.
func writeError(w http.ResponseWriter, op string, err error) {
	var verrs validation.Errors
	switch {
	case errors.Is(err, apperr.ErrNotAuthenticated):
		writeJSON(w, http.StatusUnauthorized, errorBody("user not authenticated"))
	case errors.As(err, &verrs):
		body := errorBody("invalid input")
		body.Fields = make(map[string]string, len(verrs))
		for field, fe := range verrs {
			body.Fields[field] = fe.Error()
		}
		writeJSON(w, http.StatusBadRequest, body)
	case errors.Is(err, apperr.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorBody("already exists"))
	case errors.Is(err, dataservice.ErrAttachmentsDisabled):
		writeJSON(w, http.StatusNotImplemented, errorBody(err.Error()))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		msg := "internal error"
		var opErr *library.OpError
		if errors.As(err, &opErr) {
			msg = opErr.Message
		}
		writeJSON(w, http.StatusInternalServerError, errorBody(msg))
	}
}

// decodeJSON reads a JSON body capped at limit bytes.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	return true
}
