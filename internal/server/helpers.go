// Package server exposes the attribute engine over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/campushub/attribute-registry/internal/db/service"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeEngineError maps the engine's error taxonomy onto HTTP statuses:
// validation failures are the caller's fault, schema and reference misses
// are not-found, constraint violations are conflicts, everything else is a
// server error.
func writeEngineError(w http.ResponseWriter, err error) {
	var (
		validationErr *service.ValidationError
		schemaErr     *service.SchemaError
		referenceErr  *service.ReferenceError
		constraintErr *service.ConstraintError
	)
	switch {
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, validationErr.Error())
	case errors.As(err, &schemaErr):
		writeError(w, http.StatusNotFound, schemaErr.Error())
	case errors.As(err, &referenceErr):
		writeError(w, http.StatusNotFound, referenceErr.Error())
	case errors.As(err, &constraintErr):
		writeError(w, http.StatusConflict, constraintErr.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// entityID parses the {id} route parameter.
func entityID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

// setOptionsFrom builds write metadata from the request: the optional
// X-Actor-ID header and a reason query parameter.
func setOptionsFrom(r *http.Request) service.SetOptions {
	opts := service.SetOptions{Reason: r.URL.Query().Get("reason")}
	if v := r.Header.Get("X-Actor-ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			opts.ActorID = &id
		}
	}
	return opts
}

func deleteOptionsFrom(r *http.Request) service.DeleteOptions {
	opts := service.DeleteOptions{Reason: r.URL.Query().Get("reason")}
	opts.Hard, _ = strconv.ParseBool(r.URL.Query().Get("hard"))
	if v := r.Header.Get("X-Actor-ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			opts.ActorID = &id
		}
	}
	return opts
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
