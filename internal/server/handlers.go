package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/campushub/attribute-registry/internal/db/service"
)

// GetAttributesHandler handles GET /api/v1/entities/{entityType}/{id}/attributes.
// Query params: prefix, names (comma-separated), details.
func GetAttributesHandler(values *service.ValueStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := entityID(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid entity id")
			return
		}
		entityType := chi.URLParam(r, "entityType")

		q := service.GetQuery{Prefix: r.URL.Query().Get("prefix")}
		if names := r.URL.Query().Get("names"); names != "" {
			q.Names = strings.Split(names, ",")
		}

		if detail, _ := strconv.ParseBool(r.URL.Query().Get("details")); detail {
			out, err := values.GetAttributesWithDetails(r.Context(), entityType, id, q)
			if err != nil {
				writeEngineError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, out)
			return
		}

		out, err := values.GetAttributes(r.Context(), entityType, id, q)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// SetAttributeHandler handles PUT /api/v1/entities/{entityType}/{id}/attributes/{name}.
// Body: {"value": <any>}.
func SetAttributeHandler(values *service.ValueStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := entityID(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid entity id")
			return
		}
		entityType := chi.URLParam(r, "entityType")
		name := chi.URLParam(r, "name")

		var body struct {
			Value any `json:"value"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid body: %v", err))
			return
		}

		res, err := values.SetAttribute(r.Context(), entityType, id, name, body.Value, setOptionsFrom(r))
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// BulkSetAttributesHandler handles POST /api/v1/entities/{entityType}/{id}/attributes.
// Body: {"values": {name: <any>, ...}}.
func BulkSetAttributesHandler(values *service.ValueStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := entityID(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid entity id")
			return
		}
		entityType := chi.URLParam(r, "entityType")

		var body struct {
			Values map[string]any `json:"values"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid body: %v", err))
			return
		}
		if len(body.Values) == 0 {
			writeError(w, http.StatusBadRequest, "values must not be empty")
			return
		}

		res, err := values.BulkSetAttributes(r.Context(), entityType, id, body.Values, setOptionsFrom(r))
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": res})
	}
}

// DeleteAttributeHandler handles DELETE /api/v1/entities/{entityType}/{id}/attributes/{name}.
// Query params: hard, reason.
func DeleteAttributeHandler(values *service.ValueStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := entityID(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid entity id")
			return
		}
		entityType := chi.URLParam(r, "entityType")
		name := chi.URLParam(r, "name")

		count, err := values.DeleteAttribute(r.Context(), entityType, id, name, deleteOptionsFrom(r))
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int64{"deleted": count})
	}
}

// ListDefinitionsHandler handles GET /api/v1/schema/{entityType}.
// Query params: prefix, includeInactive.
func ListDefinitionsHandler(registry *service.DefinitionRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entityType := chi.URLParam(r, "entityType")
		includeInactive, _ := strconv.ParseBool(r.URL.Query().Get("includeInactive"))

		defs, err := registry.DefinitionsFor(entityType, service.DefinitionQuery{
			Prefix:     r.URL.Query().Get("prefix"),
			ActiveOnly: !includeInactive,
		})
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"attributes": defs})
	}
}

// ListAuditHandler handles GET /api/v1/entities/{entityType}/{id}/audit.
// Query params: attribute, since (RFC3339), limit.
func ListAuditHandler(audit *service.AuditTrail) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := entityID(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid entity id")
			return
		}
		entityType := chi.URLParam(r, "entityType")

		q := service.AuditQuery{AttributeName: r.URL.Query().Get("attribute")}
		if since := r.URL.Query().Get("since"); since != "" {
			ts, err := time.Parse(time.RFC3339, since)
			if err != nil {
				writeError(w, http.StatusBadRequest, "since must be RFC3339")
				return
			}
			q.Since = ts
		}
		if limit := r.URL.Query().Get("limit"); limit != "" {
			q.Limit, _ = strconv.Atoi(limit)
		}

		entries, err := audit.List(entityType, id, q)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
	}
}

// ClearCacheHandler handles POST /api/v1/admin/cache/clear.
func ClearCacheHandler(registry *service.DefinitionRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		registry.ClearCache()
		writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
	}
}
