package server

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/campushub/attribute-registry/internal/domains"
)

// GetProfileHandler handles GET /api/v1/users/{id}/profile.
func GetProfileHandler(users *domains.UserService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := entityID(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid user id")
			return
		}
		profile, err := users.Profile(r.Context(), id)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	}
}

// UpdateProfileHandler handles PUT /api/v1/users/{id}/profile.
// Body: {"fields": {"gpa": 3.75, "major": "CS", ...}}.
func UpdateProfileHandler(users *domains.UserService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := entityID(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid user id")
			return
		}
		var body struct {
			Fields map[string]any `json:"fields"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid body: %v", err))
			return
		}
		if err := users.UpdateProfile(r.Context(), id, body.Fields, setOptionsFrom(r)); err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	}
}

// GetRolePermissionsHandler handles GET /api/v1/roles/{id}/permissions.
func GetRolePermissionsHandler(roles *domains.RoleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := entityID(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid role id")
			return
		}
		perms, err := roles.Permissions(r.Context(), id)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, perms)
	}
}

// GetUserPermissionsHandler handles GET /api/v1/users/{id}/permissions,
// the merged view across the user's roles.
func GetUserPermissionsHandler(roles *domains.RoleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := entityID(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid user id")
			return
		}
		perms, err := roles.EffectivePermissions(r.Context(), id)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, perms)
	}
}

// CheckPermissionHandler handles GET /api/v1/users/{id}/permissions/{name}.
func CheckPermissionHandler(roles *domains.RoleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := entityID(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid user id")
			return
		}
		name := chi.URLParam(r, "name")
		granted, err := roles.UserHasPermission(r.Context(), id, name)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"permission": name, "granted": granted})
	}
}

// ListEquipmentHandler handles GET /api/v1/facilities/{id}/equipment.
func ListEquipmentHandler(facilities *domains.FacilityService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := entityID(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid facility id")
			return
		}
		items, err := facilities.Equipment(r.Context(), id)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	}
}

// AddEquipmentHandler handles POST /api/v1/facilities/{id}/equipment.
// Body: {"fields": {"equipment_name": ..., "equipment_type": ..., "equipment_quantity": ...}}.
func AddEquipmentHandler(facilities *domains.FacilityService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := entityID(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid facility id")
			return
		}
		var body struct {
			Fields map[string]any `json:"fields"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid body: %v", err))
			return
		}
		item, err := facilities.AddEquipment(r.Context(), id, body.Fields, setOptionsFrom(r))
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, item)
	}
}

// UpdateEquipmentHandler handles PUT /api/v1/facilities/{id}/equipment/{itemId}.
func UpdateEquipmentHandler(facilities *domains.FacilityService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := entityID(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid facility id")
			return
		}
		var body struct {
			Fields map[string]any `json:"fields"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid body: %v", err))
			return
		}
		itemID := chi.URLParam(r, "itemId")
		if err := facilities.UpdateEquipment(r.Context(), id, itemID, body.Fields, setOptionsFrom(r)); err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	}
}

// DeleteEquipmentHandler handles DELETE /api/v1/facilities/{id}/equipment/{itemId}.
func DeleteEquipmentHandler(facilities *domains.FacilityService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := entityID(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid facility id")
			return
		}
		itemID := chi.URLParam(r, "itemId")
		count, err := facilities.RemoveEquipment(r.Context(), id, itemID, deleteOptionsFrom(r))
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int64{"deleted": count})
	}
}

// MigrateEquipmentHandler handles POST /api/v1/facilities/{id}/equipment:migrate.
func MigrateEquipmentHandler(facilities *domains.FacilityService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := entityID(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid facility id")
			return
		}
		n, err := facilities.MigrateEquipment(r.Context(), id)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"migrated": n})
	}
}

// VerifyEquipmentHandler handles GET /api/v1/facilities/{id}/equipment:verify.
func VerifyEquipmentHandler(facilities *domains.FacilityService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := entityID(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid facility id")
			return
		}
		result, err := facilities.VerifyEquipment(r.Context(), id)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// ListAwardsHandler handles GET /api/v1/instructors/{id}/awards.
func ListAwardsHandler(instructors *domains.InstructorService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := entityID(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid instructor id")
			return
		}
		items, err := instructors.Awards(r.Context(), id)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	}
}

// AddAwardHandler handles POST /api/v1/instructors/{id}/awards.
// Body: {"title": "...", "year": 2024}.
func AddAwardHandler(instructors *domains.InstructorService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := entityID(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid instructor id")
			return
		}
		var body struct {
			Title string `json:"title"`
			Year  int    `json:"year"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid body: %v", err))
			return
		}
		item, err := instructors.AddAward(r.Context(), id, body.Title, body.Year, setOptionsFrom(r))
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, item)
	}
}

// DeleteAwardHandler handles DELETE /api/v1/instructors/{id}/awards/{itemId}.
func DeleteAwardHandler(instructors *domains.InstructorService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := entityID(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid instructor id")
			return
		}
		itemID := chi.URLParam(r, "itemId")
		count, err := instructors.RemoveAward(r.Context(), id, itemID, deleteOptionsFrom(r))
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int64{"deleted": count})
	}
}

// GetAssessmentMetadataHandler handles GET /api/v1/assessments/{id}/metadata.
func GetAssessmentMetadataHandler(assessments *domains.AssessmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := entityID(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid assessment id")
			return
		}
		meta, err := assessments.Metadata(r.Context(), id)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, meta)
	}
}

// UpdateAssessmentMetadataHandler handles PUT /api/v1/assessments/{id}/metadata.
// Body: {"values": {name: <any>, ...}}.
func UpdateAssessmentMetadataHandler(assessments *domains.AssessmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := entityID(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid assessment id")
			return
		}
		var body struct {
			Values map[string]any `json:"values"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid body: %v", err))
			return
		}
		res, err := assessments.UpdateMetadata(r.Context(), id, body.Values, setOptionsFrom(r))
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": res})
	}
}
