package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"gorm.io/gorm"

	"github.com/campushub/attribute-registry/internal/db/service"
	"github.com/campushub/attribute-registry/internal/domains"
)

// Services bundles everything the router serves.
type Services struct {
	DB          *gorm.DB
	Values      *service.ValueStore
	Audit       *service.AuditTrail
	Users       *domains.UserService
	Roles       *domains.RoleService
	Facilities  *domains.FacilityService
	Instructors *domains.InstructorService
	Assessments *domains.AssessmentService
}

// Router builds the full API router.
func Router(s Services) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Actor-ID"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		sqlDB, err := s.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(r.Context())
		}
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	registry := s.Values.Registry()

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/entities/{entityType}/{id}", func(r chi.Router) {
			r.Get("/attributes", GetAttributesHandler(s.Values))
			r.Post("/attributes", BulkSetAttributesHandler(s.Values))
			r.Put("/attributes/{name}", SetAttributeHandler(s.Values))
			r.Delete("/attributes/{name}", DeleteAttributeHandler(s.Values))
			r.Get("/audit", ListAuditHandler(s.Audit))
		})

		r.Get("/schema/{entityType}", ListDefinitionsHandler(registry))
		r.Post("/admin/cache/clear", ClearCacheHandler(registry))

		r.Route("/users/{id}", func(r chi.Router) {
			r.Get("/profile", GetProfileHandler(s.Users))
			r.Put("/profile", UpdateProfileHandler(s.Users))
			r.Get("/permissions", GetUserPermissionsHandler(s.Roles))
			r.Get("/permissions/{name}", CheckPermissionHandler(s.Roles))
		})

		r.Get("/roles/{id}/permissions", GetRolePermissionsHandler(s.Roles))

		r.Route("/facilities/{id}", func(r chi.Router) {
			r.Get("/equipment", ListEquipmentHandler(s.Facilities))
			r.Post("/equipment", AddEquipmentHandler(s.Facilities))
			r.Put("/equipment/{itemId}", UpdateEquipmentHandler(s.Facilities))
			r.Delete("/equipment/{itemId}", DeleteEquipmentHandler(s.Facilities))
			r.Post("/equipment:migrate", MigrateEquipmentHandler(s.Facilities))
			r.Get("/equipment:verify", VerifyEquipmentHandler(s.Facilities))
		})

		r.Route("/instructors/{id}", func(r chi.Router) {
			r.Get("/awards", ListAwardsHandler(s.Instructors))
			r.Post("/awards", AddAwardHandler(s.Instructors))
			r.Delete("/awards/{itemId}", DeleteAwardHandler(s.Instructors))
		})

		r.Route("/assessments/{id}", func(r chi.Router) {
			r.Get("/metadata", GetAssessmentMetadataHandler(s.Assessments))
			r.Put("/metadata", UpdateAssessmentMetadataHandler(s.Assessments))
		})
	})

	return r
}
