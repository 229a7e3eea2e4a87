package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/starford/datalib/internal/auth"
	"github.com/starford/datalib/internal/dataservice"
)

// NewRouter creates a chi router with all API routes mounted. Every route
// passes through the auth middleware of resolver.
func NewRouter(svc *dataservice.Service, resolver *auth.Resolver) chi.Router {
	h := NewHandler(svc)
	ah := NewAttachmentHandler(svc)

	r := chi.NewRouter()
	r.Use(auth.Middleware(resolver))

	// Data items.
	r.Get("/data", h.ListData)
	r.Post("/data", h.CreateData)
	r.Post("/data/refresh", h.RefreshData)
	r.Get("/data/{id}", h.GetData)
	r.Patch("/data/{id}", h.UpdateData)
	r.Delete("/data/{id}", h.DeleteData)

	// Projects.
	r.Get("/projects", h.ListProjects)
	r.Post("/projects", h.CreateProject)
	r.Get("/projects/{id}/data", h.ListProjectData)

	// Profile.
	r.Get("/profile", h.GetProfile)
	r.Put("/profile", h.PutProfile)

	r.Get("/types", h.DataTypes)

	r.Post("/attachments", ah.Upload)

	return r
}
