package controllers

import (
	"github.com/go-chi/chi/v5"

	"github.com/gemdrive/gemdrive/internal/runtime"
	logpkg "github.com/gemdrive/gemdrive/pkg/log"
)

// ControllerRegistry manages all HTTP controllers.
type ControllerRegistry struct {
	general *GeneralController
	events  *EventsController
	files   *FilesController
}

// NewControllerRegistry initializes all controllers for rt.
func NewControllerRegistry(rt *runtime.Runtime, logger logpkg.Logger) *ControllerRegistry {
	return &ControllerRegistry{
		general: NewGeneralController(rt),
		events:  NewEventsController(rt, logger),
		files:   NewFilesController(rt, logger),
	}
}

// RegisterPublicRoutes registers routes that need no authentication.
func (r *ControllerRegistry) RegisterPublicRoutes(router chi.Router) {
	r.general.RegisterRoutes(router)
}

// RegisterRoutes registers the authenticated routes. Event routes go first
// so they win over the directory listing wildcard.
func (r *ControllerRegistry) RegisterRoutes(router chi.Router) {
	r.events.RegisterRoutes(router)
	r.files.RegisterRoutes(router)
}
