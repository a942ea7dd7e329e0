package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gemdrive/gemdrive/internal/runtime"
)

// GeneralController serves health and metrics.
type GeneralController struct {
	rt *runtime.Runtime
}

func NewGeneralController(rt *runtime.Runtime) *GeneralController {
	return &GeneralController{rt: rt}
}

func (c *GeneralController) RegisterRoutes(r chi.Router) {
	r.Get("/gemdrive/healthz", c.handleHealth)
	if m := c.rt.Metrics(); m != nil {
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}
}

// handleHealth returns 200 {"status":"ok"} when healthy, 503 otherwise.
func (c *GeneralController) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := c.rt.CheckHealth(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "not_serving")
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}
