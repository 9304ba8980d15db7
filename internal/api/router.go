package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/xwp/ga4-extensions/internal/content"
	"github.com/xwp/ga4-extensions/internal/observability"
)

func Router(h *Handler, sessions SessionStore) http.Handler {
	r := chi.NewRouter()

	r.Use(observability.Measure)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(2 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", observability.MetricsHandler())

	r.Group(func(r chi.Router) {
		r.Use(CurrentUser(sessions))
		r.Get("/", h.Home)
		r.Get("/posts/{slug}", h.Post)

		r.Group(func(r chi.Router) {
			r.Use(RequireRole(content.RoleAdministrator))
			r.Get(SettingsPath, h.SettingsForm)
			r.With(RequireSameOrigin).Post(SettingsPath, h.SaveSettings)
		})
	})
	return r
}
