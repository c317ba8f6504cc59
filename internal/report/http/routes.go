// Package reporthttp exposes the report service over HTTP.
package reporthttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/odyssey-erp/storeops/internal/platform/httpx"
)

// MountRoutes registers report endpoints onto the router. Exports share a
// per-client limit of exportPerMinute requests.
func (h *Handler) MountRoutes(r chi.Router, exportPerMinute int) {
	if h == nil {
		return
	}
	if exportPerMinute <= 0 {
		exportPerMinute = 10
	}
	limiter := httprate.Limit(exportPerMinute, time.Minute,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests), "export limit reached, try again shortly")
		}),
	)

	r.Route("/reports", func(rr chi.Router) {
		rr.Get("/lookups", h.handleLookups)
		rr.Post("/custom", h.handleCustom)
		rr.Get("/{report}", h.handleReport)
		rr.Group(func(gr chi.Router) {
			gr.Use(limiter)
			gr.Post("/custom/export.csv", h.handleCustomExport)
			gr.Get("/{report}/export.csv", h.handleExport)
		})
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
