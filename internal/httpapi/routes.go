package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/dbwrush/ElytraDogfightsRedux/internal/hub"
	"github.com/dbwrush/ElytraDogfightsRedux/internal/maps"
	"github.com/dbwrush/ElytraDogfightsRedux/internal/players"
	"github.com/dbwrush/ElytraDogfightsRedux/internal/store"
	"github.com/dbwrush/ElytraDogfightsRedux/internal/ws"
)

type Deps struct {
	Hub     *hub.Hub
	Maps    *maps.Registry
	Players *players.Directory
	History store.Store

	// AdminToken guards mutating routes when non-empty.
	AdminToken string
	Log        *zap.Logger
}

func SetupRoutes(d Deps) http.Handler {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	a := &api{Deps: d, log: d.Log.Named("http")}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(a.log))
	r.Use(middleware.Recoverer)

	// Public routes
	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(d.Hub, d.Players, d.Maps.ServerName, d.Log))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(10 * time.Second))

		r.Get("/arenas", a.listArenas)
		r.Get("/arenas/{name}", a.getArena)
		r.Get("/players/{id}", a.getPlayer)
		r.Get("/settings", a.getSettings)
		r.Get("/matches", a.listMatches)

		r.Group(func(r chi.Router) {
			r.Use(requireToken(d.AdminToken))

			r.Post("/arenas", a.createArena)
			r.Delete("/arenas/{name}", a.deleteArena)
			r.Patch("/arenas/{name}", a.updateArena)
			r.Put("/arenas/{name}/corners/{n}", a.setCorner)
			r.Put("/arenas/{name}/spawns/{team}", a.setSpawn)
			r.Post("/arenas/{name}/queue", a.queuePlayer)
			r.Post("/arenas/{name}/end", a.endMatch)

			r.Delete("/players/{id}/queue", a.dequeuePlayer)
			r.Post("/players/{id}/eliminate", a.eliminatePlayer)

			r.Put("/settings", a.updateSettings)
		})
	})
	return r
}
