// internal/handlers/api.go
package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/sergioBarril/smashbotjs-sub001/internal/matchmaking"
	"github.com/sergioBarril/smashbotjs-sub001/internal/middleware"
	"github.com/sergioBarril/smashbotjs-sub001/internal/profile"
	"github.com/sirupsen/logrus"
)

// requestTimeout bounds every engine call made on behalf of a request.
const requestTimeout = 10 * time.Second

// API is the JSON surface the bot process calls on user actions.
type API struct {
	engine   *matchmaking.Engine
	profiles *profile.Service
	log      logrus.FieldLogger
}

func NewAPI(engine *matchmaking.Engine, profiles *profile.Service, logger logrus.FieldLogger) *API {
	return &API{engine: engine, profiles: profiles, log: logger}
}

// Router mounts every route under /v1. metrics, when non-nil, is served at /metrics.
func (a *API) Router(metrics http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.LogMiddleware(a.log))

	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(chimw.Timeout(requestTimeout))

		r.Put("/guilds/{guild}", a.registerGuild)
		r.Put("/guilds/{guild}/tiers/{tier}", a.registerTier)

		r.Route("/players/{player}", func(r chi.Router) {
			r.Post("/search", a.startSearch)
			r.Post("/search/match", a.tryMatch)
			r.Post("/tiers", a.addTiers)
			r.Get("/tiers", a.searchingTiers)

			r.Post("/afk", a.giveUp)
			r.Delete("/afk", a.removeAfkLobby)
			r.Post("/afk/search", a.searchAgain)

			r.Post("/accept", a.acceptMatch)
			r.Post("/decline", a.declineMatch)
			r.Post("/rejects", a.recordReject)

			r.Post("/messages/tier", a.saveTierMessage)
			r.Post("/messages/player", a.savePlayerMessage)

			r.Get("/characters", a.listCharacters)
			r.Post("/characters", a.addCharacter)
			r.Delete("/characters/{name}", a.removeCharacter)
			r.Get("/regions", a.listRegions)
			r.Post("/regions", a.addRegion)
			r.Delete("/regions/{name}", a.removeRegion)
			r.Get("/yuzu", a.getYuzu)
			r.Put("/yuzu", a.setYuzu)
		})

		r.Get("/lobbies/{lobby}/messages", a.lobbyMessages)
		r.Delete("/lobbies/{lobby}/messages", a.deleteLobbyMessages)

		r.Post("/admin/search-tick", a.searchTick)
		r.Post("/admin/reject-sweep", a.rejectSweep)
	})
	return r
}
