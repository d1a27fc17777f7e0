package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sergioBarril/smashbotjs-sub001/internal/models"
)

type guildRequest struct {
	SearchChannelID string `json:"search_channel_id"`
	YuzuRoleID      string `json:"yuzu_role_id"`
}

type tierRequest struct {
	ChannelID string `json:"channel_id"`
	Weight    int    `json:"weight"`
	Threshold int    `json:"threshold"`
	Yuzu      bool   `json:"yuzu"`
}

func (a *API) registerGuild(w http.ResponseWriter, r *http.Request) {
	var req guildRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, "bad guild payload")
		return
	}
	guild, err := a.engine.RegisterGuild(r.Context(), models.Guild{
		DiscordID:       chi.URLParam(r, "guild"),
		SearchChannelID: req.SearchChannelID,
		YuzuRoleID:      req.YuzuRoleID,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, guild)
}

func (a *API) registerTier(w http.ResponseWriter, r *http.Request) {
	var req tierRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, "bad tier payload")
		return
	}
	tier, err := a.engine.RegisterTier(r.Context(), chi.URLParam(r, "guild"), models.Tier{
		DiscordID: chi.URLParam(r, "tier"),
		ChannelID: req.ChannelID,
		Weight:    req.Weight,
		Threshold: req.Threshold,
		Yuzu:      req.Yuzu,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tier)
}
