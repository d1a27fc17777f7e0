package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sergioBarril/smashbotjs-sub001/internal/matchmaking"
	"github.com/sergioBarril/smashbotjs-sub001/internal/models"
)

type startSearchRequest struct {
	Guild string   `json:"guild"`
	Mode  string   `json:"mode"`
	Tiers []string `json:"tiers"`
}

type tiersRequest struct {
	Tiers []string `json:"tiers"`
}

type searchingTiersResponse struct {
	Tiers     []models.Tier `json:"tiers"`
	Searching bool          `json:"searching"`
}

func (a *API) startSearch(w http.ResponseWriter, r *http.Request) {
	var req startSearchRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, "bad search request payload")
		return
	}
	lobby, err := a.engine.StartSearch(r.Context(), matchmaking.StartSearchRequest{
		PlayerID: chi.URLParam(r, "player"),
		GuildID:  req.Guild,
		Mode:     req.Mode,
		TierIDs:  req.Tiers,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, lobby)
}

func (a *API) tryMatch(w http.ResponseWriter, r *http.Request) {
	res, err := a.engine.TryMatch(r.Context(), chi.URLParam(r, "player"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) addTiers(w http.ResponseWriter, r *http.Request) {
	var req tiersRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, "bad tiers payload")
		return
	}
	tiers, err := a.engine.AddTiers(r.Context(), chi.URLParam(r, "player"), req.Tiers)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, searchingTiersResponse{Tiers: tiers, Searching: len(tiers) > 0})
}

func (a *API) searchingTiers(w http.ResponseWriter, r *http.Request) {
	tiers, err := a.engine.GetSearchingTiers(r.Context(), chi.URLParam(r, "player"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, searchingTiersResponse{Tiers: tiers, Searching: len(tiers) > 0})
}

func (a *API) giveUp(w http.ResponseWriter, r *http.Request) {
	if err := a.engine.GiveUp(r.Context(), chi.URLParam(r, "player")); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) removeAfkLobby(w http.ResponseWriter, r *http.Request) {
	if err := a.engine.RemoveAfkLobby(r.Context(), chi.URLParam(r, "player")); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) searchAgain(w http.ResponseWriter, r *http.Request) {
	res, err := a.engine.SearchAgainAfkLobby(r.Context(), chi.URLParam(r, "player"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type declineRequest struct {
	MarginMinutes int `json:"margin_minutes"`
}

func (a *API) acceptMatch(w http.ResponseWriter, r *http.Request) {
	res, err := a.engine.AcceptMatch(r.Context(), chi.URLParam(r, "player"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) declineMatch(w http.ResponseWriter, r *http.Request) {
	var req declineRequest
	if err := decode(r, &req); err != nil || req.MarginMinutes < 0 {
		badRequest(w, "bad decline payload")
		return
	}
	margin := time.Duration(req.MarginMinutes) * time.Minute
	res, err := a.engine.DeclineMatch(r.Context(), chi.URLParam(r, "player"), margin)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type rejectRequest struct {
	Rejected      string `json:"rejected"`
	MarginMinutes int    `json:"margin_minutes"`
}

func (a *API) recordReject(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	if err := decode(r, &req); err != nil || req.Rejected == "" || req.MarginMinutes < 0 {
		badRequest(w, "bad reject payload")
		return
	}
	reject, err := a.engine.RecordReject(r.Context(), chi.URLParam(r, "player"), req.Rejected,
		time.Duration(req.MarginMinutes)*time.Minute)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, reject)
}

type tierMessageRequest struct {
	Tier    string `json:"tier"`
	Message string `json:"message"`
	Yuzu    bool   `json:"yuzu"`
}

type playerMessageRequest struct {
	Message string `json:"message"`
	Channel string `json:"channel"`
}

func (a *API) saveTierMessage(w http.ResponseWriter, r *http.Request) {
	var req tierMessageRequest
	if err := decode(r, &req); err != nil || req.Message == "" {
		badRequest(w, "bad message payload")
		return
	}
	msg, err := a.engine.SaveSearchTierMessage(r.Context(), chi.URLParam(r, "player"), req.Tier, req.Message, req.Yuzu)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (a *API) savePlayerMessage(w http.ResponseWriter, r *http.Request) {
	var req playerMessageRequest
	if err := decode(r, &req); err != nil || req.Message == "" {
		badRequest(w, "bad message payload")
		return
	}
	msg, err := a.engine.SavePlayerMessage(r.Context(), chi.URLParam(r, "player"), req.Message, req.Channel)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (a *API) lobbyMessages(w http.ResponseWriter, r *http.Request) {
	lobbyID, err := strconv.ParseInt(chi.URLParam(r, "lobby"), 10, 64)
	if err != nil {
		badRequest(w, "invalid lobby id")
		return
	}
	msgs, err := a.engine.GetMessagesFromEveryone(r.Context(), lobbyID, models.MessageType(r.URL.Query().Get("type")))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (a *API) deleteLobbyMessages(w http.ResponseWriter, r *http.Request) {
	lobbyID, err := strconv.ParseInt(chi.URLParam(r, "lobby"), 10, 64)
	if err != nil {
		badRequest(w, "invalid lobby id")
		return
	}
	n, err := a.engine.DeleteMessages(r.Context(), lobbyID, models.MessageType(r.URL.Query().Get("type")))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

func (a *API) searchTick(w http.ResponseWriter, r *http.Request) {
	res, err := a.engine.SearchTick(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) rejectSweep(w http.ResponseWriter, r *http.Request) {
	res, err := a.engine.PurgeExpiredRejects(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
