package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sergioBarril/smashbotjs-sub001/internal/models"
	"github.com/sergioBarril/smashbotjs-sub001/internal/profile"
)

type characterRequest struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

type regionRequest struct {
	Name string `json:"name"`
}

type yuzuRequest struct {
	Yuzu   string `json:"yuzu"`
	Parsec string `json:"parsec"`
}

func (a *API) listCharacters(w http.ResponseWriter, r *http.Request) {
	chars, err := a.profiles.ListCharacters(r.Context(), chi.URLParam(r, "player"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chars)
}

func (a *API) addCharacter(w http.ResponseWriter, r *http.Request) {
	var req characterRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, "bad character payload")
		return
	}
	chars, err := a.profiles.AddCharacter(r.Context(), chi.URLParam(r, "player"), req.Name, models.CharacterKind(req.Kind))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chars)
}

func (a *API) removeCharacter(w http.ResponseWriter, r *http.Request) {
	if err := a.profiles.RemoveCharacter(r.Context(), chi.URLParam(r, "player"), chi.URLParam(r, "name")); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) listRegions(w http.ResponseWriter, r *http.Request) {
	regions, err := a.profiles.ListRegions(r.Context(), chi.URLParam(r, "player"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, regions)
}

func (a *API) addRegion(w http.ResponseWriter, r *http.Request) {
	var req regionRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, "bad region payload")
		return
	}
	regions, err := a.profiles.AddRegion(r.Context(), chi.URLParam(r, "player"), req.Name)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, regions)
}

func (a *API) removeRegion(w http.ResponseWriter, r *http.Request) {
	if err := a.profiles.RemoveRegion(r.Context(), chi.URLParam(r, "player"), chi.URLParam(r, "name")); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) getYuzu(w http.ResponseWriter, r *http.Request) {
	y, err := a.profiles.GetYuzu(r.Context(), chi.URLParam(r, "player"), r.URL.Query().Get("guild"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, y)
}

// setYuzu accepts "on", "off" or "toggle" per flag. An omitted flag is left as is.
func (a *API) setYuzu(w http.ResponseWriter, r *http.Request) {
	var req yuzuRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, "bad yuzu payload")
		return
	}
	yuzu, parsec := profile.ToggleKeep, profile.ToggleKeep
	var err error
	if req.Yuzu != "" {
		if yuzu, err = profile.ParseToggle(req.Yuzu); err != nil {
			a.writeError(w, r, err)
			return
		}
	}
	if req.Parsec != "" {
		if parsec, err = profile.ParseToggle(req.Parsec); err != nil {
			a.writeError(w, r, err)
			return
		}
	}
	y, err := a.profiles.SetYuzu(r.Context(), chi.URLParam(r, "player"), r.URL.Query().Get("guild"), yuzu, parsec)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, y)
}
