package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/sergioBarril/smashbotjs-sub001/internal/matchmaking"
	"github.com/sirupsen/logrus"
)

type errorBody struct {
	Error   string   `json:"error"`
	Kind    string   `json:"kind"`
	Entity  string   `json:"entity,omitempty"`
	Current []string `json:"current,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decode reads an optional JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// writeError maps engine errors to status codes. Anything unexpected is logged
// and answered with a generic message.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		nf *matchmaking.NotFoundError
		ve *matchmaking.ValidationError
		ce *matchmaking.CapacityError
	)
	switch {
	case errors.As(err, &nf):
		writeJSON(w, http.StatusNotFound, errorBody{Error: nf.Error(), Kind: "not_found", Entity: string(nf.Entity)})
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: ve.Error(), Kind: "validation"})
	case errors.As(err, &ce):
		writeJSON(w, http.StatusConflict, errorBody{Error: ce.Error(), Kind: "capacity", Current: ce.Current})
	case errors.Is(err, matchmaking.ErrAlreadySearching):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Kind: "already_searching"})
	default:
		a.log.WithError(err).WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("request failed")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error", Kind: "internal"})
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg, Kind: "validation"})
}
