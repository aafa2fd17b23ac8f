// internal/httpserver/routes_game.go
//
// Game endpoints. One live session per owner (user id or anon cookie).
//   - POST /game/new            -> start (or restart) the owner's session
//   - POST /game/tap  {panel}   -> deliver a tap, returns the outcome
//   - GET  /game/state?since=N  -> board snapshot + cues after N
//   - POST /game/quit           -> stop the session

package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/hlog"

	"github.com/robalobadob/memorygame/internal/board"
	"github.com/robalobadob/memorygame/internal/game"
	"github.com/robalobadob/memorygame/internal/session"
)

type tapReq struct {
	Panel int `json:"panel"`
}

type stateRes struct {
	SessionID string     `json:"sessionId"`
	State     game.State `json:"state"`
	board.Snapshot
}

func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	owner := s.owner(w, r)
	sess, err := s.sessions.Start(owner)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("start session")
		writeError(w, http.StatusInternalServerError, "start_failed")
		return
	}
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(stateRes{
		SessionID: sess.ID,
		State:     sess.Engine.State(),
		Snapshot:  sess.Board.Snapshot(0),
	})
}

func (s *Server) handleTap(w http.ResponseWriter, r *http.Request) {
	var body tapReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if !game.Panel(body.Panel).Valid() {
		writeError(w, http.StatusBadRequest, "invalid_panel")
		return
	}
	owner := s.owner(w, r)
	out, err := s.sessions.Tap(r.Context(), owner, game.Panel(body.Panel))
	switch {
	case err == nil:
		_ = json.NewEncoder(w).Encode(out)
	case errors.Is(err, game.ErrInvalidPanel):
		writeError(w, http.StatusBadRequest, "invalid_panel")
	case errors.Is(err, game.ErrInputDisabled):
		writeError(w, http.StatusConflict, "input_disabled")
	case errors.Is(err, session.ErrNoSession), errors.Is(err, game.ErrStopped):
		writeError(w, http.StatusNotFound, "no_session")
	default:
		hlog.FromRequest(r).Error().Err(err).Msg("tap")
		writeError(w, http.StatusInternalServerError, "tap_failed")
	}
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	var since uint64
	if v := r.URL.Query().Get("since"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_since")
			return
		}
		since = n
	}
	sess, ok := s.sessions.Get(s.owner(w, r))
	if !ok {
		writeError(w, http.StatusNotFound, "no_session")
		return
	}
	sess.Touch()
	_ = json.NewEncoder(w).Encode(stateRes{
		SessionID: sess.ID,
		State:     sess.Engine.State(),
		Snapshot:  sess.Board.Snapshot(since),
	})
}

func (s *Server) handleQuit(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.Stop(s.owner(w, r)) {
		writeError(w, http.StatusNotFound, "no_session")
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}
