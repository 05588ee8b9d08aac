package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Dilshodbekbozorov/fxvm-bot/internal/domain"
	"github.com/Dilshodbekbozorov/fxvm-bot/internal/models"
	"github.com/Dilshodbekbozorov/fxvm-bot/internal/service"
)

func (h *Handler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// initDataFrom looks in the JSON body, then the header, then the query.
func initDataFrom(r *http.Request) string {
	if r.Body != nil && r.Method == http.MethodPost {
		var req models.InitDataRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err == nil && req.InitData != "" {
			return req.InitData
		}
	}
	if v := r.Header.Get("X-Telegram-Init-Data"); v != "" {
		return v
	}
	return r.URL.Query().Get("initData")
}

// authenticate verifies the session and makes sure the user exists. It
// writes the error response itself and returns nil in that case.
func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request) *domain.User {
	webUser, err := h.verifier.Verify(initDataFrom(r))
	switch {
	case errors.Is(err, ErrUnauthorized):
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return nil
	case errors.Is(err, ErrUserMissing):
		respondWithError(w, http.StatusBadRequest, "user_missing")
		return nil
	case err != nil:
		respondWithError(w, http.StatusInternalServerError, "internal")
		return nil
	}

	user, _, err := h.accounts.EnsureUser(r.Context(), domain.Profile{
		ID:        webUser.ID,
		Username:  webUser.Username,
		FirstName: webUser.FirstName,
		LastName:  webUser.LastName,
	})
	if err != nil {
		slog.Error("web ensure user failed", "user_id", webUser.ID, "err", err)
		respondWithError(w, http.StatusInternalServerError, "internal")
		return nil
	}
	return user
}

func optional(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

func (h *Handler) ProfileHandler(w http.ResponseWriter, r *http.Request) {
	user := h.authenticate(w, r)
	if user == nil {
		return
	}

	status, err := h.miner.Status(r.Context(), user, service.SourceWeb)
	if err != nil {
		slog.Error("web profile status failed", "user_id", user.ID, "err", err)
		respondWithError(w, http.StatusInternalServerError, "internal")
		return
	}

	resp := models.ProfileResponse{
		OK: true,
		User: models.PublicUser{
			ID:        user.ID,
			Username:  optional(user.Username),
			FirstName: optional(user.FirstName),
			LastName:  optional(user.LastName),
		},
		Balance:          user.FxBalance,
		Premium:          status.Premium,
		CooldownSeconds:  status.CooldownSeconds,
		RemainingSeconds: status.RemainingSeconds,
	}
	if user.LastMineAt != nil {
		ms := user.LastMineAt.UnixMilli()
		resp.LastMineAt = &ms
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *Handler) MineHandler(w http.ResponseWriter, r *http.Request) {
	user := h.authenticate(w, r)
	if user == nil {
		return
	}

	res, err := h.miner.Mine(r.Context(), user.ID, service.SourceWeb)
	if err != nil {
		slog.Error("web mine failed", "user_id", user.ID, "err", err)
		respondWithError(w, http.StatusInternalServerError, "internal")
		return
	}

	resp := models.MineResponse{
		OK:              res.Ready,
		Balance:         res.Balance,
		CooldownSeconds: res.CooldownSeconds,
		Premium:         res.Premium,
	}
	if res.Ready {
		amount := res.Amount
		resp.Mined = &amount
	} else {
		remaining := res.RemainingSeconds
		resp.RemainingSeconds = &remaining
	}
	respondWithJSON(w, http.StatusOK, resp)
}
