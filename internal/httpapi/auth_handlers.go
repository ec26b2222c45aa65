package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"rentfold.io/internal/audit"
	"rentfold.io/internal/identity"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	BillingStatus    string    `json:"billing_status"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "email and password are required")
		return
	}

	res, err := a.identity.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrUnauthorized) {
			writeError(w, r, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "login failed")
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{
		"account_id":     res.Actor.ID,
		"role":           string(res.Actor.Role),
		"billing_status": res.Enriched.BillingStatus,
	})

	writeJSON(w, http.StatusOK, issueResponse(res))
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		writeError(w, r, http.StatusBadRequest, "refresh_token is required")
		return
	}

	res, err := a.identity.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrInvalidCredential):
			writeError(w, r, http.StatusUnauthorized, "invalid refresh token")
		case errors.Is(err, identity.ErrUnauthorized):
			writeError(w, r, http.StatusUnauthorized, "account is not active")
		default:
			writeError(w, r, http.StatusInternalServerError, "refresh failed")
		}
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.refresh", map[string]any{
		"account_id":     res.Actor.ID,
		"reenriched":     res.Reenriched,
		"billing_status": res.Enriched.BillingStatus,
	})

	writeJSON(w, http.StatusOK, issueResponse(res))
}

func issueResponse(res identity.IssueResult) tokenResponse {
	return tokenResponse{
		AccessToken:      res.Pair.AccessToken,
		RefreshToken:     res.Pair.RefreshToken,
		AccessExpiresAt:  res.Pair.AccessExpiresAt,
		RefreshExpiresAt: res.Pair.RefreshExpiresAt,
		BillingStatus:    res.Enriched.BillingStatus,
	}
}
