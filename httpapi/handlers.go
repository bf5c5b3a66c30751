package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrEthical07/portalauth"
	"github.com/MrEthical07/portalauth/middleware"
	"github.com/MrEthical07/portalauth/permission"
)

const maxBodyBytes = 1 << 16

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Email            string `json:"email"`
	Password         string `json:"password"`
	Role             string `json:"role"`
	CompanyProfileID string `json:"companyProfileId"`
}

type accountResponse struct {
	ID               string            `json:"id"`
	Email            string            `json:"email"`
	Role             permission.Role   `json:"role"`
	Status           permission.Status `json:"status"`
	Verified         bool              `json:"verified"`
	CompanyProfileID string            `json:"companyProfileId,omitempty"`
	CreatedAt        time.Time         `json:"createdAt"`
}

type sessionResponse struct {
	Account          accountResponse `json:"account"`
	AccessExpiresAt  time.Time       `json:"accessExpiresAt"`
	RefreshExpiresAt time.Time       `json:"refreshExpiresAt"`
}

type meResponse struct {
	ID               string            `json:"id"`
	Role             permission.Role   `json:"role"`
	Status           permission.Status `json:"status"`
	Verified         bool              `json:"verified"`
	CompanyProfileID string            `json:"companyProfileId,omitempty"`
	Capabilities     []string          `json:"capabilities"`
	ExpiresAt        time.Time         `json:"expiresAt"`
}

type statusChangeResponse struct {
	Account         accountResponse   `json:"account"`
	From            permission.Status `json:"from"`
	To              permission.Status `json:"to"`
	SessionsRevoked int64             `json:"sessionsRevoked"`
}

type accountListResponse struct {
	Accounts []accountResponse `json:"accounts"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
}

func toAccountResponse(a portalauth.Account) accountResponse {
	return accountResponse{
		ID:               a.ID,
		Email:            a.Email,
		Role:             a.Role,
		Status:           a.Status,
		Verified:         a.Verified,
		CompanyProfileID: a.CompanyProfileID,
		CreatedAt:        a.CreatedAt,
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, out any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func (s *Server) requestContext(r *http.Request) context.Context {
	ctx := portalauth.WithClientIP(r.Context(), s.proxies.ClientIP(r))
	return portalauth.WithUserAgent(ctx, r.UserAgent())
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	res, err := s.engine.Login(s.requestContext(r), req.Email, req.Password)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	s.setSessionCookies(w, res)
	writeJSON(w, http.StatusOK, sessionResponse{
		Account:          toAccountResponse(res.Account),
		AccessExpiresAt:  res.AccessExpiresAt,
		RefreshExpiresAt: res.RefreshExpiresAt,
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	role, err := permission.ParseRole(req.Role)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	acct, err := s.engine.Register(s.requestContext(r), portalauth.CreateAccountRequest{
		Email:            req.Email,
		Password:         req.Password,
		Role:             role,
		CompanyProfileID: req.CompanyProfileID,
	})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountResponse(acct))
}

// handleRefresh never issues cookies unless rotation fully succeeded. Auth
// failures clear both cookies; backend failures leave them so the client can
// retry.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(RefreshCookieName)
	if err != nil || c.Value == "" {
		s.clearSessionCookies(w)
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	res, err := s.engine.Refresh(s.requestContext(r), c.Value)
	if err != nil {
		if !errors.Is(err, portalauth.ErrUnavailable) && !errors.Is(err, portalauth.ErrEngineNotReady) {
			s.clearSessionCookies(w)
		}
		s.writeEngineError(w, err)
		return
	}

	s.setSessionCookies(w, res)
	writeJSON(w, http.StatusOK, sessionResponse{
		Account:          toAccountResponse(res.Account),
		AccessExpiresAt:  res.AccessExpiresAt,
		RefreshExpiresAt: res.RefreshExpiresAt,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	res, ok := middleware.AuthResultFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := s.engine.Logout(s.requestContext(r), res.UserID); err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.clearSessionCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	res, ok := middleware.AuthResultFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, meResponse{
		ID:               res.UserID,
		Role:             res.Role,
		Status:           res.Status,
		Verified:         res.Verified,
		CompanyProfileID: res.CompanyProfileID,
		Capabilities:     permission.Names(res.Capabilities),
		ExpiresAt:        res.ExpiresAt,
	})
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter portalauth.AccountFilter

	if v := q.Get("status"); v != "" {
		st, err := permission.ParseStatus(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		filter.Status = st
	}
	if v := q.Get("role"); v != "" {
		role, err := permission.ParseRole(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		filter.Role = role
	}
	for _, p := range []struct {
		name string
		dst  *int
	}{{"limit", &filter.Limit}, {"offset", &filter.Offset}} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		*p.dst = n
	}

	accounts, err := s.engine.ListAccounts(r.Context(), filter)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	out := accountListResponse{
		Accounts: make([]accountResponse, 0, len(accounts)),
		Limit:    portalauth.ClampListLimit(filter.Limit),
		Offset:   filter.Offset,
	}
	for _, a := range accounts {
		out.Accounts = append(out.Accounts, toAccountResponse(a))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAccountAction(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.AuthResultFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	targetID := chi.URLParam(r, "accountID")
	action := portalauth.StatusAction(chi.URLParam(r, "action"))

	change, err := s.engine.UpdateAccountStatus(s.requestContext(r), actor.UserID, targetID, action)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusChangeResponse{
		Account:         toAccountResponse(change.Account),
		From:            change.From,
		To:              change.To,
		SessionsRevoked: change.SessionsRevoked,
	})
}
