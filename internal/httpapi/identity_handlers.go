package httpapi

import (
	"net/http"
	"strings"
	"time"

	"foodtrace.org/internal/audit"
	"foodtrace.org/internal/auth"
	"foodtrace.org/internal/identity"
)

const tokenTTL = time.Hour

type tokenRequest struct {
	Alias    string `json:"alias"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (a *API) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	info, err := a.registry.Authenticate(r.Context(), req.Alias, req.Password)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
		return
	}
	roles := info.Roles
	if info.IsAdmin {
		roles = append(append([]string{}, roles...), "admin")
	}
	token, err := auth.GenerateToken(info.FullID, info.Alias, roles, tokenTTL)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.token_issued", map[string]any{
		"alias": info.Alias,
	})
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(tokenTTL.Seconds()),
	})
}

type registerRequest struct {
	FullID       string `json:"fullId"`
	Alias        string `json:"alias"`
	Organization string `json:"organization"`
	Password     string `json:"password"`
}

func (a *API) handleIdentitiesCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req registerRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		info, err := a.registry.Register(r.Context(), callerAlias(r), identity.RegisterRequest{
			FullID:       req.FullID,
			Alias:        req.Alias,
			Organization: req.Organization,
			Password:     req.Password,
		})
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "identity.registered", map[string]any{
			"alias":    info.Alias,
			"is_admin": info.IsAdmin,
		})
		writeJSON(w, http.StatusCreated, info)
	case http.MethodGet:
		role := strings.TrimSpace(r.URL.Query().Get("role"))
		if role == "" {
			writeError(w, r, http.StatusBadRequest, "role query parameter is required")
			return
		}
		infos, err := a.registry.ListByRole(r.Context(), role)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"identities": infos,
			"count":      len(infos),
		})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleIdentityResource dispatches /v1/identities/{alias} plus the role and
// admin sub-resources.
func (a *API) handleIdentityResource(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/identities/")
	parts := strings.Split(rest, "/")
	alias := parts[0]
	if alias == "" {
		writeError(w, r, http.StatusNotFound, "identity alias is required")
		return
	}

	switch {
	case len(parts) == 1:
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		info, err := a.registry.GetByAlias(r.Context(), alias)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, info)

	case len(parts) == 2 && parts[1] == "roles":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		var req struct {
			Role string `json:"role"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.registry.AssignRole(r.Context(), callerAlias(r), alias, req.Role); err != nil {
			handleServiceError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "identity.role_assigned", map[string]any{
			"alias": alias,
			"role":  req.Role,
		})
		a.respondIdentity(w, r, alias)

	case len(parts) == 3 && parts[1] == "roles":
		if r.Method != http.MethodDelete {
			methodNotAllowed(w, r, http.MethodDelete)
			return
		}
		role := parts[2]
		if err := a.registry.RemoveRole(r.Context(), callerAlias(r), alias, role); err != nil {
			handleServiceError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "identity.role_removed", map[string]any{
			"alias": alias,
			"role":  role,
		})
		a.respondIdentity(w, r, alias)

	case len(parts) == 2 && parts[1] == "admin":
		switch r.Method {
		case http.MethodPost:
			if err := a.registry.MakeAdmin(r.Context(), callerAlias(r), alias); err != nil {
				handleServiceError(w, r, err)
				return
			}
			_ = audit.LogEvent(r.Context(), "identity.admin_granted", map[string]any{
				"alias": alias,
			})
			a.respondIdentity(w, r, alias)
		case http.MethodDelete:
			if err := a.registry.RemoveAdmin(r.Context(), callerAlias(r), alias); err != nil {
				handleServiceError(w, r, err)
				return
			}
			_ = audit.LogEvent(r.Context(), "identity.admin_revoked", map[string]any{
				"alias": alias,
			})
			a.respondIdentity(w, r, alias)
		default:
			methodNotAllowed(w, r, http.MethodPost, http.MethodDelete)
		}

	default:
		writeError(w, r, http.StatusNotFound, "unknown identity resource")
	}
}

func (a *API) handleRoleCounts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	counts, err := a.registry.ListRoleCounts(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func (a *API) respondIdentity(w http.ResponseWriter, r *http.Request, alias string) {
	info, err := a.registry.GetByAlias(r.Context(), alias)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}
