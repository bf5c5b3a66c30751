package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/MrEthical07/portalauth"
	"github.com/MrEthical07/portalauth/jwt"
	"github.com/MrEthical07/portalauth/permission"
)

// AccessCookieName is the cookie carrying the session credential.
const AccessCookieName = "access_token"

// Level is the authentication strength a route demands.
type Level int

const (
	LevelPublic Level = iota
	LevelAuthenticated
	LevelRoles
	LevelVerifiedRoles
)

func (l Level) String() string {
	switch l {
	case LevelPublic:
		return "public"
	case LevelAuthenticated:
		return "authenticated"
	case LevelRoles:
		return "roles"
	case LevelVerifiedRoles:
		return "verified_roles"
	default:
		return "unknown"
	}
}

// Requirement describes what a route needs from the caller.
type Requirement struct {
	level        Level
	roles        []permission.Role
	capabilities []permission.Capability
}

// Public attaches a verified credential when present and never rejects.
func Public() Requirement { return Requirement{level: LevelPublic} }

// Authenticated requires any valid session credential.
func Authenticated() Requirement { return Requirement{level: LevelAuthenticated} }

// Roles requires a valid credential whose role is one of roles.
func Roles(roles ...permission.Role) Requirement {
	return Requirement{level: LevelRoles, roles: append([]permission.Role(nil), roles...)}
}

// VerifiedRoles is Roles plus an APPROVED, verified account.
func VerifiedRoles(roles ...permission.Role) Requirement {
	return Requirement{level: LevelVerifiedRoles, roles: append([]permission.Role(nil), roles...)}
}

// WithCapability returns a copy of r that also requires c.
func (r Requirement) WithCapability(c permission.Capability) Requirement {
	caps := make([]permission.Capability, 0, len(r.capabilities)+1)
	caps = append(caps, r.capabilities...)
	r.capabilities = append(caps, c)
	return r
}

type authResultContextKey struct{}

// AuthResultFromContext returns the credential attached by Gate.
func AuthResultFromContext(ctx context.Context) (*portalauth.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*portalauth.AuthResult)
	return res, ok
}

// WithAuthResult attaches res to ctx.
func WithAuthResult(ctx context.Context, res *portalauth.AuthResult) context.Context {
	return context.WithValue(ctx, authResultContextKey{}, res)
}

// CredentialFromRequest returns the session credential from the named
// cookie, falling back to the Authorization bearer header.
func CredentialFromRequest(r *http.Request, cookieName string) (string, bool) {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value, true
	}
	return bearerToken(r.Header.Get("Authorization"))
}

// Gate enforces req in front of next.
func Gate(engine *portalauth.Engine, req Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			var res *portalauth.AuthResult
			if token, ok := CredentialFromRequest(r, AccessCookieName); ok {
				if ar, err := engine.Authenticate(token); err == nil {
					res = &ar
				}
			}

			if req.level == LevelPublic {
				if res != nil {
					r = r.WithContext(WithAuthResult(r.Context(), res))
				}
				next.ServeHTTP(w, r)
				return
			}

			if res == nil {
				engine.RecordMetric(portalauth.MetricGateUnauthenticated)
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			if req.level >= LevelRoles && !roleAllowed(res.Attributes, req.roles) {
				engine.RecordMetric(portalauth.MetricGateForbidden)
				writeError(w, http.StatusForbidden, "forbidden")
				return
			}

			caps := res.Capabilities
			if req.level == LevelVerifiedRoles {
				standing, err := currentStanding(r.Context(), engine, res)
				if err != nil {
					writeError(w, http.StatusServiceUnavailable, "unavailable")
					return
				}
				if !standing.Eligible() {
					engine.RecordMetric(portalauth.MetricGateStandingRejected)
					writeError(w, http.StatusForbidden, "forbidden")
					return
				}
				caps = permission.Resolve(res.Role, standing.Status, standing.Verified)
			}

			for _, c := range req.capabilities {
				if !caps.Has(c) {
					engine.RecordMetric(portalauth.MetricGateForbidden)
					writeError(w, http.StatusForbidden, "forbidden")
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(WithAuthResult(r.Context(), res)))
		})
	}
}

func currentStanding(ctx context.Context, engine *portalauth.Engine, res *portalauth.AuthResult) (portalauth.Standing, error) {
	staleness := engine.StatusStaleness()
	if age := engine.Now().Sub(res.IssuedAt); staleness > 0 && age >= 0 && age <= staleness {
		return portalauth.Standing{Status: res.Status, Verified: res.Verified}, nil
	}
	standing, err := engine.Standing(ctx, res.UserID)
	if err != nil {
		if errors.Is(err, portalauth.ErrAccountNotFound) {
			return portalauth.Standing{}, nil
		}
		return portalauth.Standing{}, err
	}
	return standing, nil
}

func roleAllowed(attrs jwt.RoleAttributes, allowed []permission.Role) bool {
	var role permission.Role
	switch attrs.(type) {
	case jwt.Student:
		role = permission.RoleStudent
	case jwt.Employer:
		role = permission.RoleEmployer
	case jwt.Professor:
		role = permission.RoleProfessor
	case jwt.Admin:
		role = permission.RoleAdmin
	default:
		return false
	}
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

func writeError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code})
}
