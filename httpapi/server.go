package httpapi

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/MrEthical07/portalauth"
	"github.com/MrEthical07/portalauth/metrics/export/prometheus"
	"github.com/MrEthical07/portalauth/middleware"
	"github.com/MrEthical07/portalauth/permission"
)

// Limiters are the admission policies. A nil limiter admits everything.
type Limiters struct {
	Auth    middleware.Limiter
	Routine middleware.Limiter
	Admin   middleware.Limiter
}

type Config struct {
	Limiters Limiters
	Cookies  CookieConfig
	// AccessLog enables chi's request logger.
	AccessLog bool
	// TrustedProxies are the CIDRs whose X-Forwarded-For and X-Real-IP
	// headers are believed. Empty means limiter keys use the connection
	// address only.
	TrustedProxies []string
	// Metrics serves /metrics. Defaults to a Prometheus registry reading
	// the engine.
	Metrics http.Handler
}

type Server struct {
	engine  *portalauth.Engine
	cfg     Config
	metrics http.Handler
	proxies *middleware.ProxyTrust
}

func NewServer(engine *portalauth.Engine, cfg Config) (*Server, error) {
	if engine == nil {
		return nil, portalauth.ErrEngineNotReady
	}
	metrics := cfg.Metrics
	if metrics == nil {
		h, err := prometheus.Handler(engine)
		if err != nil {
			return nil, err
		}
		metrics = h
	}
	proxies, err := middleware.NewProxyTrust(cfg.TrustedProxies)
	if err != nil {
		return nil, err
	}
	return &Server{engine: engine, cfg: cfg, metrics: metrics, proxies: proxies}, nil
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	if s.cfg.AccessLog {
		r.Use(chimiddleware.Logger)
	}
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", s.metrics)

	authLimit := middleware.Admit(s.engine, s.cfg.Limiters.Auth, s.proxies.ClientIP)
	authenticated := middleware.Gate(s.engine, middleware.Authenticated())

	r.With(authLimit).Post("/login", s.handleLogin)
	r.With(authLimit).Post("/register", s.handleRegister)

	r.Route("/auth", func(r chi.Router) {
		r.With(authLimit).Post("/refresh", s.handleRefresh)
		r.With(authenticated).Post("/logout", s.handleLogout)
		r.With(authenticated, middleware.Admit(s.engine, s.cfg.Limiters.Routine, middleware.SubjectKey(s.proxies.ClientIP))).
			Get("/me", s.handleMe)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.Admit(s.engine, s.cfg.Limiters.Admin, s.proxies.ClientIP))
		r.Use(middleware.Gate(s.engine, middleware.VerifiedRoles(permission.RoleAdmin).
			WithCapability(permission.CapManageAccounts)))
		r.Get("/accounts", s.handleListAccounts)
		r.Post("/accounts/{accountID}/{action}", s.handleAccountAction)
	})

	return r
}

func (s *Server) logf(format string, args ...any) {
	log.Printf(format, args...)
}
