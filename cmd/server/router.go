package main

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/sync/errgroup"

	"landtrust/internal/access"
	identityservice "landtrust/internal/identity/service"
	jwttoken "landtrust/internal/jwt_token"
	"landtrust/internal/oidc"
	"landtrust/internal/platform/config"
	"landtrust/internal/platform/metrics"
	"landtrust/internal/ratelimit"
	registrationhandler "landtrust/internal/registration/handler"
	registrationservice "landtrust/internal/registration/service"
	settingshandler "landtrust/internal/settings/handler"
	settingsservice "landtrust/internal/settings/service"
	"landtrust/pkg/platform/audit/publisher"
	"landtrust/pkg/platform/httputil"
	authmw "landtrust/pkg/platform/middleware/auth"
	"landtrust/pkg/platform/middleware/metadata"
	"landtrust/pkg/platform/middleware/requesttime"
	"landtrust/pkg/requestcontext"
)

type app struct {
	router        http.Handler
	allowlistSize int
}

func buildApp(ctx context.Context, cfg config.Server, inf *infra, log *slog.Logger, m *metrics.Metrics) (*app, error) {
	verifier, err := newVerifier(ctx, cfg.Auth)
	if err != nil {
		return nil, err
	}

	auditPublisher := publisher.New(inf.events,
		publisher.WithLogger(log),
		publisher.WithFailureCounter(m.AuditFailures),
	)

	identities, err := identityservice.New(inf.users, inf.runner,
		identityservice.WithLogger(log),
		identityservice.WithMetrics(m),
	)
	if err != nil {
		return nil, fmt.Errorf("identity service: %w", err)
	}

	allowlist := access.NewAllowlist(cfg.AdminAllowlist())
	gate, err := access.NewGate(identities, allowlist, access.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("access gate: %w", err)
	}

	registrations, err := registrationservice.New(inf.registrations, inf.runner, auditPublisher, inf.blobs,
		registrationservice.WithLogger(log),
		registrationservice.WithMetrics(m),
	)
	if err != nil {
		return nil, fmt.Errorf("registration service: %w", err)
	}

	settings, err := settingsservice.New(inf.settings, inf.runner, auditPublisher,
		settingsservice.WithLogger(log),
	)
	if err != nil {
		return nil, fmt.Errorf("settings service: %w", err)
	}

	regHandler := registrationhandler.New(registrations, gate, log,
		registrationhandler.WithMaxUploadBytes(cfg.Blob.MaxUploadMB<<20),
	)
	settingsHandler := settingshandler.New(settings, log)
	limiter := ratelimit.NewMiddleware(inf.limits, log)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	if origins := cfg.AllowedOrigins(); len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	r.Use(m.Instrument)

	r.Get("/healthz", healthHandler(inf))
	r.Handle("/metrics", m.Handler())

	r.Group(func(r chi.Router) {
		r.Use(authmw.Authenticate(verifier, log))
		r.Use(authmw.ResolveUser(identityservice.NewRequestResolver(identities), log))

		settingsHandler.Register(r)

		r.Group(func(r chi.Router) {
			r.Use(authmw.RequireUser(log))
			r.Use(limiter.Limit("applicant", ratelimit.Policy{Limit: cfg.ApplicantRequestsPerMinute, Window: time.Minute}))
			regHandler.Register(r)
		})

		r.Route("/admin", func(r chi.Router) {
			r.With(gate.RequireStaffPage(cfg.SignInURL)).Get("/", adminIndex)
			r.Group(func(r chi.Router) {
				r.Use(gate.RequireStaffAPI)
				regHandler.RegisterAdmin(r)
				settingsHandler.RegisterAdmin(r)
			})
		})
	})

	return &app{router: r, allowlistSize: allowlist.Len()}, nil
}

// newVerifier prefers OIDC; HS256 tokens are for local development.
func newVerifier(ctx context.Context, cfg config.AuthConfig) (authmw.TokenVerifier, error) {
	if cfg.OIDCEnabled() {
		v, err := oidc.NewVerifier(ctx, cfg.IssuerURL, cfg.ClientID)
		if err != nil {
			return nil, fmt.Errorf("oidc verifier: %w", err)
		}
		return v, nil
	}
	return jwttoken.NewJWTService(cfg.JWTSecret, cfg.JWTIssuer), nil
}

func healthHandler(inf *infra) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		g, ctx := errgroup.WithContext(ctx)
		if inf.db != nil {
			g.Go(func() error { return inf.db.PingContext(ctx) })
		}
		if inf.redis != nil {
			g.Go(func() error { return inf.redis.Health(ctx) })
		}
		if err := g.Wait(); err != nil {
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

var adminPage = template.Must(template.New("admin").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Land Trust staff</title></head>
<body>
<h1>Commoner registrations</h1>
<p>Signed in as {{.}}.</p>
<ul>
<li><a href="/admin/registrations?status=PENDING">Pending registrations</a></li>
<li><a href="/admin/settings/land-applications">Land applications flag</a></li>
</ul>
</body>
</html>`))

func adminIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = adminPage.Execute(w, requestcontext.UserEmail(r.Context()))
}
