// Package app wires configuration, adapters and usecases into a running
// service.
package app

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/goldstream/goldstream/internal/adapter/httpserver"
	"github.com/goldstream/goldstream/internal/adapter/observability"
	"github.com/goldstream/goldstream/internal/config"
)

// API base paths. The operator back office lives next to the public member
// API under its own prefix.
const (
	PublicBasePath   = "/api/g/1.0"
	OperatorBasePath = "/g/1.0"
)

// ParseOrigins splits a comma-separated origin list into a slice, trimming
// spaces. An empty input allows any origin.
func ParseOrigins(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return []string{"*"}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// BuildRouter constructs the HTTP handler with all middlewares and routes.
func BuildRouter(cfg config.Config, srv *httpserver.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(httpserver.Recoverer())
	r.Use(httpserver.RequestID())
	r.Use(httpserver.TimeoutMiddleware(30 * time.Second))
	r.Use(httpserver.TraceMiddleware)
	r.Use(httpserver.AccessLog())
	r.Use(observability.HTTPMetricsMiddleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   ParseOrigins(cfg.CORSAllowOrigins),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route(PublicBasePath, func(api chi.Router) {
		// Anonymous surface, rate limited per IP.
		api.Group(func(anon chi.Router) {
			anon.Use(httprate.LimitByIP(cfg.RateLimitPerMin, 1*time.Minute))
			anon.Post("/auth/register", srv.RegisterHandler())
			anon.Post("/auth/confirm", srv.ConfirmHandler())
			anon.Post("/auth/login", srv.LoginHandler())
			anon.Post("/auth/refresh", srv.RefreshHandler())
			anon.Post("/auth/reset", srv.ResetRequestHandler())
			anon.Post("/auth/reset/confirm", srv.ResetConfirmHandler())
			anon.Get("/categories", srv.CategoriesHandler())
			anon.Get("/countries", srv.CountriesHandler())
			anon.Get("/currencies", srv.CurrenciesHandler())
			anon.Get("/currencies/{id}/donate-sizes", srv.DonateSizesHandler())
			anon.Get("/posts", srv.PostsHandler())
			anon.Get("/posts/{id}", srv.PostHandler())
			anon.Get("/reviews", srv.ReviewsHandler())
		})

		// Member surface.
		api.Group(func(member chi.Router) {
			member.Use(srv.RequireMember)
			member.Post("/auth/logout", srv.LogoutHandler())
			member.Post("/auth/password", srv.ChangePasswordHandler())
			member.Get("/users/me", srv.MeHandler())
			member.Put("/users/me", srv.UpdateProfileHandler())
			member.Put("/users/me/language", srv.SetLanguageHandler())
			member.Put("/users/me/currency", srv.SetCurrencyHandler())
			member.Post("/users/me/referer", srv.JoinStructureHandler())
			member.Get("/users/me/community", srv.CommunityHandler())
			member.Post("/users/me/counters/reset", srv.ResetCounterHandler())
			member.Get("/users/me/notifications", srv.NotificationSettingsHandler())
			member.Put("/users/me/notifications", srv.ToggleNotificationHandler())

			member.Get("/dreams", srv.DreamFeedHandler())
			member.Post("/dreams", srv.CreateDreamHandler())
			member.Post("/dreams/draft", srv.DraftDreamHandler())
			member.Post("/dreams/{id}/publish", srv.PublishDreamHandler())
			member.Post("/dreams/{id}/close", srv.CloseDreamHandler())
			member.Get("/dreams/my", srv.MyDreamsHandler())
			member.Get("/dreams/climbing", srv.ClimbingDreamHandler())
			member.Get("/dreams/{id}", srv.DreamHandler())
			member.Put("/dreams/{id}", srv.UpdateDreamHandler())
			member.Delete("/dreams/{id}", srv.DeleteDreamHandler())
			member.Get("/dreams/{id}/statistics", srv.DreamStatsHandler())

			member.Post("/donations", srv.FreeDonateHandler())
			member.Get("/donations/my", srv.MyDonationsHandler())
			member.Get("/donations/{id}", srv.DonationHandler())
			member.Post("/donations/{id}/pay", srv.PayDonationHandler())
			member.Post("/donations/{id}/confirm", srv.ConfirmDonationHandler())
		})
	})

	r.Route(OperatorBasePath, func(api chi.Router) {
		api.Group(func(anon chi.Router) {
			anon.Use(httprate.LimitByIP(cfg.RateLimitPerMin, 1*time.Minute))
			anon.Post("/auth/login", srv.OperatorLoginHandler())
		})
		api.Post("/tasks/refresh-rates", srv.RefreshRatesHandler())

		api.Group(func(op chi.Router) {
			op.Use(srv.RequireOperator)
			op.Get("/users", srv.OperatorUsersHandler())
			op.Get("/users/{id}", srv.OperatorUserHandler())
			op.Put("/users/{id}/active", srv.OperatorBlockUserHandler())
			op.Put("/users/{id}/vip", srv.OperatorVIPHandler())
			op.Post("/dreams/charity", srv.OperatorCharityDreamHandler())
			op.Post("/dreams/{id}/activate", srv.OperatorActivateDreamHandler())
			op.Get("/settings", srv.OperatorSettingsHandler())
			op.Put("/settings", srv.OperatorUpdateSettingsHandler())
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", srv.ReadyzHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) { promhttp.Handler().ServeHTTP(w, r) })
	r.Get("/openapi.yaml", srv.OpenAPIServe())
	r.Get("/docs", srv.DocsHandler())

	return httpserver.SecurityHeaders(r)
}
