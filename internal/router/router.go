package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"mediquiz-backend/internal/handlers"
	"mediquiz-backend/internal/middleware"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Auth      *handlers.AuthHandler
	Content   *handlers.ContentHandler
	Quiz      *handlers.QuizHandler
	Job       *handlers.JobHandler
	Profile   *handlers.ProfileHandler
	WebSocket http.HandlerFunc
	Health    http.HandlerFunc
}

func New(jwtAuth *middleware.JWTAuth, h Handlers, frontendURL string) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Auth rate limiter (10 req/min per IP)
	authLimiter := middleware.NewRateLimiter(10, time.Minute)
	// Model-backed routes (20 req/min per user)
	aiLimiter := middleware.NewRateLimiter(20, time.Minute)

	health := h.Health
	if health == nil {
		health = func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"ok"}`))
		}
	}
	r.Get("/health", health)

	if h.WebSocket != nil {
		r.Get("/ws", h.WebSocket)
	}

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Auth Routes (public) ────
		r.Route("/auth", func(r chi.Router) {
			r.Use(authLimiter.Middleware)
			r.Post("/register", h.Auth.Register)
			r.Post("/login", h.Auth.Login)
			r.Post("/guest", h.Auth.Guest)
		})

		// ──── Content Routes ────
		r.Route("/content", func(r chi.Router) {
			r.Get("/supported-formats", h.Content.SupportedFormats) // Public

			r.Group(func(r chi.Router) {
				r.Use(jwtAuth.Middleware)
				r.Use(aiLimiter.Middleware)
				r.Post("/analyze", h.Content.Analyze)
				r.Post("/analyze-file", h.Content.AnalyzeFile)
			})
		})

		// ──── Quiz Routes ────
		r.Route("/quizzes", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.With(aiLimiter.Middleware).Post("/generate", h.Quiz.Generate)
			r.Get("/", h.Quiz.List)
			r.Get("/{id}", h.Quiz.Get)
			r.Delete("/{id}", h.Quiz.Delete)
			r.Post("/{id}/start", h.Quiz.StartAttempt)
			r.Get("/{id}/attempts", h.Quiz.ListAttempts)
		})

		r.Route("/quiz-attempts", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Post("/{id}/save-progress", h.Quiz.SaveProgress)
			r.Post("/{id}/submit", h.Quiz.SubmitAttempt)
			r.Get("/{id}", h.Quiz.GetAttempt)
		})

		// ──── Job & Profile Routes ────
		r.Group(func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/jobs/{id}", h.Job.Get)
			r.Get("/profile", h.Profile.Get)
			r.Patch("/profile", h.Profile.Update)
			r.Post("/profile", h.Profile.Update)
			r.Post("/profile/password", h.Auth.ChangePassword)
		})
	})

	return r
}
