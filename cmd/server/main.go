package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"mediquiz-backend/internal/config"
	"mediquiz-backend/internal/database"
	"mediquiz-backend/internal/handlers"
	"mediquiz-backend/internal/middleware"
	"mediquiz-backend/internal/repository"
	"mediquiz-backend/internal/router"
	"mediquiz-backend/internal/services"
	"mediquiz-backend/internal/websocket"
	"mediquiz-backend/internal/worker"
)

func main() {
	log.Println("🚀 Starting MediQuiz Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	ctx := context.Background()

	// ──── Step 2: Initialize Storage ────
	var (
		pool     *pgxpool.Pool
		quizRepo repository.QuizStore
		userRepo repository.UserStore
		jobRepo  repository.JobStore
	)
	if cfg.UsesMemoryStore() {
		quizRepo = repository.NewMemoryQuizRepo()
		userRepo = repository.NewMemoryUserRepo()
		jobRepo = repository.NewMemoryJobRepo()
		log.Println("✓ Using in-memory store (DATABASE_URL not set)")
	} else {
		var err error
		pool, err = database.NewPostgresPool(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("✗ PostgreSQL connection failed: %v", err)
		}
		defer pool.Close()
		log.Println("✓ PostgreSQL connected")

		if err := database.RunMigrations(ctx, pool); err != nil {
			log.Fatalf("✗ Database migration failed: %v", err)
		}
		log.Println("✓ Database migrations applied")

		quizRepo = repository.NewQuizRepo(pool)
		userRepo = repository.NewUserRepo(pool)
		jobRepo = repository.NewJobRepo(pool)
	}

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(cfg.RedisURL)
	if err != nil {
		log.Fatalf("✗ Redis connection failed: %v", err)
	}
	defer redisClients.Close()
	log.Println("✓ Redis connected")

	// ──── Step 4: Initialize Gemini Client ────
	gemini, err := services.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiConcurrentReqs)
	if err != nil {
		log.Fatalf("✗ Gemini client initialization failed: %v", err)
	}
	defer gemini.Close()
	log.Printf("✓ Gemini client initialized (analysis: %s, generation: %s)", cfg.GeminiAnalysisModel, cfg.GeminiGenerationModel)

	// ──── Initialize Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	queue := worker.NewRedisQueue(redisClients.Queue)
	publisher := services.NewRedisPublisher(redisClients.Queue)
	generation := services.NewGenerationService(gemini, cfg.GeminiAnalysisModel, cfg.GeminiGenerationModel, cfg.QuizBatchSize)
	fileExtract := services.NewFileExtractService(generation, cfg.MaxUploadBytes())
	authService := services.NewAuthService(userRepo, jwtAuth)
	quizService := services.NewQuizService(quizRepo, jobRepo, queue)
	profileService := services.NewProfileService(userRepo, quizRepo)

	// ──── Step 5: Start Job Worker Pool ────
	workerPool := worker.NewPool(redisClients.Queue, generation, quizRepo, jobRepo, publisher, cfg.WorkerCount)
	workerPool.Start()
	log.Printf("✓ Worker pool started (%d goroutines)", cfg.WorkerCount)

	// ──── Step 6: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClients.PubSub, jwtAuth)
	log.Println("✓ WebSocket hub started")

	// ──── Step 7: Start HTTP Server ────
	r := router.New(jwtAuth, router.Handlers{
		Auth:      handlers.NewAuthHandler(authService),
		Content:   handlers.NewContentHandler(generation, fileExtract, cfg.MaxUploadBytes()),
		Quiz:      handlers.NewQuizHandler(quizService),
		Job:       handlers.NewJobHandler(quizService),
		Profile:   handlers.NewProfileHandler(profileService),
		WebSocket: wsHub.HandleWebSocket,
		Health:    healthHandler(redisClients, pool),
	}, cfg.FrontendURL)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // file analysis waits on the model
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
		wsHub.Close()
		workerPool.Stop()
		close(done)
	}()

	log.Printf("✓ MediQuiz Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
	<-done
}

// healthHandler reports Redis and, when configured, Postgres reachability.
func healthHandler(redisClients *database.RedisClients, pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := map[string]string{"status": "ok", "redis": "ok", "database": "memory"}
		code := http.StatusOK
		if err := redisClients.Ping(ctx); err != nil {
			status["redis"] = err.Error()
			status["status"] = "degraded"
			code = http.StatusServiceUnavailable
		}
		if pool != nil {
			status["database"] = "ok"
			if err := pool.Ping(ctx); err != nil {
				status["database"] = err.Error()
				status["status"] = "degraded"
				code = http.StatusServiceUnavailable
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(status)
	}
}
