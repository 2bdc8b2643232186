package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat-quiz-engine/internal/config"
	"chat-quiz-engine/internal/domain"
	"chat-quiz-engine/internal/engine"
	"chat-quiz-engine/internal/infra/memory"
	pgloader "chat-quiz-engine/internal/infra/postgres"
	redisinfra "chat-quiz-engine/internal/infra/redis"
	"chat-quiz-engine/internal/transport/ws"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewServeCmd builds the CLI subcommand that starts the engine.
func NewServeCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the quiz engine server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.BankLoader = memory.NewStaticBankLoader(sampleBanks())
	if pool != nil {
		loader = pgloader.NewBankLoader(pool)
	}

	bankTTL := config.TTLDuration(cfg.Bank.TTL, 10*time.Minute)
	var banks engine.BankRepository
	if redisClient != nil {
		banks = redisinfra.NewBankRepository(redisClient, loader, bankTTL)
	} else {
		banks = memory.NewBankRepository(loader, bankTTL)
	}

	var store engine.SessionStore
	if redisClient != nil {
		store = redisinfra.NewSessionStore(redisClient, redisTTL)
	} else {
		store = memory.NewSessionStore()
	}

	manager := engine.NewManager(store, banks, engine.NewScheduler(), engineConfig(cfg))
	wsHandler := ws.NewHandler(manager)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz engine on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// engineConfig translates YAML settings into engine tunables.
func engineConfig(cfg config.Config) engine.Config {
	ec := engine.DefaultConfig()
	ec.Window = config.TTLDuration(cfg.Quiz.Window, ec.Window)
	ec.AdvanceDelay = config.TTLDuration(cfg.Quiz.Delay, ec.AdvanceDelay)
	if cfg.Quiz.Points > 0 {
		ec.BasePoints = cfg.Quiz.Points
	}
	if cfg.Quiz.Floor > 0 {
		ec.Scoring.Floor = cfg.Quiz.Floor
	}
	if cfg.Quiz.HintPenalty > 0 {
		ec.Scoring.HintPenalty = cfg.Quiz.HintPenalty
	}
	if cfg.Quiz.Decay == string(engine.DecayExponential) {
		ec.Scoring.Curve = engine.DecayExponential
	}
	ec.Shuffle = cfg.Quiz.Shuffle
	if cfg.Quiz.TeamA != "" {
		ec.TeamA = cfg.Quiz.TeamA
	}
	if cfg.Quiz.TeamB != "" {
		ec.TeamB = cfg.Quiz.TeamB
	}
	return ec
}

// sampleBanks provides a minimal bank so the engine runs without Postgres;
// swap the loader for the Postgres-backed one in production.
func sampleBanks() map[string]domain.Bank {
	return map[string]domain.Bank{
		"general": {
			ID: "general",
			Questions: []domain.Question{
				{
					ID:           "q1",
					Prompt:       "Which planet is known as the Red Planet?",
					Answer:       "Mars",
					Points:       5,
					LimitSeconds: 30,
				},
				{
					ID:           "q2",
					Prompt:       "What is 12 × 12?",
					Answer:       "144",
					Numeric:      true,
					Points:       5,
					LimitSeconds: 20,
				},
				{
					ID:           "q3",
					Prompt:       "Name the capital of Australia.",
					Answer:       "Canberra",
					Hints:        []string{"Not Sydney.", "Starts with C."},
					Points:       5,
					LimitSeconds: 30,
				},
			},
		},
	}
}
