package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/H-SG/telegram-quizbot/internal/bank"
	"github.com/H-SG/telegram-quizbot/internal/config"
	"github.com/H-SG/telegram-quizbot/internal/domain"
	"github.com/H-SG/telegram-quizbot/internal/infra/memory"
	pgbank "github.com/H-SG/telegram-quizbot/internal/infra/postgres"
	redissession "github.com/H-SG/telegram-quizbot/internal/infra/redis"
	"github.com/H-SG/telegram-quizbot/internal/logger"
	"github.com/H-SG/telegram-quizbot/internal/quiz"
	"github.com/H-SG/telegram-quizbot/internal/transport/telegram"
	"github.com/H-SG/telegram-quizbot/internal/transport/ws"
)

// NewServeCmd builds the CLI subcommand to start the bot.
func NewServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the quiz bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *configPath)
		},
	}
}

func runServe(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logger.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Bank: Postgres when configured, the TOML file otherwise. Either
	// way validation runs before anything starts serving.
	var quizBank *domain.Bank
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pool.Close()

		bankID := cfg.Quiz.BankID
		if bankID == "" {
			bankID = "default"
		}
		quizBank, err = pgbank.NewBankLoader(pool).LoadBank(ctx, bankID)
		if err != nil {
			return err
		}
		log.Info().Str("bank", bankID).Int("questions", quizBank.Len()).Msg("bank loaded from postgres")
	} else {
		bankPath := cfg.Quiz.BankPath
		if bankPath == "" {
			bankPath = "quiz.toml"
		}
		quizBank, err = bank.Load(bankPath)
		if err != nil {
			return err
		}
		log.Info().Str("bank", bankPath).Int("questions", quizBank.Len()).Msg("bank loaded")
	}

	sessionTTL := config.TTLDuration(cfg.Session.TTL, 24*time.Hour)
	var store quiz.SessionStore
	if cfg.Redis.Addr != "" {
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		store = redissession.NewSessionStore(client, config.TTLDuration(cfg.Redis.TTL, sessionTTL))
		log.Info().Str("addr", cfg.Redis.Addr).Msg("using redis session store")
	} else {
		memStore := memory.NewSessionStore(sessionTTL)
		defer memStore.Close()
		store = memStore
	}

	engine, err := quiz.NewEngine(quizBank, store, quiz.Params{
		Questions:    cfg.Quiz.Questions,
		Retries:      cfg.Quiz.Retries,
		WinThreshold: cfg.Quiz.WinThreshold,
		QuestionTime: config.TTLDuration(cfg.Quiz.QuestionTime, 30*time.Second),
	})
	if err != nil {
		return err
	}

	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		token = cfg.Telegram.Token
	}
	if token == "" && cfg.Server.Port == "" {
		return fmt.Errorf("nothing to serve: configure telegram.token or server.port")
	}

	g, ctx := errgroup.WithContext(ctx)

	if token != "" {
		bot, err := telegram.NewBot(token, engine, log)
		if err != nil {
			return fmt.Errorf("init telegram bot: %w", err)
		}
		g.Go(func() error { return bot.Run(ctx) })
	}

	if cfg.Server.Port != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("ok"))
		})
		mux.HandleFunc("/ws", ws.NewHandler(engine, log).ServeWS)

		server := &http.Server{
			Addr:         ":" + cfg.Server.Port,
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		g.Go(func() error {
			log.Info().Str("port", cfg.Server.Port).Msg("starting ws playground")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	log.Info().Msg("shut down")
	return err
}
