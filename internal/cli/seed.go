package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/H-SG/telegram-quizbot/internal/bank"
	"github.com/H-SG/telegram-quizbot/internal/config"
)

// NewSeedCmd uploads a TOML bank file into Postgres so serve can load
// it with quiz.bank_id.
func NewSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed [bank file]",
		Short: "Upsert a TOML question bank into Postgres",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "quiz.toml"
			if len(args) == 1 {
				path = args[0]
			}
			return runSeed(cmd.Context(), *configPath, path)
		},
	}
}

func runSeed(ctx context.Context, configPath, bankPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}

	data, err := os.ReadFile(bankPath)
	if err != nil {
		return fmt.Errorf("read bank file: %w", err)
	}

	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse bank file: %w", err)
	}
	// Reject malformed banks before they reach the database.
	if _, err := bank.FromRaw(raw); err != nil {
		return err
	}

	doc, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("encode bank: %w", err)
	}

	bankID := cfg.Quiz.BankID
	if bankID == "" {
		bankID = "default"
	}

	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	_, err = pool.Exec(ctx, `
		INSERT INTO question_banks (id, data, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		bankID, doc)
	if err != nil {
		return fmt.Errorf("upsert bank: %w", err)
	}
	return nil
}
