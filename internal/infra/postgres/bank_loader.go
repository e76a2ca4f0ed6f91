package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/H-SG/telegram-quizbot/internal/bank"
	"github.com/H-SG/telegram-quizbot/internal/domain"
)

// BankLoader loads a raw bank document (jsonb) from Postgres and runs
// it through the same builder and validation as the TOML path.
type BankLoader struct {
	pool *pgxpool.Pool
}

func NewBankLoader(pool *pgxpool.Pool) *BankLoader {
	return &BankLoader{pool: pool}
}

func (l *BankLoader) LoadBank(ctx context.Context, bankID string) (*domain.Bank, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM question_banks WHERE id=$1`, bankID).Scan(&raw)
	if err != nil {
		return nil, fmt.Errorf("load bank %q: %w", bankID, err)
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal bank %q: %w", bankID, err)
	}
	return bank.FromRaw(doc)
}
