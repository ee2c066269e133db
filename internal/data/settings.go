package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xianyu-tools/ai-reply-engine/internal/biz/domain"
)

// settingsRepo implements the Settings repository
type settingsRepo struct {
	db *sql.DB
}

func newSettingsRepo(db *sql.DB) (*settingsRepo, error) {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS ai_reply_settings (
			account_id TEXT PRIMARY KEY,
			enabled INTEGER NOT NULL DEFAULT 0,
			api_key TEXT NOT NULL DEFAULT '',
			base_url TEXT NOT NULL DEFAULT '',
			model_name TEXT NOT NULL DEFAULT '',
			max_bargain_rounds INTEGER NOT NULL DEFAULT 3,
			max_discount_percent REAL NOT NULL DEFAULT 10,
			max_discount_amount REAL NOT NULL DEFAULT 100,
			custom_prompts TEXT NOT NULL DEFAULT '{}',
			updated_at INTEGER NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	return &settingsRepo{db: db}, nil
}

const settingsColumns = `account_id, enabled, api_key, base_url, model_name,
	max_bargain_rounds, max_discount_percent, max_discount_amount, custom_prompts, updated_at`

// Get returns stored settings or defaults
func (r *settingsRepo) Get(ctx context.Context, accountID string) (*domain.ReplySettings, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+settingsColumns+` FROM ai_reply_settings WHERE account_id = ?`, accountID)
	s, err := scanSettings(row)
	if err == sql.ErrNoRows {
		return domain.DefaultReplySettings(accountID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	return s, nil
}

// Save applies a partial update inside one transaction
func (r *settingsRepo) Save(ctx context.Context, accountID string, patch *domain.SettingsPatch) (*domain.ReplySettings, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT `+settingsColumns+` FROM ai_reply_settings WHERE account_id = ?`, accountID)
	s, err := scanSettings(row)
	if err == sql.ErrNoRows {
		s = domain.DefaultReplySettings(accountID)
	} else if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}

	patch.Apply(s)
	s.UpdatedAt = time.Now()

	prompts, err := json.Marshal(s.CustomPrompts)
	if err != nil {
		return nil, fmt.Errorf("failed to encode custom prompts: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO ai_reply_settings (`+settingsColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		s.AccountID,
		boolToInt(s.Enabled),
		s.APIKey,
		s.BaseURL,
		s.ModelName,
		s.MaxBargainRounds,
		s.MaxDiscountPercent,
		s.MaxDiscountAmount,
		string(prompts),
		s.UpdatedAt.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save settings: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit settings: %w", err)
	}
	return s, nil
}

// List returns every stored account
func (r *settingsRepo) List(ctx context.Context) ([]*domain.ReplySettings, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+settingsColumns+` FROM ai_reply_settings ORDER BY account_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	defer rows.Close()

	var result []*domain.ReplySettings
	for rows.Next() {
		s, err := scanSettings(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan settings: %w", err)
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSettings(row rowScanner) (*domain.ReplySettings, error) {
	var s domain.ReplySettings
	var enabled int
	var prompts string
	var updatedAt int64
	err := row.Scan(
		&s.AccountID,
		&enabled,
		&s.APIKey,
		&s.BaseURL,
		&s.ModelName,
		&s.MaxBargainRounds,
		&s.MaxDiscountPercent,
		&s.MaxDiscountAmount,
		&prompts,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Enabled = enabled != 0
	s.UpdatedAt = time.Unix(updatedAt, 0)
	s.CustomPrompts = map[string]string{}
	if prompts != "" {
		if err := json.Unmarshal([]byte(prompts), &s.CustomPrompts); err != nil {
			fmt.Printf("[Store] Ignoring malformed custom_prompts for %s: %v\n", s.AccountID, err)
			s.CustomPrompts = map[string]string{}
		}
	}
	return &s, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
