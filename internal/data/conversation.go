package data

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xianyu-tools/ai-reply-engine/internal/biz/domain"
)

// conversationRepo implements the Conversation repository.
// Timestamps are stored as Unix microseconds and assigned under mu so they
// strictly increase even when the clock stalls or steps back.
type conversationRepo struct {
	db   *sql.DB
	mu   sync.Mutex
	now  func() time.Time
	last int64
}

func newConversationRepo(db *sql.DB, now func() time.Time) (*conversationRepo, error) {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS ai_conversations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			msg_id TEXT NOT NULL UNIQUE,
			account_id TEXT NOT NULL,
			chat_id TEXT NOT NULL,
			buyer_id TEXT NOT NULL DEFAULT '',
			item_id TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			intent TEXT,
			created_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	// Create indexes
	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_conv_chat_time ON ai_conversations(chat_id, account_id, created_at)`)
	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_conv_chat_intent ON ai_conversations(chat_id, account_id, role, intent)`)
	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_conv_created_at ON ai_conversations(created_at)`)

	var last sql.NullInt64
	if err := db.QueryRow(`SELECT MAX(created_at) FROM ai_conversations`).Scan(&last); err != nil {
		return nil, fmt.Errorf("failed to read last timestamp: %w", err)
	}

	return &conversationRepo{db: db, now: now, last: last.Int64}, nil
}

// Append writes a message and returns its store timestamp
func (r *conversationRepo) Append(ctx context.Context, msg *domain.Message) (time.Time, error) {
	if !msg.Role.Valid() {
		return time.Time{}, fmt.Errorf("invalid role: %q", msg.Role)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ts := r.now().UnixMicro()
	if ts <= r.last {
		ts = r.last + 1
	}

	id := msg.ID
	if id == "" {
		id = uuid.New().String()
	}

	var intent sql.NullString
	if msg.Intent != "" {
		intent = sql.NullString{String: string(msg.Intent), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO ai_conversations (msg_id, account_id, chat_id, buyer_id, item_id, role, content, intent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, msg.AccountID, msg.ChatID, msg.BuyerID, msg.ItemID, string(msg.Role), msg.Content, intent, ts)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to append message: %w", err)
	}

	r.last = ts
	msg.ID = id
	msg.CreatedAt = time.UnixMicro(ts)
	return msg.CreatedAt, nil
}

// QueryRecent returns messages for a chat/account pair
func (r *conversationRepo) QueryRecent(ctx context.Context, q domain.MessageQuery) ([]*domain.Message, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT msg_id, account_id, chat_id, buyer_id, item_id, role, content, intent, created_at
		FROM ai_conversations
		WHERE chat_id = ? AND account_id = ?`)
	args := []any{q.ChatID, q.AccountID}

	if q.Role != "" {
		sb.WriteString(` AND role = ?`)
		args = append(args, string(q.Role))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if q.Since > 0 {
		sb.WriteString(` AND created_at > ?`)
		args = append(args, r.now().Add(-q.Since).UnixMicro())
	}

	if q.Order == domain.OrderDesc {
		sb.WriteString(` ORDER BY created_at DESC, id DESC`)
	} else {
		sb.WriteString(` ORDER BY created_at ASC, id ASC`)
	}

	if q.Limit > 0 {
		sb.WriteString(` LIMIT ?`)
		args = append(args, q.Limit)
	}

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var msgs []*domain.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}
	return msgs, nil
}

// CountWhere counts messages with the given role and intent
func (r *conversationRepo) CountWhere(ctx context.Context, chatID, accountID string, role domain.Role, intent domain.Intent) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM ai_conversations
		WHERE chat_id = ? AND account_id = ? AND role = ? AND intent = ?
	`, chatID, accountID, string(role), string(intent)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return count, nil
}

// Activity summarizes traffic per account since the given time
func (r *conversationRepo) Activity(ctx context.Context, since time.Time) ([]*domain.AccountActivity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.QueryContext(ctx, `
		SELECT account_id,
			SUM(CASE WHEN role = 'user' THEN 1 ELSE 0 END),
			SUM(CASE WHEN role = 'assistant' THEN 1 ELSE 0 END),
			COUNT(DISTINCT chat_id)
		FROM ai_conversations
		WHERE created_at > ?
		GROUP BY account_id
		ORDER BY account_id
	`, since.UnixMicro())
	if err != nil {
		return nil, fmt.Errorf("failed to query activity: %w", err)
	}
	defer rows.Close()

	var result []*domain.AccountActivity
	for rows.Next() {
		var a domain.AccountActivity
		if err := rows.Scan(&a.AccountID, &a.Inbound, &a.Replies, &a.Chats); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		result = append(result, &a)
	}
	return result, rows.Err()
}

// Close closes the underlying database
func (r *conversationRepo) Close() error {
	return r.db.Close()
}

func scanMessage(rows *sql.Rows) (*domain.Message, error) {
	var msg domain.Message
	var role string
	var intent sql.NullString
	var createdAt int64
	if err := rows.Scan(&msg.ID, &msg.AccountID, &msg.ChatID, &msg.BuyerID, &msg.ItemID, &role, &msg.Content, &intent, &createdAt); err != nil {
		return nil, fmt.Errorf("failed to scan message: %w", err)
	}
	msg.Role = domain.Role(role)
	msg.Intent = domain.Intent(intent.String)
	msg.CreatedAt = time.UnixMicro(createdAt)
	return &msg, nil
}
