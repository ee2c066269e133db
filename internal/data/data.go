package data

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xianyu-tools/ai-reply-engine/internal/biz/repo"

	_ "modernc.org/sqlite"
)

// Repositories contains all SQLite-backed repositories.
// They share one database file and connection.
type Repositories struct {
	Conversation repo.ConversationRepo
	Settings     repo.SettingsRepo
	Item         repo.ItemRepo

	db *sql.DB
}

// NewRepositories opens the database and prepares every table
func NewRepositories(dbPath string) (*Repositories, error) {
	return newRepositories(dbPath, time.Now)
}

func newRepositories(dbPath string, now func() time.Time) (*Repositories, error) {
	db, err := openDB(dbPath)
	if err != nil {
		return nil, err
	}

	convRepo, err := newConversationRepo(db, now)
	if err != nil {
		db.Close()
		return nil, err
	}

	settingsRepo, err := newSettingsRepo(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	itemRepo, err := newItemRepo(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	fmt.Printf("[Store] Database ready: %s\n", dbPath)
	return &Repositories{
		Conversation: convRepo,
		Settings:     settingsRepo,
		Item:         itemRepo,
		db:           db,
	}, nil
}

// Close closes the shared database
func (r *Repositories) Close() error {
	return r.db.Close()
}

func openDB(dbPath string) (*sql.DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer; SQLite serializes anyway and this avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		fmt.Printf("[Store] WAL not enabled: %v\n", err)
	}

	return db, nil
}
