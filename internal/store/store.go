// Package store keeps an audit log of dispatched commands and ingested
// reports in SQLite. It is history only: nothing in the hub's delivery path
// depends on it, and store errors never fail a dispatch or an ingest call.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"relayhub/internal/domain"

	_ "modernc.org/sqlite"
)

// SQLiteStore records relay history in a local SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection: SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS commands (
		command_id   TEXT PRIMARY KEY,
		frontend_id  TEXT NOT NULL,
		command_type TEXT NOT NULL,
		parameters   TEXT,
		created_at   DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_commands_frontend ON commands(frontend_id, created_at);

	CREATE TABLE IF NOT EXISTS reports (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		event_id    TEXT NOT NULL,
		frontend_id TEXT NOT NULL,
		platform    TEXT NOT NULL,
		chat_id     TEXT,
		sender_id   TEXT,
		content     TEXT,
		metadata    TEXT,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_reports_frontend ON reports(frontend_id, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordCommand stores a dispatched command. An empty frontendID marks a
// broadcast.
func (s *SQLiteStore) RecordCommand(ctx context.Context, frontendID string, cmd domain.BotCommand) error {
	params, err := json.Marshal(cmd.Parameters)
	if err != nil {
		return fmt.Errorf("marshal parameters: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO commands (command_id, frontend_id, command_type, parameters) VALUES (?, ?, ?, ?)`,
		cmd.CommandID, frontendID, cmd.CommandType, string(params),
	)
	if err != nil {
		return fmt.Errorf("insert command: %w", err)
	}
	return nil
}

// RecordReport stores one ingested message report.
func (s *SQLiteStore) RecordReport(ctx context.Context, msg domain.BotMessage) error {
	meta, err := json.Marshal(msg.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reports (event_id, frontend_id, platform, chat_id, sender_id, content, metadata) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.EventID, msg.FrontendID, msg.Platform.String(), msg.ChatID, msg.SenderID, msg.Content, string(meta),
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// RecentReports returns the newest reports, newest first.
func (s *SQLiteStore) RecentReports(ctx context.Context, limit int) ([]domain.BotMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT event_id, frontend_id, platform, chat_id, sender_id, content, metadata, created_at
		 FROM reports ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	var out []domain.BotMessage
	for rows.Next() {
		var msg domain.BotMessage
		var platform, meta, created string
		if err := rows.Scan(&msg.EventID, &msg.FrontendID, &platform, &msg.ChatID, &msg.SenderID, &msg.Content, &meta, &created); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		msg.Platform, _ = domain.ParsePlatform(platform)
		if meta != "" && meta != "null" {
			if err := json.Unmarshal([]byte(meta), &msg.Metadata); err != nil {
				s.logger.Warn("corrupt report metadata", "event_id", msg.EventID, "err", err)
			}
		}
		if ts, err := time.Parse("2006-01-02 15:04:05", created); err == nil {
			msg.Timestamp = ts.Unix()
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

// Prune deletes history older than the retention window.
func (s *SQLiteStore) Prune(ctx context.Context, retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	cutoff := fmt.Sprintf("-%d days", retentionDays)
	for _, table := range []string{"commands", "reports"} {
		if _, err := s.db.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE created_at < datetime('now', ?)`, table), cutoff); err != nil {
			return fmt.Errorf("prune %s: %w", table, err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
