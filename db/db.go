package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"aether-notes/models"
	"aether-notes/scope"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrDuplicate  = errors.New("duplicate")
	ErrUnknownTag = errors.New("unknown tag")
)

// Store is the storage handle every service works against. Note methods
// only ever touch rows inside the given scope.
type Store interface {
	CreateUser(ctx context.Context, email, passwordHash string) (*models.User, error)
	UserByEmail(ctx context.Context, email string) (*models.User, error)

	ListNotes(ctx context.Context, sc scope.Scope) ([]models.Note, error)
	RecentNotes(ctx context.Context, sc scope.Scope, limit int) ([]models.Note, error)
	GetNote(ctx context.Context, sc scope.Scope, id models.ID) (*models.Note, error)
	CreateNotes(ctx context.Context, sc scope.Scope, in []models.NoteInput) ([]models.Note, error)
	UpdateNote(ctx context.Context, sc scope.Scope, id models.ID, patch models.NotePatch) (*models.Note, error)
	DeleteNote(ctx context.Context, sc scope.Scope, id models.ID) error
	ReplaceNoteTags(ctx context.Context, sc scope.Scope, id models.ID, tagIDs []models.ID) (*models.Note, error)
	SetSummary(ctx context.Context, sc scope.Scope, id models.ID, summary string) (*models.Note, error)

	CreateTag(ctx context.Context, name string) (*models.Tag, error)
	ListTags(ctx context.Context) ([]models.Tag, error)

	Ping(ctx context.Context) error
	Close() error
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		email VARCHAR(255) UNIQUE NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		created_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3)
	)`,
	`CREATE TABLE IF NOT EXISTS notes (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		content TEXT NOT NULL,
		summary TEXT NULL,
		user_id BIGINT NULL,
		created_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
		INDEX idx_notes_user_created (user_id, created_at),
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS tags (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(255) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS note_tags (
		note_id BIGINT NOT NULL,
		tag_id BIGINT NOT NULL,
		PRIMARY KEY (note_id, tag_id),
		FOREIGN KEY (note_id) REFERENCES notes(id) ON DELETE CASCADE,
		FOREIGN KEY (tag_id) REFERENCES tags(id) ON DELETE CASCADE
	)`,
}

// Open connects to MySQL, forcing parseTime and UTC so DATETIME columns scan
// into time.Time, and creates the schema when missing.
func Open(ctx context.Context, dsn string, logger *zap.Logger) (*sql.DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("mysql connector: %w", err)
	}
	conn := sql.OpenDB(connector)
	conn.SetConnMaxIdleTime(5 * time.Minute)
	conn.SetConnMaxLifetime(30 * time.Minute)
	conn.SetMaxIdleConns(10)
	conn.SetMaxOpenConns(20)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := Migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, err
	}
	logger.Info("database ready", zap.String("addr", cfg.Addr), zap.String("db", cfg.DBName))
	return conn, nil
}

func Migrate(ctx context.Context, conn *sql.DB) error {
	for _, stmt := range schema {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}

// dedupe keeps the first occurrence of every id.
func dedupe(ids []models.ID) []models.ID {
	seen := make(map[models.ID]struct{}, len(ids))
	out := make([]models.ID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
