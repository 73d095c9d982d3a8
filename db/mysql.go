package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"aether-notes/models"
	"aether-notes/scope"

	"go.uber.org/zap"
)

const noteColumns = "id, title, content, summary, user_id, created_at"

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

var _ Store = (*MySQLStore)(nil)

// MySQLStore keeps users, notes and tags in MySQL. Every check-then-write
// sequence on a note runs in one transaction holding the note's row lock.
type MySQLStore struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewMySQLStore(conn *sql.DB, logger *zap.Logger) *MySQLStore {
	return &MySQLStore{db: conn, logger: logger}
}

func (s *MySQLStore) CreateUser(ctx context.Context, email, passwordHash string) (*models.User, error) {
	res, err := s.db.ExecContext(ctx, "INSERT INTO users (email, password_hash) VALUES (?, ?)", email, passwordHash)
	if err != nil {
		if isDuplicate(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("user id: %w", err)
	}
	return s.scanUser(s.db.QueryRowContext(ctx, "SELECT id, email, password_hash, created_at FROM users WHERE id = ?", id))
}

func (s *MySQLStore) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, "SELECT id, email, password_hash, created_at FROM users WHERE email = ?", email))
}

func (s *MySQLStore) scanUser(row scanner) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

func (s *MySQLStore) ListNotes(ctx context.Context, sc scope.Scope) ([]models.Note, error) {
	where, args := sc.Where("user_id")
	return s.queryNotes(ctx, s.db, "SELECT "+noteColumns+" FROM notes WHERE "+where+" ORDER BY id", args...)
}

func (s *MySQLStore) RecentNotes(ctx context.Context, sc scope.Scope, limit int) ([]models.Note, error) {
	where, args := sc.Where("user_id")
	args = append(args, limit)
	return s.queryNotes(ctx, s.db, "SELECT "+noteColumns+" FROM notes WHERE "+where+" ORDER BY created_at DESC, id DESC LIMIT ?", args...)
}

func (s *MySQLStore) GetNote(ctx context.Context, sc scope.Scope, id models.ID) (*models.Note, error) {
	return s.getNote(ctx, s.db, sc, id)
}

// CreateNotes inserts the whole batch in one transaction: either every note
// is created or none is.
func (s *MySQLStore) CreateNotes(ctx context.Context, sc scope.Scope, in []models.NoteInput) ([]models.Note, error) {
	var created []models.Note
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		ids := make([]models.ID, 0, len(in))
		for _, n := range in {
			tagIDs := dedupe(models.TagIDs(n.Tags))
			if err := checkTags(ctx, tx, tagIDs); err != nil {
				return err
			}
			res, err := tx.ExecContext(ctx, "INSERT INTO notes (title, content, user_id) VALUES (?, ?, ?)", n.Title, n.Content, ownerArg(sc))
			if err != nil {
				return fmt.Errorf("insert note: %w", err)
			}
			id, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("note id: %w", err)
			}
			if err := insertNoteTags(ctx, tx, models.ID(id), tagIDs); err != nil {
				return err
			}
			ids = append(ids, models.ID(id))
		}
		for _, id := range ids {
			note, err := s.getNote(ctx, tx, sc, id)
			if err != nil {
				return err
			}
			created = append(created, *note)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *MySQLStore) UpdateNote(ctx context.Context, sc scope.Scope, id models.ID, patch models.NotePatch) (*models.Note, error) {
	var note *models.Note
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := lockNote(ctx, tx, sc, id); err != nil {
			return err
		}

		var sets []string
		var args []any
		if patch.Title != nil && *patch.Title != "" {
			sets = append(sets, "title = ?")
			args = append(args, *patch.Title)
		}
		if patch.Content != nil && *patch.Content != "" {
			sets = append(sets, "content = ?")
			args = append(args, *patch.Content)
		}
		if len(sets) > 0 {
			args = append(args, int64(id))
			if _, err := tx.ExecContext(ctx, "UPDATE notes SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...); err != nil {
				return fmt.Errorf("update note: %w", err)
			}
		}
		if patch.Tags != nil {
			if err := replaceTags(ctx, tx, id, models.TagIDs(*patch.Tags)); err != nil {
				return err
			}
		}

		var err error
		note, err = s.getNote(ctx, tx, sc, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return note, nil
}

func (s *MySQLStore) DeleteNote(ctx context.Context, sc scope.Scope, id models.ID) error {
	where, args := sc.Where("user_id")
	res, err := s.db.ExecContext(ctx, "DELETE FROM notes WHERE id = ? AND "+where, append([]any{int64(id)}, args...)...)
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MySQLStore) ReplaceNoteTags(ctx context.Context, sc scope.Scope, id models.ID, tagIDs []models.ID) (*models.Note, error) {
	var note *models.Note
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := lockNote(ctx, tx, sc, id); err != nil {
			return err
		}
		if err := replaceTags(ctx, tx, id, tagIDs); err != nil {
			return err
		}
		var err error
		note, err = s.getNote(ctx, tx, sc, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return note, nil
}

func (s *MySQLStore) SetSummary(ctx context.Context, sc scope.Scope, id models.ID, summary string) (*models.Note, error) {
	var note *models.Note
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := lockNote(ctx, tx, sc, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "UPDATE notes SET summary = ? WHERE id = ?", summary, int64(id)); err != nil {
			return fmt.Errorf("update summary: %w", err)
		}
		var err error
		note, err = s.getNote(ctx, tx, sc, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return note, nil
}

func (s *MySQLStore) CreateTag(ctx context.Context, name string) (*models.Tag, error) {
	res, err := s.db.ExecContext(ctx, "INSERT INTO tags (name) VALUES (?)", name)
	if err != nil {
		return nil, fmt.Errorf("insert tag: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("tag id: %w", err)
	}
	return &models.Tag{ID: models.ID(id), Name: name}, nil
}

func (s *MySQLStore) ListTags(ctx context.Context) ([]models.Tag, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name FROM tags ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query tags: %w", err)
	}
	defer rows.Close()

	tags := []models.Tag{}
	for rows.Next() {
		var t models.Tag
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

func (s *MySQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *MySQLStore) Close() error {
	return s.db.Close()
}

func (s *MySQLStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Warn("rollback failed", zap.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *MySQLStore) getNote(ctx context.Context, q querier, sc scope.Scope, id models.ID) (*models.Note, error) {
	where, args := sc.Where("user_id")
	notes, err := s.queryNotes(ctx, q, "SELECT "+noteColumns+" FROM notes WHERE id = ? AND "+where, append([]any{int64(id)}, args...)...)
	if err != nil {
		return nil, err
	}
	if len(notes) == 0 {
		return nil, ErrNotFound
	}
	return &notes[0], nil
}

func (s *MySQLStore) queryNotes(ctx context.Context, q querier, query string, args ...any) ([]models.Note, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query notes: %w", err)
	}
	notes := []models.Note{}
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("query notes: %w", err)
	}
	rows.Close()

	if err := attachTags(ctx, q, notes); err != nil {
		return nil, err
	}
	return notes, nil
}

func scanNote(row scanner) (models.Note, error) {
	var (
		n       models.Note
		summary sql.NullString
		owner   sql.NullInt64
	)
	if err := row.Scan(&n.ID, &n.Title, &n.Content, &summary, &owner, &n.CreatedAt); err != nil {
		return n, fmt.Errorf("scan note: %w", err)
	}
	if summary.Valid {
		n.Summary = &summary.String
	}
	if owner.Valid {
		id := models.ID(owner.Int64)
		n.UserID = &id
	}
	n.Tags = []models.Tag{}
	return n, nil
}

func attachTags(ctx context.Context, q querier, notes []models.Note) error {
	if len(notes) == 0 {
		return nil
	}
	index := make(map[models.ID]int, len(notes))
	args := make([]any, 0, len(notes))
	for i, n := range notes {
		index[n.ID] = i
		args = append(args, int64(n.ID))
	}

	rows, err := q.QueryContext(ctx,
		"SELECT nt.note_id, t.id, t.name FROM note_tags nt JOIN tags t ON t.id = nt.tag_id WHERE nt.note_id IN ("+placeholders(len(args))+") ORDER BY t.id",
		args...)
	if err != nil {
		return fmt.Errorf("query note tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var noteID models.ID
		var t models.Tag
		if err := rows.Scan(&noteID, &t.ID, &t.Name); err != nil {
			return fmt.Errorf("scan note tag: %w", err)
		}
		if i, ok := index[noteID]; ok {
			notes[i].Tags = append(notes[i].Tags, t)
		}
	}
	return rows.Err()
}

func lockNote(ctx context.Context, tx *sql.Tx, sc scope.Scope, id models.ID) error {
	where, args := sc.Where("user_id")
	var locked int64
	err := tx.QueryRowContext(ctx, "SELECT id FROM notes WHERE id = ? AND "+where+" FOR UPDATE", append([]any{int64(id)}, args...)...).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock note: %w", err)
	}
	return nil
}

func checkTags(ctx context.Context, q querier, ids []models.ID) error {
	if len(ids) == 0 {
		return nil
	}
	var count int
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM tags WHERE id IN ("+placeholders(len(ids))+")", idArgs(ids)...).Scan(&count); err != nil {
		return fmt.Errorf("check tags: %w", err)
	}
	if count != len(ids) {
		return ErrUnknownTag
	}
	return nil
}

func replaceTags(ctx context.Context, tx *sql.Tx, noteID models.ID, tagIDs []models.ID) error {
	tagIDs = dedupe(tagIDs)
	if err := checkTags(ctx, tx, tagIDs); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM note_tags WHERE note_id = ?", int64(noteID)); err != nil {
		return fmt.Errorf("clear note tags: %w", err)
	}
	return insertNoteTags(ctx, tx, noteID, tagIDs)
}

func insertNoteTags(ctx context.Context, q querier, noteID models.ID, tagIDs []models.ID) error {
	if len(tagIDs) == 0 {
		return nil
	}
	values := make([]string, 0, len(tagIDs))
	args := make([]any, 0, 2*len(tagIDs))
	for _, t := range tagIDs {
		values = append(values, "(?, ?)")
		args = append(args, int64(noteID), int64(t))
	}
	if _, err := q.ExecContext(ctx, "INSERT INTO note_tags (note_id, tag_id) VALUES "+strings.Join(values, ", "), args...); err != nil {
		return fmt.Errorf("insert note tags: %w", err)
	}
	return nil
}

func ownerArg(sc scope.Scope) any {
	if owner := sc.Owner(); owner != nil {
		return int64(*owner)
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func idArgs(ids []models.ID) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = int64(id)
	}
	return args
}
