package services

import (
	"context"
	"errors"
	"strings"

	"aether-notes/ai"
	"aether-notes/db"
	"aether-notes/models"
	"aether-notes/scope"

	"go.uber.org/zap"
)

// PlanWindow is how many of the most recent notes feed an action plan.
const PlanWindow = 20

type NoteService struct {
	store  db.Store
	gen    ai.Generator
	logger *zap.Logger
}

func NewNoteService(store db.Store, gen ai.Generator, logger *zap.Logger) *NoteService {
	return &NoteService{store: store, gen: gen, logger: logger}
}

func (s *NoteService) List(ctx context.Context, sc scope.Scope) ([]models.Note, error) {
	notes, err := s.store.ListNotes(ctx, sc)
	if err != nil {
		return nil, s.fail(err, "Failed to retrieve notes", sc)
	}
	return notes, nil
}

func (s *NoteService) Get(ctx context.Context, sc scope.Scope, id models.ID) (*models.Note, error) {
	note, err := s.store.GetNote(ctx, sc, id)
	if err != nil {
		return nil, s.fail(err, "Failed to retrieve note", sc)
	}
	return note, nil
}

// Create stores every input under the scope's owner. Either all notes are
// created or none are. An empty batch creates nothing.
func (s *NoteService) Create(ctx context.Context, sc scope.Scope, in []models.NoteInput) ([]models.Note, error) {
	if len(in) == 0 {
		return []models.Note{}, nil
	}
	for _, n := range in {
		if n.Title == "" || n.Content == "" {
			return nil, validation("Title and content are required")
		}
	}
	notes, err := s.store.CreateNotes(ctx, sc, in)
	if err != nil {
		return nil, s.fail(err, "Failed to create notes", sc)
	}
	s.logger.Info("notes created", zap.Stringer("scope", sc), zap.Int("count", len(notes)))
	return notes, nil
}

func (s *NoteService) Update(ctx context.Context, sc scope.Scope, id models.ID, patch models.NotePatch) (*models.Note, error) {
	note, err := s.store.UpdateNote(ctx, sc, id, patch)
	if err != nil {
		return nil, s.fail(err, "Failed to update note", sc)
	}
	return note, nil
}

func (s *NoteService) Delete(ctx context.Context, sc scope.Scope, id models.ID) error {
	if err := s.store.DeleteNote(ctx, sc, id); err != nil {
		return s.fail(err, "Failed to delete note", sc)
	}
	s.logger.Info("note deleted", zap.Stringer("scope", sc), zap.Stringer("note_id", id))
	return nil
}

func (s *NoteService) ReplaceTags(ctx context.Context, sc scope.Scope, id models.ID, tagIDs []models.ID) (*models.Note, error) {
	note, err := s.store.ReplaceNoteTags(ctx, sc, id, tagIDs)
	if err != nil {
		return nil, s.fail(err, "Failed to update note tags", sc)
	}
	return note, nil
}

func (s *NoteService) CreateTag(ctx context.Context, name string) (*models.Tag, error) {
	if strings.TrimSpace(name) == "" {
		return nil, validation("Tag name is required")
	}
	tag, err := s.store.CreateTag(ctx, name)
	if err != nil {
		return nil, s.fail(err, "Failed to create tag", scope.Public())
	}
	return tag, nil
}

func (s *NoteService) ListTags(ctx context.Context) ([]models.Tag, error) {
	tags, err := s.store.ListTags(ctx)
	if err != nil {
		return nil, s.fail(err, "Failed to fetch tags", scope.Public())
	}
	return tags, nil
}

// Summarize asks the generator for a summary of the note and stores it.
// The note is left untouched when generation fails.
func (s *NoteService) Summarize(ctx context.Context, sc scope.Scope, id models.ID) (*models.Note, error) {
	note, err := s.store.GetNote(ctx, sc, id)
	if err != nil {
		return nil, s.fail(err, "Failed to summarize note", sc)
	}

	summary, err := s.gen.Summarize(ctx, note.Title, note.Content)
	if err != nil {
		return nil, internal("Failed to summarize note", err)
	}

	updated, err := s.store.SetSummary(ctx, sc, id, summary)
	if err != nil {
		return nil, s.fail(err, "Failed to summarize note", sc)
	}
	return updated, nil
}

// ActionPlan builds a plan from the most recent notes in scope. Nothing is
// persisted.
func (s *NoteService) ActionPlan(ctx context.Context, sc scope.Scope) (string, error) {
	notes, err := s.store.RecentNotes(ctx, sc, PlanWindow)
	if err != nil {
		return "", s.fail(err, "Failed to generate action plan", sc)
	}
	if len(notes) == 0 {
		return "", notFound("No notes found")
	}

	plan, err := s.gen.ActionPlan(ctx, notes)
	if err != nil {
		return "", internal("Failed to generate action plan", err)
	}
	return plan, nil
}

// fail maps storage errors onto error kinds. Anything unexpected is logged
// and reported with the generic message.
func (s *NoteService) fail(err error, message string, sc scope.Scope) error {
	switch {
	case errors.Is(err, db.ErrNotFound):
		return notFound("Note not found")
	case errors.Is(err, db.ErrUnknownTag):
		return validation("Unknown tag")
	}
	s.logger.Error(message, zap.Error(err), zap.Stringer("scope", sc))
	return internal(message, err)
}
