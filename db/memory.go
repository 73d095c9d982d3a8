package db

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"aether-notes/models"
	"aether-notes/scope"
)

type memNote struct {
	note   models.Note
	tagIDs []models.ID
}

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps everything in process memory. It backs tests and the
// "memory" driver for local runs.
type MemoryStore struct {
	mu     sync.RWMutex
	users  map[models.ID]models.User
	notes  map[models.ID]*memNote
	tags   map[models.ID]models.Tag
	lastID map[string]models.ID
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:  make(map[models.ID]models.User),
		notes:  make(map[models.ID]*memNote),
		tags:   make(map[models.ID]models.Tag),
		lastID: make(map[string]models.ID),
		now:    time.Now,
	}
}

func (s *MemoryStore) nextID(table string) models.ID {
	s.lastID[table]++
	return s.lastID[table]
}

func (s *MemoryStore) CreateUser(ctx context.Context, email, passwordHash string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return nil, ErrDuplicate
		}
	}
	u := models.User{
		ID:           s.nextID("users"),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    s.now().UTC(),
	}
	s.users[u.ID] = u
	return &u, nil
}

func (s *MemoryStore) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ListNotes(ctx context.Context, sc scope.Scope) ([]models.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	notes := s.inScope(sc)
	sort.Slice(notes, func(i, j int) bool { return notes[i].ID < notes[j].ID })
	return notes, nil
}

func (s *MemoryStore) RecentNotes(ctx context.Context, sc scope.Scope, limit int) ([]models.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	notes := s.inScope(sc)
	sort.Slice(notes, func(i, j int) bool {
		if !notes[i].CreatedAt.Equal(notes[j].CreatedAt) {
			return notes[i].CreatedAt.After(notes[j].CreatedAt)
		}
		return notes[i].ID > notes[j].ID
	})
	if limit >= 0 && len(notes) > limit {
		notes = notes[:limit]
	}
	return notes, nil
}

func (s *MemoryStore) GetNote(ctx context.Context, sc scope.Scope, id models.ID) (*models.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, err := s.lookup(sc, id)
	if err != nil {
		return nil, err
	}
	note := s.view(n)
	return &note, nil
}

func (s *MemoryStore) CreateNotes(ctx context.Context, sc scope.Scope, in []models.NoteInput) ([]models.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// validate the whole batch first so a failure leaves nothing behind
	tagSets := make([][]models.ID, len(in))
	for i, n := range in {
		ids := dedupe(models.TagIDs(n.Tags))
		if err := s.checkTags(ids); err != nil {
			return nil, err
		}
		tagSets[i] = ids
	}

	created := make([]models.Note, 0, len(in))
	for i, n := range in {
		m := &memNote{
			note: models.Note{
				ID:        s.nextID("notes"),
				Title:     n.Title,
				Content:   n.Content,
				UserID:    sc.Owner(),
				CreatedAt: s.now().UTC(),
			},
			tagIDs: tagSets[i],
		}
		s.notes[m.note.ID] = m
		created = append(created, s.view(m))
	}
	return created, nil
}

func (s *MemoryStore) UpdateNote(ctx context.Context, sc scope.Scope, id models.ID, patch models.NotePatch) (*models.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.lookup(sc, id)
	if err != nil {
		return nil, err
	}
	var tagIDs []models.ID
	if patch.Tags != nil {
		tagIDs = dedupe(models.TagIDs(*patch.Tags))
		if err := s.checkTags(tagIDs); err != nil {
			return nil, err
		}
	}

	if patch.Title != nil && *patch.Title != "" {
		n.note.Title = *patch.Title
	}
	if patch.Content != nil && *patch.Content != "" {
		n.note.Content = *patch.Content
	}
	if patch.Tags != nil {
		n.tagIDs = tagIDs
	}
	note := s.view(n)
	return &note, nil
}

func (s *MemoryStore) DeleteNote(ctx context.Context, sc scope.Scope, id models.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.lookup(sc, id); err != nil {
		return err
	}
	delete(s.notes, id)
	return nil
}

func (s *MemoryStore) ReplaceNoteTags(ctx context.Context, sc scope.Scope, id models.ID, tagIDs []models.ID) (*models.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.lookup(sc, id)
	if err != nil {
		return nil, err
	}
	tagIDs = dedupe(tagIDs)
	if err := s.checkTags(tagIDs); err != nil {
		return nil, err
	}
	n.tagIDs = tagIDs
	note := s.view(n)
	return &note, nil
}

func (s *MemoryStore) SetSummary(ctx context.Context, sc scope.Scope, id models.ID, summary string) (*models.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.lookup(sc, id)
	if err != nil {
		return nil, err
	}
	n.note.Summary = &summary
	note := s.view(n)
	return &note, nil
}

func (s *MemoryStore) CreateTag(ctx context.Context, name string) (*models.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := models.Tag{ID: s.nextID("tags"), Name: name}
	s.tags[t.ID] = t
	return &t, nil
}

func (s *MemoryStore) ListTags(ctx context.Context) ([]models.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tags := make([]models.Tag, 0, len(s.tags))
	for _, t := range s.tags {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].ID < tags[j].ID })
	return tags, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) lookup(sc scope.Scope, id models.ID) (*memNote, error) {
	n, ok := s.notes[id]
	if !ok || !sc.Allows(n.note.UserID) {
		return nil, ErrNotFound
	}
	return n, nil
}

func (s *MemoryStore) inScope(sc scope.Scope) []models.Note {
	notes := []models.Note{}
	for _, n := range s.notes {
		if sc.Allows(n.note.UserID) {
			notes = append(notes, s.view(n))
		}
	}
	return notes
}

func (s *MemoryStore) checkTags(ids []models.ID) error {
	for _, id := range ids {
		if _, ok := s.tags[id]; !ok {
			return ErrUnknownTag
		}
	}
	return nil
}

// view returns a copy of the note with its tags resolved, so callers never
// share memory with the store.
func (s *MemoryStore) view(n *memNote) models.Note {
	note := n.note
	if note.UserID != nil {
		owner := *note.UserID
		note.UserID = &owner
	}
	if note.Summary != nil {
		summary := *note.Summary
		note.Summary = &summary
	}
	note.Tags = []models.Tag{}
	for _, id := range n.tagIDs {
		if t, ok := s.tags[id]; ok {
			note.Tags = append(note.Tags, t)
		}
	}
	sort.Slice(note.Tags, func(i, j int) bool { return note.Tags[i].ID < note.Tags[j].ID })
	return note
}
