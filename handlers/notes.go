package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"

	"aether-notes/middleware"
	"aether-notes/models"
	"aether-notes/scope"
	"aether-notes/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// ScopeFunc picks the note scope for a request.
type ScopeFunc func(r *http.Request) (scope.Scope, bool)

// PublicScope puts every request in the public scope.
func PublicScope(*http.Request) (scope.Scope, bool) {
	return scope.Public(), true
}

// CallerScope scopes a request to the authenticated caller.
func CallerScope(r *http.Request) (scope.Scope, bool) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		return scope.Scope{}, false
	}
	return scope.Owner(id.UserID), true
}

type NotesHandler struct {
	notes    *services.NoteService
	scope    ScopeFunc
	validate *validator.Validate
}

func NewNotesHandler(notes *services.NoteService, sf ScopeFunc) *NotesHandler {
	return &NotesHandler{notes: notes, scope: sf, validate: newValidator()}
}

// Routes mounts the note and tag endpoints on r.
func (h *NotesHandler) Routes(r chi.Router) {
	r.Get("/notes", h.GetNotes)
	r.Post("/notes", h.CreateNotes)
	r.Get("/notes/{id}", h.GetNote)
	r.Put("/notes/{id}", h.UpdateNote)
	r.Delete("/notes/{id}", h.DeleteNote)
	r.Post("/notes/{id}/summarize", h.SummarizeNote)
	r.Put("/notes/{id}/tags", h.ReplaceTags)
	r.Post("/tags", h.CreateTag)
	r.Get("/tags", h.GetTags)
	r.Get("/generate-action-plan", h.ActionPlan)
}

func (h *NotesHandler) requestScope(w http.ResponseWriter, r *http.Request) (scope.Scope, bool) {
	sc, ok := h.scope(r)
	if !ok {
		Error(w, http.StatusUnauthorized, "Unauthorized")
	}
	return sc, ok
}

func noteID(w http.ResponseWriter, r *http.Request) (models.ID, bool) {
	id, err := models.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		BadRequest(w, "Invalid note id")
		return 0, false
	}
	return id, true
}

func (h *NotesHandler) GetNotes(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.requestScope(w, r)
	if !ok {
		return
	}
	notes, err := h.notes.List(r.Context(), sc)
	if err != nil {
		ServiceError(w, err)
		return
	}
	JSON(w, http.StatusOK, notes)
}

func (h *NotesHandler) GetNote(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.requestScope(w, r)
	if !ok {
		return
	}
	id, ok := noteID(w, r)
	if !ok {
		return
	}
	note, err := h.notes.Get(r.Context(), sc, id)
	if err != nil {
		ServiceError(w, err)
		return
	}
	JSON(w, http.StatusOK, note)
}

// CreateNotes accepts a single note object or an array of them and always
// answers with an array.
func (h *NotesHandler) CreateNotes(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.requestScope(w, r)
	if !ok {
		return
	}

	var raw json.RawMessage
	if err := decode(r, w, &raw); err != nil {
		BadRequest(w, badBodyMessage)
		return
	}
	var in []models.NoteInput
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &in); err != nil {
			BadRequest(w, badBodyMessage)
			return
		}
	} else {
		var one models.NoteInput
		if len(trimmed) > 0 {
			if err := json.Unmarshal(trimmed, &one); err != nil {
				BadRequest(w, badBodyMessage)
				return
			}
		}
		in = []models.NoteInput{one}
	}
	for i := range in {
		if err := h.validate.Struct(in[i]); err != nil {
			BadRequest(w, validationMessage(err))
			return
		}
	}

	notes, err := h.notes.Create(r.Context(), sc, in)
	if err != nil {
		ServiceError(w, err)
		return
	}
	status := http.StatusCreated
	if len(notes) == 0 {
		status = http.StatusOK
	}
	JSON(w, status, notes)
}

func (h *NotesHandler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.requestScope(w, r)
	if !ok {
		return
	}
	id, ok := noteID(w, r)
	if !ok {
		return
	}
	var patch models.NotePatch
	if err := decode(r, w, &patch); err != nil {
		BadRequest(w, badBodyMessage)
		return
	}
	if err := h.validate.Struct(patch); err != nil {
		BadRequest(w, validationMessage(err))
		return
	}

	note, err := h.notes.Update(r.Context(), sc, id, patch)
	if err != nil {
		ServiceError(w, err)
		return
	}
	JSON(w, http.StatusOK, note)
}

func (h *NotesHandler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.requestScope(w, r)
	if !ok {
		return
	}
	id, ok := noteID(w, r)
	if !ok {
		return
	}
	if err := h.notes.Delete(r.Context(), sc, id); err != nil {
		ServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *NotesHandler) SummarizeNote(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.requestScope(w, r)
	if !ok {
		return
	}
	id, ok := noteID(w, r)
	if !ok {
		return
	}
	note, err := h.notes.Summarize(r.Context(), sc, id)
	if err != nil {
		ServiceError(w, err)
		return
	}
	JSON(w, http.StatusOK, note)
}

func (h *NotesHandler) ReplaceTags(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.requestScope(w, r)
	if !ok {
		return
	}
	id, ok := noteID(w, r)
	if !ok {
		return
	}
	var req models.TagIDsInput
	if err := decode(r, w, &req); err != nil {
		BadRequest(w, badBodyMessage)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		BadRequest(w, validationMessage(err))
		return
	}

	note, err := h.notes.ReplaceTags(r.Context(), sc, id, req.TagIDs)
	if err != nil {
		ServiceError(w, err)
		return
	}
	JSON(w, http.StatusOK, note)
}

func (h *NotesHandler) CreateTag(w http.ResponseWriter, r *http.Request) {
	var req models.TagInput
	if err := decode(r, w, &req); err != nil {
		BadRequest(w, badBodyMessage)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		BadRequest(w, validationMessage(err))
		return
	}

	tag, err := h.notes.CreateTag(r.Context(), req.Name)
	if err != nil {
		ServiceError(w, err)
		return
	}
	JSON(w, http.StatusCreated, tag)
}

func (h *NotesHandler) GetTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.notes.ListTags(r.Context())
	if err != nil {
		ServiceError(w, err)
		return
	}
	JSON(w, http.StatusOK, tags)
}

func (h *NotesHandler) ActionPlan(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.requestScope(w, r)
	if !ok {
		return
	}
	plan, err := h.notes.ActionPlan(r.Context(), sc)
	if err != nil {
		ServiceError(w, err)
		return
	}
	JSON(w, http.StatusOK, plan)
}
