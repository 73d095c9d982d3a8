package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"aether-notes/models"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeProvider struct {
	status   int
	reply    string
	requests []openai.ChatCompletionRequest
}

func (f *fakeProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/chat/completions" {
		http.NotFound(w, r)
		return
	}
	var req openai.ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.requests = append(f.requests, req)

	w.Header().Set("Content-Type", "application/json")
	if f.status != 0 && f.status != http.StatusOK {
		w.WriteHeader(f.status)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "provider exploded", "type": "server_error"},
		})
		return
	}
	json.NewEncoder(w).Encode(map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   req.Model,
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": f.reply},
			"finish_reason": "stop",
		}},
	})
}

func newTestGenerator(t *testing.T, f *fakeProvider) *OpenAI {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	return NewOpenAI(cfg, zap.NewNop())
}

func TestSummarize(t *testing.T) {
	f := &fakeProvider{reply: "  A short summary.  "}
	g := newTestGenerator(t, f)

	got, err := g.Summarize(context.Background(), "Groceries", "milk, eggs")
	require.NoError(t, err)
	assert.Equal(t, "A short summary.", got)

	require.Len(t, f.requests, 1)
	req := f.requests[0]
	assert.Equal(t, "gpt-3.5-turbo", req.Model)
	assert.Equal(t, 150, req.MaxTokens)
	assert.InDelta(t, 0.5, req.Temperature, 1e-6)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, req.Messages[0].Role)
	assert.Contains(t, req.Messages[1].Content, "Note Title: Groceries")
	assert.Contains(t, req.Messages[1].Content, "Note Content: milk, eggs")
}

func TestSummarizeEmptyReply(t *testing.T) {
	g := newTestGenerator(t, &fakeProvider{reply: ""})

	got, err := g.Summarize(context.Background(), "T", "C")
	require.NoError(t, err)
	assert.Equal(t, "Unable to generate summary", got)
}

func TestSummarizeProviderFailure(t *testing.T) {
	g := newTestGenerator(t, &fakeProvider{status: http.StatusInternalServerError})

	_, err := g.Summarize(context.Background(), "T", "C")
	assert.True(t, errors.Is(err, ErrGeneration), "got %v", err)
}

func TestActionPlan(t *testing.T) {
	f := &fakeProvider{reply: "Next 7 days: ship it."}
	g := newTestGenerator(t, f)

	notes := []models.Note{
		{Title: "Launch", Content: "finish landing page"},
		{Title: "Hiring", Content: "interview two candidates"},
	}
	got, err := g.ActionPlan(context.Background(), notes)
	require.NoError(t, err)
	assert.Equal(t, "Next 7 days: ship it.", got)

	require.Len(t, f.requests, 1)
	req := f.requests[0]
	assert.Equal(t, "gpt-4o-mini", req.Model)
	assert.Greater(t, req.MaxTokens, 150)
	require.Len(t, req.Messages, 1)
	prompt := req.Messages[0].Content
	assert.Contains(t, prompt, "Title: Launch\nContent: finish landing page\n\nTitle: Hiring\nContent: interview two candidates")
	assert.Contains(t, prompt, "next 7 days")
	assert.Contains(t, prompt, "next 30 days")
	assert.True(t, strings.Contains(prompt, "longer-term objectives"))
}

func TestActionPlanEmptyReply(t *testing.T) {
	g := newTestGenerator(t, &fakeProvider{reply: ""})

	_, err := g.ActionPlan(context.Background(), []models.Note{{Title: "T", Content: "C"}})
	assert.ErrorIs(t, err, ErrGeneration)
}
