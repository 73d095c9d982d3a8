package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"aether-notes/config"
	"aether-notes/db"

	"go.uber.org/zap"
)

var router http.Handler
var testUserEmail = "a@b.com"
var testUserPassword = "secret"
var accessToken string

// fakeOpenAI answers chat completions with a fixed reply.
func fakeOpenAI() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string `json:"model"`
		}
		json.NewDecoder(r.Body).Decode(&req)

		reply := "Summary of the note."
		if req.Model == "gpt-4o-mini" {
			reply = "Immediate actions (next 7 days): write tests."
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-integration",
			"object":  "chat.completion",
			"created": time.Now().Unix(),
			"model":   req.Model,
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": reply},
				"finish_reason": "stop",
			}},
		})
	}))
}

func request(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if strings.HasPrefix(path, "/api-private") {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestMain(m *testing.M) {
	provider := fakeOpenAI()

	cfg := &config.Config{
		Port:            0,
		TokenSecret:     "integration-secret",
		TokenTTL:        6 * time.Hour,
		OpenAIAPIKey:    "test-key",
		OpenAIBaseURL:   provider.URL + "/v1",
		SummaryModel:    "gpt-3.5-turbo",
		PlanModel:       "gpt-4o-mini",
		DBDriver:        "memory",
		ShutdownTimeout: time.Second,
	}
	store, err := openStore(context.Background(), cfg, zap.NewNop())
	if err != nil {
		panic(err)
	}
	router = newServer(cfg, store, zap.NewNop()).Handler

	code := m.Run()

	provider.Close()
	store.Close()
	os.Exit(code)
}

func TestSignupLoginAndScopes(t *testing.T) {
	// Sign up
	resp := request("POST", "/auth/signup", map[string]string{
		"email":    testUserEmail,
		"password": testUserPassword,
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected status Created, got %v: %s", resp.Code, resp.Body.String())
	}
	var user map[string]any
	json.Unmarshal(resp.Body.Bytes(), &user)
	if user["id"] != "1" || user["email"] != testUserEmail {
		t.Errorf("Unexpected user %v", user)
	}
	if _, err := time.Parse("2006-01-02T15:04:05.000Z", user["createdAt"].(string)); err != nil {
		t.Errorf("createdAt is not ISO-8601: %v", err)
	}

	// Log in
	resp = request("POST", "/auth/login", map[string]string{
		"email":    testUserEmail,
		"password": testUserPassword,
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status OK, got %v", resp.Code)
	}
	var loginResp map[string]string
	json.Unmarshal(resp.Body.Bytes(), &loginResp)
	accessToken = loginResp["token"]
	if accessToken == "" {
		t.Fatal("Login returned no token")
	}

	// Create a private note
	resp = request("POST", "/api-private/notes", map[string]string{"title": "T", "content": "C"})
	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected status Created, got %v", resp.Code)
	}
	var created []map[string]any
	json.Unmarshal(resp.Body.Bytes(), &created)
	if len(created) != 1 || created[0]["userId"] != "1" {
		t.Fatalf("Expected one note owned by user 1, got %v", created)
	}
	noteID := created[0]["id"].(string)

	// The public surface does not see it
	resp = request("GET", "/api/notes", nil)
	var public []map[string]any
	json.Unmarshal(resp.Body.Bytes(), &public)
	for _, note := range public {
		if note["id"] == noteID {
			t.Error("Private note leaked onto the public surface")
		}
	}

	// The owner does
	resp = request("GET", "/api-private/notes", nil)
	var private []map[string]any
	json.Unmarshal(resp.Body.Bytes(), &private)
	found := false
	for _, note := range private {
		if note["id"] == noteID {
			found = true
		}
	}
	if !found {
		t.Error("Created note not found in the private list")
	}

	// Summarize through the provider
	resp = request("POST", "/api-private/notes/"+noteID+"/summarize", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status OK, got %v: %s", resp.Code, resp.Body.String())
	}
	var summarized map[string]any
	json.Unmarshal(resp.Body.Bytes(), &summarized)
	if summarized["summary"] != "Summary of the note." {
		t.Errorf("Unexpected summary %v", summarized["summary"])
	}

	// Action plan
	resp = request("GET", "/api-private/generate-action-plan", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status OK, got %v", resp.Code)
	}
	var plan string
	json.Unmarshal(resp.Body.Bytes(), &plan)
	if !strings.Contains(plan, "next 7 days") {
		t.Errorf("Unexpected plan %q", plan)
	}

	// Delete twice
	if resp := request("DELETE", "/api-private/notes/"+noteID, nil); resp.Code != http.StatusNoContent {
		t.Errorf("Expected status No Content, got %v", resp.Code)
	}
	if resp := request("DELETE", "/api-private/notes/"+noteID, nil); resp.Code != http.StatusNotFound {
		t.Errorf("Expected status Not Found, got %v", resp.Code)
	}

	// Nothing left to plan from
	if resp := request("GET", "/api-private/generate-action-plan", nil); resp.Code != http.StatusNotFound {
		t.Errorf("Expected status Not Found, got %v", resp.Code)
	}
}

func TestPublicNotesAndTags(t *testing.T) {
	resp := request("POST", "/api/tags", map[string]string{"name": "errands"})
	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected status Created, got %v", resp.Code)
	}
	var tag map[string]any
	json.Unmarshal(resp.Body.Bytes(), &tag)

	resp = request("POST", "/api/notes", []map[string]any{
		{"title": "Groceries", "content": "milk", "tags": []map[string]any{{"id": tag["id"]}}},
		{"title": "Bank", "content": "call"},
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected status Created, got %v: %s", resp.Code, resp.Body.String())
	}
	var created []map[string]any
	json.Unmarshal(resp.Body.Bytes(), &created)
	if len(created) != 2 {
		t.Fatalf("Expected 2 notes, got %d", len(created))
	}

	resp = request("PUT", "/api/notes/"+created[1]["id"].(string)+"/tags", map[string]any{"tagIds": []any{tag["id"]}})
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status OK, got %v", resp.Code)
	}
	var tagged map[string]any
	json.Unmarshal(resp.Body.Bytes(), &tagged)
	if tags := tagged["tags"].([]any); len(tags) != 1 {
		t.Errorf("Expected 1 tag, got %v", tags)
	}

	if resp := request("GET", "/health", nil); resp.Code != http.StatusOK {
		t.Errorf("Expected status OK, got %v", resp.Code)
	}
}

func TestOpenStoreMemory(t *testing.T) {
	store, err := openStore(context.Background(), &config.Config{DBDriver: "memory"}, zap.NewNop())
	if err != nil {
		t.Fatalf("openStore: %v", err)
	}
	if _, ok := store.(*db.MemoryStore); !ok {
		t.Errorf("Expected a memory store, got %T", store)
	}
}
