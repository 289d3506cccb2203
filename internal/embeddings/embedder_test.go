package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/helpline/escalation-service/internal/config"
)

func TestHTTPEmbedderEmbed(t *testing.T) {
	var gotAuth string
	var gotReq embeddingRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"embedding": []float32{0.1, 0.2, 0.3}}},
		})
	}))
	defer server.Close()

	embedder := NewHTTPEmbedder(config.EmbeddingsConfig{
		BaseURL: server.URL,
		APIKey:  "secret",
		Model:   "text-embedding-3-small",
	})

	vec, err := embedder.Embed(context.Background(), "store hours?")
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}
	if len(vec) != 3 || vec[0] != 0.1 {
		t.Fatalf("unexpected vector %v", vec)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("missing auth header, got %q", gotAuth)
	}
	if gotReq.Model != "text-embedding-3-small" || gotReq.Input != "store hours?" {
		t.Fatalf("unexpected request %+v", gotReq)
	}
}

func TestHTTPEmbedderErrors(t *testing.T) {
	t.Run("non-200", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
		}))
		defer server.Close()

		embedder := NewHTTPEmbedder(config.EmbeddingsConfig{BaseURL: server.URL})
		if _, err := embedder.Embed(context.Background(), "q"); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("empty data", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"data":[]}`))
		}))
		defer server.Close()

		embedder := NewHTTPEmbedder(config.EmbeddingsConfig{BaseURL: server.URL})
		if _, err := embedder.Embed(context.Background(), "q"); err == nil {
			t.Fatal("expected error")
		}
	})
}
