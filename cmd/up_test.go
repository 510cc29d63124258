package cmd

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Lumos-Labs-HQ/formseed/internal/config"
	"github.com/fatih/color"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureOllamaModelPullsMissingModel(t *testing.T) {
	color.NoColor = true

	var mu sync.Mutex
	var pulled []string
	r := chi.NewRouter()
	r.Get("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"models":[]}`))
	})
	r.Post("/api/pull", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		mu.Lock()
		pulled = append(pulled, body["model"].(string))
		mu.Unlock()
		_, _ = w.Write([]byte(`{"status":"success"}`))
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	cfg := &config.Config{}
	cfg.LLM.Provider = "ollama"
	cfg.LLM.Host = srv.URL
	cfg.LLM.Model = "llama3.2"
	cfg.LLM.Timeout = time.Second
	cfg.Target.HealthTimeout = 2 * time.Second

	require.NoError(t, ensureOllamaModel(context.Background(), cfg))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"llama3.2"}, pulled)
}
