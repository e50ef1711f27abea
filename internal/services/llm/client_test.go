package llm_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obsidian-neural/loop-service/internal/domain/models"
	"github.com/obsidian-neural/loop-service/internal/services/llm"
)

func completionOf(content string) string {
	payload, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"content": content}},
		},
	})
	return string(payload)
}

func TestClient_Complete(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Write([]byte(completionOf(`{"action_type":"generate_sample"}`)))
	}))
	defer server.Close()

	client := llm.NewClient(&llm.ClientConfig{BaseURL: server.URL})
	turns := []models.Turn{
		{Role: models.RoleSystem, Content: "you are a sample generator"},
		{Role: models.RoleUser, Content: "techno kick"},
	}
	schema := json.RawMessage(`{"type":"object"}`)

	content, err := client.Complete(context.Background(), turns, schema)

	require.NoError(t, err)
	assert.Equal(t, `{"action_type":"generate_sample"}`, content)

	messages := received["messages"].([]any)
	require.Len(t, messages, 2)
	first := messages[0].(map[string]any)
	assert.Equal(t, "system", first["role"])

	format := received["response_format"].(map[string]any)
	assert.Equal(t, "json_object", format["type"])
	assert.NotNil(t, format["schema"])
}

func TestClient_Complete_OmitsFormatWithoutSchema(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Write([]byte(completionOf("free text")))
	}))
	defer server.Close()

	client := llm.NewClient(&llm.ClientConfig{BaseURL: server.URL})

	content, err := client.Complete(context.Background(), []models.Turn{{Role: models.RoleUser, Content: "hi"}}, nil)

	require.NoError(t, err)
	assert.Equal(t, "free text", content)
	_, hasFormat := received["response_format"]
	assert.False(t, hasFormat)
}

func TestClient_Complete_CollaboratorError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := llm.NewClient(&llm.ClientConfig{BaseURL: server.URL})

	_, err := client.Complete(context.Background(), []models.Turn{{Role: models.RoleUser, Content: "hi"}}, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}

func TestClient_Complete_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	}))
	defer server.Close()

	client := llm.NewClient(&llm.ClientConfig{BaseURL: server.URL})

	_, err := client.Complete(context.Background(), []models.Turn{{Role: models.RoleUser, Content: "hi"}}, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestClient_Complete_ContextCancellation(t *testing.T) {
	started := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server can detect the client disconnect;
		// otherwise r.Context() is never cancelled and Close deadlocks.
		io.Copy(io.Discard, r.Body)
		close(started)
		<-r.Context().Done()
	}))
	defer server.Close()

	client := llm.NewClient(&llm.ClientConfig{BaseURL: server.URL})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := client.Complete(ctx, []models.Turn{{Role: models.RoleUser, Content: "hi"}}, nil)

	assert.Error(t, err)
}
