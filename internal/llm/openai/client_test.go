package openai

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/billguard/internal/llm"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		APIKey:         "sk-test",
		BaseURL:        srv.URL + "/v1/",
		Model:          "mini",
		ReasoningModel: "big",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestGenerateJSON_RequestAndResponse(t *testing.T) {
	var got map[string]any
	var path, auth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		auth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"choices":[{"finish_reason":"stop","message":{"content":" {\"letter\":\"hi\",\"steps\":[]} "}}]}`)
	})

	temp := float32(0.2)
	out, err := c.GenerateJSON(context.Background(), llm.GenerateRequest{
		Tier:        llm.TierFast,
		Prompt:      "analyze",
		Image:       &llm.InlineImage{MIMEType: "image/jpeg", Data: "BBBB"},
		Schema:      llm.BuildDisputeJSONSchema(),
		SchemaName:  llm.DisputeSchemaName,
		Temperature: &temp,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"letter":"hi","steps":[]}`, string(out))

	assert.Equal(t, "/v1/chat/completions", path)
	assert.Equal(t, "Bearer sk-test", auth)
	assert.Equal(t, "mini", got["model"])
	assert.InDelta(t, 0.2, got["temperature"], 1e-6)

	rf := got["response_format"].(map[string]any)
	assert.Equal(t, "json_schema", rf["type"])
	assert.Equal(t, llm.DisputeSchemaName, rf["json_schema"].(map[string]any)["name"])

	msgs := got["messages"].([]any)
	user := msgs[len(msgs)-1].(map[string]any)
	content := user["content"].([]any)
	require.Len(t, content, 2)
	img := content[1].(map[string]any)["image_url"].(map[string]any)
	assert.Equal(t, "data:image/jpeg;base64,BBBB", img["url"])
}

func TestGenerateJSON_ReasoningTier(t *testing.T) {
	var model any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		model = body["model"]
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"{}"}}]}`)
	})
	_, err := c.GenerateJSON(context.Background(), llm.GenerateRequest{Tier: llm.TierReasoning, Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "big", model)
}

func TestGenerateJSON_Failures(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"non-2xx": func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		},
		"no choices": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, `{"choices":[]}`)
		},
		"refusal": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, `{"choices":[{"message":{"content":null,"refusal":"cannot help"}}]}`)
		},
		"content filter": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, `{"choices":[{"finish_reason":"content_filter","message":{"content":"{}"}}]}`)
		},
		"empty content": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, `{"choices":[{"message":{"content":""}}]}`)
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, h)
			_, err := c.GenerateJSON(context.Background(), llm.GenerateRequest{Prompt: "p"})
			assert.Error(t, err)
		})
	}
}
