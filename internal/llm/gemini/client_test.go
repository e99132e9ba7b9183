package gemini

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
		APIKey:         "test-key",
		BaseURL:        srv.URL,
		Model:          "flash",
		ReasoningModel: "pro",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestGenerateJSON_RequestAndResponse(t *testing.T) {
	var got map[string]any
	var path, key string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		key = r.Header.Get("x-goog-api-key")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"{\"letter\":"},{"text":"\"hi\"}"}]},"finishReason":"STOP"}]}`)
	})

	temp := float32(0.2)
	out, err := c.GenerateJSON(context.Background(), llm.GenerateRequest{
		Tier:        llm.TierFast,
		Prompt:      "analyze",
		Image:       &llm.InlineImage{MIMEType: "image/png", Data: "AAAA"},
		Schema:      llm.BuildDisputeJSONSchema(),
		Temperature: &temp,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"letter":"hi"}`, string(out))

	assert.Equal(t, "/models/flash:generateContent", path)
	assert.Equal(t, "test-key", key)

	contents := got["contents"].([]any)
	parts := contents[0].(map[string]any)["parts"].([]any)
	require.Len(t, parts, 2)
	inline := parts[0].(map[string]any)["inlineData"].(map[string]any)
	assert.Equal(t, "image/png", inline["mimeType"])
	assert.Equal(t, "AAAA", inline["data"])
	assert.Equal(t, "analyze", parts[1].(map[string]any)["text"])

	cfg := got["generationConfig"].(map[string]any)
	assert.Equal(t, "application/json", cfg["responseMimeType"])
	assert.InDelta(t, 0.2, cfg["temperature"], 1e-6)
	schema := cfg["responseSchema"].(map[string]any)
	assert.Equal(t, "OBJECT", schema["type"])
	assert.NotContains(t, schema, "additionalProperties")
}

func TestGenerateJSON_ReasoningTierUsesReasoningModel(t *testing.T) {
	var path string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"{}"}]}}]}`)
	})
	_, err := c.GenerateJSON(context.Background(), llm.GenerateRequest{Tier: llm.TierReasoning, Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "/models/pro:generateContent", path)
}

func TestGenerateJSON_Failures(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"non-2xx": func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = io.WriteString(w, `{"error":{"message":"quota"}}`)
		},
		"no candidates": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, `{"candidates":[]}`)
		},
		"prompt blocked": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, `{"promptFeedback":{"blockReason":"SAFETY"}}`)
		},
		"candidate withheld": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, `{"candidates":[{"content":{"parts":[]},"finishReason":"SAFETY"}]}`)
		},
		"empty text": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"  "}]}}]}`)
		},
		"garbage": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, `<html>`)
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

func TestGenerateJSON_Non2xxIsHTTPError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	_, err := c.GenerateJSON(context.Background(), llm.GenerateRequest{Prompt: "p"})
	var httpErr *llm.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.Status)
}
