package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joseph-ayodele/billguard/internal/common"
	"github.com/joseph-ayodele/billguard/internal/llm"
)

var _ llm.Generator = (*Client)(nil)

// GenerateJSON implements llm.Generator using chat/completions with a json_schema response format.
// The image, when present, is sent as an image_url content part holding a data URI.
func (c *Client) GenerateJSON(ctx context.Context, req llm.GenerateRequest) ([]byte, error) {
	ctx, rid := common.EnsureRequestID(ctx)
	start := time.Now()
	model := c.modelFor(req.Tier)

	c.logger.Info("llm.generate.start",
		"req_id", rid,
		"provider", "openai",
		"purpose", req.Purpose,
		"model", model,
		"has_image", req.Image != nil,
		"prompt_len", len(req.Prompt),
	)

	content := []map[string]any{
		{"type": "text", "text": req.Prompt},
	}
	if req.Image != nil {
		content = append(content, map[string]any{
			"type": "image_url",
			"image_url": map[string]any{
				"url": "data:" + req.Image.MIMEType + ";base64," + req.Image.Data,
			},
		})
	}

	body := map[string]any{
		"model": model,
		"messages": []map[string]any{
			{"role": "system", "content": "Return ONLY JSON that matches the provided schema."},
			{"role": "user", "content": content},
		},
	}
	if req.Schema != nil {
		name := req.SchemaName
		if name == "" {
			name = "response"
		}
		// strict mode rejects optional properties, which the analysis schema relies on.
		body["response_format"] = map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   name,
				"schema": req.Schema,
				"strict": false,
			},
		}
	} else {
		body["response_format"] = map[string]any{"type": "json_object"}
	}
	if req.Temperature != nil {
		body["temperature"] = *req.Temperature
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	raw, _, err := llm.SendJSON(ctx, c.http, endpoint, body, headers, c.logger)
	if err != nil {
		c.logger.Error("llm.generate.http_error",
			"req_id", rid, "provider", "openai", "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, fmt.Errorf("openai: %w", err)
	}

	var cc struct {
		Choices []struct {
			FinishReason string `json:"finish_reason"`
			Message      struct {
				Content *string `json:"content"`
				Refusal *string `json:"refusal"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.logger.Error("llm.generate.decode_error",
			"req_id", rid, "provider", "openai", "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		c.logger.Error("llm.generate.no_choices",
			"req_id", rid, "provider", "openai",
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, errors.New("no choices in openai response")
	}
	choice := cc.Choices[0]
	if choice.Message.Refusal != nil && *choice.Message.Refusal != "" {
		c.logger.Warn("llm.generate.refused",
			"req_id", rid, "provider", "openai", "refusal", *choice.Message.Refusal,
		)
		return nil, fmt.Errorf("openai refused: %s", *choice.Message.Refusal)
	}
	if choice.FinishReason == "content_filter" {
		return nil, errors.New("openai response blocked by content filter")
	}
	if choice.Message.Content == nil || strings.TrimSpace(*choice.Message.Content) == "" {
		return nil, errors.New("empty content in openai response")
	}

	out := []byte(strings.TrimSpace(*choice.Message.Content))
	c.logger.Info("llm.generate.ok",
		"req_id", rid,
		"provider", "openai",
		"purpose", req.Purpose,
		"finish_reason", choice.FinishReason,
		"bytes", len(out),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

func (c *Client) modelFor(t llm.Tier) string {
	if t == llm.TierReasoning {
		return c.cfg.ReasoningModel
	}
	return c.cfg.Model
}
