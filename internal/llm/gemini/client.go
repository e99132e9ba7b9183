package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joseph-ayodele/billguard/internal/common"
	"github.com/joseph-ayodele/billguard/internal/llm"
)

var _ llm.Generator = (*Client)(nil)

// finish reasons that mean the candidate was withheld rather than completed.
var blockedFinishReasons = map[string]struct{}{
	"SAFETY": {}, "RECITATION": {}, "BLOCKLIST": {}, "PROHIBITED_CONTENT": {}, "SPII": {},
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

// GenerateJSON implements llm.Generator using models/{model}:generateContent with a JSON response schema.
func (c *Client) GenerateJSON(ctx context.Context, req llm.GenerateRequest) ([]byte, error) {
	ctx, rid := common.EnsureRequestID(ctx)
	start := time.Now()
	model := c.modelFor(req.Tier)

	c.logger.Info("llm.generate.start",
		"req_id", rid,
		"provider", "gemini",
		"purpose", req.Purpose,
		"model", model,
		"has_image", req.Image != nil,
		"prompt_len", len(req.Prompt),
	)

	var parts []map[string]any
	if req.Image != nil {
		parts = append(parts, map[string]any{
			"inlineData": map[string]any{"mimeType": req.Image.MIMEType, "data": req.Image.Data},
		})
	}
	parts = append(parts, map[string]any{"text": req.Prompt})

	genCfg := map[string]any{"responseMimeType": "application/json"}
	if req.Schema != nil {
		genCfg["responseSchema"] = ToResponseSchema(req.Schema)
	}
	if req.Temperature != nil {
		genCfg["temperature"] = *req.Temperature
	}
	body := map[string]any{
		"contents":         []map[string]any{{"role": "user", "parts": parts}},
		"generationConfig": genCfg,
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/models/" + url.PathEscape(model) + ":generateContent"
	headers := map[string]string{"x-goog-api-key": c.cfg.APIKey}
	raw, _, err := llm.SendJSON(ctx, c.http, endpoint, body, headers, c.logger)
	if err != nil {
		c.logger.Error("llm.generate.http_error",
			"req_id", rid, "provider", "gemini", "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, fmt.Errorf("gemini: %w", err)
	}

	var gr generateResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		c.logger.Error("llm.generate.decode_error",
			"req_id", rid, "provider", "gemini", "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, fmt.Errorf("decode gemini response: %w", err)
	}
	if gr.PromptFeedback != nil && gr.PromptFeedback.BlockReason != "" {
		c.logger.Warn("llm.generate.blocked", "req_id", rid, "provider", "gemini", "block_reason", gr.PromptFeedback.BlockReason)
		return nil, fmt.Errorf("gemini blocked prompt: %s", gr.PromptFeedback.BlockReason)
	}
	if len(gr.Candidates) == 0 {
		c.logger.Error("llm.generate.no_candidates",
			"req_id", rid, "provider", "gemini",
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, errors.New("no candidates in gemini response")
	}
	cand := gr.Candidates[0]
	if _, blocked := blockedFinishReasons[cand.FinishReason]; blocked {
		c.logger.Warn("llm.generate.blocked", "req_id", rid, "provider", "gemini", "finish_reason", cand.FinishReason)
		return nil, fmt.Errorf("gemini withheld candidate: %s", cand.FinishReason)
	}

	var b strings.Builder
	for _, p := range cand.Content.Parts {
		b.WriteString(p.Text)
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return nil, errors.New("empty text in gemini response")
	}

	attrs := []any{
		"req_id", rid,
		"provider", "gemini",
		"purpose", req.Purpose,
		"finish_reason", cand.FinishReason,
		"bytes", len(text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	}
	if gr.UsageMetadata != nil {
		attrs = append(attrs,
			"prompt_tokens", gr.UsageMetadata.PromptTokenCount,
			"output_tokens", gr.UsageMetadata.CandidatesTokenCount,
		)
	}
	c.logger.Info("llm.generate.ok", attrs...)
	return []byte(text), nil
}

func (c *Client) modelFor(t llm.Tier) string {
	if t == llm.TierReasoning {
		return c.cfg.ReasoningModel
	}
	return c.cfg.Model
}
