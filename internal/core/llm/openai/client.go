package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
	"github.com/joseph-ayodele/invoice-pipeline/internal/core/llm"
)

// ExtractFields implements llm.FieldExtractor using text-only chat/completions.
func (c *Client) ExtractFields(ctx context.Context, req llm.ExtractRequest) (llm.Extraction, error) {
	rid := uuid.New().String()
	start := time.Now()
	log := common.LoggerFromContext(ctx, c.log)

	log.Info("llm.extract.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"text_len", len(req.Text),
		"default_currency", req.DefaultCurrency,
	)

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": llm.BuildSystemPrompt(req)},
			{"role": "user", "content": llm.BuildUserPrompt(req) + "\n\nReturn ONLY JSON that matches the provided schema."},
			{"role": "system", "content": "JSON Schema:\n" + mustJSON(llm.BuildInvoiceJSONSchema())},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	raw, status, httpErr := llm.SendJSON(ctx, c.httpClient, endpoint, body, headers, log)
	if httpErr != nil {
		var se *llm.StatusError
		temporary := errors.As(httpErr, &se) && se.Temporary()
		log.Error("llm.extract.http_error",
			"req_id", rid, "status", status, "temporary", temporary, "error", httpErr,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.Extraction{Raw: raw}, fmt.Errorf("openai: %w", httpErr)
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		log.Error("llm.extract.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.Extraction{Raw: raw}, fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		log.Error("llm.extract.no_choices",
			"req_id", rid,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.Extraction{Raw: raw}, fmt.Errorf("no choices in openai response")
	}
	content := []byte(stripFences(cc.Choices[0].Message.Content))

	cleaned, changes, err := llm.NormalizeAndSanitizeJSON(content, log)
	if err != nil {
		log.Error("llm.extract.sanitize_failed",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.Extraction{Raw: content}, err
	}
	if len(changes) > 0 {
		log.Warn("llm.extract.lenient_sanitize_applied", "req_id", rid, "changes", changes)
	}
	if err := llm.ValidateInvoiceJSON(cleaned); err != nil {
		var fields []string
		var se *llm.SchemaError
		if errors.As(err, &se) {
			fields = se.Fields
		}
		log.Error("llm.extract.schema_validation_failed",
			"req_id", rid, "fields", fields, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.Extraction{Raw: cleaned}, err
	}

	fields, overall, err := llm.DecodeFields(cleaned)
	if err != nil {
		return llm.Extraction{Raw: cleaned}, err
	}

	log.Info("llm.extract.ok",
		"req_id", rid,
		"vendor", fields.Get("vendor_name"),
		"invoice_number", fields.Get("invoice_number"),
		"total", fields.Get("total_amount"),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return llm.Extraction{Fields: fields, Confidence: overall, Raw: cleaned, Source: llm.SourceOpenAI}, nil
}

// stripFences removes a ```json fenced block wrapper if the model added one.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
