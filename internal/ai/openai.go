package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nokoro/statement-tracker/constants"
	"github.com/nokoro/statement-tracker/internal/extract"
	"github.com/nokoro/statement-tracker/internal/normalize"
)

// promptTextLimit caps how much statement text goes into the prompt.
const promptTextLimit = 2000

// fallbackConfidence marks values that could not be validated.
const fallbackConfidence = 0.3

// OpenAIProvider validates fields with a chat/completions call.
type OpenAIProvider struct {
	cfg  Config
	http *http.Client
	mock *MockProvider
	log  *slog.Logger
}

func NewOpenAIProvider(cfg Config, logger *slog.Logger) *OpenAIProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIProvider{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		mock: NewMockProvider(logger),
		log:  logger,
	}
}

func (p *OpenAIProvider) Validate(ctx context.Context, rawText string, candidates extract.FieldSet, issuer string) extract.ValidationResult {
	rid := uuid.New().String()
	start := time.Now()

	p.log.Info("ai.validate.start",
		"req_id", rid,
		"model", p.cfg.Model,
		"issuer", issuer,
		"text_len", len(rawText),
	)

	body := map[string]any{
		"model":           p.cfg.Model,
		"temperature":     p.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": buildUserPrompt(rawText, candidates, issuer)},
		},
	}

	endpoint := strings.TrimRight(p.cfg.BaseURL, "/") + "/chat/completions"
	raw, err := p.post(ctx, endpoint, body)
	if err != nil {
		// A transport-level failure means validation never ran; the mock
		// keeps the pipeline moving with its deterministic scores.
		p.log.Error("ai.validate.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return p.mock.Validate(ctx, rawText, candidates, issuer)
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil || len(cc.Choices) == 0 {
		if err == nil {
			err = fmt.Errorf("no choices in response")
		}
		p.log.Error("ai.validate.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return fallbackResult(candidates, err)
	}

	res, err := parseValidation(cc.Choices[0].Message.Content, candidates)
	if err != nil {
		p.log.Error("ai.validate.parse_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return fallbackResult(candidates, err)
	}

	p.log.Info("ai.validate.ok",
		"req_id", rid,
		"overall", res.OverallConfidence,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res
}

func (p *OpenAIProvider) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai http error: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if cerr := Body.Close(); cerr != nil {
			p.log.Warn("ai.response_body_close_error", "error", cerr)
		}
	}(resp.Body)

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("openai status %d: %s", resp.StatusCode, raw)
	}
	return raw, nil
}

const systemPrompt = "You are a credit card statement validator. You receive extracted candidate fields " +
	"and the statement text they came from. Verify each candidate against the text, correct obvious " +
	"extraction mistakes, and assign each field a confidence between 0 and 1. Be conservative: when the " +
	"text does not clearly support a value, lower its confidence rather than guessing. Use ISO-8601 dates " +
	"(YYYY-MM-DD) and bare decimal amounts without currency symbols. Return ONLY JSON with the keys " +
	"validated_fields, confidence_scores, rationale, and summary."

func buildUserPrompt(rawText string, candidates extract.FieldSet, issuer string) string {
	if len(rawText) > promptTextLimit {
		rawText = rawText[:promptTextLimit]
	}
	cand, _ := json.MarshalIndent(candidates, "", "  ")

	var b strings.Builder
	b.WriteString("Issuer: ")
	if issuer == "" {
		b.WriteString("unknown")
	} else {
		b.WriteString(issuer)
	}
	b.WriteString("\n\nCandidate fields:\n")
	b.Write(cand)
	b.WriteString("\n\nStatement text:\n")
	b.WriteString(rawText)
	return b.String()
}

// fallbackResult echoes the candidates with a uniform low confidence when the
// model's answer could not be used.
func fallbackResult(candidates extract.FieldSet, cause error) extract.ValidationResult {
	conf := extract.NewConfidenceMap()
	rationale := make(map[constants.Field]string)
	for _, f := range constants.AllFields() {
		conf[f] = fallbackConfidence
		rationale[f] = "validation unavailable"
	}
	return extract.ValidationResult{
		ValidatedFields:   candidates.Clone(),
		ConfidenceScores:  conf,
		OverallConfidence: fallbackConfidence,
		Method:            constants.MethodOpenAIFallback,
		Rationale:         rationale,
		Summary:           "validation failed: " + cause.Error(),
	}
}

// parseValidation carves the JSON object out of the model's reply, checks it
// against the response schema, and converts values back to typed fields.
func parseValidation(content string, candidates extract.FieldSet) (extract.ValidationResult, error) {
	first := strings.Index(content, "{")
	last := strings.LastIndex(content, "}")
	if first < 0 || last <= first {
		return extract.ValidationResult{}, fmt.Errorf("no JSON object in response")
	}
	doc := []byte(content[first : last+1])

	if err := validateResponse(doc); err != nil {
		return extract.ValidationResult{}, fmt.Errorf("response schema: %w", err)
	}

	var payload struct {
		ValidatedFields  map[constants.Field]any     `json:"validated_fields"`
		ConfidenceScores map[constants.Field]float64 `json:"confidence_scores"`
		Rationale        map[constants.Field]string  `json:"rationale"`
		Summary          string                      `json:"summary"`
	}
	if err := json.Unmarshal(doc, &payload); err != nil {
		return extract.ValidationResult{}, fmt.Errorf("unmarshal response: %w", err)
	}

	fields := extract.NewFieldSet()
	conf := extract.NewConfidenceMap()
	for _, f := range constants.AllFields() {
		v, ok := convertValue(f, payload.ValidatedFields[f])
		if !ok {
			// Unusable model value: keep the candidate, flag low trust.
			fields[f] = candidates[f]
			if !candidates[f].IsNull() {
				conf[f] = fallbackConfidence
			}
			continue
		}
		fields[f] = v
		if !v.IsNull() {
			conf[f] = clamp01(payload.ConfidenceScores[f])
		}
	}

	return extract.ValidationResult{
		ValidatedFields:   fields,
		ConfidenceScores:  conf,
		OverallConfidence: conf.MeanNonZero(),
		Method:            constants.MethodOpenAI,
		Rationale:         payload.Rationale,
		Summary:           payload.Summary,
	}, nil
}

// convertValue turns a decoded JSON value into the field's typed form. ok is
// false when the value was present but unparseable.
func convertValue(f constants.Field, raw any) (extract.Value, bool) {
	switch t := raw.(type) {
	case nil:
		return extract.Value{}, true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return extract.Value{}, true
		}
		switch {
		case constants.IsDateField(f):
			if d, err := time.Parse("2006-01-02", s); err == nil {
				return extract.DateValue(d), true
			}
			if d, ok := normalize.Date(s); ok {
				return extract.DateValue(d), true
			}
			return extract.Value{}, false
		case constants.IsAmountField(f):
			if a, ok := normalize.Amount(s); ok {
				return extract.AmountValue(a), true
			}
			return extract.Value{}, false
		default:
			return extract.TextValue(s), true
		}
	case float64:
		if constants.IsAmountField(f) {
			if a, ok := normalize.Amount(fmt.Sprintf("%.2f", t)); ok {
				return extract.AmountValue(a), true
			}
		}
		return extract.Value{}, false
	default:
		return extract.Value{}, false
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
