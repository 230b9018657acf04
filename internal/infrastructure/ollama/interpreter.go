// Package ollama implements the LLM-backed query interpreter. Whether the
// model is down, times out, or emits malformed output, the interpreter
// resolves to a deterministic fallback intent; callers never see an error.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/giftfinder/scraper/internal/domain"
)

const fallbackInterestLength = 50

// jsonBlockRegex finds the first JSON object or array embedded in free text.
var jsonBlockRegex = regexp.MustCompile(`(?s)(\[.*\]|\{.*\})`)

// Config holds the Ollama connection settings.
type Config struct {
	Host           string
	Model          string
	Timeout        time.Duration
	MaxQueryLength int
}

// Interpreter turns free-text gift requests into structured intents via a
// local Ollama model.
type Interpreter struct {
	httpClient     *http.Client
	host           string
	model          string
	maxQueryLength int
	log            *logrus.Logger
}

// NewInterpreter creates an interpreter for the given Ollama endpoint.
func NewInterpreter(cfg Config, log *logrus.Logger) *Interpreter {
	host := strings.TrimRight(cfg.Host, "/")
	if host == "" {
		host = "http://localhost:11434"
	}
	model := cfg.Model
	if model == "" {
		model = "qwen2.5:1.5b"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	maxQueryLength := cfg.MaxQueryLength
	if maxQueryLength <= 0 {
		maxQueryLength = 500
	}

	return &Interpreter{
		httpClient:     &http.Client{Timeout: timeout},
		host:           host,
		model:          model,
		maxQueryLength: maxQueryLength,
		log:            log,
	}
}

// Interpret implements domain.QueryInterpreter.
func (i *Interpreter) Interpret(ctx context.Context, text string) domain.InterpretedIntent {
	text = strings.TrimSpace(text)
	if runes := []rune(text); len(runes) > i.maxQueryLength {
		text = string(runes[:i.maxQueryLength])
		i.log.WithField("max_length", i.maxQueryLength).Warn("Query truncated")
	}

	raw, err := i.generate(ctx, buildPrompt(text))
	if err != nil {
		i.log.WithError(err).Warn("LLM request failed, using fallback intent")
		return fallbackIntent(text)
	}

	parsed, ok := extractJSON(raw)
	if !ok {
		i.log.Warn("No valid JSON in LLM response, using fallback intent")
		return fallbackIntent(text)
	}

	return intentFromMap(parsed, text)
}

// Ping checks that the Ollama endpoint is reachable. Used by the readiness
// probe; interpretation itself never depends on it.
func (i *Interpreter) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, i.host+"/api/tags", nil)
	if err != nil {
		return err
	}

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrLLMUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", domain.ErrLLMUnavailable, resp.StatusCode)
	}
	return nil
}

// generate runs one completion against Ollama and returns the raw response
// text.
func (i *Interpreter) generate(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"model":  i.model,
		"prompt": prompt,
		"stream": false,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.host+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrLLMUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", domain.ErrLLMUnavailable, resp.StatusCode)
	}

	var body struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decoding LLM response: %w", err)
	}
	return body.Response, nil
}

func buildPrompt(text string) string {
	return fmt.Sprintf(`Devuelve SOLO JSON con esta estructura:

{
  "recipientType": string,
  "age": number|null,
  "budgetMin": number|null,
  "budgetMax": number|null,
  "interests": [string]
}

Mensaje: %q
`, text)
}

// extractJSON pulls a JSON object out of the model output, tolerating
// markdown fences, surrounding prose, and a top-level array (first element
// wins).
func extractJSON(raw string) (map[string]any, bool) {
	cleaned := strings.ReplaceAll(raw, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return nil, false
	}

	candidate := cleaned
	if !strings.HasPrefix(candidate, "{") && !strings.HasPrefix(candidate, "[") {
		match := jsonBlockRegex.FindString(cleaned)
		if match == "" {
			return nil, false
		}
		candidate = match
	}

	var value any
	if err := json.Unmarshal([]byte(candidate), &value); err != nil {
		return nil, false
	}

	if list, ok := value.([]any); ok {
		if len(list) == 0 {
			return nil, false
		}
		value = list[0]
	}

	obj, ok := value.(map[string]any)
	return obj, ok
}

// intentFromMap normalizes loosely-typed LLM output into an intent,
// falling back field by field.
func intentFromMap(raw map[string]any, text string) domain.InterpretedIntent {
	intent := domain.InterpretedIntent{RecipientType: "unknown"}

	if v, ok := raw["recipientType"].(string); ok && v != "" {
		intent.RecipientType = v
	}
	if v, ok := raw["age"].(float64); ok {
		age := int(v)
		intent.Age = &age
	}
	if v, ok := raw["budgetMin"].(float64); ok {
		intent.BudgetMin = &v
	}
	if v, ok := raw["budgetMax"].(float64); ok {
		intent.BudgetMax = &v
	}

	if list, ok := raw["interests"].([]any); ok {
		for _, item := range list {
			if s, ok := item.(string); ok && s != "" {
				intent.Interests = append(intent.Interests, s)
			}
		}
	}
	if len(intent.Interests) == 0 {
		intent.Interests = []string{truncate(text, fallbackInterestLength)}
	}

	return intent
}

// fallbackIntent is the deterministic result for any interpretation failure.
func fallbackIntent(text string) domain.InterpretedIntent {
	return domain.InterpretedIntent{
		RecipientType: "unknown",
		Interests:     []string{truncate(text, fallbackInterestLength)},
	}
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if runes := []rune(s); len(runes) > max {
		return string(runes[:max])
	}
	return s
}
