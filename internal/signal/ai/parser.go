// Package ai implements the fallback signal parser backed by an
// OpenAI-compatible chat completions endpoint. It honors the same contract
// as the heuristic extractor: signal.ErrNoSignal on any miss, including
// network failures and malformed model output.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/iMOD07/AlpacaTradingBot/internal/logger"
	"github.com/iMOD07/AlpacaTradingBot/internal/signal"
)

const systemPrompt = `You are a trading signal analyst. Extract from the stock
recommendation text: symbol, entry trigger price, stop loss price and target
prices if present. Reply with JSON only, no markdown fences, in the form
{"symbol":"ABC","trigger":1.23,"stop":1.10,"targets":[1.30,1.40]}.
If the text is not a trade recommendation reply {"symbol":null}.`

const resultSchema = `{
  "type": "object",
  "required": ["symbol", "trigger", "stop"],
  "properties": {
    "symbol": {"type": "string", "minLength": 1, "maxLength": 11},
    "trigger": {"type": "number", "exclusiveMinimum": 0},
    "stop": {"type": "number", "exclusiveMinimum": 0},
    "targets": {"type": "array", "items": {"type": "number"}}
  }
}`

var compiledSchema = jsonschema.MustCompileString("signal.json", resultSchema)

// Parser calls a chat completions API and validates the returned JSON
// against a schema before trusting any field.
type Parser struct {
	apiURL     string
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewParser(apiURL, apiKey, model string, timeout time.Duration) *Parser {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Parser{
		apiURL:     strings.TrimSpace(apiURL),
		apiKey:     strings.TrimSpace(apiKey),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SetHTTPClient sets the HTTP client for testing.
func (p *Parser) SetHTTPClient(client *http.Client) { p.httpClient = client }

func (p *Parser) Parse(ctx context.Context, text string) (*signal.TradeSignal, error) {
	content, err := p.complete(ctx, text)
	if err != nil {
		logger.Warnf("ai parser: completion failed: %v", err)
		return nil, signal.ErrNoSignal
	}
	return decodeSignal(content)
}

func (p *Parser) complete(ctx context.Context, text string) (string, error) {
	payload := map[string]any{
		"model": p.model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": text},
		},
		"temperature": 0,
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(buf))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("completion status=%d", resp.StatusCode)
	}
	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("empty choices")
	}
	return out.Choices[0].Message.Content, nil
}

// decodeSignal strips markdown fences, schema-validates the JSON and builds
// the TradeSignal.
func decodeSignal(content string) (*signal.TradeSignal, error) {
	cleaned := strings.TrimSpace(content)
	cleaned = strings.ReplaceAll(cleaned, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)
	if !gjson.Valid(cleaned) {
		return nil, signal.ErrNoSignal
	}

	var doc any
	if err := json.Unmarshal([]byte(cleaned), &doc); err != nil {
		return nil, signal.ErrNoSignal
	}
	if err := compiledSchema.Validate(doc); err != nil {
		logger.Debugf("ai parser: schema rejected output: %v", err)
		return nil, signal.ErrNoSignal
	}

	parsed := gjson.Parse(cleaned)
	trigger, err := decimal.NewFromString(parsed.Get("trigger").Raw)
	if err != nil {
		return nil, signal.ErrNoSignal
	}
	stop, err := decimal.NewFromString(parsed.Get("stop").Raw)
	if err != nil {
		return nil, signal.ErrNoSignal
	}
	sig := &signal.TradeSignal{
		Symbol:  strings.ToUpper(strings.TrimSpace(parsed.Get("symbol").String())),
		Trigger: trigger,
		Stop:    stop,
	}
	for _, tgt := range parsed.Get("targets").Array() {
		val, err := decimal.NewFromString(tgt.Raw)
		if err != nil {
			continue
		}
		sig.Targets = append(sig.Targets, val)
	}
	return sig, nil
}
