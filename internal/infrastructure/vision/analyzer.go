package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/edu008/HeatQuest/internal/infrastructure/monitoring/logging"
	"github.com/edu008/HeatQuest/pkg/errors"
)

// CellContext is what the model is told about the cell alongside the image.
type CellContext struct {
	Lat          float64
	Lon          float64
	HeatScore    float64
	TemperatureC float64
	NDVI         float64
}

// Action is one suggested intervention in the model's structured answer.
type Action struct {
	Priority    string `json:"priority"`
	Action      string `json:"action"`
	Description string `json:"description"`
}

// Result is the structured answer expected back from the model.
type Result struct {
	Summary          string   `json:"summary"`
	MainCause        string   `json:"main_cause"`
	LocationType     string   `json:"location_type"`
	SuggestedActions []Action `json:"suggested_actions"`
	Confidence       float64  `json:"confidence"`
	Provider         string   `json:"-"`
}

// Analyzer explains a hotspot cell from its aerial image.
type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, image []byte, cell CellContext) (*Result, error)
}

const analysisPrompt = `You are an urban climate analyst. The attached aerial image shows a grid
cell with an elevated surface heat score of %.1f (surface temperature %.1f C,
vegetation index %.2f) at latitude %.5f, longitude %.5f.

Respond with a single JSON object and nothing else:
{
  "summary": "<one paragraph describing why this area is hot>",
  "main_cause": "<the dominant heat driver, a short phrase>",
  "location_type": "<e.g. parking lot, industrial roof, plaza, street canyon>",
  "suggested_actions": [
    {"priority": "high/medium/low", "action": "<short action name>", "description": "<brief explanation>"}
  ],
  "confidence": <0.0 to 1.0>
}`

func buildPrompt(cell CellContext) string {
	return fmt.Sprintf(analysisPrompt,
		cell.HeatScore, cell.TemperatureC, cell.NDVI, cell.Lat, cell.Lon)
}

const (
	geminiURL = "https://generativelanguage.googleapis.com/v1beta/models/gemini-1.5-flash:generateContent"
	openaiURL = "https://api.openai.com/v1/chat/completions"
)

type geminiAnalyzer struct {
	apiKey  string
	client  *http.Client
	baseURL string
}

// NewGeminiAnalyzer builds the primary vision analyzer.
func NewGeminiAnalyzer(apiKey string, timeout time.Duration) Analyzer {
	return &geminiAnalyzer{
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		baseURL: geminiURL,
	}
}

func (a *geminiAnalyzer) Name() string { return "gemini" }

func (a *geminiAnalyzer) Analyze(ctx context.Context, image []byte, cell CellContext) (*Result, error) {
	if a.apiKey == "" {
		return nil, errors.New(errors.ErrCodeAnalyzerUnavailable, "gemini api key not configured")
	}

	body := map[string]interface{}{
		"contents": []map[string]interface{}{{
			"parts": []map[string]interface{}{
				{"text": buildPrompt(cell)},
				{"inline_data": map[string]string{
					"mime_type": "image/png",
					"data":      base64.StdEncoding.EncodeToString(image),
				}},
			},
		}},
	}

	raw, err := postJSON(ctx, a.client, a.baseURL+"?key="+a.apiKey, nil, body)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeAnalyzerUnavailable, "gemini request failed")
	}

	var resp struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeAnalysisFailed, "unexpected gemini response shape")
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, errors.New(errors.ErrCodeAnalysisFailed, "gemini returned no candidates")
	}

	result, err := parseResult(resp.Candidates[0].Content.Parts[0].Text)
	if err != nil {
		return nil, err
	}
	result.Provider = a.Name()
	return result, nil
}

type openaiAnalyzer struct {
	apiKey  string
	model   string
	client  *http.Client
	baseURL string
}

// NewOpenAIAnalyzer builds the fallback vision analyzer.
func NewOpenAIAnalyzer(apiKey string, timeout time.Duration) Analyzer {
	return &openaiAnalyzer{
		apiKey:  apiKey,
		model:   "gpt-4o-mini",
		client:  &http.Client{Timeout: timeout},
		baseURL: openaiURL,
	}
}

func (a *openaiAnalyzer) Name() string { return "openai" }

func (a *openaiAnalyzer) Analyze(ctx context.Context, image []byte, cell CellContext) (*Result, error) {
	if a.apiKey == "" {
		return nil, errors.New(errors.ErrCodeAnalyzerUnavailable, "openai api key not configured")
	}

	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(image)
	body := map[string]interface{}{
		"model": a.model,
		"messages": []map[string]interface{}{{
			"role": "user",
			"content": []map[string]interface{}{
				{"type": "text", "text": buildPrompt(cell)},
				{"type": "image_url", "image_url": map[string]string{"url": dataURL}},
			},
		}},
		"max_tokens": 800,
	}

	headers := map[string]string{"Authorization": "Bearer " + a.apiKey}
	raw, err := postJSON(ctx, a.client, a.baseURL, headers, body)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeAnalyzerUnavailable, "openai request failed")
	}

	var resp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeAnalysisFailed, "unexpected openai response shape")
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New(errors.ErrCodeAnalysisFailed, "openai returned no choices")
	}

	result, err := parseResult(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	result.Provider = a.Name()
	return result, nil
}

func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body interface{}) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}
	return raw, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// AnalyzerChain tries each analyzer in order.
type AnalyzerChain struct {
	analyzers []Analyzer
	logger    logging.Logger
}

func NewAnalyzerChain(log logging.Logger, analyzers ...Analyzer) *AnalyzerChain {
	return &AnalyzerChain{analyzers: analyzers, logger: log.Named("analyzer")}
}

func (c *AnalyzerChain) Analyze(ctx context.Context, image []byte, cell CellContext) (*Result, error) {
	var lastErr error
	for _, a := range c.analyzers {
		result, err := a.Analyze(ctx, image, cell)
		if err == nil {
			return result, nil
		}
		lastErr = err
		c.logger.Warn("Analyzer failed, trying next",
			logging.String("analyzer", a.Name()), logging.Err(err))
	}
	if lastErr == nil {
		lastErr = errors.New(errors.ErrCodeAnalyzerUnavailable, "no analyzers configured")
	}
	return nil, lastErr
}
