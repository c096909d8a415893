package vision

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edu008/HeatQuest/internal/infrastructure/monitoring/logging"
	"github.com/edu008/HeatQuest/pkg/errors"
)

var testCell = CellContext{
	Lat:          51.534,
	Lon:          -0.048,
	HeatScore:    27.4,
	TemperatureC: 31.2,
	NDVI:         0.12,
}

func TestGeminiAnalyzer(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))

		var req struct {
			Contents []struct {
				Parts []json.RawMessage `json:"parts"`
			} `json:"contents"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents, 1)
		assert.Len(t, req.Contents[0].Parts, 2, "prompt part plus image part")

		resp := map[string]interface{}{
			"candidates": []map[string]interface{}{{
				"content": map[string]interface{}{
					"parts": []map[string]string{{
						"text": `{"summary": "Asphalt yard.", "main_cause": "paving", "location_type": "depot", "suggested_actions": [{"priority": "high", "action": "Greening", "description": "Replace paving with planting"}], "confidence": 0.8}`,
					}},
				},
			}},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	a := &geminiAnalyzer{
		apiKey:  "test-key",
		client:  srv.Client(),
		baseURL: srv.URL,
	}
	result, err := a.Analyze(context.Background(), []byte("png-bytes"), testCell)
	require.NoError(t, err)
	assert.Equal(t, "paving", result.MainCause)
	assert.Equal(t, "gemini", result.Provider)
}

func TestOpenAIAnalyzer(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		resp := map[string]interface{}{
			"choices": []map[string]interface{}{{
				"message": map[string]string{
					"content": "```json\n" +
						`{"summary": "Flat roof.", "main_cause": "dark roofing", "suggested_actions": [{"priority": "medium", "action": "Cool roof", "description": "Coat the roof in a reflective finish"}], "confidence": 0.6}` +
						"\n```",
				},
			}},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	a := &openaiAnalyzer{
		apiKey:  "sk-test",
		model:   "gpt-4o-mini",
		client:  srv.Client(),
		baseURL: srv.URL,
	}
	result, err := a.Analyze(context.Background(), []byte("png-bytes"), testCell)
	require.NoError(t, err)
	assert.Equal(t, "dark roofing", result.MainCause)
	assert.Equal(t, "openai", result.Provider)
}

func TestAnalyzerRejectsServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	a := &geminiAnalyzer{apiKey: "k", client: srv.Client(), baseURL: srv.URL}
	_, err := a.Analyze(context.Background(), []byte("x"), testCell)
	assert.True(t, errors.IsCode(err, errors.ErrCodeAnalyzerUnavailable))
}

func TestAnalyzerMissingKey(t *testing.T) {
	t.Parallel()

	_, err := NewGeminiAnalyzer("", time.Second).Analyze(context.Background(), []byte("x"), testCell)
	assert.True(t, errors.IsCode(err, errors.ErrCodeAnalyzerUnavailable))

	_, err = NewOpenAIAnalyzer("", time.Second).Analyze(context.Background(), []byte("x"), testCell)
	assert.True(t, errors.IsCode(err, errors.ErrCodeAnalyzerUnavailable))
}

type stubAnalyzer struct {
	name   string
	result *Result
	err    error
	calls  int
}

func (s *stubAnalyzer) Name() string { return s.name }

func (s *stubAnalyzer) Analyze(ctx context.Context, image []byte, cell CellContext) (*Result, error) {
	s.calls++
	return s.result, s.err
}

func TestAnalyzerChainFallsBack(t *testing.T) {
	t.Parallel()

	primary := &stubAnalyzer{name: "primary", err: errors.New(errors.ErrCodeAnalyzerUnavailable, "down")}
	fallback := &stubAnalyzer{name: "fallback", result: &Result{Summary: "s", MainCause: "c", Provider: "fallback"}}
	chain := NewAnalyzerChain(logging.NewNopLogger(), primary, fallback)

	result, err := chain.Analyze(context.Background(), []byte("x"), testCell)
	require.NoError(t, err)
	assert.Equal(t, "fallback", result.Provider)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, fallback.calls)
}

func TestAnalyzerChainPrimaryWins(t *testing.T) {
	t.Parallel()

	primary := &stubAnalyzer{name: "primary", result: &Result{Summary: "s", MainCause: "c", Provider: "primary"}}
	fallback := &stubAnalyzer{name: "fallback"}
	chain := NewAnalyzerChain(logging.NewNopLogger(), primary, fallback)

	result, err := chain.Analyze(context.Background(), []byte("x"), testCell)
	require.NoError(t, err)
	assert.Equal(t, "primary", result.Provider)
	assert.Equal(t, 0, fallback.calls)
}

func TestAnalyzerChainExhausted(t *testing.T) {
	t.Parallel()

	chain := NewAnalyzerChain(logging.NewNopLogger(),
		&stubAnalyzer{name: "a", err: assert.AnError},
		&stubAnalyzer{name: "b", err: assert.AnError})
	_, err := chain.Analyze(context.Background(), []byte("x"), testCell)
	assert.Error(t, err)
}

func TestAnalyzerChainEmpty(t *testing.T) {
	t.Parallel()

	chain := NewAnalyzerChain(logging.NewNopLogger())
	_, err := chain.Analyze(context.Background(), []byte("x"), testCell)
	assert.True(t, errors.IsCode(err, errors.ErrCodeAnalyzerUnavailable))
}
