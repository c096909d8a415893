package vision

import (
	"encoding/json"
	"strings"

	"github.com/edu008/HeatQuest/pkg/errors"
)

// parseResult extracts the structured result from model output.  Models often
// wrap their JSON in markdown fences or prose, so the first balanced JSON
// object in the text is what gets decoded.
func parseResult(text string) (*Result, error) {
	block, ok := extractJSONObject(text)
	if !ok {
		return nil, errors.New(errors.ErrCodeAnalysisFailed, "model response contains no JSON object")
	}

	var result Result
	if err := json.Unmarshal([]byte(block), &result); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeAnalysisFailed, "model JSON does not decode")
	}
	if result.Summary == "" || result.MainCause == "" {
		return nil, errors.New(errors.ErrCodeAnalysisFailed, "model JSON is missing required fields")
	}
	if result.Confidence < 0 {
		result.Confidence = 0
	}
	if result.Confidence > 1 {
		result.Confidence = 1
	}
	// Drop actions the model left nameless; the rest keep their order.
	kept := result.SuggestedActions[:0]
	for _, a := range result.SuggestedActions {
		if a.Action != "" {
			kept = append(kept, a)
		}
	}
	result.SuggestedActions = kept
	return &result, nil
}

// extractJSONObject returns the first balanced {...} block in text, tracking
// strings so braces inside values do not break the count.
func extractJSONObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return text[start : i+1], true
				}
			}
		}
	}
	return "", false
}
