package engine

import (
	"encoding/json"
	"fmt"
	"strings"

	groupingdomain "github.com/heylinko/linko/internal/grouping/domain"
)

// extractJSONObject returns the first balanced top-level JSON object in
// text. Models frequently wrap their answer in prose or markdown fences,
// so the surrounding text is ignored rather than treated as an error.
func extractJSONObject(text string) (string, error) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", groupingdomain.ErrNoParseableJSON
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}
	return "", groupingdomain.ErrNoParseableJSON
}

// extractJSONArray is the fallback for models that answer with a bare
// top-level array instead of the requested object envelope.
func extractJSONArray(text string) (string, bool) {
	start := strings.IndexByte(text, '[')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// decodeClusters pulls a list of clusters out of a model response,
// trying the envelope keys in order before falling back to a bare
// array. An object that parses but carries none of the keys decodes
// to an empty list, which downstream treats as "nothing found".
func decodeClusters[T any](text string, keys ...string) ([]T, error) {
	raw, objErr := extractJSONObject(text)
	if objErr == nil {
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
			return nil, fmt.Errorf("response envelope decode: %w", err)
		}
		for _, key := range keys {
			payload, ok := envelope[key]
			if !ok {
				continue
			}
			var clusters []T
			if err := json.Unmarshal(payload, &clusters); err != nil {
				return nil, fmt.Errorf("response %q decode: %w", key, err)
			}
			return clusters, nil
		}
		return nil, nil
	}

	if raw, ok := extractJSONArray(text); ok {
		var clusters []T
		if err := json.Unmarshal([]byte(raw), &clusters); err != nil {
			return nil, fmt.Errorf("response array decode: %w", err)
		}
		return clusters, nil
	}
	return nil, objErr
}
