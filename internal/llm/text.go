package llm

import (
	"encoding/json"
	"errors"
	"strings"
	"unicode/utf8"
)

// SplitText breaks text into chunks of at most size runes with overlap runes repeated between
// neighbours. Cuts prefer a newline or sentence end in the second half of the window.
func SplitText(text string, size, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	runes := []rune(text)
	var chunks []string
	for start := 0; start < len(runes); {
		end := start + size
		if end >= len(runes) {
			if c := strings.TrimSpace(string(runes[start:])); c != "" {
				chunks = append(chunks, c)
			}
			break
		}
		end = cutPoint(runes, start, end)
		if c := strings.TrimSpace(string(runes[start:end])); c != "" {
			chunks = append(chunks, c)
		}
		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

func cutPoint(runes []rune, start, end int) int {
	min := start + (end-start)/2
	for i := end - 1; i > min; i-- {
		if runes[i] == '\n' {
			return i + 1
		}
		if runes[i] == ' ' && (runes[i-1] == '.' || runes[i-1] == '?' || runes[i-1] == '!') {
			return i + 1
		}
	}
	return end
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

var errNoJSON = errors.New("llm: no JSON found in model output")

// DecodeJSON unmarshals the first JSON object or array found in raw model output,
// tolerating markdown fences and surrounding prose.
func DecodeJSON(raw string, v interface{}) error {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), v); err == nil {
		return nil
	}
	start := strings.IndexAny(raw, "{[")
	if start < 0 {
		return errNoJSON
	}
	closer := byte('}')
	if raw[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(raw, closer)
	if end <= start {
		return errNoJSON
	}
	return json.Unmarshal([]byte(raw[start:end+1]), v)
}
