package helpers

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrNoJSONObject is returned when text holds no decodable JSON object.
var ErrNoJSONObject = errors.New("no JSON object in text")

var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// StripFences removes markdown code fences around a model reply.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```JSON", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// DecodeJSONObject decodes the JSON object in text into v. Fences are
// stripped first; when the whole text does not decode, the outermost
// {...} span is tried.
func DecodeJSONObject(text string, v any) error {
	s := StripFences(text)
	if err := json.Unmarshal([]byte(s), v); err == nil {
		return nil
	}
	if m := jsonObjectPattern.FindString(s); m != "" {
		if err := json.Unmarshal([]byte(m), v); err == nil {
			return nil
		}
	}
	return ErrNoJSONObject
}
