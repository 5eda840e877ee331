package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNoVerdict is returned when no allow/allowed key can be found
var ErrNoVerdict = errors.New("classifier: response carries no verdict")

var fencedJSON = regexp.MustCompile("(?is)```(?:json)?\\s*(.*?)```")

// ParseResponse extracts a verdict from a raw response body. It looks at
// choices[0].message.content first, then the decoded body, then the raw text.
func ParseResponse(body []byte) (Verdict, error) {
	var parsed interface{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &parsed); err != nil {
			parsed = nil
		}
	}

	var content interface{}
	if choice := choiceContent(parsed); choice != nil {
		content = choice
	} else if parsed != nil {
		content = parsed
	} else {
		content = string(body)
	}

	return parseContent(content)
}

func choiceContent(parsed interface{}) interface{} {
	envelope, ok := parsed.(map[string]interface{})
	if !ok {
		return nil
	}
	choices, ok := envelope["choices"].([]interface{})
	if !ok || len(choices) == 0 {
		return nil
	}
	choice, ok := choices[0].(map[string]interface{})
	if !ok {
		return nil
	}
	message, ok := choice["message"].(map[string]interface{})
	if !ok {
		return nil
	}
	return message["content"]
}

func parseContent(content interface{}) (Verdict, error) {
	if obj, ok := content.(map[string]interface{}); ok {
		if v, found, err := verdictFrom(obj); found || err != nil {
			return v, err
		}
	}

	var text string
	switch v := content.(type) {
	case string:
		text = v
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return Verdict{}, fmt.Errorf("classifier: re-encode content: %w", err)
		}
		text = string(raw)
	}

	jsonText := ExtractJSON(text)
	if jsonText == "" {
		return Verdict{}, ErrNoVerdict
	}

	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(jsonText), &obj); err != nil {
		return Verdict{}, fmt.Errorf("classifier: parse verdict: %w", err)
	}

	v, found, err := verdictFrom(obj)
	if err != nil {
		return Verdict{}, err
	}
	if !found {
		return Verdict{}, ErrNoVerdict
	}
	return v, nil
}

func verdictFrom(obj map[string]interface{}) (Verdict, bool, error) {
	raw, ok := obj["allow"]
	if !ok {
		raw, ok = obj["allowed"]
	}
	if !ok {
		return Verdict{}, false, nil
	}

	allow, err := normalizeAllow(raw)
	if err != nil {
		return Verdict{}, true, err
	}

	reason, _ := obj["reason"].(string)
	return Verdict{Allow: allow, Reason: strings.TrimSpace(reason)}, true, nil
}

func normalizeAllow(v interface{}) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
	}
	return false, fmt.Errorf("classifier: unrecognised allow value %v", v)
}

// ExtractJSON returns the JSON object embedded in text: the body of a fenced
// code block if present, otherwise the span from the first '{' to the last '}'.
func ExtractJSON(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ""
	}
	if m := fencedJSON.FindStringSubmatch(trimmed); m != nil && strings.TrimSpace(m[1]) != "" {
		return strings.TrimSpace(m[1])
	}
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end > start {
		return trimmed[start : end+1]
	}
	return trimmed
}
