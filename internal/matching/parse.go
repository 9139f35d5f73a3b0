package matching

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/spigell/job-matcher/internal/ai"
)

var (
	digitsRe = regexp.MustCompile(`\d{1,3}`)
	numberRe = regexp.MustCompile(`\d+(?:\.\d+)?`)

	errNoJSONObject = errors.New("no JSON object found in response")
)

// ExtractBoundedInteger returns the first run of one to three digits in text clamped to
// [lo, hi]. The second result is false when text holds no digits; the value is then lo.
func ExtractBoundedInteger(text string, lo, hi int) (int, bool) {
	match := digitsRe.FindString(text)
	if match == "" {
		return lo, false
	}

	n, err := strconv.Atoi(match)
	if err != nil {
		return lo, false
	}

	return min(max(n, lo), hi), true
}

// IsolateJSON returns the first balanced {...} object in raw, skipping braces that appear
// inside JSON strings. Code fences and surrounding prose are ignored.
func IsolateJSON(raw string) (string, error) {
	start := strings.IndexByte(raw, '{')
	for start != -1 {
		if end := matchBrace(raw, start); end != -1 {
			return raw[start : end+1], nil
		}
		next := strings.IndexByte(raw[start+1:], '{')
		if next == -1 {
			break
		}
		start += next + 1
	}
	return "", errNoJSONObject
}

func matchBrace(s string, start int) int {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}

	return -1
}

// parseObject isolates and decodes the first JSON object of raw. Failures are ParseErrors.
func parseObject(what, raw string) (map[string]any, error) {
	object, err := IsolateJSON(raw)
	if err != nil {
		return nil, &ai.ParseError{What: what, Raw: raw, Err: err}
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(object), &data); err != nil {
		return nil, &ai.ParseError{What: what, Raw: raw, Err: err}
	}

	return data, nil
}

// decodeWeak decodes a loosely typed model answer into target. Numbers given as strings
// ("5+ years") are reduced to their first number and comma-separated strings become slices.
func decodeWeak(input map[string]any, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			numericStringHook,
			mapstructure.StringToSliceHookFunc(","),
			stringifyHook,
		),
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

func numericStringHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String {
		return data, nil
	}
	switch to.Kind() {
	case reflect.Int, reflect.Int32, reflect.Int64, reflect.Float32, reflect.Float64:
		match := numberRe.FindString(data.(string))
		if match == "" {
			return "0", nil
		}
		return match, nil
	default:
		return data, nil
	}
}

func stringifyHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to.Kind() != reflect.String {
		return data, nil
	}
	switch from.Kind() {
	case reflect.Map, reflect.Slice:
		return coerceString(data), nil
	default:
		return data, nil
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			if s := coerceString(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "; ")
	default:
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}
