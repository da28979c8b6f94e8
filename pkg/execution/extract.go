package execution

import (
	"strings"
	"unicode"

	"github.com/tidwall/gjson"
)

// JSONPath returns the simple path a field is read from: "$" for data, "$.<field>" otherwise.
func JSONPath(field string) string {
	if strings.EqualFold(field, "data") {
		return "$"
	}

	return "$." + field
}

// ExtractField reads field from a JSON body. The field is looked up as
// written, in camelCase and in snake_case, first at the root and then under
// "data". The field "data" yields the whole document.
func ExtractField(body []byte, field string) (any, bool) {
	if !gjson.ValidBytes(body) {
		return nil, false
	}

	root := unwrapString(gjson.ParseBytes(body))

	if JSONPath(field) == "$" {
		return root.Value(), true
	}

	for _, prefix := range []string{"", "data."} {
		for _, name := range fieldVariants(field) {
			if r := root.Get(prefix + escapePath(name)); r.Exists() && r.Type != gjson.Null {
				return r.Value(), true
			}
		}
	}

	return nil, false
}

// CaptureToken looks for an access token at access_token, data.access_token
// and token. A body that is a JSON string holding JSON is parsed once more.
func CaptureToken(body []byte) (string, bool) {
	if !gjson.ValidBytes(body) {
		return "", false
	}

	root := unwrapString(gjson.ParseBytes(body))

	for _, path := range []string{"access_token", "data.access_token", "token"} {
		r := root.Get(path)
		if !r.Exists() || r.Type == gjson.Null {
			continue
		}

		if v := strings.TrimSpace(r.String()); v != "" {
			return v, true
		}
	}

	return "", false
}

func unwrapString(r gjson.Result) gjson.Result {
	if r.Type == gjson.String && gjson.Valid(r.Str) {
		return gjson.Parse(r.Str)
	}

	return r
}

func fieldVariants(field string) []string {
	out := []string{field}

	for _, v := range []string{toCamel(field), toSnake(field)} {
		seen := false

		for _, o := range out {
			if o == v {
				seen = true

				break
			}
		}

		if !seen {
			out = append(out, v)
		}
	}

	return out
}

func toCamel(s string) string {
	var b strings.Builder

	upper := false

	for i, r := range s {
		if r == '_' || r == '-' {
			upper = i > 0

			continue
		}

		if upper {
			b.WriteRune(unicode.ToUpper(r))

			upper = false

			continue
		}

		b.WriteRune(r)
	}

	return b.String()
}

func toSnake(s string) string {
	var b strings.Builder

	for i, r := range s {
		switch {
		case r == '-':
			b.WriteRune('_')
		case unicode.IsUpper(r):
			if i > 0 {
				b.WriteRune('_')
			}

			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
	}

	return b.String()
}

// escapePath protects gjson's path syntax characters in a plain key.
func escapePath(key string) string {
	var b strings.Builder

	for _, r := range key {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\':
			b.WriteRune('\\')
		}

		b.WriteRune(r)
	}

	return b.String()
}
