package masking

import "strings"

const maskToken = "****"

// SensitiveKeys are metadata keys whose string values never reach audit_logs in clear.
var SensitiveKeys = []string{"token", "api_token", "authorization", "password", "license_key"}

// MaskSecret redacts a secret while keeping a minimal suffix for auditing.
func MaskSecret(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}

	prefix, remainder := splitPrefix(trimmed)
	if len(remainder) <= 4 {
		return prefix + maskToken
	}

	return prefix + maskToken + remainder[len(remainder)-4:]
}

// MaskFields returns a copy of input with the values under keys masked.
// Nested maps are walked; other values are copied as is.
func MaskFields(input map[string]any, keys ...string) map[string]any {
	if len(input) == 0 {
		return input
	}

	sensitive := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		sensitive[strings.ToLower(strings.TrimSpace(key))] = struct{}{}
	}

	return maskMap(input, sensitive)
}

func maskMap(input map[string]any, sensitive map[string]struct{}) map[string]any {
	out := make(map[string]any, len(input))
	for key, value := range input {
		if _, ok := sensitive[strings.ToLower(key)]; ok {
			out[key] = maskValue(value)
			continue
		}
		if nested, ok := value.(map[string]any); ok {
			out[key] = maskMap(nested, sensitive)
			continue
		}
		out[key] = value
	}
	return out
}

func maskValue(value any) any {
	switch cast := value.(type) {
	case string:
		return MaskSecret(cast)
	case map[string]any:
		masked := make(map[string]any, len(cast))
		for key, item := range cast {
			masked[key] = maskValue(item)
		}
		return masked
	case []any:
		out := make([]any, 0, len(cast))
		for _, item := range cast {
			out = append(out, maskValue(item))
		}
		return out
	default:
		return value
	}
}

func splitPrefix(value string) (string, string) {
	lastUnderscore := strings.LastIndex(value, "_")
	if lastUnderscore == -1 || lastUnderscore == len(value)-1 {
		return "", value
	}
	return value[:lastUnderscore+1], value[lastUnderscore+1:]
}
