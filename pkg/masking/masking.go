// Package masking redacts sensitive values before they leave the pipeline,
// either through audit entries or through views handed to the presentation
// layer.
package masking

import "strings"

// Mask replaces sensitive values in audit details.
const Mask = "****"

// sensitiveKeys are matched by substring against lower-cased detail keys.
var sensitiveKeys = []string{
	"password", "token", "secret", "authorization",
	"aadhaar", "pan", "passport", "documentnumber", "dob",
}

// DocumentNumber keeps the last four characters and masks the rest.
// Numbers of four characters or fewer are returned unchanged.
func DocumentNumber(number string) string {
	if len(number) <= 4 {
		return number
	}
	return strings.Repeat("*", len(number)-4) + number[len(number)-4:]
}

// Details returns a copy of the map with values under sensitive keys replaced
// by the fixed mask. Nested maps are masked recursively.
func Details(details map[string]any) map[string]any {
	if details == nil {
		return nil
	}
	masked := make(map[string]any, len(details))
	for key, value := range details {
		switch {
		case IsSensitiveKey(key):
			masked[key] = Mask
		default:
			if nested, ok := value.(map[string]any); ok {
				masked[key] = Details(nested)
			} else {
				masked[key] = value
			}
		}
	}
	return masked
}

// IsSensitiveKey reports whether a detail key names a value that must never be
// persisted in clear text.
func IsSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	lower = strings.NewReplacer("_", "", "-", "", " ", "").Replace(lower)
	for _, sensitive := range sensitiveKeys {
		if strings.Contains(lower, sensitive) {
			return true
		}
	}
	return false
}
