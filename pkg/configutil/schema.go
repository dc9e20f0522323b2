package configutil

import (
	"errors"
	"sort"
	"strings"
)

// Schema names the settings keys a provider understands. Vendor settings
// arrive as free-form YAML maps; validating them against a schema turns
// typos into startup errors instead of silently ignored keys.
type Schema struct {
	Required []string
	Optional []string
}

// ValidateSettings checks a settings map against a schema. Key comparison
// ignores case, underscores, and hyphens. A required key that is absent or
// blank is reported as missing.
func ValidateSettings(input map[string]any, schema Schema) error {
	canonical := make(map[string]string, len(schema.Required)+len(schema.Optional))
	for _, k := range schema.Required {
		canonical[normalizeKey(k)] = k
	}
	for _, k := range schema.Optional {
		canonical[normalizeKey(k)] = k
	}

	var unknown []string
	present := make(map[string]bool, len(input))
	for k, v := range input {
		nk := normalizeKey(k)
		if _, ok := canonical[nk]; !ok {
			unknown = append(unknown, k)
			continue
		}
		if !isBlank(v) {
			present[nk] = true
		}
	}

	var missing []string
	for _, k := range schema.Required {
		if !present[normalizeKey(k)] {
			missing = append(missing, k)
		}
	}
	if len(missing) == 0 && len(unknown) == 0 {
		return nil
	}

	sort.Strings(missing)
	sort.Strings(unknown)
	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing: "+strings.Join(missing, ", "))
	}
	if len(unknown) > 0 {
		parts = append(parts, "unknown: "+strings.Join(unknown, ", "))
	}
	return errors.New(strings.Join(parts, "; "))
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}
