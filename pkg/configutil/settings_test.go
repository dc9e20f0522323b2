package configutil

import (
	"strings"
	"testing"
)

func TestValidateSettings(t *testing.T) {
	schema := Schema{Required: []string{"api_key", "model"}, Optional: []string{"base_url"}}

	err := ValidateSettings(map[string]any{"api_key": "sk-1", "model": "m", "base_url": ""}, schema)
	if err != nil {
		t.Fatalf("expected valid settings, got %v", err)
	}

	err = ValidateSettings(map[string]any{"api_key": "  ", "extra": true}, schema)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "missing: api_key, model") {
		t.Fatalf("expected blank and absent required keys reported, got %v", err)
	}
	if !strings.Contains(err.Error(), "unknown: extra") {
		t.Fatalf("expected unknown key reported, got %v", err)
	}
}

func TestValidateSettingsNormalizesKeys(t *testing.T) {
	schema := Schema{Required: []string{"api_key"}}
	if err := ValidateSettings(map[string]any{"API-Key": "sk-1"}, schema); err != nil {
		t.Fatalf("expected normalized key match, got %v", err)
	}
}

func TestDecodeSettings(t *testing.T) {
	var settings struct {
		APIKey string `mapstructure:"api_key"`
		Model  string `mapstructure:"model"`
		Port   int    `mapstructure:"port"`
	}
	err := DecodeSettings(map[string]any{
		"API-Key": "sk-1",
		"model":   "claude-sonnet-4-20250514",
		"port":    "8000",
	}, &settings)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if settings.APIKey != "sk-1" || settings.Model != "claude-sonnet-4-20250514" {
		t.Fatalf("unexpected settings %+v", settings)
	}
	if settings.Port != 8000 {
		t.Fatalf("expected weakly typed int, got %d", settings.Port)
	}
}

func TestRequireString(t *testing.T) {
	if err := RequireString("value", "llm.settings.api_key"); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	err := RequireString("  ", "llm.settings.api_key")
	if err == nil || !strings.Contains(err.Error(), "llm.settings.api_key") {
		t.Fatalf("expected path in error, got %v", err)
	}
}
