package config

import (
	"sort"
	"strings"

	"github.com/tidwall/sjson"
)

// SettingsJSON returns the server settings as a JSON object, with dotted
// keys expanded into nested objects: {"gopls.staticcheck": true} becomes
// {"gopls":{"staticcheck":true}}. It returns nil when there are no
// settings.
func (s ServerConfig) SettingsJSON() ([]byte, error) {
	return ExpandSettings(s.Settings)
}

// InitializationOptionsJSON returns the initialization options as JSON,
// expanded like SettingsJSON.
func (s ServerConfig) InitializationOptionsJSON() ([]byte, error) {
	return ExpandSettings(s.InitializationOptions)
}

// ExpandSettings builds a JSON object from a settings map whose keys
// may be dotted paths. Nested maps are walked so TOML tables and dotted
// keys combine. It returns nil for an empty map.
func ExpandSettings(settings map[string]any) ([]byte, error) {
	if len(settings) == 0 {
		return nil, nil
	}

	out := []byte(`{}`)
	if err := expandInto(&out, "", settings); err != nil {
		return nil, err
	}
	return out, nil
}

func expandInto(out *[]byte, prefix string, settings map[string]any) error {
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		path := escapePath(k)
		if prefix != "" {
			path = prefix + "." + path
		}

		if nested, ok := settings[k].(map[string]any); ok {
			if err := expandInto(out, path, nested); err != nil {
				return err
			}
			continue
		}

		updated, err := sjson.SetBytes(*out, path, settings[k])
		if err != nil {
			return err
		}
		*out = updated
	}
	return nil
}

// escapePath escapes sjson path metacharacters other than the dots that
// separate levels.
func escapePath(key string) string {
	r := strings.NewReplacer(`*`, `\*`, `?`, `\?`, `|`, `\|`, `#`, `\#`, `@`, `\@`)
	return r.Replace(key)
}
